package main

import (
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/imagery"
	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/pipeline"
)

var processOut outputFlags

var processCmd = &cobra.Command{
	Use:   "process <image>...",
	Short: "Extract identifiers from map images and resolve their parcel boundaries",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		images := make([]imagery.Image, 0, len(args))
		for _, path := range args {
			img, err := imagery.Load(path)
			if err != nil {
				return eris.Wrapf(err, "load %s", path)
			}
			images = append(images, img)
		}

		env, err := initPipeline(cfg, envOptions{
			Vision:    true,
			OutputDir: processOut.resolveDir(),
			Shapefile: processOut.Shapefile || cfg.Output.Shapefile,
		})
		if err != nil {
			return err
		}

		runID := uuid.New()
		zap.L().Info("processing images",
			zap.String("run_id", runID.String()),
			zap.Int("images", len(images)),
			zap.Bool("demo", cfg.Demo()),
		)

		results := env.Pipeline.Run(pipeline.WithRunID(ctx, runID), images)
		return finishBatch(cmd.OutOrStdout(), runID, results, processOut)
	},
}

func init() {
	addOutputFlags(processCmd, &processOut)
	rootCmd.AddCommand(processCmd)
}

func addOutputFlags(cmd *cobra.Command, out *outputFlags) {
	cmd.Flags().StringVarP(&out.Dir, "output", "o", "", "artifact directory (default from config)")
	cmd.Flags().StringVar(&out.Report, "report", "", "write an xlsx batch report to this path")
	cmd.Flags().BoolVar(&out.Map, "map", false, "write map.json for the web map to the artifact directory")
	cmd.Flags().BoolVar(&out.Shapefile, "shapefile", false, "also write a shapefile per parcel")
}
