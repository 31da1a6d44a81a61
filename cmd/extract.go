package main

import (
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/imagery"
	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/model"
)

var extractCmd = &cobra.Command{
	Use:   "extract <image>...",
	Short: "Read parcel identifiers from map images without resolving them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(cfg, envOptions{Vision: true})
		if err != nil {
			return err
		}

		type extracted struct {
			Image      string                 `json:"image"`
			GPS        *imagery.GPSHint       `json:"gps,omitempty"`
			Identifier model.IdentifierRecord `json:"identifier"`
		}

		out := make([]extracted, 0, len(args))
		for _, path := range args {
			img, err := imagery.Load(path)
			if err != nil {
				return eris.Wrapf(err, "load %s", path)
			}
			id, err := env.Extractor.Extract(ctx, img)
			if err != nil {
				return err
			}
			if !id.HasSearchKey() {
				zap.L().Warn("no identifiers found", zap.String("image", path))
			}
			out = append(out, extracted{Image: path, GPS: img.GPS, Identifier: id})
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
}
