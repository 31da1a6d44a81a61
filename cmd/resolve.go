package main

import (
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/extract"
	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/intake"
	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/model"
	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/pipeline"
)

var (
	resolveAPN     string
	resolveAddress string
	resolveCounty  string
	resolveState   string
	resolveFile    string
	resolveOut     outputFlags
	coordsOut      outputFlags
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve parcel boundaries from known identifiers",
	Long:  "Resolves a single parcel from --apn/--address, or every row of a CSV or XLSX list given with --file. Skips image extraction.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var ids []model.IdentifierRecord
		if resolveFile != "" {
			recs, err := intake.ReadFile(cmd.Context(), resolveFile)
			if err != nil {
				return err
			}
			ids = recs
		} else {
			id := model.IdentifierRecord{
				AssessorNumber: model.CoerceString(resolveAPN),
				Address:        model.CoerceString(resolveAddress),
				County:         model.CoerceString(resolveCounty),
				State:          model.CoerceString(resolveState),
				RawText:        "Manual entry",
			}
			if !id.HasSearchKey() {
				return eris.New("resolve: --apn, --address or --file is required")
			}
			ids = []model.IdentifierRecord{id}
		}

		return runIdentifiers(cmd, ids, resolveOut)
	},
}

var coordsCmd = &cobra.Command{
	Use:   "coords <lat,lon>",
	Short: "Resolve the parcel at a latitude/longitude",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := extract.ParseCoordinates(args[0])
		if err != nil {
			return err
		}
		return runIdentifiers(cmd, []model.IdentifierRecord{id}, coordsOut)
	},
}

func runIdentifiers(cmd *cobra.Command, ids []model.IdentifierRecord, out outputFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := initPipeline(cfg, envOptions{
		OutputDir: out.resolveDir(),
		Shapefile: out.Shapefile || cfg.Output.Shapefile,
	})
	if err != nil {
		return err
	}

	runID := uuid.New()
	results := env.Pipeline.RunIdentifiers(pipeline.WithRunID(ctx, runID), ids)
	return finishBatch(cmd.OutOrStdout(), runID, results, out)
}

func init() {
	resolveCmd.Flags().StringVar(&resolveAPN, "apn", "", "assessor parcel number")
	resolveCmd.Flags().StringVar(&resolveAddress, "address", "", "street address")
	resolveCmd.Flags().StringVar(&resolveCounty, "county", "", "county name to narrow the search")
	resolveCmd.Flags().StringVar(&resolveState, "state", "", "state abbreviation to narrow the search")
	resolveCmd.Flags().StringVar(&resolveFile, "file", "", "CSV or XLSX list of identifiers to resolve")
	resolveCmd.MarkFlagsMutuallyExclusive("file", "apn")
	resolveCmd.MarkFlagsMutuallyExclusive("file", "address")
	addOutputFlags(resolveCmd, &resolveOut)
	addOutputFlags(coordsCmd, &coordsOut)
	rootCmd.AddCommand(resolveCmd, coordsCmd)
}
