package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/config"
)

var (
	cfg      *config.Config
	demoMode bool
)

var rootCmd = &cobra.Command{
	Use:   "parcelizer",
	Short: "Extract parcel boundaries from map images",
	Long:  "Reads assessor numbers and addresses off map images with a vision model, resolves them against the Regrid parcel registry, and writes GeoJSON, vertex CSV and optional shapefile artifacts.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if demoMode {
			c.Registry.Mode = config.RegistryModeDemo
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&demoMode, "demo", false, "resolve against the built-in demo parcels instead of Regrid")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
