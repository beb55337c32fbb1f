package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LW1989/red-data-database/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "reddata",
	Short: "Census grid statistics for property portfolios",
	Long:  "Loads Zensus grid CSVs and reference geometry into Postgres, computes area-weighted rent, heating, energy and construction-year statistics per property, and serves the results over HTTP.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
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

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
