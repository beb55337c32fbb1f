package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LW1989/red-data-database/internal/inspire"
	"github.com/LW1989/red-data-database/internal/zensus"
)

var gridSize string

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Load INSPIRE grid reference geometry",
}

var gridLoadCmd = &cobra.Command{
	Use:   "load <shapefile>",
	Short: "Load an INSPIRE grid shapefile into its reference table",
	Long:  "Loads grid cell polygons from an INSPIRE shapefile (EPSG:3035) into the reference table for their resolution. The grid size is taken from --size or detected from the file name.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("etl"); err != nil {
			return err
		}

		size := zensus.GridSize(gridSize)
		if gridSize == "" {
			detected, ok := zensus.DetectGridSize(args[0])
			if !ok {
				return eris.Errorf("cannot detect grid size from %s, pass --size", args[0])
			}
			size = detected
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		summary, err := inspire.Load(cmd.Context(), st.Pool(), args[0], inspire.LoadOptions{Size: size})
		if err != nil {
			return err
		}

		zap.L().Info("grid loaded",
			zap.String("file", summary.File),
			zap.String("table", summary.Table),
			zap.Int("read", summary.Read),
			zap.Int64("loaded", summary.Loaded),
			zap.Int("skipped", summary.Skipped),
			zap.Duration("elapsed", summary.Elapsed),
		)
		return nil
	},
}

func init() {
	gridLoadCmd.Flags().StringVar(&gridSize, "size", "", "grid size: 100m, 1km or 10km (default: detect from file name)")
	gridCmd.AddCommand(gridLoadCmd)
	rootCmd.AddCommand(gridCmd)
}
