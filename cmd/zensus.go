package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LW1989/red-data-database/internal/zensus"
)

var (
	zensusRecursive   bool
	zensusSchemaApply bool
)

var zensusCmd = &cobra.Command{
	Use:   "zensus",
	Short: "Load and inspect census grid CSVs",
}

var zensusLoadCmd = &cobra.Command{
	Use:   "load [path]...",
	Short: "Load census CSV files into their fact tables",
	Long:  "Loads Zensus CSV files or directories of them. The dataset, grid size and census year are detected from each file name; the fact table schema is inferred from a leading sample. With no arguments the configured data directory is loaded.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("etl"); err != nil {
			return err
		}

		paths := args
		if len(paths) == 0 {
			paths = []string{cfg.Zensus.DataDir}
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		loader := zensus.NewLoader(st.Pool(), zensus.LoaderConfig{
			ChunkSize:  cfg.Zensus.ChunkSize,
			SampleSize: cfg.Zensus.SampleSize,
			Charset:    cfg.Zensus.Charset,
		})

		var loadErr error
		for _, path := range paths {
			summaries, err := loader.Load(cmd.Context(), path, zensusRecursive)
			for _, sum := range summaries {
				zap.L().Info("file loaded",
					zap.String("file", sum.File),
					zap.String("table", sum.Table),
					zap.Int64("rows_read", sum.RowsRead),
					zap.Int64("rows_upserted", sum.RowsUpserted),
					zap.Int("row_failures", len(sum.Failures)),
				)
			}
			if err != nil {
				loadErr = err
			}
		}
		return loadErr
	},
}

var zensusSchemaCmd = &cobra.Command{
	Use:   "schema <csv>...",
	Short: "Print or apply the DDL inferred for census CSVs",
	Long:  "Infers the fact table schema for each CSV from a leading sample and prints the CREATE TABLE statement. With --apply the DDL is executed against the warehouse instead.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loaderCfg := zensus.LoaderConfig{
			SampleSize: cfg.Zensus.SampleSize,
			Charset:    cfg.Zensus.Charset,
		}

		if !zensusSchemaApply {
			for _, path := range args {
				schema, err := zensus.InspectSchema(path, loaderCfg)
				if err != nil {
					return err
				}
				fmt.Println(schema.CreateSQL())
			}
			return nil
		}

		if err := cfg.Validate("etl"); err != nil {
			return err
		}
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		for _, path := range args {
			schema, err := zensus.InspectSchema(path, loaderCfg)
			if err != nil {
				return err
			}
			if _, err := st.Pool().Exec(cmd.Context(), schema.CreateSQL()); err != nil {
				return err
			}
			zap.L().Info("schema applied", zap.String("file", path), zap.String("table", schema.Dataset.Table))
		}
		return nil
	},
}

var zensusStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show row counts per loaded fact table",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("etl"); err != nil {
			return err
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		counts, err := st.FactTableCounts(cmd.Context())
		if err != nil {
			return err
		}
		if len(counts) == 0 {
			fmt.Println("no fact tables loaded")
			return nil
		}
		for _, c := range counts {
			fmt.Printf("%-80s %12d\n", c.Table, c.Rows)
		}
		return nil
	},
}

func init() {
	zensusLoadCmd.Flags().BoolVar(&zensusRecursive, "recursive", false, "descend into subdirectories")
	zensusSchemaCmd.Flags().BoolVar(&zensusSchemaApply, "apply", false, "execute the DDL instead of printing it")
	zensusCmd.AddCommand(zensusLoadCmd)
	zensusCmd.AddCommand(zensusSchemaCmd)
	zensusCmd.AddCommand(zensusStatusCmd)
	rootCmd.AddCommand(zensusCmd)
}
