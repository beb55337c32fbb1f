package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LW1989/red-data-database/internal/stats"
	"github.com/LW1989/red-data-database/internal/store"
	"github.com/LW1989/red-data-database/internal/zensus"
)

var (
	statsAudit        bool
	statsRunsLimit    int
	statsExportFormat string
	statsExportOut    string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Compute and inspect weighted property statistics",
}

var statsRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the weighted aggregation over all properties",
	Long:  "Computes area-overlap-weighted statistics for every property in the reference table and upserts the result rows. Reruns are idempotent: each property keeps exactly one row.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("stats"); err != nil {
			return err
		}

		registry, err := loadRegistry()
		if err != nil {
			return err
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		var journal store.Journal
		if j := optionalJournal(); j != nil {
			defer j.Close() //nolint:errcheck
			journal = j
		}

		engine := stats.NewEngine(st, journal, registry, stats.Options{
			GridSize:    zensus.GridSize(cfg.Stats.GridSize),
			Year:        cfg.Stats.Year,
			Concurrency: cfg.Stats.Concurrency,
			ChunkSize:   cfg.Stats.ChunkSize,
			Audit:       statsAudit,
		})

		summary, err := engine.Run(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(summary)
	},
}

var statsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show result coverage and recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("stats"); err != nil {
			return err
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		coverage, err := st.CoverageSummary(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("properties: %d\nresult rows: %d\n", coverage.Properties, coverage.Rows)
		for group, n := range coverage.WithData {
			fmt.Printf("  %-12s %d with data\n", group, n)
		}

		journal, err := openJournal()
		if err != nil {
			zap.L().Warn("run journal unavailable", zap.Error(err))
			return nil
		}
		defer journal.Close() //nolint:errcheck

		runs, err := journal.RecentRuns(cmd.Context(), statsRunsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no recorded runs")
			return nil
		}

		fmt.Println("recent runs:")
		for _, run := range runs {
			failures, _ := journal.FailureCount(cmd.Context(), run.ID)
			fmt.Printf("  %s  %-8s  started %s  written %d  failures %d\n",
				run.ID, run.Status, run.StartedAt.Format("2006-01-02 15:04:05"),
				run.Summary.RowsWritten, failures)
		}
		return nil
	},
}

var statsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored statistics as CSV or XLSX",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("stats"); err != nil {
			return err
		}

		registry, err := loadRegistry()
		if err != nil {
			return err
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		out := os.Stdout
		if statsExportOut != "" {
			f, err := os.Create(statsExportOut)
			if err != nil {
				return eris.Wrap(err, "create export file")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		exporter := stats.NewExporter(st, registry)
		var n int
		switch statsExportFormat {
		case "csv":
			n, err = exporter.ExportCSV(cmd.Context(), out)
		case "xlsx":
			n, err = exporter.ExportXLSX(cmd.Context(), out)
		default:
			return eris.Errorf("unknown export format %q, want csv or xlsx", statsExportFormat)
		}
		if err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("format", statsExportFormat),
			zap.Int("rows", n),
		)
		return nil
	},
}

func init() {
	statsRunCmd.Flags().BoolVar(&statsAudit, "audit", false, "record per-cell contribution traces in the journal")
	statsStatusCmd.Flags().IntVar(&statsRunsLimit, "runs", 10, "number of recent runs to show")
	statsExportCmd.Flags().StringVar(&statsExportFormat, "format", "csv", "export format: csv or xlsx")
	statsExportCmd.Flags().StringVar(&statsExportOut, "out", "", "output file (default stdout)")
	statsCmd.AddCommand(statsRunCmd)
	statsCmd.AddCommand(statsStatusCmd)
	statsCmd.AddCommand(statsExportCmd)
	rootCmd.AddCommand(statsCmd)
}
