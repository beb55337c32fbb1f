package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LW1989/red-data-database/internal/lwu"
	"github.com/LW1989/red-data-database/pkg/geocode"
)

var (
	propertiesIDField string
	geocodeLimit      int
)

var propertiesCmd = &cobra.Command{
	Use:   "properties",
	Short: "Load and geocode the property reference data",
}

var propertiesLoadCmd = &cobra.Command{
	Use:   "load <shapefile>",
	Short: "Load property parcels into the reference table",
	Long:  "Loads property polygons and their address attributes from a shapefile (EPSG:3035). Trailing underscores are stripped from source ids; duplicate ids keep the first occurrence.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("etl"); err != nil {
			return err
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		summary, err := lwu.Load(cmd.Context(), st.Pool(), args[0], lwu.LoadOptions{
			IDField: propertiesIDField,
		})
		if err != nil {
			return err
		}

		zap.L().Info("properties loaded",
			zap.String("file", summary.File),
			zap.Int("read", summary.Read),
			zap.Int64("loaded", summary.Loaded),
			zap.Int("duplicates", summary.Duplicates),
			zap.Int("missing_id", summary.MissingID),
			zap.Int("row_failures", len(summary.Failures)),
			zap.Duration("elapsed", summary.Elapsed),
		)
		return nil
	},
}

var propertiesGeocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Backfill geometry for properties without one",
	Long:  "Geocodes properties that have an address but no geometry, via Nominatim with a Photon fallback, and stores the resulting point. Results are cached in the warehouse.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("geocode"); err != nil {
			return err
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		providers := []geocode.Provider{
			geocode.NewNominatimProvider(cfg.Geocode.NominatimURL, cfg.Geocode.UserAgent, cfg.Geocode.RequestsPerSecond),
			geocode.NewPhotonProvider(cfg.Geocode.PhotonURL, cfg.Geocode.RequestsPerSecond),
		}
		client := geocode.NewCascadeClient(st.Pool(), providers,
			geocode.WithCacheTTLDays(cfg.Geocode.CacheTTLDays),
			geocode.WithBatchConcurrency(cfg.Geocode.BatchConcurrency),
		)

		summary, err := lwu.Backfill(cmd.Context(), st.Pool(), client, geocodeLimit)
		if err != nil {
			return err
		}

		zap.L().Info("geocode backfill complete",
			zap.Int("candidates", summary.Candidates),
			zap.Int("matched", summary.Matched),
			zap.Int("unmatched", summary.Unmatched),
			zap.Int("updated", summary.Updated),
			zap.Duration("elapsed", summary.Elapsed),
		)
		return nil
	},
}

func init() {
	propertiesLoadCmd.Flags().StringVar(&propertiesIDField, "id-field", "", "attribute carrying the property id (default \"id\")")
	propertiesGeocodeCmd.Flags().IntVar(&geocodeLimit, "limit", 0, "geocode at most this many properties (0 = all)")
	propertiesCmd.AddCommand(propertiesLoadCmd)
	propertiesCmd.AddCommand(propertiesGeocodeCmd)
	rootCmd.AddCommand(propertiesCmd)
}
