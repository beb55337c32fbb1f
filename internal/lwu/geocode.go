package lwu

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/LW1989/red-data-database/internal/db"
	"github.com/LW1989/red-data-database/internal/geo"
	"github.com/LW1989/red-data-database/internal/shapefile"
	"github.com/LW1989/red-data-database/pkg/geocode"
)

// BackfillSummary reports one geocode backfill run.
type BackfillSummary struct {
	Candidates int           `json:"candidates"`
	Matched    int           `json:"matched"`
	Unmatched  int           `json:"unmatched"`
	Updated    int           `json:"updated"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Backfill geocodes properties that have an address but no geometry
// and stores the resulting point, projected to the grid's coordinate
// system. limit caps the number of addresses per run so the public
// endpoints are not hammered; zero means no cap.
func Backfill(ctx context.Context, pool db.Pool, client geocode.Client, limit int) (*BackfillSummary, error) {
	log := zap.L().With(zap.String("component", "lwu.geocode"))

	query := `SELECT property_id, COALESCE(street, ''), COALESCE(postcode, ''), COALESCE(city, '')
		FROM zensus.ref_lwu_properties
		WHERE geom IS NULL AND (street IS NOT NULL OR city IS NOT NULL)
		ORDER BY property_id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "lwu: list geocode candidates")
	}

	var addrs []geocode.AddressInput
	for rows.Next() {
		var a geocode.AddressInput
		if err := rows.Scan(&a.ID, &a.Street, &a.PostCode, &a.City); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "lwu: scan geocode candidate")
		}
		addrs = append(addrs, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "lwu: list geocode candidates iterate")
	}

	summary := &BackfillSummary{Candidates: len(addrs)}
	start := time.Now()
	if len(addrs) == 0 {
		return summary, nil
	}

	results, err := client.BatchGeocode(ctx, addrs)
	if err != nil {
		return summary, eris.Wrap(err, "lwu: batch geocode")
	}

	for i, r := range results {
		if !r.Matched {
			summary.Unmatched++
			continue
		}
		summary.Matched++

		pt := geo.ProjectLonLat(r.Longitude, r.Latitude)
		geomBytes, encErr := shapefile.EncodePoint(pt.X, pt.Y, srid)
		if encErr != nil {
			log.Warn("point encoding failed",
				zap.String("property_id", addrs[i].ID),
				zap.Error(encErr),
			)
			continue
		}

		tag, updErr := pool.Exec(ctx,
			`UPDATE zensus.ref_lwu_properties SET geom = $1 WHERE property_id = $2 AND geom IS NULL`,
			geomBytes, addrs[i].ID,
		)
		if updErr != nil {
			log.Warn("geometry update failed",
				zap.String("property_id", addrs[i].ID),
				zap.Error(updErr),
			)
			continue
		}
		summary.Updated += int(tag.RowsAffected())
	}

	summary.Elapsed = time.Since(start)
	log.Info("geocode backfill complete",
		zap.Int("candidates", summary.Candidates),
		zap.Int("matched", summary.Matched),
		zap.Int("unmatched", summary.Unmatched),
		zap.Int("updated", summary.Updated),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}
