// Package lwu loads the housing-company property portfolio into the
// zensus reference schema and backfills missing geometries via
// geocoding.
package lwu

import (
	"context"
	"strings"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/LW1989/red-data-database/internal/db"
	"github.com/LW1989/red-data-database/internal/shapefile"
)

// srid is the storage coordinate system, ETRS89-LAEA.
const srid = 3035

const propertiesTable = "zensus.ref_lwu_properties"

// defaultChunkSize is the rows-per-transaction for property loads.
const defaultChunkSize = 1000

// LoadOptions configures a property load.
type LoadOptions struct {
	// IDField is the attribute carrying the property identifier.
	// Defaults to "id".
	IDField   string
	ChunkSize int
}

// RowFailure records one property that could not be persisted.
type RowFailure struct {
	PropertyID string `json:"property_id"`
	Err        string `json:"error"`
}

// LoadSummary reports one property load.
type LoadSummary struct {
	File       string        `json:"file"`
	Read       int           `json:"read"`
	Loaded     int64         `json:"loaded"`
	Duplicates int           `json:"duplicates"`
	MissingID  int           `json:"missing_id"`
	NoGeometry int           `json:"no_geometry"`
	Failures   []RowFailure  `json:"failures,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Load reads a property shapefile and inserts the parcels. Identifiers
// are normalized by stripping trailing underscores; duplicate ids keep
// the first occurrence. Parcels without a usable polygon are loaded with
// a null geometry so the geocode backfill can fill them in later.
// Already-present property ids are left untouched.
func Load(ctx context.Context, pool db.Pool, shpPath string, opts LoadOptions) (*LoadSummary, error) {
	if opts.IDField == "" {
		opts.IDField = "id"
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}

	log := zap.L().With(
		zap.String("component", "lwu"),
		zap.String("file", shpPath),
	)

	file, err := shapefile.Open(shpPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if !file.HasField(opts.IDField) {
		return nil, eris.Errorf("lwu: shapefile has no %q attribute", opts.IDField)
	}

	summary := &LoadSummary{File: shpPath}
	start := time.Now()
	seen := make(map[string]bool)

	chunk := make([][]any, 0, opts.ChunkSize)
	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		upsertChunk(ctx, log, pool, chunk, summary)
		chunk = chunk[:0]
		return ctx.Err()
	}

	for file.Next() {
		if ctx.Err() != nil {
			return summary, eris.Wrap(ctx.Err(), "lwu: load canceled")
		}
		summary.Read++

		rawID := file.Attr(opts.IDField)
		if rawID == "" {
			summary.MissingID++
			continue
		}
		id := strings.TrimRight(rawID, "_")
		if id == "" {
			summary.MissingID++
			continue
		}
		if seen[id] {
			summary.Duplicates++
			continue
		}
		seen[id] = true

		var geomBytes []byte
		if poly, ok := file.Shape().(*shp.Polygon); ok {
			geomBytes, err = shapefile.EncodePolygon(poly, srid)
			if err != nil {
				geomBytes = nil
			}
		}
		if geomBytes == nil {
			summary.NoGeometry++
		}

		chunk = append(chunk, []any{
			id,
			rawID,
			nullable(file.Attr("strasse")),
			nullable(file.Attr("plz")),
			nullable(file.Attr("ort")),
			geomBytes,
		})

		if len(chunk) >= opts.ChunkSize {
			if err := flush(); err != nil {
				return summary, eris.Wrap(err, "lwu: load canceled")
			}
		}
	}
	if err := flush(); err != nil {
		return summary, eris.Wrap(err, "lwu: load canceled")
	}

	summary.Elapsed = time.Since(start)
	log.Info("property load complete",
		zap.Int("read", summary.Read),
		zap.Int64("loaded", summary.Loaded),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("missing_id", summary.MissingID),
		zap.Int("no_geometry", summary.NoGeometry),
		zap.Int("failures", len(summary.Failures)),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}

var propertyColumns = []string{"property_id", "original_id", "street", "postcode", "city", "geom"}

// upsertChunk writes one chunk in a single transaction. When the chunk
// fails as a whole, each row is retried individually so one poisoned
// record costs one row, not a thousand.
func upsertChunk(ctx context.Context, log *zap.Logger, pool db.Pool, chunk [][]any, summary *LoadSummary) {
	n, err := insertProperties(ctx, pool, chunk)
	if err == nil {
		summary.Loaded += n
		return
	}
	log.Warn("property chunk rejected, retrying rows individually",
		zap.Int("rows", len(chunk)),
		zap.Error(err),
	)

	for _, row := range chunk {
		if ctx.Err() != nil {
			return
		}
		n, rowErr := insertProperties(ctx, pool, [][]any{row})
		if rowErr != nil {
			id, _ := row[0].(string)
			summary.Failures = append(summary.Failures, RowFailure{PropertyID: id, Err: rowErr.Error()})
			log.Warn("property row rejected",
				zap.String("property_id", id),
				zap.Error(rowErr),
			)
			continue
		}
		summary.Loaded += n
	}
}

func insertProperties(ctx context.Context, pool db.Pool, rows [][]any) (int64, error) {
	n, err := db.BulkUpsert(ctx, pool, db.UpsertConfig{
		Table:        propertiesTable,
		Columns:      propertyColumns,
		ConflictKeys: []string{"property_id"},
		UpdateCols:   []string{},
	}, rows)
	return n, eris.Wrap(err, "lwu: insert properties")
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
