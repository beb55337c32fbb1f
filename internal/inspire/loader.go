// Package inspire loads the INSPIRE census grid shapefiles into the
// zensus reference tables.
package inspire

import (
	"context"
	"strconv"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/LW1989/red-data-database/internal/db"
	"github.com/LW1989/red-data-database/internal/geo"
	"github.com/LW1989/red-data-database/internal/shapefile"
	"github.com/LW1989/red-data-database/internal/zensus"
)

// srid is the grid's coordinate system, ETRS89-LAEA.
const srid = 3035

// defaultBatchSize is the rows-per-upsert for grid loads. Grid files
// run to millions of cells, so batches are large.
const defaultBatchSize = 50000

// LoadOptions configures a grid load.
type LoadOptions struct {
	Size      zensus.GridSize
	BatchSize int
}

// LoadSummary reports one grid load.
type LoadSummary struct {
	File     string          `json:"file"`
	Table    string          `json:"table"`
	GridSize zensus.GridSize `json:"grid_size"`
	Read     int             `json:"read"`
	Loaded   int64           `json:"loaded"`
	Skipped  int             `json:"skipped"`
	Elapsed  time.Duration   `json:"elapsed"`
}

// Load reads a grid shapefile and upserts its cells into the reference
// table for the given resolution. Cell ids are rebuilt from the cell
// center coordinates; records whose center cannot be determined are
// skipped and counted. Existing cells are left untouched: the grid is
// static per census epoch.
func Load(ctx context.Context, pool db.Pool, shpPath string, opts LoadOptions) (*LoadSummary, error) {
	if !opts.Size.Valid() {
		return nil, eris.Errorf("inspire: invalid grid size %q", opts.Size)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	log := zap.L().With(
		zap.String("component", "inspire"),
		zap.String("file", shpPath),
		zap.String("grid_size", string(opts.Size)),
	)

	file, err := shapefile.Open(shpPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	summary := &LoadSummary{
		File:     shpPath,
		Table:    opts.Size.RefTable(),
		GridSize: opts.Size,
	}
	start := time.Now()
	cellSize := opts.Size.CellSize()
	hasCenterAttrs := file.HasField("x_mp") && file.HasField("y_mp")

	batch := make([][]any, 0, opts.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := upsertCells(ctx, pool, opts.Size, batch)
		if err != nil {
			return err
		}
		summary.Loaded += n
		batch = batch[:0]
		return nil
	}

	for file.Next() {
		if ctx.Err() != nil {
			return summary, eris.Wrap(ctx.Err(), "inspire: load canceled")
		}
		summary.Read++

		center, ok := cellCenter(file, hasCenterAttrs, cellSize)
		if !ok {
			summary.Skipped++
			continue
		}

		var geomBytes []byte
		if poly, isPoly := file.Shape().(*shp.Polygon); isPoly {
			geomBytes, err = shapefile.EncodePolygon(poly, srid)
			if err != nil {
				summary.Skipped++
				continue
			}
		}

		gridID := zensus.GridID(opts.Size, center.X, center.Y)
		batch = append(batch, []any{gridID, int64(center.X), int64(center.Y), geomBytes})

		if len(batch) >= opts.BatchSize {
			if err := flush(); err != nil {
				return summary, err
			}
		}
	}
	if err := flush(); err != nil {
		return summary, err
	}

	summary.Elapsed = time.Since(start)
	log.Info("grid load complete",
		zap.Int("read", summary.Read),
		zap.Int64("loaded", summary.Loaded),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}

// cellCenter determines the record's cell center: the x_mp/y_mp
// attributes when the shapefile carries them, otherwise the centroid of
// the cell square snapped to the grid.
func cellCenter(file *shapefile.File, hasCenterAttrs bool, cellSize float64) (geo.Point, bool) {
	if hasCenterAttrs {
		x, errX := strconv.ParseFloat(file.Attr("x_mp"), 64)
		y, errY := strconv.ParseFloat(file.Attr("y_mp"), 64)
		if errX == nil && errY == nil {
			return geo.Point{X: x, Y: y}, true
		}
	}

	poly, ok := file.Shape().(*shp.Polygon)
	if !ok || len(poly.Points) == 0 {
		return geo.Point{}, false
	}
	var sx, sy float64
	for _, p := range poly.Points {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(poly.Points))
	return geo.CellCenter(geo.Point{X: sx / n, Y: sy / n}, cellSize), true
}

func upsertCells(ctx context.Context, pool db.Pool, size zensus.GridSize, rows [][]any) (int64, error) {
	n, err := db.BulkUpsert(ctx, pool, db.UpsertConfig{
		Table:        size.RefTable(),
		Columns:      []string{"grid_id", "x_mp", "y_mp", "geom"},
		ConflictKeys: []string{"grid_id"},
		UpdateCols:   []string{},
	}, rows)
	return n, eris.Wrapf(err, "inspire: upsert cells into %s", size.RefTable())
}
