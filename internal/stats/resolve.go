package stats

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/LW1989/red-data-database/internal/geo"
	"github.com/LW1989/red-data-database/internal/model"
	"github.com/LW1989/red-data-database/internal/store"
	"github.com/LW1989/red-data-database/internal/zensus"
)

// overlapEpsilon is the smallest overlap ratio that still counts.
// Ratios below it are artifacts of shared boundaries and float noise
// and are dropped entirely.
const overlapEpsilon = 1e-9

// OverlapResolver finds the grid cells a property covers and how much
// of each cell's area it takes.
type OverlapResolver struct {
	store    store.Store
	gridSize zensus.GridSize
	cellSize float64
}

// NewOverlapResolver builds a resolver for one grid resolution.
func NewOverlapResolver(st store.Store, size zensus.GridSize) *OverlapResolver {
	return &OverlapResolver{store: st, gridSize: size, cellSize: size.CellSize()}
}

// Resolve returns the property's overlaps sorted by grid id. Candidates
// come from a bounding-box query over cell centers, widened by half a
// cell so every square that can touch the property is in play. An empty
// result is a valid state: the property lies outside the populated
// grid.
func (r *OverlapResolver) Resolve(ctx context.Context, p model.Property) ([]model.Overlap, error) {
	if p.Geom.IsEmpty() {
		return nil, nil
	}

	bounds := p.Geom.Bounds().Expand(r.cellSize / 2)
	cells, err := r.store.CandidateCells(ctx, r.gridSize, bounds)
	if err != nil {
		return nil, eris.Wrapf(err, "stats: candidate cells for property %s", p.ID)
	}

	overlaps := make([]model.Overlap, 0, len(cells))
	for _, cell := range cells {
		rect := geo.CellRect(geo.Point{X: cell.X, Y: cell.Y}, r.cellSize)
		ratio := geo.OverlapRatio(p.Geom, rect)
		if ratio < overlapEpsilon {
			continue
		}
		overlaps = append(overlaps, model.Overlap{GridID: cell.GridID, Ratio: ratio})
	}

	sort.Slice(overlaps, func(i, j int) bool { return overlaps[i].GridID < overlaps[j].GridID })
	return overlaps, nil
}
