package model

import (
	"github.com/LW1989/red-data-database/internal/geo"
)

// Property is one housing-company parcel from zensus.ref_lwu_properties.
// Geom is empty when the stored geometry could not be decoded; such
// parcels still flow through a stats run and come out with null
// statistics.
type Property struct {
	ID         string       `json:"property_id"`
	OriginalID string       `json:"original_id,omitempty"`
	Geom       geo.Geometry `json:"-"`
}

// GridCell is one census grid cell: INSPIRE identifier plus the cell
// center in EPSG:3035 meters.
type GridCell struct {
	GridID string  `json:"grid_id"`
	X      float64 `json:"x_mp"`
	Y      float64 `json:"y_mp"`
}

// Overlap records how much of a grid cell's area a property covers.
// Ratio is intersection area over cell area, in (0, 1].
type Overlap struct {
	GridID string  `json:"grid_id"`
	Ratio  float64 `json:"ratio"`
}

// ScalarFact is one fact-table row for a scalar metric: the measured
// value and the density that weights it (for rent, the flat count).
type ScalarFact struct {
	Value   *float64 `json:"value"`
	Density *float64 `json:"density"`
}
