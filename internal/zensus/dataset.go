package zensus

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// GridSize identifies the resolution class of a census grid.
type GridSize string

const (
	Grid100m GridSize = "100m"
	Grid1km  GridSize = "1km"
	Grid10km GridSize = "10km"
)

// Valid reports whether g is one of the known resolution classes.
func (g GridSize) Valid() bool {
	switch g {
	case Grid100m, Grid1km, Grid10km:
		return true
	}
	return false
}

// CellSize returns the cell edge length in meters.
func (g GridSize) CellSize() float64 {
	switch g {
	case Grid100m:
		return 100
	case Grid1km:
		return 1000
	case Grid10km:
		return 10000
	}
	return 0
}

// resTag is the resolution token used inside INSPIRE grid identifiers.
// The 1km and 10km classes spell out meters there ("1000m", "10000m").
func (g GridSize) resTag() string {
	switch g {
	case Grid1km:
		return "1000m"
	case Grid10km:
		return "10000m"
	}
	return string(g)
}

// RefTable returns the reference grid table for this resolution.
func (g GridSize) RefTable() string {
	return "zensus.ref_grid_" + string(g)
}

// GridID builds the INSPIRE-style cell identifier from the cell center
// coordinates in EPSG:3035. The published CSVs key cells by corner
// coordinates, while the reference grids key by center, so loaders always
// rebuild the id from x_mp/y_mp.
func GridID(g GridSize, x, y float64) string {
	return fmt.Sprintf("CRS3035RES%sN%dE%d", g.resTag(), int64(y), int64(x))
}

// DetectGridSize determines the resolution class from a file path.
func DetectGridSize(path string) (GridSize, bool) {
	switch {
	case strings.Contains(path, "100m"):
		return Grid100m, true
	case strings.Contains(path, "1km"):
		return Grid1km, true
	case strings.Contains(path, "10km"):
		return Grid10km, true
	}
	return "", false
}

// Dataset describes one census CSV export and its target fact table.
type Dataset struct {
	Name     string // dataset name from the filename, e.g. "Heizungsart"
	GridSize GridSize
	Table    string // fully qualified fact table
	Year     int    // census epoch from the filename prefix
	Path     string
}

var (
	yearPrefixRe = regexp.MustCompile(`^Zensus(\d{4})_`)
	kmSuffixRe   = regexp.MustCompile(`_[0-9]+km-Gitter\.csv$`)
	mSuffixRe    = regexp.MustCompile(`_100m-Gitter\.csv$`)
)

// DefaultYear is assumed when the filename carries no census epoch.
const DefaultYear = 2022

// DetectDataset resolves the fact table mapping for a census CSV.
// New-layout files are named Zensus2022_{Dataset}_{size}-Gitter.csv inside
// grid-size folders; older layouts keep one dataset per folder with
// arbitrary file names, in which case the folder names the dataset.
func DetectDataset(path string) (*Dataset, error) {
	size, ok := DetectGridSize(path)
	if !ok {
		return nil, eris.Errorf("zensus: cannot determine grid size from path %s", path)
	}

	base := filepath.Base(path)

	year := DefaultYear
	if m := yearPrefixRe.FindStringSubmatch(base); m != nil {
		if y, err := strconv.Atoi(m[1]); err == nil {
			year = y
		}
	}

	name := yearPrefixRe.ReplaceAllString(base, "")
	name = kmSuffixRe.ReplaceAllString(name, "")
	name = mSuffixRe.ReplaceAllString(name, "")
	name = strings.Trim(name, "_")

	// Filename did not follow the export convention: fall back to the
	// containing folder, unless that is just a grid-size bucket.
	if name == "" || name == strings.TrimSuffix(base, ".csv") {
		parent := filepath.Base(filepath.Dir(path))
		if parent != "." && parent != "/" && !isGridSizeFolder(parent) {
			name = parent
		}
	}
	if name == "" {
		return nil, eris.Errorf("zensus: cannot determine dataset name from path %s", path)
	}

	return &Dataset{
		Name:     name,
		GridSize: size,
		Table:    fmt.Sprintf("zensus.fact_zensus_%s_%s", size, SanitizeTableName(name)),
		Year:     year,
		Path:     path,
	}, nil
}

func isGridSizeFolder(name string) bool {
	return GridSize(name).Valid()
}

var (
	identInvalidRe  = regexp.MustCompile(`[^a-z0-9_]`)
	identCollapseRe = regexp.MustCompile(`_+`)
)

// SanitizeTableName converts a dataset name into a Postgres table name part.
func SanitizeTableName(s string) string {
	name := strings.ToLower(s)
	name = identInvalidRe.ReplaceAllString(name, "_")
	return identCollapseRe.ReplaceAllString(name, "_")
}

// SanitizeColumnName converts a CSV header into a Postgres column name.
// Identifiers cannot start with a digit, so those get a col_ prefix.
func SanitizeColumnName(s string) string {
	col := strings.ToLower(s)
	col = identInvalidRe.ReplaceAllString(col, "_")
	col = identCollapseRe.ReplaceAllString(col, "_")
	col = strings.Trim(col, "_")
	if col != "" && col[0] >= '0' && col[0] <= '9' {
		col = "col_" + col
	}
	return col
}
