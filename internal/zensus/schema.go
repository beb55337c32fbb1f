package zensus

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Column is one data column of a fact table, bound to its CSV field.
type Column struct {
	Name string // sanitized SQL name
	Raw  string // original CSV header
	Idx  int    // field position in the CSV record
	Type ColumnType
}

// TableSchema is the committed shape of one fact table. It is derived once
// per file from the header and a leading sample of rows, then drives both
// the CREATE TABLE statement and per-row parsing.
type TableSchema struct {
	Dataset *Dataset
	Columns []Column // data columns in CSV order

	gridIDIdx int // field position of the source grid id column, -1 if absent
	xIdx      int // field position of x_mp_{size}, -1 if absent
	yIdx      int // field position of y_mp_{size}, -1 if absent
}

// metadataColumn is dropped from fact tables; it holds per-row footnote
// markers, not data.
const metadataColumn = "werterlaeuternde_zeichen"

// BuildSchema classifies the columns of a census CSV. header is the raw
// header row; sampleRows are the leading data rows used for type inference.
// The source grid id column and the footnote marker column are excluded from
// the data columns; coordinates are carried separately.
func BuildSchema(ds *Dataset, header []string, sampleRows [][]string, f Format) (*TableSchema, error) {
	s := &TableSchema{
		Dataset:   ds,
		gridIDIdx: -1,
		xIdx:      -1,
		yIdx:      -1,
	}

	// The published files sometimes mislabel the id column with the 100m
	// suffix regardless of resolution, and flip the GITTER casing.
	idCandidates := []string{
		"GITTER_ID_" + string(ds.GridSize),
		"Gitter_ID_" + string(ds.GridSize),
		"GITTER_ID_100m",
		"Gitter_ID_100m",
	}
	xName := "x_mp_" + string(ds.GridSize)
	yName := "y_mp_" + string(ds.GridSize)

	for i, raw := range header {
		switch {
		case matchesAny(raw, idCandidates):
			if s.gridIDIdx < 0 {
				s.gridIDIdx = i
			}
			continue
		case raw == xName:
			s.xIdx = i
			continue
		case raw == yName:
			s.yIdx = i
			continue
		case strings.ToLower(raw) == metadataColumn:
			continue
		}

		name := SanitizeColumnName(raw)
		if name == "" || name == "grid_id" || name == "year" || s.hasColumn(name) {
			continue
		}

		samples := make([]string, 0, len(sampleRows))
		for _, row := range sampleRows {
			if i < len(row) {
				samples = append(samples, row[i])
			}
		}

		s.Columns = append(s.Columns, Column{
			Name: name,
			Raw:  raw,
			Idx:  i,
			Type: f.InferColumn(samples),
		})
	}

	if s.gridIDIdx < 0 && (s.xIdx < 0 || s.yIdx < 0) {
		return nil, eris.Errorf("zensus: %s has neither a grid id column nor center coordinates", ds.Path)
	}
	if len(s.Columns) == 0 {
		return nil, eris.Errorf("zensus: %s has no data columns", ds.Path)
	}

	return s, nil
}

func (s *TableSchema) hasColumn(name string) bool {
	for _, c := range s.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// HasCoords reports whether the source carries cell center coordinates.
func (s *TableSchema) HasCoords() bool {
	return s.xIdx >= 0 && s.yIdx >= 0
}

// CreateSQL returns the CREATE TABLE statement for the fact table.
// Facts are keyed by (grid_id, year) so later census epochs land beside
// earlier ones instead of overwriting them.
func (s *TableSchema) CreateSQL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", s.Dataset.Table)
	b.WriteString("    grid_id TEXT NOT NULL,\n")
	b.WriteString("    year INTEGER NOT NULL,\n")
	for _, c := range s.Columns {
		fmt.Fprintf(&b, "    %s %s,\n", c.Name, c.Type.SQLType())
	}
	fmt.Fprintf(&b, "    x_mp_%s NUMERIC,\n", s.Dataset.GridSize)
	fmt.Fprintf(&b, "    y_mp_%s NUMERIC,\n", s.Dataset.GridSize)
	b.WriteString("    PRIMARY KEY (grid_id, year),\n")
	fmt.Fprintf(&b, "    CONSTRAINT fk_grid_%s FOREIGN KEY (grid_id) REFERENCES %s (grid_id)\n",
		s.Dataset.GridSize, s.Dataset.GridSize.RefTable())
	b.WriteString(")")
	return b.String()
}

// InsertColumns returns the column list rows are built against, in the
// same order BuildRow emits values.
func (s *TableSchema) InsertColumns() []string {
	cols := make([]string, 0, len(s.Columns)+4)
	cols = append(cols, "grid_id", "year")
	for _, c := range s.Columns {
		cols = append(cols, c.Name)
	}
	if s.HasCoords() {
		cols = append(cols, "x_mp_"+string(s.Dataset.GridSize), "y_mp_"+string(s.Dataset.GridSize))
	}
	return cols
}

// ConflictKeys returns the upsert conflict columns.
func (s *TableSchema) ConflictKeys() []string {
	return []string{"grid_id", "year"}
}

// BuildRow converts one CSV record into an insert row matching
// InsertColumns. The grid id is rebuilt from the center coordinates when
// present; otherwise the source id column is taken as-is. Data fields are
// normalized per the committed column types, with parse outcomes tallied
// into stats.
func (s *TableSchema) BuildRow(record []string, f Format, stats *NormalizeStats) ([]any, string, error) {
	var (
		gridID string
		xVal   any
		yVal   any
	)

	if s.HasCoords() && s.xIdx < len(record) && s.yIdx < len(record) {
		x, xres := f.Decimal(record[s.xIdx])
		y, yres := f.Decimal(record[s.yIdx])
		if xres == ParseOK && yres == ParseOK {
			gridID = GridID(s.Dataset.GridSize, x, y)
			xVal, yVal = x, y
		}
	}
	if gridID == "" && s.gridIDIdx >= 0 && s.gridIDIdx < len(record) {
		gridID = strings.TrimSpace(record[s.gridIDIdx])
	}
	if gridID == "" {
		return nil, "", eris.New("zensus: row has no usable grid id")
	}

	row := make([]any, 0, len(s.Columns)+4)
	row = append(row, gridID, s.Dataset.Year)

	for _, c := range s.Columns {
		raw := ""
		if c.Idx < len(record) {
			raw = record[c.Idx]
		}
		v, res := c.Type.ParseValue(f, raw)
		switch res {
		case ParseOK:
			if c.Type == TypeIntegral {
				stats.Integers++
			} else {
				stats.Decimals++
			}
		case ParseInvalid:
			stats.Nulls++
			stats.Anomalies++
		default:
			stats.Nulls++
		}
		row = append(row, v)
	}

	if s.HasCoords() {
		row = append(row, xVal, yVal)
	}

	return row, gridID, nil
}

func matchesAny(s string, candidates []string) bool {
	for _, c := range candidates {
		if s == c {
			return true
		}
	}
	return false
}
