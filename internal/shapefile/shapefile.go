// Package shapefile wraps go-shp with attribute lookup by name and
// EWKB encoding for the reference-data loaders.
package shapefile

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// File is an open shapefile with case-insensitive attribute access.
type File struct {
	reader   *shp.Reader
	fieldIdx map[string]int
	shape    shp.Shape
}

// Open opens a .shp file for reading.
func Open(path string) (*File, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: open %s", path)
	}

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	return &File{reader: reader, fieldIdx: fieldIdx}, nil
}

func (f *File) Close() error {
	return f.reader.Close()
}

// Next advances to the next record.
func (f *File) Next() bool {
	if !f.reader.Next() {
		return false
	}
	_, f.shape = f.reader.Shape()
	return true
}

// Shape returns the current record's geometry, possibly nil.
func (f *File) Shape() shp.Shape {
	return f.shape
}

// HasField reports whether the attribute table has the named field.
func (f *File) HasField(name string) bool {
	_, ok := f.fieldIdx[strings.ToLower(name)]
	return ok
}

// Attr returns the named attribute of the current record, trimmed.
// Missing fields and blank values come back as the empty string.
func (f *File) Attr(name string) string {
	idx, ok := f.fieldIdx[strings.ToLower(name)]
	if !ok {
		return ""
	}
	val := strings.TrimRight(f.reader.Attribute(idx), "\x00")
	return strings.TrimSpace(val)
}

// EncodePolygon converts a shapefile Polygon to EWKB bytes with the
// given SRID. Shapefile parts become individual polygons of a
// multipolygon. Returns nil, nil for nil or degenerate shapes.
func EncodePolygon(p *shp.Polygon, srid int) ([]byte, error) {
	mp := polygonToMultiPolygon(p, srid)
	if mp == nil {
		return nil, nil
	}
	data, err := ewkb.Marshal(mp, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "shapefile: encode polygon")
	}
	return data, nil
}

// EncodePoint returns EWKB bytes for a single coordinate.
func EncodePoint(x, y float64, srid int) ([]byte, error) {
	pt := geom.NewPointFlat(geom.XY, []float64{x, y}).SetSRID(srid)
	data, err := ewkb.Marshal(pt, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "shapefile: encode point")
	}
	return data, nil
}

func polygonToMultiPolygon(p *shp.Polygon, srid int) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(srid)

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			continue
		}
		if err := mp.Push(poly); err != nil {
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
