package geo

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// FromEWKB decodes EWKB bytes into a Geometry. Only polygonal geometries
// are supported.
func FromEWKB(data []byte) (Geometry, error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return Geometry{}, eris.Wrap(err, "geo: decode EWKB")
	}
	return FromGeom(g)
}

// FromGeom converts a go-geom Polygon or MultiPolygon into a Geometry.
func FromGeom(g geom.T) (Geometry, error) {
	switch t := g.(type) {
	case *geom.Polygon:
		return Geometry{Polygons: []Polygon{polygonFromGeom(t)}}, nil
	case *geom.MultiPolygon:
		polys := make([]Polygon, 0, t.NumPolygons())
		for i := 0; i < t.NumPolygons(); i++ {
			polys = append(polys, polygonFromGeom(t.Polygon(i)))
		}
		return Geometry{Polygons: polys}, nil
	default:
		return Geometry{}, eris.Errorf("geo: unsupported geometry type %T", g)
	}
}

func polygonFromGeom(p *geom.Polygon) Polygon {
	var out Polygon
	for i := 0; i < p.NumLinearRings(); i++ {
		ring := ringFromCoords(p.LinearRing(i).Coords())
		if i == 0 {
			out.Exterior = ring
			continue
		}
		out.Holes = append(out.Holes, ring)
	}
	return out
}

// ringFromCoords drops the duplicated closing vertex go-geom rings carry.
func ringFromCoords(coords []geom.Coord) Ring {
	ring := make(Ring, 0, len(coords))
	for _, c := range coords {
		ring = append(ring, Point{X: c[0], Y: c[1]})
	}
	if n := len(ring); n > 1 && ring[0] == ring[n-1] {
		ring = ring[:n-1]
	}
	return ring
}
