package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func square(minX, minY, size float64) Ring {
	return Ring{
		{minX, minY},
		{minX + size, minY},
		{minX + size, minY + size},
		{minX, minY + size},
	}
}

func TestRingSignedArea(t *testing.T) {
	ccw := square(0, 0, 10)
	assert.InDelta(t, 100.0, ccw.SignedArea(), 1e-9)

	cw := Ring{{0, 0}, {0, 10}, {10, 10}, {10, 0}}
	assert.InDelta(t, -100.0, cw.SignedArea(), 1e-9)

	assert.Zero(t, Ring{{0, 0}, {1, 1}}.SignedArea())
}

func TestRingArea(t *testing.T) {
	tri := Ring{{0, 0}, {4, 0}, {0, 3}}
	assert.InDelta(t, 6.0, tri.Area(), 1e-9)
}

func TestRingBounds(t *testing.T) {
	r := Ring{{3, 7}, {-2, 4}, {5, -1}}
	assert.Equal(t, Rect{MinX: -2, MinY: -1, MaxX: 5, MaxY: 7}, r.Bounds())
}

func TestRingCentroid(t *testing.T) {
	c := square(10, 20, 4).Centroid()
	assert.InDelta(t, 12.0, c.X, 1e-9)
	assert.InDelta(t, 22.0, c.Y, 1e-9)

	// Degenerate ring falls back to the vertex average.
	line := Ring{{0, 0}, {2, 0}, {4, 0}}
	c = line.Centroid()
	assert.InDelta(t, 2.0, c.X, 1e-9)
	assert.InDelta(t, 0.0, c.Y, 1e-9)
}

func TestPolygonAreaWithHole(t *testing.T) {
	p := Polygon{
		Exterior: square(0, 0, 10),
		Holes:    []Ring{square(4, 4, 2)},
	}
	assert.InDelta(t, 96.0, p.Area(), 1e-9)
}

func TestGeometryArea(t *testing.T) {
	g := Geometry{Polygons: []Polygon{
		{Exterior: square(0, 0, 10)},
		{Exterior: square(100, 100, 5)},
	}}
	assert.InDelta(t, 125.0, g.Area(), 1e-9)
	assert.False(t, g.IsEmpty())
	assert.Equal(t, Rect{MinX: 0, MinY: 0, MaxX: 105, MaxY: 105}, g.Bounds())
}

func TestGeometryIsEmpty(t *testing.T) {
	assert.True(t, Geometry{}.IsEmpty())
	assert.True(t, Geometry{Polygons: []Polygon{{Exterior: Ring{{0, 0}, {1, 1}}}}}.IsEmpty())
}

func TestCellRect(t *testing.T) {
	r := CellRect(Point{X: 4341150, Y: 2967850}, 100)
	assert.Equal(t, Rect{MinX: 4341100, MinY: 2967800, MaxX: 4341200, MaxY: 2967900}, r)
	assert.InDelta(t, 10000.0, r.Area(), 1e-9)
}

func TestRectContains(t *testing.T) {
	r := Rect{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}
	assert.True(t, r.Contains(Point{X: 5, Y: 5}))
	assert.True(t, r.Contains(Point{X: 0, Y: 10}))
	assert.False(t, r.Contains(Point{X: 11, Y: 5}))
}

func TestRectIntersects(t *testing.T) {
	a := Rect{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}
	assert.True(t, a.Intersects(Rect{MinX: 5, MinY: 5, MaxX: 15, MaxY: 15}))
	assert.True(t, a.Intersects(Rect{MinX: 10, MinY: 0, MaxX: 20, MaxY: 10}))
	assert.False(t, a.Intersects(Rect{MinX: 11, MinY: 0, MaxX: 20, MaxY: 10}))
}

func TestRectExpand(t *testing.T) {
	r := Rect{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}.Expand(5)
	assert.Equal(t, Rect{MinX: -5, MinY: -5, MaxX: 15, MaxY: 15}, r)
}

func TestCellCenter(t *testing.T) {
	c := CellCenter(Point{X: 4341123, Y: 2967891}, 100)
	assert.InDelta(t, 4341150.0, c.X, 1e-9)
	assert.InDelta(t, 2967850.0, c.Y, 1e-9)

	// A point exactly on a cell boundary belongs to the cell above it.
	c = CellCenter(Point{X: 100, Y: 200}, 100)
	assert.InDelta(t, 150.0, c.X, 1e-9)
	assert.InDelta(t, 250.0, c.Y, 1e-9)
}
