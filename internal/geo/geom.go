// Package geo implements the planar geometry used to overlay property
// parcels on census grid cells: axis-aligned cell rectangles, polygon
// clipping, and overlap areas. Coordinates are ETRS89-LAEA (EPSG:3035)
// meters unless a function says otherwise.
package geo

import "math"

// Point is a position in projected meters.
type Point struct {
	X float64
	Y float64
}

// Rect is an axis-aligned rectangle, typically one census grid cell.
type Rect struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// CellRect returns the square cell with the given center and edge length.
func CellRect(center Point, size float64) Rect {
	h := size / 2
	return Rect{
		MinX: center.X - h,
		MinY: center.Y - h,
		MaxX: center.X + h,
		MaxY: center.Y + h,
	}
}

// Width returns the horizontal extent.
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height returns the vertical extent.
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Area returns the rectangle area. Degenerate rectangles have area 0.
func (r Rect) Area() float64 {
	if r.MaxX <= r.MinX || r.MaxY <= r.MinY {
		return 0
	}
	return r.Width() * r.Height()
}

// Contains reports whether p lies inside or on the boundary of r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

// Intersects reports whether the two rectangles share any area or edge.
func (r Rect) Intersects(o Rect) bool {
	return r.MinX <= o.MaxX && o.MinX <= r.MaxX && r.MinY <= o.MaxY && o.MinY <= r.MaxY
}

// Expand grows the rectangle by d on every side.
func (r Rect) Expand(d float64) Rect {
	return Rect{MinX: r.MinX - d, MinY: r.MinY - d, MaxX: r.MaxX + d, MaxY: r.MaxY + d}
}

// Union returns the smallest rectangle covering both r and o.
func (r Rect) Union(o Rect) Rect {
	return Rect{
		MinX: math.Min(r.MinX, o.MinX),
		MinY: math.Min(r.MinY, o.MinY),
		MaxX: math.Max(r.MaxX, o.MaxX),
		MaxY: math.Max(r.MaxY, o.MaxY),
	}
}

// Ring returns the rectangle corners as a counterclockwise ring.
func (r Rect) Ring() Ring {
	return Ring{
		{r.MinX, r.MinY},
		{r.MaxX, r.MinY},
		{r.MaxX, r.MaxY},
		{r.MinX, r.MaxY},
	}
}

// CellCenter returns the center of the grid cell of the given edge length
// that contains p. Cells are anchored at multiples of size, matching the
// INSPIRE grid layout.
func CellCenter(p Point, size float64) Point {
	return Point{
		X: math.Floor(p.X/size)*size + size/2,
		Y: math.Floor(p.Y/size)*size + size/2,
	}
}
