package geo

import "math"

// Ring is a closed sequence of vertices. The closing edge from the last
// vertex back to the first is implicit.
type Ring []Point

// SignedArea returns the shoelace area, positive for counterclockwise
// winding.
func (r Ring) SignedArea() float64 {
	n := len(r)
	if n < 3 {
		return 0
	}
	area := 0.0
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area += r[i].X * r[j].Y
		area -= r[j].X * r[i].Y
	}
	return area / 2
}

// Area returns the unsigned ring area.
func (r Ring) Area() float64 {
	return math.Abs(r.SignedArea())
}

// Bounds returns the axis-aligned bounding box of the ring.
func (r Ring) Bounds() Rect {
	if len(r) == 0 {
		return Rect{}
	}
	b := Rect{MinX: r[0].X, MinY: r[0].Y, MaxX: r[0].X, MaxY: r[0].Y}
	for _, p := range r[1:] {
		b.MinX = math.Min(b.MinX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MaxY = math.Max(b.MaxY, p.Y)
	}
	return b
}

// Centroid returns the area-weighted centroid. Degenerate rings fall
// back to the vertex average.
func (r Ring) Centroid() Point {
	n := len(r)
	if n == 0 {
		return Point{}
	}
	a := r.SignedArea()
	if math.Abs(a) < 1e-12 {
		var sx, sy float64
		for _, p := range r {
			sx += p.X
			sy += p.Y
		}
		return Point{X: sx / float64(n), Y: sy / float64(n)}
	}
	var cx, cy float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		cross := r[i].X*r[j].Y - r[j].X*r[i].Y
		cx += (r[i].X + r[j].X) * cross
		cy += (r[i].Y + r[j].Y) * cross
	}
	f := 1 / (6 * a)
	return Point{X: cx * f, Y: cy * f}
}

// Polygon is one exterior ring with optional holes.
type Polygon struct {
	Exterior Ring
	Holes    []Ring
}

// Area returns the exterior area minus the hole areas.
func (p Polygon) Area() float64 {
	a := p.Exterior.Area()
	for _, h := range p.Holes {
		a -= h.Area()
	}
	if a < 0 {
		return 0
	}
	return a
}

// Bounds returns the bounding box of the exterior ring.
func (p Polygon) Bounds() Rect { return p.Exterior.Bounds() }

// Centroid returns the centroid of the exterior ring.
func (p Polygon) Centroid() Point { return p.Exterior.Centroid() }

// Geometry is a polygonal footprint with one or more parts.
type Geometry struct {
	Polygons []Polygon
}

// IsEmpty reports whether the geometry has no usable part.
func (g Geometry) IsEmpty() bool {
	for _, p := range g.Polygons {
		if len(p.Exterior) >= 3 {
			return false
		}
	}
	return true
}

// Area returns the summed part areas.
func (g Geometry) Area() float64 {
	var a float64
	for _, p := range g.Polygons {
		a += p.Area()
	}
	return a
}

// Bounds returns the bounding box over all parts.
func (g Geometry) Bounds() Rect {
	var b Rect
	first := true
	for _, p := range g.Polygons {
		if len(p.Exterior) == 0 {
			continue
		}
		if first {
			b = p.Bounds()
			first = false
			continue
		}
		b = b.Union(p.Bounds())
	}
	return b
}
