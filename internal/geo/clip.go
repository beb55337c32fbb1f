package geo

import "math"

// ClipRing clips the subject ring to a convex clip ring using the
// Sutherland-Hodgman algorithm. The clip ring must wind counterclockwise;
// the subject may wind either way. Returns nil when nothing remains.
func ClipRing(subject, clip Ring) Ring {
	if len(subject) < 3 || len(clip) < 3 {
		return nil
	}
	output := make(Ring, len(subject))
	copy(output, subject)

	n := len(clip)
	for i := 0; i < n; i++ {
		if len(output) == 0 {
			return nil
		}
		edgeStart := clip[i]
		edgeEnd := clip[(i+1)%n]
		input := output
		output = make(Ring, 0, len(input))

		for j := 0; j < len(input); j++ {
			current := input[j]
			next := input[(j+1)%len(input)]
			curInside := insideEdge(current, edgeStart, edgeEnd)
			nextInside := insideEdge(next, edgeStart, edgeEnd)

			switch {
			case curInside && nextInside:
				output = append(output, next)
			case curInside && !nextInside:
				if ix, ok := lineIntersection(current, next, edgeStart, edgeEnd); ok {
					output = append(output, ix)
				}
			case !curInside && nextInside:
				if ix, ok := lineIntersection(current, next, edgeStart, edgeEnd); ok {
					output = append(output, ix)
				}
				output = append(output, next)
			}
		}
	}
	if len(output) < 3 {
		return nil
	}
	return output
}

// insideEdge reports whether p is on the inside (left) of the directed
// edge from a to b.
func insideEdge(p, a, b Point) bool {
	return (b.X-a.X)*(p.Y-a.Y)-(b.Y-a.Y)*(p.X-a.X) >= 0
}

// lineIntersection returns the intersection point of lines (p1,p2) and
// (p3,p4).
func lineIntersection(p1, p2, p3, p4 Point) (Point, bool) {
	d := (p1.X-p2.X)*(p3.Y-p4.Y) - (p1.Y-p2.Y)*(p3.X-p4.X)
	if math.Abs(d) < 1e-12 {
		return Point{}, false
	}
	t := ((p1.X-p3.X)*(p3.Y-p4.Y) - (p1.Y-p3.Y)*(p3.X-p4.X)) / d
	return Point{
		X: p1.X + t*(p2.X-p1.X),
		Y: p1.Y + t*(p2.Y-p1.Y),
	}, true
}

// IntersectionArea returns the area of the polygon clipped to r. Holes
// clipped to r are subtracted, which is exact because the clip region is
// convex.
func (p Polygon) IntersectionArea(r Rect) float64 {
	clip := r.Ring()
	a := ClipRing(p.Exterior, clip).Area()
	for _, h := range p.Holes {
		a -= ClipRing(h, clip).Area()
	}
	if a < 0 {
		return 0
	}
	return a
}

// IntersectionArea returns the summed intersection area of all parts
// with r.
func (g Geometry) IntersectionArea(r Rect) float64 {
	var a float64
	for _, p := range g.Polygons {
		if !p.Bounds().Intersects(r) {
			continue
		}
		a += p.IntersectionArea(r)
	}
	return a
}

// OverlapRatio returns the share of cell covered by g, in [0, 1].
func OverlapRatio(g Geometry, cell Rect) float64 {
	ca := cell.Area()
	if ca <= 0 {
		return 0
	}
	ratio := g.IntersectionArea(cell) / ca
	if ratio > 1 {
		return 1
	}
	return ratio
}
