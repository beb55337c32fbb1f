package geo

import "math"

// ETRS89-LAEA (EPSG:3035) parameters on the GRS80 ellipsoid. This is the
// projection the European census grid is published in.
const (
	grs80A  = 6378137.0
	grs80E2 = 0.006694380022903416

	laeaLat0       = 52 * math.Pi / 180
	laeaLon0       = 10 * math.Pi / 180
	laeaFalseEast  = 4321000.0
	laeaFalseNorth = 3210000.0
)

var (
	laeaE  = math.Sqrt(grs80E2)
	laeaQP = authalicQ(math.Pi / 2)
	laeaB0 = math.Asin(authalicQ(laeaLat0) / laeaQP)
	laeaRq = grs80A * math.Sqrt(laeaQP/2)
	laeaD  = grs80A * math.Cos(laeaLat0) /
		math.Sqrt(1-grs80E2*math.Sin(laeaLat0)*math.Sin(laeaLat0)) /
		(laeaRq * math.Cos(laeaB0))
)

// ProjectLonLat converts geographic ETRS89 coordinates in degrees to
// EPSG:3035 meters, using the ellipsoidal forward equations of the
// Lambert azimuthal equal-area projection (EPSG method 9820). Valid for
// the European extent of the grid.
func ProjectLonLat(lon, lat float64) Point {
	phi := lat * math.Pi / 180
	lam := lon*math.Pi/180 - laeaLon0

	beta := math.Asin(clamp1(authalicQ(phi) / laeaQP))
	sinB, cosB := math.Sincos(beta)
	sinB0, cosB0 := math.Sincos(laeaB0)
	cosL := math.Cos(lam)

	b := laeaRq * math.Sqrt(2/(1+sinB0*sinB+cosB0*cosB*cosL))
	return Point{
		X: laeaFalseEast + b*laeaD*cosB*math.Sin(lam),
		Y: laeaFalseNorth + b/laeaD*(cosB0*sinB-sinB0*cosB*cosL),
	}
}

// authalicQ is Snyder's q, the authalic latitude kernel.
func authalicQ(phi float64) float64 {
	s := math.Sin(phi)
	es := laeaE * s
	return (1 - grs80E2) * (s/(1-grs80E2*s*s) - math.Log((1-es)/(1+es))/(2*laeaE))
}

func clamp1(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
