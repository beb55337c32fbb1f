package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProjectLonLatFalseOrigin(t *testing.T) {
	p := ProjectLonLat(10, 52)
	assert.InDelta(t, 4321000.0, p.X, 1e-6)
	assert.InDelta(t, 3210000.0, p.Y, 1e-6)
}

func TestProjectLonLatSymmetry(t *testing.T) {
	east := ProjectLonLat(10.5, 52)
	west := ProjectLonLat(9.5, 52)
	assert.InDelta(t, east.X-laeaFalseEast, laeaFalseEast-west.X, 1e-6)
	assert.InDelta(t, east.Y, west.Y, 1e-6)
}

func TestProjectLonLatScale(t *testing.T) {
	// One degree of latitude along the central meridian is about 111.3 km,
	// one degree of longitude at 52N about 68.7 km.
	a := ProjectLonLat(10, 52)
	b := ProjectLonLat(10, 53)
	assert.InDelta(t, 111280, b.Y-a.Y, 500)

	c := ProjectLonLat(11, 52)
	assert.InDelta(t, 68680, c.X-a.X, 500)
}

func TestProjectLonLatMonotonic(t *testing.T) {
	p1 := ProjectLonLat(13.4, 52.5)
	p2 := ProjectLonLat(13.5, 52.5)
	p3 := ProjectLonLat(13.4, 52.6)
	assert.Greater(t, p2.X, p1.X)
	assert.Greater(t, p3.Y, p1.Y)
}

func TestProjectLonLatEqualArea(t *testing.T) {
	// The projection must preserve areas: a small geographic quad projects
	// to a polygon whose planar area matches the ellipsoidal area
	// dLam * a^2/2 * (q(lat2) - q(lat1)).
	lon1, lon2 := 7.0, 7.01
	lat1, lat2 := 50.0, 50.01

	ring := Ring{
		ProjectLonLat(lon1, lat1),
		ProjectLonLat(lon2, lat1),
		ProjectLonLat(lon2, lat2),
		ProjectLonLat(lon1, lat2),
	}

	dLam := (lon2 - lon1) * math.Pi / 180
	truth := dLam * grs80A * grs80A / 2 *
		(authalicQ(lat2*math.Pi/180) - authalicQ(lat1*math.Pi/180))

	assert.InEpsilon(t, truth, ring.Area(), 1e-5)
}
