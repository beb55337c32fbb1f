package shapefile

import (
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LW1989/red-data-database/internal/geo"
)

// writeTestShapefile creates a shapefile with an id attribute and two
// square polygon records.
func writeTestShapefile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.shp")

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)

	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("ID", 32),
		shp.StringField("NAME", 32),
	}))

	squares := []struct {
		id   string
		name string
		x, y float64
	}{
		{"A_1", "first", 4341200, 2691300},
		{"A_2", "", 4341300, 2691300},
	}
	for i, sq := range squares {
		poly := &shp.Polygon{
			NumParts: 1,
			Parts:    []int32{0},
			Points: []shp.Point{
				{X: sq.x, Y: sq.y},
				{X: sq.x, Y: sq.y + 100},
				{X: sq.x + 100, Y: sq.y + 100},
				{X: sq.x + 100, Y: sq.y},
				{X: sq.x, Y: sq.y},
			},
		}
		w.Write(poly)
		require.NoError(t, w.WriteAttribute(i, 0, sq.id))
		require.NoError(t, w.WriteAttribute(i, 1, sq.name))
	}
	w.Close()
	return path
}

func TestFileAttrAccess(t *testing.T) {
	path := writeTestShapefile(t)

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	assert.True(t, f.HasField("id"))
	assert.True(t, f.HasField("ID"))
	assert.False(t, f.HasField("missing"))

	var ids []string
	var count int
	for f.Next() {
		count++
		ids = append(ids, f.Attr("id"))
		require.NotNil(t, f.Shape())
	}
	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"A_1", "A_2"}, ids)
}

func TestFileAttr_MissingField(t *testing.T) {
	path := writeTestShapefile(t)

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	require.True(t, f.Next())
	assert.Equal(t, "", f.Attr("missing"))
	assert.Equal(t, "", f.Attr("name"))
}

func TestEncodePolygon_Roundtrip(t *testing.T) {
	poly := &shp.Polygon{
		NumParts: 1,
		Parts:    []int32{0},
		Points: []shp.Point{
			{X: 0, Y: 0},
			{X: 0, Y: 100},
			{X: 100, Y: 100},
			{X: 100, Y: 0},
			{X: 0, Y: 0},
		},
	}

	data, err := EncodePolygon(poly, 3035)
	require.NoError(t, err)
	require.NotNil(t, data)

	g, err := geo.FromEWKB(data)
	require.NoError(t, err)
	assert.InDelta(t, 10000.0, g.Area(), 1e-6)
}

func TestEncodePolygon_MultiPart(t *testing.T) {
	poly := &shp.Polygon{
		NumParts: 2,
		Parts:    []int32{0, 5},
		Points: []shp.Point{
			{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 0},
			{X: 20, Y: 0}, {X: 20, Y: 10}, {X: 30, Y: 10}, {X: 30, Y: 0}, {X: 20, Y: 0},
		},
	}

	data, err := EncodePolygon(poly, 3035)
	require.NoError(t, err)
	require.NotNil(t, data)

	g, err := geo.FromEWKB(data)
	require.NoError(t, err)
	assert.Len(t, g.Polygons, 2)
	assert.InDelta(t, 200.0, g.Area(), 1e-6)
}

func TestEncodePolygon_Nil(t *testing.T) {
	data, err := EncodePolygon(nil, 3035)
	require.NoError(t, err)
	assert.Nil(t, data)

	data, err = EncodePolygon(&shp.Polygon{}, 3035)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestEncodePoint(t *testing.T) {
	data, err := EncodePoint(4341250, 2691350, 3035)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
