package stats

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/LW1989/red-data-database/internal/model"
	"github.com/LW1989/red-data-database/internal/store"
)

// exportRegistry is a small two-group registry so tests don't drag the
// full default column set around.
func exportRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry([]Group{
		{
			Name:          "rent",
			Kind:          KindScalar,
			Table:         "zensus.fact_rent",
			ValueColumn:   "miete",
			DensityColumn: "wohnungen",
			OutputValue:   "weighted_avg_rent_per_sqm",
		},
		{
			Name:       "heating",
			Kind:       KindCategorical,
			Table:      "zensus.fact_heating",
			Categories: []string{"fernheizung", "zentralheizung"},
		},
	})
	require.NoError(t, err)
	return reg
}

func exportRows() []model.WeightedStatistic {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return []model.WeightedStatistic{
		{
			PropertyID: "p1",
			Values: map[string]*float64{
				"weighted_avg_rent_per_sqm":  fp(8.52),
				"rent_total_flats":           fp(120),
				"heating_fernheizung_pct":    fp(0.75),
				"heating_zentralheizung_pct": fp(0.25),
				"heating_total_buildings":    fp(40),
			},
			CreatedAt: created,
		},
		{
			PropertyID: "p2",
			Values: map[string]*float64{
				"rent_total_flats":        fp(0),
				"heating_total_buildings": fp(0),
			},
			CreatedAt: created,
		},
	}
}

func TestExportCSV(t *testing.T) {
	st := &mockStore{}
	st.On("ListStatistics", mock.Anything, store.StatFilter{Limit: exportPageSize}).
		Return(exportRows(), nil)

	var buf bytes.Buffer
	n, err := NewExporter(st, exportRegistry(t)).ExportCSV(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{
		"property_id",
		"weighted_avg_rent_per_sqm", "rent_total_flats",
		"heating_fernheizung_pct", "heating_zentralheizung_pct", "heating_total_buildings",
		"created_at",
	}, records[0])

	assert.Equal(t, "p1", records[1][0])
	assert.Equal(t, "8.52", records[1][1])
	assert.Equal(t, "0.75", records[1][3])
	assert.Equal(t, "2026-08-01T12:00:00Z", records[1][6])

	// Missing values come out as empty cells, not zeros.
	assert.Equal(t, "p2", records[2][0])
	assert.Equal(t, "", records[2][1])
	assert.Equal(t, "0", records[2][2])

	st.AssertExpectations(t)
}

func TestExportCSV_Paging(t *testing.T) {
	full := make([]model.WeightedStatistic, exportPageSize)
	for i := range full {
		full[i] = model.WeightedStatistic{PropertyID: "p", Values: map[string]*float64{}}
	}

	st := &mockStore{}
	st.On("ListStatistics", mock.Anything, store.StatFilter{Limit: exportPageSize}).
		Return(full, nil).Once()
	st.On("ListStatistics", mock.Anything, store.StatFilter{Limit: exportPageSize, Offset: exportPageSize}).
		Return([]model.WeightedStatistic{}, nil).Once()

	var buf bytes.Buffer
	n, err := NewExporter(st, exportRegistry(t)).ExportCSV(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, exportPageSize, n)
	st.AssertExpectations(t)
}

func TestExportXLSX(t *testing.T) {
	st := &mockStore{}
	st.On("ListStatistics", mock.Anything, store.StatFilter{Limit: exportPageSize}).
		Return(exportRows(), nil)

	var buf bytes.Buffer
	n, err := NewExporter(st, exportRegistry(t)).ExportXLSX(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	file, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, file.Sheets, 1)

	sheet := file.Sheets[0]
	assert.Equal(t, "statistics", sheet.Name)
	require.Equal(t, 3, sheet.MaxRow)
	assert.Equal(t, "property_id", sheet.Cell(0, 0).Value)
	assert.Equal(t, "p1", sheet.Cell(1, 0).Value)

	rent, err := sheet.Cell(1, 1).Float()
	require.NoError(t, err)
	assert.InDelta(t, 8.52, rent, 0.0001)

	// p2 has no rent value: the cell stays empty.
	assert.Equal(t, "", sheet.Cell(2, 1).Value)

	st.AssertExpectations(t)
}
