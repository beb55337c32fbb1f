package stats

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryShape(t *testing.T) {
	reg := DefaultRegistry()

	require.Len(t, reg.Groups, 4)
	assert.Equal(t, "rent", reg.Groups[0].Name)
	assert.Equal(t, KindScalar, reg.Groups[0].Kind)
	assert.Equal(t, "heating", reg.Groups[1].Name)
	assert.Equal(t, "energy", reg.Groups[2].Name)
	assert.Equal(t, "baujahr", reg.Groups[3].Name)

	// 2 rent + 7 heating + 10 energy + 9 baujahr output columns.
	cols := reg.Columns()
	require.Len(t, cols, 28)
	assert.Equal(t, "weighted_avg_rent_per_sqm", cols[0])
	assert.Equal(t, "rent_total_flats", cols[1])
	assert.Equal(t, "heating_fernheizung_pct", cols[2])
	assert.Equal(t, "heating_total_buildings", cols[8])
	assert.Equal(t, "energy_gas_pct", cols[9])
	assert.Equal(t, "energy_fernwaerme_pct", cols[16])
	assert.Equal(t, "energy_total_buildings", cols[18])
	assert.Equal(t, "baujahr_vor1919_pct", cols[19])
	assert.Equal(t, "baujahr_a2020undspaeter_pct", cols[26])
	assert.Equal(t, "baujahr_total_buildings", cols[27])
}

func TestDefaultRegistryTables(t *testing.T) {
	reg := DefaultRegistry()

	rent := reg.ByName("rent")
	require.NotNil(t, rent)
	assert.Equal(t, "zensus.fact_zensus_100m_durchschnittliche_nettokaltmiete_und_anzahl_der_wohnungen", rent.Table)
	assert.Equal(t, "durchschnmieteqm", rent.ValueColumn)
	assert.Equal(t, "anzahlwohnungen", rent.DensityColumn)

	heating := reg.ByName("heating")
	require.NotNil(t, heating)
	assert.Equal(t, "zensus.fact_zensus_100m_heizungsart", heating.Table)
	assert.Len(t, heating.Categories, 6)

	assert.Len(t, reg.ByName("energy").Categories, 9)
	assert.Len(t, reg.ByName("baujahr").Categories, 8)
	assert.Nil(t, reg.ByName("nope"))
}

func TestNewRegistryValidation(t *testing.T) {
	tests := []struct {
		name   string
		groups []Group
		want   string
	}{
		{"empty", nil, "at least one"},
		{"unnamed", []Group{{Kind: KindScalar, Table: "t"}}, "without a name"},
		{
			"duplicate",
			[]Group{
				{Name: "x", Kind: KindCategorical, Table: "t", Categories: []string{"a"}},
				{Name: "x", Kind: KindCategorical, Table: "t2", Categories: []string{"b"}},
			},
			"duplicate",
		},
		{"no table", []Group{{Name: "x", Kind: KindScalar}}, "no fact table"},
		{"scalar missing columns", []Group{{Name: "x", Kind: KindScalar, Table: "t"}}, "value_column"},
		{
			"scalar missing output",
			[]Group{{Name: "x", Kind: KindScalar, Table: "t", ValueColumn: "v", DensityColumn: "d"}},
			"output_value",
		},
		{"categorical empty", []Group{{Name: "x", Kind: KindCategorical, Table: "t"}}, "no categories"},
		{"bad kind", []Group{{Name: "x", Kind: "median", Table: "t"}}, "unknown kind"},
		{
			"column collision",
			[]Group{
				{Name: "a", Kind: KindCategorical, Table: "t", Categories: []string{"x"}, Confidence: "shared"},
				{Name: "b", Kind: KindCategorical, Table: "t", Categories: []string{"y"}, Confidence: "shared"},
			},
			"claimed by both",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.groups)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewRegistryDefaultsConfidenceColumn(t *testing.T) {
	reg, err := NewRegistry([]Group{
		{Name: "rent", Kind: KindScalar, Table: "t", ValueColumn: "v", DensityColumn: "d", OutputValue: "avg"},
		{Name: "heating", Kind: KindCategorical, Table: "t2", Categories: []string{"a"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "rent_total_flats", reg.Groups[0].Confidence)
	assert.Equal(t, "heating_total_buildings", reg.Groups[1].Confidence)
	assert.Equal(t, "heating_a_pct", reg.Groups[1].CategoryColumn("a"))
}

func TestLoadRegistry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "groups.yaml")
	content := `groups:
  - name: heating
    kind: categorical
    table: zensus.fact_zensus_100m_heizungsart_2011
    categories:
      - fernheizung
      - zentralheizung
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	require.Len(t, reg.Groups, 1)
	assert.Equal(t, "zensus.fact_zensus_100m_heizungsart_2011", reg.Groups[0].Table)
	assert.Equal(t, []string{
		"heating_fernheizung_pct",
		"heating_zentralheizung_pct",
		"heating_total_buildings",
	}, reg.Columns())
}

func TestLoadRegistryErrors(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("groups: {not: a list}"), 0o644))
	_, err = LoadRegistry(bad)
	require.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("groups: []"), 0o644))
	_, err = LoadRegistry(empty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one")
}
