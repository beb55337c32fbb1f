// Package stats computes per-property weighted statistics from the 100m
// census grid: scalar metrics weighted by overlap ratio times density,
// and categorical proportions normalized over the observed category sum.
package stats

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Kind distinguishes the two aggregation strategies.
type Kind string

const (
	// KindScalar averages a measured value, weighted by overlap ratio
	// times a density column.
	KindScalar Kind = "scalar"
	// KindCategorical turns per-category counts into proportions of the
	// observed category sum.
	KindCategorical Kind = "categorical"
)

// Group describes one metric group: the fact table it reads and the
// output columns it produces. Name doubles as the output column prefix
// for categorical groups.
type Group struct {
	Name          string   `yaml:"name"`
	Kind          Kind     `yaml:"kind"`
	Table         string   `yaml:"table"`
	ValueColumn   string   `yaml:"value_column,omitempty"`
	DensityColumn string   `yaml:"density_column,omitempty"`
	Categories    []string `yaml:"categories,omitempty"`
	OutputValue   string   `yaml:"output_value,omitempty"`
	Confidence    string   `yaml:"confidence,omitempty"`
}

// OutputColumns returns the group's result columns in table order:
// the value columns first, the confidence column last.
func (g Group) OutputColumns() []string {
	if g.Kind == KindScalar {
		return []string{g.OutputValue, g.Confidence}
	}
	cols := make([]string, 0, len(g.Categories)+1)
	for _, cat := range g.Categories {
		cols = append(cols, g.CategoryColumn(cat))
	}
	return append(cols, g.Confidence)
}

// CategoryColumn returns the output column for one category.
func (g Group) CategoryColumn(category string) string {
	return fmt.Sprintf("%s_%s_pct", g.Name, category)
}

// Registry is the ordered set of metric groups a stats run computes.
type Registry struct {
	Groups []Group
	byName map[string]*Group
}

// NewRegistry validates the groups and builds the indexed registry.
func NewRegistry(groups []Group) (*Registry, error) {
	if len(groups) == 0 {
		return nil, eris.New("stats: registry needs at least one metric group")
	}

	r := &Registry{Groups: groups, byName: make(map[string]*Group, len(groups))}
	seen := make(map[string]string)
	for i := range r.Groups {
		g := &r.Groups[i]
		if g.Name == "" {
			return nil, eris.New("stats: metric group without a name")
		}
		if _, dup := r.byName[g.Name]; dup {
			return nil, eris.Errorf("stats: duplicate metric group %q", g.Name)
		}
		if g.Table == "" {
			return nil, eris.Errorf("stats: group %q has no fact table", g.Name)
		}

		switch g.Kind {
		case KindScalar:
			if g.ValueColumn == "" || g.DensityColumn == "" {
				return nil, eris.Errorf("stats: scalar group %q needs value_column and density_column", g.Name)
			}
			if g.OutputValue == "" {
				return nil, eris.Errorf("stats: scalar group %q needs output_value", g.Name)
			}
			if g.Confidence == "" {
				g.Confidence = g.Name + "_total_flats"
			}
		case KindCategorical:
			if len(g.Categories) == 0 {
				return nil, eris.Errorf("stats: categorical group %q has no categories", g.Name)
			}
			if g.Confidence == "" {
				g.Confidence = g.Name + "_total_buildings"
			}
		default:
			return nil, eris.Errorf("stats: group %q has unknown kind %q", g.Name, g.Kind)
		}

		for _, col := range g.OutputColumns() {
			if owner, dup := seen[col]; dup {
				return nil, eris.Errorf("stats: output column %q claimed by both %q and %q", col, owner, g.Name)
			}
			seen[col] = g.Name
		}
		r.byName[g.Name] = g
	}
	return r, nil
}

// ByName returns the named group, or nil.
func (r *Registry) ByName(name string) *Group {
	return r.byName[name]
}

// Columns returns every output column across all groups, in table order.
func (r *Registry) Columns() []string {
	var cols []string
	for _, g := range r.Groups {
		cols = append(cols, g.OutputColumns()...)
	}
	return cols
}

// DefaultRegistry returns the four census metric groups the result table
// is built around: average net cold rent plus the heating type, energy
// source and construction year distributions.
func DefaultRegistry() *Registry {
	r, err := NewRegistry([]Group{
		{
			Name:          "rent",
			Kind:          KindScalar,
			Table:         "zensus.fact_zensus_100m_durchschnittliche_nettokaltmiete_und_anzahl_der_wohnungen",
			ValueColumn:   "durchschnmieteqm",
			DensityColumn: "anzahlwohnungen",
			OutputValue:   "weighted_avg_rent_per_sqm",
		},
		{
			Name:  "heating",
			Kind:  KindCategorical,
			Table: "zensus.fact_zensus_100m_heizungsart",
			Categories: []string{
				"fernheizung",
				"etagenheizung",
				"blockheizung",
				"zentralheizung",
				"einzel_mehrraumoefen",
				"keine_heizung",
			},
		},
		{
			Name:  "energy",
			Kind:  KindCategorical,
			Table: "zensus.fact_zensus_100m_energietraeger",
			Categories: []string{
				"gas",
				"heizoel",
				"holz_holzpellets",
				"biomasse_biogas",
				"solar_geothermie_waermepumpen",
				"strom",
				"kohle",
				"fernwaerme",
				"kein_energietraeger",
			},
		},
		{
			Name:  "baujahr",
			Kind:  KindCategorical,
			Table: "zensus.fact_zensus_100m_gebaeude_nach_baujahr_in_mikrozensus_klassen",
			Categories: []string{
				"vor1919",
				"a1919bis1948",
				"a1949bis1978",
				"a1979bis1990",
				"a1991bis2000",
				"a2001bis2010",
				"a2011bis2019",
				"a2020undspaeter",
			},
		},
	})
	if err != nil {
		panic(err)
	}
	return r
}

// LoadRegistry reads a metric registry from a YAML file. The file can
// repoint groups at other fact tables or run a subset of groups; output
// columns still have to exist in the result table.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "stats: read groups file %s", path)
	}

	var wrapper struct {
		Groups []Group `yaml:"groups"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrapf(err, "stats: parse groups file %s", path)
	}

	reg, err := NewRegistry(wrapper.Groups)
	if err != nil {
		return nil, eris.Wrapf(err, "stats: invalid groups file %s", path)
	}
	return reg, nil
}
