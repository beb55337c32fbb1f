package stats

import (
	"sort"
)

// ScalarCell is one overlapping cell's input to a scalar group: the
// overlap ratio plus the cell's measured value and density. Nil means
// the fact column was NULL.
type ScalarCell struct {
	GridID  string
	Ratio   float64
	Value   *float64
	Density *float64
}

// CategoryCell is one overlapping cell's input to a categorical group.
// Values runs parallel to the group's Categories.
type CategoryCell struct {
	GridID string
	Ratio  float64
	Values []*float64
}

// ScalarResult is the aggregated output of a scalar group. Value is nil
// when no cell carried usable data; Confidence is then zero.
type ScalarResult struct {
	Value      *float64
	Confidence float64
}

// CategoryResult is the aggregated output of a categorical group.
// Proportions runs parallel to the group's Categories; all entries are
// nil when Confidence is zero, otherwise every entry is set and the
// values sum to one.
type CategoryResult struct {
	Proportions []*float64
	Confidence  float64
}

// Contribution is the audit record of one cell's part in a group's
// sums: weight is what the cell added to the denominator, Value is the
// scalar input (nil for categorical groups).
type Contribution struct {
	GridID  string
	Ratio   float64
	Density float64
	Weight  float64
	Value   *float64
}

// AggregateScalar computes the density-weighted mean of a scalar metric
// over the overlapping cells. Cells with a NULL value, a NULL density
// or a non-positive density contribute nothing. A zero weight sum is a
// normal outcome, not an error: the result is NULL with confidence 0.
func AggregateScalar(cells []ScalarCell) (ScalarResult, []Contribution) {
	sort.Slice(cells, func(i, j int) bool { return cells[i].GridID < cells[j].GridID })

	var num, den float64
	var traces []Contribution
	for _, c := range cells {
		if c.Value == nil || c.Density == nil || *c.Density <= 0 {
			continue
		}
		w := c.Ratio * *c.Density
		num += w * *c.Value
		den += w
		traces = append(traces, Contribution{
			GridID:  c.GridID,
			Ratio:   c.Ratio,
			Density: *c.Density,
			Weight:  w,
			Value:   c.Value,
		})
	}

	if den <= 0 {
		return ScalarResult{}, traces
	}
	v := num / den
	return ScalarResult{Value: &v, Confidence: den}, traces
}

// AggregateCategories computes the weighted share of each category over
// the overlapping cells. The normalization denominator is the weighted
// sum of the observed categories themselves, never an official declared
// total, so the proportions always close to one. A cell whose
// categories are all NULL is excluded outright; a NULL category inside
// an otherwise populated cell counts as absent, not as zero buildings
// of known type.
func AggregateCategories(cells []CategoryCell, categories int) (CategoryResult, []Contribution) {
	sort.Slice(cells, func(i, j int) bool { return cells[i].GridID < cells[j].GridID })

	weighted := make([]float64, categories)
	var den float64
	var traces []Contribution
	for _, c := range cells {
		total := 0.0
		observed := false
		for _, v := range c.Values {
			if v != nil {
				total += *v
				observed = true
			}
		}
		if !observed {
			continue
		}

		for i, v := range c.Values {
			if i >= categories {
				break
			}
			if v != nil {
				weighted[i] += c.Ratio * *v
			}
		}
		den += c.Ratio * total
		traces = append(traces, Contribution{
			GridID:  c.GridID,
			Ratio:   c.Ratio,
			Density: total,
			Weight:  c.Ratio * total,
		})
	}

	result := CategoryResult{Proportions: make([]*float64, categories)}
	if den <= 0 {
		return result, traces
	}
	result.Confidence = den
	for i := range weighted {
		p := weighted[i] / den
		result.Proportions[i] = &p
	}
	return result, traces
}
