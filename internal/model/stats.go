package model

import (
	"encoding/json"
	"time"
)

// RunStatus represents the state of a stats run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// WeightedStatistic is one row of analytics.fact_lwu_weighted_stats.
// Values maps output column names to their values; a nil entry is a SQL
// NULL. The column set is driven by the active metric registry, so the
// struct stays schema-agnostic.
type WeightedStatistic struct {
	PropertyID string
	Values     map[string]*float64
	CreatedAt  time.Time
}

// Value returns the named column, or nil when the column is absent or
// NULL.
func (w *WeightedStatistic) Value(column string) *float64 {
	if w.Values == nil {
		return nil
	}
	return w.Values[column]
}

// MarshalJSON flattens Values into the top-level object next to the
// property id, which is the shape the HTTP API serves.
func (w WeightedStatistic) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(w.Values)+2)
	for col, v := range w.Values {
		if v != nil {
			out[col] = *v
		} else {
			out[col] = nil
		}
	}
	out["property_id"] = w.PropertyID
	if !w.CreatedAt.IsZero() {
		out["created_at"] = w.CreatedAt
	}
	return json.Marshal(out)
}

// RowFailure records a property whose result row could not be persisted.
type RowFailure struct {
	PropertyID string `json:"property_id"`
	Err        string `json:"error"`
}

// AuditTrace is one contributing overlap in the audit journal: enough to
// recompute the group's weighted sums by hand. Value carries the scalar
// input value and is nil for categorical groups.
type AuditTrace struct {
	PropertyID string   `json:"property_id"`
	GridID     string   `json:"grid_id"`
	Group      string   `json:"group"`
	Ratio      float64  `json:"ratio"`
	Density    float64  `json:"density"`
	Weight     float64  `json:"weight"`
	Value      *float64 `json:"value,omitempty"`
}

// RunSummary aggregates the outcome of a stats run. There is no single
// pass/fail: a run that writes every property with null statistics is a
// successful run over sparse data.
type RunSummary struct {
	Properties   int            `json:"properties"`
	Processed    int            `json:"processed"`
	NoOverlap    int            `json:"no_overlap"`
	CellsMatched int            `json:"cells_matched"`
	NullGroups   map[string]int `json:"null_groups,omitempty"`
	RowsWritten  int            `json:"rows_written"`
	Failures     []RowFailure   `json:"failures,omitempty"`
}

// AddNullGroup counts a property that came out with zero confidence for
// the named metric group.
func (s *RunSummary) AddNullGroup(group string) {
	if s.NullGroups == nil {
		s.NullGroups = make(map[string]int)
	}
	s.NullGroups[group]++
}

// StatsRun is the journal record of one stats run.
type StatsRun struct {
	ID         string     `json:"id"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Summary    RunSummary `json:"summary"`
}

// Coverage reports how many stored statistics carry data per metric
// group, next to the total property count.
type Coverage struct {
	Properties int            `json:"properties"`
	Rows       int            `json:"rows"`
	WithData   map[string]int `json:"with_data"`
}
