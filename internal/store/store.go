package store

import (
	"context"

	"github.com/LW1989/red-data-database/internal/geo"
	"github.com/LW1989/red-data-database/internal/model"
	"github.com/LW1989/red-data-database/internal/zensus"
)

// StatFilter pages through stored statistics.
type StatFilter struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Store is the warehouse-side surface of a stats run: reference
// geometry and census facts in, weighted statistics out. The ETL
// loaders write through db.Pool directly; this interface covers what
// the aggregation engine and the serving layer touch.
type Store interface {
	// Reference data
	ListProperties(ctx context.Context) ([]model.Property, error)
	CandidateCells(ctx context.Context, size zensus.GridSize, centers geo.Rect) ([]model.GridCell, error)

	// Census facts
	ScalarFacts(ctx context.Context, table, valueColumn, densityColumn string, year int, gridIDs []string) (map[string]model.ScalarFact, error)
	CategoryFacts(ctx context.Context, table string, columns []string, year int, gridIDs []string) (map[string][]*float64, error)

	// Results
	UpsertStatistics(ctx context.Context, columns []string, rows []model.WeightedStatistic) error
	GetStatistic(ctx context.Context, propertyID string) (*model.WeightedStatistic, error)
	ListStatistics(ctx context.Context, filter StatFilter) ([]model.WeightedStatistic, error)
	CoverageSummary(ctx context.Context) (*model.Coverage, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close()
}

// Journal records stats runs, row failures and audit traces in the
// local run journal. It is advisory: journal errors never abort a run.
type Journal interface {
	CreateRun(ctx context.Context, run *model.StatsRun) error
	FinishRun(ctx context.Context, runID string, status model.RunStatus, summary model.RunSummary) error
	RecordFailure(ctx context.Context, runID string, failure model.RowFailure) error
	AppendTraces(ctx context.Context, runID string, traces []model.AuditTrace) error
}
