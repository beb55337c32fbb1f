package stats

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/LW1989/red-data-database/internal/geo"
	"github.com/LW1989/red-data-database/internal/model"
	"github.com/LW1989/red-data-database/internal/store"
	"github.com/LW1989/red-data-database/internal/zensus"
)

// --- Store mock ---

type mockStore struct {
	mock.Mock
}

var _ store.Store = (*mockStore)(nil)

func (m *mockStore) ListProperties(ctx context.Context) ([]model.Property, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Property), args.Error(1)
}

func (m *mockStore) CandidateCells(ctx context.Context, size zensus.GridSize, centers geo.Rect) ([]model.GridCell, error) {
	args := m.Called(ctx, size, centers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.GridCell), args.Error(1)
}

func (m *mockStore) ScalarFacts(ctx context.Context, table, valueColumn, densityColumn string, year int, gridIDs []string) (map[string]model.ScalarFact, error) {
	args := m.Called(ctx, table, valueColumn, densityColumn, year, gridIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]model.ScalarFact), args.Error(1)
}

func (m *mockStore) CategoryFacts(ctx context.Context, table string, columns []string, year int, gridIDs []string) (map[string][]*float64, error) {
	args := m.Called(ctx, table, columns, year, gridIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]*float64), args.Error(1)
}

func (m *mockStore) UpsertStatistics(ctx context.Context, columns []string, rows []model.WeightedStatistic) error {
	args := m.Called(ctx, columns, rows)
	return args.Error(0)
}

func (m *mockStore) GetStatistic(ctx context.Context, propertyID string) (*model.WeightedStatistic, error) {
	args := m.Called(ctx, propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WeightedStatistic), args.Error(1)
}

func (m *mockStore) ListStatistics(ctx context.Context, filter store.StatFilter) ([]model.WeightedStatistic, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.WeightedStatistic), args.Error(1)
}

func (m *mockStore) CoverageSummary(ctx context.Context) (*model.Coverage, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Coverage), args.Error(1)
}

func (m *mockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Close() {
	m.Called()
}

// --- Journal mock ---

type mockJournal struct {
	mock.Mock
}

var _ store.Journal = (*mockJournal)(nil)

func (m *mockJournal) CreateRun(ctx context.Context, run *model.StatsRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *mockJournal) FinishRun(ctx context.Context, runID string, status model.RunStatus, summary model.RunSummary) error {
	args := m.Called(ctx, runID, status, summary)
	return args.Error(0)
}

func (m *mockJournal) RecordFailure(ctx context.Context, runID string, failure model.RowFailure) error {
	args := m.Called(ctx, runID, failure)
	return args.Error(0)
}

func (m *mockJournal) AppendTraces(ctx context.Context, runID string, traces []model.AuditTrace) error {
	args := m.Called(ctx, runID, traces)
	return args.Error(0)
}

// fp returns a pointer to v, for building nullable fact values.
func fp(v float64) *float64 {
	return &v
}
