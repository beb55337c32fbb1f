package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LW1989/red-data-database/internal/geo"
	"github.com/LW1989/red-data-database/internal/model"
	"github.com/LW1989/red-data-database/internal/store"
	"github.com/LW1989/red-data-database/internal/zensus"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

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

func (m *mockStore) CandidateCells(ctx context.Context, size zensus.GridSize, bounds geo.Rect) ([]model.GridCell, error) {
	args := m.Called(ctx, size, bounds)
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

func fp(v float64) *float64 { return &v }

func doRequest(t *testing.T, st store.Store, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	newRouter(st).ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	st := &mockStore{}
	st.On("Ping", mock.Anything).Return(nil)

	rec := doRequest(t, st, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealth_StoreDown(t *testing.T) {
	st := &mockStore{}
	st.On("Ping", mock.Anything).Return(assertError("down"))

	rec := doRequest(t, st, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetStatisticEndpoint(t *testing.T) {
	st := &mockStore{}
	st.On("GetStatistic", mock.Anything, "p1").Return(&model.WeightedStatistic{
		PropertyID: "p1",
		Values: map[string]*float64{
			"weighted_avg_rent_per_sqm": fp(9.1),
			"rent_total_flats":          nil,
		},
	}, nil)

	rec := doRequest(t, st, "/api/stats/p1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "p1", body["property_id"])
	assert.Equal(t, 9.1, body["weighted_avg_rent_per_sqm"])
	assert.Nil(t, body["rent_total_flats"])
	st.AssertExpectations(t)
}

func TestGetStatisticEndpoint_NotFound(t *testing.T) {
	st := &mockStore{}
	st.On("GetStatistic", mock.Anything, "missing").Return(nil, nil)

	rec := doRequest(t, st, "/api/stats/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListStatisticsEndpoint(t *testing.T) {
	st := &mockStore{}
	st.On("ListStatistics", mock.Anything, store.StatFilter{Limit: 2, Offset: 4}).
		Return([]model.WeightedStatistic{
			{PropertyID: "p1", Values: map[string]*float64{}},
			{PropertyID: "p2", Values: map[string]*float64{}},
		}, nil)

	rec := doRequest(t, st, "/api/stats?limit=2&offset=4")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Limit  int              `json:"limit"`
		Offset int              `json:"offset"`
		Stats  []map[string]any `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Limit)
	assert.Equal(t, 4, body.Offset)
	require.Len(t, body.Stats, 2)
	assert.Equal(t, "p2", body.Stats[1]["property_id"])
	st.AssertExpectations(t)
}

func TestListStatisticsEndpoint_BadLimit(t *testing.T) {
	st := &mockStore{}
	rec := doRequest(t, st, "/api/stats?limit=9999")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummaryEndpoint(t *testing.T) {
	st := &mockStore{}
	st.On("CoverageSummary", mock.Anything).Return(&model.Coverage{
		Properties: 120,
		Rows:       118,
		WithData:   map[string]int{"rent": 97},
	}, nil)

	rec := doRequest(t, st, "/api/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var body model.Coverage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 120, body.Properties)
	assert.Equal(t, 97, body.WithData["rent"])
}

// assertError is a minimal error type for mock expectations.
type assertError string

func (e assertError) Error() string { return string(e) }
