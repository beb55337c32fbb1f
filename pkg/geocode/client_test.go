package geocode

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider is a canned-response Provider for cascade tests.
type stubProvider struct {
	name      string
	result    *Result
	err       error
	available bool
	calls     atomic.Int32
}

func (s *stubProvider) Name() string    { return s.name }
func (s *stubProvider) Available() bool { return s.available }

func (s *stubProvider) Geocode(_ context.Context, _ AddressInput) (*Result, error) {
	s.calls.Add(1)
	return s.result, s.err
}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func expectCacheMiss(mock pgxmock.PgxPoolIface) {
	mock.ExpectQuery("SELECT latitude, longitude, display_name, quality, provider, matched FROM zensus.geocode_cache").
		WillReturnError(errors.New("no rows in result set"))
}

func expectCacheStore(mock pgxmock.PgxPoolIface) {
	mock.ExpectExec("INSERT INTO zensus.geocode_cache").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
}

func TestCascadeGeocode_FirstProviderWins(t *testing.T) {
	mock := newMockPool(t)
	expectCacheMiss(mock)
	expectCacheStore(mock)

	first := &stubProvider{name: "nominatim", available: true, result: &Result{
		Latitude: 52.5, Longitude: 13.4, Source: "nominatim", Matched: true,
	}}
	second := &stubProvider{name: "photon", available: true, result: &Result{Matched: true}}

	c := NewCascadeClient(mock, []Provider{first, second})
	r, err := c.Geocode(context.Background(), testAddr())
	require.NoError(t, err)
	assert.True(t, r.Matched)
	assert.Equal(t, "nominatim", r.Source)
	assert.Equal(t, int32(1), first.calls.Load())
	assert.Zero(t, second.calls.Load())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCascadeGeocode_FallsThroughOnErrorAndMiss(t *testing.T) {
	mock := newMockPool(t)
	expectCacheMiss(mock)
	expectCacheStore(mock)

	failing := &stubProvider{name: "nominatim", available: true, err: errors.New("boom")}
	missing := &stubProvider{name: "photon", available: true, result: &Result{Matched: false, Source: "photon"}}
	matching := &stubProvider{name: "other", available: true, result: &Result{
		Latitude: 48.1, Longitude: 11.6, Source: "other", Matched: true,
	}}

	c := NewCascadeClient(mock, []Provider{failing, missing, matching})
	r, err := c.Geocode(context.Background(), testAddr())
	require.NoError(t, err)
	assert.True(t, r.Matched)
	assert.Equal(t, "other", r.Source)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCascadeGeocode_SkipsUnavailable(t *testing.T) {
	mock := newMockPool(t)
	expectCacheMiss(mock)
	expectCacheStore(mock)

	unavailable := &stubProvider{name: "nominatim", available: false}
	c := NewCascadeClient(mock, []Provider{unavailable})

	r, err := c.Geocode(context.Background(), testAddr())
	require.NoError(t, err)
	assert.False(t, r.Matched)
	assert.Zero(t, unavailable.calls.Load())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCascadeGeocode_CacheHit(t *testing.T) {
	mock := newMockPool(t)

	lat, lon := 52.5, 13.4
	display := "Unter den Linden 1, Berlin"
	quality := "house"
	provider := "nominatim"
	mock.ExpectQuery("SELECT latitude, longitude, display_name, quality, provider, matched FROM zensus.geocode_cache").
		WillReturnRows(pgxmock.NewRows([]string{"latitude", "longitude", "display_name", "quality", "provider", "matched"}).
			AddRow(&lat, &lon, &display, &quality, &provider, true))
	mock.ExpectExec("UPDATE zensus.geocode_cache SET hit_count").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	untouched := &stubProvider{name: "nominatim", available: true}
	c := NewCascadeClient(mock, []Provider{untouched})

	r, err := c.Geocode(context.Background(), testAddr())
	require.NoError(t, err)
	assert.True(t, r.Matched)
	assert.Equal(t, 52.5, r.Latitude)
	assert.Equal(t, "nominatim", r.Source)
	assert.Zero(t, untouched.calls.Load())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCascadeGeocode_EmptyAddress(t *testing.T) {
	mock := newMockPool(t)

	c := NewCascadeClient(mock, []Provider{
		&stubProvider{name: "nominatim", available: true},
	})
	r, err := c.Geocode(context.Background(), AddressInput{})
	require.NoError(t, err)
	assert.False(t, r.Matched)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCascadeGeocode_CacheDisabled(t *testing.T) {
	mock := newMockPool(t)

	p := &stubProvider{name: "nominatim", available: true, result: &Result{
		Latitude: 52.5, Longitude: 13.4, Source: "nominatim", Matched: true,
	}}
	c := NewCascadeClient(mock, []Provider{p}, WithCacheEnabled(false))

	r, err := c.Geocode(context.Background(), testAddr())
	require.NoError(t, err)
	assert.True(t, r.Matched)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchGeocode(t *testing.T) {
	mock := newMockPool(t)

	p := &stubProvider{name: "nominatim", available: true, result: &Result{
		Latitude: 52.5, Longitude: 13.4, Source: "nominatim", Matched: true,
	}}
	c := NewCascadeClient(mock, []Provider{p},
		WithCacheEnabled(false),
		WithBatchConcurrency(2),
	)

	addrs := []AddressInput{
		{Street: "A 1", City: "Berlin"},
		{Street: "B 2", City: "Hamburg"},
		{Street: "C 3", City: "Munich"},
	}
	results, err := c.BatchGeocode(context.Background(), addrs)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.Matched)
	}
	assert.Equal(t, int32(3), p.calls.Load())
}

func TestBatchGeocode_Empty(t *testing.T) {
	mock := newMockPool(t)
	c := NewCascadeClient(mock, nil)

	results, err := c.BatchGeocode(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestCacheKey_Normalizes(t *testing.T) {
	a := cacheKey("Unter den Linden 1, 10117 Berlin, Germany")
	b := cacheKey("  UNTER DEN LINDEN 1, 10117 Berlin, Germany ")
	c := cacheKey("other address")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
