// Package geocode resolves German addresses to coordinates via
// Nominatim (primary) and Photon (fallback), with a Postgres-backed
// cache in front of both.
package geocode

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LW1989/red-data-database/internal/db"
)

// Client geocodes addresses.
type Client interface {
	// Geocode geocodes a single address.
	Geocode(ctx context.Context, addr AddressInput) (*Result, error)

	// BatchGeocode geocodes multiple addresses.
	BatchGeocode(ctx context.Context, addrs []AddressInput) ([]Result, error)
}

// AddressInput represents an address to geocode.
type AddressInput struct {
	ID       string // Optional identifier for batch correlation
	Street   string
	PostCode string
	City     string
}

// oneLine formats the address as a single free-form query. The country
// suffix keeps ambiguous city names from matching abroad.
func (a AddressInput) oneLine() string {
	var parts []string
	if s := strings.TrimSpace(a.Street); s != "" {
		parts = append(parts, s)
	}
	locality := strings.TrimSpace(strings.TrimSpace(a.PostCode) + " " + strings.TrimSpace(a.City))
	if locality != "" {
		parts = append(parts, locality)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ", ") + ", Germany"
}

// Result holds the geocoding output for an address.
type Result struct {
	Latitude    float64
	Longitude   float64
	Source      string // "nominatim", "photon" or "cache"
	Quality     string // provider match class, e.g. "building", "street"
	DisplayName string
	Matched     bool
}

// CascadeClient tries geocode providers in order until one matches.
// Results, including non-matches, are cached so repeated backfill runs
// do not re-query the public endpoints.
type CascadeClient struct {
	providers        []Provider
	pool             db.Pool
	cacheEnabled     bool
	cacheTTLDays     int
	cacheTable       string
	batchConcurrency int
}

// CascadeOption configures the CascadeClient.
type CascadeOption func(*CascadeClient)

// WithCacheEnabled enables or disables the Postgres cache.
func WithCacheEnabled(enabled bool) CascadeOption {
	return func(c *CascadeClient) {
		c.cacheEnabled = enabled
	}
}

// WithCacheTTLDays sets the cache TTL in days. Zero means no expiry.
func WithCacheTTLDays(days int) CascadeOption {
	return func(c *CascadeClient) {
		c.cacheTTLDays = days
	}
}

// WithCacheTable overrides the cache table name.
func WithCacheTable(table string) CascadeOption {
	return func(c *CascadeClient) {
		c.cacheTable = table
	}
}

// WithBatchConcurrency sets the max parallel calls for BatchGeocode.
func WithBatchConcurrency(n int) CascadeOption {
	return func(c *CascadeClient) {
		if n > 0 {
			c.batchConcurrency = n
		}
	}
}

// NewCascadeClient creates a CascadeClient that tries providers in
// order.
func NewCascadeClient(pool db.Pool, providers []Provider, opts ...CascadeOption) *CascadeClient {
	c := &CascadeClient{
		providers:        providers,
		pool:             pool,
		cacheEnabled:     true,
		cacheTable:       "zensus.geocode_cache",
		batchConcurrency: 4,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Geocode implements Client by trying each provider in order.
func (c *CascadeClient) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	address := addr.oneLine()
	if address == "" {
		return &Result{Matched: false, Source: "cascade"}, nil
	}
	key := cacheKey(address)

	if c.cacheEnabled {
		cached, err := c.checkCache(ctx, key)
		if err == nil && cached != nil {
			return cached, nil
		}
	}

	for _, p := range c.providers {
		if !p.Available() {
			continue
		}
		result, err := p.Geocode(ctx, addr)
		if err != nil {
			zap.L().Debug("cascade: provider error, trying next",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			continue
		}
		if result != nil && result.Matched {
			if c.cacheEnabled {
				_ = c.storeCache(ctx, key, address, result)
			}
			return result, nil
		}
	}

	// All providers missed. Cache the non-match so the address is not
	// re-queried on the next backfill run.
	noMatch := &Result{Matched: false, Source: "cascade"}
	if c.cacheEnabled {
		_ = c.storeCache(ctx, key, address, noMatch)
	}
	return noMatch, nil
}

// BatchGeocode implements Client by geocoding addresses in parallel.
// Individual failures come back as non-matches; they never fail the
// batch.
func (c *CascadeClient) BatchGeocode(ctx context.Context, addrs []AddressInput) ([]Result, error) {
	if len(addrs) == 0 {
		return nil, nil
	}

	for i := range addrs {
		if addrs[i].ID == "" {
			addrs[i].ID = fmt.Sprintf("%d", i)
		}
	}

	results := make([]Result, len(addrs))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.batchConcurrency)

	for i, addr := range addrs {
		eg.Go(func() error {
			r, gcErr := c.Geocode(gCtx, addr)
			if gcErr != nil || r == nil {
				results[i] = Result{Matched: false, Source: "cascade"}
				return nil //nolint:nilerr // individual geocode failures don't fail the batch
			}
			results[i] = *r
			return nil
		})
	}

	_ = eg.Wait()
	return results, nil
}
