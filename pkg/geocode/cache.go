package geocode

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// cacheKey returns SHA-256 hex of the lowercased address.
func cacheKey(address string) string {
	normalized := strings.ToLower(strings.TrimSpace(address))
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", h)
}

// checkCache looks up a cached geocode result, respecting TTL if
// configured. Non-matches come back too, so the caller skips the
// providers either way. A hit bumps the row's hit counter.
func (c *CascadeClient) checkCache(ctx context.Context, key string) (*Result, error) {
	var lat, lon *float64
	var displayName, quality, provider *string
	var matched bool

	query := fmt.Sprintf(
		"SELECT latitude, longitude, display_name, quality, provider, matched FROM %s WHERE address_hash = $1",
		c.cacheTable,
	)
	if c.cacheTTLDays > 0 {
		query += fmt.Sprintf(" AND geocoded_at > now() - interval '%d days'", c.cacheTTLDays)
	}

	row := c.pool.QueryRow(ctx, query, key)
	if err := row.Scan(&lat, &lon, &displayName, &quality, &provider, &matched); err != nil {
		return nil, err // no row or scan error, caller falls through to providers
	}

	r := &Result{Source: "cache", Matched: matched}
	if lat != nil {
		r.Latitude = *lat
	}
	if lon != nil {
		r.Longitude = *lon
	}
	if displayName != nil {
		r.DisplayName = *displayName
	}
	if quality != nil {
		r.Quality = *quality
	}
	if provider != nil {
		r.Source = *provider
	}

	_, err := c.pool.Exec(ctx,
		fmt.Sprintf("UPDATE %s SET hit_count = hit_count + 1 WHERE address_hash = $1", c.cacheTable),
		key,
	)
	if err != nil {
		zap.L().Debug("geocode cache hit count update failed", zap.Error(err))
	}

	keyPrefix := key
	if len(keyPrefix) > 12 {
		keyPrefix = keyPrefix[:12]
	}
	zap.L().Debug("geocode cache hit", zap.String("key", keyPrefix), zap.Bool("matched", matched))
	return r, nil
}

// storeCache inserts a geocode result (match or non-match) into the
// cache. Re-storing an address bumps its hit counter.
func (c *CascadeClient) storeCache(ctx context.Context, key, address string, result *Result) error {
	query := fmt.Sprintf(`
		INSERT INTO %s AS gc (address_hash, address, latitude, longitude, display_name, quality, provider, matched, hit_count, geocoded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, now())
		ON CONFLICT (address_hash) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			display_name = EXCLUDED.display_name,
			quality = EXCLUDED.quality,
			provider = EXCLUDED.provider,
			matched = EXCLUDED.matched,
			hit_count = gc.hit_count + 1,
			geocoded_at = now()`, c.cacheTable)

	var lat, lon any
	if result.Matched {
		lat, lon = result.Latitude, result.Longitude
	}

	_, err := c.pool.Exec(ctx, query,
		key, address, lat, lon,
		nilIfEmpty(result.DisplayName), nilIfEmpty(result.Quality), nilIfEmpty(result.Source),
		result.Matched,
	)
	if err != nil {
		return eris.Wrap(err, "geocode: store cache")
	}
	return nil
}

// nilIfEmpty returns nil for empty strings, allowing NULL storage.
func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
