package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/LW1989/red-data-database/internal/resilience"
)

// Provider represents a single geocoding backend.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, addr AddressInput) (*Result, error)
	Available() bool
}

// DefaultNominatimURL is the public Nominatim endpoint. Its usage
// policy caps clients at one request per second.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// NominatimProvider geocodes via the Nominatim search API.
type NominatimProvider struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewNominatimProvider creates a NominatimProvider. userAgent is
// required by the Nominatim usage policy; rps values at or below zero
// fall back to the policy limit of 1.
func NewNominatimProvider(baseURL, userAgent string, rps float64) *NominatimProvider {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	if rps <= 0 {
		rps = 1
	}
	return &NominatimProvider{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Name implements Provider.
func (p *NominatimProvider) Name() string { return "nominatim" }

// Available implements Provider.
func (p *NominatimProvider) Available() bool { return p.userAgent != "" }

// nominatimResult is one entry of the Nominatim search response.
type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Class       string `json:"class"`
	Type        string `json:"type"`
}

// Geocode implements Provider.
func (p *NominatimProvider) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	query := addr.oneLine()
	if query == "" {
		return &Result{Matched: false, Source: p.Name()}, nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")
	params.Set("limit", "1")
	reqURL := p.baseURL + "/search?" + params.Encode()

	body, err := fetchJSON(ctx, p.httpClient, p.limiter, reqURL, p.userAgent, p.Name())
	if err != nil {
		return nil, err
	}

	var entries []nominatimResult
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, eris.Wrap(err, "nominatim: decode response")
	}
	if len(entries) == 0 {
		return &Result{Matched: false, Source: p.Name()}, nil
	}

	entry := entries[0]
	lat, latErr := strconv.ParseFloat(entry.Lat, 64)
	lon, lonErr := strconv.ParseFloat(entry.Lon, 64)
	if latErr != nil || lonErr != nil {
		return nil, eris.Errorf("nominatim: malformed coordinates %q/%q", entry.Lat, entry.Lon)
	}

	return &Result{
		Latitude:    lat,
		Longitude:   lon,
		Source:      p.Name(),
		Quality:     entry.Type,
		DisplayName: entry.DisplayName,
		Matched:     true,
	}, nil
}

// DefaultPhotonURL is the public Photon endpoint.
const DefaultPhotonURL = "https://photon.komoot.io"

// PhotonProvider geocodes via the Photon API. Photon needs no API key
// or user agent and serves as the fallback when Nominatim misses.
type PhotonProvider struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewPhotonProvider creates a PhotonProvider.
func NewPhotonProvider(baseURL string, rps float64) *PhotonProvider {
	if baseURL == "" {
		baseURL = DefaultPhotonURL
	}
	if rps <= 0 {
		rps = 1
	}
	return &PhotonProvider{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Name implements Provider.
func (p *PhotonProvider) Name() string { return "photon" }

// Available implements Provider.
func (p *PhotonProvider) Available() bool { return true }

// photonResponse is the GeoJSON feature collection Photon returns.
type photonResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"` // [lon, lat]
		} `json:"geometry"`
		Properties struct {
			Name     string `json:"name"`
			Street   string `json:"street"`
			City     string `json:"city"`
			PostCode string `json:"postcode"`
			OSMValue string `json:"osm_value"`
		} `json:"properties"`
	} `json:"features"`
}

// Geocode implements Provider.
func (p *PhotonProvider) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	query := addr.oneLine()
	if query == "" {
		return &Result{Matched: false, Source: p.Name()}, nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", "1")
	params.Set("lang", "de")
	reqURL := p.baseURL + "/api?" + params.Encode()

	body, err := fetchJSON(ctx, p.httpClient, p.limiter, reqURL, "", p.Name())
	if err != nil {
		return nil, err
	}

	var resp photonResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "photon: decode response")
	}
	if len(resp.Features) == 0 || len(resp.Features[0].Geometry.Coordinates) < 2 {
		return &Result{Matched: false, Source: p.Name()}, nil
	}

	feature := resp.Features[0]
	display := feature.Properties.Name
	if feature.Properties.Street != "" {
		display = feature.Properties.Street
		if feature.Properties.City != "" {
			display += ", " + feature.Properties.City
		}
	}

	return &Result{
		Latitude:    feature.Geometry.Coordinates[1],
		Longitude:   feature.Geometry.Coordinates[0],
		Source:      p.Name(),
		Quality:     feature.Properties.OSMValue,
		DisplayName: display,
		Matched:     true,
	}, nil
}

// fetchJSON performs a rate-limited GET with retry on transient
// failures and returns the response body.
func fetchJSON(ctx context.Context, client *http.Client, limiter *rate.Limiter, reqURL, userAgent, component string) ([]byte, error) {
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger(component, "geocode")

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		if err := limiter.Wait(ctx); err != nil {
			return nil, eris.Wrapf(err, "%s: rate limit wait", component)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: build request", component)
		}
		if userAgent != "" {
			req.Header.Set("User-Agent", userAgent)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: request", component)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("%s: unexpected status %d", component, resp.StatusCode)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, eris.Wrapf(err, "%s: read response", component)
		}
		return body, nil
	})
}
