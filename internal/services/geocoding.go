package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperrors "kzs-map/internal/errors"
	"kzs-map/internal/metrics"
	"kzs-map/internal/models"
)

type GeocodingOptions struct {
	Endpoint      string
	UserAgent     string
	Language      string  // Sent as Accept-Language when set
	RatePerSecond float64 // Nominatim's usage policy allows 1 request/sec
	MaxRetries    int
	Backoff       time.Duration // Initial retry delay, doubled per attempt
	Timeout       time.Duration
}

// Performs reverse geocoding against a Nominatim compatible API with
// caching, rate limiting and retry.
type GeocodingService struct {
	opts        GeocodingOptions
	cache       map[string]string
	cacheMutex  sync.RWMutex
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *log.Logger
}

// Models the subset of Nominatim's response that we care about
// (city/town/village + country).
type NominatimResponse struct {
	Address *struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		Country string `json:"country"`
	} `json:"address"`
}

// Returned for responses worth retrying (429 and 5xx).
type retryableStatusError struct {
	code int
}

func (e *retryableStatusError) Error() string {
	return fmt.Sprintf("geocoder returned status %d", e.code)
}

// Returns a fully configured geocoder.
// It includes:
//   - in-memory cache of successful lookups
//   - shared HTTP client with a request timeout
//   - rate limiting (burst of 1)
func NewGeocodingService(opts GeocodingOptions) *GeocodingService {
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}

	return &GeocodingService{
		opts:        opts,
		cache:       make(map[string]string),
		httpClient:  &http.Client{Timeout: opts.Timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1),
		logger:      log.New(os.Stdout, "[Geocoder] ", log.LstdFlags),
	}
}

// Performs a coordinate→location lookup.
// The function:
//  1. normalizes coordinates
//  2. checks the in-memory cache
//  3. waits on the rate limiter before every request, including retries
//  4. calls the API, retrying transport errors, 429 and 5xx with backoff
//  5. extracts city/town/village + country
//  6. caches & returns the formatted result
func (g *GeocodingService) ReverseGeocode(ctx context.Context, coordinates models.Coordinates) (string, error) {
	lat, lng, key, err := g.normalizeCoordinates(coordinates)
	if err != nil {
		return "", err
	}

	g.cacheMutex.RLock()
	if cached := g.cache[key]; cached != "" {
		g.cacheMutex.RUnlock()
		metrics.GeocodeRequests.WithLabelValues("cache_hit").Inc()
		return cached, nil
	}
	g.cacheMutex.RUnlock()

	backoff := g.opts.Backoff
	var result string
	for attempt := 0; ; attempt++ {
		if err := g.rateLimiter.Wait(ctx); err != nil {
			return "", err
		}

		result, err = g.fetchLocation(ctx, lat, lng)
		if err == nil {
			break
		}
		if attempt >= g.opts.MaxRetries || !isRetryable(ctx, err) {
			metrics.GeocodeRequests.WithLabelValues("error").Inc()
			return "", fmt.Errorf("reverse geocode %s: %w", key, err)
		}

		metrics.GeocodeRequests.WithLabelValues("retry").Inc()
		g.logger.Printf("Lookup for %s failed (%v), retrying in %v (attempt %d/%d)",
			key, err, backoff, attempt+1, g.opts.MaxRetries)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	metrics.GeocodeRequests.WithLabelValues("success").Inc()

	g.cacheMutex.Lock()
	g.cache[key] = result
	g.cacheMutex.Unlock()

	return result, nil
}

// Parses and normalizes latitude/longitude values,
// and returns a rounded cache key.
func (g *GeocodingService) normalizeCoordinates(c models.Coordinates) (lat, lng float64, key string, err error) {
	lat, err = strconv.ParseFloat(c.Lat, 64)
	if err != nil {
		return 0, 0, "", fmt.Errorf("%w: latitude %q", apperrors.ErrInvalidCoordinates, c.Lat)
	}
	lng, err = strconv.ParseFloat(c.Lng, 64)
	if err != nil {
		return 0, 0, "", fmt.Errorf("%w: longitude %q", apperrors.ErrInvalidCoordinates, c.Lng)
	}

	// Key rounded to avoid cache fragmentation
	key = fmt.Sprintf("%.4f,%.4f", lat, lng)
	return lat, lng, key, nil
}

// Performs the actual HTTP request and parses the response.
func (g *GeocodingService) fetchLocation(ctx context.Context, lat, lng float64) (string, error) {
	query := url.Values{}
	query.Set("format", "json")
	query.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.opts.Endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}

	req.Header.Set("User-Agent", g.opts.UserAgent)
	if g.opts.Language != "" {
		req.Header.Set("Accept-Language", g.opts.Language)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", &retryableStatusError{code: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var data NominatimResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("decode geocoder response: %w", err)
	}

	return extractLocation(data)
}

// Chooses the most specific available locality and appends the country.
// Missing parts stay empty, so the result always has the "<locality>, <country>" shape.
func extractLocation(n NominatimResponse) (string, error) {
	if n.Address == nil {
		return "", fmt.Errorf("%w: response has no address", apperrors.ErrNoLocality)
	}

	city := firstNonEmpty(
		n.Address.City,
		n.Address.Town,
		n.Address.Village,
	)
	return city + ", " + n.Address.Country, nil
}

// Transport failures and throttling responses are retried; caller
// cancellation and malformed responses are not.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var statusErr *retryableStatusError
	if errors.As(err, &statusErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// Returns the first non-empty string in the list.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
