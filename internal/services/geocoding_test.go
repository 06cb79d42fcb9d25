package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "kzs-map/internal/errors"
	"kzs-map/internal/models"
)

func newTestGeocoder(endpoint string) *GeocodingService {
	return NewGeocodingService(GeocodingOptions{
		Endpoint:      endpoint,
		UserAgent:     "kzs-map-test/1.0",
		RatePerSecond: 1000,
		MaxRetries:    2,
		Backoff:       time.Millisecond,
		Timeout:       time.Second,
	})
}

func TestReverseGeocode_Request(t *testing.T) {
	var gotQuery, gotAgent, gotLanguage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAgent = r.Header.Get("User-Agent")
		gotLanguage = r.Header.Get("Accept-Language")
		w.Write([]byte(`{"address":{"city":"Ljubljana","country":"Slovenija"}}`))
	}))
	defer srv.Close()

	g := newTestGeocoder(srv.URL)
	g.opts.Language = "sl"

	got, err := g.ReverseGeocode(context.Background(), models.Coordinates{Lat: "46.05", Lng: "14.51"})
	require.NoError(t, err)

	assert.Equal(t, "Ljubljana, Slovenija", got)
	assert.Equal(t, "format=json&lat=46.05&lon=14.51", gotQuery)
	assert.Equal(t, "kzs-map-test/1.0", gotAgent)
	assert.Equal(t, "sl", gotLanguage)
}

func TestReverseGeocode_LocalityFallback(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr error
	}{
		{"city wins", `{"address":{"city":"Kranj","town":"X","village":"Y","country":"Slovenija"}}`, "Kranj, Slovenija", nil},
		{"town", `{"address":{"town":"Bled","village":"Y","country":"Slovenija"}}`, "Bled, Slovenija", nil},
		{"village", `{"address":{"village":"Žiri","country":"Slovenija"}}`, "Žiri, Slovenija", nil},
		{"no country", `{"address":{"city":"Ljubljana"}}`, "Ljubljana, ", nil},
		{"town without country", `{"address":{"town":"Bled"}}`, "Bled, ", nil},
		{"country only", `{"address":{"country":"Hrvatska"}}`, ", Hrvatska", nil},
		{"empty address", `{"address":{}}`, ", ", nil},
		{"missing address", `{"error":"Unable to geocode"}`, "", apperrors.ErrNoLocality},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := newTestGeocoder(srv.URL).ReverseGeocode(context.Background(), models.Coordinates{Lat: "1", Lng: "2"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReverseGeocode_CachesSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"address":{"town":"Bled","country":"Slovenija"}}`))
	}))
	defer srv.Close()

	g := newTestGeocoder(srv.URL)
	for _, c := range []models.Coordinates{{Lat: "46.36917", Lng: "14.11361"}, {Lat: "46.369171", Lng: "14.113609"}} {
		got, err := g.ReverseGeocode(context.Background(), c)
		require.NoError(t, err)
		assert.Equal(t, "Bled, Slovenija", got)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestReverseGeocode_RetriesThrottling(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.Write([]byte(`{"address":{"city":"Maribor","country":"Slovenija"}}`))
		}
	}))
	defer srv.Close()

	got, err := newTestGeocoder(srv.URL).ReverseGeocode(context.Background(), models.Coordinates{Lat: "46.55", Lng: "15.64"})
	require.NoError(t, err)
	assert.Equal(t, "Maribor, Slovenija", got)
	assert.Equal(t, int32(3), calls.Load())
}

func TestReverseGeocode_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestGeocoder(srv.URL).ReverseGeocode(context.Background(), models.Coordinates{Lat: "1", Lng: "2"})
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestReverseGeocode_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if calls.Load() == 1 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	g := newTestGeocoder(srv.URL)
	_, err := g.ReverseGeocode(context.Background(), models.Coordinates{Lat: "1", Lng: "2"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	// failures are not cached: the next call reaches the server again
	_, err = g.ReverseGeocode(context.Background(), models.Coordinates{Lat: "1", Lng: "2"})
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestReverseGeocode_InvalidCoordinates(t *testing.T) {
	g := newTestGeocoder("http://127.0.0.1:0")
	_, err := g.ReverseGeocode(context.Background(), models.Coordinates{Lat: "north", Lng: "14"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidCoordinates))
}

func TestReverseGeocode_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestGeocoder(srv.URL).ReverseGeocode(ctx, models.Coordinates{Lat: "1", Lng: "2"})
	assert.ErrorIs(t, err, context.Canceled)
}
