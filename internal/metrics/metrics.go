// Package metrics defines the prometheus collectors shared by the sync pass,
// the geocoder and the HTTP server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sync pass metrics
var (
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kzs_map_sync_runs_total",
			Help: "Total number of catalog sync passes",
		},
		[]string{"status"}, // "success", "error"
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kzs_map_sync_duration_seconds",
			Help:    "Duration of a catalog sync pass in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	SyncEntriesAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kzs_map_sync_entries_added_total",
			Help: "Catalog entries added by sync passes",
		},
	)

	CatalogEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kzs_map_catalog_entries",
			Help: "Number of entries in the catalog after the last pass",
		},
	)
)

// Media processing metrics
var (
	ThumbnailsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kzs_map_thumbnails_total",
			Help: "Video thumbnails generated",
		},
		[]string{"status"},
	)

	GeocodeRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kzs_map_geocode_requests_total",
			Help: "Reverse geocoding lookups by outcome",
		},
		[]string{"status"}, // "success", "cache_hit", "retry", "error"
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kzs_map_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kzs_map_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
