package router

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kzs-map/internal/handlers"
	"kzs-map/internal/middleware"
)

// Setup configures and returns the HTTP router with all application routes.
// The sync route is wrapped with protect (API key auth and rate limiting).
func Setup(h *handlers.Handler, protect func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()

	route := func(pattern, name string, handler http.Handler) {
		mux.Handle(pattern, middleware.Metrics(name, handler))
	}

	// Health check
	route("GET /health", "/health", http.HandlerFunc(h.HandleHealth))

	// What the map frontend loads
	route("GET /images.json", "/images.json", http.HandlerFunc(h.HandleCatalog))
	route("GET /images/{file}", "/images/{file}", http.HandlerFunc(h.HandleMedia))

	route("POST /sync", "/sync", protect(http.HandlerFunc(h.HandleSync)))

	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}
