package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	apperrors "kzs-map/internal/errors"
	"kzs-map/internal/middleware"
)

type syncResponse struct {
	Added             int    `json:"added"`
	Thumbnails        int    `json:"thumbnails"`
	ThumbnailFailures int    `json:"thumbnailFailures"`
	HeicConverted     int    `json:"heicConverted"`
	Geocoded          int    `json:"geocoded"`
	Ingested          int    `json:"ingested"`
	PublishErrors     int    `json:"publishErrors"`
	Entries           int    `json:"entries"`
	Duration          string `json:"duration"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Sync] Failed to encode response: %v", err)
	}
}

// HandleSync runs one pass and reports its statistics. The pass keeps running
// when the client disconnects.
func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 30*time.Minute)
	defer cancel()

	stats, err := h.syncer.Run(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrSyncInProgress) {
			writeJSON(w, http.StatusConflict, errorResponse{err.Error(), requestID})
			return
		}
		log.Printf("[Sync] Pass failed (request %s): %v", requestID, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{err.Error(), requestID})
		return
	}

	writeJSON(w, http.StatusOK, syncResponse{
		Added:             stats.Added,
		Thumbnails:        stats.Thumbnails,
		ThumbnailFailures: stats.ThumbnailFailures,
		HeicConverted:     stats.HeicConverted,
		Geocoded:          stats.Geocoded,
		Ingested:          stats.Ingested,
		PublishErrors:     stats.PublishErrors,
		Entries:           stats.Entries,
		Duration:          stats.Duration.Round(time.Millisecond).String(),
	})
}
