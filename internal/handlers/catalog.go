package handlers

import (
	"bytes"
	"errors"
	"log"
	"net/http"

	apperrors "kzs-map/internal/errors"
	"kzs-map/internal/utils"
)

// HandleCatalog serves the images.json document the map loads. Conditional
// requests are answered with 304 based on the file's modification time.
func (h *Handler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	doc, err := h.catalog.Document()
	if err != nil {
		log.Printf("[Catalog] Failed to load catalog: %v", err)
		if errors.Is(err, apperrors.ErrNotFound) {
			http.Error(w, "Catalog not found", http.StatusNotFound)
		} else {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=60")
	http.ServeContent(w, r, "images.json", doc.ModTime, bytes.NewReader(doc.Data))
}

// HandleMedia serves a file of the media directory by bare name.
func (h *Handler) HandleMedia(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")

	path, err := h.catalog.MediaFile(name)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidInput):
			log.Printf("[Media] Rejected file name: %q", name)
			http.Error(w, "Invalid file name", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrNotFound):
			http.Error(w, "File not found", http.StatusNotFound)
		default:
			log.Printf("[Media] Failed to resolve %s: %v", name, err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", utils.ContentType(name))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFile(w, r, path)
}
