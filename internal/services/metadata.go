package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"kzs-map/internal/models"
	"kzs-map/internal/utils"
)

type MediaMetadata struct {
	Coordinates models.Coordinates
	TakenAt     time.Time
}

// Extracts capture metadata from a media file on disk: EXIF for photos,
// the HEIF EXIF block for HEIC, exiftool for videos.
func ExtractMediaMetadata(ctx context.Context, path string) (*MediaMetadata, error) {
	var coords models.Coordinates
	var takenAt time.Time
	var err error

	switch {
	case utils.IsVideo(path):
		coords, takenAt, err = utils.ExtractMP4Data(ctx, path)
	case utils.IsHeicFile(path):
		coords, takenAt, err = utils.ExtractHeicData(path)
	default:
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		coords, takenAt, err = utils.ExtractData(f)
	}
	if err != nil {
		return nil, fmt.Errorf("extract metadata from %s: %w", path, err)
	}

	return &MediaMetadata{Coordinates: coords, TakenAt: takenAt}, nil
}

// Fills a newly created entry from the file's own metadata. Coordinates are
// only set when empty; a known capture time replaces the creation-month label.
func ApplyMediaMetadata(entry *models.MediaEntry, meta *MediaMetadata, locale string) {
	if meta == nil {
		return
	}
	if entry.Coordinates == "" {
		entry.Coordinates = meta.Coordinates.String()
	}
	if !meta.TakenAt.IsZero() {
		if label, err := utils.FormatMonthYear(meta.TakenAt, locale); err == nil {
			entry.DateTime = label
		}
	}
}
