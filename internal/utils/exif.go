package utils

import (
	"fmt"
	"io"
	"time"

	"kzs-map/internal/models"

	"github.com/rwcarlsen/goexif/exif"
)

// Extracts GPS coordinates and capture time from image EXIF data.
// Either value may be missing; an error is returned only when EXIF cannot be
// decoded or carries neither.
func ExtractData(r io.Reader) (models.Coordinates, time.Time, error) {
	x, err := exif.Decode(r)
	if err != nil {
		return models.Coordinates{}, time.Time{}, fmt.Errorf("failed to decode EXIF: %w", err)
	}

	var coords models.Coordinates
	if lat, lon, err := x.LatLong(); err == nil {
		coords = models.Coordinates{
			Lat: fmt.Sprintf("%.6f", lat),
			Lng: fmt.Sprintf("%.6f", lon),
		}
	}

	takenAt, err := x.DateTime()
	if err != nil {
		// Fall back to DateTimeOriginal, typically "2006:01:02 15:04:05"
		if tag, getErr := x.Get(exif.DateTimeOriginal); getErr == nil {
			if s, strErr := tag.StringVal(); strErr == nil {
				if t, parseErr := ParseTimestamp(s); parseErr == nil {
					takenAt = t
				}
			}
		}
	}

	if coords.String() == "" && takenAt.IsZero() {
		return models.Coordinates{}, time.Time{}, fmt.Errorf("no GPS or timestamp in EXIF")
	}

	return coords, takenAt, nil
}
