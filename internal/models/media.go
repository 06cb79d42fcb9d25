package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "kzs-map/internal/errors"
)

type Coordinates struct {
	Lat string `firestore:"lat,omitempty" json:"lat,omitempty"`
	Lng string `firestore:"lng,omitempty" json:"lng,omitempty"`
}

// Parses the catalog form "<lat>,<lon>". The string is split on the first comma
// and both halves must be decimal numbers.
func ParseCoordinates(s string) (Coordinates, error) {
	lat, lng, found := strings.Cut(s, ",")
	if !found {
		return Coordinates{}, fmt.Errorf("%w: %q has no comma", apperrors.ErrInvalidCoordinates, s)
	}

	c := Coordinates{Lat: strings.TrimSpace(lat), Lng: strings.TrimSpace(lng)}
	if _, err := strconv.ParseFloat(c.Lat, 64); err != nil {
		return Coordinates{}, fmt.Errorf("%w: latitude %q", apperrors.ErrInvalidCoordinates, c.Lat)
	}
	if _, err := strconv.ParseFloat(c.Lng, 64); err != nil {
		return Coordinates{}, fmt.Errorf("%w: longitude %q", apperrors.ErrInvalidCoordinates, c.Lng)
	}

	return c, nil
}

// String returns the catalog form "<lat>,<lon>", or "" when either half is missing.
func (c Coordinates) String() string {
	if c.Lat == "" || c.Lng == "" {
		return ""
	}
	return c.Lat + "," + c.Lng
}

// MediaEntry is one record of the images.json catalog. Field order is the
// order the map frontend and the hand-edited catalog use.
type MediaEntry struct {
	ID          int64  `json:"id" firestore:"id"`
	Path        string `json:"path" firestore:"path"`
	Coordinates string `json:"coordinates" firestore:"coordinates"`
	Description string `json:"description" firestore:"description"`
	City        string `json:"city" firestore:"city"`
	DateTime    string `json:"dateTime" firestore:"dateTime"`
}

// NeedsGeocoding reports whether the entry has coordinates but no resolved city.
func (e *MediaEntry) NeedsGeocoding() bool {
	return strings.TrimSpace(e.Coordinates) != "" && e.City == ""
}

type CacheEntry struct {
	Data        []byte
	ContentType string
	ModTime     time.Time
	Expires     time.Time
}
