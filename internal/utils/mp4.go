package utils

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"kzs-map/internal/models"
)

// Extracts GPS coordinates and creation time from a video file using exiftool.
func ExtractMP4Data(ctx context.Context, videoPath string) (models.Coordinates, time.Time, error) {
	cmd := exec.CommandContext(ctx, "exiftool", "-n", "-GPSLatitude", "-GPSLongitude", "-CreateDate", videoPath)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return models.Coordinates{}, time.Time{}, fmt.Errorf("exiftool failed: %w (output: %s)", err, string(output))
	}

	return parseExiftoolOutput(string(output))
}

// Parses "Tag Name : value" lines as printed by exiftool -n.
func parseExiftoolOutput(output string) (models.Coordinates, time.Time, error) {
	var coords models.Coordinates
	var takenAt time.Time

	for line := range strings.SplitSeq(output, "\n") {
		tag, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		tag = strings.TrimSpace(tag)
		value = strings.TrimSpace(value)

		switch tag {
		case "GPS Latitude":
			if lat, err := strconv.ParseFloat(value, 64); err == nil {
				coords.Lat = fmt.Sprintf("%.6f", lat)
			}
		case "GPS Longitude":
			if lng, err := strconv.ParseFloat(value, 64); err == nil {
				coords.Lng = fmt.Sprintf("%.6f", lng)
			}
		case "Create Date":
			// exiftool reports unset QuickTime dates as all zeros
			if t, err := ParseTimestamp(value); err == nil && t.Year() > 1904 {
				takenAt = t
			}
		}
	}

	if coords.String() == "" {
		coords = models.Coordinates{}
		if takenAt.IsZero() {
			return coords, takenAt, fmt.Errorf("no GPS data found in video")
		}
	}

	return coords, takenAt, nil
}
