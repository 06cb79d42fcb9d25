package utils

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"os"
	"path/filepath"
	"time"

	"kzs-map/internal/models"

	"github.com/adrium/goheif"
	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// Converts HEIC/HEIF image data to JPEG format with proper orientation handling.
// Returns the JPEG-encoded data or an error if conversion fails.
func ConvertHeicToJpeg(input []byte) ([]byte, error) {
	img, err := goheif.Decode(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("failed to decode HEIC: %w", err)
	}

	// Apply EXIF orientation if present
	oriented := applyOrientation(img, input)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, oriented, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}

	return buf.Bytes(), nil
}

// EXIF orientation values: 1=normal, 2=flip-h, 3=180, 4=flip-v, 5=transpose, 6=270, 7=transverse, 8=90
var orientations = map[int]func(image.Image) *image.NRGBA{
	2: imaging.FlipH,
	3: imaging.Rotate180,
	4: imaging.FlipV,
	5: imaging.Transpose,
	6: imaging.Rotate270,
	7: imaging.Transverse,
	8: imaging.Rotate90,
}

// Reads the EXIF block embedded in the HEIF container and applies its orientation.
func applyOrientation(img image.Image, input []byte) image.Image {
	raw, err := goheif.ExtractExif(bytes.NewReader(input))
	if err != nil {
		log.Printf("[HEIC] No EXIF data found: %v", err)
		return img
	}

	x, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		log.Printf("[HEIC] Failed to parse EXIF: %v", err)
		return img
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return img
	}

	orient, err := tag.Int(0)
	if err != nil {
		log.Printf("[HEIC] Failed to read orientation value: %v", err)
		return img
	}

	if transform, ok := orientations[orient]; ok {
		return transform(img)
	}
	if orient != 1 {
		log.Printf("[HEIC] Unknown orientation value: %d", orient)
	}
	return img
}

// ConvertHeicFile converts the HEIC/HEIF photo at src into a JPEG at dst.
// The JPEG is fully encoded before dst is written.
func ConvertHeicFile(src, dst string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}

	log.Printf("[HEIC] Converting %s -> %s", filepath.Base(src), filepath.Base(dst))
	output, err := ConvertHeicToJpeg(input)
	if err != nil {
		return err
	}

	return os.WriteFile(dst, output, 0644)
}

// Extracts GPS coordinates and capture time from the EXIF block of a HEIC/HEIF photo.
func ExtractHeicData(path string) (models.Coordinates, time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Coordinates{}, time.Time{}, err
	}
	defer f.Close()

	raw, err := goheif.ExtractExif(f)
	if err != nil {
		return models.Coordinates{}, time.Time{}, fmt.Errorf("failed to extract HEIC EXIF: %w", err)
	}
	return ExtractData(bytes.NewReader(raw))
}
