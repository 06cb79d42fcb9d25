package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"math"
	"os"
	"os/exec"

	_ "image/png"

	"github.com/disintegration/imaging"

	apperrors "kzs-map/internal/errors"
	"kzs-map/internal/metrics"
)

const DefaultThumbnailWidth = 320

// FrameDecoder returns the first frame of a video.
type FrameDecoder interface {
	FirstFrame(ctx context.Context, videoPath string) (image.Image, error)
}

// FFmpegDecoder pipes the first frame of a video out of ffmpeg as PNG.
type FFmpegDecoder struct {
	Binary string
}

func (d FFmpegDecoder) FirstFrame(ctx context.Context, videoPath string) (image.Image, error) {
	binary := d.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	cmd := exec.CommandContext(ctx, binary,
		"-v", "error",
		"-i", videoPath,
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %v, stderr: %s", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no frame for %s", videoPath)
	}

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ffmpeg output: %w", err)
	}
	return img, nil
}

type ThumbnailService struct {
	decoder      FrameDecoder
	defaultWidth int
	quality      int
	logger       *log.Logger
}

func NewThumbnailService(decoder FrameDecoder, defaultWidth, quality int) *ThumbnailService {
	if defaultWidth <= 0 {
		defaultWidth = DefaultThumbnailWidth
	}
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	return &ThumbnailService{
		decoder:      decoder,
		defaultWidth: defaultWidth,
		quality:      quality,
		logger:       log.New(os.Stdout, "[Thumbnail] ", log.LstdFlags),
	}
}

// Generate decodes the first frame of sourcePath, scales it to targetWidth
// keeping the aspect ratio and writes it as JPEG to destinationPath,
// overwriting any existing file. targetWidth <= 0 selects the default width.
// Nothing is written when decoding or encoding fails.
func (s *ThumbnailService) Generate(ctx context.Context, sourcePath, destinationPath string, targetWidth int) error {
	if targetWidth <= 0 {
		targetWidth = s.defaultWidth
	}

	frame, err := s.decoder.FirstFrame(ctx, sourcePath)
	if err != nil {
		metrics.ThumbnailsGenerated.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %s: %v", apperrors.ErrThumbnailFailed, sourcePath, err)
	}

	bounds := frame.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		metrics.ThumbnailsGenerated.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %s: empty frame", apperrors.ErrThumbnailFailed, sourcePath)
	}

	width, height := ScaledSize(bounds.Dx(), bounds.Dy(), targetWidth)
	resized := imaging.Resize(frame, width, height, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: s.quality}); err != nil {
		metrics.ThumbnailsGenerated.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: encode %s: %v", apperrors.ErrThumbnailFailed, destinationPath, err)
	}

	if err := os.WriteFile(destinationPath, buf.Bytes(), 0644); err != nil {
		metrics.ThumbnailsGenerated.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: write %s: %v", apperrors.ErrThumbnailFailed, destinationPath, err)
	}

	metrics.ThumbnailsGenerated.WithLabelValues("success").Inc()
	s.logger.Printf("Thumbnail saved to %s (%dx%d)", destinationPath, width, height)
	return nil
}

// ScaledSize returns targetWidth and the proportional height
// round(height * targetWidth / width), never less than 1.
func ScaledSize(width, height, targetWidth int) (int, int) {
	h := int(math.Round(float64(height) * float64(targetWidth) / float64(width)))
	if h < 1 {
		h = 1
	}
	return targetWidth, h
}
