package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"kzs-map/internal/config"
	"kzs-map/internal/services"
	"kzs-map/internal/utils"
)

func main() {
	logger := log.New(os.Stdout, "[Thumbnails] ", log.LstdFlags)

	dir := flag.String("dir", "", "Media directory (overrides MEDIA_DIR)")
	width := flag.Int("width", 0, "Thumbnail width in pixels (overrides THUMBNAIL_WIDTH)")
	force := flag.Bool("force", false, "Regenerate thumbnails that already exist")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *dir != "" {
		cfg.MediaDir = *dir
	}
	if *width > 0 {
		cfg.ThumbnailWidth = *width
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files, err := os.ReadDir(cfg.MediaDir)
	if err != nil {
		logger.Fatalf("list media dir: %v", err)
	}

	thumbnails := services.NewThumbnailService(services.FFmpegDecoder{Binary: "ffmpeg"}, cfg.ThumbnailWidth, cfg.ThumbnailQuality)

	var generated, skipped, failed int
	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		if f.IsDir() || !utils.IsVideo(f.Name()) {
			continue
		}

		videoPath := filepath.Join(cfg.MediaDir, f.Name())
		thumbPath := utils.ThumbnailPath(videoPath)
		if _, err := os.Stat(thumbPath); err == nil && !*force {
			skipped++
			continue
		}

		if err := thumbnails.Generate(ctx, videoPath, thumbPath, cfg.ThumbnailWidth); err != nil {
			logger.Printf("❌ %s: %v", f.Name(), err)
			failed++
			continue
		}
		logger.Printf("✅ %s -> %s", f.Name(), filepath.Base(thumbPath))
		generated++
	}

	logger.Printf("Done: generated=%d skipped=%d failed=%d", generated, skipped, failed)
}
