package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"kzs-map/internal/config"
	"kzs-map/internal/server"
)

func main() {
	logger := log.New(os.Stdout, "[SyncCatalog] ", log.LstdFlags)

	dryRun := flag.Bool("dry-run", false, "Report what would change without writing the catalog, thumbnails or conversions")
	mediaDir := flag.String("dir", "", "Media directory (overrides MEDIA_DIR)")
	catalogPath := flag.String("catalog", "", "Catalog file (overrides CATALOG_PATH)")
	width := flag.Int("width", 0, "Thumbnail width in pixels (overrides THUMBNAIL_WIDTH)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *mediaDir != "" {
		cfg.MediaDir = *mediaDir
	}
	if *catalogPath != "" {
		cfg.CatalogPath = *catalogPath
	}
	if *width > 0 {
		cfg.ThumbnailWidth = *width
	}

	if *dryRun {
		logger.Println("DRY RUN - nothing will be written")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svcs, err := server.InitServices(ctx, cfg, *dryRun)
	if err != nil {
		logger.Fatalf("init services: %v", err)
	}
	defer svcs.Close()

	logger.Printf("🔄 Syncing %s with %s", cfg.CatalogPath, cfg.MediaDir)
	stats, err := svcs.Sync.Run(ctx)
	if err != nil {
		svcs.Close()
		logger.Fatalf("❌ Sync failed, catalog left unchanged: %v", err)
	}

	logger.Printf("✅ Done: added=%d thumbnails=%d thumbnailFailures=%d heicConverted=%d geocoded=%d ingested=%d publishErrors=%d entries=%d in %v",
		stats.Added, stats.Thumbnails, stats.ThumbnailFailures, stats.HeicConverted,
		stats.Geocoded, stats.Ingested, stats.PublishErrors, stats.Entries, stats.Duration)
}
