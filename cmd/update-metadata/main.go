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
	"kzs-map/internal/services"
)

func main() {
	logger := log.New(os.Stdout, "[MetadataUpdate] ", log.LstdFlags)

	dryRun := flag.Bool("dry-run", false, "Preview changes without writing the catalog")
	fixDates := flag.Bool("fix-dates", false, "Replace existing dateTime labels with the capture month of the file")
	fromBucket := flag.Bool("from-bucket", false, "Fetch files missing on disk from PUBLISH_BUCKET")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	if *dryRun {
		logger.Println("DRY RUN - catalog will not be written")
	}
	if *fromBucket && cfg.PublishBucket == "" {
		logger.Fatalf("-from-bucket requires PUBLISH_BUCKET")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svcs, err := server.InitServices(ctx, cfg, *dryRun)
	if err != nil {
		logger.Fatalf("init services: %v", err)
	}
	defer svcs.Close()

	var fetcher services.FileFetcher
	if *fromBucket {
		fetcher = svcs.Storage
	}

	backfill := services.NewMetadataBackfill(svcs.Store, cfg.MediaDir, cfg.DateLocale, fetcher)
	stats, err := backfill.Run(ctx, services.BackfillOptions{FixDates: *fixDates, DryRun: *dryRun})
	if err != nil {
		svcs.Close()
		logger.Fatalf("❌ Metadata update failed: %v", err)
	}

	logger.Printf("Done: updated=%d skipped=%d noMetadata=%d errors=%d",
		stats.Updated, stats.Skipped, stats.NoMetadata, stats.Errors)
	if stats.Updated > 0 && !*dryRun {
		logger.Println("Run sync-catalog to geocode entries that gained coordinates")
	}
}
