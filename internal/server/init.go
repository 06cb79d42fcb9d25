package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"golang.org/x/time/rate"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"kzs-map/internal/config"
	apperrors "kzs-map/internal/errors"
	"kzs-map/internal/handlers"
	"kzs-map/internal/middleware"
	"kzs-map/internal/router"
	"kzs-map/internal/services"
)

// Services holds all initialized services for the application
type Services struct {
	Store      *services.CatalogStore
	Thumbnails *services.ThumbnailService
	Geocoder   *services.GeocodingService
	Sync       *services.SyncService
	Cache      *services.CacheService
	Catalog    *services.CatalogView
	Storage    *services.StorageService // nil unless PUBLISH_BUCKET is set
	Firestore  *services.FirestoreService
	Drive      *services.DriveService

	closers []func() error
}

// SyncOptions derives the pass options from configuration.
func SyncOptions(cfg *config.Config, dryRun bool) services.SyncOptions {
	return services.SyncOptions{
		MediaDir:        cfg.MediaDir,
		MediaPrefix:     cfg.MediaPrefix,
		ThumbnailWidth:  cfg.ThumbnailWidth,
		DateLocale:      cfg.DateLocale,
		ExtractMetadata: cfg.ExtractMetadata,
		ConvertHeic:     cfg.ConvertHeic,
		DryRun:          dryRun,
	}
}

// Returns client options for the Google APIs: JSON credentials first, then a
// credentials file, then application default credentials.
func clientOptions(cfg *config.Config) []option.ClientOption {
	var opts []option.ClientOption
	if cfg.GCPCredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.GCPCredentialsJSON)))
	} else if cfg.GCPCredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCPCredentialsPath))
	}
	return opts
}

// InitServices initializes all application services based on configuration.
// Google Cloud integrations are only created when configured.
func InitServices(ctx context.Context, cfg *config.Config, dryRun bool) (*Services, error) {
	store := services.NewCatalogStore(cfg.CatalogPath)
	thumbnails := services.NewThumbnailService(services.FFmpegDecoder{Binary: "ffmpeg"}, cfg.ThumbnailWidth, cfg.ThumbnailQuality)
	geocoder := services.NewGeocodingService(services.GeocodingOptions{
		Endpoint:      cfg.GeocodeEndpoint,
		UserAgent:     cfg.GeocodeUserAgent,
		Language:      cfg.GeocodeLanguage,
		RatePerSecond: cfg.GeocodeRate,
		MaxRetries:    cfg.GeocodeMaxRetries,
		Backoff:       cfg.GeocodeBackoff,
		Timeout:       cfg.GeocodeTimeout,
	})
	cache := services.NewCacheService(ctx, cfg.CacheTTL, cfg.CacheCleanupInterval)
	catalog := services.NewCatalogView(store, cache, cfg.MediaDir)

	syncService := services.NewSyncService(store, thumbnails, geocoder, SyncOptions(cfg, dryRun))
	syncService.AddPublisher(catalog)

	svcs := &Services{
		Store:      store,
		Thumbnails: thumbnails,
		Geocoder:   geocoder,
		Sync:       syncService,
		Cache:      cache,
		Catalog:    catalog,
	}

	if !cfg.UsesGCP() {
		log.Println("☁️  No Google Cloud integration configured, running local only")
		return svcs, nil
	}
	opts := clientOptions(cfg)

	if cfg.PublishBucket != "" {
		storageClient, err := storage.NewClient(ctx, opts...)
		if err != nil {
			svcs.Close()
			return nil, err
		}
		svcs.closers = append(svcs.closers, storageClient.Close)

		svcs.Storage = services.NewStorageService(storageClient, cfg.PublishBucket)
		syncService.AddPublisher(services.NewStoragePublisher(svcs.Storage, filepath.Base(cfg.CatalogPath), cfg.MediaDir))
		log.Printf("📦 Publishing catalog to gs://%s", cfg.PublishBucket)
	}

	if cfg.FirestoreCollection != "" {
		firestoreClient, err := firestore.NewClient(ctx, cfg.GCPProjectID, opts...)
		if err != nil {
			svcs.Close()
			return nil, err
		}
		svcs.closers = append(svcs.closers, firestoreClient.Close)

		svcs.Firestore = services.NewFirestoreService(firestoreClient, cfg.FirestoreCollection)
		syncService.AddPublisher(svcs.Firestore)
		log.Printf("🗂️  Mirroring catalog to Firestore collection %s", cfg.FirestoreCollection)
	}

	if cfg.GoogleDriveFolderID != "" {
		driveOpts := opts
		if cfg.GoogleAPIKey != "" {
			driveOpts = []option.ClientOption{option.WithAPIKey(cfg.GoogleAPIKey)}
		}
		driveClient, err := drive.NewService(ctx, driveOpts...)
		if err != nil {
			log.Printf("⚠️  Failed to create Drive API client, skipping Drive ingest: %v", err)
		} else {
			svcs.Drive = services.NewDriveService(services.NewDriveClient(driveClient), cfg.GoogleDriveFolderID)
			syncService.AddIngester(svcs.Drive)
			log.Printf("🔄 Pulling new media from Drive folder %s", cfg.GoogleDriveFolderID)
		}
	}

	return svcs, nil
}

// Close releases the Google Cloud clients.
func (s *Services) Close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			log.Printf("⚠️  Failed to close client: %v", err)
		}
	}
	s.closers = nil
}

// CreateHandler creates an HTTP handler with all middleware applied
func CreateHandler(svcs *Services, cfg *config.Config) http.Handler {
	h := handlers.New(svcs.Catalog, svcs.Sync)

	// A pass is expensive; allow a couple per client per minute
	limiter := middleware.NewRateLimiter(rate.Every(30*time.Second), 2)
	auth := middleware.APIKeyAuth(cfg.APIKeys)
	protect := func(next http.Handler) http.Handler {
		return limiter.Limit(auth(next))
	}

	mux := router.Setup(h, protect)

	wrappedHandler := middleware.Logger(mux)
	wrappedHandler = middleware.CORS(wrappedHandler, cfg.AllowedOrigins)
	wrappedHandler = middleware.RequestID(wrappedHandler)

	return wrappedHandler
}

// StartScheduledSync runs a pass every interval until the returned cancel
// function is called. Passes that collide with an HTTP-triggered one are skipped.
func StartScheduledSync(ctx context.Context, syncService *services.SyncService, interval time.Duration) context.CancelFunc {
	if interval <= 0 {
		return func() {}
	}

	syncCtx, cancel := context.WithCancel(ctx)

	go func() {
		log.Printf("🚀 Starting scheduled sync (interval: %v)", interval)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-syncCtx.Done():
				return
			case <-ticker.C:
				stats, err := syncService.Run(syncCtx)
				switch {
				case errors.Is(err, apperrors.ErrSyncInProgress):
					log.Println("⏭️  Scheduled sync skipped, a pass is already running")
				case errors.Is(err, context.Canceled):
					return
				case err != nil:
					log.Printf("❌ Scheduled sync failed: %v", err)
				default:
					log.Printf("✅ Scheduled sync: %d added, %d geocoded, %d entries in %v",
						stats.Added, stats.Geocoded, stats.Entries, stats.Duration)
				}
			}
		}
	}()

	return cancel
}
