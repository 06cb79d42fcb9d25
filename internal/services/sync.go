package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	apperrors "kzs-map/internal/errors"
	"kzs-map/internal/metrics"
	"kzs-map/internal/models"
	"kzs-map/internal/utils"
)

type Thumbnailer interface {
	Generate(ctx context.Context, sourcePath, destinationPath string, targetWidth int) error
}

type Geocoder interface {
	ReverseGeocode(ctx context.Context, coordinates models.Coordinates) (string, error)
}

// Publisher receives the catalog after every successful pass.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, entries []*models.MediaEntry) error
}

// Ingester brings new media files into the media directory before a pass.
type Ingester interface {
	Ingest(ctx context.Context, mediaDir string) (int, error)
}

type SyncOptions struct {
	MediaDir        string
	MediaPrefix     string // Prefix of catalog paths, "images" -> "images/5.mp4"
	ThumbnailWidth  int
	DateLocale      string
	ExtractMetadata bool
	ConvertHeic     bool
	DryRun          bool // Report what would change without writing anything
}

type SyncStats struct {
	Added             int
	Thumbnails        int
	ThumbnailFailures int
	HeicConverted     int
	Geocoded          int
	Ingested          int
	PublishErrors     int
	Entries           int
	Duration          time.Duration
}

// SyncService reconciles the media directory with the catalog. Passes are
// strictly sequential; a second Run while one is active fails with
// ErrSyncInProgress.
type SyncService struct {
	store      *CatalogStore
	thumbnails Thumbnailer
	geocoder   Geocoder
	opts       SyncOptions
	ingesters  []Ingester
	publishers []Publisher
	now        func() time.Time
	extract    func(ctx context.Context, path string) (*MediaMetadata, error)
	running    sync.Mutex
	logger     *log.Logger
}

func NewSyncService(store *CatalogStore, thumbnails Thumbnailer, geocoder Geocoder, opts SyncOptions) *SyncService {
	return &SyncService{
		store:      store,
		thumbnails: thumbnails,
		geocoder:   geocoder,
		opts:       opts,
		now:        time.Now,
		extract:    ExtractMediaMetadata,
		logger:     log.New(os.Stdout, "[Sync] ", log.LstdFlags),
	}
}

func (s *SyncService) AddIngester(i Ingester) {
	s.ingesters = append(s.ingesters, i)
}

func (s *SyncService) AddPublisher(p Publisher) {
	s.publishers = append(s.publishers, p)
}

// Run performs one full pass: ingest, load, scan, thumbnail, add, geocode,
// sort, save, publish. Any error before the save leaves the catalog file as it was.
func (s *SyncService) Run(ctx context.Context) (*SyncStats, error) {
	if !s.running.TryLock() {
		return nil, apperrors.ErrSyncInProgress
	}
	defer s.running.Unlock()

	start := time.Now()
	stats := &SyncStats{}

	err := s.run(ctx, stats)
	stats.Duration = time.Since(start)
	metrics.SyncDuration.Observe(stats.Duration.Seconds())
	if err != nil {
		metrics.SyncRunsTotal.WithLabelValues("error").Inc()
		return stats, err
	}

	metrics.SyncRunsTotal.WithLabelValues("success").Inc()
	metrics.SyncEntriesAdded.Add(float64(stats.Added))
	metrics.CatalogEntries.Set(float64(stats.Entries))
	return stats, nil
}

func (s *SyncService) run(ctx context.Context, stats *SyncStats) error {
	if !s.opts.DryRun {
		for _, ing := range s.ingesters {
			n, err := ing.Ingest(ctx, s.opts.MediaDir)
			if err != nil {
				s.logger.Printf("Ingest failed, continuing with local files: %v", err)
			}
			stats.Ingested += n
		}
	}

	if s.opts.DryRun {
		entries, err := s.store.Load()
		if err != nil {
			return err
		}
		entries, err = s.reconcile(ctx, entries, stats)
		if err != nil {
			return err
		}
		stats.Entries = len(entries)
		s.logger.Printf("Dry run: catalog would hold %d entries", len(entries))
		return nil
	}

	var saved []*models.MediaEntry
	err := s.store.Update(func(entries []*models.MediaEntry) ([]*models.MediaEntry, error) {
		updated, err := s.reconcile(ctx, entries, stats)
		saved = updated
		return updated, err
	})
	if err != nil {
		return err
	}
	stats.Entries = len(saved)

	for _, p := range s.publishers {
		if err := p.Publish(ctx, saved); err != nil {
			s.logger.Printf("Publishing to %s failed: %v", p.Name(), err)
			stats.PublishErrors++
		}
	}
	return nil
}

func (s *SyncService) reconcile(ctx context.Context, entries []*models.MediaEntry, stats *SyncStats) ([]*models.MediaEntry, error) {
	createdLabel, err := utils.FormatMonthYear(s.now(), s.opts.DateLocale)
	if err != nil {
		return nil, err
	}

	known := make(map[int64]bool, len(entries))
	for _, e := range entries {
		known[e.ID] = true
	}

	names, err := s.listMedia()
	if err != nil {
		return nil, err
	}
	sidecars := utils.ThumbnailSidecars(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if sidecars[name] {
			continue
		}

		id, err := utils.ExtractIdentifier(name)
		if err != nil {
			return nil, err
		}

		fullPath := filepath.Join(s.opts.MediaDir, name)
		if utils.IsVideo(name) {
			s.ensureThumbnail(ctx, fullPath, stats)
		}

		entryName := name
		if s.opts.ConvertHeic && utils.IsHeicFile(name) {
			entryName = s.ensureJpeg(fullPath, stats)
		}

		if known[id] {
			continue
		}

		entry := &models.MediaEntry{
			ID:       id,
			Path:     path.Join(s.opts.MediaPrefix, entryName),
			DateTime: createdLabel,
		}
		if s.opts.ExtractMetadata {
			meta, err := s.extract(ctx, fullPath)
			if err != nil {
				s.logger.Printf("No metadata for %s: %v", name, err)
			}
			ApplyMediaMetadata(entry, meta, s.opts.DateLocale)
		}

		s.logger.Printf("New entry %d: %s", id, entry.Path)
		entries = append(entries, entry)
		known[id] = true
		stats.Added++
	}

	for _, e := range entries {
		if !e.NeedsGeocoding() {
			continue
		}
		coords, err := models.ParseCoordinates(e.Coordinates)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.Path, err)
		}
		if s.opts.DryRun {
			s.logger.Printf("Would geocode %s (%s)", e.Path, e.Coordinates)
			continue
		}

		city, err := s.geocoder.ReverseGeocode(ctx, coords)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.Path, err)
		}
		s.logger.Printf("Resolved %s -> %s", e.Path, city)
		e.City = city
		stats.Geocoded++
	}

	SortEntries(entries)
	return entries, nil
}

// Lists regular, non-hidden files of the media directory in name order.
func (s *SyncService) listMedia() ([]string, error) {
	dirEntries, err := os.ReadDir(s.opts.MediaDir)
	if err != nil {
		return nil, fmt.Errorf("scan media dir: %w", err)
	}

	var names []string
	for _, d := range dirEntries {
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		names = append(names, d.Name())
	}
	return names, nil
}

// Thumbnail failures are logged and counted; they never abort the pass.
func (s *SyncService) ensureThumbnail(ctx context.Context, videoPath string, stats *SyncStats) {
	thumbPath := utils.ThumbnailPath(videoPath)
	if fileExists(thumbPath) {
		return
	}
	if s.opts.DryRun {
		s.logger.Printf("Would generate thumbnail %s", thumbPath)
		return
	}

	if err := s.thumbnails.Generate(ctx, videoPath, thumbPath, s.opts.ThumbnailWidth); err != nil {
		s.logger.Printf("Failed to read video %s: %v", videoPath, err)
		stats.ThumbnailFailures++
		return
	}
	stats.Thumbnails++
}

// Returns the file name the catalog should reference for a HEIC photo: its
// JPEG sibling when one exists or could be created, otherwise the original.
func (s *SyncService) ensureJpeg(heicPath string, stats *SyncStats) string {
	jpgPath := strings.TrimSuffix(heicPath, filepath.Ext(heicPath)) + ".jpg"
	if fileExists(jpgPath) {
		return filepath.Base(jpgPath)
	}
	if s.opts.DryRun {
		s.logger.Printf("Would convert %s to JPEG", heicPath)
		return filepath.Base(heicPath)
	}

	if err := utils.ConvertHeicFile(heicPath, jpgPath); err != nil {
		s.logger.Printf("HEIC conversion failed for %s: %v", heicPath, err)
		return filepath.Base(heicPath)
	}
	stats.HeicConverted++
	return filepath.Base(jpgPath)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
