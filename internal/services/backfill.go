package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"

	"kzs-map/internal/models"
	"kzs-map/internal/utils"
)

// FileFetcher retrieves a published media object, used when the local copy is gone.
type FileFetcher interface {
	FetchFile(ctx context.Context, filePath string) ([]byte, error)
}

type BackfillOptions struct {
	FixDates bool // Replace existing dateTime labels with the capture month
	DryRun   bool
}

type BackfillStats struct {
	Updated    int
	Skipped    int
	NoMetadata int
	Errors     int
}

// MetadataBackfill fills coordinates and dateTime of existing catalog entries
// from the media files themselves. Entries whose coordinates change get their
// city cleared so the next sync pass geocodes them.
type MetadataBackfill struct {
	store    *CatalogStore
	mediaDir string
	locale   string
	fetcher  FileFetcher
	extract  func(ctx context.Context, path string) (*MediaMetadata, error)
	logger   *log.Logger
}

func NewMetadataBackfill(store *CatalogStore, mediaDir, locale string, fetcher FileFetcher) *MetadataBackfill {
	return &MetadataBackfill{
		store:    store,
		mediaDir: mediaDir,
		locale:   locale,
		fetcher:  fetcher,
		extract:  ExtractMediaMetadata,
		logger:   log.New(os.Stdout, "[MetadataUpdate] ", log.LstdFlags),
	}
}

func (b *MetadataBackfill) Run(ctx context.Context, opts BackfillOptions) (*BackfillStats, error) {
	stats := &BackfillStats{}

	update := func(entries []*models.MediaEntry) ([]*models.MediaEntry, error) {
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if e.Coordinates != "" && e.DateTime != "" && !opts.FixDates {
				stats.Skipped++
				continue
			}

			meta, err := b.metadataFor(ctx, e)
			if err != nil {
				b.logger.Printf("❌ %s: %v", e.Path, err)
				stats.Errors++
				continue
			}
			if meta == nil {
				stats.NoMetadata++
				continue
			}

			if b.apply(e, meta, opts.FixDates) {
				b.logger.Printf("✅ %s -> coordinates=%q dateTime=%q", e.Path, e.Coordinates, e.DateTime)
				stats.Updated++
			} else {
				stats.Skipped++
			}
		}
		return entries, nil
	}

	if opts.DryRun {
		entries, err := b.store.Load()
		if err != nil {
			return nil, err
		}
		_, err = update(entries)
		return stats, err
	}

	return stats, b.store.Update(update)
}

func (b *MetadataBackfill) apply(e *models.MediaEntry, meta *MediaMetadata, fixDates bool) bool {
	changed := false

	if coords := meta.Coordinates.String(); coords != "" && e.Coordinates == "" {
		e.Coordinates = coords
		e.City = ""
		changed = true
	}

	if !meta.TakenAt.IsZero() && (e.DateTime == "" || fixDates) {
		label, err := utils.FormatMonthYear(meta.TakenAt, b.locale)
		if err == nil && label != e.DateTime {
			e.DateTime = label
			changed = true
		}
	}
	return changed
}

// Returns nil metadata when the file carries none.
func (b *MetadataBackfill) metadataFor(ctx context.Context, e *models.MediaEntry) (*MediaMetadata, error) {
	localPath := filepath.Join(b.mediaDir, path.Base(e.Path))

	if _, err := os.Stat(localPath); errors.Is(err, os.ErrNotExist) {
		if b.fetcher == nil {
			return nil, fmt.Errorf("file not on disk")
		}
		fetched, cleanup, err := b.fetch(ctx, e.Path)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		localPath = fetched
	}

	meta, err := b.extract(ctx, localPath)
	if err != nil {
		b.logger.Printf("⚠️  No metadata in %s: %v", e.Path, err)
		return nil, nil
	}
	return meta, nil
}

// Downloads object into a temp file keeping its extension, which selects the extractor.
func (b *MetadataBackfill) fetch(ctx context.Context, object string) (string, func(), error) {
	data, err := b.fetcher.FetchFile(ctx, object)
	if err != nil {
		return "", nil, fmt.Errorf("fetch %s: %w", object, err)
	}

	tmp, err := os.CreateTemp("", "backfill-*"+path.Ext(object))
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { os.Remove(tmp.Name()) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return tmp.Name(), cleanup, nil
}
