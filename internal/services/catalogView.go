package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	apperrors "kzs-map/internal/errors"
	"kzs-map/internal/models"
)

const catalogCacheKey = "catalog"

// CatalogView is the read side used by the HTTP server: the catalog document
// as stored on disk, and safe lookups of files in the media directory.
type CatalogView struct {
	store    *CatalogStore
	cache    *CacheService
	mediaDir string
	logger   *log.Logger
}

func NewCatalogView(store *CatalogStore, cache *CacheService, mediaDir string) *CatalogView {
	return &CatalogView{
		store:    store,
		cache:    cache,
		mediaDir: mediaDir,
		logger:   log.New(os.Stdout, "[Catalog] ", log.LstdFlags),
	}
}

// Document returns the catalog bytes from cache or disk.
func (v *CatalogView) Document() (*models.CacheEntry, error) {
	if entry, ok := v.cache.Get(catalogCacheKey); ok {
		return entry, nil
	}

	info, err := os.Stat(v.store.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("stat catalog: %w", err)
	}
	data, err := os.ReadFile(v.store.Path())
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	v.logger.Printf("Loaded catalog document (%d bytes)", len(data))
	return v.cache.Set(catalogCacheKey, data, "application/json; charset=utf-8", info.ModTime()), nil
}

// Invalidate drops the cached document.
func (v *CatalogView) Invalidate() {
	v.cache.Invalidate(catalogCacheKey)
}

func (v *CatalogView) Name() string {
	return "cache"
}

// Publish invalidates the cached document so the next request sees the new catalog.
func (v *CatalogView) Publish(_ context.Context, _ []*models.MediaEntry) error {
	v.Invalidate()
	return nil
}

// MediaFile resolves a bare file name inside the media directory. Names with
// path separators, traversal or a leading dot are rejected with ErrInvalidInput.
func (v *CatalogView) MediaFile(name string) (string, error) {
	if name == "" || len(name) > 255 || strings.HasPrefix(name, ".") ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: file name %q", apperrors.ErrInvalidInput, name)
	}

	full := filepath.Join(v.mediaDir, name)
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", apperrors.ErrNotFound
		}
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", apperrors.ErrNotFound
	}
	return full, nil
}
