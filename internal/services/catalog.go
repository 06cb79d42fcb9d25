package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	apperrors "kzs-map/internal/errors"
	"kzs-map/internal/models"
	"kzs-map/internal/utils"
)

// CatalogStore owns the images.json document. Writes replace the file
// atomically so readers (and crashes) never observe a truncated catalog.
type CatalogStore struct {
	path   string
	logger *log.Logger
}

func NewCatalogStore(path string) *CatalogStore {
	return &CatalogStore{
		path:   path,
		logger: log.New(os.Stdout, "[Catalog] ", log.LstdFlags),
	}
}

func (s *CatalogStore) Path() string {
	return s.path
}

// Legacy catalogs have no "id" key; a nil ID means it has to be derived from the path.
type storedEntry struct {
	ID *int64 `json:"id"`
	models.MediaEntry
}

// Load reads and validates the catalog. A missing or malformed file is an
// error; there is no empty default. Entries without an id get the first digit
// run of their path, and two entries sharing an id wrap ErrDuplicateIdentifier.
func (s *CatalogStore) Load() ([]*models.MediaEntry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var stored []storedEntry
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", s.path, err)
	}

	entries := make([]*models.MediaEntry, 0, len(stored))
	seen := make(map[int64]string, len(stored))
	for i := range stored {
		entry := stored[i].MediaEntry
		if stored[i].ID != nil {
			entry.ID = *stored[i].ID
		} else {
			id, err := utils.ExtractIdentifier(entry.Path)
			if err != nil {
				return nil, fmt.Errorf("catalog entry %d: %w", i, err)
			}
			entry.ID = id
		}

		if other, dup := seen[entry.ID]; dup {
			return nil, fmt.Errorf("%w: %d used by %q and %q", apperrors.ErrDuplicateIdentifier, entry.ID, other, entry.Path)
		}
		seen[entry.ID] = entry.Path
		entries = append(entries, &entry)
	}

	return entries, nil
}

// Save writes entries to a temporary file next to the catalog, syncs it and
// renames it over the catalog.
func (s *CatalogStore) Save(entries []*models.MediaEntry) error {
	data, err := EncodeCatalog(entries)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp catalog: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp catalog: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp catalog: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("chmod temp catalog: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}

	s.logger.Printf("Saved %d entries to %s", len(entries), s.path)
	return nil
}

// Update loads the catalog, hands it to fn and saves what fn returns. When fn
// fails the catalog file is left untouched.
func (s *CatalogStore) Update(fn func([]*models.MediaEntry) ([]*models.MediaEntry, error)) error {
	entries, err := s.Load()
	if err != nil {
		return err
	}

	updated, err := fn(entries)
	if err != nil {
		return err
	}

	return s.Save(updated)
}

// EncodeCatalog renders entries the way the catalog is stored: a JSON array
// indented with 4 spaces, non-ASCII and HTML characters written literally.
func EncodeCatalog(entries []*models.MediaEntry) ([]byte, error) {
	if entries == nil {
		entries = []*models.MediaEntry{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(entries); err != nil {
		return nil, fmt.Errorf("encode catalog: %w", err)
	}
	return buf.Bytes(), nil
}

// SortEntries orders entries ascending by identifier, keeping the relative
// order of equal identifiers.
func SortEntries(entries []*models.MediaEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ID < entries[j].ID
	})
}
