package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"

	"kzs-map/internal/models"
	"kzs-map/internal/utils"
)

type StorageService struct {
	client     *storage.Client
	bucketName string
}

func NewStorageService(client *storage.Client, bucketName string) *StorageService {
	return &StorageService{
		client:     client,
		bucketName: bucketName,
	}
}

// Retrieves a file from Google Cloud Storage by its path.
// Returns the file contents as bytes or an error if the file cannot be retrieved.
func (s *StorageService) FetchFile(ctx context.Context, filePath string) ([]byte, error) {
	bucket := s.client.Bucket(s.bucketName)
	obj := bucket.Object(filePath)

	reader, err := obj.NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

// Writes data to filePath, replacing any existing object.
func (s *StorageService) UploadFile(ctx context.Context, filePath string, data []byte, contentType, cacheControl string) error {
	w := s.client.Bucket(s.bucketName).Object(filePath).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = cacheControl

	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("failed to write object %s: %w", filePath, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize object %s: %w", filePath, err)
	}
	return nil
}

// Reports whether an object exists at filePath.
func (s *StorageService) Exists(ctx context.Context, filePath string) (bool, error) {
	_, err := s.client.Bucket(s.bucketName).Object(filePath).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ObjectStore is the subset of StorageService the publisher needs.
type ObjectStore interface {
	Exists(ctx context.Context, filePath string) (bool, error)
	UploadFile(ctx context.Context, filePath string, data []byte, contentType, cacheControl string) error
}

// StoragePublisher mirrors the catalog document and every media file it
// references (plus video thumbnails) into a bucket. The catalog is always
// replaced; media objects are uploaded only when missing.
type StoragePublisher struct {
	store       ObjectStore
	catalogName string
	mediaDir    string
	logger      *log.Logger
}

func NewStoragePublisher(store ObjectStore, catalogName, mediaDir string) *StoragePublisher {
	return &StoragePublisher{
		store:       store,
		catalogName: catalogName,
		mediaDir:    mediaDir,
		logger:      log.New(os.Stdout, "[Publish] ", log.LstdFlags),
	}
}

func (p *StoragePublisher) Name() string {
	return "storage"
}

func (p *StoragePublisher) Publish(ctx context.Context, entries []*models.MediaEntry) error {
	uploaded := 0
	for _, e := range entries {
		objects := []string{e.Path}
		if utils.IsVideo(e.Path) {
			objects = append(objects, utils.ThumbnailPath(e.Path))
		}

		for _, object := range objects {
			if err := ctx.Err(); err != nil {
				return err
			}
			ok, err := p.uploadMissing(ctx, object)
			if err != nil {
				return err
			}
			if ok {
				uploaded++
			}
		}
	}

	data, err := EncodeCatalog(entries)
	if err != nil {
		return err
	}
	if err := p.store.UploadFile(ctx, p.catalogName, data, "application/json", "public, max-age=60"); err != nil {
		return err
	}

	p.logger.Printf("Published %s with %d entries (%d media objects uploaded)", p.catalogName, len(entries), uploaded)
	return nil
}

// Uploads the local copy of object when the bucket lacks it. Entries whose
// file is not on disk (kept stale entries) are skipped.
func (p *StoragePublisher) uploadMissing(ctx context.Context, object string) (bool, error) {
	localPath := filepath.Join(p.mediaDir, path.Base(object))
	if _, err := os.Stat(localPath); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	exists, err := p.store.Exists(ctx, object)
	if err != nil {
		return false, fmt.Errorf("stat object %s: %w", object, err)
	}
	if exists {
		return false, nil
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", localPath, err)
	}
	if err := p.store.UploadFile(ctx, object, data, utils.ContentType(object), "public, max-age=86400"); err != nil {
		return false, err
	}
	p.logger.Printf("Uploaded %s (%d bytes)", object, len(data))
	return true, nil
}
