package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"

	"kzs-map/internal/utils"
)

// DriveSource is the part of DriveClient the ingester needs.
type DriveSource interface {
	ListFilesInFolder(ctx context.Context, folderID string) ([]*drive.File, error)
	Download(ctx context.Context, id string, w io.Writer) (int64, error)
}

// DriveService pulls media files that are not yet on disk from a Drive
// folder into the media directory, so the next pass picks them up.
type DriveService struct {
	source          DriveSource
	folderID        string
	downloadTimeout time.Duration
	logger          *log.Logger
}

func NewDriveService(source DriveSource, folderID string) *DriveService {
	return &DriveService{
		source:          source,
		folderID:        folderID,
		downloadTimeout: 5 * time.Minute,
		logger:          log.New(os.Stdout, "[DriveSync] ", log.LstdFlags),
	}
}

// Ingest downloads every new media file and returns how many were written.
// Per-file failures are logged and skipped; only a failed listing is an error.
func (ds *DriveService) Ingest(ctx context.Context, mediaDir string) (int, error) {
	files, err := ds.source.ListFilesInFolder(ctx, ds.folderID)
	if err != nil {
		return 0, err
	}

	var newCount, skippedCount, errCount int
	for _, f := range files {
		if ctx.Err() != nil {
			return newCount, ctx.Err()
		}

		if reason := ds.skipReason(f, mediaDir); reason != "" {
			ds.logger.Printf("Skipping %s: %s", f.Name, reason)
			skippedCount++
			continue
		}

		if err := ds.download(ctx, f, mediaDir); err != nil {
			ds.logger.Printf("Download error for %s: %v", f.Name, err)
			errCount++
			continue
		}
		newCount++
	}

	ds.logger.Printf("Ingest complete: %d downloaded, %d skipped, %d errors", newCount, skippedCount, errCount)
	return newCount, nil
}

func (ds *DriveService) skipReason(f *drive.File, mediaDir string) string {
	if !utils.IsMediaFile(f) {
		return "not a media file (" + f.MimeType + ")"
	}
	if f.Name == "" || f.Name != filepath.Base(f.Name) || strings.HasPrefix(f.Name, ".") || strings.Contains(f.Name, `\`) {
		return "unsafe file name"
	}
	if _, err := utils.ExtractIdentifier(f.Name); err != nil {
		return "no usable identifier in name"
	}
	if fileExists(filepath.Join(mediaDir, f.Name)) {
		return "already present"
	}
	return ""
}

// Writes to a hidden temp file first so a pass never sees a partial download.
func (ds *DriveService) download(ctx context.Context, f *drive.File, mediaDir string) error {
	ctx, cancel := context.WithTimeout(ctx, ds.downloadTimeout)
	defer cancel()

	tmp, err := os.CreateTemp(mediaDir, ".drive-*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	n, err := ds.source.Download(ctx, f.Id, tmp)
	if err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(mediaDir, f.Name)); err != nil {
		return fmt.Errorf("move into media dir: %w", err)
	}

	ds.logger.Printf("Downloaded %s (%d bytes)", f.Name, n)
	return nil
}
