package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

const driveFileFields = "id, name, mimeType, size, createdTime, modifiedTime"

// Lists and downloads files of a Drive folder.
type DriveClient struct {
	client     *drive.Service
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	logger     *log.Logger
}

// Creates a DriveClient allowing one API call every 2 seconds.
func NewDriveClient(client *drive.Service) *DriveClient {
	return &DriveClient{
		client:     client,
		limiter:    rate.NewLimiter(rate.Every(2*time.Second), 1),
		maxRetries: 3,
		backoff:    5 * time.Second,
		logger:     log.New(os.Stdout, "[DriveClient] ", log.LstdFlags),
	}
}

func isDriveRateLimit(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && (apiErr.Code == 403 || apiErr.Code == 429)
}

// Runs call, retrying rate-limit responses with exponential backoff (5s, 10s, 20s).
func (d *DriveClient) withRetry(ctx context.Context, what string, call func() error) error {
	for attempt := 0; ; attempt++ {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}

		err := call()
		if err == nil {
			return nil
		}
		if !isDriveRateLimit(err) || attempt >= d.maxRetries {
			return fmt.Errorf("%s: %w", what, err)
		}

		sleep := d.backoff * time.Duration(1<<uint(attempt))
		d.logger.Printf("Rate limited on %s, retry %d/%d in %v", what, attempt+1, d.maxRetries, sleep)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// Lists all non-trashed files in the folder (paginated).
func (d *DriveClient) ListFilesInFolder(ctx context.Context, folderID string) ([]*drive.File, error) {
	if d.client == nil {
		return nil, fmt.Errorf("drive client is nil")
	}

	// Drive query strings escape single quotes with a backslash
	escapedFolderID := strings.ReplaceAll(folderID, "'", "\\'")
	query := fmt.Sprintf("'%s' in parents and trashed=false", escapedFolderID)

	var allFiles []*drive.File
	pageToken := ""
	for {
		var fileList *drive.FileList
		err := d.withRetry(ctx, "list files", func() error {
			call := d.client.Files.List().
				Context(ctx).
				Q(query).
				Fields(googleapi.Field("nextPageToken, files(" + driveFileFields + ")")).
				PageSize(1000)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}

			var err error
			fileList, err = call.Do()
			return err
		})
		if err != nil {
			return nil, err
		}

		allFiles = append(allFiles, fileList.Files...)
		if fileList.NextPageToken == "" {
			break
		}
		pageToken = fileList.NextPageToken
	}

	return allFiles, nil
}

// Streams the content of a Drive file into w.
func (d *DriveClient) Download(ctx context.Context, id string, w io.Writer) (int64, error) {
	if d.client == nil {
		return 0, fmt.Errorf("drive client is nil")
	}

	var written int64
	err := d.withRetry(ctx, "download "+id, func() error {
		resp, err := d.client.Files.Get(id).Context(ctx).Download()
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		written, err = io.Copy(w, resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		return nil
	})
	return written, err
}
