package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"kzs-map/internal/errors"
	"kzs-map/internal/models"
)

// FirestoreService mirrors catalog entries into a collection, one document
// per entry keyed by its identifier.
type FirestoreService struct {
	client     *firestore.Client
	collection string
	logger     *log.Logger
}

func NewFirestoreService(client *firestore.Client, collection string) *FirestoreService {
	return &FirestoreService{
		client:     client,
		collection: collection,
		logger:     log.New(os.Stdout, "[Firestore] ", log.LstdFlags),
	}
}

func (fs *FirestoreService) Name() string {
	return "firestore"
}

// Publish upserts every entry and deletes documents whose identifier is no
// longer in the catalog.
func (fs *FirestoreService) Publish(ctx context.Context, entries []*models.MediaEntry) error {
	existing, err := fs.documentIDs(ctx)
	if err != nil {
		return err
	}

	col := fs.client.Collection(fs.collection)
	bw := fs.client.BulkWriter(ctx)

	var jobs []*firestore.BulkWriterJob
	for _, e := range entries {
		job, err := bw.Set(col.Doc(documentID(e)), e)
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to queue entry %d: %w", e.ID, err)
		}
		jobs = append(jobs, job)
	}

	stale := staleDocumentIDs(existing, entries)
	for _, id := range stale {
		job, err := bw.Delete(col.Doc(id))
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to queue delete of %s: %w", id, err)
		}
		jobs = append(jobs, job)
	}

	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("failed to write mirror: %w", mapFirestoreError(err))
		}
	}

	fs.logger.Printf("Mirrored %d entries to %s (%d stale documents removed)", len(entries), fs.collection, len(stale))
	return nil
}

func (fs *FirestoreService) documentIDs(ctx context.Context) ([]string, error) {
	iter := fs.client.Collection(fs.collection).DocumentRefs(ctx)

	var ids []string
	for {
		ref, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list documents: %w", mapFirestoreError(err))
		}
		ids = append(ids, ref.ID)
	}
	return ids, nil
}

func documentID(e *models.MediaEntry) string {
	return strconv.FormatInt(e.ID, 10)
}

func staleDocumentIDs(existing []string, entries []*models.MediaEntry) []string {
	current := make(map[string]bool, len(entries))
	for _, e := range entries {
		current[documentID(e)] = true
	}

	var stale []string
	for _, id := range existing {
		if !current[id] {
			stale = append(stale, id)
		}
	}
	return stale
}

// Maps gRPC status codes onto the application's sentinel errors.
func mapFirestoreError(err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", errors.ErrNotFound, err)
	case codes.PermissionDenied, codes.Unauthenticated:
		return fmt.Errorf("%w: %v", errors.ErrUnauthorized, err)
	}
	return err
}
