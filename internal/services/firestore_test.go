package services

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"kzs-map/internal/errors"
	"kzs-map/internal/models"
)

func TestStaleDocumentIDs(t *testing.T) {
	entries := []*models.MediaEntry{{ID: 3}, {ID: 5}, {ID: 12}}

	assert.Equal(t, []string{"7", "legacy"}, staleDocumentIDs([]string{"3", "7", "12", "legacy"}, entries))
	assert.Empty(t, staleDocumentIDs([]string{"3", "5"}, entries))
	assert.Empty(t, staleDocumentIDs(nil, nil))
}

func TestMapFirestoreError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not found", status.Error(codes.NotFound, "no such document"), errors.ErrNotFound},
		{"permission denied", status.Error(codes.PermissionDenied, "missing role"), errors.ErrUnauthorized},
		{"unauthenticated", status.Error(codes.Unauthenticated, "token expired"), errors.ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapFirestoreError(tt.err), tt.want)
		})
	}

	other := stderrors.New("deadline exceeded")
	assert.Equal(t, other, mapFirestoreError(other))
}
