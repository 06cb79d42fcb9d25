package services

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"
)

type fakeDriveSource struct {
	files    []*drive.File
	contents map[string]string
	listErr  error
}

func (s *fakeDriveSource) ListFilesInFolder(_ context.Context, _ string) ([]*drive.File, error) {
	return s.files, s.listErr
}

func (s *fakeDriveSource) Download(_ context.Context, id string, w io.Writer) (int64, error) {
	content, ok := s.contents[id]
	if !ok {
		return 0, errors.New("googleapi: Error 404: File not found")
	}
	return io.Copy(w, strings.NewReader(content))
}

func TestDriveService_Ingest(t *testing.T) {
	mediaDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(mediaDir, "4.jpg"), []byte("local"), 0644))

	source := &fakeDriveSource{
		files: []*drive.File{
			{Id: "a", Name: "21.jpg", MimeType: "image/jpeg"},
			{Id: "b", Name: "22.mp4", MimeType: "video/mp4"},
			{Id: "c", Name: "4.jpg", MimeType: "image/jpeg"},
			{Id: "d", Name: "notes.txt", MimeType: "text/plain"},
			{Id: "e", Name: "cover.jpg", MimeType: "image/jpeg"},
			{Id: "f", Name: "../9.jpg", MimeType: "image/jpeg"},
			{Id: "missing", Name: "30.jpg", MimeType: "image/jpeg"},
		},
		contents: map[string]string{"a": "photo", "b": "video", "c": "remote", "f": "escape"},
	}

	n, err := NewDriveService(source, "folder").Ingest(context.Background(), mediaDir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(filepath.Join(mediaDir, "21.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "photo", string(data))

	data, err = os.ReadFile(filepath.Join(mediaDir, "4.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "local", string(data), "existing files are never overwritten")

	files, err := os.ReadDir(mediaDir)
	require.NoError(t, err)
	var names []string
	for _, f := range files {
		names = append(names, f.Name())
	}
	assert.ElementsMatch(t, []string{"21.jpg", "22.mp4", "4.jpg"}, names)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(mediaDir), "9.jpg"))
}

func TestDriveService_ListError(t *testing.T) {
	source := &fakeDriveSource{listErr: errors.New("list files: 500")}

	n, err := NewDriveService(source, "folder").Ingest(context.Background(), t.TempDir())
	assert.Error(t, err)
	assert.Zero(t, n)
}
