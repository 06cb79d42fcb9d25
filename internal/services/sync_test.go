package services

import (
	"context"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "kzs-map/internal/errors"
	"kzs-map/internal/models"
)

type fakeGeocoder struct {
	results map[string]string
	err     error
	calls   int
}

func (g *fakeGeocoder) ReverseGeocode(_ context.Context, c models.Coordinates) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.results[c.String()], nil
}

type recordingPublisher struct {
	published [][]*models.MediaEntry
	err       error
}

func (p *recordingPublisher) Name() string { return "recorder" }

func (p *recordingPublisher) Publish(_ context.Context, entries []*models.MediaEntry) error {
	p.published = append(p.published, entries)
	return p.err
}

type fakeIngester struct {
	files []string
	calls int
}

func (i *fakeIngester) Ingest(_ context.Context, mediaDir string) (int, error) {
	i.calls++
	for _, f := range i.files {
		if err := os.WriteFile(filepath.Join(mediaDir, f), []byte("data"), 0644); err != nil {
			return 0, err
		}
	}
	return len(i.files), nil
}

type syncFixture struct {
	root     string
	mediaDir string
	catalog  string
	decoder  *fakeDecoder
	geocoder *fakeGeocoder
	svc      *SyncService
}

func newSyncFixture(t *testing.T, catalog string, files ...string) *syncFixture {
	t.Helper()
	root := t.TempDir()
	mediaDir := filepath.Join(root, "images")
	require.NoError(t, os.Mkdir(mediaDir, 0755))
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(mediaDir, f), []byte("data"), 0644))
	}
	catalogPath := filepath.Join(root, "images.json")
	require.NoError(t, os.WriteFile(catalogPath, []byte(catalog), 0644))

	decoder := &fakeDecoder{frames: map[string]image.Image{}}
	for _, f := range files {
		decoder.frames[f] = solidFrame(640, 360)
	}
	geocoder := &fakeGeocoder{results: map[string]string{"46.05,14.51": "Ljubljana, Slovenija"}}

	svc := NewSyncService(
		NewCatalogStore(catalogPath),
		NewThumbnailService(decoder, 320, 90),
		geocoder,
		SyncOptions{
			MediaDir:       mediaDir,
			MediaPrefix:    "images",
			ThumbnailWidth: 320,
			DateLocale:     "sl",
		},
	)
	svc.now = func() time.Time { return time.Date(2025, time.August, 11, 12, 0, 0, 0, time.UTC) }

	return &syncFixture{root: root, mediaDir: mediaDir, catalog: catalogPath, decoder: decoder, geocoder: geocoder, svc: svc}
}

func (f *syncFixture) load(t *testing.T) []*models.MediaEntry {
	t.Helper()
	entries, err := NewCatalogStore(f.catalog).Load()
	require.NoError(t, err)
	return entries
}

func (f *syncFixture) raw(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(f.catalog)
	require.NoError(t, err)
	return string(data)
}

func TestSync_NewVideosNumericOrder(t *testing.T) {
	f := newSyncFixture(t, "[]", "12.mp4", "5.mp4")

	stats, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	entries := f.load(t)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(5), entries[0].ID)
	assert.Equal(t, "images/5.mp4", entries[0].Path)
	assert.Equal(t, int64(12), entries[1].ID)
	assert.Equal(t, "images/12.mp4", entries[1].Path)

	for _, e := range entries {
		assert.Equal(t, "avgust 2025", e.DateTime)
		assert.Empty(t, e.Coordinates)
		assert.Empty(t, e.Description)
		assert.Empty(t, e.City)
	}

	assert.Equal(t, 2, stats.Added)
	assert.Equal(t, 2, stats.Thumbnails)
	assert.Equal(t, 2, stats.Entries)

	for _, name := range []string{"5.jpg", "12.jpg"} {
		file, err := os.Open(filepath.Join(f.mediaDir, name))
		require.NoError(t, err)
		cfg, err := jpeg.DecodeConfig(file)
		file.Close()
		require.NoError(t, err)
		assert.Equal(t, 320, cfg.Width)
		assert.Equal(t, 180, cfg.Height)
	}
}

func TestSync_Idempotent(t *testing.T) {
	f := newSyncFixture(t, `[{"path": "images/3.jpg", "coordinates": "46.05,14.51", "description": "", "city": "", "dateTime": ""}]`,
		"3.jpg", "5.mp4", "12.mp4")

	_, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	first := f.raw(t)
	decoderCalls := len(f.decoder.calls)
	geocoderCalls := f.geocoder.calls

	stats, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, f.raw(t))
	assert.Equal(t, decoderCalls, len(f.decoder.calls), "thumbnails must not be regenerated")
	assert.Equal(t, geocoderCalls, f.geocoder.calls, "resolved cities must not be geocoded again")
	assert.Zero(t, stats.Added)
	assert.Zero(t, stats.Thumbnails)
	assert.Len(t, f.load(t), 3)
}

func TestSync_GeocodesEntriesWithCoordinates(t *testing.T) {
	f := newSyncFixture(t, `[
		{"path": "images/3.jpg", "coordinates": "46.05,14.51", "description": "", "city": "", "dateTime": ""},
		{"path": "images/4.jpg", "coordinates": "45.54,13.73", "description": "", "city": "Koper, Slovenija", "dateTime": ""}
	]`, "3.jpg", "4.jpg")

	stats, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	entries := f.load(t)
	assert.Equal(t, "Ljubljana, Slovenija", entries[0].City)
	assert.Equal(t, "Koper, Slovenija", entries[1].City)
	assert.Equal(t, 1, stats.Geocoded)
	assert.Equal(t, 1, f.geocoder.calls)
}

func TestSync_FileWithoutDigitsAborts(t *testing.T) {
	original := `[{"path": "images/3.jpg", "coordinates": "46.05,14.51", "description": "", "city": "", "dateTime": ""}]`
	f := newSyncFixture(t, original, "3.jpg", "photo.jpg")

	_, err := f.svc.Run(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrMissingIdentifier)
	assert.Equal(t, original, f.raw(t))
	assert.Zero(t, f.geocoder.calls)
}

func TestSync_GeocoderFailureLeavesCatalogUntouched(t *testing.T) {
	original := `[{"path": "images/3.jpg", "coordinates": "46.05,14.51", "description": "", "city": "", "dateTime": ""}]`
	f := newSyncFixture(t, original, "3.jpg", "7.mp4")
	f.geocoder.err = errors.New("connection refused")

	_, err := f.svc.Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "images/3.jpg")
	assert.Equal(t, original, f.raw(t))
}

func TestSync_InvalidCoordinatesAbort(t *testing.T) {
	f := newSyncFixture(t, `[{"path": "images/3.jpg", "coordinates": "46.05 14.51", "city": ""}]`, "3.jpg")

	_, err := f.svc.Run(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrInvalidCoordinates)
}

func TestSync_ThumbnailFailureIsNotFatal(t *testing.T) {
	f := newSyncFixture(t, "[]", "5.mp4", "6.mp4")
	delete(f.decoder.frames, "6.mp4")

	stats, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Thumbnails)
	assert.Equal(t, 1, stats.ThumbnailFailures)
	assert.Len(t, f.load(t), 2)
	assert.FileExists(t, filepath.Join(f.mediaDir, "5.jpg"))
	assert.NoFileExists(t, filepath.Join(f.mediaDir, "6.jpg"))
}

func TestSync_ExistingThumbnailIsNotAnEntry(t *testing.T) {
	f := newSyncFixture(t, "[]", "5.jpg", "5.mp4")

	stats, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	entries := f.load(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "images/5.mp4", entries[0].Path)
	assert.Zero(t, stats.Thumbnails)
	assert.Empty(t, f.decoder.calls)
}

func TestSync_KeepsStaleEntries(t *testing.T) {
	f := newSyncFixture(t, `[{"id": 40, "path": "images/40.jpg", "coordinates": "", "description": "izbrisana", "city": "", "dateTime": "maj 2024"}]`, "2.jpg")

	_, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	entries := f.load(t)
	require.Len(t, entries, 2)
	assert.Equal(t, "images/2.jpg", entries[0].Path)
	assert.Equal(t, "images/40.jpg", entries[1].Path)
	assert.Equal(t, "izbrisana", entries[1].Description)
}

func TestSync_CollidingIdentifiersAddOnce(t *testing.T) {
	f := newSyncFixture(t, "[]", "8.jpg", "8-b.jpg")

	_, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	entries := f.load(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "images/8-b.jpg", entries[0].Path)
}

func TestSync_HeicWithJpegSibling(t *testing.T) {
	f := newSyncFixture(t, "[]", "4.heic", "4.jpg")
	f.svc.opts.ConvertHeic = true

	stats, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	entries := f.load(t)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(4), entries[0].ID)
	assert.Equal(t, "images/4.jpg", entries[0].Path)
	assert.Equal(t, 1, stats.Added)
	assert.Zero(t, stats.HeicConverted, "an existing JPEG is reused")

	first := f.raw(t)
	stats, err = f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Added)
	assert.Equal(t, first, f.raw(t))
}

func TestSync_UndecodableHeicKeepsOriginal(t *testing.T) {
	f := newSyncFixture(t, "[]", "6.heic")
	f.svc.opts.ConvertHeic = true

	stats, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	entries := f.load(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "images/6.heic", entries[0].Path)
	assert.Zero(t, stats.HeicConverted)
	assert.NoFileExists(t, filepath.Join(f.mediaDir, "6.jpg"))
}

func TestSync_ExtractsMetadataForNewEntries(t *testing.T) {
	f := newSyncFixture(t, `[{"path": "images/3.jpg", "coordinates": "", "description": "", "city": "", "dateTime": "maj 2020"}]`,
		"3.jpg", "7.jpg", "9.mp4")
	f.svc.opts.ExtractMetadata = true

	var extracted []string
	f.svc.extract = func(_ context.Context, p string) (*MediaMetadata, error) {
		extracted = append(extracted, filepath.Base(p))
		if filepath.Ext(p) == ".mp4" {
			return nil, errors.New("no creation time")
		}
		return &MediaMetadata{
			Coordinates: models.Coordinates{Lat: "46.05", Lng: "14.51"},
			TakenAt:     time.Date(2024, time.May, 3, 10, 0, 0, 0, time.UTC),
		}, nil
	}

	stats, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"7.jpg", "9.mp4"}, extracted, "known entries are not re-read")

	entries := f.load(t)
	require.Len(t, entries, 3)

	assert.Empty(t, entries[0].Coordinates)
	assert.Equal(t, "maj 2020", entries[0].DateTime)

	assert.Equal(t, "images/7.jpg", entries[1].Path)
	assert.Equal(t, "46.05,14.51", entries[1].Coordinates)
	assert.Equal(t, "maj 2024", entries[1].DateTime)
	assert.Equal(t, "Ljubljana, Slovenija", entries[1].City)

	assert.Equal(t, "images/9.mp4", entries[2].Path)
	assert.Empty(t, entries[2].Coordinates)
	assert.Equal(t, "avgust 2025", entries[2].DateTime, "entries without metadata keep the creation label")

	assert.Equal(t, 2, stats.Added)
	assert.Equal(t, 1, stats.Geocoded)
}

func TestSync_OutOfRangeIdentifierAborts(t *testing.T) {
	original := `[]`
	f := newSyncFixture(t, original, "20250811123045123456789.jpg")

	_, err := f.svc.Run(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrIdentifierOutOfRange)
	assert.Equal(t, original, f.raw(t))
}

func TestSync_SkipsHiddenFilesAndDirectories(t *testing.T) {
	f := newSyncFixture(t, "[]", ".gitkeep", "1.jpg")
	require.NoError(t, os.Mkdir(filepath.Join(f.mediaDir, "originals"), 0755))

	_, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.load(t), 1)
}

func TestSync_MissingCatalogIsFatal(t *testing.T) {
	f := newSyncFixture(t, "[]", "1.jpg")
	require.NoError(t, os.Remove(f.catalog))

	_, err := f.svc.Run(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoFileExists(t, f.catalog)
}

func TestSync_DryRunWritesNothing(t *testing.T) {
	f := newSyncFixture(t, `[{"path": "images/3.jpg", "coordinates": "46.05,14.51", "city": ""}]`, "3.jpg", "5.mp4")
	f.svc.opts.DryRun = true
	before := f.raw(t)

	stats, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Added)
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, before, f.raw(t))
	assert.NoFileExists(t, filepath.Join(f.mediaDir, "5.jpg"))
	assert.Zero(t, f.geocoder.calls)
}

func TestSync_RejectsConcurrentPass(t *testing.T) {
	f := newSyncFixture(t, "[]")
	f.svc.running.Lock()
	defer f.svc.running.Unlock()

	_, err := f.svc.Run(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrSyncInProgress)
}

func TestSync_IngestAndPublish(t *testing.T) {
	f := newSyncFixture(t, "[]")
	ingester := &fakeIngester{files: []string{"21.jpg"}}
	ok := &recordingPublisher{}
	failing := &recordingPublisher{err: errors.New("bucket gone")}
	f.svc.AddIngester(ingester)
	f.svc.AddPublisher(ok)
	f.svc.AddPublisher(failing)

	stats, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, ingester.calls)
	assert.Equal(t, 1, stats.Ingested)
	assert.Equal(t, 1, stats.PublishErrors)
	require.Len(t, ok.published, 1)
	require.Len(t, ok.published[0], 1)
	assert.Equal(t, "images/21.jpg", ok.published[0][0].Path)
}

func TestSync_CanceledContext(t *testing.T) {
	original := "[]"
	f := newSyncFixture(t, original, "1.jpg")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, original, f.raw(t))
}
