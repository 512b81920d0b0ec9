package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/octave/internal/events"
)

type fakeStore struct {
	objects map[string][]byte
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Upload(_ context.Context, key string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeStore) List(_ context.Context, prefix string) ([]types.Object, error) {
	var out []types.Object
	for key, data := range f.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, types.Object{
				Key:  aws.String(key),
				Size: aws.Int64(int64(len(data))),
			})
		}
	}
	return out, nil
}

func (f *fakeStore) Download(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, assert.AnError
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func newCloudService(t *testing.T, store ObjectStore, keep int, bus *events.Bus) *CloudBackupService {
	t.Helper()

	dataDir := t.TempDir()
	db := newTestDatabase(t, dataDir, "universe")
	local := NewBackupService(map[string]*sql.DB{"universe": db.Conn()}, filepath.Join(dataDir, "backups"), zerolog.Nop())

	return NewCloudBackupService(store, local, filepath.Join(dataDir, "backups"), "backups/", keep, bus, zerolog.Nop())
}

func archiveEntries(t *testing.T, data []byte) map[string][]byte {
	t.Helper()

	gr, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer gr.Close()

	entries := make(map[string][]byte)
	tr := tar.NewReader(gr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		entries[header.Name] = content
	}
	return entries
}

func TestCloudBackupCreateAndUpload(t *testing.T) {
	store := newFakeStore()
	bus := events.NewBus(zerolog.Nop())

	var completed []*events.Event
	bus.Subscribe(events.BackupCompleted, func(e *events.Event) {
		completed = append(completed, e)
	})

	service := newCloudService(t, store, 0, bus)

	key, err := service.CreateAndUploadBackup(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "backups/octave-backup-"), "key %q", key)
	assert.True(t, strings.HasSuffix(key, ".tar.gz"), "key %q", key)

	data, ok := store.objects[key]
	require.True(t, ok, "archive should be uploaded")

	entries := archiveEntries(t, data)
	require.Contains(t, entries, "metadata.json")
	require.Contains(t, entries, "universe.db")

	var meta BackupMetadata
	require.NoError(t, json.Unmarshal(entries["metadata.json"], &meta))
	require.Len(t, meta.Databases, 1)
	assert.Equal(t, "universe", meta.Databases[0].Name)
	assert.Equal(t, "universe.db", meta.Databases[0].Filename)
	assert.Greater(t, meta.Databases[0].SizeBytes, int64(0))
	assert.True(t, strings.HasPrefix(meta.Databases[0].Checksum, "sha256:"))

	require.Len(t, completed, 1)
	assert.Equal(t, float64(1), completed[0].Data["databases"])
}

func TestCloudBackupRestoreLatest(t *testing.T) {
	store := newFakeStore()
	service := newCloudService(t, store, 0, nil)

	_, err := service.CreateAndUploadBackup(context.Background())
	require.NoError(t, err)

	destDir := filepath.Join(t.TempDir(), "restore")
	meta, err := service.RestoreLatest(context.Background(), destDir)
	require.NoError(t, err)
	require.Len(t, meta.Databases, 1)

	restored, err := sql.Open("sqlite", filepath.Join(destDir, "universe.db"))
	require.NoError(t, err)
	defer restored.Close()

	var count int
	require.NoError(t, restored.QueryRow("SELECT COUNT(*) FROM rows").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestCloudBackupRestoreWithNoBackups(t *testing.T) {
	service := newCloudService(t, newFakeStore(), 0, nil)

	_, err := service.RestoreLatest(context.Background(), t.TempDir())
	assert.ErrorContains(t, err, "no backups found")
}

func TestCloudBackupListAndRotate(t *testing.T) {
	store := newFakeStore()
	store.objects["backups/octave-backup-2026-01-01-000000.tar.gz"] = []byte("jan")
	store.objects["backups/octave-backup-2026-02-01-000000.tar.gz"] = []byte("feb")
	store.objects["backups/octave-backup-2026-03-01-000000.tar.gz"] = []byte("mar")
	store.objects["backups/notes.txt"] = []byte("ignore me")

	service := newCloudService(t, store, 2, nil)

	backups, err := service.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 3, "non-archive keys are ignored")
	assert.Equal(t, "backups/octave-backup-2026-03-01-000000.tar.gz", backups[0].Key)
	assert.Equal(t, "backups/octave-backup-2026-01-01-000000.tar.gz", backups[2].Key)

	require.NoError(t, service.RotateOldBackups(context.Background()))
	assert.Equal(t, []string{"backups/octave-backup-2026-01-01-000000.tar.gz"}, store.deleted)
	assert.Contains(t, store.objects, "backups/octave-backup-2026-03-01-000000.tar.gz")
	assert.Contains(t, store.objects, "backups/octave-backup-2026-02-01-000000.tar.gz")
}

func TestParseArchiveTimestamp(t *testing.T) {
	ts, ok := parseArchiveTimestamp("backups/octave-backup-2026-03-15-120000.tar.gz")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC), ts)

	_, ok = parseArchiveTimestamp("octave-backup-2026-03-15-120000.tar.gz")
	assert.True(t, ok, "bare keys parse too")

	for _, key := range []string{
		"backups/other-2026-03-15-120000.tar.gz",
		"backups/octave-backup-garbage.tar.gz",
		"backups/octave-backup-2026-03-15-120000.zip",
	} {
		_, ok := parseArchiveTimestamp(key)
		assert.False(t, ok, "key %q", key)
	}
}
