package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steward-labs/steward/internal/database"
)

type fakeStore struct {
	uploads map[string][]byte
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploads: make(map[string][]byte)}
}

func (f *fakeStore) Upload(_ context.Context, key string, body io.Reader, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.uploads[key] = data
	return nil
}

func (f *fakeStore) List(_ context.Context, keyPrefix string) ([]types.Object, error) {
	var objects []types.Object
	for key, data := range f.uploads {
		if !strings.HasPrefix(key, keyPrefix) {
			continue
		}
		k := key
		size := int64(len(data))
		objects = append(objects, types.Object{Key: &k, Size: &size})
	}
	return objects, nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	delete(f.uploads, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func testDatabase(t *testing.T, dir, name string) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    filepath.Join(dir, name+".db"),
		Profile: database.ProfileStandard,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec("CREATE TABLE marker (id INTEGER PRIMARY KEY, label TEXT)")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO marker (label) VALUES ('hello')")
	require.NoError(t, err)
	return db
}

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer gz.Close()

	files := make(map[string][]byte)
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[header.Name] = content
	}
	return files
}

func TestCreateAndUploadBackup(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()

	service := NewBackupService(store, map[string]*database.DB{
		"watchlist":   testDatabase(t, dir, "watchlist"),
		"client_data": testDatabase(t, dir, "client_data"),
	}, dir, zerolog.Nop())

	require.NoError(t, service.CreateAndUploadBackup(context.Background()))
	require.Len(t, store.uploads, 1)

	var archiveName string
	for key := range store.uploads {
		archiveName = key
	}
	assert.True(t, strings.HasPrefix(archiveName, archivePrefix))
	assert.True(t, strings.HasSuffix(archiveName, ".tar.gz"))

	files := readArchive(t, store.uploads[archiveName])
	assert.Contains(t, files, "watchlist.db")
	assert.Contains(t, files, "client_data.db")
	require.Contains(t, files, "backup-metadata.json")

	var metadata BackupMetadata
	require.NoError(t, json.Unmarshal(files["backup-metadata.json"], &metadata))
	require.Len(t, metadata.Databases, 2)
	for _, db := range metadata.Databases {
		assert.True(t, strings.HasPrefix(db.Checksum, "sha256:"))
		assert.Greater(t, db.SizeBytes, int64(0))
	}
}

func TestListBackupsParsesAndSorts(t *testing.T) {
	store := newFakeStore()
	store.uploads[archivePrefix+"2026-08-01-040000.tar.gz"] = []byte("old")
	store.uploads[archivePrefix+"2026-08-20-040000.tar.gz"] = []byte("new")
	store.uploads["unrelated.txt"] = []byte("noise")
	store.uploads[archivePrefix+"garbage.tar.gz"] = []byte("bad name")

	service := NewBackupService(store, nil, t.TempDir(), zerolog.Nop())

	backups, err := service.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, archivePrefix+"2026-08-20-040000.tar.gz", backups[0].Filename)
	assert.Equal(t, archivePrefix+"2026-08-01-040000.tar.gz", backups[1].Filename)
	assert.GreaterOrEqual(t, backups[1].AgeHours, backups[0].AgeHours)
}

func TestRotateOldBackupsKeepsMinimum(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("%s2020-01-0%d-040000.tar.gz", archivePrefix, i+1)
		store.uploads[name] = []byte("x")
	}

	service := NewBackupService(store, nil, t.TempDir(), zerolog.Nop())

	// All three are ancient but under the minimum count, nothing goes.
	require.NoError(t, service.RotateOldBackups(context.Background(), 30))
	assert.Empty(t, store.deleted)
}

func TestRotateOldBackupsDeletesExpired(t *testing.T) {
	store := newFakeStore()

	// Three fresh backups plus two expired ones.
	now := time.Now()
	for i := 0; i < 3; i++ {
		name := archivePrefix + now.AddDate(0, 0, -i).Format(archiveTimeFormat) + ".tar.gz"
		store.uploads[name] = []byte("fresh")
	}
	oldA := archivePrefix + now.AddDate(0, 0, -90).Format(archiveTimeFormat) + ".tar.gz"
	oldB := archivePrefix + now.AddDate(0, 0, -120).Format(archiveTimeFormat) + ".tar.gz"
	store.uploads[oldA] = []byte("stale")
	store.uploads[oldB] = []byte("stale")

	service := NewBackupService(store, nil, t.TempDir(), zerolog.Nop())

	require.NoError(t, service.RotateOldBackups(context.Background(), 30))
	assert.ElementsMatch(t, []string{oldA, oldB}, store.deleted)
	assert.Len(t, store.uploads, 3)
}

func TestRotateRetentionZeroKeepsEverything(t *testing.T) {
	store := newFakeStore()
	now := time.Now()
	for i := 0; i < 5; i++ {
		name := archivePrefix + now.AddDate(0, 0, -i*100).Format(archiveTimeFormat) + ".tar.gz"
		store.uploads[name] = []byte("x")
	}

	service := NewBackupService(store, nil, t.TempDir(), zerolog.Nop())

	require.NoError(t, service.RotateOldBackups(context.Background(), 0))
	assert.Empty(t, store.deleted)
}

func TestMaintenanceJobCheckpointsDatabases(t *testing.T) {
	dir := t.TempDir()
	job := NewMaintenanceJob(map[string]*database.DB{
		"watchlist": testDatabase(t, dir, "watchlist"),
	}, zerolog.Nop())

	assert.Equal(t, "db_maintenance", job.Name())
	require.NoError(t, job.Run())
}
