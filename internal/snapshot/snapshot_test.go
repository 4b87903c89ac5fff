package snapshot_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopindex/internal/domain"
	"shopindex/internal/snapshot"
)

func mkdirs(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(p, 0o755))
	}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLatest_PicksNewest(t *testing.T) {
	root := t.TempDir()
	mkdirs(t,
		filepath.Join(root, "snapshot=2024-01-01-00-00-00"),
		filepath.Join(root, "snapshot=2024-06-15-12-30-00"),
		filepath.Join(root, "other"),
	)
	got, err := snapshot.Latest(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "snapshot=2024-06-15-12-30-00"), got)
	assert.Equal(t, "2024-06-15-12-30-00", snapshot.Timestamp(got))
}

func TestLatest_DirIsSnapshot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshot=2024-01-01-00-00-00")
	mkdirs(t, dir)
	got, err := snapshot.Latest(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestLatest_NoSnapshot(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, filepath.Join(root, "snapshot=latest"))
	_, err := snapshot.Latest(root)
	assert.True(t, errors.Is(err, domain.ErrNoSnapshotFound))

	_, err = snapshot.Latest(filepath.Join(root, "missing"))
	assert.True(t, errors.Is(err, domain.ErrNoSnapshotFound))
}

func TestFiles_SortedRecursive(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.parquet"), "x")
	writeFile(t, filepath.Join(root, "a", "c.parquet"), "x")
	writeFile(t, filepath.Join(root, "a.parquet"), "x")
	writeFile(t, filepath.Join(root, "notes.txt"), "x")

	files, err := snapshot.Files(root)
	require.NoError(t, err)
	// byte order: '.' sorts before '/'
	assert.Equal(t, []string{
		filepath.Join(root, "a.parquet"),
		filepath.Join(root, "a", "c.parquet"),
		filepath.Join(root, "b.parquet"),
	}, files)
}

func TestDiscoverCatalogs(t *testing.T) {
	root := t.TempDir()
	mkdirs(t,
		snapshot.CatalogDir(root, "acme", "shoes"),
		snapshot.CatalogDir(root, "acme", "hats"),
		filepath.Join(root, "acme", "junk"),
	)
	got, err := snapshot.DiscoverCatalogs(root, "acme")
	require.NoError(t, err)
	assert.Equal(t, []string{"hats", "shoes"}, got)
}

func TestMirror_CopiesLatestAndSkipsUnchanged(t *testing.T) {
	bucket := t.TempDir()
	download := t.TempDir()
	cat := snapshot.CatalogDir(bucket, "acme", "shoes")
	writeFile(t, filepath.Join(cat, "snapshot=2024-01-01-00-00-00", "old.parquet"), "old")
	writeFile(t, filepath.Join(cat, "snapshot=2024-06-15-12-30-00", "part-0.parquet"), "zero")
	writeFile(t, filepath.Join(cat, "snapshot=2024-06-15-12-30-00", "part-1.parquet"), "one")

	m := snapshot.NewMirror(bucket, download, "acme", 2, 0)
	dst, err := m.Fetch(context.Background(), "shoes")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-15-12-30-00", snapshot.Timestamp(dst))

	files, err := snapshot.Files(dst)
	require.NoError(t, err)
	require.Len(t, files, 2)
	b, err := os.ReadFile(files[1])
	require.NoError(t, err)
	assert.Equal(t, "one", string(b))

	// a same-size local file is left alone
	require.NoError(t, os.WriteFile(files[0], []byte("ZERO"), 0o644))
	_, err = m.Fetch(context.Background(), "shoes")
	require.NoError(t, err)
	b, err = os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, "ZERO", string(b))
}
