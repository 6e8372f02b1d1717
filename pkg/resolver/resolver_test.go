package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}

// dummyDump lays out two book archives with matching cover and image
// archives under the fixed subdirectories.
func dummyDump(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	touch(t, filepath.Join(root, "fb2-10-20.7z"))
	touch(t, filepath.Join(root, "d.fb2-21-30.7z"))
	for _, sub := range []string{"covers", "images"} {
		touch(t, filepath.Join(root, sub, "fb2-10-20.zip"))
		touch(t, filepath.Join(root, sub, "d.fb2-21-30.zip"))
	}
	return root
}

func TestResolveInsideRange(t *testing.T) {
	r, err := New(dummyDump(t))
	require.NoError(t, err)

	loc := r.Resolve(15)
	assert.Equal(t, "fb2-10-20.7z", filepath.Base(loc.Book))
	assert.Equal(t, "fb2-10-20.zip", filepath.Base(loc.Cover))
	assert.Equal(t, "fb2-10-20.zip", filepath.Base(loc.Images))

	loc = r.Resolve(25)
	assert.Equal(t, "d.fb2-21-30.7z", filepath.Base(loc.Book))
	assert.Equal(t, "d.fb2-21-30.zip", filepath.Base(loc.Cover))
	assert.Equal(t, "d.fb2-21-30.zip", filepath.Base(loc.Images))
}

func TestResolveBoundaries(t *testing.T) {
	r, err := New(dummyDump(t))
	require.NoError(t, err)

	assert.Equal(t, "fb2-10-20.7z", filepath.Base(r.Resolve(10).Book))
	assert.Equal(t, "fb2-10-20.7z", filepath.Base(r.Resolve(20).Book))
	assert.Equal(t, "d.fb2-21-30.7z", filepath.Base(r.Resolve(21).Book))
	assert.Equal(t, "d.fb2-21-30.7z", filepath.Base(r.Resolve(30).Book))
}

func TestResolveOutsideRanges(t *testing.T) {
	r, err := New(dummyDump(t))
	require.NoError(t, err)

	assert.Equal(t, Location{}, r.Resolve(31))
	assert.Equal(t, Location{}, r.Resolve(9))
}

func TestResolveGapBetweenRanges(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "fb2-10-20.7z"))
	touch(t, filepath.Join(root, "fb2-40-50.7z"))

	r, err := New(root)
	require.NoError(t, err)

	assert.Empty(t, r.Resolve(30).Book, "IDs in the gap resolve to nothing")
	assert.Equal(t, "fb2-40-50.7z", filepath.Base(r.Resolve(40).Book))
}

func TestResolverIgnoresForeignNames(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "fb2-10-20.7z"))
	touch(t, filepath.Join(root, "readme.txt"))
	touch(t, filepath.Join(root, "fb2-broken.7z"))
	touch(t, filepath.Join(root, "covers", "fb2-10-20.7z")) // wrong extension for an asset archive

	r, err := New(root)
	require.NoError(t, err)

	books, covers, images := r.Len()
	// The .7z under covers/ is rejected as an asset archive but the book
	// scan is recursive over the whole root, so it still counts as a book.
	assert.Equal(t, 2, books)
	assert.Zero(t, covers)
	assert.Zero(t, images)
}

func TestResolverNestedBookArchives(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "part1", "fb2-10-20.7z"))

	r, err := New(root)
	require.NoError(t, err)
	assert.Equal(t, "fb2-10-20.7z", filepath.Base(r.Resolve(12).Book))
}

func TestResolverMissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, ErrNotFound)
}
