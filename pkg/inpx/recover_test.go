package inpx

import (
	"archive/zip"
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eocdSig = []byte("PK\x05\x06")

func buildZip(t *testing.T, members map[string][]byte, method uint16) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range members {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// stripEOCD drops the end-of-central-directory record and everything after
// it, leaving only local entries and central-directory headers.
func stripEOCD(t *testing.T, data []byte) []byte {
	t.Helper()
	pos := bytes.LastIndex(data, eocdSig)
	require.GreaterOrEqual(t, pos, 0, "zip without EOCD record")
	return data[:pos]
}

func TestRecoverMembersDeflate(t *testing.T) {
	want := map[string][]byte{
		"books.inp":      bytes.Repeat([]byte("line of metadata\n"), 100),
		"structure.info": []byte("AUTHOR;TITLE;LIBID;"),
	}
	data := stripEOCD(t, buildZip(t, want, zip.Deflate))

	got, err := recoverMembers(data, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRecoverMembersStored(t *testing.T) {
	want := map[string][]byte{"books.inp": []byte("stored bytes")}
	data := stripEOCD(t, buildZip(t, want, zip.Store))

	got, err := recoverMembers(data, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRecoverMembersIntactZip(t *testing.T) {
	// With the EOCD still present the scan must produce the same listing.
	want := map[string][]byte{"books.inp": []byte("abc")}
	got, err := recoverMembers(buildZip(t, want, zip.Deflate), slog.Default())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRecoverMembersNoCentralDirectory(t *testing.T) {
	_, err := recoverMembers([]byte("this is not a zip at all"), slog.Default())
	assert.ErrorIs(t, err, ErrMalformedContainer)
}

func TestRecoverMembersSkipsUnsupportedMethod(t *testing.T) {
	data := stripEOCD(t, buildZip(t, map[string][]byte{
		"good.inp": []byte("ok"),
	}, zip.Deflate))

	// Append a second central-directory header claiming an unsupported
	// compression method; the entry must be skipped, not fail the scan.
	bogus := make([]byte, centralDirFixedLen)
	copy(bogus, centralDirSig)
	bogus[10] = 99 // compression method
	data = append(data, bogus...)

	got, err := recoverMembers(data, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"good.inp": []byte("ok")}, got)
}
