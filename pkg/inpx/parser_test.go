package inpx

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStructure = "AUTHOR;GENRE;TITLE;SERIES;SERNO;FILE;SIZE;LIBID;DEL;EXT;DATE;"

func sampleLine(overrides map[int]string) string {
	fields := []string{
		"Doe,John,:", "detective:", "Sample Book", "Sample Series",
		"1", "sample_book", "1234", "1234", "", "fb2", "2020-01-01",
	}
	for i, v := range overrides {
		fields[i] = v
	}
	return strings.Join(fields, fieldSeparator)
}

func writeDump(t *testing.T, members map[string][]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.inpx")
	require.NoError(t, os.WriteFile(path, buildZip(t, members, zip.Deflate), 0o644))
	return path
}

func collect(t *testing.T, p *Parser, path string) []Record {
	t.Helper()
	seq, err := p.Parse(path)
	require.NoError(t, err)
	var recs []Record
	for rec := range seq {
		recs = append(recs, rec)
	}
	return recs
}

func TestParseSingleRecord(t *testing.T) {
	dump := writeDump(t, map[string][]byte{
		structureMember: []byte(testStructure),
		"a.inp":         []byte(sampleLine(nil) + "\r\n"),
	})

	recs := collect(t, &Parser{}, dump)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, "Sample Book", rec.Title)
	assert.Equal(t, []string{"Doe,John,"}, rec.Authors)
	assert.Equal(t, []string{"detective"}, rec.Genres)
	assert.Equal(t, "Sample Series", rec.Series)
	require.NotNil(t, rec.SerNo)
	assert.Equal(t, 1, *rec.SerNo)
	require.NotNil(t, rec.Size)
	assert.Equal(t, 1234, *rec.Size)
	require.NotNil(t, rec.LibID)
	assert.Equal(t, 1234, *rec.LibID)
	assert.Equal(t, "fb2", rec.FileExt)
	assert.Equal(t, "sample_book", rec.FileStub)
	assert.Equal(t, "2020-01-01", rec.Date)
	assert.False(t, rec.Deleted)
}

func TestParseDefaultStructure(t *testing.T) {
	// No structure.info: the built-in column order applies, which carries
	// LANG/KEYWORDS/FOLDER after DATE.
	line := sampleLine(nil) + fieldSeparator + strings.Join([]string{"ru", "", "fb2-archive"}, fieldSeparator)
	dump := writeDump(t, map[string][]byte{"b.inp": []byte(line)})

	recs := collect(t, &Parser{}, dump)
	require.Len(t, recs, 1)
	assert.Equal(t, "ru", recs[0].Lang)
	assert.Equal(t, "fb2-archive", recs[0].Folder)
}

func TestParseDeletedAndMissingFields(t *testing.T) {
	dump := writeDump(t, map[string][]byte{
		structureMember: []byte(testStructure),
		"a.inp": []byte(strings.Join([]string{
			sampleLine(map[int]string{8: "1"}),        // DEL=1
			sampleLine(map[int]string{7: "notanint"}), // bad LIBID
			sampleLine(map[int]string{4: "", 6: ""}),  // empty SERNO/SIZE
		}, "\n")),
	})

	recs := collect(t, &Parser{}, dump)
	require.Len(t, recs, 3)
	assert.True(t, recs[0].Deleted)
	assert.Nil(t, recs[1].LibID, "unparseable LIBID must be absent, not an error")
	assert.Nil(t, recs[2].SerNo)
	assert.Nil(t, recs[2].Size)
}

func TestParseFallbackEncoding(t *testing.T) {
	// "Проверка" in CP1251; invalid as UTF-8.
	title := string([]byte{0xCF, 0xF0, 0xEE, 0xE2, 0xE5, 0xF0, 0xEA, 0xE0})
	dump := writeDump(t, map[string][]byte{
		structureMember: []byte(testStructure),
		"a.inp":         []byte(sampleLine(map[int]string{2: title})),
	})

	p := &Parser{}
	recs := collect(t, p, dump)
	require.Len(t, recs, 1)
	assert.Equal(t, "Проверка", recs[0].Title)
	assert.Equal(t, 1, p.FallbackLines())
}

func TestParseRecoversWithoutEOCD(t *testing.T) {
	members := map[string][]byte{
		structureMember: []byte(testStructure),
		"a.inp": []byte(strings.Join([]string{
			sampleLine(nil),
			sampleLine(map[int]string{7: "1235", 2: "Second Book"}),
		}, "\n")),
	}

	intact := writeDump(t, members)
	truncated := filepath.Join(t.TempDir(), "broken.inpx")
	require.NoError(t, os.WriteFile(truncated, stripEOCD(t, buildZip(t, members, zip.Deflate)), 0o644))

	want := collect(t, &Parser{}, intact)
	got := collect(t, &Parser{}, truncated)
	assert.Equal(t, want, got)
	require.Len(t, got, 2)
	assert.Equal(t, "Second Book", got[1].Title)
}

func TestParseGarbageDumpIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.inpx")
	require.NoError(t, os.WriteFile(path, []byte("no zip structure here"), 0o644))

	_, err := (&Parser{}).Parse(path)
	assert.ErrorIs(t, err, ErrMalformedContainer)
}

func TestParseProgressCadence(t *testing.T) {
	// Enough lines to cross the 500 KB threshold at least once.
	line := sampleLine(nil)
	var sb strings.Builder
	for sb.Len() < progressInterval+len(line) {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	dump := writeDump(t, map[string][]byte{
		structureMember: []byte(testStructure),
		"a.inp":         []byte(sb.String()),
	})

	type call struct {
		member           string
		processed, total int64
	}
	var calls []call
	p := &Parser{Progress: func(member string, processed, total int64) {
		calls = append(calls, call{member, processed, total})
	}}

	recs := collect(t, p, dump)
	assert.NotEmpty(t, recs)
	require.GreaterOrEqual(t, len(calls), 2, "one mid-member call plus the final call")

	final := calls[len(calls)-1]
	assert.Equal(t, "a.inp", final.member)
	assert.Equal(t, final.total, final.processed, "last call must report the full member size")
	for _, c := range calls {
		assert.LessOrEqual(t, c.processed, c.total)
	}
}

func TestParseStopsWhenConsumerStops(t *testing.T) {
	dump := writeDump(t, map[string][]byte{
		structureMember: []byte(testStructure),
		"a.inp": []byte(strings.Join([]string{
			sampleLine(nil), sampleLine(nil), sampleLine(nil),
		}, "\n")),
	})

	seq, err := (&Parser{}).Parse(dump)
	require.NoError(t, err)
	n := 0
	for range seq {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}
