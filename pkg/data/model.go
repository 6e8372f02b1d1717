package data

import (
	"strings"
	"time"
)

// Book is one catalog record with its resolved archive locations. LibID is
// the library-wide numeric ID; records without one are never persisted.
type Book struct {
	LibID    int
	Title    string
	Authors  []string
	Genres   []string
	Series   string
	SerNo    int // 0 when the record carries no series number
	FileStub string
	FileExt  string
	Folder   string
	Size     int
	Date     time.Time // zero when absent or unparseable
	Lang     string
	Deleted  bool

	// Archive locations filled in by the range resolver; empty when no
	// archive claims the ID.
	FB2Archive    string
	CoverArchive  string
	ImagesArchive string
}

// AuthorsLabel renders the author list the way the catalog displays it.
func (b *Book) AuthorsLabel() string {
	return strings.Join(b.Authors, "; ")
}

// listSeparator matches the dump's own multi-value encoding, so author and
// genre lists round-trip through a TEXT column unchanged.
const listSeparator = ":"

func joinList(vals []string) string {
	return strings.Join(vals, listSeparator)
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, listSeparator) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
