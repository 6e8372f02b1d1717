// Package resolver maps a numeric library ID to the archive files claiming
// it. Archive filenames advertise an inclusive ID range
// (`fb2-000024-030559.7z`, `d.fb2-009373-367300.7z`); an optional
// single-character dot prefix carries no meaning. Book archives live
// anywhere under the root, cover and illustration archives under the
// `covers` and `images` subdirectories.
package resolver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// ErrNotFound marks a missing archive root directory.
var ErrNotFound = errors.New("resolver: root directory not found")

var (
	bookPattern  = regexp.MustCompile(`(?i)^(?:[a-z]\.)?fb2-(\d+)-(\d+)\.7z$`)
	assetPattern = regexp.MustCompile(`(?i)^(?:[a-z]\.)?fb2-(\d+)-(\d+)\.zip$`)
)

const (
	coversDir = "covers"
	imagesDir = "images"
)

// ArchiveInfo is one archive file claiming an inclusive, closed ID range.
type ArchiveInfo struct {
	Start int
	End   int
	Path  string
}

// Contains reports whether id falls inside the archive's range.
func (a ArchiveInfo) Contains(id int) bool { return a.Start <= id && id <= a.End }

// Location holds the archive paths resolved for one ID. Empty string means
// no archive of that kind claims the ID.
type Location struct {
	Book   string
	Cover  string
	Images string
}

// Resolver answers which archives hold a given ID. The three index lists
// are built once and read-only afterwards, so a Resolver is safe for
// concurrent lookups.
//
// Overlapping ranges in the source tree are not validated; if two archives
// claim the same ID the lookup picks the one with the larger start.
type Resolver struct {
	root   string
	books  []ArchiveInfo
	covers []ArchiveInfo
	images []ArchiveInfo
}

// New scans root recursively and builds the three range indexes.
func New(root string) (*Resolver, error) {
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("archive root %s: %w", root, ErrNotFound)
		}
		return nil, fmt.Errorf("archive root %s: %w", root, err)
	}

	r := &Resolver{root: root}
	var err error
	if r.books, err = scanArchives(root, bookPattern); err != nil {
		return nil, err
	}
	if r.covers, err = scanArchives(filepath.Join(root, coversDir), assetPattern); err != nil {
		return nil, err
	}
	if r.images, err = scanArchives(filepath.Join(root, imagesDir), assetPattern); err != nil {
		return nil, err
	}
	return r, nil
}

// Root returns the scanned root directory.
func (r *Resolver) Root() string { return r.root }

// Len reports the number of indexed archives per kind.
func (r *Resolver) Len() (books, covers, images int) {
	return len(r.books), len(r.covers), len(r.images)
}

// Resolve returns the archives claiming id. Lookups never fail; an ID
// outside every range yields empty locations.
func (r *Resolver) Resolve(id int) Location {
	return Location{
		Book:   find(id, r.books),
		Cover:  find(id, r.covers),
		Images: find(id, r.images),
	}
}

// find bisects for the rightmost start <= id and accepts the candidate only
// if id is inside its range, so gaps between non-adjacent ranges miss.
func find(id int, archives []ArchiveInfo) string {
	idx := sort.Search(len(archives), func(i int) bool { return archives[i].Start > id })
	if idx == 0 {
		return ""
	}
	if candidate := archives[idx-1]; candidate.Contains(id) {
		return candidate.Path
	}
	return ""
}

// scanArchives walks dir recursively collecting filenames that advertise an
// ID range, sorted by range start. A missing dir is an empty index.
func scanArchives(dir string, pattern *regexp.Regexp) ([]ArchiveInfo, error) {
	var archives []ArchiveInfo
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		m := pattern.FindStringSubmatch(d.Name())
		if m == nil {
			return nil
		}
		start, serr := strconv.Atoi(m[1])
		end, eerr := strconv.Atoi(m[2])
		if serr != nil || eerr != nil || start > end {
			return nil
		}
		archives = append(archives, ArchiveInfo{Start: start, End: end, Path: path})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Slice(archives, func(i, j int) bool { return archives[i].Start < archives[j].Start })
	return archives, nil
}
