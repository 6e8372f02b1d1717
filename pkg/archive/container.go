// Package archive extracts single members from the two container kinds the
// library dump uses: standard zip archives and solid 7z archives.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/google/uuid"
)

var (
	// ErrNotFound marks a missing archive file or a member that no entry matches.
	ErrNotFound = errors.New("archive: not found")
	// ErrUnsupportedFormat marks an archive extension with no known container kind.
	ErrUnsupportedFormat = errors.New("archive: unsupported format")
)

// Container is one open archive file. The implementations form the closed
// set of supported container kinds; adding a kind means adding a type here
// and a case to OpenContainer.
type Container interface {
	// Names lists the non-directory members in archive order.
	Names() []string
	// Open returns the named member's content. The reader must be closed
	// before the container itself.
	Open(member string) (io.ReadCloser, error)
	Close() error
}

// OpenContainer opens path with the container kind its extension selects.
func OpenContainer(path string) (Container, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("archive %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("archive %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return openZipContainer(path)
	case ".7z":
		return openSevenZipContainer(path)
	default:
		return nil, fmt.Errorf("archive %s: %w", path, ErrUnsupportedFormat)
	}
}

// OpenMember opens exactly one member of the archive at path and returns a
// reader that owns every resource behind it: closing the reader releases
// file handles and removes any scratch files, on every path.
//
// For zip containers a missing member falls back to the first non-directory
// entry (single-payload archives may be named arbitrarily). 7z members are
// extracted through a private scratch directory that is gone by the time
// the returned reader is closed.
func OpenMember(path, member string) (io.ReadCloser, error) {
	c, err := OpenContainer(path)
	if err != nil {
		return nil, err
	}
	switch c := c.(type) {
	case *zipContainer:
		return c.openWithFallback(member)
	case *sevenZipContainer:
		return c.extractMember(member)
	default:
		c.Close()
		return nil, fmt.Errorf("archive %s: %w", path, ErrUnsupportedFormat)
	}
}

type zipContainer struct {
	path string
	rc   *zip.ReadCloser
}

func openZipContainer(path string) (*zipContainer, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open zip %s: %w", path, err)
	}
	return &zipContainer{path: path, rc: rc}, nil
}

func (z *zipContainer) Names() []string {
	names := make([]string, 0, len(z.rc.File))
	for _, f := range z.rc.File {
		if f.FileInfo().IsDir() {
			continue
		}
		names = append(names, f.Name)
	}
	return names
}

func (z *zipContainer) Open(member string) (io.ReadCloser, error) {
	for _, f := range z.rc.File {
		if f.Name == member && !f.FileInfo().IsDir() {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("member %s in %s: %w", member, z.path, ErrNotFound)
}

func (z *zipContainer) Close() error { return z.rc.Close() }

// openWithFallback resolves member to the exact entry or, failing that, the
// first non-directory entry. The returned reader closes the container too.
func (z *zipContainer) openWithFallback(member string) (io.ReadCloser, error) {
	rc, err := z.Open(member)
	if errors.Is(err, ErrNotFound) {
		for _, name := range z.Names() {
			rc, err = z.Open(name)
			break
		}
	}
	if err != nil || rc == nil {
		z.Close()
		if err == nil {
			err = fmt.Errorf("member %s in %s: %w", member, z.path, ErrNotFound)
		}
		return nil, err
	}
	return &memberReader{ReadCloser: rc, container: z}, nil
}

type sevenZipContainer struct {
	path string
	rc   *sevenzip.ReadCloser
}

func openSevenZipContainer(path string) (*sevenZipContainer, error) {
	rc, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open 7z %s: %w", path, err)
	}
	return &sevenZipContainer{path: path, rc: rc}, nil
}

func (s *sevenZipContainer) Names() []string {
	names := make([]string, 0, len(s.rc.File))
	for _, f := range s.rc.File {
		if f.FileInfo().IsDir() {
			continue
		}
		names = append(names, f.Name)
	}
	return names
}

func (s *sevenZipContainer) Open(member string) (io.ReadCloser, error) {
	for _, f := range s.rc.File {
		if f.Name == member && !f.FileInfo().IsDir() {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("member %s in %s: %w", member, s.path, ErrNotFound)
}

func (s *sevenZipContainer) Close() error { return s.rc.Close() }

// extractMember decompresses only the requested member into a scratch
// directory, closes the archive, and hands back a reader over the scratch
// copy. Closing the reader removes the directory.
func (s *sevenZipContainer) extractMember(member string) (rdr io.ReadCloser, err error) {
	defer s.Close()

	src, err := s.Open(member)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	scratch := filepath.Join(os.TempDir(), "flibrary-"+uuid.NewString())
	if err := os.MkdirAll(scratch, 0o700); err != nil {
		return nil, fmt.Errorf("scratch dir: %w", err)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(scratch)
		}
	}()

	target := filepath.Join(scratch, filepath.Base(member))
	dst, err := os.Create(target)
	if err != nil {
		return nil, fmt.Errorf("scratch file: %w", err)
	}
	if _, err = io.Copy(dst, src); err != nil {
		dst.Close()
		return nil, fmt.Errorf("extract %s from %s: %w", member, s.path, err)
	}
	if _, err = dst.Seek(0, io.SeekStart); err != nil {
		dst.Close()
		return nil, err
	}
	return &scratchReader{File: dst, dir: scratch}, nil
}

// memberReader couples a member stream to its container so one Close
// releases both.
type memberReader struct {
	io.ReadCloser
	container Container
}

func (m *memberReader) Close() error {
	err := m.ReadCloser.Close()
	if cerr := m.container.Close(); err == nil {
		err = cerr
	}
	return err
}

// scratchReader reads an extracted scratch file and removes the scratch
// directory on Close.
type scratchReader struct {
	*os.File
	dir string
}

func (s *scratchReader) Close() error {
	err := s.File.Close()
	if rerr := os.RemoveAll(s.dir); err == nil {
		err = rerr
	}
	return err
}
