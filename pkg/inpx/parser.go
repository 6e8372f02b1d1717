// Package inpx parses library metadata dumps: zip-style containers of
// .inp members holding one 0x04-delimited catalog record per line. Dumps in
// the wild often lack the end-of-central-directory record, so opening falls
// back to a manual central-directory scan.
package inpx

import (
	"archive/zip"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

const (
	// fieldSeparator splits one metadata line into positional fields.
	fieldSeparator = "\x04"
	// structureMember optionally names the column order inside the dump.
	structureMember = "structure.info"
	// recordExt marks the members that carry metadata lines.
	recordExt = ".inp"
	// progressInterval is the minimum number of bytes consumed between two
	// progress callbacks for the same member.
	progressInterval = 500 * 1024
)

// defaultStructure is assumed when the dump carries no structure.info.
const defaultStructure = "AUTHOR;GENRE;TITLE;SERIES;SERNO;FILE;SIZE;LIBID;DEL;EXT;DATE;LANG;KEYWORDS;FOLDER;"

// Record is one normalized catalog row. LibID, SerNo and Size are nil when
// the field was empty or unparseable; a nil LibID record is emitted anyway
// so callers can count it as skipped.
type Record struct {
	LibID    *int
	Title    string
	Authors  []string
	Genres   []string
	Series   string
	SerNo    *int
	FileStub string
	FileExt  string
	Folder   string
	Size     *int
	Date     string
	Lang     string
	Keywords string
	Deleted  bool
}

// ProgressFunc receives parsing progress: at most once per ~500 KB consumed
// within a member, and exactly once when the member is done.
type ProgressFunc func(member string, processed, total int64)

// Parser streams Records out of a dump. The zero value is usable; each
// Parse call scans the dump fresh.
type Parser struct {
	// Progress, when set, receives the per-member byte cadence above.
	Progress ProgressFunc
	// Logger receives non-fatal observations (fallback decodes, skipped
	// recovery entries). Nil means slog.Default.
	Logger *slog.Logger

	fallbackLines int
}

// FallbackLines reports how many lines of the last Parse needed the legacy
// single-byte fallback decoding.
func (p *Parser) FallbackLines() int { return p.fallbackLines }

func (p *Parser) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Parse opens the dump, recovering the member list manually when the
// standard open fails, and returns a lazy sequence of records. The sequence
// is finite and single-use; stop pulling to cancel. Fatal conditions (dump
// unreadable, no central directory at all) surface here, before iteration.
func (p *Parser) Parse(path string) (iter.Seq[Record], error) {
	members, err := p.readMembers(path)
	if err != nil {
		return nil, err
	}
	structure := p.readStructure(members)
	p.fallbackLines = 0

	return func(yield func(Record) bool) {
		for _, m := range members {
			if !strings.HasSuffix(m.name, recordExt) {
				continue
			}
			if !p.parseMember(m, structure, yield) {
				return
			}
		}
	}, nil
}

type member struct {
	name string
	data []byte
}

// parseMember walks one .inp member line by line, reporting progress and
// yielding a record per non-empty line. Returns false when the consumer
// stopped pulling.
func (p *Parser) parseMember(m member, structure []string, yield func(Record) bool) bool {
	total := int64(len(m.data))
	var processed, lastReport int64

	for line := range strings.SplitSeq(string(m.data), "\n") {
		processed += int64(len(line)) + 1
		if p.Progress != nil && processed-lastReport >= progressInterval {
			p.Progress(m.name, min(processed, total), total)
			lastReport = processed
		}
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if !yield(p.parseLine(m.name, line, structure)) {
			return false
		}
	}
	if p.Progress != nil {
		p.Progress(m.name, total, total)
	}
	return true
}

// parseLine splits one raw line on the field separator, maps the fields
// positionally onto the column list and normalizes the known columns.
func (p *Parser) parseLine(memberName, line string, structure []string) Record {
	if !utf8.ValidString(line) {
		line = decodeFallback(line)
		p.fallbackLines++
		p.logger().Debug("line needed fallback decoding", "member", memberName)
	}
	fields := strings.Split(line, fieldSeparator)

	var rec Record
	for i, col := range structure {
		val := ""
		if i < len(fields) {
			val = fields[i]
		}
		switch col {
		case "author":
			rec.Authors = splitList(val)
		case "genre":
			rec.Genres = splitList(val)
		case "title":
			rec.Title = val
		case "series":
			rec.Series = val
		case "serno":
			rec.SerNo = optInt(val)
		case "file":
			rec.FileStub = val
		case "size":
			rec.Size = optInt(val)
		case "libid":
			rec.LibID = optInt(val)
		case "del":
			rec.Deleted = val == "1"
		case "ext":
			rec.FileExt = val
		case "date":
			rec.Date = val
		case "lang":
			rec.Lang = val
		case "keywords":
			rec.Keywords = val
		case "folder":
			rec.Folder = val
		}
	}
	return rec
}

// readMembers opens the dump the standard way first; a failed open or an
// empty listing triggers the manual central-directory recovery. Only the
// structure member and .inp members are kept.
func (p *Parser) readMembers(path string) ([]member, error) {
	if members, err := readStandard(path); err == nil && len(members) > 0 {
		return members, nil
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dump %s: %w", path, err)
	}
	recovered, err := recoverMembers(buf, p.logger())
	if err != nil {
		return nil, fmt.Errorf("dump %s: %w", path, err)
	}
	names := make([]string, 0, len(recovered))
	for name := range recovered {
		if relevantMember(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	members := make([]member, 0, len(names))
	for _, name := range names {
		members = append(members, member{name: name, data: recovered[name]})
	}
	return members, nil
}

func readStandard(path string) ([]member, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var members []member
	for _, f := range zr.File {
		if !relevantMember(f.Name) || f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		members = append(members, member{name: f.Name, data: data})
	}
	return members, nil
}

func relevantMember(name string) bool {
	return name == structureMember || strings.HasSuffix(name, recordExt)
}

// readStructure returns the lower-cased column list from structure.info, or
// the built-in default. A trailing separator is tolerated.
func (p *Parser) readStructure(members []member) []string {
	line := defaultStructure
	for _, m := range members {
		if m.name == structureMember {
			line = strings.TrimSpace(string(m.data))
			break
		}
	}
	var cols []string
	for _, col := range strings.Split(strings.TrimRight(line, ";"), ";") {
		if col != "" {
			cols = append(cols, strings.ToLower(col))
		}
	}
	return cols
}

// decodeFallback reinterprets a non-UTF-8 line as CP1251 with lossy
// substitution for the few unmapped bytes.
func decodeFallback(line string) string {
	out, err := charmap.Windows1251.NewDecoder().String(line)
	if err != nil {
		return strings.ToValidUTF8(line, string(utf8.RuneError))
	}
	return out
}

// splitList splits a colon-separated field, dropping empty entries.
func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ":") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// optInt parses a numeric field; empty or malformed values are absent, not
// errors.
func optInt(val string) *int {
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return nil
	}
	return &n
}
