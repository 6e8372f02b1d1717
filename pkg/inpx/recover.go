package inpx

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"

	"github.com/klauspost/compress/flate"
)

var (
	centralDirSig  = []byte("PK\x01\x02")
	localHeaderSig = []byte("PK\x03\x04")
)

// ErrMalformedContainer means the dump holds no central-directory header at
// all, so not even manual recovery can list its members.
var ErrMalformedContainer = errors.New("inpx: no central directory found")

const centralDirFixedLen = 46

// recoverMembers lists a zip-style container without relying on the
// end-of-central-directory record. Central-directory headers are
// self-describing: each carries the member's sizes, name and the offset of
// its local header, so a single scan over the buffer recovers every member.
//
// Two-pass walk over an immutable buffer: find each PK\x01\x02 signature,
// then follow its local-header offset to the data bytes. Entries using a
// compression method other than stored or deflate are skipped, as are
// entries whose local header does not check out.
func recoverMembers(buf []byte, logger *slog.Logger) (map[string][]byte, error) {
	members := make(map[string][]byte)
	found := false
	for off := 0; off < len(buf); {
		pos := bytes.Index(buf[off:], centralDirSig)
		if pos < 0 {
			break
		}
		pos += off
		off = pos + centralDirFixedLen
		if pos+centralDirFixedLen > len(buf) {
			break
		}
		found = true

		hdr := buf[pos : pos+centralDirFixedLen]
		method := binary.LittleEndian.Uint16(hdr[10:12])
		compSize := int(binary.LittleEndian.Uint32(hdr[20:24]))
		uncompSize := int(binary.LittleEndian.Uint32(hdr[24:28]))
		nameLen := int(binary.LittleEndian.Uint16(hdr[28:30]))
		localOff := int(binary.LittleEndian.Uint32(hdr[42:46]))

		if pos+centralDirFixedLen+nameLen > len(buf) {
			continue
		}
		name := string(buf[pos+centralDirFixedLen : pos+centralDirFixedLen+nameLen])

		data, ok := memberData(buf, localOff, compSize, uncompSize, method)
		if !ok {
			logger.Debug("skipping unrecoverable entry", "member", name, "method", method)
			continue
		}
		members[name] = data
	}
	if !found {
		return nil, ErrMalformedContainer
	}
	return members, nil
}

// memberData follows a local-header offset and inflates the member bytes.
func memberData(buf []byte, localOff, compSize, uncompSize int, method uint16) ([]byte, bool) {
	if localOff < 0 || localOff+30 > len(buf) || !bytes.Equal(buf[localOff:localOff+4], localHeaderSig) {
		return nil, false
	}
	nameLen := int(binary.LittleEndian.Uint16(buf[localOff+26 : localOff+28]))
	extraLen := int(binary.LittleEndian.Uint16(buf[localOff+28 : localOff+30]))
	start := localOff + 30 + nameLen + extraLen
	if start < 0 || start+compSize > len(buf) {
		return nil, false
	}
	raw := buf[start : start+compSize]

	switch method {
	case zip.Store:
		if uncompSize < len(raw) {
			raw = raw[:uncompSize]
		}
		return append([]byte(nil), raw...), true
	case zip.Deflate:
		fr := flate.NewReader(bytes.NewReader(raw))
		defer fr.Close()
		data, err := io.ReadAll(fr)
		if err != nil {
			return nil, false
		}
		return data, true
	default:
		return nil, false
	}
}
