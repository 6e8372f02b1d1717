// Package assembler composes self-contained FB2 documents on demand: the
// primary payload is streamed out of its book archive, the cover and every
// referenced illustration are pulled from their sibling archives, inlined
// as base64 binary blocks, and the cover reference is rewritten to match.
//
// Assembly is a pure function of the record and the archives' contents at
// call time; callers wanting caching layer it on top.
package assembler

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"flibrary/pkg/archive"
	"flibrary/pkg/data"
)

// ErrMissingPayload means the book's FB2 payload is unavailable: either no
// book archive was resolved, or the resolved archive cannot produce the
// payload member.
var ErrMissingPayload = errors.New("assembler: payload unavailable")

// defaultCoverID names the cover binary when the payload declares no cover
// reference of its own.
const defaultCoverID = "cover.jpg"

// assetNameVariants are the member-name spellings tried for a symbolic ID.
var assetNameVariants = []string{"", ".jpg", ".png", ".gif"}

type binaryAsset struct {
	id   string // symbolic ID referenced from the payload markup
	name string // matched member filename, drives the content type
	data []byte
}

// Assembler builds composed documents. The zero value works; Logger only
// adds visibility into skipped assets.
type Assembler struct {
	Logger *slog.Logger
}

func (a *Assembler) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// Assemble returns the complete FB2 document for the book with all
// resolvable assets inlined. Missing individual assets are omitted; a
// missing payload is fatal.
func (a *Assembler) Assemble(book *data.Book) ([]byte, error) {
	if book.FB2Archive == "" {
		return nil, fmt.Errorf("book %d: %w", book.LibID, ErrMissingPayload)
	}

	payloadName := fmt.Sprintf("%d.fb2", book.LibID)
	rc, err := archive.OpenMember(book.FB2Archive, payloadName)
	if err != nil {
		return nil, fmt.Errorf("payload %s: %w: %w", payloadName, ErrMissingPayload, err)
	}
	doc, err := parsePayload(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("payload %s: %w", payloadName, err)
	}
	root := doc.Root()

	coverID, coverImg := coverReference(root)
	var binaries []binaryAsset
	if book.CoverArchive != "" {
		if asset, ok := a.loadCover(book, coverID); ok {
			binaries = append(binaries, asset)
		}
	}
	ensureCoverReference(root, coverImg, coverID)

	binaries = a.loadIllustrations(book, root, binaries)

	for _, asset := range binaries {
		bin := root.CreateElement("binary")
		bin.CreateAttr("id", asset.id)
		bin.CreateAttr("content-type", contentTypeFor(asset.name))
		bin.SetText(base64.StdEncoding.EncodeToString(asset.data))
	}

	return serialize(doc)
}

// coverReference finds the payload's declared cover image element and its
// symbolic ID, falling back to the default ID.
func coverReference(root *etree.Element) (string, *etree.Element) {
	var img *etree.Element
	if coverpage := findFirst(root, "coverpage"); coverpage != nil {
		img = findFirst(coverpage, "image")
	}
	if img != nil {
		if href := hrefValue(img); strings.HasPrefix(href, "#") && len(href) > 1 {
			return href[1:], img
		}
	}
	return defaultCoverID, img
}

// ensureCoverReference rewrites the existing cover element, or creates a
// coverpage under title-info when the payload declared none.
func ensureCoverReference(root *etree.Element, img *etree.Element, coverID string) {
	if img != nil {
		setHref(img, "#"+coverID)
		return
	}
	titleInfo := findFirst(root, "title-info")
	if titleInfo == nil {
		return
	}
	coverpage := titleInfo.CreateElement("coverpage")
	image := coverpage.CreateElement("image")
	setHref(image, "#"+coverID)
}

// loadCover matches the cover member by basename — the bare LibID or
// LibID.jpg — falling back to the archive's only convention: first
// non-directory entry. Any failure just means no cover block.
func (a *Assembler) loadCover(book *data.Book, coverID string) (binaryAsset, bool) {
	c, err := archive.OpenContainer(book.CoverArchive)
	if err != nil {
		a.logger().Debug("cover archive unavailable", "book", book.LibID, "error", err)
		return binaryAsset{}, false
	}
	defer c.Close()

	idStr := strconv.Itoa(book.LibID)
	names := c.Names()
	candidate := ""
	for _, name := range names {
		base := path.Base(name)
		if base == idStr || base == idStr+".jpg" {
			candidate = name
			break
		}
	}
	if candidate == "" && len(names) > 0 {
		candidate = names[0]
	}
	if candidate == "" {
		return binaryAsset{}, false
	}

	raw, err := readMember(c, candidate)
	if err != nil {
		a.logger().Debug("cover unreadable", "book", book.LibID, "member", candidate, "error", err)
		return binaryAsset{}, false
	}
	return binaryAsset{id: coverID, name: path.Base(candidate), data: raw}, true
}

// loadIllustrations collects the distinct illustration references in
// document order and resolves each inside the record's path segment of the
// illustration archive. Unresolvable references are omitted.
func (a *Assembler) loadIllustrations(book *data.Book, root *etree.Element, binaries []binaryAsset) []binaryAsset {
	refs := illustrationRefs(root, binaries)
	if len(refs) == 0 || book.ImagesArchive == "" {
		return binaries
	}

	c, err := archive.OpenContainer(book.ImagesArchive)
	if err != nil {
		a.logger().Debug("illustration archive unavailable", "book", book.LibID, "error", err)
		return binaries
	}
	defer c.Close()

	// Members are filed under a directory named after the LibID.
	members := make(map[string]string)
	idStr := strconv.Itoa(book.LibID)
	for _, name := range c.Names() {
		parts := strings.Split(name, "/")
		if len(parts) >= 2 && parts[0] == idStr {
			members[parts[len(parts)-1]] = name
		}
	}

	for _, ref := range refs {
		candidate := ""
		for _, variant := range assetNameVariants {
			if full, ok := members[ref+variant]; ok {
				candidate = full
				break
			}
		}
		if candidate == "" {
			a.logger().Debug("illustration not found", "book", book.LibID, "ref", ref)
			continue
		}
		raw, err := readMember(c, candidate)
		if err != nil {
			a.logger().Debug("illustration unreadable", "book", book.LibID, "member", candidate, "error", err)
			continue
		}
		binaries = append(binaries, binaryAsset{id: ref, name: path.Base(candidate), data: raw})
	}
	return binaries
}

// illustrationRefs lists the distinct #-prefixed image references in
// document order, skipping IDs already loaded (the cover).
func illustrationRefs(root *etree.Element, loaded []binaryAsset) []string {
	seen := make(map[string]bool, len(loaded))
	for _, asset := range loaded {
		seen[asset.id] = true
	}
	var refs []string
	for _, img := range findAll(root, "image", nil) {
		href := hrefValue(img)
		if !strings.HasPrefix(href, "#") || len(href) < 2 {
			continue
		}
		ref := href[1:]
		if seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	return refs
}

func readMember(c archive.Container, name string) ([]byte, error) {
	rc, err := c.Open(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
