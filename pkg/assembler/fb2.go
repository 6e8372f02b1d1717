package assembler

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/text/encoding/ianaindex"
)

// xmlDeclaration is always emitted; any declaration carried by the source
// payload is stripped first so the output encoding is unambiguous.
const xmlDeclaration = `<?xml version="1.0" encoding="utf-8"?>` + "\n"

// xlinkPrefix is the conventional FB2 prefix for the xlink namespace, used
// when a cover reference has to be created from scratch.
const xlinkPrefix = "l"

// findFirst returns the first element with the given local tag, depth
// first, ignoring namespace prefixes.
func findFirst(e *etree.Element, tag string) *etree.Element {
	for _, child := range e.ChildElements() {
		if child.Tag == tag {
			return child
		}
		if found := findFirst(child, tag); found != nil {
			return found
		}
	}
	return nil
}

// findAll collects every element with the given local tag in document
// order.
func findAll(e *etree.Element, tag string, out []*etree.Element) []*etree.Element {
	for _, child := range e.ChildElements() {
		if child.Tag == tag {
			out = append(out, child)
		}
		out = findAll(child, tag, out)
	}
	return out
}

// hrefValue returns the element's href attribute value regardless of the
// namespace prefix the document uses.
func hrefValue(e *etree.Element) string {
	for _, a := range e.Attr {
		if a.Key == "href" {
			return a.Value
		}
	}
	return ""
}

// setHref rewrites the element's href attribute in place, keeping its
// original prefix, or creates one with the conventional prefix.
func setHref(e *etree.Element, value string) {
	for i := range e.Attr {
		if e.Attr[i].Key == "href" {
			e.Attr[i].Value = value
			return
		}
	}
	e.CreateAttr(xlinkPrefix+":href", value)
}

// contentTypeFor infers a MIME type from the matched member filename.
// Extension-less asset names are JPEG by library convention.
func contentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case "":
		return "image/jpeg"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

// parsePayload builds the element tree of a payload stream, decoding legacy
// charsets the payload's own declaration names.
func parsePayload(r io.Reader) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charsetReader
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("parse payload: no root element")
	}
	return doc, nil
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unsupported payload charset %q", charset)
	}
	return enc.NewDecoder().Reader(input), nil
}

// serialize writes the document back with the explicit declaration.
func serialize(doc *etree.Document) ([]byte, error) {
	for _, tok := range doc.Child {
		if pi, ok := tok.(*etree.ProcInst); ok && pi.Target == "xml" {
			doc.RemoveChild(pi)
			break
		}
	}
	var sb strings.Builder
	sb.WriteString(xmlDeclaration)
	if _, err := doc.WriteTo(&sb); err != nil {
		return nil, fmt.Errorf("serialize document: %w", err)
	}
	return []byte(sb.String()), nil
}
