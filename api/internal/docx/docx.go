// Package docx reads the parts of a Word (.docx) document the reviewer
// needs: body paragraph text in order and embedded raster images.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"peer-review/api/internal/util"
)

var ErrUnreadable = errors.New("unreadable document")

const (
	documentPart = "word/document.xml"
	relsPart     = "word/_rels/document.xml.rels"

	nsMain = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

	maxPartSize = 64 << 20
)

type Image struct {
	Name     string
	MIMEType string
	Data     []byte
}

type Document struct {
	zr   *zip.Reader
	text string
}

func OpenBytes(b []byte) (*Document, error) {
	return Open(bytes.NewReader(b), int64(len(b)))
}

func Open(r io.ReaderAt, size int64) (*Document, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: not a zip container: %v", ErrUnreadable, err)
	}
	d := &Document{zr: zr}

	body, err := d.readPart(documentPart)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	d.text, err = paragraphsText(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, documentPart, err)
	}
	return d, nil
}

// Text is every body paragraph in document order, joined by newlines.
func (d *Document) Text() string { return d.text }

// Images decodes every image relationship of the main document. Parts that
// cannot be read or decoded are passed to warn and skipped.
func (d *Document) Images(warn func(name string, err error)) []Image {
	if warn == nil {
		warn = func(string, error) {}
	}
	rels, err := d.readPart(relsPart)
	if err != nil {
		// A document without relationships has no images.
		return nil
	}
	targets, err := imageTargets(rels)
	if err != nil {
		warn(relsPart, err)
		return nil
	}

	var out []Image
	for _, name := range targets {
		raw, err := d.readPart(name)
		if err != nil {
			warn(name, err)
			continue
		}
		norm, err := util.NormalizeImage(raw)
		if err != nil {
			warn(name, err)
			continue
		}
		out = append(out, Image{Name: path.Base(name), MIMEType: "image/png", Data: norm})
	}
	return out
}

func (d *Document) readPart(name string) ([]byte, error) {
	for _, f := range d.zr.File {
		if f.Name != name {
			continue
		}
		if f.UncompressedSize64 > maxPartSize {
			return nil, fmt.Errorf("part %s too large (%d bytes)", name, f.UncompressedSize64)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(io.LimitReader(rc, maxPartSize))
	}
	return nil, fmt.Errorf("missing part %s", name)
}

// paragraphsText streams document.xml and collects the text of each w:p.
// Nested paragraphs (text boxes) are emitted as their own lines.
func paragraphsText(b []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(b))

	var (
		paras    []string
		stack    []*strings.Builder
		inText   bool
		seenBody bool
	)
	cur := func() *strings.Builder {
		if len(stack) == 0 {
			return nil
		}
		return stack[len(stack)-1]
	}
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != nsMain {
				continue
			}
			switch t.Name.Local {
			case "body":
				seenBody = true
			case "p":
				stack = append(stack, &strings.Builder{})
			case "t":
				inText = true
			case "tab":
				if sb := cur(); sb != nil {
					sb.WriteByte('\t')
				}
			case "br", "cr":
				if sb := cur(); sb != nil {
					sb.WriteByte('\n')
				}
			}
		case xml.EndElement:
			if t.Name.Space != nsMain {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if len(stack) > 0 {
					paras = append(paras, stack[len(stack)-1].String())
					stack = stack[:len(stack)-1]
				}
			}
		case xml.CharData:
			if inText {
				if sb := cur(); sb != nil {
					sb.Write(t)
				}
			}
		}
	}
	if !seenBody {
		return "", errors.New("no w:body element")
	}
	return strings.Join(paras, "\n"), nil
}

type relationships struct {
	Rels []struct {
		Type       string `xml:"Type,attr"`
		Target     string `xml:"Target,attr"`
		TargetMode string `xml:"TargetMode,attr"`
	} `xml:"Relationship"`
}

// imageTargets resolves image relationship targets to zip part names.
func imageTargets(b []byte) ([]string, error) {
	var rs relationships
	if err := xml.Unmarshal(b, &rs); err != nil {
		return nil, err
	}
	var out []string
	for _, r := range rs.Rels {
		if !strings.HasSuffix(r.Type, "/image") || strings.EqualFold(r.TargetMode, "External") {
			continue
		}
		target := r.Target
		if strings.HasPrefix(target, "/") {
			target = strings.TrimPrefix(target, "/")
		} else {
			target = path.Join("word", target)
		}
		out = append(out, path.Clean(target))
	}
	return out, nil
}
