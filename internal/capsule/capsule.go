// Package capsule encodes the metadata needed to fetch one search result
// into the two NZB-shaped forms the download client understands: a query
// parameter bundle embedded in a retrieval URL, and a minimal NZB document.
package capsule

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
)

// ErrMalformed is returned when a capsule is missing one of its required
// fields (source id, origin url or title).
var ErrMalformed = errors.New("capsule: malformed capsule")

// nzbNamespace is the schema the foreign document form mimics.
const nzbNamespace = "http://www.newzbin.com/DTD/2003/nzb"

// Capsule carries everything needed to later fetch a specific result.
type Capsule struct {
	SourceID  string
	OriginURL string
	Title     string
	SizeBytes int64
}

// EncodeURL serializes the capsule as the retrieval link published on the
// search feed. base is the request host URL including a trailing slash.
func (c Capsule) EncodeURL(base string) string {
	q := url.Values{}
	q.Set("download", "nzb")
	q.Set("prefix", c.SourceID)
	q.Set("url", c.OriginURL)
	q.Set("size", strconv.FormatInt(c.SizeBytes, 10))
	q.Set("title", c.Title)
	return base + "api?" + q.Encode()
}

// document mirrors the foreign NZB schema closely enough for download
// clients to accept the file: a meta section carrying the real payload and
// one placeholder file entry with a single segment.
type document struct {
	XMLName xml.Name `xml:"nzb"`
	Xmlns   string   `xml:"xmlns,attr"`
	Meta    meta     `xml:"meta"`
	File    file     `xml:"file"`
}

type meta struct {
	Prefix string `xml:"prefix"`
	URL    string `xml:"url"`
	Size   string `xml:"size"`
	Title  string `xml:"title"`
}

type file struct {
	Poster   string    `xml:"poster,attr"`
	Subject  string    `xml:"subject,attr"`
	Groups   groups    `xml:"groups"`
	Segments []segment `xml:"segments>segment"`
}

type groups struct {
	Group string `xml:"group"`
}

type segment struct {
	Bytes  string `xml:"bytes,attr"`
	Number string `xml:"number,attr"`
}

// EncodeDocument renders the capsule as an NZB document, XML declaration
// included.
func (c Capsule) EncodeDocument() ([]byte, error) {
	size := strconv.FormatInt(c.SizeBytes, 10)
	doc := document{
		Xmlns: nzbNamespace,
		Meta: meta{
			Prefix: c.SourceID,
			URL:    c.OriginURL,
			Size:   size,
			Title:  c.Title,
		},
		File: file{
			Poster:   "none",
			Subject:  "none",
			Segments: []segment{{Bytes: size, Number: "1"}},
		},
	}
	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("capsule: encode document: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// DecodeURL parses the URL form without any network fetch. raw is the full
// retrieval link as submitted by the client.
func DecodeURL(raw string) (Capsule, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return Capsule{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	params := parsed.Query()
	return fromFields(params.Get("prefix"), params.Get("url"), params.Get("title"), params.Get("size"))
}

// DecodeDocument parses the document form and extracts the meta fields.
func DecodeDocument(r io.Reader) (Capsule, error) {
	var doc document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return Capsule{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc.XMLName.Space != nzbNamespace {
		return Capsule{}, fmt.Errorf("%w: unexpected namespace %q", ErrMalformed, doc.XMLName.Space)
	}
	return fromFields(doc.Meta.Prefix, doc.Meta.URL, doc.Meta.Title, doc.Meta.Size)
}

func fromFields(sourceID, originURL, title, size string) (Capsule, error) {
	if sourceID == "" || originURL == "" || title == "" {
		return Capsule{}, fmt.Errorf("%w: missing source, url or title", ErrMalformed)
	}
	// Size is advisory only; absent or unparsable values collapse to zero.
	bytes, err := strconv.ParseInt(size, 10, 64)
	if err != nil || bytes < 0 {
		bytes = 0
	}
	return Capsule{
		SourceID:  sourceID,
		OriginURL: originURL,
		Title:     title,
		SizeBytes: bytes,
	}, nil
}
