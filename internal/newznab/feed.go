package newznab

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"fetcharr/internal/capsule"
	"fetcharr/internal/source"
)

type rssDoc struct {
	XMLName   xml.Name   `xml:"rss"`
	Version   string     `xml:"version,attr"`
	AtomNS    string     `xml:"xmlns:atom,attr"`
	NewznabNS string     `xml:"xmlns:newznab,attr"`
	Channel   rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Description string    `xml:"description"`
	Link        string    `xml:"link"`
	PubDate     string    `xml:"pubDate"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string       `xml:"title"`
	Description string       `xml:"description"`
	GUID        string       `xml:"guid"`
	Comments    string       `xml:"comments"`
	PubDate     string       `xml:"pubDate"`
	Size        string       `xml:"size"`
	Link        string       `xml:"link"`
	Category    string       `xml:"category"`
	Enclosure   rssEnclosure `xml:"enclosure"`
	Attrs       []vendorAttr `xml:"newznab:attr"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length string `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

type vendorAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// Feed renders results as the RSS-like response clients poll. baseURL is the
// request host URL with a trailing slash; every item link is the URL-form
// metadata capsule pointing back at this service.
func Feed(serverTitle, baseURL string, results []source.Result, now time.Time) ([]byte, error) {
	doc := rssDoc{
		Version:   "2.0",
		AtomNS:    "http://www.w3.org/2005/Atom",
		NewznabNS: "http://www.newznab.com/DTD/2010/feeds/attributes/",
		Channel: rssChannel{
			Title:       serverTitle,
			Description: "Search proxy over pluggable sources",
			Link:        baseURL,
			PubDate:     now.Format(time.RFC1123Z),
		},
	}

	for _, res := range results {
		size := strconv.FormatInt(res.SizeBytes, 10)
		link := capsule.Capsule{
			SourceID:  res.SourceID,
			OriginURL: res.OriginURL,
			Title:     res.Title,
			SizeBytes: res.SizeBytes,
		}.EncodeURL(baseURL)

		pub := now
		if !res.PublishedAt.IsZero() {
			pub = res.PublishedAt
		}

		item := rssItem{
			Title:       res.Title,
			Description: res.Description,
			GUID:        res.GUID,
			Comments:    res.Comments,
			PubDate:     pub.Format(time.RFC1123Z),
			Size:        size,
			Link:        link,
			Category:    res.Category,
			Enclosure: rssEnclosure{
				URL:    link,
				Length: size,
				Type:   "application/x-nzb",
			},
			Attrs: []vendorAttr{
				{Name: "category", Value: res.Category},
				{Name: "files", Value: "1"},
				{Name: "grabs", Value: "100"},
			},
		}

		extra := []vendorAttr{
			{Name: "author", Value: res.Author},
			{Name: "booktitle", Value: res.BookTitle},
			{Name: "bookseries", Value: res.Series},
			{Name: "publisher", Value: res.Publisher},
			{Name: "format", Value: res.Format},
			{Name: "language", Value: res.Language},
			{Name: "year", Value: res.Year},
			{Name: "age", Value: res.Age},
		}
		for _, attr := range extra {
			if attr.Value != "" {
				item.Attrs = append(item.Attrs, attr)
			}
		}

		doc.Channel.Items = append(doc.Channel.Items, item)
	}

	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("newznab: encode feed: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
