// Package gutendex searches Project Gutenberg through the Gutendex API.
package gutendex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"fetcharr/internal/source"
)

const defaultBaseURL = "https://gutendex.com/books"

// Preferred download formats, best first.
var preferredFormats = []struct{ Mime, Name string }{
	{"application/epub+zip", "EPUB"},
	{"application/x-mobipocket-ebook", "MOBI"},
	{"text/plain; charset=utf-8", "TXT"},
}

// Source queries the Gutendex catalog of public domain books.
type Source struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// New builds the source with a retrying HTTP client.
func New(logger zerolog.Logger) *Source {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.HTTPClient.Timeout = 30 * time.Second
	rc.Logger = nil
	return &Source{baseURL: defaultBaseURL, client: rc.StandardClient(), logger: logger}
}

func (s *Source) ID() string           { return "gutendex" }
func (s *Source) Categories() []string { return []string{"7020"} }
func (s *Source) TestQuery() string    { return "shakespeare" }

type apiResponse struct {
	Results []apiBook `json:"results"`
}

type apiBook struct {
	ID        int               `json:"id"`
	Title     string            `json:"title"`
	Authors   []apiAuthor       `json:"authors"`
	Languages []string          `json:"languages"`
	Formats   map[string]string `json:"formats"`
}

type apiAuthor struct {
	Name string `json:"name"`
}

// Search runs a keyword query against the catalog.
func (s *Source) Search(ctx context.Context, query, category string) ([]source.Result, error) {
	if query == "" {
		return nil, fmt.Errorf("gutendex: missing query")
	}
	endpoint := s.baseURL + "?search=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("gutendex: build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gutendex: query: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gutendex: unexpected status %d", resp.StatusCode)
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("gutendex: decode response: %w", err)
	}

	results := s.convert(payload.Results, category)
	s.logger.Debug().Int("results", len(results)).Str("query", query).Msg("gutendex: search done")
	return results, nil
}

func (s *Source) convert(books []apiBook, category string) []source.Result {
	var results []source.Result
	for _, book := range books {
		link, format := pickFormat(book.Formats)
		if link == "" {
			continue
		}
		author := "Unknown"
		if len(book.Authors) > 0 && book.Authors[0].Name != "" {
			author = book.Authors[0].Name
		}
		language := ""
		if len(book.Languages) > 0 {
			language = book.Languages[0]
		}
		results = append(results, source.Result{
			SourceID:    "gutendex",
			OriginURL:   link,
			Title:       fmt.Sprintf("%s - %s (%s)", author, book.Title, format),
			Category:    category,
			GUID:        "gutendex-" + strconv.Itoa(book.ID),
			Description: fmt.Sprintf("%s by %s (Project Gutenberg #%d)", book.Title, author, book.ID),
			Comments:    "https://www.gutenberg.org/ebooks/" + strconv.Itoa(book.ID),
			Author:      author,
			BookTitle:   book.Title,
			Publisher:   "Project Gutenberg",
			Format:      format,
			Language:    language,
		})
	}
	return results
}

func pickFormat(formats map[string]string) (link, name string) {
	for _, pref := range preferredFormats {
		if url, ok := formats[pref.Mime]; ok {
			return url, pref.Name
		}
	}
	return "", ""
}
