// Package openlibrary searches the Open Library catalog; downloads resolve
// to the Internet Archive item behind each edition.
package openlibrary

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

const defaultBaseURL = "https://openlibrary.org/search.json"

// Source queries Open Library's search API.
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

func (s *Source) ID() string           { return "openlibrary" }
func (s *Source) Categories() []string { return []string{"7020"} }
func (s *Source) TestQuery() string    { return "pride and prejudice" }

type apiResponse struct {
	Docs []apiDoc `json:"docs"`
}

type apiDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	FirstPublishYear int      `json:"first_publish_year"`
	Language         []string `json:"language"`
	Publisher        []string `json:"publisher"`
	IA               []string `json:"ia"`
}

// Search runs a keyword query against the catalog. Only editions with an
// Internet Archive scan are retrievable and returned.
func (s *Source) Search(ctx context.Context, query, category string) ([]source.Result, error) {
	if query == "" {
		return nil, fmt.Errorf("openlibrary: missing query")
	}
	endpoint := s.baseURL + "?" + url.Values{"q": {query}, "limit": {"25"}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("openlibrary: build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openlibrary: query: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openlibrary: unexpected status %d", resp.StatusCode)
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("openlibrary: decode response: %w", err)
	}

	var results []source.Result
	for _, doc := range payload.Docs {
		if len(doc.IA) == 0 || doc.Title == "" {
			continue
		}
		item := doc.IA[0]
		author := "Unknown"
		if len(doc.AuthorName) > 0 {
			author = doc.AuthorName[0]
		}
		year := ""
		if doc.FirstPublishYear > 0 {
			year = strconv.Itoa(doc.FirstPublishYear)
		}
		language := ""
		if len(doc.Language) > 0 {
			language = doc.Language[0]
		}
		publisher := ""
		if len(doc.Publisher) > 0 {
			publisher = doc.Publisher[0]
		}
		results = append(results, source.Result{
			SourceID:    "openlibrary",
			OriginURL:   fmt.Sprintf("https://archive.org/download/%s/%s.pdf", item, item),
			Title:       fmt.Sprintf("%s - %s (PDF)", author, doc.Title),
			Category:    category,
			GUID:        "openlibrary-" + item,
			Description: fmt.Sprintf("%s by %s", doc.Title, author),
			Comments:    "https://openlibrary.org" + doc.Key,
			Author:      author,
			BookTitle:   doc.Title,
			Publisher:   publisher,
			Format:      "PDF",
			Language:    language,
			Year:        year,
		})
	}
	s.logger.Debug().Int("results", len(results)).Str("query", query).Msg("openlibrary: search done")
	return results, nil
}
