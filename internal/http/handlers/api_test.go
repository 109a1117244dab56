package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"fetcharr/internal/capsule"
	"fetcharr/internal/health"
	"fetcharr/internal/http/handlers"
	"fetcharr/internal/infra"
	"fetcharr/internal/queue"
	"fetcharr/internal/search"
	"fetcharr/internal/source"
)

const testKey = "sekrit"

type stubSource struct {
	id        string
	cats      []string
	results   []source.Result
	lastQuery string
}

func (s *stubSource) ID() string           { return s.id }
func (s *stubSource) Categories() []string { return s.cats }
func (s *stubSource) TestQuery() string    { return "canary" }

func (s *stubSource) Search(ctx context.Context, query, category string) ([]source.Result, error) {
	s.lastQuery = query
	return s.results, nil
}

func (s *stubSource) Feed(ctx context.Context) ([]source.Result, error) {
	return s.results, nil
}

type stubFetcher struct {
	ids  []string
	path string
}

func (f *stubFetcher) HandledIDs() []string { return f.ids }

func (f *stubFetcher) Fetch(ctx context.Context, url, title, destRoot, category string, onProgress source.Progress) (string, error) {
	if onProgress != nil {
		onProgress(2048, 2048)
	}
	return f.path, nil
}

func newTestApp(t *testing.T, sources []source.Source, fetchers []source.Fetcher, enabled []string) *handlers.App {
	t.Helper()
	cfg := &infra.Config{
		APIKey:           testKey,
		DownloadDir:      "/downloads",
		ServerTitle:      "Fetcharr",
		ClientCategories: []string{"readarr"},
	}
	store, err := queue.NewStore(afero.NewMemMapFs(), "/data/queue.json")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	registry := source.NewRegistry(sources, fetchers, enabled)
	mgr, err := queue.NewManager(store, registry, cfg.DownloadDir, time.Second, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	monitor := health.NewMonitor(registry, nil, afero.NewMemMapFs(), t.TempDir(), zerolog.Nop())
	agg := search.NewAggregator(registry, monitor, zerolog.Nop())
	return handlers.NewApp(cfg, zerolog.Nop(), registry, agg, mgr, monitor)
}

func doAPI(app *handlers.App, method, rawQuery string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, "http://fetcharr.local/api?"+rawQuery, body)
		req.Header.Set("Content-Type", contentType)
	} else {
		req = httptest.NewRequest(method, "http://fetcharr.local/api?"+rawQuery, nil)
	}
	w := httptest.NewRecorder()
	app.Api(w, req)
	return w
}

func TestControlModesRequireAPIKey(t *testing.T) {
	app := newTestApp(t, nil, nil, nil)
	for _, mode := range []string{"get_config", "addurl", "addfile", "queue", "history"} {
		t.Run(mode, func(t *testing.T) {
			w := doAPI(app, http.MethodGet, "mode="+mode+"&apikey=wrong", nil, "")
			if w.Code != http.StatusForbidden {
				t.Fatalf("status = %d, want 403", w.Code)
			}
			var got map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if got["error"] != "Access Denied" {
				t.Fatalf("error = %q, want Access Denied", got["error"])
			}
		})
	}
}

func TestVersionIsNotGated(t *testing.T) {
	app := newTestApp(t, nil, nil, nil)
	w := doAPI(app, http.MethodGet, "mode=version", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if got["version"] != "4.2.0" {
		t.Fatalf("version = %q, want 4.2.0", got["version"])
	}
}

func TestGetConfigReportsDownloadDir(t *testing.T) {
	app := newTestApp(t, nil, nil, nil)
	w := doAPI(app, http.MethodGet, "mode=get_config&apikey="+testKey, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got struct {
		Config struct {
			Misc struct {
				CompleteDir string `json:"complete_dir"`
				APIKey      string `json:"api_key"`
			} `json:"misc"`
			Categories []map[string]any `json:"categories"`
		} `json:"config"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if got.Config.Misc.CompleteDir != "/downloads" {
		t.Fatalf("complete_dir = %q, want /downloads", got.Config.Misc.CompleteDir)
	}
	if got.Config.Misc.APIKey != testKey {
		t.Fatalf("api_key = %q, want %q", got.Config.Misc.APIKey, testKey)
	}
	if len(got.Config.Categories) != 1 || got.Config.Categories[0]["name"] != "readarr" {
		t.Fatalf("categories = %v, want one readarr entry", got.Config.Categories)
	}
}

func TestAddURLQueuesJob(t *testing.T) {
	app := newTestApp(t, nil, nil, nil)
	c := capsule.Capsule{
		SourceID:  "gutendex",
		OriginURL: "https://example.org/book.epub",
		Title:     "Austen - Emma (EPUB)",
		SizeBytes: 4096,
	}
	name := url.QueryEscape(c.EncodeURL("http://fetcharr.local/"))
	w := doAPI(app, http.MethodGet, "mode=addurl&apikey="+testKey+"&cat=readarr&name="+name, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var got struct {
		Status bool     `json:"status"`
		NzoIDs []string `json:"nzo_ids"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if !got.Status || len(got.NzoIDs) != 1 || !strings.HasPrefix(got.NzoIDs[0], "SABnzbd_nzo_") {
		t.Fatalf("response = %+v, want status true and one prefixed nzo id", got)
	}

	jobs := app.Queue.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("queue has %d jobs, want 1", len(jobs))
	}
	j := jobs[0]
	if j.SourceID != "gutendex" || j.OriginURL != c.OriginURL || j.Title != c.Title || j.SizeTotalBytes != 4096 || j.Category != "readarr" {
		t.Fatalf("queued job = %+v, want capsule fields", j)
	}
	if j.State != queue.StateQueued {
		t.Fatalf("state = %q, want Queued", j.State)
	}
}

func TestAddURLRejectsMalformedCapsule(t *testing.T) {
	app := newTestApp(t, nil, nil, nil)
	name := url.QueryEscape("http://fetcharr.local/api?download=nzb&prefix=gutendex&size=1")
	w := doAPI(app, http.MethodGet, "mode=addurl&apikey="+testKey+"&name="+name, nil, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Invalid NZB URL format") {
		t.Fatalf("body = %s, want invalid-format error", w.Body.String())
	}
}

func TestAddFileQueuesJob(t *testing.T) {
	app := newTestApp(t, nil, nil, nil)
	c := capsule.Capsule{
		SourceID:  "openlibrary",
		OriginURL: "https://archive.org/download/x/x.pdf",
		Title:     "Melville - Moby Dick",
		SizeBytes: 123,
	}
	doc, err := c.EncodeDocument()
	if err != nil {
		t.Fatalf("EncodeDocument() error = %v", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("name", "capsule.nzb")
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	part.Write(doc)
	mw.Close()

	w := doAPI(app, http.MethodPost, "mode=addfile&apikey="+testKey+"&cat=readarr", &body, mw.FormDataContentType())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	jobs := app.Queue.Jobs()
	if len(jobs) != 1 || jobs[0].OriginURL != c.OriginURL || jobs[0].SourceID != "openlibrary" {
		t.Fatalf("jobs = %+v, want one openlibrary job", jobs)
	}
}

func TestQueueAndHistoryShapes(t *testing.T) {
	fetcher := &stubFetcher{ids: []string{"gutendex"}, path: "/downloads/readarr/Emma.epub"}
	app := newTestApp(t, nil, []source.Fetcher{fetcher}, nil)

	if _, err := app.Queue.Submit("gutendex", "https://example.org/emma.epub", "Emma", "readarr", 2048); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	w := doAPI(app, http.MethodGet, "mode=queue&apikey="+testKey, nil, "")
	var q struct {
		Queue struct {
			Paused bool `json:"paused"`
			Slots  []struct {
				NzoID    string `json:"nzo_id"`
				Filename string `json:"filename"`
				Status   string `json:"status"`
				MB       string `json:"mb"`
			} `json:"slots"`
		} `json:"queue"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &q); err != nil {
		t.Fatalf("decoding queue: %v", err)
	}
	if len(q.Queue.Slots) != 1 {
		t.Fatalf("queue slots = %d, want 1", len(q.Queue.Slots))
	}
	slot := q.Queue.Slots[0]
	if slot.Filename != "Emma" || slot.Status != "Queued" || slot.MB != "0.00" {
		t.Fatalf("slot = %+v, want queued Emma", slot)
	}

	app.Queue.ScanOnce(context.Background())

	w = doAPI(app, http.MethodGet, "mode=history&apikey="+testKey, nil, "")
	var h struct {
		History struct {
			Slots []struct {
				Name    string `json:"name"`
				Status  string `json:"status"`
				Storage string `json:"storage"`
			} `json:"slots"`
		} `json:"history"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &h); err != nil {
		t.Fatalf("decoding history: %v", err)
	}
	if len(h.History.Slots) != 1 {
		t.Fatalf("history slots = %d, want 1", len(h.History.Slots))
	}
	if h.History.Slots[0].Status != "Completed" || h.History.Slots[0].Storage != fetcher.path {
		t.Fatalf("history slot = %+v, want Completed with storage", h.History.Slots[0])
	}

	w = doAPI(app, http.MethodGet, "mode=queue&apikey="+testKey, nil, "")
	if err := json.Unmarshal(w.Body.Bytes(), &q); err != nil {
		t.Fatalf("decoding queue after scan: %v", err)
	}
	if len(q.Queue.Slots) != 0 {
		t.Fatalf("queue slots after completion = %d, want 0", len(q.Queue.Slots))
	}
}

func TestQueueDeleteRemovesJob(t *testing.T) {
	app := newTestApp(t, nil, nil, nil)
	id, err := app.Queue.Submit("gutendex", "https://example.org/x.epub", "X", "readarr", 0)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	w := doAPI(app, http.MethodGet, "mode=queue&apikey="+testKey+"&name=delete&value=SABnzbd_nzo_"+id, nil, "")
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("delete response = %d %q, want 200 ok", w.Code, w.Body.String())
	}
	if len(app.Queue.Jobs()) != 0 {
		t.Fatal("job still present after delete")
	}
}

func TestCapsServesXML(t *testing.T) {
	src := &stubSource{id: "gutendex", cats: []string{"7020"}}
	app := newTestApp(t, []source.Source{src}, nil, []string{"gutendex"})
	w := doAPI(app, http.MethodGet, "t=caps", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/xml" {
		t.Fatalf("content type = %q, want application/xml", ct)
	}
	if !strings.Contains(w.Body.String(), `<caps>`) {
		t.Fatalf("body missing caps root: %s", w.Body.String())
	}
}

func TestSearchFeedCarriesQuery(t *testing.T) {
	src := &stubSource{
		id:   "gutendex",
		cats: []string{"7020"},
		results: []source.Result{{
			SourceID:  "gutendex",
			OriginURL: "https://example.org/emma.epub",
			Title:     "Austen - Emma (EPUB)",
			SizeBytes: 2048,
			Category:  "7020",
			GUID:      "gutendex-1",
		}},
	}
	app := newTestApp(t, []source.Source{src}, nil, []string{"gutendex"})
	w := doAPI(app, http.MethodGet, "t=search&q=emma&cat=7020", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if src.lastQuery != "emma" {
		t.Fatalf("source saw query %q, want emma", src.lastQuery)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Austen - Emma (EPUB)") {
		t.Fatalf("feed missing item title: %s", body)
	}
	if !strings.Contains(body, "download=nzb") {
		t.Fatalf("feed link is not capsule form: %s", body)
	}
}

func TestSearchWithoutQueryServesPassiveFeed(t *testing.T) {
	src := &stubSource{
		id:   "gutendex",
		cats: []string{"7020"},
		results: []source.Result{{
			SourceID:  "gutendex",
			OriginURL: "https://example.org/feed.epub",
			Title:     "Feed Item",
			Category:  "7020",
			GUID:      "gutendex-2",
		}},
	}
	app := newTestApp(t, []source.Source{src}, nil, []string{"gutendex"})
	w := doAPI(app, http.MethodGet, "t=search", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if src.lastQuery != "" {
		t.Fatalf("search was invoked with %q, want passive feed only", src.lastQuery)
	}
	if !strings.Contains(w.Body.String(), "Feed Item") {
		t.Fatalf("feed missing passive item: %s", w.Body.String())
	}
}

func TestBookProbeUsesTestQuery(t *testing.T) {
	src := &stubSource{id: "gutendex", cats: []string{"7020"}}
	app := newTestApp(t, []source.Source{src}, nil, []string{"gutendex"})
	w := doAPI(app, http.MethodGet, "t=book&cat=7020", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if src.lastQuery != "canary" {
		t.Fatalf("source saw query %q, want its test query", src.lastQuery)
	}
}

func TestDownloadNZBRoundTrips(t *testing.T) {
	app := newTestApp(t, nil, nil, nil)
	c := capsule.Capsule{
		SourceID:  "gutendex",
		OriginURL: "https://example.org/emma.epub",
		Title:     "Emma",
		SizeBytes: 2048,
	}
	link := c.EncodeURL("http://fetcharr.local/")
	raw := strings.TrimPrefix(link, "http://fetcharr.local/api?")
	w := doAPI(app, http.MethodGet, raw, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	got, err := capsule.DecodeDocument(w.Body)
	if err != nil {
		t.Fatalf("DecodeDocument() error = %v", err)
	}
	if got != c {
		t.Fatalf("round trip = %+v, want %+v", got, c)
	}
}

func TestUnsupportedRequest(t *testing.T) {
	app := newTestApp(t, nil, nil, nil)
	w := doAPI(app, http.MethodGet, "t=movie", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Unsupported request") {
		t.Fatalf("body = %s, want unsupported-request error", w.Body.String())
	}
}
