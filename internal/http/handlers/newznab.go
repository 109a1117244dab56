package handlers

import (
	"net/http"
	"strings"
	"time"

	"fetcharr/internal/capsule"
	"fetcharr/internal/newznab"
	"fetcharr/internal/source"
)

func (a *App) caps(w http.ResponseWriter, r *http.Request) {
	body, err := newznab.Caps(a.Config.ServerTitle, a.Registry.EnabledSources())
	if err != nil {
		a.Logger.Error().Err(err).Msg("api: render caps")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	a.xml(w, http.StatusOK, body)
}

// searchFeed serves t=search. With q it fans the query out; without q the
// client is doing a feed sync, so the passive feed is served instead.
func (a *App) searchFeed(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		a.passiveFeed(w, r)
		return
	}
	results := a.Search.Search(r.Context(), query, catParam(r))
	a.writeFeed(w, r, results)
}

// testFeed serves t=book, the liveness probe automation clients use to verify
// the indexer answers. Each source runs its own canned test query.
func (a *App) testFeed(w http.ResponseWriter, r *http.Request) {
	results := a.Search.TestSearch(r.Context(), catParam(r))
	a.writeFeed(w, r, results)
}

func (a *App) passiveFeed(w http.ResponseWriter, r *http.Request) {
	results := a.Search.Feed(r.Context())
	a.writeFeed(w, r, results)
}

func (a *App) writeFeed(w http.ResponseWriter, r *http.Request, results []source.Result) {
	body, err := newznab.Feed(a.Config.ServerTitle, baseURL(r), results, time.Now())
	if err != nil {
		a.Logger.Error().Err(err).Msg("api: render feed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	a.xml(w, http.StatusOK, body)
}

// downloadCapsule serves download=nzb: the requesting URL carries the capsule
// fields, which come back as the document form the client will later upload.
func (a *App) downloadCapsule(w http.ResponseWriter, r *http.Request) {
	c, err := capsule.DecodeURL(r.URL.String())
	if err != nil {
		a.json(w, http.StatusBadRequest, map[string]any{"status": false, "error": err.Error()})
		return
	}
	body, err := c.EncodeDocument()
	if err != nil {
		a.Logger.Error().Err(err).Msg("api: encode capsule document")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	a.xml(w, http.StatusOK, body)
}

func catParam(r *http.Request) []string {
	raw := r.URL.Query().Get("cat")
	if raw == "" {
		return nil
	}
	var cats []string
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cats = append(cats, c)
		}
	}
	return cats
}

// baseURL reconstructs the externally visible root, matching what the client
// dialed. Capsule links must point back at this server.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/"
}
