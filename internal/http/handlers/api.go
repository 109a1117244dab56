package handlers

import (
	"net/http"
	"strings"
)

// Api is the combined endpoint download-automation clients talk to. Indexer
// requests select behavior through t= and download=, download-client control
// requests through mode=. Dispatch mirrors how SABnzbd and Newznab servers
// read the same parameters.
func (a *App) Api(w http.ResponseWriter, r *http.Request) {
	mode := strings.ToLower(strings.TrimSpace(firstParam(r, "mode")))
	queryType := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("t")))
	downloadAction := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("download")))

	switch queryType {
	case "caps":
		a.caps(w, r)
		return
	case "book":
		a.testFeed(w, r)
		return
	case "rss":
		a.passiveFeed(w, r)
		return
	case "search":
		a.searchFeed(w, r)
		return
	}

	if downloadAction == "nzb" {
		a.downloadCapsule(w, r)
		return
	}

	switch mode {
	case "version":
		a.sabVersion(w, r)
		return
	case "get_config":
		a.withAPIKey(w, r, a.sabGetConfig)
		return
	case "addurl":
		a.withAPIKey(w, r, a.sabAddURL)
		return
	case "addfile":
		a.withAPIKey(w, r, a.sabAddFile)
		return
	case "queue":
		a.withAPIKey(w, r, a.sabQueue)
		return
	case "history":
		a.withAPIKey(w, r, a.sabHistory)
		return
	}

	a.Logger.Warn().Str("mode", mode).Str("t", queryType).Str("download", downloadAction).Msg("api: unsupported request")
	a.json(w, http.StatusBadRequest, map[string]any{"status": false, "error": "Unsupported request"})
}

// withAPIKey rejects control calls whose apikey does not match the configured
// token. Every mode except the version probe is gated, addurl included.
func (a *App) withAPIKey(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request)) {
	if firstParam(r, "apikey") != a.Config.APIKey {
		a.json(w, http.StatusForbidden, map[string]string{"error": "Access Denied"})
		return
	}
	next(w, r)
}

// firstParam reads a parameter from the query string or, on POST, the form
// body. Clients send control parameters either way.
func firstParam(r *http.Request, key string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	if r.Method == http.MethodPost {
		return r.PostFormValue(key)
	}
	return ""
}
