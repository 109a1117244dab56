package handlers

import (
	"context"
	"encoding/json"
	"net/http"
)

type settingsRequest struct {
	Sources map[string]bool `json:"sources"`
}

// Settings reports which sources exist and which are enabled.
func (a *App) Settings(w http.ResponseWriter, r *http.Request) {
	state := map[string]bool{}
	for _, s := range a.Registry.Sources() {
		state[s.ID()] = a.Registry.Enabled(s.ID())
	}
	a.json(w, http.StatusOK, map[string]any{"sources": state})
}

// UpdateSettings flips source enablement and kicks a fresh health scan so the
// dashboard reflects the change without waiting for the next pass.
func (a *App) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.json(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid JSON body"})
		return
	}
	for id, on := range req.Sources {
		a.Registry.SetEnabled(id, on)
	}
	go a.Monitor.CheckAllSources(context.Background())
	a.json(w, http.StatusOK, map[string]any{"success": true})
}
