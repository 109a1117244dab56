package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"fetcharr/internal/health"
	"fetcharr/internal/http/handlers"
	"fetcharr/internal/infra"
	"fetcharr/internal/queue"
	"fetcharr/internal/search"
	"fetcharr/internal/source"
)

func TestRouterRoutes(t *testing.T) {
	cfg := &infra.Config{APIKey: "k", DownloadDir: "/downloads", ServerTitle: "Fetcharr"}
	store, err := queue.NewStore(afero.NewMemMapFs(), "/data/queue.json")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	registry := source.NewRegistry(nil, nil, nil)
	mgr, err := queue.NewManager(store, registry, cfg.DownloadDir, time.Second, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	monitor := health.NewMonitor(registry, nil, afero.NewMemMapFs(), t.TempDir(), zerolog.Nop())
	agg := search.NewAggregator(registry, monitor, zerolog.Nop())
	app := handlers.NewApp(cfg, zerolog.Nop(), registry, agg, mgr, monitor)

	server := httptest.NewServer(NewRouter(app))
	defer server.Close()

	cases := []struct {
		path string
		want int
	}{
		{"/v1/healthz", http.StatusOK},
		{"/api?t=caps", http.StatusOK},
		{"/api?mode=queue&apikey=wrong", http.StatusForbidden},
		{"/api/dashboard/status", http.StatusOK},
		{"/nope", http.StatusNotFound},
	}
	for _, tc := range cases {
		resp, err := http.Get(server.URL + tc.path)
		if err != nil {
			t.Fatalf("GET %s: %v", tc.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tc.want {
			t.Errorf("GET %s = %d, want %d", tc.path, resp.StatusCode, tc.want)
		}
	}
}
