// Package health probes every registered source and endpoint for liveness,
// classifies the outcomes and keeps a bounded activity log.
package health

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"fetcharr/internal/source"
)

// Status taxonomy shared by sources and endpoints.
const (
	StatusHealthy  = "healthy"
	StatusWarning  = "warning"
	StatusError    = "error"
	StatusDisabled = "disabled"
	StatusUnknown  = "unknown"
)

// SourceHealth is the outcome of one source check, overwritten wholesale on
// each pass.
type SourceHealth struct {
	Status       string    `json:"status"`
	Message      string    `json:"message"`
	ResponseTime float64   `json:"response_time"`
	FetchStatus  string    `json:"fetch_status"`
	FetchMessage string    `json:"fetch_message"`
	LastChecked  time.Time `json:"last_checked"`
	Enabled      bool      `json:"enabled"`
}

// EndpointHealth is the outcome of one endpoint reachability check.
type EndpointHealth struct {
	Status       string    `json:"status"`
	Message      string    `json:"message"`
	ResponseTime float64   `json:"response_time"`
	LastChecked  time.Time `json:"last_checked"`
}

// ActivityEntry is one line in the bounded activity log.
type ActivityEntry struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Summary aggregates per-status counts for dashboard consumption.
type Summary struct {
	Sources   StatusCounts `json:"sources"`
	Endpoints StatusCounts `json:"endpoints"`
}

type StatusCounts struct {
	Total    int `json:"total"`
	Healthy  int `json:"healthy"`
	Warning  int `json:"warning"`
	Error    int `json:"error"`
	Disabled int `json:"disabled"`
}

const activityCapacity = 100

// Monitor owns the two health maps, the activity ring and the last-error
// notes recorded by searches at runtime.
type Monitor struct {
	registry *source.Registry
	client   *http.Client
	logger   zerolog.Logger
	fs       afero.Fs
	tempRoot string

	mu        sync.Mutex
	sources   map[string]SourceHealth
	endpoints map[string]EndpointHealth
	lastErrs  map[string]string

	actMu    sync.Mutex
	activity []ActivityEntry
}

// NewMonitor builds a monitor probing through the given HTTP client.
// tempRoot hosts throwaway fetch destinations used to verify downloads; they
// are created and removed on fs, which must match what the fetchers write to.
func NewMonitor(registry *source.Registry, client *http.Client, fs afero.Fs, tempRoot string, logger zerolog.Logger) *Monitor {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Monitor{
		registry:  registry,
		client:    client,
		logger:    logger,
		fs:        fs,
		tempRoot:  tempRoot,
		sources:   map[string]SourceHealth{},
		endpoints: map[string]EndpointHealth{},
		lastErrs:  map[string]string{},
	}
}

// LogActivity appends an entry to the ring, dropping the oldest when full.
func (m *Monitor) LogActivity(status, message string) {
	m.actMu.Lock()
	defer m.actMu.Unlock()
	entry := ActivityEntry{Status: status, Message: message, Timestamp: time.Now().UTC()}
	m.activity = append([]ActivityEntry{entry}, m.activity...)
	if len(m.activity) > activityCapacity {
		m.activity = m.activity[:activityCapacity]
	}
}

// Activity returns up to limit entries, newest first.
func (m *Monitor) Activity(limit int) []ActivityEntry {
	m.actMu.Lock()
	defer m.actMu.Unlock()
	if limit <= 0 || limit > len(m.activity) {
		limit = len(m.activity)
	}
	out := make([]ActivityEntry, limit)
	copy(out, m.activity[:limit])
	return out
}

// RecordSourceError notes the most recent failure a source produced, so the
// next health pass can surface it when the source yields nothing.
func (m *Monitor) RecordSourceError(sourceID, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErrs[sourceID] = message
}

// CheckSource exercises one source: a timed test query, then verification of
// the first result's retrievability.
func (m *Monitor) CheckSource(ctx context.Context, src source.Source) SourceHealth {
	now := time.Now().UTC()
	if !m.registry.Enabled(src.ID()) {
		return SourceHealth{
			Status:       StatusDisabled,
			Message:      "Source disabled",
			FetchStatus:  StatusDisabled,
			FetchMessage: "Source disabled",
			LastChecked:  now,
		}
	}

	category := ""
	if cats := src.Categories(); len(cats) > 0 {
		category = cats[0]
	}

	start := time.Now()
	results, err := src.Search(ctx, src.TestQuery(), category)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		m.RecordSourceError(src.ID(), err.Error())
		return SourceHealth{
			Status:       StatusError,
			Message:      err.Error(),
			FetchStatus:  StatusUnknown,
			FetchMessage: "Search failed",
			LastChecked:  now,
			Enabled:      true,
		}
	}
	if len(results) == 0 {
		msg := m.lastError(src.ID())
		if msg == "" {
			msg = "No results returned"
		}
		return SourceHealth{
			Status:       StatusWarning,
			Message:      msg,
			ResponseTime: round2(elapsed),
			FetchStatus:  StatusUnknown,
			FetchMessage: "No results to test",
			LastChecked:  now,
			Enabled:      true,
		}
	}

	fetchStatus, fetchMessage := m.verifyResult(ctx, results[0])
	return SourceHealth{
		Status:       StatusHealthy,
		Message:      fmt.Sprintf("OK - %d results", len(results)),
		ResponseTime: round2(elapsed),
		FetchStatus:  fetchStatus,
		FetchMessage: fetchMessage,
		LastChecked:  now,
		Enabled:      true,
	}
}

// verifyResult checks the first result's retrievability: a real throwaway
// fetch when a fetcher handles the source, otherwise a lightweight probe.
func (m *Monitor) verifyResult(ctx context.Context, res source.Result) (string, string) {
	if fetcher, ok := m.registry.FetcherFor(res.SourceID); ok {
		dest := filepath.Join(m.tempRoot, "healthcheck-"+uuid.NewString()[:8])
		defer func() {
			if err := m.fs.RemoveAll(dest); err != nil {
				m.logger.Warn().Err(err).Str("dir", dest).Msg("health: cleanup of verification dir failed")
			}
		}()
		_, err := fetcher.Fetch(ctx, res.OriginURL, "healthcheck", dest, "health", func(int64, int64) {})
		if err != nil {
			return StatusError, fmt.Sprintf("Fetch failed: %v", err)
		}
		return StatusHealthy, "Fetch OK"
	}
	return m.probe(ctx, res.OriginURL)
}

// probe classifies a URL by response code without downloading the body.
func (m *Monitor) probe(ctx context.Context, url string) (string, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return StatusWarning, "Invalid URL"
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return StatusError, fmt.Sprintf("Link unreachable: %v", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return StatusHealthy, "Direct link reachable"
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return StatusError, fmt.Sprintf("Access denied (%d)", resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return StatusError, "File not found (404)"
	case resp.StatusCode == http.StatusMethodNotAllowed:
		return StatusWarning, "Method Not Allowed (HEAD)"
	default:
		return StatusWarning, fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
}

// CheckAllSources checks every registered source concurrently, publishing
// each record under the lock as its task completes.
func (m *Monitor) CheckAllSources(ctx context.Context) {
	sources := m.registry.Sources()
	if len(sources) == 0 {
		return
	}
	m.LogActivity("info", "Starting source health checks")

	var g errgroup.Group
	for _, src := range sources {
		src := src
		g.Go(func() error {
			record := m.CheckSource(ctx, src)
			m.mu.Lock()
			m.sources[src.ID()] = record
			m.mu.Unlock()
			m.LogActivity("success", fmt.Sprintf("Checked source %s", src.ID()))
			return nil
		})
	}
	_ = g.Wait()
}

// CheckEndpoint issues a plain GET against an alternate endpoint.
func (m *Monitor) CheckEndpoint(ctx context.Context, url string) EndpointHealth {
	now := time.Now().UTC()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return EndpointHealth{Status: StatusError, Message: "Invalid URL", LastChecked: now}
	}
	start := time.Now()
	resp, err := m.client.Do(req)
	if err != nil {
		return EndpointHealth{Status: StatusError, Message: trim(err.Error(), 50), LastChecked: now}
	}
	defer resp.Body.Close()
	elapsed := time.Since(start).Seconds()

	if resp.StatusCode == http.StatusOK {
		return EndpointHealth{Status: StatusHealthy, Message: "OK", ResponseTime: round2(elapsed), LastChecked: now}
	}
	return EndpointHealth{
		Status:       StatusWarning,
		Message:      fmt.Sprintf("HTTP %d", resp.StatusCode),
		ResponseTime: round2(elapsed),
		LastChecked:  now,
	}
}

// CheckAllEndpoints mirrors CheckAllSources for alternate endpoints.
func (m *Monitor) CheckAllEndpoints(ctx context.Context, urls []string) {
	if len(urls) == 0 {
		return
	}
	m.LogActivity("info", "Checking alternate endpoints")

	var g errgroup.Group
	for _, url := range urls {
		url := url
		g.Go(func() error {
			record := m.CheckEndpoint(ctx, url)
			m.mu.Lock()
			m.endpoints[url] = record
			m.mu.Unlock()
			m.LogActivity("success", fmt.Sprintf("Endpoint %s status: %s", url, record.Status))
			return nil
		})
	}
	_ = g.Wait()
}

// SourceHealthMap returns a copy of the current per-source records.
func (m *Monitor) SourceHealthMap() map[string]SourceHealth {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]SourceHealth, len(m.sources))
	for id, record := range m.sources {
		out[id] = record
	}
	return out
}

// EndpointHealthMap returns a copy of the current per-endpoint records.
func (m *Monitor) EndpointHealthMap() map[string]EndpointHealth {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]EndpointHealth, len(m.endpoints))
	for url, record := range m.endpoints {
		out[url] = record
	}
	return out
}

// SummaryView aggregates counts per status across both maps. Pure read.
func (m *Monitor) SummaryView() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	sourceStatuses := lo.Map(lo.Values(m.sources), func(r SourceHealth, _ int) string { return r.Status })
	endpointStatuses := lo.Map(lo.Values(m.endpoints), func(r EndpointHealth, _ int) string { return r.Status })
	return Summary{
		Sources:   countStatuses(sourceStatuses),
		Endpoints: countStatuses(endpointStatuses),
	}
}

// RunStartupChecks runs both full scans once, in a detached goroutine, after
// sources finish loading.
func (m *Monitor) RunStartupChecks(ctx context.Context, endpoints []string) {
	go func() {
		m.LogActivity("info", "Running startup health checks")
		m.logger.Info().Msg("health: running startup checks")
		m.CheckAllSources(ctx)
		m.CheckAllEndpoints(ctx, endpoints)
		m.LogActivity("success", "Health checks complete")
		m.logger.Info().Msg("health: startup checks complete")
	}()
}

func (m *Monitor) lastError(sourceID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErrs[sourceID]
}

func countStatuses(statuses []string) StatusCounts {
	byStatus := lo.CountValues(statuses)
	return StatusCounts{
		Total:    len(statuses),
		Healthy:  byStatus[StatusHealthy],
		Warning:  byStatus[StatusWarning],
		Error:    byStatus[StatusError],
		Disabled: byStatus[StatusDisabled],
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func trim(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
