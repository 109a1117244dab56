package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fetcharr/internal/source"
)

// ErrNoFetcher is recorded when a job's source id has no registered fetcher.
var ErrNoFetcher = errors.New("queue: no matching fetch source")

// Resolver yields the fetcher responsible for a source id.
type Resolver interface {
	FetcherFor(sourceID string) (source.Fetcher, bool)
}

// Manager owns the in-memory job list, its persistence, and the sequential
// execution loop. At most one fetch is in flight system-wide.
type Manager struct {
	mu       sync.Mutex
	jobs     []Job
	store    *Store
	resolver Resolver
	logger   zerolog.Logger

	downloadDir string
	interval    time.Duration
	notify      func(status, message string)
}

// NewManager restores the persisted queue and applies crash recovery: any
// job found Downloading is reset to Queued with zeroed counters, since no
// partial-fetch resume contract exists.
func NewManager(store *Store, resolver Resolver, downloadDir string, interval time.Duration, logger zerolog.Logger) (*Manager, error) {
	jobs, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("queue: restore: %w", err)
	}
	recovered := 0
	for i := range jobs {
		if jobs[i].State == StateDownloading {
			jobs[i].State = StateQueued
			jobs[i].BytesDownloaded = 0
			jobs[i].SpeedBPS = 0
			jobs[i].Progress = nil
			recovered++
		}
	}
	m := &Manager{
		jobs:        jobs,
		store:       store,
		resolver:    resolver,
		logger:      logger,
		downloadDir: downloadDir,
		interval:    interval,
	}
	if recovered > 0 {
		logger.Info().Int("jobs", recovered).Msg("queue: reset interrupted downloads to queued")
		m.mu.Lock()
		m.persistLocked()
		m.mu.Unlock()
	}
	return m, nil
}

// SetNotify installs an optional activity hook invoked on job transitions.
func (m *Manager) SetNotify(fn func(status, message string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notify = fn
}

// Submit validates and appends a new Queued job, persists the queue and
// returns the generated job id.
func (m *Manager) Submit(sourceID, originURL, title, category string, sizeBytes int64) (string, error) {
	if sourceID == "" {
		return "", errors.New("queue: source id is required")
	}
	if originURL == "" {
		return "", errors.New("queue: origin url is required")
	}
	if sizeBytes < 0 {
		sizeBytes = 0
	}
	job := Job{
		ID:             uuid.NewString(),
		Title:          title,
		SourceID:       sourceID,
		OriginURL:      originURL,
		Category:       category,
		State:          StateQueued,
		SizeTotalBytes: sizeBytes,
		CreatedAt:      time.Now().UTC(),
	}

	m.mu.Lock()
	m.jobs = append(m.jobs, job)
	m.persistLocked()
	m.mu.Unlock()

	m.logger.Info().Str("job_id", job.ID).Str("title", title).Msg("queue: job submitted")
	m.event("info", fmt.Sprintf("Queued %q", title))
	return job.ID, nil
}

// Jobs returns a point-in-time copy of the queue, terminal jobs included.
func (m *Manager) Jobs() []Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Job, len(m.jobs))
	copy(out, m.jobs)
	return out
}

// Delete removes a job regardless of state. Removing an absent id is a no-op.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.jobs {
		if m.jobs[i].ID == id {
			m.jobs = append(m.jobs[:i], m.jobs[i+1:]...)
			m.persistLocked()
			return
		}
	}
}

// Run executes scan passes on a fixed interval until the context ends. Each
// pass serves every job that was Queued when the pass began, in order; jobs
// submitted mid-pass wait for the next one.
func (m *Manager) Run(ctx context.Context) {
	m.logger.Info().Dur("interval", m.interval).Msg("queue: worker started")
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		m.scanPass(ctx)
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("queue: worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// ScanOnce runs a single scan pass. Exposed for tests and manual draining.
func (m *Manager) ScanOnce(ctx context.Context) {
	m.scanPass(ctx)
}

func (m *Manager) scanPass(ctx context.Context) {
	m.mu.Lock()
	var pending []string
	for _, job := range m.jobs {
		if job.State == StateQueued {
			pending = append(pending, job.ID)
		}
	}
	m.mu.Unlock()

	for _, id := range pending {
		if ctx.Err() != nil {
			return
		}
		m.process(ctx, id)
	}
}

// process resolves and runs a single job to a terminal state. The fetch call
// is synchronous and unguarded by a timeout; a hanging fetcher stalls the
// loop, which is an accepted limitation.
func (m *Manager) process(ctx context.Context, id string) {
	m.mu.Lock()
	idx := m.indexLocked(id)
	if idx < 0 || m.jobs[idx].State != StateQueued {
		m.mu.Unlock()
		return
	}
	m.jobs[idx].State = StateDownloading
	m.jobs[idx].BytesDownloaded = 0
	m.jobs[idx].SpeedBPS = 0
	m.jobs[idx].Progress = nil
	job := m.jobs[idx]
	m.persistLocked()
	m.mu.Unlock()

	fetcher, ok := m.resolver.FetcherFor(job.SourceID)
	if !ok {
		m.logger.Warn().Str("job_id", id).Str("source_id", job.SourceID).Msg("queue: no fetcher registered")
		m.finalize(id, StateFailed, "")
		m.event("error", fmt.Sprintf("No downloader registered for source %q", job.SourceID))
		return
	}

	m.logger.Info().Str("job_id", id).Str("source_id", job.SourceID).Str("title", job.Title).Msg("queue: starting download")
	start := time.Now()
	sizeHint := job.SizeTotalBytes

	onProgress := func(downloaded, total int64) {
		m.updateProgress(id, downloaded, total, sizeHint, time.Since(start))
	}

	path, err := fetcher.Fetch(ctx, job.OriginURL, job.Title, m.downloadDir, job.Category, onProgress)
	switch {
	case errors.Is(err, source.ErrNotFound):
		m.logger.Warn().Str("job_id", id).Msg("queue: target gone")
		m.finalize(id, StateFailed, "")
		m.event("error", fmt.Sprintf("Download failed for %q", job.Title))
	case err != nil:
		m.logger.Error().Err(err).Str("job_id", id).Msg("queue: download failed")
		m.finalize(id, StateFailed, "")
		m.event("error", fmt.Sprintf("Download failed for %q", job.Title))
	default:
		m.finalize(id, StateComplete, path)
		m.logger.Info().Str("job_id", id).Str("path", path).Msg("queue: download complete")
		m.event("success", fmt.Sprintf("Downloaded %q", job.Title))
	}
}

// updateProgress applies a progress callback. bytesDownloaded never exceeds
// the total once a total is known.
func (m *Manager) updateProgress(id string, downloaded, total, sizeHint int64, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexLocked(id)
	if idx < 0 || m.jobs[idx].State != StateDownloading {
		return
	}
	job := &m.jobs[idx]
	if total > 0 {
		job.SizeTotalBytes = total
	} else if sizeHint > 0 {
		job.SizeTotalBytes = sizeHint
	}
	if downloaded < 0 {
		downloaded = 0
	}
	if job.SizeTotalBytes > 0 && downloaded > job.SizeTotalBytes {
		downloaded = job.SizeTotalBytes
	}
	job.BytesDownloaded = downloaded
	job.Progress = progressOf(job.BytesDownloaded, job.SizeTotalBytes)
	if secs := elapsed.Seconds(); secs > 0 {
		job.SpeedBPS = float64(job.BytesDownloaded) / secs
	}
	m.persistLocked()
}

// finalize moves a job into a terminal state and persists it. Complete jobs
// report full progress; failed jobs report none.
func (m *Manager) finalize(id string, state State, location string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexLocked(id)
	if idx < 0 {
		return
	}
	job := &m.jobs[idx]
	job.State = state
	job.SpeedBPS = 0
	job.ResultLocation = location
	if state == StateComplete {
		full := 100
		job.Progress = &full
		if job.SizeTotalBytes > 0 {
			job.BytesDownloaded = job.SizeTotalBytes
		}
	} else {
		job.Progress = nil
	}
	m.persistLocked()
}

func (m *Manager) indexLocked(id string) int {
	for i := range m.jobs {
		if m.jobs[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked writes the queue through the store. Failures are logged and
// never block in-memory state; the update is simply at risk until the next
// successful write.
func (m *Manager) persistLocked() {
	jobs := make([]Job, len(m.jobs))
	copy(jobs, m.jobs)
	if err := m.store.Save(jobs); err != nil {
		m.logger.Error().Err(err).Msg("queue: persist failed")
	}
}

func (m *Manager) event(status, message string) {
	m.mu.Lock()
	fn := m.notify
	m.mu.Unlock()
	if fn != nil {
		fn(status, message)
	}
}
