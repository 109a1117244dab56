package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Store persists the full job list as a single JSON document. Every mutation
// of the queue is followed by a whole-file write; startup reloads the file
// wholesale.
type Store struct {
	fs   afero.Fs
	path string
}

// NewStore creates a store writing to path on the given filesystem, ensuring
// the parent directory exists.
func NewStore(fs afero.Fs, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("queue: store path is required")
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("queue: ensure data dir: %w", err)
	}
	return &Store{fs: fs, path: path}, nil
}

// Save writes the given jobs, replacing any previous content. The write goes
// through a temp file so a crash mid-write cannot corrupt the stored queue.
func (s *Store) Save(jobs []Job) error {
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("queue: encode jobs: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("queue: write jobs: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("queue: replace jobs file: %w", err)
	}
	return nil
}

// Load reads the persisted jobs. A missing file is an empty queue.
func (s *Store) Load() ([]Job, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("queue: read jobs: %w", err)
	}
	var jobs []Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("queue: decode jobs: %w", err)
	}
	return jobs, nil
}
