// Package queue implements the durable, ordered download job queue and its
// single sequential execution loop.
package queue

import "time"

// State of a job in its lifecycle. Queued and Downloading are the only
// non-terminal states.
type State string

const (
	StateQueued      State = "Queued"
	StateDownloading State = "Downloading"
	StateComplete    State = "Complete"
	StateFailed      State = "Failed"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// Job is one unit of queued work. Mutated only by the Manager's execution
// loop and explicit deletion; persisted after every field change.
type Job struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	SourceID        string    `json:"source_id"`
	OriginURL       string    `json:"origin_url"`
	Category        string    `json:"category"`
	State           State     `json:"state"`
	SizeTotalBytes  int64     `json:"size_total_bytes"`
	BytesDownloaded int64     `json:"bytes_downloaded"`
	SpeedBPS        float64   `json:"speed_bps"`
	Progress        *int      `json:"progress"`
	ResultLocation  string    `json:"result_location,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// progressOf derives the clamped percentage, or nil when the total is
// unknown. The derived value is never authoritative.
func progressOf(downloaded, total int64) *int {
	if total <= 0 {
		return nil
	}
	pct := int(downloaded * 100 / total)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return &pct
}
