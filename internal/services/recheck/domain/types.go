package domain

import (
	"time"

	"modwatch/internal/core/entity"
	tim "modwatch/internal/platform/time"
)

// State is one step of the per segment recheck
type State uint8

const (
	// StateReading collects the next batch from the segment
	StateReading State = iota
	// StateWaiting sleeps until the batch is old enough
	StateWaiting
	// StateFetching looks the batch up again
	StateFetching
	// StateComparing runs the removal predicate and writes matches
	StateComparing
	// StateArchiving finalizes the removed log and compresses
	StateArchiving
	// StateDone means the segment is archived
	StateDone
	// StateFailed marks a batch given up after retries
	StateFailed
)

var stateNames = [...]string{
	StateReading:   "reading",
	StateWaiting:   "waiting",
	StateFetching:  "fetching",
	StateComparing: "comparing",
	StateArchiving: "archiving",
	StateDone:      "done",
	StateFailed:    "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Batch is up to BatchSize distinct records read in file order
type Batch struct {
	Index   int
	Records []entity.Entity
}

// IDs returns the record names in batch order
func (b Batch) IDs() []string {
	out := make([]string, len(b.Records))
	for i, r := range b.Records {
		out[i] = r.Name
	}
	return out
}

// EligibleAt is the earliest created time in the batch plus dwell
// ok is false when no record carries a timestamp; such a batch is due at once
func (b Batch) EligibleAt(dwell time.Duration) (at time.Time, ok bool) {
	var oldest float64
	for _, r := range b.Records {
		c, set := r.Created()
		if !set {
			continue
		}
		if oldest == 0 || c < oldest {
			oldest = c
		}
	}
	if oldest == 0 {
		return time.Time{}, false
	}
	return tim.FromUnix(oldest).Add(dwell), true
}

// VerdictRow is one removal verdict as exported to analytics
type VerdictRow struct {
	RunID     string
	Segment   string
	Name      string
	Subreddit string
	Author    string
	Signal    string
	CreatedAt time.Time
	CheckedAt time.Time
}

// SegmentResult summarizes one processed segment
type SegmentResult struct {
	Segment   string `json:"segment"`
	Batches   int    `json:"batches"`
	Failed    int    `json:"failed_batches"`
	Records   int    `json:"records"`
	Malformed int    `json:"malformed"`
	Removed   int    `json:"removed"`
	Absent    int    `json:"absent"`
	// ArchiveOnly is set when a previous run had already finished the removed log
	ArchiveOnly bool `json:"archive_only"`
	// AlreadyDone is set when only archives remained
	AlreadyDone bool `json:"already_done"`
}

// Stats is a snapshot of dispatcher counters
type Stats struct {
	Queued      int       `json:"queued"`
	InFlight    []string  `json:"in_flight"`
	Processed   int64     `json:"processed"`
	Failed      int64     `json:"failed"`
	Skipped     int64     `json:"skipped"`
	LastSegment string    `json:"last_segment,omitempty"`
	LastDoneAt  time.Time `json:"last_done_at"`
}
