package progress

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Snapshot is a point-in-time view of batch progress, served by the HTTP
// API and printed at shutdown. Counters only ever grow within a run.
type Snapshot struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Done      bool      `json:"done"`

	Total     int `json:"total"`
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Partial   int `json:"partial"`
	Failed    int `json:"failed"`
	Rooms     int `json:"rooms"`

	Elapsed     time.Duration `json:"elapsed_ns"`
	ETA         time.Duration `json:"eta_ns"`
	PerVenueAvg time.Duration `json:"per_venue_avg_ns"`
	PercentDone float64       `json:"percent_done"`
}

// Tracker aggregates progress events into a queryable snapshot. It is a Sink
// so the hub feeds it alongside logs and metrics.
type Tracker struct {
	mu        sync.Mutex
	runID     uuid.UUID
	startedAt time.Time
	total     int
	processed int
	succeeded int
	partial   int
	failed    int
	rooms     int
	done      bool

	now func() time.Time
}

// NewTracker returns a tracker for a batch of total venues.
func NewTracker(total int) *Tracker {
	return &Tracker{total: total, now: time.Now}
}

// Consume folds a batch of events into the counters.
func (t *Tracker) Consume(_ context.Context, batch []Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, evt := range batch {
		switch evt.Stage {
		case StageRunStart:
			t.runID = evt.RunID
			t.startedAt = evt.TS
		case StageVenueDone:
			t.processed++
			t.rooms += evt.Rooms
			switch evt.Outcome {
			case OutcomeSuccess:
				t.succeeded++
			case OutcomePartial:
				t.partial++
			default:
				t.failed++
			}
		case StageVenueError:
			t.processed++
			t.failed++
		case StageRunDone:
			t.done = true
		}
	}
	return nil
}

// Close implements Sink.
func (t *Tracker) Close(context.Context) error { return nil }

// Snapshot returns the current aggregate view. The ETA extrapolates the
// observed per-venue average over the remaining queue, so it is meaningless
// until at least one venue has finished.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		RunID:     t.runID.String(),
		StartedAt: t.startedAt,
		Done:      t.done,
		Total:     t.total,
		Processed: t.processed,
		Succeeded: t.succeeded,
		Partial:   t.partial,
		Failed:    t.failed,
		Rooms:     t.rooms,
	}
	if t.runID == uuid.Nil {
		s.RunID = ""
	}
	if !t.startedAt.IsZero() {
		s.Elapsed = t.now().Sub(t.startedAt)
	}
	if t.total > 0 {
		s.PercentDone = float64(t.processed) / float64(t.total) * 100
	}
	if t.processed > 0 {
		s.PerVenueAvg = s.Elapsed / time.Duration(t.processed)
		remaining := t.total - t.processed
		if remaining > 0 && !t.done {
			s.ETA = s.PerVenueAvg * time.Duration(remaining)
		}
	}
	return s
}
