// Package progress provides the event primitives, non-blocking hub, and
// aggregation that the pipeline uses to report batch progress. Events are
// batched on a background goroutine and fanned out to pluggable sinks: the
// snapshot tracker, structured logs, Prometheus metrics.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/venueminer/venueminer/internal/venue"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported progress stages.
const (
	StageRunStart   Stage = "RUN_START"
	StageRunDone    Stage = "RUN_DONE"
	StageVenueStart Stage = "VENUE_START"
	StageVenueDone  Stage = "VENUE_DONE"
	StageVenueError Stage = "VENUE_ERROR"
)

// Outcome is the coarse result of one finished venue.
type Outcome string

// Venue outcomes tracked on completion events.
const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
)

// Event captures a single milestone of batch progress.
type Event struct {
	// RunID identifies the batch run the event belongs to.
	RunID uuid.UUID
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// VenueID scopes venue events; empty on run-level events.
	VenueID string
	// VenueName is carried for logs and dashboards.
	VenueName string
	// Variant is the detected layout, set on completion events.
	Variant venue.Variant
	// Rooms is the number of rooms extracted, set on completion events.
	Rooms int
	// Outcome classifies a completed venue.
	Outcome Outcome
	// Dur is the wall time the venue task took.
	Dur time.Duration
	// Note carries low-volume context such as failure reasons.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == uuid.Nil {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone:
	case StageVenueStart:
		if e.VenueID == "" {
			return errors.New("venue start requires venue id")
		}
	case StageVenueDone:
		if e.VenueID == "" {
			return errors.New("venue done requires venue id")
		}
		if e.Outcome == "" {
			return errors.New("venue done requires outcome")
		}
	case StageVenueError:
		if e.VenueID == "" {
			return errors.New("venue error requires venue id")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// ClassifyResult maps a finished venue result to its outcome.
func ClassifyResult(r venue.Result) Outcome {
	switch {
	case r.Succeeded():
		return OutcomeSuccess
	case r.PartiallySucceeded():
		return OutcomePartial
	default:
		return OutcomeFailed
	}
}
