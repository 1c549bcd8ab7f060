package venue

import "errors"

// Failure classes scoped to a single venue or smaller. None of these ever
// abort sibling venues or the run.
var (
	// ErrInterfaceUnrecognized means neither layout signature matched a
	// settled page. The venue keeps an empty room list and still gets
	// enriched.
	ErrInterfaceUnrecognized = errors.New("interface unrecognized")

	// ErrPageLoadTimeout means the page never became interactive within
	// the load budget. Fatal for the venue only.
	ErrPageLoadTimeout = errors.New("page load timeout")

	// ErrVenueDeadlineExceeded means the overall per-venue deadline
	// expired; the browser session is torn down and the venue recorded
	// as failed.
	ErrVenueDeadlineExceeded = errors.New("venue deadline exceeded")

	// ErrBatchSchema rejects a whole input batch before scheduling.
	ErrBatchSchema = errors.New("batch schema invalid")
)
