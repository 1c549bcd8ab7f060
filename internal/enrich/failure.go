// Package enrich implements the external lookups that augment extracted
// venues: place metadata from a geo search API and structured facts from the
// venue's own website. Both clients are rate limited, retried on transient
// failures, and backed by a cache so batch re-runs do not repeat upstream
// calls.
package enrich

import (
	"errors"
	"fmt"
)

// Kind classifies an enrichment failure for retry decisions and reporting.
type Kind string

const (
	// KindRateLimited marks upstream throttling (HTTP 429). Retryable.
	KindRateLimited Kind = "rate_limited"
	// KindUnavailable marks transient upstream trouble: 5xx responses,
	// network timeouts, connection resets. Retryable.
	KindUnavailable Kind = "unavailable"
	// KindMalformed marks responses the client could not interpret.
	// Retrying would replay the same payload, so it is terminal.
	KindMalformed Kind = "malformed"
	// KindRejected marks terminal upstream refusals such as auth failures.
	KindRejected Kind = "rejected"
)

// Failure is an enrichment error with a classification.
type Failure struct {
	Kind Kind
	Op   string
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Op, f.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", f.Op, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Retryable reports whether a fresh attempt could plausibly succeed.
func (f *Failure) Retryable() bool {
	return f.Kind == KindRateLimited || f.Kind == KindUnavailable
}

func newFailure(kind Kind, op string, err error) *Failure {
	return &Failure{Kind: kind, Op: op, Err: err}
}

// IsRetryable reports whether err is a retryable enrichment failure.
func IsRetryable(err error) bool {
	var f *Failure
	if errors.As(err, &f) {
		return f.Retryable()
	}
	return false
}
