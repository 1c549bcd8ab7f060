package venue

import "context"

// Session is an exclusively owned browser page for one venue. It is never
// shared across venues and never reused after the venue task ends.
type Session interface {
	// Navigate loads the URL and returns once the document is interactive.
	Navigate(ctx context.Context, url string) error
	// HTML returns a snapshot of the current rendered DOM.
	HTML(ctx context.Context) (string, error)
	// Click activates the first visible element matching the selector.
	Click(ctx context.Context, selector string) error
	// ClickNth activates the nth (0-based) element matching the selector.
	ClickNth(ctx context.Context, selector string, n int) error
	// WaitVisible blocks until an element matching the selector is
	// rendered, or ctx ends.
	WaitVisible(ctx context.Context, selector string) error
	// Count returns how many elements match the selector.
	Count(ctx context.Context, selector string) (int, error)
	// TextNth returns the visible text of the nth element matching the
	// selector.
	TextNth(ctx context.Context, selector string, n int) (string, error)
	// ClickText activates the first clickable element whose visible text
	// contains the given fragment, case-insensitively. It reports whether
	// such an element existed.
	ClickText(ctx context.Context, text string) (bool, error)
	// Close releases the underlying page. Safe to call more than once.
	Close() error
}

// SessionFactory opens fresh browser sessions, one per venue task.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}

// GeoEnricher looks up place metadata for a (name, address) pair.
type GeoEnricher interface {
	Lookup(ctx context.Context, name, address string) (GeoResult, error)
}

// ContentEnricher extracts structured data from a venue's website.
type ContentEnricher interface {
	Lookup(ctx context.Context, websiteURL string) (ContentResult, error)
}

// ResultStore persists finalized results. Implementations must not be on
// the pipeline's critical path; the scheduler hands results to an async
// sink and never blocks on storage latency.
type ResultStore interface {
	SaveResults(ctx context.Context, results []Result) error
}
