// Package browser owns the headless Chrome process and hands out isolated
// per-venue page sessions.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/venueminer/venueminer/internal/venue"
)

// Options configures the shared browser process.
type Options struct {
	UserAgent       string
	NavigateTimeout time.Duration
	MaxSessions     int
}

// Browser wraps a single headless Chrome process. Each venue task gets its
// own tab through NewSession; the process itself is shared and long-lived.
type Browser struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	log             *zap.Logger
	sem             chan struct{}
	opts            Options
}

// New launches headless Chrome and warms up the first target so that startup
// failures surface here instead of inside the first venue task.
func New(opts Options, log *zap.Logger) (*Browser, error) {
	if opts.MaxSessions <= 0 {
		return nil, errors.New("browser: MaxSessions must be positive")
	}

	allocOpts := chromedp.DefaultExecAllocatorOptions[:]
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(opts.UserAgent),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("browser warmup: %w", err)
	}

	return &Browser{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		log:             log,
		sem:             make(chan struct{}, opts.MaxSessions),
		opts:            opts,
	}, nil
}

// Close tears down the browser process. Sessions still open become unusable.
func (b *Browser) Close() error {
	if b == nil {
		return nil
	}
	b.browserCancel()
	b.allocatorCancel()
	return nil
}

// NewSession opens a fresh tab, blocking while all session slots are taken.
func (b *Browser) NewSession(ctx context.Context) (venue.Session, error) {
	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire session slot: %w", ctx.Err())
	}

	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	s := &session{
		tabCtx:     tabCtx,
		tabCancel:  tabCancel,
		release:    func() { <-b.sem },
		navTimeout: b.opts.NavigateTimeout,
		log:        b.log,
	}
	return s, nil
}

// session is one Chrome tab. Calls run chromedp actions against the tab's
// context while honoring the caller's context for cancellation.
type session struct {
	tabCtx     context.Context
	tabCancel  context.CancelFunc
	release    func()
	navTimeout time.Duration
	log        *zap.Logger
	closeOnce  sync.Once
}

func (s *session) Navigate(ctx context.Context, url string) error {
	nctx := ctx
	if s.navTimeout > 0 {
		var cancel context.CancelFunc
		nctx, cancel = context.WithTimeout(ctx, s.navTimeout)
		defer cancel()
	}
	err := s.run(nctx,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(nctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("navigate %s: %w", url, venue.ErrPageLoadTimeout)
		}
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (s *session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("snapshot dom: %w", err)
	}
	return html, nil
}

func (s *session) Click(ctx context.Context, selector string) error {
	if err := s.run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

func (s *session) ClickNth(ctx context.Context, selector string, n int) error {
	// chromedp.Click only targets the first match, so indexed clicks go
	// through the DOM directly.
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelectorAll(%q)[%d];
		if (!el) { throw new Error("no element at index"); }
		el.scrollIntoView({block: "center"});
		el.click();
	})()`, selector, n)
	if err := s.run(ctx, chromedp.Evaluate(expr, nil)); err != nil {
		return fmt.Errorf("click %q[%d]: %w", selector, n, err)
	}
	return nil
}

func (s *session) WaitVisible(ctx context.Context, selector string) error {
	if err := s.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait visible %q: %w", selector, err)
	}
	return nil
}

func (s *session) Count(ctx context.Context, selector string) (int, error) {
	var n int
	expr := fmt.Sprintf(`document.querySelectorAll(%q).length`, selector)
	if err := s.run(ctx, chromedp.Evaluate(expr, &n)); err != nil {
		return 0, fmt.Errorf("count %q: %w", selector, err)
	}
	return n, nil
}

func (s *session) TextNth(ctx context.Context, selector string, n int) (string, error) {
	var text string
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelectorAll(%q)[%d];
		return el ? el.innerText : "";
	})()`, selector, n)
	if err := s.run(ctx, chromedp.Evaluate(expr, &text)); err != nil {
		return "", fmt.Errorf("text %q[%d]: %w", selector, n, err)
	}
	return text, nil
}

func (s *session) ClickText(ctx context.Context, text string) (bool, error) {
	var clicked bool
	expr := fmt.Sprintf(`(() => {
		const want = %q.toLowerCase();
		const els = document.querySelectorAll('button, a, [role="button"]');
		for (const el of els) {
			if ((el.innerText || "").trim().toLowerCase().includes(want)) {
				el.scrollIntoView({block: "center"});
				el.click();
				return true;
			}
		}
		return false;
	})()`, text)
	if err := s.run(ctx, chromedp.Evaluate(expr, &clicked)); err != nil {
		return false, fmt.Errorf("click by text %q: %w", text, err)
	}
	return clicked, nil
}

func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.tabCancel()
		s.release()
	})
	return nil
}

// run executes chromedp actions on the tab while watching the caller's
// context: cancelling the call must not tear down the tab itself.
func (s *session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.tabCtx)
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}
