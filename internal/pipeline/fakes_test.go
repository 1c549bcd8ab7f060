package pipeline

import (
	"context"

	"github.com/venueminer/venueminer/internal/venue"
)

// fakeSession scripts browser behavior per method; unset hooks succeed with
// zero values.
type fakeSession struct {
	navigateFn    func(ctx context.Context, url string) error
	htmlFn        func(ctx context.Context) (string, error)
	clickFn       func(ctx context.Context, selector string) error
	clickNthFn    func(ctx context.Context, selector string, n int) error
	waitVisibleFn func(ctx context.Context, selector string) error
	countFn       func(ctx context.Context, selector string) (int, error)
	textNthFn     func(ctx context.Context, selector string, n int) (string, error)
	clickTextFn   func(ctx context.Context, text string) (bool, error)
	closed        bool
}

func (f *fakeSession) Navigate(ctx context.Context, url string) error {
	if f.navigateFn != nil {
		return f.navigateFn(ctx, url)
	}
	return nil
}

func (f *fakeSession) HTML(ctx context.Context) (string, error) {
	if f.htmlFn != nil {
		return f.htmlFn(ctx)
	}
	return "", nil
}

func (f *fakeSession) Click(ctx context.Context, selector string) error {
	if f.clickFn != nil {
		return f.clickFn(ctx, selector)
	}
	return nil
}

func (f *fakeSession) ClickNth(ctx context.Context, selector string, n int) error {
	if f.clickNthFn != nil {
		return f.clickNthFn(ctx, selector, n)
	}
	return nil
}

func (f *fakeSession) WaitVisible(ctx context.Context, selector string) error {
	if f.waitVisibleFn != nil {
		return f.waitVisibleFn(ctx, selector)
	}
	return nil
}

func (f *fakeSession) Count(ctx context.Context, selector string) (int, error) {
	if f.countFn != nil {
		return f.countFn(ctx, selector)
	}
	return 0, nil
}

func (f *fakeSession) TextNth(ctx context.Context, selector string, n int) (string, error) {
	if f.textNthFn != nil {
		return f.textNthFn(ctx, selector, n)
	}
	return "", nil
}

func (f *fakeSession) ClickText(ctx context.Context, text string) (bool, error) {
	if f.clickTextFn != nil {
		return f.clickTextFn(ctx, text)
	}
	return false, nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

// fakeFactory hands out sessions scripted per page URL.
type fakeFactory struct {
	build func(url string) *fakeSession
}

func (f *fakeFactory) NewSession(context.Context) (venue.Session, error) {
	s := &fakeSession{}
	inner := s
	s.navigateFn = func(ctx context.Context, url string) error {
		if f.build == nil {
			return nil
		}
		scripted := f.build(url)
		if scripted.navigateFn != nil {
			if err := scripted.navigateFn(ctx, url); err != nil {
				return err
			}
		}
		*inner = *scripted
		return nil
	}
	return s, nil
}

type fakeGeo struct {
	fn    func(ctx context.Context, name, address string) (venue.GeoResult, error)
	calls int
}

func (f *fakeGeo) Lookup(ctx context.Context, name, address string) (venue.GeoResult, error) {
	f.calls++
	if f.fn != nil {
		return f.fn(ctx, name, address)
	}
	return venue.GeoResult{}, nil
}

type fakeContent struct {
	fn    func(ctx context.Context, websiteURL string) (venue.ContentResult, error)
	calls int
	last  string
}

func (f *fakeContent) Lookup(ctx context.Context, websiteURL string) (venue.ContentResult, error) {
	f.calls++
	f.last = websiteURL
	if f.fn != nil {
		return f.fn(ctx, websiteURL)
	}
	return venue.ContentResult{}, nil
}

type fakeExtractor struct {
	fn func(ctx context.Context, s venue.Session, v venue.Venue) ([]venue.RoomRecord, error)
}

func (f *fakeExtractor) Extract(ctx context.Context, s venue.Session, v venue.Venue) ([]venue.RoomRecord, error) {
	if f.fn != nil {
		return f.fn(ctx, s, v)
	}
	return nil, nil
}
