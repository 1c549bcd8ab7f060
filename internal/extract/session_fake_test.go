package extract

import "context"

// fakeSession scripts browser behavior per method. Unset hooks succeed with
// zero values so each test only scripts what it asserts on.
type fakeSession struct {
	navigateFn    func(ctx context.Context, url string) error
	htmlFn        func(ctx context.Context) (string, error)
	clickFn       func(ctx context.Context, selector string) error
	clickNthFn    func(ctx context.Context, selector string, n int) error
	waitVisibleFn func(ctx context.Context, selector string) error
	countFn       func(ctx context.Context, selector string) (int, error)
	textNthFn     func(ctx context.Context, selector string, n int) (string, error)
	clickTextFn   func(ctx context.Context, text string) (bool, error)
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

func (f *fakeSession) Close() error { return nil }
