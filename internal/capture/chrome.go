package capture

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"

	"github.com/joescharf/evidence/internal/tracker"
)

const screenshotQuality = 90

// ChromeLauncher starts Chrome or Chromium over the DevTools protocol.
type ChromeLauncher struct {
	Headless bool
	ExecPath string
}

func (l ChromeLauncher) Launch(ctx context.Context) (Browser, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.Flag("headless", l.Headless))
	if l.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	// An empty Run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return &chromeBrowser{ctx: browserCtx, cancel: func() {
		cancelBrowser()
		cancelAlloc()
	}}, nil
}

type chromeBrowser struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (b *chromeBrowser) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tabCtx, cancel := chromedp.NewContext(b.ctx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return &chromePage{ctx: tabCtx, cancel: cancel}, nil
}

func (b *chromeBrowser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	return err
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (p *chromePage) SetViewport(v Viewport) error {
	return chromedp.Run(p.ctx, chromedp.EmulateViewport(v.Width, v.Height))
}

func (p *chromePage) Navigate(url string) error {
	return chromedp.Run(p.ctx, chromedp.Navigate(url))
}

func (p *chromePage) LoginRequired(form LoginForm) (bool, error) {
	var found bool
	expr := fmt.Sprintf("document.querySelector(%q) !== null", form.UsernameSelector)
	if err := chromedp.Run(p.ctx, chromedp.Evaluate(expr, &found)); err != nil {
		return false, err
	}
	return found, nil
}

func (p *chromePage) Login(form LoginForm, creds tracker.Credentials) error {
	return chromedp.Run(p.ctx,
		chromedp.WaitVisible(form.UsernameSelector, chromedp.ByQuery),
		chromedp.SendKeys(form.UsernameSelector, creds.Username, chromedp.ByQuery),
		chromedp.SendKeys(form.PasswordSelector, creds.Password, chromedp.ByQuery),
		chromedp.Click(form.SubmitSelector, chromedp.ByQuery),
		chromedp.WaitNotPresent(form.UsernameSelector, chromedp.ByQuery),
	)
}

func (p *chromePage) ScrollTo(y int64) error {
	var scrolled float64
	expr := fmt.Sprintf("window.scrollTo(0, %d); window.scrollY", y)
	return chromedp.Run(p.ctx, chromedp.Evaluate(expr, &scrolled))
}

func (p *chromePage) Screenshot() ([]byte, error) {
	var buf []byte
	if err := chromedp.Run(p.ctx, chromedp.FullScreenshot(&buf, screenshotQuality)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *chromePage) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	return err
}
