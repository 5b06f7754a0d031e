package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/ternarybob/uitest/internal/interfaces"
	"github.com/ternarybob/uitest/internal/models"
)

type chromeDPPage struct {
	ctx       context.Context
	cancel    context.CancelFunc
	slowMo    time.Duration
	timeout   time.Duration
	lifecycle *lifecycleTracker

	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}
}

func newChromeDPPage(ctx context.Context, bc *chromeDPContext) (*chromeDPPage, error) {
	pageCtx, pageCancel := chromedp.NewContext(bc.browser.ctx, chromedp.WithExistingBrowserContext(bc.id))

	p := &chromeDPPage{
		ctx:       pageCtx,
		cancel:    pageCancel,
		slowMo:    bc.browser.slowMo,
		timeout:   bc.browser.timeout,
		lifecycle: newLifecycleTracker(),
		closed:    make(chan struct{}),
	}

	// The first Run attaches the target and its event loop lives on the Run
	// context, so it runs on pageCtx and ctx is honoured from outside.
	errc := make(chan error, 1)
	go func() {
		errc <- chromedp.Run(pageCtx, emulationActions(bc.opts)...)
	}()

	select {
	case err := <-errc:
		if err != nil {
			pageCancel()
			return nil, fmt.Errorf("failed to open page: %w", err)
		}
	case <-ctx.Done():
		pageCancel()
		return nil, fmt.Errorf("page creation cancelled: %w", ctx.Err())
	}

	var frameID cdp.FrameID
	if err := p.run(ctx, p.timeout, chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		frameID = tree.Frame.ID
		return nil
	})); err != nil {
		pageCancel()
		return nil, fmt.Errorf("failed to read frame tree: %w", err)
	}
	p.lifecycle.setMainFrame(frameID)

	chromedp.ListenTarget(pageCtx, func(ev interface{}) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok {
			p.lifecycle.observe(e.FrameID, e.LoaderID, e.Name)
		}
	})

	return p, nil
}

// emulationActions applies viewport and device overrides to a new target
func emulationActions(opts models.ContextOptions) []chromedp.Action {
	viewport := opts.Viewport
	scale := 1.0
	mobile := false
	if opts.Device != nil {
		viewport = opts.Device.Viewport
		if opts.Device.DeviceScaleFactor > 0 {
			scale = opts.Device.DeviceScaleFactor
		}
		mobile = opts.Device.IsMobile
	}

	var actions []chromedp.Action
	if viewport.Width > 0 && viewport.Height > 0 {
		actions = append(actions,
			emulation.SetDeviceMetricsOverride(int64(viewport.Width), int64(viewport.Height), scale, mobile))
	}
	if opts.Device != nil {
		if opts.Device.UserAgent != "" {
			actions = append(actions, emulation.SetUserAgentOverride(opts.Device.UserAgent))
		}
		if opts.Device.HasTouch {
			actions = append(actions, emulation.SetTouchEmulationEnabled(true))
		}
	}
	return actions
}

// scope derives a context from the page for one operation. It is cancelled
// when ctx is cancelled or the timeout elapses.
func (p *chromeDPPage) scope(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(p.ctx)
	if timeout > 0 {
		var timeoutCancel context.CancelFunc
		runCtx, timeoutCancel = context.WithTimeout(runCtx, timeout)
		parentCancel := cancel
		cancel = func() {
			timeoutCancel()
			parentCancel()
		}
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// translate maps context errors to timeout errors where the deadline, not
// the caller, ended the operation.
func (p *chromeDPPage) translate(ctx context.Context, runCtx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", interfaces.ErrTimeout, err)
		}
		return ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", interfaces.ErrTimeout, err)
	}
	return err
}

func (p *chromeDPPage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := p.scope(ctx, timeout)
	defer cancel()
	return p.translate(ctx, runCtx, chromedp.Run(runCtx, actions...))
}

// pace sleeps for the slow-motion delay before an interaction
func (p *chromeDPPage) pace(ctx context.Context) error {
	if p.slowMo <= 0 {
		return nil
	}
	t := time.NewTimer(p.slowMo)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *chromeDPPage) Goto(ctx context.Context, url string, opts models.GotoOptions) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = p.timeout
	}
	runCtx, cancel := p.scope(ctx, timeout)
	defer cancel()

	previous := p.lifecycle.loader()

	// Navigate returns once the load event fired
	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return p.translate(ctx, runCtx, fmt.Errorf("navigation to %s failed: %w", url, err))
	}

	if opts.WaitUntil != models.LoadStateNetworkIdle {
		return nil
	}

	// Same-document navigations never start a new loader
	if p.lifecycle.loader() == previous {
		return nil
	}
	return p.translate(ctx, runCtx, p.lifecycle.wait(runCtx, lifecycleEventName(models.LoadStateNetworkIdle)))
}

func (p *chromeDPPage) WaitForLoadState(ctx context.Context, state models.LoadState, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = p.timeout
	}
	runCtx, cancel := p.scope(ctx, timeout)
	defer cancel()
	return p.translate(ctx, runCtx, p.lifecycle.wait(runCtx, lifecycleEventName(state)))
}

func (p *chromeDPPage) Locator(selector string) interfaces.Locator {
	return &chromeDPLocator{page: p, selector: selector}
}

func (p *chromeDPPage) Screenshot(ctx context.Context, opts models.ScreenshotOptions) ([]byte, error) {
	var buf []byte
	var action chromedp.Action
	if opts.FullPage {
		// quality 100 selects PNG encoding
		action = chromedp.FullScreenshot(&buf, 100)
	} else {
		action = chromedp.CaptureScreenshot(&buf)
	}
	if err := p.run(ctx, p.timeout, action); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}

	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create screenshot directory: %w", err)
		}
		if err := os.WriteFile(opts.Path, buf, 0644); err != nil {
			return nil, fmt.Errorf("failed to write screenshot: %w", err)
		}
	}
	return buf, nil
}

func (p *chromeDPPage) URL(ctx context.Context) (string, error) {
	var location string
	if err := p.run(ctx, p.timeout, chromedp.Location(&location)); err != nil {
		return "", err
	}
	return location, nil
}

// outerHTML returns the serialized document
func (p *chromeDPPage) outerHTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, p.timeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (p *chromeDPPage) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

func (p *chromeDPPage) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		defer close(p.closed)

		done := make(chan error, 1)
		go func() {
			done <- chromedp.Cancel(p.ctx)
		}()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				p.closeErr = fmt.Errorf("failed to close page: %w", err)
			}
		case <-ctx.Done():
			p.closeErr = fmt.Errorf("page close interrupted: %w", ctx.Err())
		}
		p.cancel()
	})
	return p.closeErr
}

type chromeDPLocator struct {
	page     *chromeDPPage
	selector string
}

func (l *chromeDPLocator) Selector() string {
	return l.selector
}

func (l *chromeDPLocator) WaitFor(ctx context.Context, opts models.WaitForOptions) error {
	var action chromedp.Action
	switch opts.State {
	case models.ElementAttached:
		action = chromedp.WaitReady(l.selector, chromedp.ByQuery)
	case models.ElementHidden:
		action = chromedp.WaitNotVisible(l.selector, chromedp.ByQuery)
	default:
		action = chromedp.WaitVisible(l.selector, chromedp.ByQuery)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = l.page.timeout
	}
	return l.page.run(ctx, timeout, action)
}

func (l *chromeDPLocator) IsEnabled(ctx context.Context) (bool, error) {
	var value string
	var disabled bool
	if err := l.page.run(ctx, l.page.timeout,
		chromedp.AttributeValue(l.selector, "disabled", &value, &disabled, chromedp.ByQuery)); err != nil {
		return false, err
	}
	return !disabled, nil
}

func (l *chromeDPLocator) Click(ctx context.Context) error {
	if err := l.page.pace(ctx); err != nil {
		return err
	}
	return l.page.run(ctx, l.page.timeout, chromedp.Click(l.selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (l *chromeDPLocator) Fill(ctx context.Context, text string) error {
	if err := l.page.pace(ctx); err != nil {
		return err
	}
	return l.page.run(ctx, l.page.timeout,
		chromedp.Clear(l.selector, chromedp.ByQuery),
		chromedp.SendKeys(l.selector, text, chromedp.ByQuery),
	)
}

func (l *chromeDPLocator) TextContent(ctx context.Context) (string, error) {
	var text string
	if err := l.page.run(ctx, l.page.timeout, chromedp.TextContent(l.selector, &text, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return text, nil
}
