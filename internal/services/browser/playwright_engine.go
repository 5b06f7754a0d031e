package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/uitest/internal/interfaces"
	"github.com/ternarybob/uitest/internal/models"
)

// PlaywrightConfig holds playwright engine settings
type PlaywrightConfig struct {
	BrowserType string // chromium, chrome, msedge, firefox or webkit
	Timeout     time.Duration
}

// PlaywrightEngine drives browsers through the playwright driver process.
// The driver is started by Start and stopped by Dispose.
type PlaywrightEngine struct {
	config PlaywrightConfig
	logger arbor.ILogger

	mu       sync.Mutex
	pw       *playwright.Playwright
	disposed bool
}

// NewPlaywrightEngine creates a playwright engine
func NewPlaywrightEngine(config PlaywrightConfig, logger arbor.ILogger) *PlaywrightEngine {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &PlaywrightEngine{config: config, logger: logger}
}

func (e *PlaywrightEngine) Name() string {
	return EnginePlaywright
}

// runDriver starts the playwright driver process
var runDriver = func() (*playwright.Playwright, error) {
	return playwright.Run()
}

// Start runs the driver process. The engine factory calls it, so a missing
// or broken driver fails engine creation rather than the browser launch.
func (e *PlaywrightEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return fmt.Errorf("playwright engine already disposed")
	}
	if e.pw != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	pw, err := runDriver()
	if err != nil {
		return fmt.Errorf("failed to start playwright driver: %w", err)
	}
	e.pw = pw
	e.logger.Debug().Str("browser", e.config.BrowserType).Msg("Playwright driver started")
	return nil
}

func (e *PlaywrightEngine) Launch(ctx context.Context, opts models.LaunchOptions) (interfaces.Browser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return nil, fmt.Errorf("playwright engine already disposed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if e.pw == nil {
		return nil, fmt.Errorf("playwright driver not started")
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		SlowMo:   playwright.Float(float64(opts.SlowMo.Milliseconds())),
		Timeout:  playwright.Float(millis(ctx, opts.Timeout)),
	}

	var browserType playwright.BrowserType
	switch e.config.BrowserType {
	case "firefox":
		browserType = e.pw.Firefox
	case "webkit":
		browserType = e.pw.WebKit
	case "chrome", "msedge":
		browserType = e.pw.Chromium
		launchOpts.Channel = playwright.String(e.config.BrowserType)
	default:
		browserType = e.pw.Chromium
	}

	startTime := time.Now()
	b, err := browserType.Launch(launchOpts)
	if err != nil {
		return nil, translatePlaywright(fmt.Errorf("failed to launch %s: %w", e.config.BrowserType, err))
	}

	e.logger.Debug().
		Str("browser_type", e.config.BrowserType).
		Str("version", b.Version()).
		Bool("headless", opts.Headless).
		Dur("startup_time", time.Since(startTime)).
		Msg("Browser instance started")

	return &playwrightBrowser{browser: b, timeout: e.config.Timeout, logger: e.logger}, nil
}

func (e *PlaywrightEngine) Dispose() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return nil
	}
	e.disposed = true

	if e.pw == nil {
		return nil
	}
	if err := e.pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright driver: %w", err)
	}
	return nil
}

// millis converts a timeout to playwright milliseconds, capped by the
// deadline of ctx. Zero means no timeout in playwright.
func millis(ctx context.Context, timeout time.Duration) float64 {
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			remaining = time.Millisecond
		}
		if timeout <= 0 || remaining < timeout {
			timeout = remaining
		}
	}
	return float64(timeout.Milliseconds())
}

// translatePlaywright wraps playwright timeouts with interfaces.ErrTimeout
func translatePlaywright(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %v", interfaces.ErrTimeout, err)
	}
	return err
}

type playwrightBrowser struct {
	browser playwright.Browser
	timeout time.Duration
	logger  arbor.ILogger
}

func (b *playwrightBrowser) NewContext(ctx context.Context, opts models.ContextOptions) (interfaces.BrowserContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	contextOpts := playwright.BrowserNewContextOptions{}
	if opts.Viewport.Width > 0 && opts.Viewport.Height > 0 {
		contextOpts.Viewport = &playwright.Size{Width: opts.Viewport.Width, Height: opts.Viewport.Height}
	}
	if d := opts.Device; d != nil {
		contextOpts.Viewport = &playwright.Size{Width: d.Viewport.Width, Height: d.Viewport.Height}
		if d.UserAgent != "" {
			contextOpts.UserAgent = playwright.String(d.UserAgent)
		}
		if d.DeviceScaleFactor > 0 {
			contextOpts.DeviceScaleFactor = playwright.Float(d.DeviceScaleFactor)
		}
		contextOpts.IsMobile = playwright.Bool(d.IsMobile)
		contextOpts.HasTouch = playwright.Bool(d.HasTouch)
	}

	bc, err := b.browser.NewContext(contextOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	bc.SetDefaultTimeout(float64(b.timeout.Milliseconds()))

	return &playwrightContext{context: bc, timeout: b.timeout}, nil
}

func (b *playwrightBrowser) Close(ctx context.Context) error {
	if err := b.browser.Close(); err != nil {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	return nil
}

type playwrightContext struct {
	context playwright.BrowserContext
	timeout time.Duration
}

func (c *playwrightContext) NewPage(ctx context.Context) (interfaces.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := c.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return &playwrightPage{page: p, timeout: c.timeout}, nil
}

func (c *playwrightContext) Tracing() interfaces.Tracing {
	return &playwrightTracing{tracing: c.context.Tracing()}
}

func (c *playwrightContext) Close(ctx context.Context) error {
	if err := c.context.Close(); err != nil {
		return fmt.Errorf("failed to close browser context: %w", err)
	}
	return nil
}

type playwrightTracing struct {
	tracing playwright.Tracing
}

func (t *playwrightTracing) Start(ctx context.Context, opts models.TraceStartOptions) error {
	startOpts := playwright.TracingStartOptions{
		Screenshots: playwright.Bool(opts.Screenshots),
		Snapshots:   playwright.Bool(opts.Snapshots),
	}
	if opts.Name != "" {
		startOpts.Name = playwright.String(opts.Name)
	}
	if err := t.tracing.Start(startOpts); err != nil {
		return fmt.Errorf("failed to start tracing: %w", err)
	}
	return nil
}

func (t *playwrightTracing) Stop(ctx context.Context, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create trace directory: %w", err)
	}
	if err := t.tracing.Stop(path); err != nil {
		return fmt.Errorf("failed to stop tracing: %w", err)
	}
	return nil
}

type playwrightPage struct {
	page    playwright.Page
	timeout time.Duration
}

func (p *playwrightPage) Goto(ctx context.Context, url string, opts models.GotoOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = p.timeout
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(millis(ctx, timeout)),
		WaitUntil: waitUntilState(opts.WaitUntil),
	})
	if err != nil {
		return translatePlaywright(fmt.Errorf("navigation to %s failed: %w", url, err))
	}
	return nil
}

func waitUntilState(state models.LoadState) *playwright.WaitUntilState {
	switch state {
	case models.LoadStateDOMContentLoaded:
		return playwright.WaitUntilStateDomcontentloaded
	case models.LoadStateNetworkIdle:
		return playwright.WaitUntilStateNetworkidle
	default:
		return playwright.WaitUntilStateLoad
	}
}

func (p *playwrightPage) WaitForLoadState(ctx context.Context, state models.LoadState, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = p.timeout
	}

	var loadState *playwright.LoadState
	switch state {
	case models.LoadStateDOMContentLoaded:
		loadState = playwright.LoadStateDomcontentloaded
	case models.LoadStateNetworkIdle:
		loadState = playwright.LoadStateNetworkidle
	default:
		loadState = playwright.LoadStateLoad
	}

	return translatePlaywright(p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   loadState,
		Timeout: playwright.Float(millis(ctx, timeout)),
	}))
}

func (p *playwrightPage) Locator(selector string) interfaces.Locator {
	return &playwrightLocator{locator: p.page.Locator(selector), selector: selector, timeout: p.timeout}
}

func (p *playwrightPage) Screenshot(ctx context.Context, opts models.ScreenshotOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	shotOpts := playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(opts.FullPage),
		Type:     playwright.ScreenshotTypePng,
	}
	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create screenshot directory: %w", err)
		}
		shotOpts.Path = playwright.String(opts.Path)
	}
	data, err := p.page.Screenshot(shotOpts)
	if err != nil {
		return nil, translatePlaywright(fmt.Errorf("failed to capture screenshot: %w", err))
	}
	return data, nil
}

func (p *playwrightPage) URL(ctx context.Context) (string, error) {
	return p.page.URL(), nil
}

func (p *playwrightPage) Close(ctx context.Context) error {
	if p.page.IsClosed() {
		return nil
	}
	if err := p.page.Close(); err != nil {
		return fmt.Errorf("failed to close page: %w", err)
	}
	return nil
}

type playwrightLocator struct {
	locator  playwright.Locator
	selector string
	timeout  time.Duration
}

func (l *playwrightLocator) Selector() string {
	return l.selector
}

func (l *playwrightLocator) WaitFor(ctx context.Context, opts models.WaitForOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = l.timeout
	}

	state := playwright.WaitForSelectorStateVisible
	switch opts.State {
	case models.ElementAttached:
		state = playwright.WaitForSelectorStateAttached
	case models.ElementHidden:
		state = playwright.WaitForSelectorStateHidden
	}

	return translatePlaywright(l.locator.WaitFor(playwright.LocatorWaitForOptions{
		State:   state,
		Timeout: playwright.Float(millis(ctx, timeout)),
	}))
}

func (l *playwrightLocator) IsEnabled(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	enabled, err := l.locator.IsEnabled(playwright.LocatorIsEnabledOptions{
		Timeout: playwright.Float(millis(ctx, l.timeout)),
	})
	return enabled, translatePlaywright(err)
}

func (l *playwrightLocator) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return translatePlaywright(l.locator.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(millis(ctx, l.timeout)),
	}))
}

func (l *playwrightLocator) Fill(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return translatePlaywright(l.locator.Fill(text, playwright.LocatorFillOptions{
		Timeout: playwright.Float(millis(ctx, l.timeout)),
	}))
}

func (l *playwrightLocator) TextContent(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := l.locator.TextContent(playwright.LocatorTextContentOptions{
		Timeout: playwright.Float(millis(ctx, l.timeout)),
	})
	return text, translatePlaywright(err)
}
