package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/uitest/internal/interfaces"
	"github.com/ternarybob/uitest/internal/models"
)

// ChromeDPConfig holds chromedp engine settings
type ChromeDPConfig struct {
	BrowserType string
	ExecPath    string // empty uses chromedp's executable discovery
	NoSandbox   bool
	Timeout     time.Duration // default per-action timeout for pages
}

// ChromeDPEngine drives Chromium-family browsers over the DevTools protocol.
// Each engine owns one exec allocator.
type ChromeDPEngine struct {
	config ChromeDPConfig
	logger arbor.ILogger

	mu          sync.Mutex
	allocCancel context.CancelFunc
	disposed    bool
}

// NewChromeDPEngine creates a chromedp engine. No process is started until Launch.
func NewChromeDPEngine(config ChromeDPConfig, logger arbor.ILogger) *ChromeDPEngine {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &ChromeDPEngine{
		config: config,
		logger: logger,
	}
}

// Name returns the engine name
func (e *ChromeDPEngine) Name() string {
	return EngineChromeDP
}

// Launch starts a browser process and waits until it accepts commands
func (e *ChromeDPEngine) Launch(ctx context.Context, opts models.LaunchOptions) (interfaces.Browser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return nil, fmt.Errorf("chromedp engine already disposed")
	}

	startTime := time.Now()

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("no-sandbox", e.config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-timer-throttling", false),
		chromedp.Flag("disable-backgrounding-occluded-windows", false),
		chromedp.Flag("disable-renderer-backgrounding", false),
	)
	if e.config.ExecPath != "" {
		allocatorOpts = append(allocatorOpts, chromedp.ExecPath(e.config.ExecPath))
	}

	// The allocator outlives the Launch call, so it must not inherit ctx
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	e.allocCancel = allocatorCancel

	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	// The first Run owns the browser process, so it runs on browserCtx itself
	// and the launch timeout is enforced from outside.
	errc := make(chan error, 1)
	go func() {
		errc <- chromedp.Run(browserCtx)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-errc:
		if err != nil {
			browserCancel()
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
	case <-timer.C:
		browserCancel()
		return nil, fmt.Errorf("%w: browser did not start within %s", interfaces.ErrTimeout, timeout)
	case <-ctx.Done():
		browserCancel()
		return nil, fmt.Errorf("browser launch cancelled: %w", ctx.Err())
	}

	e.logger.Debug().
		Str("browser_type", e.config.BrowserType).
		Bool("headless", opts.Headless).
		Dur("startup_time", time.Since(startTime)).
		Msg("Browser instance started")

	return &chromeDPBrowser{
		ctx:     browserCtx,
		cancel:  browserCancel,
		slowMo:  opts.SlowMo,
		timeout: e.config.Timeout,
		logger:  e.logger,
	}, nil
}

// Dispose cancels the allocator, killing any browser process still running
func (e *ChromeDPEngine) Dispose() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return nil
	}
	e.disposed = true

	if e.allocCancel != nil {
		e.allocCancel()
		e.logger.Debug().Msg("Browser allocator cancelled")
	}
	return nil
}

type chromeDPBrowser struct {
	ctx     context.Context
	cancel  context.CancelFunc
	slowMo  time.Duration
	timeout time.Duration
	logger  arbor.ILogger

	closeOnce sync.Once
	closeErr  error
}

// executor binds ctx to the browser-level CDP session
func (b *chromeDPBrowser) executor(ctx context.Context) context.Context {
	return cdp.WithExecutor(ctx, chromedp.FromContext(b.ctx).Browser)
}

func (b *chromeDPBrowser) NewContext(ctx context.Context, opts models.ContextOptions) (interfaces.BrowserContext, error) {
	if b.ctx.Err() != nil {
		return nil, fmt.Errorf("browser is closed")
	}

	id, err := target.CreateBrowserContext().Do(b.executor(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	b.logger.Debug().
		Str("browser_context_id", string(id)).
		Msg("Browser context created")

	bc := &chromeDPContext{
		browser: b,
		id:      id,
		opts:    opts,
		logger:  b.logger,
	}
	bc.tracing = newTraceRecorder(bc)
	return bc, nil
}

func (b *chromeDPBrowser) Close(ctx context.Context) error {
	b.closeOnce.Do(func() {
		done := make(chan error, 1)
		go func() {
			done <- chromedp.Cancel(b.ctx)
		}()

		select {
		case err := <-done:
			if err != nil {
				b.closeErr = fmt.Errorf("failed to close browser: %w", err)
			}
		case <-ctx.Done():
			b.closeErr = fmt.Errorf("browser close interrupted: %w", ctx.Err())
		}
		b.cancel()
	})
	return b.closeErr
}

type chromeDPContext struct {
	browser *chromeDPBrowser
	id      cdp.BrowserContextID
	opts    models.ContextOptions
	tracing *traceRecorder
	logger  arbor.ILogger

	mu     sync.Mutex
	pages  []*chromeDPPage
	closed bool
}

func (c *chromeDPContext) NewPage(ctx context.Context) (interfaces.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("browser context is closed")
	}

	p, err := newChromeDPPage(ctx, c)
	if err != nil {
		return nil, err
	}
	c.pages = append(c.pages, p)
	return p, nil
}

func (c *chromeDPContext) Tracing() interfaces.Tracing {
	return c.tracing
}

// lastPage returns the most recently opened page that is still open
func (c *chromeDPContext) lastPage() *chromeDPPage {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.pages) - 1; i >= 0; i-- {
		if !c.pages[i].isClosed() {
			return c.pages[i]
		}
	}
	return nil
}

func (c *chromeDPContext) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pages := c.pages
	c.mu.Unlock()

	c.tracing.abort()

	for _, p := range pages {
		_ = p.Close(ctx)
	}

	if err := target.DisposeBrowserContext(c.id).Do(c.browser.executor(ctx)); err != nil {
		return fmt.Errorf("failed to dispose browser context: %w", err)
	}

	c.logger.Debug().
		Str("browser_context_id", string(c.id)).
		Msg("Browser context disposed")
	return nil
}
