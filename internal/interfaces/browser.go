package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/uitest/internal/models"
)

// ErrTimeout is wrapped by engine adapters when an operation exceeds its timeout
var ErrTimeout = errors.New("browser operation timed out")

// EngineFactory creates a browser automation engine instance.
// One engine is created per test case and disposed during teardown.
type EngineFactory func(ctx context.Context) (Engine, error)

// Engine is the root of a browser session: it owns the browser processes it launches
type Engine interface {
	// Name identifies the engine implementation (e.g. "chromedp", "playwright")
	Name() string

	// Launch starts a browser process
	Launch(ctx context.Context, opts models.LaunchOptions) (Browser, error)

	// Dispose releases the engine and anything it still owns
	Dispose() error
}

// Browser is a running browser process
type Browser interface {
	// NewContext creates an isolated context (own cookie and storage jar)
	NewContext(ctx context.Context, opts models.ContextOptions) (BrowserContext, error)

	// Close terminates the browser process
	Close(ctx context.Context) error
}

// BrowserContext is an isolated browsing session with its own trace recorder
type BrowserContext interface {
	// NewPage opens a tab in this context
	NewPage(ctx context.Context) (Page, error)

	// Tracing returns the context trace recorder
	Tracing() Tracing

	// Close disposes the context and all its pages
	Close(ctx context.Context) error
}

// Tracing records an execution trace for a browser context
type Tracing interface {
	// Start begins recording. Pages opened later are recorded too.
	Start(ctx context.Context, opts models.TraceStartOptions) error

	// Stop ends recording and flushes the trace archive to path
	Stop(ctx context.Context, path string) error
}

// Page is a single browser tab
type Page interface {
	// Goto navigates the page and waits for the requested load state
	Goto(ctx context.Context, url string, opts models.GotoOptions) error

	// WaitForLoadState blocks until the page reaches the given load state
	WaitForLoadState(ctx context.Context, state models.LoadState, timeout time.Duration) error

	// Locator returns a lazy handle for elements matching a CSS selector
	Locator(selector string) Locator

	// Screenshot captures the page as PNG
	Screenshot(ctx context.Context, opts models.ScreenshotOptions) ([]byte, error)

	// URL returns the current page URL
	URL(ctx context.Context) (string, error)

	// Close closes the tab
	Close(ctx context.Context) error
}

// Locator is a lazy element handle resolved on every action
type Locator interface {
	Selector() string
	WaitFor(ctx context.Context, opts models.WaitForOptions) error
	IsEnabled(ctx context.Context) (bool, error)
	Click(ctx context.Context) error
	Fill(ctx context.Context, text string) error
	TextContent(ctx context.Context) (string, error)
}
