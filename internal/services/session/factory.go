package session

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/uitest/internal/common"
	"github.com/ternarybob/uitest/internal/interfaces"
	"github.com/ternarybob/uitest/internal/models"
)

// launchTimeout is the fixed browser launch timeout
const launchTimeout = 30 * time.Second

// Step identifies the allocation step that failed during setup
type Step string

const (
	StepCreateEngine  Step = "create engine"
	StepLaunchBrowser Step = "launch browser"
	StepCreateContext Step = "create context"
	StepStartTracing  Step = "start tracing"
	StepOpenPage      Step = "open page"
)

// SetupError is a harness-setup failure. It aborts the test case before
// the body runs.
type SetupError struct {
	Step Step
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("session setup failed at %s: %v", e.Step, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// Factory builds one Session per test case
type Factory struct {
	config  common.Config
	engines interfaces.EngineFactory
	logger  arbor.ILogger
}

// NewFactory creates a session factory. config is copied.
func NewFactory(config common.Config, engines interfaces.EngineFactory, logger arbor.ILogger) *Factory {
	return &Factory{
		config:  config,
		engines: engines,
		logger:  logger,
	}
}

// Create allocates Engine, Browser, Context and Page in that order. The
// first failing step aborts the chain; whatever was already acquired is
// released before the *SetupError is returned. There are no retries.
func (f *Factory) Create(ctx context.Context, testName string) (*Session, error) {
	id := common.NewSessionID()
	logger := f.logger.WithCorrelationId(id)
	s := newSession(id, testName, logger)

	fail := func(step Step, err error) (*Session, error) {
		logger.Error().
			Err(err).
			Str("step", string(step)).
			Str("test", testName).
			Msg("Session setup failed")
		if releaseErr := s.Release(ctx); releaseErr != nil {
			logger.Warn().Err(releaseErr).Msg("Partial session release reported errors")
		}
		return nil, &SetupError{Step: step, Err: err}
	}

	logger.Info().
		Str("test", testName).
		Str("browser_type", f.config.BrowserType).
		Msg("Creating browser session")

	// 1. Engine
	engine, err := f.engines(ctx)
	if err != nil {
		return fail(StepCreateEngine, err)
	}
	s.engine = engine
	s.hold(ResourceEngine, func(context.Context) error { return engine.Dispose() })
	logger.Debug().Str("engine", engine.Name()).Msg("Engine created")

	// 2. Browser
	launch := f.config.LaunchOptions()
	launch.Timeout = launchTimeout
	browser, err := engine.Launch(ctx, launch)
	if err != nil {
		return fail(StepLaunchBrowser, err)
	}
	s.browser = browser
	s.hold(ResourceBrowser, browser.Close)
	logger.Debug().
		Bool("headless", launch.Headless).
		Dur("slow_mo", launch.SlowMo).
		Msg("Browser launched")

	// 3. Context, with tracing armed before any page exists
	contextOpts, err := f.config.ContextOptions()
	if err != nil {
		return fail(StepCreateContext, err)
	}
	bctx, err := browser.NewContext(ctx, contextOpts)
	if err != nil {
		return fail(StepCreateContext, err)
	}
	s.context = bctx
	s.hold(ResourceContext, bctx.Close)
	logger.Debug().
		Int("viewport_width", contextOpts.Viewport.Width).
		Int("viewport_height", contextOpts.Viewport.Height).
		Str("device", deviceName(contextOpts.Device)).
		Msg("Browser context created")

	if f.config.CaptureTraceOnFailure {
		err := bctx.Tracing().Start(ctx, models.TraceStartOptions{
			Name:        testName,
			Screenshots: true,
			Snapshots:   true,
		})
		if err != nil {
			return fail(StepStartTracing, err)
		}
		s.tracing = true
		logger.Debug().Msg("Tracing started")
	}

	// 4. Page
	page, err := bctx.NewPage(ctx)
	if err != nil {
		return fail(StepOpenPage, err)
	}
	s.page = page
	s.hold(ResourcePage, page.Close)
	logger.Debug().Msg("Page opened")

	return s, nil
}

func deviceName(d *models.DeviceProfile) string {
	if d == nil {
		return ""
	}
	return d.Name
}
