package lifecycle

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/uitest/internal/common"
	"github.com/ternarybob/uitest/internal/interfaces"
	"github.com/ternarybob/uitest/internal/models"
	"github.com/ternarybob/uitest/internal/services/browser"
	"github.com/ternarybob/uitest/internal/services/evidence"
	"github.com/ternarybob/uitest/internal/services/interaction"
	"github.com/ternarybob/uitest/internal/services/navigation"
	"github.com/ternarybob/uitest/internal/services/session"
)

// PageProvider is all the page and step layers need from a running test.
type PageProvider interface {
	Page() interfaces.Page
	Config() common.Config
}

// Orchestrator runs the per-test lifecycle: one fresh browser session at
// Setup, evidence on failure and ordered release at Teardown.
// It is safe for concurrent use; every test case gets its own session.
type Orchestrator struct {
	config   common.Config
	engines  interfaces.EngineFactory
	sink     interfaces.ReportSink
	capturer *evidence.Capturer
	logger   arbor.ILogger
	now      func() time.Time
	navOpts  []navigation.NavigatorOption
	interOpt []interaction.Option
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithEngineFactory replaces the engine selected by config.Engine.
func WithEngineFactory(engines interfaces.EngineFactory) Option {
	return func(o *Orchestrator) { o.engines = engines }
}

// WithReportSink sets where evidence and outcomes are reported.
func WithReportSink(sink interfaces.ReportSink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

// WithCapturer replaces the evidence capturer built from config.
func WithCapturer(capturer *evidence.Capturer) Option {
	return func(o *Orchestrator) { o.capturer = capturer }
}

// WithLogger sets the logger. Defaults to common.GetLogger().
func WithLogger(logger arbor.ILogger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithClock replaces the clock used for durations and artifact names.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithNavigatorOptions is applied to every test case's Navigator.
func WithNavigatorOptions(opts ...navigation.NavigatorOption) Option {
	return func(o *Orchestrator) { o.navOpts = append(o.navOpts, opts...) }
}

// WithInteractorOptions is applied to every test case's Interactor.
func WithInteractorOptions(opts ...interaction.Option) Option {
	return func(o *Orchestrator) { o.interOpt = append(o.interOpt, opts...) }
}

// New creates an orchestrator for the resolved settings snapshot cfg.
// cfg is copied; later changes to the caller's value are not seen.
func New(cfg common.Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		config: cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = common.GetLogger()
	}
	if o.capturer == nil {
		o.capturer = evidence.NewCapturer(cfg, o.sink, o.logger, evidence.WithClock(o.now))
	}
	return o
}

// Config returns a copy of the settings snapshot.
func (o *Orchestrator) Config() common.Config {
	return o.config
}

// Setup allocates a fresh session for testName. Errors are harness-setup
// errors (*session.SetupError); nothing is left allocated when one is returned.
func (o *Orchestrator) Setup(ctx context.Context, testName string) (*TestCase, error) {
	started := o.now()
	o.logger.Info().
		Str("test", testName).
		Str("engine", o.config.Engine).
		Str("base_url", o.config.BaseURL).
		Msg("Test setup started")

	engines := o.engines
	if engines == nil {
		var err error
		engines, err = browser.NewEngineFactory(o.config, o.logger)
		if err != nil {
			o.logger.Error().Err(err).Str("test", testName).Msg("Test setup failed")
			return nil, &session.SetupError{Step: session.StepCreateEngine, Err: err}
		}
	}

	s, err := session.NewFactory(o.config, engines, o.logger).Create(ctx, testName)
	if err != nil {
		return nil, err
	}

	logger := o.logger.WithCorrelationId(s.ID)
	tc := &TestCase{
		Name:       testName,
		ctx:        ctx,
		session:    s,
		config:     o.config,
		logger:     logger,
		navigator:  navigation.NewNavigator(o.config.BaseURL, logger, o.navOpts...),
		interactor: interaction.NewInteractor(logger, o.interOpt...),
		started:    started,
	}

	logger.Info().
		Str("test", testName).
		Dur("elapsed", o.now().Sub(started)).
		Msg("Test setup complete")
	return tc, nil
}

// Teardown finishes a test case: evidence when outcome is Failed and a
// capture flag is on, then the outcome report, then release of every
// browser resource. It never panics and reports problems only in the log.
func (o *Orchestrator) Teardown(ctx context.Context, tc *TestCase, outcome models.TestOutcome) {
	if tc == nil || !tc.beginTeardown() {
		return
	}

	logger := tc.logger
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Str("test", tc.Name).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", common.GetStackTrace()).
				Msg("Recovered from panic during teardown")
		}
	}()

	logger.Info().
		Str("test", tc.Name).
		Str("status", outcome.Status.String()).
		Msg("Test teardown started")

	if outcome.Failed() && o.capturer.Enabled() {
		o.captureEvidence(ctx, tc, outcome)
	}

	duration := o.now().Sub(tc.started)
	if o.sink != nil {
		err := common.SafeCall(logger, "record outcome", func() error {
			return o.sink.RecordOutcome(tc.Name, outcome, duration)
		})
		if err != nil {
			logger.Warn().Err(err).Str("test", tc.Name).Msg("Failed to record outcome")
		}
	}

	err := common.SafeCall(logger, "release session", func() error {
		return tc.session.Release(ctx)
	})
	if err != nil {
		logger.Warn().Err(err).Str("test", tc.Name).Msg("Session release reported errors")
	}

	logger.Info().
		Str("test", tc.Name).
		Str("status", outcome.Status.String()).
		Dur("duration", duration).
		Msg("Test teardown complete")
}

func (o *Orchestrator) captureEvidence(ctx context.Context, tc *TestCase, outcome models.TestOutcome) {
	tc.logger.Info().Str("test", tc.Name).Msg("Capturing failure evidence")

	// Only a context that is recording can produce a trace
	var bctx interfaces.BrowserContext
	if tc.session.Tracing() {
		bctx = tc.session.Context()
	}

	var artifacts []models.EvidenceArtifact
	err := common.SafeCall(tc.logger, "capture evidence", func() error {
		artifacts = o.capturer.CaptureOnFailure(ctx, tc.Name, tc.session.Page(), bctx, outcome)
		return nil
	})
	if err != nil {
		tc.logger.Error().Err(err).Str("test", tc.Name).Msg("Evidence capture aborted")
		return
	}
	tc.logger.Info().
		Str("test", tc.Name).
		Int("artifacts", len(artifacts)).
		Msg("Failure evidence captured")
}

// Run wires one test case into go test: Setup, body, then Teardown from
// t.Cleanup. A harness-setup error fails the test before body runs. A
// panicking body fails the test with the panic's stack trace. A test that
// t reports as failed is torn down as Failed even when tc recorded nothing.
func (o *Orchestrator) Run(t testing.TB, body func(tc *TestCase)) {
	t.Helper()

	// Cleanup runs after t.Context is cancelled; evidence capture needs a live context.
	ctx := context.Background()

	tc, err := o.Setup(ctx, t.Name())
	if err != nil {
		t.Fatalf("harness setup failed: %v", err)
		return
	}
	// Failures reported on t itself (require on t, t.FailNow) never reach tc.
	t.Cleanup(func() {
		o.Teardown(ctx, tc, tc.runnerOutcome(t.Failed()))
	})

	tc.execute(body)

	outcome := tc.Outcome()
	switch outcome.Status {
	case models.TestStatusFailed:
		t.Errorf("%s", outcome.Message)
	case models.TestStatusSkipped:
		t.Skip(outcome.Message)
	case models.TestStatusInconclusive:
		t.Skip("inconclusive: " + outcome.Message)
	}
}

// Execute runs one test case outside go test: Setup, body, Teardown. The
// error is a harness-setup error; a setup failure is also reported to the
// sink as a Failed outcome. Test failures are only in the returned outcome.
func (o *Orchestrator) Execute(ctx context.Context, testName string, body func(tc *TestCase)) (models.TestOutcome, error) {
	started := o.now()

	tc, err := o.Setup(ctx, testName)
	if err != nil {
		outcome := models.TestOutcome{Status: models.TestStatusFailed, Message: err.Error()}
		if o.sink != nil {
			if recErr := o.sink.RecordOutcome(testName, outcome, o.now().Sub(started)); recErr != nil {
				o.logger.Warn().Err(recErr).Str("test", testName).Msg("Failed to record outcome")
			}
		}
		return outcome, err
	}

	tc.execute(body)
	outcome := tc.Outcome()
	o.Teardown(ctx, tc, outcome)
	return outcome, nil
}
