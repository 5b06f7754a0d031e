package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/uitest/internal/common"
	"github.com/ternarybob/uitest/internal/models"
	"github.com/ternarybob/uitest/internal/services/browser/fake"
	"github.com/ternarybob/uitest/internal/services/evidence"
	"github.com/ternarybob/uitest/internal/services/report"
	"github.com/ternarybob/uitest/internal/services/session"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

type harness struct {
	orch   *Orchestrator
	script *fake.Script
	store  *report.Store
	dir    string
}

func newHarness(t *testing.T, mutate func(*common.Config)) *harness {
	t.Helper()

	cfg := common.NewDefaultConfig()
	cfg.ArtifactsDir = t.TempDir()
	if mutate != nil {
		mutate(&cfg)
	}

	logger := arbor.NewLogger()
	store, err := report.NewStore("", "run_lifecycle", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	script := fake.NewScript()
	orch := New(cfg,
		WithEngineFactory(script.Factory()),
		WithReportSink(store),
		WithLogger(logger),
		WithClock(func() time.Time { return fixedNow }),
	)
	return &harness{orch: orch, script: script, store: store, dir: cfg.ArtifactsDir}
}

func (h *harness) files(t *testing.T, sub string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(h.dir, sub))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func releaseTail() []string {
	return []string{fake.OpClosePage, fake.OpCloseContext, fake.OpCloseBrowser, fake.OpDisposeEngine}
}

func TestSetup_ExposesSession(t *testing.T) {
	h := newHarness(t, nil)

	tc, err := h.orch.Setup(context.Background(), "Login_Valid")
	require.NoError(t, err)
	defer h.orch.Teardown(context.Background(), tc, tc.Outcome())

	assert.Equal(t, "Login_Valid", tc.Name)
	assert.NotNil(t, tc.Page())
	assert.NotNil(t, tc.BrowserContext())
	assert.NotNil(t, tc.Navigator())
	assert.NotNil(t, tc.Interactor())
	assert.NotNil(t, tc.Context())
	assert.NotEmpty(t, tc.SessionID())
	assert.Equal(t, h.orch.Config().BaseURL, tc.Config().BaseURL)
	assert.Equal(t, models.TestStatusPassed, tc.Outcome().Status)
}

func TestSetup_HarnessError(t *testing.T) {
	h := newHarness(t, nil)
	h.script.Fail(fake.OpNewContext, errors.New("no context for you"))

	tc, err := h.orch.Setup(context.Background(), "Login_Valid")
	require.Error(t, err)
	assert.Nil(t, tc)

	var setupErr *session.SetupError
	require.True(t, errors.As(err, &setupErr))
	assert.Equal(t, session.StepCreateContext, setupErr.Step)

	// what was acquired has been released
	assert.Equal(t, 1, h.script.Count(fake.OpCloseBrowser))
	assert.Equal(t, 1, h.script.Count(fake.OpDisposeEngine))
}

func TestSetup_UnknownEngine(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Engine = "selenium"
	orch := New(cfg, WithLogger(arbor.NewLogger()))

	_, err := orch.Setup(context.Background(), "X")
	var setupErr *session.SetupError
	require.True(t, errors.As(err, &setupErr))
	assert.Equal(t, session.StepCreateEngine, setupErr.Step)
}

func TestTeardown_FailedWritesTrace(t *testing.T) {
	h := newHarness(t, func(c *common.Config) {
		c.CaptureScreenshotOnFailure = false
		c.CaptureTraceOnFailure = true
	})

	tc, err := h.orch.Setup(context.Background(), "Login_Locked")
	require.NoError(t, err)

	h.orch.Teardown(context.Background(), tc, models.TestOutcome{Status: models.TestStatusFailed})

	traces := h.files(t, "traces")
	require.Len(t, traces, 1)
	assert.Equal(t, "Login_Locked_20250314_092653.zip", traces[0])
	assert.Empty(t, h.files(t, "screenshots"))
	assert.Empty(t, h.files(t, "errors"))

	atts, err := h.store.Attachments("Login_Locked")
	require.NoError(t, err)
	require.Len(t, atts, 1)
	assert.Equal(t, evidence.LabelTrace, atts[0].Label)
	assert.Equal(t, filepath.Join(h.dir, "traces", traces[0]), atts[0].Path)

	// capture happens before release, release runs innermost first
	calls := h.script.Calls()
	require.GreaterOrEqual(t, len(calls), 5)
	assert.Equal(t, fake.OpTraceStop, calls[len(calls)-5])
	assert.Equal(t, releaseTail(), calls[len(calls)-4:])

	rec, err := h.store.Record("Login_Locked")
	require.NoError(t, err)
	assert.Equal(t, models.TestStatusFailed, rec.Status)
}

func TestTeardown_PassedWritesNothing(t *testing.T) {
	h := newHarness(t, nil)

	tc, err := h.orch.Setup(context.Background(), "Login_Valid")
	require.NoError(t, err)

	h.orch.Teardown(context.Background(), tc, models.TestOutcome{Status: models.TestStatusPassed})

	assert.Empty(t, h.files(t, "screenshots"))
	assert.Empty(t, h.files(t, "traces"))
	assert.Empty(t, h.files(t, "errors"))
	assert.Equal(t, 0, h.script.Count(fake.OpScreenshot))
	assert.Equal(t, 0, h.script.Count(fake.OpTraceStop))

	atts, err := h.store.Attachments("Login_Valid")
	require.NoError(t, err)
	assert.Empty(t, atts)

	calls := h.script.Calls()
	assert.Equal(t, releaseTail(), calls[len(calls)-4:])
}

func TestTeardown_NonFailedStatusesSkipCapture(t *testing.T) {
	for _, status := range []models.TestStatus{models.TestStatusSkipped, models.TestStatusInconclusive} {
		t.Run(status.String(), func(t *testing.T) {
			h := newHarness(t, nil)
			tc, err := h.orch.Setup(context.Background(), "T")
			require.NoError(t, err)

			h.orch.Teardown(context.Background(), tc, models.TestOutcome{Status: status, Message: "why"})

			assert.Empty(t, h.files(t, "errors"))
			assert.Equal(t, 0, h.script.Count(fake.OpScreenshot))
			assert.Equal(t, 1, h.script.Count(fake.OpDisposeEngine))
		})
	}
}

func TestTeardown_FailedWithAllEvidence(t *testing.T) {
	h := newHarness(t, nil)

	tc, err := h.orch.Setup(context.Background(), "Cart / Checkout")
	require.NoError(t, err)

	h.orch.Teardown(context.Background(), tc, models.TestOutcome{
		Status:     models.TestStatusFailed,
		Message:    "expected 2 items",
		StackTrace: "cart_test.go:42",
	})

	assert.Equal(t, []string{"Cart___Checkout_20250314_092653.png"}, h.files(t, "screenshots"))
	assert.Equal(t, []string{"Cart___Checkout_20250314_092653.zip"}, h.files(t, "traces"))
	assert.Equal(t, []string{"Cart___Checkout_20250314_092653_error.txt"}, h.files(t, "errors"))

	detail, err := os.ReadFile(filepath.Join(h.dir, "errors", "Cart___Checkout_20250314_092653_error.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Message: expected 2 items\n\nStack Trace: cart_test.go:42", string(detail))
}

func TestTeardown_CaptureDisabled(t *testing.T) {
	h := newHarness(t, func(c *common.Config) {
		c.CaptureScreenshotOnFailure = false
		c.CaptureTraceOnFailure = false
	})

	tc, err := h.orch.Setup(context.Background(), "T")
	require.NoError(t, err)

	h.orch.Teardown(context.Background(), tc, models.TestOutcome{Status: models.TestStatusFailed, Message: "boom"})

	assert.Empty(t, h.files(t, "errors"))
	assert.Equal(t, 0, h.script.Count(fake.OpTraceStart))
	assert.Equal(t, 1, h.script.Count(fake.OpDisposeEngine))
}

func TestTeardown_ReleasesDespiteFailures(t *testing.T) {
	h := newHarness(t, nil)
	h.script.PanicOn(fake.OpScreenshot, "renderer crashed")
	h.script.Fail(fake.OpTraceStop, errors.New("trace lost"))
	h.script.Fail(fake.OpClosePage, errors.New("page gone"))
	h.script.PanicOn(fake.OpCloseContext, "context exploded")

	tc, err := h.orch.Setup(context.Background(), "Flaky")
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		h.orch.Teardown(context.Background(), tc, models.TestOutcome{Status: models.TestStatusFailed, Message: "boom"})
	})

	assert.Equal(t, 1, h.script.Count(fake.OpClosePage))
	assert.Equal(t, 1, h.script.Count(fake.OpCloseContext))
	assert.Equal(t, 1, h.script.Count(fake.OpCloseBrowser))
	assert.Equal(t, 1, h.script.Count(fake.OpDisposeEngine))

	// the error detail does not depend on the browser
	assert.Len(t, h.files(t, "errors"), 1)
}

func TestTeardown_Idempotent(t *testing.T) {
	h := newHarness(t, nil)
	tc, err := h.orch.Setup(context.Background(), "T")
	require.NoError(t, err)

	h.orch.Teardown(context.Background(), tc, models.TestOutcome{Status: models.TestStatusFailed})
	h.orch.Teardown(context.Background(), tc, models.TestOutcome{Status: models.TestStatusFailed})

	assert.Equal(t, 1, h.script.Count(fake.OpScreenshot))
	assert.Equal(t, 1, h.script.Count(fake.OpDisposeEngine))
}

func TestTeardown_NilTestCase(t *testing.T) {
	h := newHarness(t, nil)
	assert.NotPanics(t, func() {
		h.orch.Teardown(context.Background(), nil, models.TestOutcome{Status: models.TestStatusFailed})
	})
}

func TestTestCase_OutcomePrecedence(t *testing.T) {
	h := newHarness(t, nil)
	tc, err := h.orch.Setup(context.Background(), "T")
	require.NoError(t, err)
	defer h.orch.Teardown(context.Background(), tc, models.TestOutcome{Status: models.TestStatusPassed})

	tc.Fail(nil)
	assert.Equal(t, models.TestStatusPassed, tc.Outcome().Status)

	tc.Fail(errors.New("first"))
	tc.Errorf("second %d", 2)
	out := tc.Outcome()
	assert.Equal(t, models.TestStatusFailed, out.Status)
	assert.Equal(t, "first\nsecond 2", out.Message)
	assert.NotEmpty(t, out.StackTrace)

	// a recorded failure survives a later skip or inconclusive
	tc.Skip("later")
	tc.Inconclusive("env down")
	assert.Equal(t, models.TestStatusFailed, tc.Outcome().Status)
}

func TestTestCase_SkipAndInconclusivePrecedence(t *testing.T) {
	h := newHarness(t, nil)
	tc, err := h.orch.Setup(context.Background(), "T")
	require.NoError(t, err)
	defer h.orch.Teardown(context.Background(), tc, models.TestOutcome{Status: models.TestStatusPassed})

	tc.Skip("later")
	assert.Equal(t, models.TestOutcome{Status: models.TestStatusSkipped, Message: "later"}, tc.Outcome())

	tc.Inconclusive("env down")
	assert.Equal(t, models.TestOutcome{Status: models.TestStatusInconclusive, Message: "env down"}, tc.Outcome())
}

// recordingT stands in for *testing.T so Run's reporting can be observed.
type recordingT struct {
	testing.TB
	name     string
	cleanups []func()
	errors   []string
	fatals   []string
	skips    []string
	failed   bool
}

func (r *recordingT) Helper()           {}
func (r *recordingT) Name() string      { return r.name }
func (r *recordingT) Cleanup(fn func()) { r.cleanups = append(r.cleanups, fn) }
func (r *recordingT) Skip(args ...any)  { r.skips = append(r.skips, fmt.Sprint(args...)) }

func (r *recordingT) Failed() bool {
	return r.failed || len(r.errors) > 0 || len(r.fatals) > 0
}

func (r *recordingT) Errorf(f string, args ...any) {
	r.errors = append(r.errors, fmt.Sprintf(f, args...))
}
func (r *recordingT) Fatalf(f string, args ...any) {
	r.fatals = append(r.fatals, fmt.Sprintf(f, args...))
}

func (r *recordingT) finish() {
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		r.cleanups[i]()
	}
}

func TestRun_Passing(t *testing.T) {
	h := newHarness(t, nil)
	rt := &recordingT{name: "TestRun_Passing"}

	ran := false
	h.orch.Run(rt, func(tc *TestCase) {
		ran = true
		require.NoError(t, tc.Navigator().Navigate(tc.Context(), tc.Page(), "/inventory.html"))
	})
	rt.finish()

	assert.True(t, ran)
	assert.Empty(t, rt.errors)
	assert.Empty(t, rt.fatals)
	assert.Equal(t, []string{"https://www.saucedemo.com/inventory.html"}, h.script.GotoURLs())

	rec, err := h.store.Record("TestRun_Passing")
	require.NoError(t, err)
	assert.Equal(t, models.TestStatusPassed, rec.Status)
	assert.Equal(t, 1, h.script.Count(fake.OpDisposeEngine))
}

func TestRun_PanicBecomesFailure(t *testing.T) {
	h := newHarness(t, nil)
	rt := &recordingT{name: "TestRun_Panic"}

	h.orch.Run(rt, func(tc *TestCase) {
		panic("boom")
	})
	rt.finish()

	require.Len(t, rt.errors, 1)
	assert.Equal(t, "panic: boom", rt.errors[0])

	rec, err := h.store.Record("TestRun_Panic")
	require.NoError(t, err)
	assert.Equal(t, models.TestStatusFailed, rec.Status)
	assert.Contains(t, rec.StackTrace, "goroutine")
	assert.Len(t, h.files(t, "screenshots"), 1)
}

func TestRun_RunnerFailureCapturesEvidence(t *testing.T) {
	h := newHarness(t, nil)
	rt := &recordingT{name: "TestRun_Runner"}

	// the body fails the surrounding runner directly, bypassing tc
	h.orch.Run(rt, func(tc *TestCase) {
		rt.failed = true
	})
	rt.finish()

	assert.Empty(t, rt.errors)
	assert.Len(t, h.files(t, "screenshots"), 1)
	assert.Len(t, h.files(t, "errors"), 1)

	rec, err := h.store.Record("TestRun_Runner")
	require.NoError(t, err)
	assert.Equal(t, models.TestStatusFailed, rec.Status)
	assert.Equal(t, "test failed", rec.Message)
}

func TestRun_FailureThenSkipStillFails(t *testing.T) {
	h := newHarness(t, nil)
	rt := &recordingT{name: "TestRun_FailSkip"}

	h.orch.Run(rt, func(tc *TestCase) {
		tc.Errorf("assertion failed")
		tc.Skip("later skip")
	})
	rt.finish()

	assert.Equal(t, []string{"assertion failed"}, rt.errors)
	assert.Empty(t, rt.skips)
	assert.Len(t, h.files(t, "screenshots"), 1)
	assert.Equal(t, 1, h.script.Count(fake.OpTraceStop))

	rec, err := h.store.Record("TestRun_FailSkip")
	require.NoError(t, err)
	assert.Equal(t, models.TestStatusFailed, rec.Status)
}

func TestRun_FatalfStopsBody(t *testing.T) {
	h := newHarness(t, nil)
	rt := &recordingT{name: "TestRun_Fatal"}

	reached := false
	h.orch.Run(rt, func(tc *TestCase) {
		tc.Fatalf("login failed: %s", "locked out")
		reached = true
	})
	rt.finish()

	assert.False(t, reached)
	assert.Equal(t, []string{"login failed: locked out"}, rt.errors)
}

func TestRun_SetupFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.script.Fail(fake.OpLaunch, errors.New("chrome not found"))
	rt := &recordingT{name: "TestRun_Setup"}

	ran := false
	h.orch.Run(rt, func(tc *TestCase) { ran = true })
	rt.finish()

	assert.False(t, ran)
	require.Len(t, rt.fatals, 1)
	assert.Contains(t, rt.fatals[0], "chrome not found")
	assert.Empty(t, rt.cleanups)
}

func TestRun_SkipAndInconclusive(t *testing.T) {
	h := newHarness(t, nil)

	rt := &recordingT{name: "Skipped"}
	h.orch.Run(rt, func(tc *TestCase) { tc.Skip("feature flag off") })
	rt.finish()
	assert.Equal(t, []string{"feature flag off"}, rt.skips)

	rt = &recordingT{name: "Inconclusive"}
	h.orch.Run(rt, func(tc *TestCase) { tc.Inconclusive("site down") })
	rt.finish()
	assert.Equal(t, []string{"inconclusive: site down"}, rt.skips)

	rec, err := h.store.Record("Inconclusive")
	require.NoError(t, err)
	assert.Equal(t, models.TestStatusInconclusive, rec.Status)
}

func TestExecute(t *testing.T) {
	h := newHarness(t, nil)

	outcome, err := h.orch.Execute(context.Background(), "Exec_Pass", func(tc *TestCase) {})
	require.NoError(t, err)
	assert.Equal(t, models.TestStatusPassed, outcome.Status)

	outcome, err = h.orch.Execute(context.Background(), "Exec_Fail", func(tc *TestCase) {
		tc.Errorf("expected %s", "logo")
	})
	require.NoError(t, err)
	assert.Equal(t, models.TestStatusFailed, outcome.Status)
	assert.Equal(t, "expected logo", outcome.Message)
	assert.Len(t, h.files(t, "errors"), 1)

	recs, err := h.store.Records()
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Equal(t, 2, h.script.Count(fake.OpDisposeEngine))
}

func TestExecute_SetupFailureIsRecorded(t *testing.T) {
	h := newHarness(t, nil)
	h.script.Fail(fake.OpCreateEngine, errors.New("no engine"))

	outcome, err := h.orch.Execute(context.Background(), "Exec_Setup", func(tc *TestCase) {
		t.Fatal("body must not run")
	})
	require.Error(t, err)
	assert.Equal(t, models.TestStatusFailed, outcome.Status)
	assert.Contains(t, outcome.Message, "no engine")

	rec, err := h.store.Record("Exec_Setup")
	require.NoError(t, err)
	assert.Equal(t, models.TestStatusFailed, rec.Status)
}
