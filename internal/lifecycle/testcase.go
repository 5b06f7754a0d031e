package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/uitest/internal/common"
	"github.com/ternarybob/uitest/internal/interfaces"
	"github.com/ternarybob/uitest/internal/models"
	"github.com/ternarybob/uitest/internal/services/interaction"
	"github.com/ternarybob/uitest/internal/services/navigation"
	"github.com/ternarybob/uitest/internal/services/session"
)

// fatalSignal unwinds a test body after Fatalf
type fatalSignal struct{}

// TestCase is one running test: its session, helpers and recorded outcome.
type TestCase struct {
	Name string

	ctx        context.Context
	session    *session.Session
	config     common.Config
	logger     arbor.ILogger
	navigator  *navigation.Navigator
	interactor *interaction.Interactor
	started    time.Time

	mu           sync.Mutex
	failures     []string
	stack        string
	skipped      bool
	skipMsg      string
	inconclusive bool
	inconcMsg    string
	tornDown     bool
}

var _ PageProvider = (*TestCase)(nil)

// Page is the page opened for this test case.
func (tc *TestCase) Page() interfaces.Page { return tc.session.Page() }

// BrowserContext is the isolated browser context the page lives in.
func (tc *TestCase) BrowserContext() interfaces.BrowserContext { return tc.session.Context() }

// Context is the Go context browser operations in the body should use.
func (tc *TestCase) Context() context.Context { return tc.ctx }

// Config is this test's copy of the settings snapshot.
func (tc *TestCase) Config() common.Config { return tc.config }

// Logger is correlated with the session id.
func (tc *TestCase) Logger() arbor.ILogger { return tc.logger }

// Navigator carries the orchestrator's navigation options.
func (tc *TestCase) Navigator() *navigation.Navigator { return tc.navigator }

// Interactor carries the orchestrator's interaction options.
func (tc *TestCase) Interactor() *interaction.Interactor { return tc.interactor }

// SessionID identifies the browser session in logs.
func (tc *TestCase) SessionID() string { return tc.session.ID }

// Fail marks the test failed with err. A nil err is ignored.
func (tc *TestCase) Fail(err error) {
	if err == nil {
		return
	}
	tc.recordFailure(err.Error(), common.GetStackTrace())
}

// Errorf marks the test failed and lets the body continue.
func (tc *TestCase) Errorf(format string, args ...interface{}) {
	tc.recordFailure(fmt.Sprintf(format, args...), common.GetStackTrace())
}

// Fatalf marks the test failed and stops the body. Only valid inside a
// body run by Orchestrator.Run.
func (tc *TestCase) Fatalf(format string, args ...interface{}) {
	tc.recordFailure(fmt.Sprintf(format, args...), common.GetStackTrace())
	panic(fatalSignal{})
}

// Inconclusive marks the result as neither passed nor failed.
func (tc *TestCase) Inconclusive(msg string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.inconclusive = true
	tc.inconcMsg = msg
}

// Skip marks the test skipped.
func (tc *TestCase) Skip(msg string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.skipped = true
	tc.skipMsg = msg
}

// Outcome is the result recorded so far. A recorded failure wins over
// everything else, then inconclusive, then skipped, then passed.
func (tc *TestCase) Outcome() models.TestOutcome {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	switch {
	case len(tc.failures) > 0:
		return models.TestOutcome{
			Status:     models.TestStatusFailed,
			Message:    strings.Join(tc.failures, "\n"),
			StackTrace: tc.stack,
		}
	case tc.inconclusive:
		return models.TestOutcome{Status: models.TestStatusInconclusive, Message: tc.inconcMsg}
	case tc.skipped:
		return models.TestOutcome{Status: models.TestStatusSkipped, Message: tc.skipMsg}
	}
	return models.TestOutcome{Status: models.TestStatusPassed}
}

func (tc *TestCase) recordFailure(msg, stack string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.failures = append(tc.failures, msg)
	if tc.stack == "" {
		tc.stack = stack
	}
	tc.logger.Error().Str("test", tc.Name).Str("error", msg).Msg("Test failure recorded")
}

// runnerOutcome folds a failure reported on the surrounding test runner
// into the recorded outcome.
func (tc *TestCase) runnerOutcome(runnerFailed bool) models.TestOutcome {
	outcome := tc.Outcome()
	if !runnerFailed || outcome.Failed() {
		return outcome
	}
	tc.mu.Lock()
	stack := tc.stack
	tc.mu.Unlock()
	return models.TestOutcome{Status: models.TestStatusFailed, Message: "test failed", StackTrace: stack}
}

// beginTeardown reports whether this is the first teardown of tc
func (tc *TestCase) beginTeardown() bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.tornDown {
		return false
	}
	tc.tornDown = true
	return true
}

// execute runs body, turning a panic into a failure with its stack trace.
func (tc *TestCase) execute(body func(tc *TestCase)) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if _, ok := r.(fatalSignal); ok {
			return
		}
		tc.recordFailure(fmt.Sprintf("panic: %v", r), common.GetStackTrace())
	}()
	body(tc)
}
