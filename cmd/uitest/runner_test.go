package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/uitest/internal/common"
	"github.com/ternarybob/uitest/internal/fixtures/loginapp"
	"github.com/ternarybob/uitest/internal/lifecycle"
	"github.com/ternarybob/uitest/internal/models"
	"github.com/ternarybob/uitest/internal/pages"
	"github.com/ternarybob/uitest/internal/services/browser/fake"
	"github.com/ternarybob/uitest/internal/services/interaction"
	"github.com/ternarybob/uitest/internal/services/navigation"
	"github.com/ternarybob/uitest/internal/services/report"
)

// loginForm scripts the login form: the password must match and
// locked_out_user is refused.
func loginForm() *fake.Script {
	script := fake.NewScript()
	for _, sel := range []string{pages.SelectorUsername, pages.SelectorPassword, pages.SelectorLoginButton} {
		script.SetElement(sel, &fake.Element{Visible: true, Enabled: true})
	}
	script.OnClick(pages.SelectorLoginButton, func(s *fake.Script) {
		user := s.Element(pages.SelectorUsername).Value
		pass := s.Element(pages.SelectorPassword).Value
		switch {
		case pass != common.DefaultPassword || (user != "standard_user" && user != "locked_out_user"):
			s.SetElement(pages.SelectorErrorMessage, &fake.Element{Visible: true, Text: loginapp.ErrNoMatch})
		case user == "locked_out_user":
			s.SetElement(pages.SelectorErrorMessage, &fake.Element{Visible: true, Text: loginapp.ErrLockedOut})
		default:
			s.SetElement(pages.SelectorAppLogo, &fake.Element{Visible: true, Text: loginapp.Title})
		}
	})
	return script
}

func newOrchestrator(t *testing.T, script *fake.Script) (*lifecycle.Orchestrator, *report.Store) {
	t.Helper()

	cfg := common.NewDefaultConfig()
	cfg.ArtifactsDir = t.TempDir()

	logger := arbor.NewLogger()
	store, err := report.NewStore("", "run_cli", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	orch := lifecycle.New(cfg,
		lifecycle.WithEngineFactory(script.Factory()),
		lifecycle.WithReportSink(store),
		lifecycle.WithLogger(logger),
		lifecycle.WithInteractorOptions(
			interaction.WithTimeout(200*time.Millisecond),
			interaction.WithVisibilityTimeout(50*time.Millisecond),
		),
		lifecycle.WithNavigatorOptions(
			navigation.WithSleep(func(ctx context.Context, d time.Duration) error { return nil }),
		),
	)
	return orch, store
}

func TestSmokeSuite_Scenarios(t *testing.T) {
	for _, sc := range smokeSuite() {
		t.Run(sc.Name, func(t *testing.T) {
			orch, store := newOrchestrator(t, loginForm())

			res := runScenario(context.Background(), orch, sc, 1, arbor.NewLogger())
			assert.Equal(t, sc.Name, res.Name)
			assert.Equal(t, models.TestStatusPassed, res.Outcome.Status, res.Outcome.Message)
			assert.Equal(t, 1, res.Attempts)

			rec, err := store.Record(sc.Name)
			require.NoError(t, err)
			assert.Equal(t, models.TestStatusPassed, rec.Status)
		})
	}
}

func TestSmokeSuite_FailureCapturesEvidence(t *testing.T) {
	script := fake.NewScript() // no login form at all
	orch, store := newOrchestrator(t, script)

	sc := smokeSuite()[0]
	res := runScenario(context.Background(), orch, sc, 1, arbor.NewLogger())
	require.Equal(t, models.TestStatusFailed, res.Outcome.Status)
	assert.Contains(t, res.Outcome.Message, "enter username")

	attachments, err := store.Attachments(sc.Name)
	require.NoError(t, err)
	assert.NotEmpty(t, attachments)
	assert.Equal(t, 1, script.Count(fake.OpDisposeEngine))
}

func TestRunScenario_RetriesUntilPass(t *testing.T) {
	orch, store := newOrchestrator(t, fake.NewScript())

	var calls atomic.Int32
	sc := scenario{Name: "Flaky", Run: func(tc *lifecycle.TestCase) {
		if calls.Add(1) < 2 {
			tc.Errorf("first attempt fails")
		}
	}}

	res := runScenario(context.Background(), orch, sc, 3, arbor.NewLogger())
	assert.Equal(t, models.TestStatusPassed, res.Outcome.Status)
	assert.Equal(t, 2, res.Attempts)

	// the retry replaced the failed record
	records, err := store.Records()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.TestStatusPassed, records[0].Status)
}

func TestRunScenario_GivesUpAfterAttempts(t *testing.T) {
	script := fake.NewScript()
	orch, _ := newOrchestrator(t, script)

	sc := scenario{Name: "Broken", Run: func(tc *lifecycle.TestCase) {
		tc.Errorf("always fails")
	}}

	res := runScenario(context.Background(), orch, sc, 3, arbor.NewLogger())
	assert.Equal(t, models.TestStatusFailed, res.Outcome.Status)
	assert.Equal(t, "always fails", res.Outcome.Message)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, script.Count(fake.OpDisposeEngine))
}

func TestRunScenario_CancelledContext(t *testing.T) {
	orch, _ := newOrchestrator(t, fake.NewScript())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := runScenario(ctx, orch, scenario{Name: "Never", Run: func(tc *lifecycle.TestCase) {}}, 3, arbor.NewLogger())
	assert.Equal(t, 0, res.Attempts)
}

func TestRunSuite_OrderAndSummary(t *testing.T) {
	orch, _ := newOrchestrator(t, fake.NewScript())

	suite := []scenario{
		{Name: "A_Pass", Run: func(tc *lifecycle.TestCase) {}},
		{Name: "B_Fail", Run: func(tc *lifecycle.TestCase) { tc.Errorf("nope") }},
		{Name: "C_Skip", Run: func(tc *lifecycle.TestCase) { tc.Skip("not today") }},
		{Name: "D_Inconclusive", Run: func(tc *lifecycle.TestCase) { tc.Inconclusive("unclear") }},
	}

	results := runSuite(context.Background(), orch, suite, 0, arbor.NewLogger())
	require.Len(t, results, len(suite))
	for i, r := range results {
		assert.Equal(t, suite[i].Name, r.Name)
		assert.Equal(t, 1, r.Attempts)
	}

	counts := summarize(results)
	assert.Equal(t, 1, counts[models.TestStatusPassed])
	assert.Equal(t, 1, counts[models.TestStatusFailed])
	assert.Equal(t, 1, counts[models.TestStatusSkipped])
	assert.Equal(t, 1, counts[models.TestStatusInconclusive])
}

func TestLoadParameters(t *testing.T) {
	params, err := loadParameters(nil, []string{"BaseUrl=http://localhost:8080", "Headless = false", "Empty="})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", params[common.ParamBaseURL])
	assert.Equal(t, " false", params[common.ParamHeadless])
	assert.Equal(t, "", params["Empty"])

	_, err = loadParameters(nil, []string{"NoEquals"})
	assert.Error(t, err)

	_, err = loadParameters(nil, []string{"=value"})
	assert.Error(t, err)
}
