package navigation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/uitest/internal/interfaces"
	"github.com/ternarybob/uitest/internal/services/browser/fake"
)

// recordingSleep captures backoff durations without sleeping
type recordingSleep struct {
	delays []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func newPage(t *testing.T, script *fake.Script) interfaces.Page {
	t.Helper()
	ctx := context.Background()
	engine, err := script.Factory()(ctx)
	require.NoError(t, err)
	b, err := engine.Launch(ctx, script.LaunchOptions)
	require.NoError(t, err)
	bc, err := b.NewContext(ctx, script.ContextOptions)
	require.NoError(t, err)
	page, err := bc.NewPage(ctx)
	require.NoError(t, err)
	return page
}

func newTestNavigator(sleeper *recordingSleep, jitter time.Duration) *Navigator {
	return NewNavigator("https://www.saucedemo.com", arbor.NewLogger(),
		WithSleep(sleeper.sleep),
		WithJitter(func(time.Duration) time.Duration { return jitter }),
	)
}

func TestNavigate_SucceedsFirstAttempt(t *testing.T) {
	script := fake.NewScript()
	sleeper := &recordingSleep{}
	nav := newTestNavigator(sleeper, 0)

	err := nav.Navigate(context.Background(), newPage(t, script), "")
	require.NoError(t, err)

	assert.Equal(t, []string{"https://www.saucedemo.com"}, script.GotoURLs())
	assert.Empty(t, sleeper.delays)
}

func TestNavigate_StopsAfterSuccess(t *testing.T) {
	transient := errors.New("net::ERR_CONNECTION_RESET")
	script := fake.NewScript().GotoResults(transient, nil)
	sleeper := &recordingSleep{}
	nav := newTestNavigator(sleeper, 250*time.Millisecond)

	err := nav.Navigate(context.Background(), newPage(t, script), "inventory.html")
	require.NoError(t, err)

	assert.Len(t, script.GotoURLs(), 2)
	assert.Equal(t, "https://www.saucedemo.com/inventory.html", script.GotoURLs()[1])
	assert.Equal(t, []time.Duration{1250 * time.Millisecond}, sleeper.delays)
}

func TestNavigate_ExhaustsAttempts(t *testing.T) {
	unreachable := errors.New("net::ERR_NAME_NOT_RESOLVED")
	script := fake.NewScript().GotoResults(unreachable, unreachable, unreachable, unreachable)
	sleeper := &recordingSleep{}
	nav := newTestNavigator(sleeper, 0)

	err := nav.Navigate(context.Background(), newPage(t, script), "")
	require.Error(t, err)

	var navErr *Error
	require.ErrorAs(t, err, &navErr)
	assert.Equal(t, 3, navErr.Attempts)
	assert.Equal(t, "https://www.saucedemo.com", navErr.URL)
	assert.ErrorIs(t, err, unreachable)
	assert.Contains(t, err.Error(), "after 3 attempts")

	assert.Len(t, script.GotoURLs(), 3)
	assert.Len(t, sleeper.delays, 2)
}

func TestNavigate_CustomRetryCount(t *testing.T) {
	unreachable := errors.New("unreachable")
	results := make([]error, 10)
	for i := range results {
		results[i] = unreachable
	}

	for _, n := range []int{1, 2, 5} {
		script := fake.NewScript().GotoResults(results...)
		nav := newTestNavigator(&recordingSleep{}, 0)

		err := nav.Navigate(context.Background(), newPage(t, script), "", WithRetryCount(n))

		var navErr *Error
		require.ErrorAs(t, err, &navErr)
		assert.Equal(t, n, navErr.Attempts)
		assert.Len(t, script.GotoURLs(), n)
	}
}

func TestNavigate_RetryCountBelowOneMeansOneAttempt(t *testing.T) {
	script := fake.NewScript().GotoResults(errors.New("down"))
	nav := newTestNavigator(&recordingSleep{}, 0)

	err := nav.Navigate(context.Background(), newPage(t, script), "", WithRetryCount(0))

	var navErr *Error
	require.ErrorAs(t, err, &navErr)
	assert.Equal(t, 1, navErr.Attempts)
	assert.Len(t, script.GotoURLs(), 1)
}

func TestNavigate_BackoffWithinJitterWindow(t *testing.T) {
	unreachable := errors.New("unreachable")
	script := fake.NewScript().GotoResults(unreachable, unreachable, unreachable)
	sleeper := &recordingSleep{}
	nav := NewNavigator("https://www.saucedemo.com", arbor.NewLogger(), WithSleep(sleeper.sleep))

	_ = nav.Navigate(context.Background(), newPage(t, script), "", WithRetryDelay(500*time.Millisecond))

	require.Len(t, sleeper.delays, 2)
	for _, d := range sleeper.delays {
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.Less(t, d, 1500*time.Millisecond)
	}
}

func TestNavigate_CancelledDuringBackoff(t *testing.T) {
	script := fake.NewScript().GotoResults(errors.New("down"), errors.New("down"))
	ctx, cancel := context.WithCancel(context.Background())

	nav := NewNavigator("https://www.saucedemo.com", arbor.NewLogger(),
		WithSleep(func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		}),
	)

	err := nav.Navigate(ctx, newPage(t, script), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	var navErr *Error
	assert.False(t, errors.As(err, &navErr))
	assert.Len(t, script.GotoURLs(), 1)
}

func TestNavigate_PassesGotoOptions(t *testing.T) {
	script := fake.NewScript()
	nav := newTestNavigator(&recordingSleep{}, 0)

	err := nav.Navigate(context.Background(), newPage(t, script), "https://example.com/a", WithTimeout(5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/a"}, script.GotoURLs())
}

func TestWaitForPageLoad(t *testing.T) {
	script := fake.NewScript()
	nav := newTestNavigator(&recordingSleep{}, 0)

	require.NoError(t, nav.WaitForPageLoad(context.Background(), newPage(t, script), 0))
	assert.Equal(t, 2, script.Count(fake.OpWaitLoad))

	failing := fake.NewScript().Fail(fake.OpWaitLoad, interfaces.ErrTimeout)
	err := nav.WaitForPageLoad(context.Background(), newPage(t, failing), time.Second)
	assert.ErrorIs(t, err, interfaces.ErrTimeout)
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestRandomJitter(t *testing.T) {
	assert.Equal(t, time.Duration(0), randomJitter(0))
	for i := 0; i < 100; i++ {
		j := randomJitter(MaxJitter)
		assert.GreaterOrEqual(t, j, time.Duration(0))
		assert.Less(t, j, MaxJitter)
	}
}
