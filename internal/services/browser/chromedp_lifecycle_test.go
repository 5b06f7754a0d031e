package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/uitest/internal/models"
)

func TestLifecycleTracker_WaitsForCurrentLoader(t *testing.T) {
	tracker := newLifecycleTracker()
	tracker.setMainFrame("main")

	tracker.observe("main", "loader-1", "init")
	tracker.observe("main", "loader-1", "load")

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		done <- tracker.wait(ctx, "networkIdle")
	}()

	// Subframe events are ignored
	tracker.observe("child", "loader-1", "networkIdle")
	select {
	case <-done:
		t.Fatal("wait returned on a subframe event")
	case <-time.After(50 * time.Millisecond):
	}

	tracker.observe("main", "loader-1", "networkIdle")
	require.NoError(t, <-done)
}

func TestLifecycleTracker_ResetsOnNewLoader(t *testing.T) {
	tracker := newLifecycleTracker()
	tracker.setMainFrame("main")

	tracker.observe("main", "loader-1", "init")
	tracker.observe("main", "loader-1", "networkIdle")
	tracker.observe("main", "loader-2", "init")

	assert.Equal(t, "loader-2", string(tracker.loader()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tracker.wait(ctx, "networkIdle"), context.DeadlineExceeded)
}

func TestLifecycleTracker_BlankPageIsSettled(t *testing.T) {
	tracker := newLifecycleTracker()
	assert.NoError(t, tracker.wait(context.Background(), "load"))
}

func TestLifecycleEventName(t *testing.T) {
	assert.Equal(t, "load", lifecycleEventName(models.LoadStateLoad))
	assert.Equal(t, "DOMContentLoaded", lifecycleEventName(models.LoadStateDOMContentLoaded))
	assert.Equal(t, "networkIdle", lifecycleEventName(models.LoadStateNetworkIdle))
}
