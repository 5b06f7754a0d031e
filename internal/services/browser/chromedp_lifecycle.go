package browser

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto/cdp"

	"github.com/ternarybob/uitest/internal/models"
)

// lifecycleEventName maps a load state to the CDP lifecycle event name
func lifecycleEventName(state models.LoadState) string {
	switch state {
	case models.LoadStateDOMContentLoaded:
		return "DOMContentLoaded"
	case models.LoadStateNetworkIdle:
		return "networkIdle"
	default:
		return "load"
	}
}

// lifecycleTracker follows page lifecycle events of the main frame.
// Events reset on every new loader ("init").
type lifecycleTracker struct {
	mu        sync.Mutex
	mainFrame cdp.FrameID
	loaderID  cdp.LoaderID
	seen      map[string]bool
	changed   chan struct{}
}

func newLifecycleTracker() *lifecycleTracker {
	return &lifecycleTracker{
		seen:    make(map[string]bool),
		changed: make(chan struct{}),
	}
}

func (t *lifecycleTracker) setMainFrame(id cdp.FrameID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mainFrame = id
}

// observe records one lifecycle event; called from the target event loop
func (t *lifecycleTracker) observe(frameID cdp.FrameID, loaderID cdp.LoaderID, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.mainFrame != "" && frameID != t.mainFrame {
		return
	}
	if name == "init" || loaderID != t.loaderID {
		t.loaderID = loaderID
		t.seen = make(map[string]bool)
	}
	t.seen[name] = true

	close(t.changed)
	t.changed = make(chan struct{})
}

// loader returns the current main-frame loader
func (t *lifecycleTracker) loader() cdp.LoaderID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loaderID
}

// wait blocks until the current loader has emitted name. A page that never
// loaded a document counts as settled.
func (t *lifecycleTracker) wait(ctx context.Context, name string) error {
	for {
		t.mu.Lock()
		done := t.loaderID == "" || t.seen[name]
		changed := t.changed
		t.mu.Unlock()

		if done {
			return nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
