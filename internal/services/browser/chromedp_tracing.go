package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/tracing"
	"github.com/chromedp/chromedp"

	"github.com/ternarybob/uitest/internal/models"
)

const traceCompleteTimeout = 10 * time.Second

var traceCategories = []string{
	"devtools.timeline",
	"v8.execute",
	"blink.user_timing",
	"loading",
	"latencyInfo",
	"disabled-by-default-devtools.timeline",
	"disabled-by-default-devtools.timeline.frame",
}

// traceRecorder collects a browser-level DevTools trace for one context and
// writes it, together with a DOM snapshot and final screenshot, to a zip.
type traceRecorder struct {
	bc *chromeDPContext

	mu         sync.Mutex
	started    bool
	opts       models.TraceStartOptions
	startedAt  time.Time
	events     []json.RawMessage
	complete   chan struct{}
	stopListen context.CancelFunc
}

func newTraceRecorder(bc *chromeDPContext) *traceRecorder {
	return &traceRecorder{bc: bc}
}

func (r *traceRecorder) Start(ctx context.Context, opts models.TraceStartOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("tracing already started")
	}

	categories := append([]string(nil), traceCategories...)
	if opts.Screenshots {
		categories = append(categories, "disabled-by-default-devtools.screenshot")
	}

	listenCtx, stopListen := context.WithCancel(r.bc.browser.ctx)
	complete := make(chan struct{})
	var completeOnce sync.Once
	chromedp.ListenBrowser(listenCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *tracing.EventDataCollected:
			r.collect(e)
		case *tracing.EventTracingComplete:
			completeOnce.Do(func() { close(complete) })
		}
	})

	err := tracing.Start().
		WithTraceConfig(&tracing.TraceConfig{IncludedCategories: categories}).
		Do(r.bc.browser.executor(ctx))
	if err != nil {
		stopListen()
		return fmt.Errorf("failed to start tracing: %w", err)
	}

	r.started = true
	r.opts = opts
	r.startedAt = time.Now()
	r.events = nil
	r.complete = complete
	r.stopListen = stopListen

	r.bc.logger.Debug().
		Str("trace_name", opts.Name).
		Bool("screenshots", opts.Screenshots).
		Bool("snapshots", opts.Snapshots).
		Msg("Tracing started")
	return nil
}

func (r *traceRecorder) collect(e *tracing.EventDataCollected) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range e.Value {
		raw, err := json.Marshal(v)
		if err != nil {
			continue
		}
		r.events = append(r.events, raw)
	}
}

func (r *traceRecorder) Stop(ctx context.Context, path string) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return fmt.Errorf("tracing not started")
	}
	r.started = false
	opts := r.opts
	complete := r.complete
	stopListen := r.stopListen
	startedAt := r.startedAt
	r.mu.Unlock()
	defer stopListen()

	archive := traceArchive{
		Metadata: traceMetadata{
			Name:      opts.Name,
			Engine:    EngineChromeDP,
			StartedAt: startedAt,
		},
	}

	if p := r.bc.lastPage(); p != nil {
		if url, err := p.URL(ctx); err == nil {
			archive.Metadata.URL = url
		}
		if opts.Snapshots {
			if html, err := p.outerHTML(ctx); err != nil {
				archive.Metadata.Warnings = append(archive.Metadata.Warnings, "snapshot: "+err.Error())
			} else if snap, err := sanitizeSnapshot(html); err != nil {
				archive.Metadata.Warnings = append(archive.Metadata.Warnings, "snapshot: "+err.Error())
			} else {
				archive.Snapshot = snap.HTML
				archive.Metadata.Title = snap.Title
			}
		}
		if opts.Screenshots {
			if shot, err := p.Screenshot(ctx, models.ScreenshotOptions{FullPage: true}); err != nil {
				archive.Metadata.Warnings = append(archive.Metadata.Warnings, "screenshot: "+err.Error())
			} else {
				archive.Screenshot = shot
			}
		}
	}

	if err := tracing.End().Do(r.bc.browser.executor(ctx)); err != nil {
		return fmt.Errorf("failed to stop tracing: %w", err)
	}

	timer := time.NewTimer(traceCompleteTimeout)
	defer timer.Stop()
	select {
	case <-complete:
	case <-timer.C:
		archive.Metadata.Warnings = append(archive.Metadata.Warnings, "trace did not complete in time")
	case <-ctx.Done():
		return fmt.Errorf("waiting for trace data: %w", ctx.Err())
	}

	r.mu.Lock()
	archive.Events = r.events
	r.events = nil
	r.mu.Unlock()

	archive.Metadata.StoppedAt = time.Now()
	archive.Metadata.EventCount = len(archive.Events)

	if err := archive.WriteFile(path); err != nil {
		return err
	}

	r.bc.logger.Debug().
		Str("path", path).
		Int("events", len(archive.Events)).
		Msg("Trace archive written")
	return nil
}

// abort drops an unfinished recording without writing it
func (r *traceRecorder) abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return
	}
	r.started = false
	r.events = nil
	r.stopListen()
}
