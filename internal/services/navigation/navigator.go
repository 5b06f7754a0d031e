package navigation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/uitest/internal/common"
	"github.com/ternarybob/uitest/internal/interfaces"
	"github.com/ternarybob/uitest/internal/models"
)

// Navigation defaults
const (
	DefaultRetryCount = 3
	DefaultRetryDelay = 1000 * time.Millisecond
	DefaultTimeout    = 30 * time.Second

	// MaxJitter bounds the random delay added to every backoff
	MaxJitter = 1000 * time.Millisecond
)

// Error reports that every navigation attempt failed. It unwraps to the
// cause of the last attempt.
type Error struct {
	URL      string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("Failed to navigate to %s after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Options configures one Navigate call
type Options struct {
	RetryCount int
	RetryDelay time.Duration
	Timeout    time.Duration
	WaitUntil  models.LoadState
}

// Option modifies navigation options
type Option func(*Options)

// WithRetryCount sets the number of attempts. Values below 1 mean 1.
func WithRetryCount(n int) Option {
	return func(o *Options) { o.RetryCount = n }
}

// WithRetryDelay sets the base delay between attempts
func WithRetryDelay(d time.Duration) Option {
	return func(o *Options) { o.RetryDelay = d }
}

// WithTimeout sets the per-attempt navigation timeout
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithWaitUntil sets the load state each attempt waits for
func WithWaitUntil(state models.LoadState) Option {
	return func(o *Options) { o.WaitUntil = state }
}

// DefaultOptions returns the navigation defaults
func DefaultOptions() Options {
	return Options{
		RetryCount: DefaultRetryCount,
		RetryDelay: DefaultRetryDelay,
		Timeout:    DefaultTimeout,
		WaitUntil:  models.LoadStateNetworkIdle,
	}
}

// Navigator loads pages with bounded retries and jittered backoff
type Navigator struct {
	baseURL string
	logger  arbor.ILogger
	sleep   func(ctx context.Context, d time.Duration) error
	jitter  func(limit time.Duration) time.Duration
}

// NavigatorOption configures a Navigator
type NavigatorOption func(*Navigator)

// WithSleep replaces the backoff sleep
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) NavigatorOption {
	return func(n *Navigator) { n.sleep = sleep }
}

// WithJitter replaces the jitter source; it must return a value in [0, limit)
func WithJitter(jitter func(limit time.Duration) time.Duration) NavigatorOption {
	return func(n *Navigator) { n.jitter = jitter }
}

// NewNavigator creates a navigator resolving relative targets against baseURL
func NewNavigator(baseURL string, logger arbor.ILogger, opts ...NavigatorOption) *Navigator {
	n := &Navigator{
		baseURL: baseURL,
		logger:  logger,
		sleep:   sleepContext,
		jitter:  randomJitter,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Navigate loads target in page. An empty target loads the base URL.
// Before every attempt after the first it waits RetryDelay plus a random
// jitter in [0, MaxJitter). The first successful attempt returns nil; after
// the last failed attempt a *Error is returned.
func (n *Navigator) Navigate(ctx context.Context, page interfaces.Page, target string, opts ...Option) error {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.RetryCount < 1 {
		options.RetryCount = 1
	}

	url, err := common.ResolveURL(n.baseURL, target)
	if err != nil {
		return err
	}

	gotoOpts := models.GotoOptions{
		Timeout:   options.Timeout,
		WaitUntil: options.WaitUntil,
	}

	var lastErr error
	for attempt := 0; attempt < options.RetryCount; attempt++ {
		if attempt > 0 {
			backoff := options.RetryDelay + n.jitter(MaxJitter)
			n.logger.Debug().
				Str("url", url).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Msg("Retrying navigation after backoff")

			if err := n.sleep(ctx, backoff); err != nil {
				return fmt.Errorf("navigation to %s cancelled after %d attempts: %w", url, attempt, err)
			}
		}

		lastErr = page.Goto(ctx, url, gotoOpts)
		if lastErr == nil {
			n.logger.Debug().
				Str("url", url).
				Int("attempt", attempt+1).
				Msg("Navigation succeeded")
			return nil
		}

		n.logger.Warn().
			Err(lastErr).
			Str("url", url).
			Int("attempt", attempt+1).
			Int("max_attempts", options.RetryCount).
			Msg("Navigation attempt failed")

		if ctx.Err() != nil {
			return fmt.Errorf("navigation to %s cancelled after %d attempts: %w", url, attempt+1, ctx.Err())
		}
	}

	return &Error{URL: url, Attempts: options.RetryCount, Err: lastErr}
}

// WaitForPageLoad waits for DOMContentLoaded and then network idle
func (n *Navigator) WaitForPageLoad(ctx context.Context, page interfaces.Page, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if err := page.WaitForLoadState(ctx, models.LoadStateDOMContentLoaded, timeout); err != nil {
		return fmt.Errorf("waiting for DOMContentLoaded: %w", err)
	}
	if err := page.WaitForLoadState(ctx, models.LoadStateNetworkIdle, timeout); err != nil {
		return fmt.Errorf("waiting for network idle: %w", err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return rand.N(limit)
}
