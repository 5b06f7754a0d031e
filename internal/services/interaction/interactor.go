package interaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/uitest/internal/interfaces"
	"github.com/ternarybob/uitest/internal/models"
)

// Interaction defaults
const (
	DefaultTimeout           = 10 * time.Second
	DefaultPollInterval      = 100 * time.Millisecond
	DefaultVisibilityTimeout = 5 * time.Second
)

// Condition names the element state a wait was blocked on
type Condition string

const (
	ConditionVisible Condition = "visible"
	ConditionEnabled Condition = "enabled"
)

// TimeoutError reports an element that did not reach a condition in time
type TimeoutError struct {
	Selector  string
	Condition Condition
	Timeout   time.Duration
	Err       error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("element %s not %s within %s", e.Selector, e.Condition, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// Interactor performs element waits and actions with bounded timeouts
type Interactor struct {
	timeout           time.Duration
	pollInterval      time.Duration
	visibilityTimeout time.Duration
	logger            arbor.ILogger
}

// Option configures an Interactor
type Option func(*Interactor)

// WithTimeout sets the default wait timeout
func WithTimeout(d time.Duration) Option {
	return func(i *Interactor) { i.timeout = d }
}

// WithPollInterval sets the enablement poll interval
func WithPollInterval(d time.Duration) Option {
	return func(i *Interactor) { i.pollInterval = d }
}

// WithVisibilityTimeout sets the IsVisible wait timeout
func WithVisibilityTimeout(d time.Duration) Option {
	return func(i *Interactor) { i.visibilityTimeout = d }
}

// NewInteractor creates an interactor with the default timeouts
func NewInteractor(logger arbor.ILogger, opts ...Option) *Interactor {
	i := &Interactor{
		timeout:           DefaultTimeout,
		pollInterval:      DefaultPollInterval,
		visibilityTimeout: DefaultVisibilityTimeout,
		logger:            logger,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Interactor) timeoutOrDefault(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return i.timeout
	}
	return timeout
}

// WaitVisible waits until the element is visible. A zero timeout uses the default.
func (i *Interactor) WaitVisible(ctx context.Context, loc interfaces.Locator, timeout time.Duration) error {
	timeout = i.timeoutOrDefault(timeout)
	err := loc.WaitFor(ctx, models.WaitForOptions{State: models.ElementVisible, Timeout: timeout})
	if err == nil {
		return nil
	}
	if isTimeout(err) {
		return &TimeoutError{Selector: loc.Selector(), Condition: ConditionVisible, Timeout: timeout, Err: err}
	}
	return fmt.Errorf("waiting for %s: %w", loc.Selector(), err)
}

// WaitEnabled waits until the element is visible and then polls until it
// is enabled. Both phases share one timeout.
func (i *Interactor) WaitEnabled(ctx context.Context, loc interfaces.Locator, timeout time.Duration) error {
	timeout = i.timeoutOrDefault(timeout)
	start := time.Now()

	if err := i.WaitVisible(ctx, loc, timeout); err != nil {
		return err
	}

	pollCtx, cancel := context.WithTimeout(ctx, timeout-time.Since(start))
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(i.pollInterval), 1)
	for {
		enabled, err := loc.IsEnabled(pollCtx)
		if err != nil && !isTimeout(err) && pollCtx.Err() == nil {
			return fmt.Errorf("checking %s enabled: %w", loc.Selector(), err)
		}
		if err == nil && enabled {
			return nil
		}

		if err := limiter.Wait(pollCtx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &TimeoutError{
				Selector:  loc.Selector(),
				Condition: ConditionEnabled,
				Timeout:   timeout,
				Err:       fmt.Errorf("%w: %v", interfaces.ErrTimeout, err),
			}
		}
	}
}

// Click waits for visibility, then clicks
func (i *Interactor) Click(ctx context.Context, loc interfaces.Locator) error {
	if err := i.WaitVisible(ctx, loc, 0); err != nil {
		return err
	}
	if err := loc.Click(ctx); err != nil {
		return fmt.Errorf("clicking %s: %w", loc.Selector(), err)
	}
	i.logger.Debug().Str("selector", loc.Selector()).Msg("Clicked element")
	return nil
}

// Type waits for visibility, then replaces the element value with text
func (i *Interactor) Type(ctx context.Context, loc interfaces.Locator, text string) error {
	if err := i.WaitVisible(ctx, loc, 0); err != nil {
		return err
	}
	if err := loc.Fill(ctx, text); err != nil {
		return fmt.Errorf("typing into %s: %w", loc.Selector(), err)
	}
	i.logger.Debug().Str("selector", loc.Selector()).Msg("Typed into element")
	return nil
}

// GetText waits for visibility and returns the text content. Missing text
// reads as "".
func (i *Interactor) GetText(ctx context.Context, loc interfaces.Locator) (string, error) {
	if err := i.WaitVisible(ctx, loc, 0); err != nil {
		return "", err
	}
	text, err := loc.TextContent(ctx)
	if err != nil {
		return "", fmt.Errorf("reading text of %s: %w", loc.Selector(), err)
	}
	return text, nil
}

// IsVisible waits up to the visibility timeout. A timeout is a
// normal false result; any other failure is returned.
func (i *Interactor) IsVisible(ctx context.Context, loc interfaces.Locator) (bool, error) {
	err := loc.WaitFor(ctx, models.WaitForOptions{State: models.ElementVisible, Timeout: i.visibilityTimeout})
	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case isTimeout(err):
		return false, nil
	default:
		return false, fmt.Errorf("probing %s: %w", loc.Selector(), err)
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, interfaces.ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
