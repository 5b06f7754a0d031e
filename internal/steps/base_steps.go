package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/uitest/internal/interfaces"
	"github.com/ternarybob/uitest/internal/lifecycle"
	"github.com/ternarybob/uitest/internal/models"
	"github.com/ternarybob/uitest/internal/services/interaction"
	"github.com/ternarybob/uitest/internal/services/navigation"
)

// BaseSteps is embedded by every step type. It reaches the browser only
// through a lifecycle.PageProvider.
type BaseSteps struct {
	provider   lifecycle.PageProvider
	navigator  *navigation.Navigator
	interactor *interaction.Interactor
	logger     arbor.ILogger
}

// Option configures BaseSteps
type Option func(*BaseSteps)

// WithNavigator replaces the navigator built from the provider's config.
func WithNavigator(n *navigation.Navigator) Option {
	return func(s *BaseSteps) { s.navigator = n }
}

// WithInteractor replaces the default interactor.
func WithInteractor(i *interaction.Interactor) Option {
	return func(s *BaseSteps) { s.interactor = i }
}

// helperProvider is implemented by providers that carry configured helpers,
// such as *lifecycle.TestCase.
type helperProvider interface {
	Navigator() *navigation.Navigator
	Interactor() *interaction.Interactor
}

// NewBaseSteps creates the shared step helpers for provider. Unless options
// replace them, the provider's own navigator and interactor are used when it
// has them, and defaults otherwise.
func NewBaseSteps(provider lifecycle.PageProvider, logger arbor.ILogger, opts ...Option) *BaseSteps {
	s := &BaseSteps{
		provider: provider,
		logger:   logger,
	}
	if hp, ok := provider.(helperProvider); ok {
		s.navigator = hp.Navigator()
		s.interactor = hp.Interactor()
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.navigator == nil {
		s.navigator = navigation.NewNavigator(provider.Config().BaseURL, logger)
	}
	if s.interactor == nil {
		s.interactor = interaction.NewInteractor(logger)
	}
	return s
}

func (s *BaseSteps) page() interfaces.Page { return s.provider.Page() }

// Navigate loads target, relative to the base URL, with retries.
func (s *BaseSteps) Navigate(ctx context.Context, target string, opts ...navigation.Option) error {
	return s.navigator.Navigate(ctx, s.page(), target, opts...)
}

// WaitForPageLoad waits for DOMContentLoaded and then network idle.
func (s *BaseSteps) WaitForPageLoad(ctx context.Context) error {
	return s.navigator.WaitForPageLoad(ctx, s.page(), s.provider.Config().Timeout)
}

// TakeScreenshot captures the full page. A non-empty path also writes the PNG there.
func (s *BaseSteps) TakeScreenshot(ctx context.Context, path string) ([]byte, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create screenshot directory: %w", err)
		}
	}
	data, err := s.page().Screenshot(ctx, models.ScreenshotOptions{FullPage: true, Path: path})
	if err != nil {
		return nil, fmt.Errorf("failed to take screenshot: %w", err)
	}
	return data, nil
}

// IsElementVisible reports whether the element is visible; a timeout reports false.
func (s *BaseSteps) IsElementVisible(ctx context.Context, loc interfaces.Locator) (bool, error) {
	return s.interactor.IsVisible(ctx, loc)
}

// WaitForElementVisible waits up to the interactor's default timeout.
func (s *BaseSteps) WaitForElementVisible(ctx context.Context, loc interfaces.Locator) error {
	return s.interactor.WaitVisible(ctx, loc, 0)
}

// ClickElement waits for the element to be visible, then clicks it.
func (s *BaseSteps) ClickElement(ctx context.Context, loc interfaces.Locator) error {
	return s.interactor.Click(ctx, loc)
}

// TypeText waits for the element to be visible, then replaces its value with text.
func (s *BaseSteps) TypeText(ctx context.Context, loc interfaces.Locator, text string) error {
	return s.interactor.Type(ctx, loc, text)
}

// GetTextFromElement returns the element's text once it is visible.
func (s *BaseSteps) GetTextFromElement(ctx context.Context, loc interfaces.Locator) (string, error) {
	return s.interactor.GetText(ctx, loc)
}
