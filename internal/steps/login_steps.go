package steps

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/uitest/internal/lifecycle"
	"github.com/ternarybob/uitest/internal/pages"
)

// LoginSteps drives the login form.
type LoginSteps struct {
	*BaseSteps
	elements *pages.LoginPage
}

// NewLoginSteps creates login steps over the provider's page.
func NewLoginSteps(provider lifecycle.PageProvider, logger arbor.ILogger, opts ...Option) *LoginSteps {
	return &LoginSteps{
		BaseSteps: NewBaseSteps(provider, logger, opts...),
		elements:  pages.NewLoginPage(provider.Page()),
	}
}

// NavigateToLoginPage opens the base URL.
func (s *LoginSteps) NavigateToLoginPage(ctx context.Context) error {
	if err := s.Navigate(ctx, "/"); err != nil {
		return fmt.Errorf("navigate to login page: %w", err)
	}
	return nil
}

// Login submits the form and waits for the resulting page to settle.
func (s *LoginSteps) Login(ctx context.Context, username, password string) error {
	s.logger.Info().
		Str("username", username).
		Str("password", "***").
		Msg("Logging in")

	if err := s.TypeText(ctx, s.elements.UsernameInput(), username); err != nil {
		return fmt.Errorf("enter username: %w", err)
	}
	if err := s.TypeText(ctx, s.elements.PasswordInput(), password); err != nil {
		return fmt.Errorf("enter password: %w", err)
	}
	if err := s.ClickElement(ctx, s.elements.LoginButton()); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	if err := s.WaitForPageLoad(ctx); err != nil {
		return fmt.Errorf("wait after login: %w", err)
	}
	return nil
}

// IsLoggedIn reports whether the inventory header is showing.
func (s *LoginSteps) IsLoggedIn(ctx context.Context) (bool, error) {
	return s.IsElementVisible(ctx, s.elements.AppLogo())
}

// ErrorMessage returns the login error banner text. ok is false when no
// banner is showing.
func (s *LoginSteps) ErrorMessage(ctx context.Context) (msg string, ok bool, err error) {
	visible, err := s.IsElementVisible(ctx, s.elements.ErrorMessage())
	if err != nil || !visible {
		return "", false, err
	}
	msg, err = s.GetTextFromElement(ctx, s.elements.ErrorMessage())
	if err != nil {
		return "", false, err
	}
	return msg, true, nil
}
