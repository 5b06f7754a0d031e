package main

import (
	"github.com/ternarybob/uitest/internal/assertions"
	"github.com/ternarybob/uitest/internal/fixtures/loginapp"
	"github.com/ternarybob/uitest/internal/lifecycle"
	"github.com/ternarybob/uitest/internal/steps"
)

// scenario is one smoke test the runner can execute
type scenario struct {
	Name string
	Run  func(tc *lifecycle.TestCase)
}

// smokeSuite is the login smoke suite run by the CLI
func smokeSuite() []scenario {
	return []scenario{
		{Name: "Login_ValidCredentials", Run: loginWithValidCredentials},
		{Name: "Login_InvalidCredentials", Run: loginWithInvalidCredentials},
		{Name: "Login_LockedOutUser", Run: loginAsLockedOutUser},
	}
}

func loginWithValidCredentials(tc *lifecycle.TestCase) {
	ctx := tc.Context()
	cfg := tc.Config()
	login := steps.NewLoginSteps(tc, tc.Logger())
	check := assertions.New(tc)

	if err := login.NavigateToLoginPage(ctx); err != nil {
		tc.Fatalf("%v", err)
	}
	if err := login.Login(ctx, cfg.Username, cfg.Password); err != nil {
		tc.Fatalf("%v", err)
	}

	loggedIn, err := login.IsLoggedIn(ctx)
	check.NoError(err)
	check.IsTrue(loggedIn, "user should be logged in successfully")
}

func loginWithInvalidCredentials(tc *lifecycle.TestCase) {
	ctx := tc.Context()
	login := steps.NewLoginSteps(tc, tc.Logger())
	check := assertions.New(tc)

	if err := login.NavigateToLoginPage(ctx); err != nil {
		tc.Fatalf("%v", err)
	}
	if err := login.Login(ctx, "invalid_user", "invalid_password"); err != nil {
		tc.Fatalf("%v", err)
	}

	loggedIn, err := login.IsLoggedIn(ctx)
	check.NoError(err)
	check.IsFalse(loggedIn, "user should not be logged in with invalid credentials")

	msg, shown, err := login.ErrorMessage(ctx)
	check.NoError(err)
	check.IsTrue(shown, "error message should be displayed")
	check.StartsWith("Epic sadface:", msg)
}

func loginAsLockedOutUser(tc *lifecycle.TestCase) {
	ctx := tc.Context()
	cfg := tc.Config()
	login := steps.NewLoginSteps(tc, tc.Logger())
	check := assertions.New(tc)

	if err := login.NavigateToLoginPage(ctx); err != nil {
		tc.Fatalf("%v", err)
	}
	if err := login.Login(ctx, "locked_out_user", cfg.Password); err != nil {
		tc.Fatalf("%v", err)
	}

	msg, shown, err := login.ErrorMessage(ctx)
	check.NoError(err)
	check.IsTrue(shown, "locked out banner should be displayed")
	check.AreEqual(loginapp.ErrLockedOut, msg)
}
