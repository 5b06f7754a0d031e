// Package loginapp serves a local copy of the saucedemo login flow so the
// end-to-end suite can run without network access.
package loginapp

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
)

//go:embed pages/*.html
var pageFS embed.FS

// Login error banners, matching the real site
const (
	ErrUsernameRequired = "Epic sadface: Username is required"
	ErrPasswordRequired = "Epic sadface: Password is required"
	ErrLockedOut        = "Epic sadface: Sorry, this user has been locked out."
	ErrNoMatch          = "Epic sadface: Username and password do not match any user in this service"
)

const (
	// Title is shown in the login logo and the inventory header
	Title = "Swag Labs"

	sessionCookie = "session-username"
)

// Options configures the fixture
type Options struct {
	// Password accepted for every known user. Defaults to "secret_sauce".
	Password string
	// Users maps accepted usernames to whether they are locked out.
	// Defaults to standard_user and locked_out_user.
	Users map[string]bool
	// Latency delays every API response, to exercise network-idle waits.
	Latency time.Duration
}

func (o Options) withDefaults() Options {
	if o.Password == "" {
		o.Password = "secret_sauce"
	}
	if o.Users == nil {
		o.Users = map[string]bool{
			"standard_user":   false,
			"locked_out_user": true,
		}
	}
	return o
}

// Server is a running fixture
type Server struct {
	opts      Options
	logger    arbor.ILogger
	templates *template.Template
	listener  net.Listener
	server    *http.Server
	done      chan error
}

// New builds the fixture without starting it. Use Handler with httptest,
// or Start to listen on a real port.
func New(opts Options, logger arbor.ILogger) (*Server, error) {
	tmpl, err := template.ParseFS(pageFS, "pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse fixture pages: %w", err)
	}
	return &Server{
		opts:      opts.withDefaults(),
		logger:    logger,
		templates: tmpl,
	}, nil
}

// Handler returns the fixture's routes wrapped in logging and recovery.
func (s *Server) Handler() http.Handler {
	return s.withMiddleware(s.routes())
}

// Start listens on addr ("127.0.0.1:0" picks a free port) and serves in
// the background until Shutdown.
func (s *Server) Start(addr string) error {
	if s.server != nil {
		return errors.New("fixture already started")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.done = make(chan error, 1)

	go func() {
		err := s.server.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()

	s.logger.Info().Str("url", s.URL()).Msg("Login fixture started")
	return nil
}

// URL is the base URL of a started fixture
func (s *Server) URL() string {
	if s.listener == nil {
		return ""
	}
	return "http://" + s.listener.Addr().String()
}

// Shutdown stops a started fixture
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("fixture shutdown failed: %w", err)
	}
	err := <-s.done
	s.server = nil
	s.logger.Info().Msg("Login fixture stopped")
	return err
}
