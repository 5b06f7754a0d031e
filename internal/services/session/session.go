package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/uitest/internal/common"
	"github.com/ternarybob/uitest/internal/interfaces"
)

// releaseStepTimeout bounds each release step
const releaseStepTimeout = 10 * time.Second

// Resource names a level of the session ownership chain
type Resource string

const (
	ResourceEngine  Resource = "engine"
	ResourceBrowser Resource = "browser"
	ResourceContext Resource = "context"
	ResourcePage    Resource = "page"
)

// guard owns one acquired resource until the session is released
type guard struct {
	resource Resource
	release  func(ctx context.Context) error
}

// Session is the owned chain Engine -> Browser -> BrowserContext -> Page
// for a single test case.
type Session struct {
	ID       string
	TestName string

	engine  interfaces.Engine
	browser interfaces.Browser
	context interfaces.BrowserContext
	page    interfaces.Page
	tracing bool

	logger arbor.ILogger

	mu       sync.Mutex
	guards   []guard
	released bool
}

func newSession(id, testName string, logger arbor.ILogger) *Session {
	return &Session{
		ID:       id,
		TestName: testName,
		logger:   logger,
	}
}

// Engine returns the session engine (nil if never created)
func (s *Session) Engine() interfaces.Engine { return s.engine }

// Browser returns the session browser (nil if never launched)
func (s *Session) Browser() interfaces.Browser { return s.browser }

// Context returns the isolated browser context (nil if never created)
func (s *Session) Context() interfaces.BrowserContext { return s.context }

// Page returns the session page (nil if never opened)
func (s *Session) Page() interfaces.Page { return s.page }

// Tracing reports whether the context trace recorder was started
func (s *Session) Tracing() bool { return s.tracing }

// hold registers an acquired resource for release
func (s *Session) hold(resource Resource, release func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guards = append(s.guards, guard{resource: resource, release: release})
}

// Release closes everything the session acquired, most recent first:
// Page, Context, Browser, Engine. Every step runs even if an earlier one
// failed or panicked. Release is idempotent; later calls return nil.
func (s *Session) Release(ctx context.Context) error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	guards := s.guards
	s.guards = nil
	s.mu.Unlock()

	// Release must complete even when the test context was cancelled
	base := context.WithoutCancel(ctx)

	var errs []error
	for i := len(guards) - 1; i >= 0; i-- {
		g := guards[i]

		stepCtx, cancel := context.WithTimeout(base, releaseStepTimeout)
		err := common.SafeCall(s.logger, "release "+string(g.resource), func() error {
			return g.release(stepCtx)
		})
		cancel()

		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("resource", string(g.resource)).
				Msg("Failed to release resource")
			errs = append(errs, fmt.Errorf("release %s: %w", g.resource, err))
			continue
		}
		s.logger.Debug().
			Str("resource", string(g.resource)).
			Msg("Resource released")
	}

	return errors.Join(errs...)
}
