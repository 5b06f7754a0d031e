// Package fake provides a scriptable in-memory browser engine. It records
// every call in order and lets tests inject errors, panics and element
// behaviour without a real browser.
package fake

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ternarybob/uitest/internal/interfaces"
	"github.com/ternarybob/uitest/internal/models"
)

// Operation names recorded by the fake and accepted by Fail and PanicOn
const (
	OpCreateEngine  = "engine.create"
	OpLaunch        = "browser.launch"
	OpNewContext    = "context.create"
	OpTraceStart    = "tracing.start"
	OpTraceStop     = "tracing.stop"
	OpNewPage       = "page.create"
	OpGoto          = "page.goto"
	OpWaitLoad      = "page.wait_load"
	OpScreenshot    = "page.screenshot"
	OpClosePage     = "page.close"
	OpCloseContext  = "context.close"
	OpCloseBrowser  = "browser.close"
	OpDisposeEngine = "engine.dispose"
	OpClick         = "locator.click"
	OpFill          = "locator.fill"
)

// PNG is the image returned by Screenshot
var PNG = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// Element is the scripted state of a selector
type Element struct {
	Visible bool
	Enabled bool
	Text    string
	Value   string

	// EnabledAfter reports disabled for this many IsEnabled calls first
	EnabledAfter int
	// VisibleAfter keeps the element hidden for this long after the first wait
	VisibleAfter time.Duration

	enabledPolls int
	firstWait    time.Time
}

// Script is shared by every object one fake engine creates
type Script struct {
	mu          sync.Mutex
	calls       []string
	errs        map[string]error
	panics      map[string]string
	gotoResults []error
	gotoURLs    []string
	elements    map[string]*Element
	onClick     map[string]func(*Script)
	url         string

	LaunchOptions  models.LaunchOptions
	ContextOptions models.ContextOptions
	TraceOptions   models.TraceStartOptions
	TracePaths     []string
}

// NewScript creates an empty script
func NewScript() *Script {
	return &Script{
		errs:     make(map[string]error),
		panics:   make(map[string]string),
		elements: make(map[string]*Element),
		onClick:  make(map[string]func(*Script)),
		url:      "about:blank",
	}
}

// Fail makes every call of op return err
func (s *Script) Fail(op string, err error) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[op] = err
	return s
}

// PanicOn makes every call of op panic with msg
func (s *Script) PanicOn(op, msg string) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panics[op] = msg
	return s
}

// GotoResults scripts the result of successive Goto calls. Calls beyond the
// list succeed.
func (s *Script) GotoResults(results ...error) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gotoResults = results
	return s
}

// SetElement registers the state of a selector
func (s *Script) SetElement(selector string, el *Element) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements[selector] = el
	return s
}

// Element returns the scripted element for selector, or nil
func (s *Script) Element(selector string) *Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elements[selector]
}

// OnClick runs fn whenever selector is clicked
func (s *Script) OnClick(selector string, fn func(*Script)) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClick[selector] = fn
	return s
}

// SetURL sets the page URL reported by Page.URL
func (s *Script) SetURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = url
}

// Calls returns the recorded operations in call order
func (s *Script) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Count returns how often op was called
func (s *Script) Count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == op {
			n++
		}
	}
	return n
}

// GotoURLs returns the URLs passed to Goto in call order
func (s *Script) GotoURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.gotoURLs...)
}

// Factory returns an engine factory backed by this script
func (s *Script) Factory() interfaces.EngineFactory {
	return func(ctx context.Context) (interfaces.Engine, error) {
		if err := s.enter(OpCreateEngine); err != nil {
			return nil, err
		}
		return &Engine{script: s}, nil
	}
}

// Page returns a page bound to this script without walking the session
// chain. No operations are recorded for its creation.
func (s *Script) Page() *Page {
	return &Page{script: s}
}

// enter records op, then applies any scripted panic or error
func (s *Script) enter(op string) error {
	s.mu.Lock()
	s.calls = append(s.calls, op)
	msg, panics := s.panics[op]
	err := s.errs[op]
	s.mu.Unlock()

	if panics {
		panic(msg)
	}
	return err
}

// Engine is the fake engine
type Engine struct {
	script *Script
}

func (e *Engine) Name() string { return "fake" }

func (e *Engine) Launch(ctx context.Context, opts models.LaunchOptions) (interfaces.Browser, error) {
	if err := e.script.enter(OpLaunch); err != nil {
		return nil, err
	}
	e.script.mu.Lock()
	e.script.LaunchOptions = opts
	e.script.mu.Unlock()
	return &Browser{script: e.script}, nil
}

func (e *Engine) Dispose() error {
	return e.script.enter(OpDisposeEngine)
}

// Browser is the fake browser
type Browser struct {
	script *Script
}

func (b *Browser) NewContext(ctx context.Context, opts models.ContextOptions) (interfaces.BrowserContext, error) {
	if err := b.script.enter(OpNewContext); err != nil {
		return nil, err
	}
	b.script.mu.Lock()
	b.script.ContextOptions = opts
	b.script.mu.Unlock()
	return &BrowserContext{script: b.script, tracing: &Tracing{script: b.script}}, nil
}

func (b *Browser) Close(ctx context.Context) error {
	return b.script.enter(OpCloseBrowser)
}

// BrowserContext is the fake context
type BrowserContext struct {
	script  *Script
	tracing *Tracing
}

func (c *BrowserContext) NewPage(ctx context.Context) (interfaces.Page, error) {
	if err := c.script.enter(OpNewPage); err != nil {
		return nil, err
	}
	return &Page{script: c.script}, nil
}

func (c *BrowserContext) Tracing() interfaces.Tracing {
	return c.tracing
}

func (c *BrowserContext) Close(ctx context.Context) error {
	return c.script.enter(OpCloseContext)
}

// Tracing is the fake trace recorder. Stop writes a placeholder archive.
type Tracing struct {
	script  *Script
	mu      sync.Mutex
	started bool
}

func (t *Tracing) Start(ctx context.Context, opts models.TraceStartOptions) error {
	if err := t.script.enter(OpTraceStart); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = true
	t.script.mu.Lock()
	t.script.TraceOptions = opts
	t.script.mu.Unlock()
	return nil
}

func (t *Tracing) Stop(ctx context.Context, path string) error {
	if err := t.script.enter(OpTraceStop); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return fmt.Errorf("tracing not started")
	}
	t.started = false

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte("PK fake trace"), 0644); err != nil {
		return err
	}
	t.script.mu.Lock()
	t.script.TracePaths = append(t.script.TracePaths, path)
	t.script.mu.Unlock()
	return nil
}

// Page is the fake page
type Page struct {
	script *Script
}

func (p *Page) Goto(ctx context.Context, url string, opts models.GotoOptions) error {
	if err := p.script.enter(OpGoto); err != nil {
		return err
	}
	s := p.script
	s.mu.Lock()
	defer s.mu.Unlock()

	attempt := len(s.gotoURLs)
	s.gotoURLs = append(s.gotoURLs, url)
	if attempt < len(s.gotoResults) && s.gotoResults[attempt] != nil {
		return s.gotoResults[attempt]
	}
	s.url = url
	return nil
}

func (p *Page) WaitForLoadState(ctx context.Context, state models.LoadState, timeout time.Duration) error {
	return p.script.enter(OpWaitLoad)
}

func (p *Page) Locator(selector string) interfaces.Locator {
	return &Locator{script: p.script, selector: selector}
}

func (p *Page) Screenshot(ctx context.Context, opts models.ScreenshotOptions) ([]byte, error) {
	if err := p.script.enter(OpScreenshot); err != nil {
		return nil, err
	}
	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(opts.Path, PNG, 0644); err != nil {
			return nil, err
		}
	}
	return append([]byte(nil), PNG...), nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	p.script.mu.Lock()
	defer p.script.mu.Unlock()
	return p.script.url, nil
}

func (p *Page) Close(ctx context.Context) error {
	return p.script.enter(OpClosePage)
}

// Locator is the fake locator
type Locator struct {
	script   *Script
	selector string
}

func (l *Locator) Selector() string { return l.selector }

// visible reports whether the element is currently visible
func (l *Locator) visible() (exists, visible bool) {
	l.script.mu.Lock()
	defer l.script.mu.Unlock()

	el, ok := l.script.elements[l.selector]
	if !ok {
		return false, false
	}
	if el.firstWait.IsZero() {
		el.firstWait = time.Now()
	}
	if el.VisibleAfter > 0 && time.Since(el.firstWait) >= el.VisibleAfter {
		el.Visible = true
	}
	return true, el.Visible
}

func (l *Locator) WaitFor(ctx context.Context, opts models.WaitForOptions) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()

	for {
		exists, visible := l.visible()
		switch opts.State {
		case models.ElementAttached:
			if exists {
				return nil
			}
		case models.ElementHidden:
			if !visible {
				return nil
			}
		default:
			if visible {
				return nil
			}
		}

		select {
		case <-tick.C:
		case <-deadline.C:
			return fmt.Errorf("%w: %s not %s after %s", interfaces.ErrTimeout, l.selector, opts.State, timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Locator) IsEnabled(ctx context.Context) (bool, error) {
	l.script.mu.Lock()
	defer l.script.mu.Unlock()

	el, ok := l.script.elements[l.selector]
	if !ok {
		return false, fmt.Errorf("no element matches %s", l.selector)
	}
	if el.enabledPolls < el.EnabledAfter {
		el.enabledPolls++
		return false, nil
	}
	return el.Enabled, nil
}

func (l *Locator) Click(ctx context.Context) error {
	if err := l.script.enter(OpClick); err != nil {
		return err
	}
	l.script.mu.Lock()
	_, ok := l.script.elements[l.selector]
	fn := l.script.onClick[l.selector]
	l.script.mu.Unlock()

	if !ok {
		return fmt.Errorf("no element matches %s", l.selector)
	}
	if fn != nil {
		fn(l.script)
	}
	return nil
}

func (l *Locator) Fill(ctx context.Context, text string) error {
	if err := l.script.enter(OpFill); err != nil {
		return err
	}
	l.script.mu.Lock()
	defer l.script.mu.Unlock()

	el, ok := l.script.elements[l.selector]
	if !ok {
		return fmt.Errorf("no element matches %s", l.selector)
	}
	el.Value = text
	return nil
}

func (l *Locator) TextContent(ctx context.Context) (string, error) {
	l.script.mu.Lock()
	defer l.script.mu.Unlock()

	el, ok := l.script.elements[l.selector]
	if !ok {
		return "", fmt.Errorf("no element matches %s", l.selector)
	}
	return el.Text, nil
}
