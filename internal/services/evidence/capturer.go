package evidence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/uitest/internal/common"
	"github.com/ternarybob/uitest/internal/interfaces"
	"github.com/ternarybob/uitest/internal/models"
)

// TimestampFormat is the timestamp embedded in artifact file names
const TimestampFormat = "20060102_150405"

// Attachment labels used in the report
const (
	LabelScreenshot   = "Screenshot"
	LabelTrace        = "Trace"
	LabelErrorDetails = "Error Details"
)

// Capturer writes failure evidence for a test case and attaches it to the report
type Capturer struct {
	artifactsDir      string
	captureScreenshot bool
	captureTrace      bool
	sink              interfaces.ReportSink
	logger            arbor.ILogger
	now               func() time.Time
}

// Option configures a Capturer
type Option func(*Capturer)

// WithClock replaces the clock used for artifact timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Capturer) { c.now = now }
}

// NewCapturer creates a capturer. sink may be nil, in which case artifacts
// are written but not attached.
func NewCapturer(config common.Config, sink interfaces.ReportSink, logger arbor.ILogger, opts ...Option) *Capturer {
	c := &Capturer{
		artifactsDir:      config.ArtifactsDir,
		captureScreenshot: config.CaptureScreenshotOnFailure,
		captureTrace:      config.CaptureTraceOnFailure,
		sink:              sink,
		logger:            logger,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether any capture flag is on
func (c *Capturer) Enabled() bool {
	return c.captureScreenshot || c.captureTrace
}

// CaptureOnFailure writes evidence for a failed outcome. Non-failed outcomes
// produce nothing. The screenshot, trace and error detail captures are
// independent: a failure in one is logged and never stops the others.
// page and bctx may be nil when the session never got that far.
func (c *Capturer) CaptureOnFailure(ctx context.Context, testName string, page interfaces.Page, bctx interfaces.BrowserContext, outcome models.TestOutcome) []models.EvidenceArtifact {
	if !outcome.Failed() {
		return nil
	}

	base := fmt.Sprintf("%s_%s", SanitizeName(testName), c.now().Format(TimestampFormat))
	var artifacts []models.EvidenceArtifact

	capture := func(kind models.EvidenceKind, fn func() (models.EvidenceArtifact, error)) {
		var artifact models.EvidenceArtifact
		err := common.SafeCall(c.logger, "capture "+kind.String(), func() error {
			var err error
			artifact, err = fn()
			return err
		})
		if err != nil {
			c.logger.Warn().
				Err(err).
				Str("test", testName).
				Str("kind", kind.String()).
				Msg("Failed to capture evidence")
			return
		}
		artifacts = append(artifacts, artifact)
		c.logger.Info().
			Str("test", testName).
			Str("kind", kind.String()).
			Str("path", artifact.Path).
			Bool("attached", artifact.Attached).
			Msg("Evidence captured")
	}

	if c.captureScreenshot && page != nil {
		capture(models.EvidenceScreenshot, func() (models.EvidenceArtifact, error) {
			return c.captureScreenshotFile(ctx, testName, base, page)
		})
	}
	if c.captureTrace && bctx != nil {
		capture(models.EvidenceTrace, func() (models.EvidenceArtifact, error) {
			return c.captureTraceFile(ctx, testName, base, bctx)
		})
	}
	if outcome.Message != "" {
		capture(models.EvidenceErrorDetail, func() (models.EvidenceArtifact, error) {
			return c.captureErrorDetail(testName, base, outcome)
		})
	}

	return artifacts
}

// ArtifactPath returns the path an artifact of kind is written to
func (c *Capturer) ArtifactPath(kind models.EvidenceKind, base string) string {
	var name string
	switch kind {
	case models.EvidenceScreenshot:
		name = base + ".png"
	case models.EvidenceTrace:
		name = base + ".zip"
	case models.EvidenceErrorDetail:
		name = base + "_error.txt"
	default:
		name = base
	}
	return filepath.Join(c.artifactsDir, kind.Dir(), name)
}

func (c *Capturer) captureScreenshotFile(ctx context.Context, testName, base string, page interfaces.Page) (models.EvidenceArtifact, error) {
	path := c.ArtifactPath(models.EvidenceScreenshot, base)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return models.EvidenceArtifact{}, fmt.Errorf("failed to create screenshots directory: %w", err)
	}

	data, err := page.Screenshot(ctx, models.ScreenshotOptions{FullPage: true, Path: path})
	if err != nil {
		return models.EvidenceArtifact{}, err
	}

	artifact := models.EvidenceArtifact{Kind: models.EvidenceScreenshot, Path: path}
	artifact.Attached = c.attachFile(testName, path, LabelScreenshot)
	if c.sink != nil && len(data) > 0 {
		if err := c.sink.AttachBytes(testName, LabelScreenshot, "image/png", data); err != nil {
			c.logger.Warn().Err(err).Str("test", testName).Msg("Failed to attach inline screenshot")
		}
	}
	return artifact, nil
}

func (c *Capturer) captureTraceFile(ctx context.Context, testName, base string, bctx interfaces.BrowserContext) (models.EvidenceArtifact, error) {
	path := c.ArtifactPath(models.EvidenceTrace, base)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return models.EvidenceArtifact{}, fmt.Errorf("failed to create traces directory: %w", err)
	}

	if err := bctx.Tracing().Stop(ctx, path); err != nil {
		return models.EvidenceArtifact{}, err
	}

	artifact := models.EvidenceArtifact{Kind: models.EvidenceTrace, Path: path}
	artifact.Attached = c.attachFile(testName, path, LabelTrace)
	return artifact, nil
}

func (c *Capturer) captureErrorDetail(testName, base string, outcome models.TestOutcome) (models.EvidenceArtifact, error) {
	path := c.ArtifactPath(models.EvidenceErrorDetail, base)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return models.EvidenceArtifact{}, fmt.Errorf("failed to create errors directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(FormatErrorDetail(outcome)), 0644); err != nil {
		return models.EvidenceArtifact{}, fmt.Errorf("failed to write error detail: %w", err)
	}

	artifact := models.EvidenceArtifact{Kind: models.EvidenceErrorDetail, Path: path}
	artifact.Attached = c.attachFile(testName, path, LabelErrorDetails)
	return artifact, nil
}

func (c *Capturer) attachFile(testName, path, label string) bool {
	if c.sink == nil {
		return false
	}
	if err := c.sink.AttachFile(testName, path, label); err != nil {
		c.logger.Warn().
			Err(err).
			Str("test", testName).
			Str("label", label).
			Msg("Failed to attach evidence")
		return false
	}
	return true
}

// FormatErrorDetail renders the error detail file content
func FormatErrorDetail(outcome models.TestOutcome) string {
	return fmt.Sprintf("Message: %s\n\nStack Trace: %s", outcome.Message, outcome.StackTrace)
}

var nameReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", " ", "_", ":", "_",
	"*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
)

// SanitizeName makes a test name safe for use in a file name
func SanitizeName(testName string) string {
	name := nameReplacer.Replace(strings.TrimSpace(testName))
	if name == "" {
		return "unnamed"
	}
	return name
}
