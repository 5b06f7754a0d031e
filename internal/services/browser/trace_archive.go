package browser

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// traceArchive is the zip layout written by the chromedp trace recorder:
//
//	trace.json      Chrome trace event format ({"traceEvents": [...]})
//	snapshot.html   sanitized DOM at stop time
//	screenshot.png  full-page screenshot at stop time
//	metadata.json   recording metadata
type traceArchive struct {
	Metadata   traceMetadata
	Events     []json.RawMessage
	Snapshot   string
	Screenshot []byte
}

type traceMetadata struct {
	Name       string    `json:"name,omitempty"`
	Engine     string    `json:"engine"`
	URL        string    `json:"url,omitempty"`
	Title      string    `json:"title,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	StoppedAt  time.Time `json:"stopped_at"`
	EventCount int       `json:"event_count"`
	Warnings   []string  `json:"warnings,omitempty"`
}

// WriteFile writes the archive to path, creating parent directories
func (a traceArchive) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create trace directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create trace archive: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	events := a.Events
	if events == nil {
		events = []json.RawMessage{}
	}
	trace, err := json.Marshal(struct {
		TraceEvents []json.RawMessage `json:"traceEvents"`
	}{events})
	if err != nil {
		return fmt.Errorf("failed to encode trace events: %w", err)
	}
	if err := writeZipEntry(zw, "trace.json", trace); err != nil {
		return err
	}

	if a.Snapshot != "" {
		if err := writeZipEntry(zw, "snapshot.html", []byte(a.Snapshot)); err != nil {
			return err
		}
	}
	if len(a.Screenshot) > 0 {
		if err := writeZipEntry(zw, "screenshot.png", a.Screenshot); err != nil {
			return err
		}
	}

	metadata, err := json.MarshalIndent(a.Metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode trace metadata: %w", err)
	}
	if err := writeZipEntry(zw, "metadata.json", metadata); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize trace archive: %w", err)
	}
	return f.Close()
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to add %s to trace archive: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s to trace archive: %w", name, err)
	}
	return nil
}

type domSnapshot struct {
	Title string
	HTML  string
}

// sanitizeSnapshot strips scripts and form values from a serialized document
func sanitizeSnapshot(html string) (domSnapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return domSnapshot{}, fmt.Errorf("failed to parse DOM snapshot: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("script, noscript").Remove()
	doc.Find("input[type='password']").RemoveAttr("value")

	out, err := doc.Html()
	if err != nil {
		return domSnapshot{}, fmt.Errorf("failed to render DOM snapshot: %w", err)
	}
	return domSnapshot{Title: title, HTML: out}, nil
}
