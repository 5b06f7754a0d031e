package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/uitest/internal/models"
)

// JUnit XML schema, as consumed by CI test reporters.

type junitDocument struct {
	XMLName xml.Name         `xml:"testsuites"`
	Suites  []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Skipped    int             `xml:"skipped,attr"`
	Time       string          `xml:"time,attr"`
	Properties []junitProperty `xml:"properties>property,omitempty"`
	TestCases  []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Classname string        `xml:"classname,attr"`
	Name      string        `xml:"name,attr"`
	Time      string        `xml:"time,attr"`
	Skipped   *junitSkipped `xml:"skipped,omitempty"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type junitSkipped struct {
	Message string `xml:"message,attr"`
}

type junitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type junitFailure struct {
	Message  string `xml:"message,attr"`
	Type     string `xml:"type,attr"`
	Contents string `xml:",chardata"`
}

// Suite is the input to WriteJUnit: one named group of outcomes plus the
// attachments recorded for them, keyed by test name.
type Suite struct {
	Name        string
	Properties  map[string]string
	Records     []models.TestRecord
	Attachments map[string][]models.Attachment
}

// BuildSuite collects every outcome and attachment in the store.
func (s *Store) BuildSuite(name string, properties map[string]string) (Suite, error) {
	recs, err := s.Records()
	if err != nil {
		return Suite{}, err
	}

	suite := Suite{
		Name:        name,
		Properties:  properties,
		Records:     recs,
		Attachments: make(map[string][]models.Attachment, len(recs)),
	}
	for _, rec := range recs {
		atts, err := s.Attachments(rec.TestName)
		if err != nil {
			return Suite{}, err
		}
		if len(atts) > 0 {
			suite.Attachments[rec.TestName] = atts
		}
	}
	return suite, nil
}

// WriteJUnit renders suite as JUnit XML. Inconclusive outcomes are
// reported as skipped with their message. File attachments are listed
// in system-out so CI reporters can link them.
func WriteJUnit(w io.Writer, suite Suite) error {
	ts := junitTestSuite{Name: suite.Name}
	for _, name := range slices.Sorted(maps.Keys(suite.Properties)) {
		ts.Properties = append(ts.Properties, junitProperty{Name: name, Value: suite.Properties[name]})
	}

	var total time.Duration
	for _, rec := range suite.Records {
		total += rec.Duration
		ts.Tests++

		tc := junitTestCase{
			Classname: suite.Name,
			Name:      rec.TestName,
			Time:      junitDuration(rec.Duration),
			SystemOut: attachmentLines(suite.Attachments[rec.TestName]),
		}
		switch rec.Status {
		case models.TestStatusFailed:
			ts.Failures++
			tc.Failure = &junitFailure{
				Message:  rec.Message,
				Type:     "failure",
				Contents: rec.StackTrace,
			}
		case models.TestStatusSkipped, models.TestStatusInconclusive:
			ts.Skipped++
			msg := rec.Message
			if rec.Status == models.TestStatusInconclusive {
				msg = "inconclusive: " + msg
			}
			tc.Skipped = &junitSkipped{Message: msg}
		}
		ts.TestCases = append(ts.TestCases, tc)
	}
	ts.Time = junitDuration(total)

	doc := junitDocument{Suites: []junitTestSuite{ts}}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	out = append(out, '\n')
	_, err = w.Write(out)
	return err
}

// WriteJUnitFile writes suite to path, creating parent directories.
func WriteJUnitFile(path string, suite Suite) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create junit directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create junit file: %w", err)
	}
	if err := WriteJUnit(f, suite); err != nil {
		f.Close()
		return fmt.Errorf("failed to write junit file: %w", err)
	}
	return f.Close()
}

func attachmentLines(atts []models.Attachment) string {
	var sb strings.Builder
	for _, a := range atts {
		if a.Path == "" {
			fmt.Fprintf(&sb, "[[ATTACHMENT|%s (%s, %d bytes inline)]]\n", a.Label, a.MimeType, a.Size)
			continue
		}
		fmt.Fprintf(&sb, "[[ATTACHMENT|%s]]\n", a.Path)
	}
	return sb.String()
}

func junitDuration(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
