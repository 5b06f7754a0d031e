package report

import (
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/uitest/internal/models"
)

func TestWriteJUnit(t *testing.T) {
	suite := Suite{
		Name:       "Smoke",
		Properties: map[string]string{"engine": "chromedp", "base_url": "http://localhost"},
		Records: []models.TestRecord{
			{TestName: "Login_Valid", Status: models.TestStatusPassed, Duration: 1500 * time.Millisecond},
			{TestName: "Login_Locked", Status: models.TestStatusFailed, Message: "expected error", StackTrace: "trace", Duration: 500 * time.Millisecond},
			{TestName: "Login_Flaky", Status: models.TestStatusInconclusive, Message: "environment down"},
			{TestName: "Login_Skip", Status: models.TestStatusSkipped, Message: "not today"},
		},
		Attachments: map[string][]models.Attachment{
			"Login_Locked": {
				{Label: "Screenshot", Path: "TestResults/screenshots/Login_Locked.png"},
				{Label: "Screenshot", MimeType: "image/png", Size: 42},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteJUnit(&buf, suite))
	out := buf.String()
	assert.True(t, len(out) > len(xml.Header))
	assert.Equal(t, xml.Header, out[:len(xml.Header)])

	var doc junitDocument
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Suites, 1)

	ts := doc.Suites[0]
	assert.Equal(t, "Smoke", ts.Name)
	assert.Equal(t, 4, ts.Tests)
	assert.Equal(t, 1, ts.Failures)
	assert.Equal(t, 2, ts.Skipped)
	assert.Equal(t, "2.000", ts.Time)
	require.Len(t, ts.Properties, 2)
	assert.Equal(t, "base_url", ts.Properties[0].Name)

	require.Len(t, ts.TestCases, 4)
	assert.Nil(t, ts.TestCases[0].Failure)
	assert.Equal(t, "1.500", ts.TestCases[0].Time)

	failed := ts.TestCases[1]
	require.NotNil(t, failed.Failure)
	assert.Equal(t, "expected error", failed.Failure.Message)
	assert.Equal(t, "trace", failed.Failure.Contents)
	assert.Contains(t, failed.SystemOut, "[[ATTACHMENT|TestResults/screenshots/Login_Locked.png]]")
	assert.Contains(t, failed.SystemOut, "42 bytes inline")

	require.NotNil(t, ts.TestCases[2].Skipped)
	assert.Equal(t, "inconclusive: environment down", ts.TestCases[2].Skipped.Message)
	require.NotNil(t, ts.TestCases[3].Skipped)
	assert.Equal(t, "not today", ts.TestCases[3].Skipped.Message)
}

func TestBuildSuite_WriteJUnitFile(t *testing.T) {
	store := newTestStore(t, "")

	shot := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(shot, []byte("png"), 0644))

	require.NoError(t, store.AttachFile("B", shot, "Screenshot"))
	require.NoError(t, store.RecordOutcome("A", models.TestOutcome{Status: models.TestStatusPassed}, time.Second))
	require.NoError(t, store.RecordOutcome("B", models.TestOutcome{Status: models.TestStatusFailed, Message: "nope"}, time.Second))

	suite, err := store.BuildSuite("Smoke", nil)
	require.NoError(t, err)
	require.Len(t, suite.Records, 2)
	assert.Len(t, suite.Attachments["B"], 1)
	assert.NotContains(t, suite.Attachments, "A")

	path := filepath.Join(t.TempDir(), "nested", "junit.xml")
	require.NoError(t, WriteJUnitFile(path, suite))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `name="B"`)
	assert.Contains(t, string(data), `failures="1"`)
}
