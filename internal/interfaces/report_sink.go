package interfaces

import (
	"time"

	"github.com/ternarybob/uitest/internal/models"
)

// ReportSink receives artifacts and outcomes produced by test cases
type ReportSink interface {
	// AttachFile links an artifact on disk to a test with a human label
	AttachFile(testName, path, label string) error

	// AttachBytes embeds raw content (e.g. a PNG) in the report
	AttachBytes(testName, label, mimeType string, data []byte) error

	// RecordOutcome stores the final outcome of a test case
	RecordOutcome(testName string, outcome models.TestOutcome, duration time.Duration) error
}
