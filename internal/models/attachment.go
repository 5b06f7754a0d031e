package models

import "time"

// Attachment is a report entry linking an artifact to a test case.
// Inline attachments carry their bytes in Data and have an empty Path.
type Attachment struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	TestName  string    `json:"test_name"`
	Label     string    `json:"label"`
	Path      string    `json:"path,omitempty"`
	MimeType  string    `json:"mime_type,omitempty"`
	Size      int64     `json:"size"`
	Data      []byte    `json:"data,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TestRecord stores the outcome and timing of a completed test case
type TestRecord struct {
	ID         string        `json:"id"`
	RunID      string        `json:"run_id"`
	TestName   string        `json:"test_name"`
	Status     TestStatus    `json:"status"`
	Message    string        `json:"message,omitempty"`
	StackTrace string        `json:"stack_trace,omitempty"`
	Duration   time.Duration `json:"duration"`
	FinishedAt time.Time     `json:"finished_at"`
}
