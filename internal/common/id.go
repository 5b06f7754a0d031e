package common

import (
	"github.com/google/uuid"
)

// NewSessionID generates a unique browser session ID.
// Format: session_<uuid>
func NewSessionID() string {
	return "session_" + uuid.New().String()
}

// NewRunID generates a unique test run ID with the "run_" prefix
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// NewAttachmentID generates a unique report attachment ID
func NewAttachmentID() string {
	return "att_" + uuid.New().String()
}
