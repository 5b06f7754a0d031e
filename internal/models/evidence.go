package models

// EvidenceKind identifies the type of failure evidence written during teardown
type EvidenceKind string

const (
	EvidenceScreenshot  EvidenceKind = "screenshot"
	EvidenceTrace       EvidenceKind = "trace"
	EvidenceErrorDetail EvidenceKind = "error_detail"
)

// String returns the string representation of the EvidenceKind
func (k EvidenceKind) String() string {
	return string(k)
}

// Dir returns the artifacts sub-directory that holds evidence of this kind
func (k EvidenceKind) Dir() string {
	switch k {
	case EvidenceScreenshot:
		return "screenshots"
	case EvidenceTrace:
		return "traces"
	case EvidenceErrorDetail:
		return "errors"
	}
	return "misc"
}

// EvidenceArtifact is a file written to durable storage for a failed test.
// Its lifetime is independent of the browser session it was captured from.
type EvidenceArtifact struct {
	Kind     EvidenceKind `json:"kind"`
	Path     string       `json:"path"`
	Attached bool         `json:"attached"`
}
