package models

// TestStatus is the final status of a test case as reported by the runner.
type TestStatus string

// TestStatus constants mirror the statuses a test runner can report
const (
	TestStatusPassed       TestStatus = "passed"
	TestStatusFailed       TestStatus = "failed"
	TestStatusInconclusive TestStatus = "inconclusive"
	TestStatusSkipped      TestStatus = "skipped"
)

// IsValid checks if the TestStatus is a known status
func (s TestStatus) IsValid() bool {
	switch s {
	case TestStatusPassed, TestStatusFailed, TestStatusInconclusive, TestStatusSkipped:
		return true
	}
	return false
}

// String returns the string representation of the TestStatus
func (s TestStatus) String() string {
	return string(s)
}

// AllTestStatuses returns a slice of all valid TestStatus values
func AllTestStatuses() []TestStatus {
	return []TestStatus{
		TestStatusPassed,
		TestStatusFailed,
		TestStatusInconclusive,
		TestStatusSkipped,
	}
}

// TestOutcome is the result of one test case. The lifecycle reads it during
// teardown and never modifies it.
type TestOutcome struct {
	Status     TestStatus `json:"status"`
	Message    string     `json:"message,omitempty"`
	StackTrace string     `json:"stack_trace,omitempty"`
}

// Failed reports whether the outcome is a failure
func (o TestOutcome) Failed() bool {
	return o.Status == TestStatusFailed
}
