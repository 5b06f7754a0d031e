// Package assertions is a thin layer over testify's assert for step-level
// checks. Messages are optional; a failed assertion records a failure on t
// and returns false without stopping the test.
package assertions

import (
	"fmt"
	"strings"

	"github.com/stretchr/testify/assert"
)

// Outcomes is implemented by lifecycle.TestCase. When t implements it,
// Inconclusive and Ignore record those outcomes instead of a failure.
type Outcomes interface {
	Inconclusive(msg string)
	Skip(msg string)
}

// Assert wraps one test's reporter.
type Assert struct {
	t assert.TestingT
}

// New returns assertions reporting to t: a *testing.T or a *lifecycle.TestCase.
func New(t assert.TestingT) *Assert {
	return &Assert{t: t}
}

func (a *Assert) helper() {
	if h, ok := a.t.(interface{ Helper() }); ok {
		h.Helper()
	}
}

func (a *Assert) IsTrue(condition bool, msgAndArgs ...interface{}) bool {
	a.helper()
	return assert.True(a.t, condition, msgAndArgs...)
}

func (a *Assert) IsFalse(condition bool, msgAndArgs ...interface{}) bool {
	a.helper()
	return assert.False(a.t, condition, msgAndArgs...)
}

func (a *Assert) AreEqual(expected, actual interface{}, msgAndArgs ...interface{}) bool {
	a.helper()
	return assert.Equal(a.t, expected, actual, msgAndArgs...)
}

func (a *Assert) AreNotEqual(expected, actual interface{}, msgAndArgs ...interface{}) bool {
	a.helper()
	return assert.NotEqual(a.t, expected, actual, msgAndArgs...)
}

func (a *Assert) IsNil(object interface{}, msgAndArgs ...interface{}) bool {
	a.helper()
	return assert.Nil(a.t, object, msgAndArgs...)
}

func (a *Assert) IsNotNil(object interface{}, msgAndArgs ...interface{}) bool {
	a.helper()
	return assert.NotNil(a.t, object, msgAndArgs...)
}

func (a *Assert) NoError(err error, msgAndArgs ...interface{}) bool {
	a.helper()
	return assert.NoError(a.t, err, msgAndArgs...)
}

// Contains works on strings, slices and maps, as assert.Contains does.
func (a *Assert) Contains(container, element interface{}, msgAndArgs ...interface{}) bool {
	a.helper()
	return assert.Contains(a.t, container, element, msgAndArgs...)
}

func (a *Assert) DoesNotContain(container, element interface{}, msgAndArgs ...interface{}) bool {
	a.helper()
	return assert.NotContains(a.t, container, element, msgAndArgs...)
}

func (a *Assert) StartsWith(prefix, actual string, msgAndArgs ...interface{}) bool {
	a.helper()
	if strings.HasPrefix(actual, prefix) {
		return true
	}
	return assert.Fail(a.t, fmt.Sprintf("%q does not start with %q", actual, prefix), msgAndArgs...)
}

func (a *Assert) EndsWith(suffix, actual string, msgAndArgs ...interface{}) bool {
	a.helper()
	if strings.HasSuffix(actual, suffix) {
		return true
	}
	return assert.Fail(a.t, fmt.Sprintf("%q does not end with %q", actual, suffix), msgAndArgs...)
}

func (a *Assert) IsMatch(pattern, actual string, msgAndArgs ...interface{}) bool {
	a.helper()
	return assert.Regexp(a.t, pattern, actual, msgAndArgs...)
}

func (a *Assert) IsNotMatch(pattern, actual string, msgAndArgs ...interface{}) bool {
	a.helper()
	return assert.NotRegexp(a.t, pattern, actual, msgAndArgs...)
}

func (a *Assert) IsEmpty(object interface{}, msgAndArgs ...interface{}) bool {
	a.helper()
	return assert.Empty(a.t, object, msgAndArgs...)
}

func (a *Assert) IsNotEmpty(object interface{}, msgAndArgs ...interface{}) bool {
	a.helper()
	return assert.NotEmpty(a.t, object, msgAndArgs...)
}

func (a *Assert) Panics(fn func(), msgAndArgs ...interface{}) bool {
	a.helper()
	return assert.Panics(a.t, fn, msgAndArgs...)
}

func (a *Assert) DoesNotPanic(fn func(), msgAndArgs ...interface{}) bool {
	a.helper()
	return assert.NotPanics(a.t, fn, msgAndArgs...)
}

// Fail records an unconditional failure.
func (a *Assert) Fail(message string, msgAndArgs ...interface{}) bool {
	a.helper()
	return assert.Fail(a.t, message, msgAndArgs...)
}

// Inconclusive marks the result inconclusive when t supports it, and
// otherwise records a failure.
func (a *Assert) Inconclusive(message string) {
	a.helper()
	if o, ok := a.t.(Outcomes); ok {
		o.Inconclusive(message)
		return
	}
	assert.Fail(a.t, "inconclusive: "+message)
}

// Ignore marks the test skipped when t supports it, and otherwise records
// a failure.
func (a *Assert) Ignore(message string) {
	a.helper()
	if o, ok := a.t.(Outcomes); ok {
		o.Skip(message)
		return
	}
	assert.Fail(a.t, "ignored: "+message)
}
