// -----------------------------------------------------------------------
// Safe calls - panic-protected wrappers for best-effort work
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/ternarybob/arbor"
)

// PanicError is returned by SafeCall when the wrapped function panicked
type PanicError struct {
	Name  string
	Value interface{}
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Name, e.Value)
}

// SafeCall runs fn and converts a panic into a *PanicError.
// Errors returned by fn pass through unchanged.
//
// Example:
//
//	err := common.SafeCall(logger, "close page", func() error {
//	    return page.Close(ctx)
//	})
func SafeCall(logger arbor.ILogger, name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := GetStackTrace()
			if logger != nil {
				logger.Error().
					Str("call", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", stack).
					Msg("Recovered from panic")
			}
			err = &PanicError{Name: name, Value: r, Stack: stack}
		}
	}()
	return fn()
}

// SafeGo runs fn in a goroutine tracked by wg, with panic recovery.
// Panics are logged and do not take down the process.
func SafeGo(wg *sync.WaitGroup, logger arbor.ILogger, name string, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = SafeCall(logger, name, func() error {
			fn()
			return nil
		})
	}()
}

// GetStackTrace returns the current goroutine's stack trace.
func GetStackTrace() string {
	buf := make([]byte, 8192)
	for {
		n := runtime.Stack(buf, false)
		if n < len(buf) {
			return string(buf[:n])
		}
		buf = make([]byte, len(buf)*2)
	}
}
