// -----------------------------------------------------------------------
// Crash reports - last-chance panic capture for the CLI runner
// -----------------------------------------------------------------------

package common

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

var (
	crashDir   = "."
	crashDirMu sync.RWMutex
)

// InstallCrashHandler sets the directory crash reports are written to and
// creates it. Call it at the start of main, before RecoverWithCrashFile is deferred.
func InstallCrashHandler(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create crash directory: %w", err)
	}
	crashDirMu.Lock()
	crashDir = dir
	crashDirMu.Unlock()
	return nil
}

// WriteCrashFile writes a crash report for panicVal and returns its path.
// On write failure the report goes to stderr and the path is empty.
func WriteCrashFile(panicVal interface{}, stack string) string {
	crashDirMu.RLock()
	dir := crashDir
	crashDirMu.RUnlock()

	now := time.Now()
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", now.Format("2006-01-02T15-04-05")))

	var report bytes.Buffer
	fmt.Fprintf(&report, "=== UITEST CRASH REPORT ===\n")
	fmt.Fprintf(&report, "Time: %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(&report, "Version: %s\n\n", GetFullVersion())
	fmt.Fprintf(&report, "=== PANIC ===\n%v\n\n", panicVal)
	fmt.Fprintf(&report, "=== STACK TRACE ===\n%s\n\n", stack)
	fmt.Fprintf(&report, "=== ALL GOROUTINES ===\n%s\n\n", allGoroutineStacks())
	fmt.Fprintf(&report, "=== RUNTIME ===\nNumGoroutine: %d\nGOOS: %s\nGOARCH: %s\n",
		runtime.NumGoroutine(), runtime.GOOS, runtime.GOARCH)

	if err := os.WriteFile(path, report.Bytes(), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: failed to write crash file: %v\n%s", err, report.String())
		return ""
	}

	fmt.Fprintf(os.Stderr, "\n!!! FATAL CRASH - report saved to: %s !!!\nPanic: %v\n", path, panicVal)
	return path
}

// RecoverWithCrashFile writes a crash report and exits if the caller panicked.
// Usage: defer common.RecoverWithCrashFile()
func RecoverWithCrashFile() {
	if r := recover(); r != nil {
		WriteCrashFile(r, GetStackTrace())
		os.Exit(2)
	}
}

// allGoroutineStacks grows its buffer until every stack fits, capped at 64MB.
func allGoroutineStacks() string {
	buf := make([]byte, 64*1024)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) || len(buf) >= 64*1024*1024 {
			return string(buf[:n])
		}
		buf = make([]byte, len(buf)*2)
	}
}
