// Package debug provides the opt-in progress output used by the batch tools
// and the canonicalizer. Every helper takes the caller's debug flag so a
// single run can trace one component without flooding the log.
package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

var (
	mu     sync.RWMutex
	logger = log.New(os.Stderr, "", log.LstdFlags)
)

// SetOutput redirects debug and warning output. Tests use it to capture lines.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
}

func printf(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	logger.Printf(format, args...)
}

// DebugHeader prints debug header if debugging is enabled
func DebugHeader(enabled bool) {
	if enabled {
		printf("=== DEBUG START ===")
	}
}

// DebugFooter prints debug footer if debugging is enabled
func DebugFooter(enabled bool) {
	if enabled {
		printf("=== DEBUG END ===")
	}
}

// DebugOutput prints debug output if debugging is enabled
func DebugOutput(enabled bool, format string, args ...interface{}) {
	if enabled {
		timestamp := time.Now().Format("15:04:05.000")
		printf("[%s] %s", timestamp, fmt.Sprintf(format, args...))
	}
}

// DebugStage logs one pipeline stage when it changed the text.
func DebugStage(enabled bool, stage, before, after string) {
	if !enabled || before == after {
		return
	}
	DebugOutput(enabled, "%-20s %q -> %q", stage, before, after)
}

// Warn prints a diagnostic regardless of the debug flag.
func Warn(format string, args ...interface{}) {
	printf("[WARN] "+format, args...)
}

// DebugTiming measures and logs execution time if debugging is enabled
func DebugTiming(enabled bool, operation string) func() {
	if !enabled {
		return func() {}
	}

	start := time.Now()
	DebugOutput(enabled, "Starting: %s", operation)

	return func() {
		DebugOutput(enabled, "Completed: %s (took %v)", operation, time.Since(start))
	}
}
