package logging

import (
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

var debugEnabled atomic.Bool

func init() {
	debugEnabled.Store(os.Getenv("DEBUG") == "true")
}

// SetOutput redirects all log output. The TUI points this at a file so log
// lines never land on the terminal it owns.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// SetDebug toggles Debug output at runtime.
func SetDebug(on bool) {
	debugEnabled.Store(on)
}

// Info logs an informational message (always shown)
func Info(subsystem, format string, args ...any) {
	log.Printf("[%s] "+format, append([]any{subsystem}, args...)...)
}

// Warn logs a non-fatal problem.
func Warn(subsystem, format string, args ...any) {
	log.Printf("[%s] WARN "+format, append([]any{subsystem}, args...)...)
}

// Debug logs a debug message (only shown if DEBUG=true)
func Debug(subsystem, format string, args ...any) {
	if debugEnabled.Load() {
		log.Printf("[%s] "+format, append([]any{subsystem}, args...)...)
	}
}

// Truncate shortens s to maxLen runes for one-line logs.
func Truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
