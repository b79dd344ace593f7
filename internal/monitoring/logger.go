package monitoring

import (
	"log"
	"time"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Verbose returns Logf when enabled and a no-op otherwise, so callers can
// hold one logger for the lifetime of a solve.
func Verbose(enabled bool) func(format string, v ...interface{}) {
	if !enabled {
		return func(string, ...interface{}) {}
	}
	return func(format string, v ...interface{}) { Logf(format, v...) }
}

// LogIteration writes the one-line summary of a solver iteration.
func LogIteration(logf func(string, ...interface{}), iteration, preFiltered, expanded, postFiltered int, stepTime time.Duration) {
	logf("[localsolver] iteration %d: pre-filtered=%d expanded=%d post-filtered=%d step=%s",
		iteration, preFiltered, expanded, postFiltered, stepTime.Round(time.Microsecond))
}
