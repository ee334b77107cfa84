// Package monitoring holds the process-wide diagnostic logger used by the
// sampling, export and storage packages.
package monitoring

import (
	"fmt"
	"log"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf.
// Sweeps emit one line per grid cell through it, so long runs may want to
// mute it with SetLogger(nil).
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Capture redirects Logf into the returned slice until the restore func is
// called. Intended for tests that assert on progress output.
func Capture() (lines *[]string, restore func()) {
	original := Logf
	captured := make([]string, 0, 16)
	Logf = func(format string, v ...interface{}) {
		captured = append(captured, fmt.Sprintf(format, v...))
	}
	return &captured, func() { Logf = original }
}
