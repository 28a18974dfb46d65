// Package monitoring holds the process-wide diagnostic logger. It is a
// package variable rather than an injected dependency so that request
// middleware and background loaders share one sink.
package monitoring

import "log"

// Logf writes a diagnostic line. It defaults to log.Printf; replace it
// with SetLogger to redirect or mute output.
var Logf func(format string, v ...any) = log.Printf

// Debug gates Debugf. Off by default.
var Debug bool

// Debugf writes a diagnostic line only when Debug is set.
func Debugf(format string, v ...any) {
	if Debug {
		Logf(format, v...)
	}
}

// SetLogger replaces the package logger. A nil f installs a no-op.
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		Logf = func(string, ...any) {}
		return
	}
	Logf = f
}
