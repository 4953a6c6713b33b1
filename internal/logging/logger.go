// Package logging wraps the standard slog package with the caller-location
// and panic-recovery conventions used throughout the distributor.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"runtime/debug"
)

// Init installs a JSON slog handler at the given level as the default
// logger. Call once at process startup.
func Init(level slog.Level, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func getCaller() string {
	if _, file, line, ok := runtime.Caller(2); ok {
		return fmt.Sprintf("%s:%d", file, line)
	}
	return "unknown"
}

// Info logs a message at INFO level with the caller's source location.
func Info(msg string, args ...any) {
	slog.Info(msg, append([]any{"source", getCaller()}, args...)...)
}

// Debug logs a message at DEBUG level with the caller's source location.
func Debug(msg string, args ...any) {
	slog.Debug(msg, append([]any{"source", getCaller()}, args...)...)
}

// Warn logs a message at WARN level with the caller's source location.
func Warn(msg string, args ...any) {
	slog.Warn(msg, append([]any{"source", getCaller()}, args...)...)
}

// Error logs a message at ERROR level with the caller's source location.
func Error(msg string, args ...any) {
	slog.Error(msg, append([]any{"source", getCaller()}, args...)...)
}

// RecoverPanic recovers a panic in the calling goroutine, logs it with a
// stack trace, and runs an optional cleanup function. Every long-lived
// goroutine (broadcast consumer, delivery handler, scheduled task) defers
// this so one bad message cannot take down the process.
func RecoverPanic(name string, cleanup func()) {
	if r := recover(); r != nil {
		Error(fmt.Sprintf("panic in %s", name), "recovered", r, "stack", string(debug.Stack()))
		if cleanup != nil {
			cleanup()
		}
	}
}
