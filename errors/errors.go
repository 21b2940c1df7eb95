// Package errors provides error constructors that tag each message with the
// source location of the call site, which keeps provider and tool failures
// traceable without carrying full stack traces around.
package errors

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// caller returns the file base name and line of the caller's caller.
func caller() string {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return "???:0"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

// New creates an error carrying the call site in its message.
func New(format string, a ...interface{}) error {
	return fmt.Errorf("[%s] %s", caller(), fmt.Sprintf(format, a...))
}

// Wrapf annotates err with additional context and the call site.
// It returns nil when err is nil.
func Wrapf(err error, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("[%s] %s: %w", caller(), fmt.Sprintf(format, a...), err)
}
