// Package errors extends the standard library errors with annotated
// errors that carry structured logging attributes and the source
// location where they were created.
package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
)

// Standard library passthroughs so callers only import this package.

func New(text string) error                { return errors.New(text) }
func Is(err, target error) bool            { return errors.Is(err, target) }
func As(err error, target any) bool        { return errors.As(err, target) }
func Unwrap(err error) error               { return errors.Unwrap(err) }
func Join(errs ...error) error             { return errors.Join(errs...) }
func Errorf(format string, a ...any) error { return fmt.Errorf(format, a...) }

// annotatedError is an error with slog attributes and the frame where it
// was created.
type annotatedError struct {
	cause       error
	msg         string
	annotations []slog.Attr
	frame       runtime.Frame
}

func (e *annotatedError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *annotatedError) Unwrap() error {
	return e.cause
}

// NewSentinel creates a comparable root error. Two sentinels with the
// same message are distinct errors.
func NewSentinel(msg string) error {
	return &annotatedError{msg: msg, frame: callerFrame(3)}
}

// Wrap annotates err with a message and optional slog attributes. The
// call site is recorded for logging.
func Wrap(err error, msg string, annotations ...slog.Attr) error {
	return &annotatedError{cause: err, msg: msg, annotations: annotations, frame: callerFrame(3)}
}

// SlogError renders the error chain as a single slog attribute: the
// message, the deepest recorded source location and every annotation
// collected along the chain.
func SlogError(err error) slog.Attr {
	if err == nil {
		return slog.Group("error")
	}

	var (
		annotations []slog.Attr
		frame       runtime.Frame
	)
	collect(err, &annotations, &frame)

	attrs := []any{slog.String("msg", err.Error())}
	if frame.File != "" {
		attrs = append(attrs, slog.String("source", fmt.Sprintf("%s:%d", frame.File, frame.Line)))
	}
	if len(annotations) > 0 {
		groupArgs := make([]any, len(annotations))
		for i, attr := range annotations {
			groupArgs[i] = attr
		}
		attrs = append(attrs, slog.Group("annotations", groupArgs...))
	}
	return slog.Group("error", attrs...)
}

// collect walks the error tree depth first, accumulating annotations and
// remembering the deepest recorded frame.
func collect(err error, annotations *[]slog.Attr, frame *runtime.Frame) {
	if err == nil {
		return
	}
	var annotated *annotatedError
	if errors.As(err, &annotated) {
		// As finds the shallowest annotated error; record it and descend.
		*annotations = append(*annotations, annotated.annotations...)
		if annotated.frame.File != "" {
			*frame = annotated.frame
		}
		collect(annotated.cause, annotations, frame)
		return
	}
	switch unwrapped := err.(type) {
	case interface{ Unwrap() error }:
		collect(unwrapped.Unwrap(), annotations, frame)
	case interface{ Unwrap() []error }:
		for _, e := range unwrapped.Unwrap() {
			collect(e, annotations, frame)
		}
	}
}

// DecoratePanic converts a recovered panic value into an annotated error
// whose source location points at the panic site.
func DecoratePanic(recovered any) error {
	if recovered == nil {
		return nil
	}
	return &annotatedError{msg: fmt.Sprintf("panic: %v", recovered), frame: panicFrame()}
}

// callerFrame resolves the frame skip levels above this call.
func callerFrame(skip int) runtime.Frame {
	var pcs [3]uintptr
	n := runtime.Callers(skip, pcs[:])
	frame, _ := runtime.CallersFrames(pcs[:n]).Next()
	return frame
}

// panicFrame finds the frame that panicked: the first non-runtime frame
// after runtime.gopanic. When no panic frame is on the stack it falls
// back to the closest caller outside this package.
func panicFrame() runtime.Frame {
	var pcs [32]uintptr
	n := runtime.Callers(2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var fallback runtime.Frame
	seenPanic := false
	for {
		frame, more := frames.Next()
		isRuntime := strings.HasPrefix(frame.Function, "runtime.")
		if isRuntime && frame.Function == "runtime.gopanic" {
			seenPanic = true
		}
		if !isRuntime && !strings.HasSuffix(frame.File, "annotatederror.go") {
			if seenPanic {
				return frame
			}
			if fallback.File == "" {
				fallback = frame
			}
		}
		if !more {
			break
		}
	}
	return fallback
}
