package krait

import (
	"errors"
	"fmt"

	"krait/internal/compiler"
	"krait/internal/vm"
)

// ErrorKind classifies engine failures.
type ErrorKind uint8

const (
	// ErrCompile is a syntax or indentation error. No code was produced.
	ErrCompile ErrorKind = iota + 1
	// ErrNeedMoreInput is returned in REPL mode when the input stopped inside
	// an unfinished construct.
	ErrNeedMoreInput
	// ErrRuntime is an exception that escaped the outermost frame.
	ErrRuntime
	// ErrFatal is an internal invariant violation. Script code cannot catch it.
	ErrFatal
)

func (k ErrorKind) String() string {
	switch k {
	case ErrCompile:
		return "compile"
	case ErrNeedMoreInput:
		return "need-more-input"
	case ErrRuntime:
		return "runtime"
	case ErrFatal:
		return "fatal"
	default:
		return fmt.Sprintf("ErrorKind(%d)", uint8(k))
	}
}

// Error is the error type returned by Engine methods.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Traceback renders the error the way the REPL prints it.
func (e *Error) Traceback() string {
	var exc *vm.Exception
	var fatal *vm.FatalError
	switch {
	case errors.As(e.Err, &exc):
		return exc.Traceback()
	case errors.As(e.Err, &fatal):
		return fatal.Format()
	}
	return e.Err.Error()
}

// Exception returns the uncaught script exception, if that is what e wraps.
func (e *Error) Exception() (*vm.Exception, bool) {
	var exc *vm.Exception
	ok := errors.As(e.Err, &exc)
	return exc, ok
}

// IsNeedMoreInput reports whether err asks the caller for another line.
func IsNeedMoreInput(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == ErrNeedMoreInput
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	var ce *compiler.Error
	var exc *vm.Exception
	var fatal *vm.FatalError
	switch {
	case errors.As(err, &ce) && ce.NeedMore:
		return &Error{Kind: ErrNeedMoreInput, Err: err}
	case errors.As(err, &ce):
		return &Error{Kind: ErrCompile, Err: err}
	case errors.As(err, &exc):
		return &Error{Kind: ErrRuntime, Err: err}
	case errors.As(err, &fatal):
		return &Error{Kind: ErrFatal, Err: err}
	}
	return &Error{Kind: ErrRuntime, Err: err}
}
