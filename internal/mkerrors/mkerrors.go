// Package mkerrors defines the three error kinds the tool can fail with,
// following the shape of github.com/dargueta/disko's errors package
// (a string-based error value with WithMessage/WrapError) narrowed to the
// three kinds the image-authoring pipeline actually needs, each carrying
// the process exit code spec.md §7 assigns it.
package mkerrors

import (
	"fmt"

	log "github.com/dsoprea/go-logging"
)

// Kind is one of the three failure classes the tool can report.
type Kind int

const (
	// Config means the user's input is unusable: bad verb, unsupported FAT
	// type, an invalid partition size. Exit code 1.
	Config Kind = iota
	// Resource means the host denied memory or a required file is absent.
	// Exit code 2.
	Resource
	// IO means a write or read failed after work had already begun, or a
	// layout constraint (stage-2 alignment) could not be satisfied. Exit
	// code 3.
	IO
)

// ExitCode returns the process exit code spec.md §7 assigns this kind.
func (k Kind) ExitCode() int {
	switch k {
	case Config:
		return 1
	case Resource:
		return 2
	case IO:
		return 3
	default:
		return 1
	}
}

func (k Kind) String() string {
	switch k {
	case Config:
		return "config"
	case Resource:
		return "resource"
	case IO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is a DriverError-shaped value: a kind, a message, and the original
// cause if this wraps another error.
type Error struct {
	kind    Kind
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.message, e.cause.Error())
	}
	return e.message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Kind returns the failure class, used by the dispatcher to pick an exit
// code.
func (e *Error) Kind() Kind {
	return e.kind
}

// WithMessage returns a new Error of the same kind with an additional
// message prepended, mirroring disko's customDriverError.WithMessage.
func (e *Error) WithMessage(message string) *Error {
	return &Error{kind: e.kind, message: fmt.Sprintf("%s: %s", message, e.message), cause: e.cause}
}

// New constructs an Error of the given kind with a plain message.
func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap attaches kind and a message to an underlying error, using go-logging's
// Wrap so the original stack is preserved the way dsoprea-go-exfat's readers
// do for I/O failures.
func Wrap(kind Kind, message string, cause error) *Error {
	if cause == nil {
		return New(kind, message)
	}
	wrapped := log.Wrap(cause)
	return &Error{kind: kind, message: message, cause: wrapped}
}
