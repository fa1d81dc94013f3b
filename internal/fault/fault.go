package fault

import (
	"errors"
	"fmt"
)

// Class is the handling category of a fault.
type Class int

const (
	// Unclassified is reported for errors that carry no class.
	Unclassified Class = iota
	// Framing covers timeouts, overlong frames and checksum or length mismatches.
	Framing
	// Informational covers noise such as bytes seen outside a frame.
	Informational
	// Validator covers transport and parse failures of the access check.
	Validator
	// Config covers malformed configuration detected at startup.
	Config
	// Runtime covers unexpected failures of the ingest loop.
	Runtime
)

// String returns the lower-case class name used in log fields.
func (c Class) String() string {
	switch c {
	case Framing:
		return "framing"
	case Informational:
		return "informational"
	case Validator:
		return "validator"
	case Config:
		return "config"
	case Runtime:
		return "runtime"
	default:
		return "unclassified"
	}
}

// Fatal reports whether faults of this class must stop the process.
func (c Class) Fatal() bool {
	return c == Config || c == Runtime
}

// Error is an error tagged with a Class.
type Error struct {
	// Class is the handling category.
	Class Class
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Class.String() + " fault"
	}

	return fmt.Sprintf("%s fault: %v", e.Class, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap tags err with class. A nil err stays nil.
func Wrap(class Class, err error) error {
	if err == nil {
		return nil
	}

	return &Error{Class: class, Err: err}
}

// Wrapf formats a new error, wrapping any %w verb, and tags it with class.
func Wrapf(class Class, format string, args ...any) error {
	return &Error{Class: class, Err: fmt.Errorf(format, args...)}
}

// ClassOf returns the class of the outermost *Error in err's chain.
func ClassOf(err error) Class {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Class
	}

	return Unclassified
}

// Is reports whether err carries the provided class.
func Is(err error, class Class) bool {
	return err != nil && ClassOf(err) == class
}
