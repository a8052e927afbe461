package udferr

import (
	"errors"
	"fmt"
)

// ErrKind represents if the error is retryable
type ErrKind int16

const (
	Retryable    ErrKind = iota // The error is retryable, the input is redelivered
	NonRetryable                // The error is non-retryable, the pipeline stops
	Unknown                     // Unknown err kind
	Late                        // The input is behind a closed window, it is dropped
)

func (ek ErrKind) String() string {
	switch ek {
	case Retryable:
		return "Retryable"
	case NonRetryable:
		return "NonRetryable"
	case Late:
		return "Late"
	case Unknown:
		return "Unknown"
	default:
		return "Unknown"
	}
}

// UDFError is returned by a stage and tells the runtime how to treat the failed input
type UDFError struct {
	errKind    ErrKind
	errMessage string
}

func New(kind ErrKind, msg string) *UDFError {
	return &UDFError{
		errKind:    kind,
		errMessage: msg,
	}
}

// Newf is New with a formatted message.
func Newf(kind ErrKind, format string, args ...any) *UDFError {
	return New(kind, fmt.Sprintf(format, args...))
}

func (e *UDFError) Error() string {
	return fmt.Sprintf("%s: %s", e.errKind, e.errMessage)
}

func (e *UDFError) ErrorKind() ErrKind {
	return e.errKind
}

func (e *UDFError) ErrorMessage() string {
	return e.errMessage
}

// FromError gets error information from the UDFError, unwrapping if needed
func FromError(err error) (udfErr *UDFError, ok bool) {
	if err == nil {
		return nil, true
	}
	var se interface {
		ErrorKind() ErrKind
		ErrorMessage() string
	}
	if errors.As(err, &se) {
		return &UDFError{se.ErrorKind(), se.ErrorMessage()}, true
	}
	return &UDFError{Unknown, err.Error()}, false
}

// KindOf returns the kind of err, Unknown if it does not carry one.
func KindOf(err error) ErrKind {
	if e, _ := FromError(err); e != nil {
		return e.ErrorKind()
	}
	return Unknown
}
