package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures.
type ErrorKind string

const (
	KindDecode    ErrorKind = "DecodeError"
	KindDimension ErrorKind = "DimensionError"
	KindEncode    ErrorKind = "EncodeError"
	KindConfig    ErrorKind = "ConfigError"
)

// Sentinels for errors.Is.
var (
	ErrDecode    = &Error{Kind: KindDecode}
	ErrDimension = &Error{Kind: KindDimension}
	ErrEncode    = &Error{Kind: KindEncode}
	ErrConfig    = &Error{Kind: KindConfig}
)

// Error is the typed failure returned by every stage. Input names the
// offending payload ("first" or "second") when one can be blamed.
type Error struct {
	Kind  ErrorKind
	Input string
	Err   error
}

// NewError wraps err with a kind, taking the kind from a sentinel.
func NewError(kind *Error, input string, err error) *Error {
	return &Error{Kind: kind.Kind, Input: input, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return string(e.Kind)
	case e.Input != "":
		return fmt.Sprintf("%s: %s image: %v", e.Kind, e.Input, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
