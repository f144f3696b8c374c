package iql

import (
	"errors"
	"fmt"
)

// Sentinel causes of a ParseError.
var (
	ErrUnterminatedPhrase = errors.New("unterminated phrase")
	ErrUnterminatedRegex  = errors.New("unterminated regex")
	ErrDanglingEscape     = errors.New("escape at end of input")
	ErrUnexpectedToken    = errors.New("unexpected token")
	ErrUnmatchedParen     = errors.New("unmatched parenthesis")
	ErrMissingValue       = errors.New("missing value")
)

// ParseError reports where an index query string is malformed.
type ParseError struct {
	Pos int // byte offset in the input
	Msg string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("index query: position %d: %s", e.Pos, e.Msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseErrorf(pos int, err error, format string, args ...any) *ParseError {
	return &ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...), Err: err}
}
