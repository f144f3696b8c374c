package index

import (
	"context"
	"errors"
)

// ErrClosed is returned by indexers after Close.
var ErrClosed = errors.New("index closed")

// ErrorCode categorizes indexing errors.
type ErrorCode string

const (
	// ErrCodeExtraction marks a linked file whose text could not be extracted.
	ErrCodeExtraction ErrorCode = "EXTRACTION_FAILED"

	// ErrCodeUnresolved marks a linked file that is not on disk.
	ErrCodeUnresolved ErrorCode = "FILE_UNRESOLVED"

	// ErrCodeStore marks a failure of the backing store or index engine.
	ErrCodeStore ErrorCode = "STORE_FAILED"

	// ErrCodeCancelled marks a batch stopped by its context.
	ErrCodeCancelled ErrorCode = "CANCELLED"

	// ErrCodeClosed marks a call on a closed indexer.
	ErrCodeClosed ErrorCode = "CLOSED"
)

// Error is an indexing error with a code for classification.
type Error struct {
	Code ErrorCode
	Op   string // operation, e.g. "fields.index"
	Item string // entry id or file path, if any
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Code) + ": " + e.Op
	if e.Item != "" {
		msg += " " + e.Item
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error.
func NewError(code ErrorCode, op, item string, err error) *Error {
	return &Error{Code: code, Op: op, Item: item, Err: err}
}

// StoreError wraps a store failure, classifying context errors as
// cancellation.
func StoreError(op, item string, err error) *Error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewError(ErrCodeCancelled, op, item, err)
	}
	return NewError(ErrCodeStore, op, item, err)
}

// Cancelled wraps a context error.
func Cancelled(op string, err error) *Error {
	return NewError(ErrCodeCancelled, op, "", err)
}

// Closed returns the error for a call on a closed indexer.
func Closed(op string) *Error {
	return NewError(ErrCodeClosed, op, "", ErrClosed)
}

// CodeOf returns the code of the first Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Code
	}
	return ""
}

// IsCancelled reports whether err stopped a batch through its context.
func IsCancelled(err error) bool {
	return CodeOf(err) == ErrCodeCancelled ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// IsClosed reports whether err came from a closed indexer.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

func (c ErrorCode) String() string {
	return string(c)
}
