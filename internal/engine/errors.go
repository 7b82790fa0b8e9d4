package engine

import (
	"errors"
	"fmt"
)

// Error is returned by every engine operation that fails.
//
// Errors carry a code for programmatic handling plus the key or view they
// concern. Empty and NotFound are ordinary outcomes, not faults: removal by
// one view silently invalidates the key everywhere else, so a miss on find
// usually means "already processed".
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Key is the record key involved, if any.
	Key string

	// View is the view involved, if any.
	View string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeDuplicateKey indicates an add for a key that is already live.
	ErrCodeDuplicateKey ErrorCode = "DUPLICATE_KEY"

	// ErrCodeNotFound indicates a key that is not live.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeEmpty indicates a view with no live entry.
	ErrCodeEmpty ErrorCode = "EMPTY"

	// ErrCodeNoData indicates a stats channel with no recorded events.
	ErrCodeNoData ErrorCode = "NO_DATA"

	// ErrCodeUnknownView indicates a view name the profile does not attach.
	ErrCodeUnknownView ErrorCode = "UNKNOWN_VIEW"

	// ErrCodeBucketRequired indicates a bucketed view addressed without a bucket.
	ErrCodeBucketRequired ErrorCode = "BUCKET_REQUIRED"

	// ErrCodeInvalidRecord indicates an add request the profile rejects.
	ErrCodeInvalidRecord ErrorCode = "INVALID_RECORD"

	// ErrCodeInvalidThreshold indicates a sweep threshold that is not a date.
	ErrCodeInvalidThreshold ErrorCode = "INVALID_THRESHOLD"

	// ErrCodeNoSweepView indicates a sweep on a profile without a sweep view.
	ErrCodeNoSweepView ErrorCode = "NO_SWEEP_VIEW"
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Key != "" && e.View != "":
		return fmt.Sprintf("%s: %s (key=%s, view=%s)", e.Code, e.Message, e.Key, e.View)
	case e.Key != "":
		return fmt.Sprintf("%s: %s (key=%s)", e.Code, e.Message, e.Key)
	case e.View != "":
		return fmt.Sprintf("%s: %s (view=%s)", e.Code, e.Message, e.View)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, so errors.Is matches the sentinels of
// the records, stats and view packages.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of an engine error anywhere in err's chain, or ""
// for other errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsDuplicateKey returns true if err is a duplicate-key error.
func IsDuplicateKey(err error) bool {
	return CodeOf(err) == ErrCodeDuplicateKey
}

// IsNotFound returns true if err reports a key that is not live.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

// IsEmpty returns true if err reports a view with nothing live to take.
func IsEmpty(err error) bool {
	return CodeOf(err) == ErrCodeEmpty
}

// IsNoData returns true if err reports a stats channel with no events.
func IsNoData(err error) bool {
	return CodeOf(err) == ErrCodeNoData
}

func newInvalidRecord(key, format string, args ...any) *Error {
	return &Error{Code: ErrCodeInvalidRecord, Message: fmt.Sprintf(format, args...), Key: key}
}

func newUnknownView(name string) *Error {
	return &Error{Code: ErrCodeUnknownView, Message: "view is not attached", View: name}
}
