// Package fault defines the closed error taxonomy for the content pipeline.
// Every raw vendor error is classified into one of these categories before
// it is persisted or reported; raw vendor text never reaches a response body.
package fault

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Category is one of the closed set of pipeline error categories.
type Category string

const (
	AcquisitionFailed      Category = "ACQUISITION_FAILED"
	TranscriptionFailed    Category = "TRANSCRIPTION_FAILED"
	ContentPolicyViolation Category = "CONTENT_POLICY_VIOLATION"
	MusicOrNonspeech       Category = "MUSIC_OR_NONSPEECH_CONTENT"
	RateLimited            Category = "RATE_LIMITED"
	Timeout                Category = "TIMEOUT"
	ContentUnavailable     Category = "CONTENT_UNAVAILABLE"
	AIAnalysisFailed       Category = "AI_ANALYSIS_FAILED"
	Unknown                Category = "UNKNOWN"
)

// Error is a classified pipeline error. Callers branch on Category and
// Retryable, never on message text.
type Error struct {
	Category  Category
	Subtype   string // optional, e.g. "no_transcript" under ACQUISITION_FAILED
	Retryable bool
	// UserHint is a safe, user-actionable message. It must never contain
	// raw vendor error text.
	UserHint string
	Err      error
}

func (e *Error) Error() string {
	if e.Subtype != "" {
		return fmt.Sprintf("%s{%s}", e.Category, e.Subtype)
	}
	return string(e.Category)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a non-retryable classified error.
func New(cat Category, err error) *Error {
	return &Error{Category: cat, Err: err}
}

// Retryable creates a retryable classified error.
func NewRetryable(cat Category, err error) *Error {
	return &Error{Category: cat, Retryable: true, Err: err}
}

// WithSubtype sets the subtype, returning the error for chaining.
func (e *Error) WithSubtype(sub string) *Error {
	e.Subtype = sub
	return e
}

// WithHint sets the user-actionable hint, returning the error for chaining.
func (e *Error) WithHint(hint string) *Error {
	e.UserHint = hint
	return e
}

// CategoryOf returns the category of err, classifying unrecognized errors.
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Category
	}
	return Classify(err).Category
}

// IsRetryable reports whether err carries a retryable classification.
// Unclassified errors are conservatively non-retryable.
func IsRetryable(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return false
}

// Classify maps a raw error into the closed taxonomy. Already-classified
// errors pass through unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewRetryable(Timeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return New(Timeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewRetryable(Timeout, err)
		}
		return NewRetryable(ContentUnavailable, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "too many requests"):
		return NewRetryable(RateLimited, err)
	case strings.Contains(msg, "not found") || strings.Contains(msg, "404") || strings.Contains(msg, "410"):
		return New(ContentUnavailable, err)
	}

	return New(Unknown, err)
}
