// Package resilience provides retry with status-class-aware exponential
// backoff for outbound vendor calls.
package resilience

import (
	"errors"
	"net"
	"syscall"
)

// StatusError carries the HTTP status code of a failed vendor call so retry
// policy can branch on status class instead of message text.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string { return e.Err.Error() }

func (e *StatusError) Unwrap() error { return e.Err }

// NewStatusError wraps err with its HTTP status code.
func NewStatusError(statusCode int, err error) *StatusError {
	return &StatusError{StatusCode: statusCode, Err: err}
}

// MalformedResponseError marks a response that arrived but could not be
// decoded (e.g. JSON-mode output that is not well-formed JSON). Retryable.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string { return e.Err.Error() }

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// NewMalformedResponseError wraps a decode failure.
func NewMalformedResponseError(err error) *MalformedResponseError {
	return &MalformedResponseError{Err: err}
}

// StatusCodeOf extracts the HTTP status code from err's chain, or 0.
func StatusCodeOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// Class is the retry disposition of a failed call.
type Class int

const (
	// ClassFatal means the call must not be retried (4xx other than 429).
	ClassFatal Class = iota
	// ClassRetry means standard backoff retry (5xx, network, timeout,
	// malformed response).
	ClassRetry
	// ClassRateLimited means retry with the long rate-limit backoff (429).
	ClassRateLimited
)

// Classify determines the retry disposition of err.
func Classify(err error) Class {
	if err == nil {
		return ClassFatal
	}

	if code := StatusCodeOf(err); code != 0 {
		switch {
		case code == 429:
			return ClassRateLimited
		case code >= 500:
			return ClassRetry
		case code == 408:
			return ClassRetry
		case code >= 400:
			return ClassFatal
		}
	}

	var mre *MalformedResponseError
	if errors.As(err, &mre) {
		return ClassRetry
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassRetry
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return ClassRetry
	}

	return ClassFatal
}
