package fault

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestError_MessageShape(t *testing.T) {
	err := New(AcquisitionFailed, errors.New("raw vendor text")).WithSubtype("no_transcript")
	if err.Error() != "ACQUISITION_FAILED{no_transcript}" {
		t.Errorf("got %q", err.Error())
	}

	plain := New(Timeout, errors.New("x"))
	if plain.Error() != "TIMEOUT" {
		t.Errorf("got %q", plain.Error())
	}
}

func TestCategoryOf_Classified(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NewRetryable(RateLimited, errors.New("429")))
	if got := CategoryOf(wrapped); got != RateLimited {
		t.Errorf("got %s", got)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(NewRetryable(Timeout, errors.New("x"))) {
		t.Error("retryable error reported non-retryable")
	}
	if IsRetryable(New(ContentUnavailable, errors.New("x"))) {
		t.Error("non-retryable error reported retryable")
	}
	if IsRetryable(errors.New("unclassified")) {
		t.Error("unclassified errors must be conservatively non-retryable")
	}
}

func TestClassify_ContextErrors(t *testing.T) {
	if got := Classify(context.DeadlineExceeded); got.Category != Timeout || !got.Retryable {
		t.Errorf("deadline: %+v", got)
	}
	if got := Classify(context.Canceled); got.Category != Timeout || got.Retryable {
		t.Errorf("canceled: %+v", got)
	}
}

func TestClassify_PassThrough(t *testing.T) {
	orig := New(MusicOrNonspeech, errors.New("x"))
	if got := Classify(fmt.Errorf("wrap: %w", orig)); got != orig {
		t.Error("classified errors must pass through unchanged")
	}
}

func TestClassify_MessageFallbacks(t *testing.T) {
	if got := Classify(errors.New("HTTP 429 Too Many Requests")); got.Category != RateLimited {
		t.Errorf("429: %s", got.Category)
	}
	if got := Classify(errors.New("resource not found")); got.Category != ContentUnavailable {
		t.Errorf("not found: %s", got.Category)
	}
	if got := Classify(errors.New("mystery")); got.Category != Unknown {
		t.Errorf("unknown: %s", got.Category)
	}
}
