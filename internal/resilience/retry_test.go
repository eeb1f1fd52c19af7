package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:      3,
		InitialBackoff:   time.Millisecond,
		RateLimitBackoff: 2 * time.Millisecond,
		MaxBackoff:       10 * time.Millisecond,
	}
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	var calls int
	got, err := Do(context.Background(), fastPolicy(), func(_ context.Context) (int, error) {
		calls++
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 || calls != 1 {
		t.Errorf("got %d after %d calls", got, calls)
	}
}

func TestDo_RetriesServerErrors(t *testing.T) {
	var calls int
	got, err := Do(context.Background(), fastPolicy(), func(_ context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewStatusError(503, errors.New("unavailable"))
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Errorf("got %q after %d calls", got, calls)
	}
}

func TestDo_ClientErrorStopsImmediately(t *testing.T) {
	var calls int
	_, err := Do(context.Background(), fastPolicy(), func(_ context.Context) (int, error) {
		calls++
		return 0, NewStatusError(400, errors.New("bad request"))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("4xx must not retry, got %d calls", calls)
	}
}

func TestDo_MalformedResponseRetries(t *testing.T) {
	var calls int
	_, err := Do(context.Background(), fastPolicy(), func(_ context.Context) (int, error) {
		calls++
		return 0, NewMalformedResponseError(errors.New("bad json"))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Errorf("malformed responses should exhaust the budget, got %d calls", calls)
	}
}

func TestDo_RateLimitKeepsSameBudget(t *testing.T) {
	var calls int
	_, err := Do(context.Background(), fastPolicy(), func(_ context.Context) (int, error) {
		calls++
		return 0, NewStatusError(429, errors.New("slow down"))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Errorf("429 uses the standard attempt budget, got %d calls", calls)
	}
}

func TestDo_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	_, err := Do(ctx, fastPolicy(), func(_ context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewStatusError(500, errors.New("boom"))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("cancellation must stop retries, got %d calls", calls)
	}
}

func TestBackoff_MonotonicNonDecreasing(t *testing.T) {
	p := Policy{
		InitialBackoff:   100 * time.Millisecond,
		RateLimitBackoff: time.Second,
		MaxBackoff:       60 * time.Second,
		JitterFraction:   0.2,
	}.withDefaults()

	for _, class := range []Class{ClassRetry, ClassRateLimited} {
		prev := time.Duration(0)
		for attempt := 0; attempt < 8; attempt++ {
			d := p.backoff(attempt, class)
			if d < prev {
				t.Fatalf("class %d: delay decreased at attempt %d: %v < %v", class, attempt, d, prev)
			}
			prev = d
		}
	}
}

func TestBackoff_RateLimitBaseIsLonger(t *testing.T) {
	p := fastPolicy().withDefaults()
	p.JitterFraction = 0

	if std, rl := p.backoff(0, ClassRetry), p.backoff(0, ClassRateLimited); rl <= std {
		t.Errorf("rate-limit backoff %v should exceed standard %v", rl, std)
	}
}

func TestBackoff_Capped(t *testing.T) {
	p := Policy{
		InitialBackoff: time.Second,
		MaxBackoff:     4 * time.Second,
		JitterFraction: 0,
	}.withDefaults()

	if d := p.backoff(10, ClassRetry); d != 4*time.Second {
		t.Errorf("got %v, want cap", d)
	}
}

func TestClassify_StatusClasses(t *testing.T) {
	cases := []struct {
		code int
		want Class
	}{
		{429, ClassRateLimited},
		{500, ClassRetry},
		{503, ClassRetry},
		{408, ClassRetry},
		{400, ClassFatal},
		{404, ClassFatal},
		{422, ClassFatal},
	}
	for _, tc := range cases {
		err := NewStatusError(tc.code, errors.New("x"))
		if got := Classify(err); got != tc.want {
			t.Errorf("status %d: got %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestStatusCodeOf(t *testing.T) {
	err := NewStatusError(502, errors.New("bad gateway"))
	if got := StatusCodeOf(err); got != 502 {
		t.Errorf("got %d", got)
	}
	if got := StatusCodeOf(errors.New("plain")); got != 0 {
		t.Errorf("plain error: got %d", got)
	}
}
