package fault

import (
	"testing"
	"time"
)

func TestStopwatch_InjectedClock(t *testing.T) {
	current := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	sw := StartStopwatchAt(func() time.Time { return current })

	current = current.Add(1500 * time.Millisecond)
	if got := sw.ElapsedMillis(); got != 1500 {
		t.Errorf("got %d ms", got)
	}

	prev := sw.Restart()
	if prev != 1500*time.Millisecond {
		t.Errorf("restart returned %v", prev)
	}

	current = current.Add(200 * time.Millisecond)
	if got := sw.Elapsed(); got != 200*time.Millisecond {
		t.Errorf("after restart got %v", got)
	}
}
