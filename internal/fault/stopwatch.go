package fault

import "time"

// Stopwatch measures elapsed wall-clock time for phase accounting.
// The clock function is injectable for tests.
type Stopwatch struct {
	start time.Time
	now   func() time.Time
}

// StartStopwatch begins timing immediately.
func StartStopwatch() *Stopwatch {
	return &Stopwatch{start: time.Now(), now: time.Now}
}

// StartStopwatchAt begins timing with a custom clock (for tests).
func StartStopwatchAt(now func() time.Time) *Stopwatch {
	return &Stopwatch{start: now(), now: now}
}

// Elapsed returns the duration since the stopwatch started.
func (s *Stopwatch) Elapsed() time.Duration {
	return s.now().Sub(s.start)
}

// ElapsedMillis returns elapsed time in whole milliseconds.
func (s *Stopwatch) ElapsedMillis() int64 {
	return s.Elapsed().Milliseconds()
}

// Restart resets the start time and returns the previous elapsed duration.
func (s *Stopwatch) Restart() time.Duration {
	elapsed := s.Elapsed()
	s.start = s.now()
	return elapsed
}
