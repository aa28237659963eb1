package chaos

import (
	"sync"
	"time"
)

// The limiters are deliberately best-effort: the window between a "not
// limited" answer and the subsequent record is not atomic, so two in-flight
// decisions can both pass before either records. Each limiter's own
// trim-then-check sequence is internally consistent under its mutex.

// minuteLimiter caps triggers per minute across all scenarios. It keeps a
// FIFO of trigger timestamps trimmed lazily on each inspection.
type minuteLimiter struct {
	mu     sync.Mutex
	stamps []time.Time
}

// limited trims entries older than a minute, then reports whether the
// remaining count has reached max.
func (l *minuteLimiter) limited(now time.Time, max int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-time.Minute)
	i := 0
	for i < len(l.stamps) && l.stamps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
	return len(l.stamps) >= max
}

func (l *minuteLimiter) record(now time.Time) {
	l.mu.Lock()
	l.stamps = append(l.stamps, now)
	l.mu.Unlock()
}

// hourlyLimiter caps triggers per hour per scenario. The hourly count resets
// lazily: the first inspection more than an hour after the last trigger
// zeroes it, so with no traffic no reset ever happens. There is no fixed
// wall-clock boundary.
type hourlyLimiter struct {
	states sync.Map // scenario name -> *scenarioState
}

type scenarioState struct {
	mu    sync.Mutex
	count int
	last  time.Time
}

func (l *hourlyLimiter) state(name string) *scenarioState {
	if s, ok := l.states.Load(name); ok {
		return s.(*scenarioState)
	}
	s, _ := l.states.LoadOrStore(name, &scenarioState{})
	return s.(*scenarioState)
}

// limited reports whether the scenario has exhausted its hourly budget. A
// scenario with no prior trigger is never limited.
func (l *hourlyLimiter) limited(name string, now time.Time, max int) bool {
	v, ok := l.states.Load(name)
	if !ok {
		return false
	}
	s := v.(*scenarioState)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last.IsZero() || now.Sub(s.last) >= time.Hour {
		s.count = 0
		return false
	}
	return s.count >= max
}

func (l *hourlyLimiter) record(name string, now time.Time) {
	s := l.state(name)
	s.mu.Lock()
	s.count++
	s.last = now
	s.mu.Unlock()
}

// lastTriggered returns the most recent trigger time across all scenarios.
func (l *hourlyLimiter) lastTriggered() (time.Time, bool) {
	var latest time.Time
	l.states.Range(func(_, v interface{}) bool {
		s := v.(*scenarioState)
		s.mu.Lock()
		if s.last.After(latest) {
			latest = s.last
		}
		s.mu.Unlock()
		return true
	})
	return latest, !latest.IsZero()
}
