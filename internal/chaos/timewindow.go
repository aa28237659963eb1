package chaos

import (
	"fmt"
	"time"
)

// Clock is a time of day expressed as seconds since midnight.
type Clock int

// ParseClock parses "HH:MM" or "HH:MM:SS". Malformed values are a
// configuration error and must be rejected at load time, never during
// evaluation.
func ParseClock(s string) (Clock, error) {
	var h, m, sec int
	switch n, _ := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec); n {
	case 2, 3:
	default:
		return 0, ValidationError{Field: "time", Value: s, Message: "expected HH:MM or HH:MM:SS"}
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, ValidationError{Field: "time", Value: s, Message: "out of range"}
	}
	return Clock(h*3600 + m*60 + sec), nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(c)/3600, int(c)%3600/60, int(c)%60)
}

// clockOf extracts the time of day from t.
func clockOf(t time.Time) Clock {
	return Clock(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

// TimeWindow is a recurring day-of-week plus time-of-day interval during
// which a scenario is permitted to fire. Start > End spans midnight.
type TimeWindow struct {
	DaysOfWeek []time.Weekday
	Start      Clock
	End        Clock
}

// Contains reports whether now falls inside the window. An overnight span
// belongs to the day it starts on: a Monday 22:00-06:00 window still matches
// at Tuesday 05:00.
func (w TimeWindow) Contains(now time.Time) bool {
	tod := clockOf(now)
	if w.Start <= w.End {
		return w.matchesDay(now.Weekday()) && tod >= w.Start && tod <= w.End
	}
	if tod >= w.Start {
		return w.matchesDay(now.Weekday())
	}
	if tod <= w.End {
		return w.matchesDay((now.Weekday() + 6) % 7)
	}
	return false
}

func (w TimeWindow) matchesDay(day time.Weekday) bool {
	for _, d := range w.DaysOfWeek {
		if d == day {
			return true
		}
	}
	return false
}

// InWindow reports whether now falls inside any of the windows. An empty list
// means no time is ever allowed.
func InWindow(windows []TimeWindow, now time.Time) bool {
	for _, w := range windows {
		if w.Contains(now) {
			return true
		}
	}
	return false
}
