package chaos

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{in: "22:00", want: Clock(22 * 3600)},
		{in: "06:30", want: Clock(6*3600 + 30*60)},
		{in: "23:59:59", want: Clock(23*3600 + 59*60 + 59)},
		{in: "00:00", want: Clock(0)},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// mustClock is a test helper; production code parses at config load.
func mustClock(t *testing.T, s string) Clock {
	t.Helper()
	c, err := ParseClock(s)
	require.NoError(t, err)
	return c
}

func TestTimeWindowOvernight(t *testing.T) {
	t.Parallel()

	// Monday 22:00 through 06:00 the next morning.
	w := TimeWindow{
		DaysOfWeek: []time.Weekday{time.Monday},
		Start:      mustClock(t, "22:00"),
		End:        mustClock(t, "06:00"),
	}

	// 2026-08-24 is a Monday.
	monday := func(hm string) time.Time {
		c := mustClock(t, hm)
		return time.Date(2026, 8, 24, int(c)/3600, int(c)%3600/60, 0, 0, time.UTC)
	}
	tuesday := func(hm string) time.Time { return monday(hm).Add(24 * time.Hour) }

	assert.True(t, w.Contains(monday("23:00")), "late Monday evening")
	assert.True(t, w.Contains(tuesday("05:00")), "early Tuesday morning belongs to Monday's window")
	assert.False(t, w.Contains(monday("12:00")), "Monday midday")
	assert.False(t, w.Contains(tuesday("23:00")), "Tuesday evening")
	assert.False(t, w.Contains(monday("06:01").Add(24*time.Hour)), "Tuesday just past the morning end")
}

func TestTimeWindowSameDay(t *testing.T) {
	t.Parallel()

	w := TimeWindow{
		DaysOfWeek: []time.Weekday{time.Wednesday},
		Start:      mustClock(t, "09:00"),
		End:        mustClock(t, "17:00"),
	}

	wednesday := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	require.Equal(t, time.Wednesday, wednesday.Weekday())

	assert.True(t, w.Contains(wednesday))
	assert.True(t, w.Contains(wednesday.Add(-3*time.Hour)), "09:00 boundary")
	assert.False(t, w.Contains(wednesday.Add(6*time.Hour)), "18:00")
	assert.False(t, w.Contains(wednesday.Add(24*time.Hour)), "Thursday")
}

func TestInWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 24, 23, 0, 0, 0, time.UTC) // Monday 23:00

	assert.False(t, InWindow(nil, now), "empty list means never allowed")

	windows := []TimeWindow{
		{DaysOfWeek: []time.Weekday{time.Sunday}, Start: mustClock(t, "00:00"), End: mustClock(t, "23:59")},
		{DaysOfWeek: []time.Weekday{time.Monday}, Start: mustClock(t, "22:00"), End: mustClock(t, "06:00")},
	}
	assert.True(t, InWindow(windows, now), "second window matches")
	assert.False(t, InWindow(windows[:1], now), "first window alone does not")
}
