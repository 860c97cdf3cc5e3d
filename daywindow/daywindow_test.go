package daywindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	now := time.Date(2026, 10, 17, 2, 30, 0, 0, time.UTC)

	tests := []struct {
		name         string
		tz           string
		wantStart    time.Time
		wantDate     string
		wantFallback bool
	}{
		{
			name:      "utc",
			tz:        "UTC",
			wantStart: time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC),
			wantDate:  "2026-10-17",
		},
		{
			name:      "zone behind utc is still on the previous day",
			tz:        "America/New_York",
			wantStart: time.Date(2026, 10, 16, 4, 0, 0, 0, time.UTC),
			wantDate:  "2026-10-16",
		},
		{
			name:      "zone ahead of utc with half-hour offset",
			tz:        "Asia/Kolkata",
			wantStart: time.Date(2026, 10, 16, 18, 30, 0, 0, time.UTC),
			wantDate:  "2026-10-17",
		},
		{
			name:         "empty zone defaults to utc",
			tz:           "",
			wantStart:    time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC),
			wantDate:     "2026-10-17",
			wantFallback: true,
		},
		{
			name:         "invalid zone degrades to utc",
			tz:           "Mars/Olympus_Mons",
			wantStart:    time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC),
			wantDate:     "2026-10-17",
			wantFallback: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Resolve(tt.tz, now)
			assert.True(t, tt.wantStart.Equal(w.Start), "start %s", w.Start)
			assert.Equal(t, 24*time.Hour, w.End.Sub(w.Start))
			assert.Equal(t, tt.wantDate, w.Date)
			assert.Equal(t, tt.wantFallback, w.Fallback)
			assert.True(t, w.Contains(now))
			assert.Equal(t, time.UTC, w.Start.Location())
		})
	}
}

func TestResolve_Properties(t *testing.T) {
	zones := []string{"UTC", "Pacific/Kiritimati", "Pacific/Pago_Pago", "Asia/Kathmandu", "Europe/Berlin", "Australia/Adelaide", "America/Los_Angeles"}
	// Instants away from DST transitions, spread over the day.
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	for _, tz := range zones {
		for step := 0; step < 48; step++ {
			now := base.Add(time.Duration(step) * 37 * time.Minute)
			w := Resolve(tz, now)
			require.False(t, w.Start.After(now), "%s %s: start after now", tz, now)
			require.True(t, now.Before(w.End), "%s %s: now not before end", tz, now)
			require.Equal(t, 24*time.Hour, w.End.Sub(w.Start), "%s %s", tz, now)
			require.Equal(t, 0, w.LocalHour(w.Start), "%s: window must start at local midnight", tz)
		}
	}
}

func TestResolve_DaylightSavingDays(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name string
		now  time.Time
		date string
		want time.Duration
	}{
		{"spring forward", time.Date(2026, 3, 8, 15, 0, 0, 0, ny), "2026-03-08", 23 * time.Hour},
		{"fall back", time.Date(2026, 11, 1, 15, 0, 0, 0, ny), "2026-11-01", 25 * time.Hour},
		{"ordinary day", time.Date(2026, 3, 9, 15, 0, 0, 0, ny), "2026-03-09", 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Resolve("America/New_York", tt.now)
			assert.Equal(t, tt.date, w.Date)
			assert.Equal(t, tt.want, w.End.Sub(w.Start))
			assert.Equal(t, 0, w.LocalHour(w.Start))
			assert.Equal(t, 0, w.LocalHour(w.End))
			assert.True(t, w.Contains(tt.now))

			// consecutive days tile without gap or overlap
			next := Resolve("America/New_York", w.End)
			assert.Equal(t, w.End, next.Start)
		})
	}
}

func TestWindow_Contains(t *testing.T) {
	w := Resolve("UTC", time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC))
	assert.True(t, w.Contains(w.Start))
	assert.False(t, w.Contains(w.End))
	assert.False(t, w.Contains(w.Start.Add(-time.Nanosecond)))
	assert.True(t, w.Contains(w.End.Add(-time.Nanosecond)))
}

func TestWindow_LocalHour(t *testing.T) {
	w := Resolve("Asia/Tokyo", time.Date(2026, 10, 17, 5, 0, 0, 0, time.UTC))
	assert.Equal(t, 14, w.LocalHour(time.Date(2026, 10, 17, 5, 0, 0, 0, time.UTC)))
	assert.Equal(t, 9, Window{}.LocalHour(time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)))
}
