package daywindow

import (
	"log/slog"
	"strings"
	"time"
	_ "time/tzdata" // Lambda runtimes ship without a zoneinfo database.
)

// Window is one local calendar day expressed as a half-open UTC interval [Start, End). On
// daylight saving transitions it is 23 or 25 hours long.
type Window struct {
	Start    time.Time
	End      time.Time
	Location *time.Location
	// Date is the local calendar date, YYYY-MM-DD.
	Date string
	// Fallback is set when the requested zone could not be loaded and UTC was used.
	Fallback bool
}

// Resolve returns the local day containing now in the given IANA zone. An empty or unknown
// zone degrades to UTC; it is never an error.
func Resolve(tz string, now time.Time) Window {
	loc, fallback := loadLocation(tz)

	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)

	return Window{
		Start:    start.UTC(),
		End:      end.UTC(),
		Location: loc,
		Date:     start.Format(time.DateOnly),
		Fallback: fallback,
	}
}

func loadLocation(tz string) (*time.Location, bool) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.UTC, true
	}
	if strings.EqualFold(tz, "utc") {
		return time.UTC, false
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		slog.Debug("DAYWINDOW: Falling back to UTC", "timezone", tz, "error", err)
		return time.UTC, true
	}
	return loc, false
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// LocalHour returns the wall-clock hour of t in the window's zone.
func (w Window) LocalHour(t time.Time) int {
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Hour()
}
