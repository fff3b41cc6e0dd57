// Package timeparse normalizes the time-of-day strings the clinic backend
// returns for slots. The backend is not consistent: depending on the
// endpoint a slot time arrives as "09:00:00", "9:00", "9:0", a bare hour,
// or a 12-hour form like "9:00 AM". Everything funnels through Parse so the
// rest of the code only ever sees a canonical 24-hour hour/minute pair.
package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// TimeOfDay is a canonical 24-hour clock reading.
type TimeOfDay struct {
	Hours   int // 0-23
	Minutes int // 0-59
}

// Default is returned for empty or unrecognizable input. 09:00 matches the
// clinic's standard opening hour and is a deliberate policy, not an error.
var Default = TimeOfDay{Hours: 9, Minutes: 0}

// Patterns are tried in this order; the first anchored match wins. The
// 12-hour form is last so "9:30" resolves through the 24-hour branch.
var (
	reFull     = regexp.MustCompile(`^(\d{1,2}):(\d{2}):(\d{2})$`)
	reHourMin  = regexp.MustCompile(`^(\d{1,2}):(\d{1,2})$`)
	reBareHour = regexp.MustCompile(`^(\d{1,2})$`)
	reTwelveHr = regexp.MustCompile(`^(\d{1,2})(?::(\d{1,2}))?\s*([AaPp])\.?[Mm]\.?$`)
)

// Parse converts a raw time string into a TimeOfDay. It is total: malformed
// or empty input yields Default, and out-of-range components are clamped
// into the valid clock range. It never returns an error and never panics.
func Parse(raw string) TimeOfDay {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Default
	}

	if m := reFull.FindStringSubmatch(s); m != nil {
		return FromParts(atoi(m[1]), atoi(m[2]))
	}
	if m := reHourMin.FindStringSubmatch(s); m != nil {
		return FromParts(atoi(m[1]), atoi(m[2]))
	}
	if m := reBareHour.FindStringSubmatch(s); m != nil {
		return FromParts(atoi(m[1]), 0)
	}
	if m := reTwelveHr.FindStringSubmatch(s); m != nil {
		hours := atoi(m[1])
		minutes := 0
		if m[2] != "" {
			minutes = atoi(m[2])
		}
		pm := m[3] == "P" || m[3] == "p"
		switch {
		case pm && hours < 12:
			hours += 12
		case !pm && hours == 12:
			hours = 0
		}
		return FromParts(hours, minutes)
	}
	return Default
}

// FromParts builds a TimeOfDay from separate hour/minute values, the shape
// some endpoints use instead of a string. Values outside the clock range
// are clamped rather than rejected.
func FromParts(hours, minutes int) TimeOfDay {
	return TimeOfDay{Hours: clamp(hours, 23), Minutes: clamp(minutes, 59)}
}

// Format12Hour renders the display form, e.g. "2:30 PM". Hour 0 renders as
// 12 AM and minutes are always zero-padded.
func (t TimeOfDay) Format12Hour() string {
	period := "AM"
	hours := t.Hours
	switch {
	case hours == 0:
		hours = 12
	case hours == 12:
		period = "PM"
	case hours > 12:
		hours -= 12
		period = "PM"
	}
	return fmt.Sprintf("%d:%02d %s", hours, t.Minutes, period)
}

// APIString renders the zero-padded 24-hour form the backend expects, e.g.
// "14:05".
func (t TimeOfDay) APIString() string {
	return fmt.Sprintf("%02d:%02d", t.Hours, t.Minutes)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
