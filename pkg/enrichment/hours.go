package enrichment

import (
	"strconv"
	"strings"
	"time"
)

// weekdayNames maps a Places weekdayDescriptions line's leading day name to
// Go's time.Weekday ordering.
var weekdayNames = map[string]time.Weekday{
	"Sunday":    time.Sunday,
	"Monday":    time.Monday,
	"Tuesday":   time.Tuesday,
	"Wednesday": time.Wednesday,
	"Thursday":  time.Thursday,
	"Friday":    time.Friday,
	"Saturday":  time.Saturday,
}

// timeRange is a single open-close window expressed as minutes since
// midnight. Close may be <= open, meaning the window crosses into the next
// day (e.g. a bar open 8:00 PM - 2:00 AM).
type timeRange struct {
	openMinute  int
	closeMinute int
}

// IsOpenNow computes whether a venue is open at 'now' (already converted to
// the snapshot's timezone) from Places-style weekday descriptions such as
// "Monday: 9:00 AM - 5:00 PM", "Tuesday: Closed", "Wednesday: Open 24
// hours". It also checks the previous day's entry for an overnight window
// that wraps into today (spec §4.H.3).
func IsOpenNow(weekdayDescriptions []string, now time.Time) (bool, string) {
	if len(weekdayDescriptions) == 0 {
		return false, "no opening hours available"
	}

	nowMinute := now.Hour()*60 + now.Minute()

	today := findDescription(weekdayDescriptions, now.Weekday())
	if today == "" {
		return false, "no entry for today"
	}
	if open, reason := checkDay(today, nowMinute, false); reason != "" || open {
		return open, reason
	}

	yesterday := findDescription(weekdayDescriptions, now.Weekday()-1)
	if yesterday != "" {
		if open, _ := checkDay(yesterday, nowMinute, true); open {
			return true, "open via overnight window from previous day"
		}
	}

	return false, "closed per posted hours"
}

// checkDay parses one weekday line and reports whether nowMinute falls
// inside it. When checkingCarryover is true, only windows that wrap past
// midnight are considered (the window is being evaluated against *today*
// from *yesterday*'s entry).
func checkDay(line string, nowMinute int, checkingCarryover bool) (bool, string) {
	_, spec, ok := strings.Cut(line, ":")
	if !ok {
		return false, "malformed hours entry"
	}
	spec = strings.TrimSpace(spec)

	switch {
	case strings.EqualFold(spec, "Closed"):
		return false, ""
	case strings.EqualFold(spec, "Open 24 hours"):
		return !checkingCarryover, "open 24 hours"
	}

	for _, part := range strings.Split(spec, ",") {
		r, ok := parseTimeRange(part)
		if !ok {
			continue
		}
		wraps := r.closeMinute <= r.openMinute
		if checkingCarryover {
			if wraps && nowMinute < r.closeMinute {
				return true, ""
			}
			continue
		}
		if wraps {
			if nowMinute >= r.openMinute {
				return true, ""
			}
		} else if nowMinute >= r.openMinute && nowMinute < r.closeMinute {
			return true, ""
		}
	}
	return false, ""
}

// parseTimeRange parses "8:00 AM - 6:00 PM" (hyphen, en dash, or "to" as the
// separator) into minutes-since-midnight.
func parseTimeRange(s string) (timeRange, bool) {
	s = strings.TrimSpace(s)
	var sep string
	switch {
	case strings.Contains(s, "–"):
		sep = "–"
	case strings.Contains(s, " to "):
		sep = " to "
	case strings.Contains(s, "-"):
		sep = "-"
	default:
		return timeRange{}, false
	}

	parts := strings.SplitN(s, sep, 2)
	if len(parts) != 2 {
		return timeRange{}, false
	}

	open, ok1 := parseClockMinutes(parts[0])
	closeM, ok2 := parseClockMinutes(parts[1])
	if !ok1 || !ok2 {
		return timeRange{}, false
	}
	return timeRange{openMinute: open, closeMinute: closeM}, true
}

// parseClockMinutes parses "8:00 AM" / "6:00 PM" / "11:30PM" into minutes
// since midnight. Also accepts a bare 24h clock ("13:00", "21:00") with no
// AM/PM suffix (spec §4.H.3).
func parseClockMinutes(s string) (int, bool) {
	s = strings.TrimSpace(s)
	upper := strings.ToUpper(s)
	pm := strings.HasSuffix(upper, "PM")
	am := strings.HasSuffix(upper, "AM")
	numeric := strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(upper, "PM"), "AM"))

	hh, mm := 0, 0
	if h, m, ok := strings.Cut(numeric, ":"); ok {
		var err1, err2 error
		hh, err1 = strconv.Atoi(strings.TrimSpace(h))
		mm, err2 = strconv.Atoi(strings.TrimSpace(m))
		if err1 != nil || err2 != nil {
			return 0, false
		}
	} else {
		var err error
		hh, err = strconv.Atoi(numeric)
		if err != nil {
			return 0, false
		}
	}

	if pm && hh != 12 {
		hh += 12
	}
	if am && hh == 12 {
		hh = 0
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, false
	}
	return hh*60 + mm, true
}

func findDescription(lines []string, day time.Weekday) string {
	normalized := ((day % 7) + 7) % 7
	for _, line := range lines {
		name, _, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if weekdayNames[strings.TrimSpace(name)] == normalized {
			return line
		}
	}
	return ""
}
