// Package holiday implements the pipeline's optional holiday-check
// collaborator (spec §4.G step 5): a US federal holiday calendar computed
// from fixed dates and floating nth-weekday-of-month rules, with no
// external calendar service involved. Unlike weather/traffic/news/events,
// holiday dates are a closed, deterministic rule set, so this adapter
// carries no I/O and no retry/circuit-breaker surface.
package holiday

import (
	"context"
	"time"

	"github.com/vecto-pilot/pilot-core/pkg/model"
)

// Checker implements pipeline.HolidayChecker against the US federal
// calendar. The zero value is ready to use.
type Checker struct{}

func New() *Checker { return &Checker{} }

// Check reports whether snap.CreatedAt (in snap.Timezone when loadable,
// UTC otherwise) falls on a recognized holiday. It never returns an error:
// the pipeline treats this stage as soft-fail regardless, but an adapter
// with no external dependency has nothing retryable to report.
func (c *Checker) Check(ctx context.Context, snap model.Snapshot) (bool, string, error) {
	at := snap.CreatedAt
	if snap.Timezone != "" {
		if loc, err := time.LoadLocation(snap.Timezone); err == nil {
			at = at.In(loc)
		}
	}
	name, ok := lookup(at.Year(), at.Month(), at.Day())
	return ok, name, nil
}

// lookup reports the holiday name for a given calendar date, if any.
func lookup(year int, month time.Month, day int) (string, bool) {
	for _, h := range holidaysFor(year) {
		if h.month == month && h.day == day {
			return h.name, true
		}
	}
	return "", false
}

type namedDate struct {
	name  string
	month time.Month
	day   int
}

// holidaysFor computes the year's US federal holiday dates: fixed dates
// plus the floating nth-weekday-of-month rules (Thanksgiving, Labor Day,
// Memorial Day, MLK Day, Presidents Day).
func holidaysFor(year int) []namedDate {
	return []namedDate{
		{"New Year's Day", time.January, 1},
		{"Martin Luther King Jr. Day", time.January, nthWeekday(year, time.January, time.Monday, 3)},
		{"Presidents Day", time.February, nthWeekday(year, time.February, time.Monday, 3)},
		{"Memorial Day", time.May, lastWeekday(year, time.May, time.Monday)},
		{"Juneteenth", time.June, 19},
		{"Independence Day", time.July, 4},
		{"Labor Day", time.September, nthWeekday(year, time.September, time.Monday, 1)},
		{"Columbus Day", time.October, nthWeekday(year, time.October, time.Monday, 2)},
		{"Veterans Day", time.November, 11},
		{"Thanksgiving", time.November, nthWeekday(year, time.November, time.Thursday, 4)},
		{"Christmas Day", time.December, 25},
	}
}

// nthWeekday returns the day-of-month for the n-th occurrence of weekday in
// month/year (n is 1-indexed).
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := int(weekday-first.Weekday()+7) % 7
	return 1 + offset + (n-1)*7
}

// lastWeekday returns the day-of-month for the last occurrence of weekday
// in month/year.
func lastWeekday(year int, month time.Month, weekday time.Weekday) int {
	next := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	last := next.AddDate(0, 0, -1)
	offset := int(last.Weekday()-weekday+7) % 7
	return last.Day() - offset
}
