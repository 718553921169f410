package holiday

import (
	"context"
	"testing"
	"time"

	"github.com/vecto-pilot/pilot-core/pkg/model"
)

func TestChecker_Check(t *testing.T) {
	tests := []struct {
		name      string
		date      time.Time
		wantIs    bool
		wantName  string
	}{
		{name: "new year's day", date: time.Date(2026, time.January, 1, 9, 0, 0, 0, time.UTC), wantIs: true, wantName: "New Year's Day"},
		{name: "independence day", date: time.Date(2026, time.July, 4, 12, 0, 0, 0, time.UTC), wantIs: true, wantName: "Independence Day"},
		{name: "juneteenth", date: time.Date(2026, time.June, 19, 0, 0, 0, 0, time.UTC), wantIs: true, wantName: "Juneteenth"},
		{name: "thanksgiving 2026 falls on the 4th thursday", date: time.Date(2026, time.November, 26, 0, 0, 0, 0, time.UTC), wantIs: true, wantName: "Thanksgiving"},
		{name: "memorial day 2026 is the last monday in may", date: time.Date(2026, time.May, 25, 0, 0, 0, 0, time.UTC), wantIs: true, wantName: "Memorial Day"},
		{name: "ordinary tuesday is not a holiday", date: time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), wantIs: false},
	}

	c := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := model.Snapshot{CreatedAt: tt.date, Timezone: "UTC"}
			isHoliday, name, err := c.Check(context.Background(), snap)
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if isHoliday != tt.wantIs {
				t.Fatalf("isHoliday = %v, want %v", isHoliday, tt.wantIs)
			}
			if isHoliday && name != tt.wantName {
				t.Fatalf("name = %q, want %q", name, tt.wantName)
			}
		})
	}
}

func TestChecker_Check_UnknownTimezoneFallsBackToUTC(t *testing.T) {
	c := New()
	snap := model.Snapshot{CreatedAt: time.Date(2026, time.December, 25, 8, 0, 0, 0, time.UTC), Timezone: "Not/AZone"}
	isHoliday, name, err := c.Check(context.Background(), snap)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !isHoliday || name != "Christmas Day" {
		t.Fatalf("got (%v, %q), want (true, \"Christmas Day\")", isHoliday, name)
	}
}
