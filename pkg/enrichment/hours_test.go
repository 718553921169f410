package enrichment

import (
	"testing"
	"time"
)

func TestIsOpenNow(t *testing.T) {
	tests := []struct {
		name     string
		hours    []string
		now      time.Time
		wantOpen bool
	}{
		{
			name:     "within a standard AM/PM window",
			hours:    []string{"Monday: 9:00 AM – 5:00 PM"},
			now:      time.Date(2026, time.March, 9, 12, 0, 0, 0, time.UTC), // a Monday
			wantOpen: true,
		},
		{
			name:     "within a bare 24h window",
			hours:    []string{"Monday: 13:00 – 21:00"},
			now:      time.Date(2026, time.March, 9, 14, 0, 0, 0, time.UTC),
			wantOpen: true,
		},
		{
			name:     "before a bare 24h window opens",
			hours:    []string{"Monday: 13:00 – 21:00"},
			now:      time.Date(2026, time.March, 9, 9, 0, 0, 0, time.UTC),
			wantOpen: false,
		},
		{
			name:     "overnight window carries into the next day",
			hours:    []string{"Sunday: 8:00 PM – 2:00 AM", "Monday: Closed"},
			now:      time.Date(2026, time.March, 9, 1, 0, 0, 0, time.UTC), // Monday 1am
			wantOpen: true,
		},
		{
			name:     "closed entry",
			hours:    []string{"Monday: Closed"},
			now:      time.Date(2026, time.March, 9, 12, 0, 0, 0, time.UTC),
			wantOpen: false,
		},
		{
			name:     "open 24 hours",
			hours:    []string{"Monday: Open 24 hours"},
			now:      time.Date(2026, time.March, 9, 3, 0, 0, 0, time.UTC),
			wantOpen: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			open, _ := IsOpenNow(tt.hours, tt.now)
			if open != tt.wantOpen {
				t.Errorf("IsOpenNow(%v, %v) open = %v, want %v", tt.hours, tt.now, open, tt.wantOpen)
			}
		})
	}
}
