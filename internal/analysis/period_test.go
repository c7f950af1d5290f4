package analysis

import (
	"testing"
	"time"
)

func TestMonthsBetween(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Time
		want       int
	}{
		{"same day", date(2026, 1, 15), date(2026, 1, 15), 0},
		{"one day short", date(2026, 1, 15), date(2026, 2, 14), 0},
		{"exact month", date(2026, 1, 15), date(2026, 2, 15), 1},
		{"clamped to february", date(2026, 1, 31), date(2026, 2, 28), 1},
		{"leap february", date(2024, 1, 31), date(2024, 2, 28), 0},
		{"across years", date(2024, 3, 15), date(2026, 6, 15), 27},
		{"end before start", date(2026, 6, 1), date(2026, 1, 1), 0},
		{"time of day", time.Date(2026, 1, 15, 18, 0, 0, 0, time.UTC), time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MonthsBetween(tt.start, tt.end); got != tt.want {
				t.Fatalf("MonthsBetween = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPeriodDescription(t *testing.T) {
	start := date(2024, 3, 1)
	tests := []struct {
		end  time.Time
		want string
	}{
		{date(2024, 3, 20), "Less than 1 month"},
		{date(2024, 4, 1), "1 month"},
		{date(2024, 9, 15), "6 months"},
		{date(2025, 3, 1), "1 year"},
		{date(2026, 3, 1), "2 years"},
		{date(2025, 4, 2), "1 year and 1 month"},
		{date(2026, 6, 1), "2 years and 3 months"},
		{date(2023, 1, 1), "Less than 1 month"},
	}
	for _, tt := range tests {
		if got := PeriodDescription(start, tt.end); got != tt.want {
			t.Errorf("PeriodDescription(%s) = %q, want %q", tt.end.Format(dateLayout), got, tt.want)
		}
	}
}
