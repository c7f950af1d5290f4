package analysis

import (
	"fmt"
	"time"
)

// MonthsBetween returns the whole months elapsed from start to end. A month
// counts once end reaches the same day-of-month, clamped to the length of
// shorter months, and the same time of day. An end before start yields 0.
func MonthsBetween(start, end time.Time) int {
	end = end.In(start.Location())
	if end.Before(start) {
		return 0
	}
	months := (end.Year()-start.Year())*12 + int(end.Month()-start.Month())
	if addMonthsClamped(start, months).After(end) {
		months--
	}
	return months
}

// addMonthsClamped moves t by n calendar months, keeping the day of month
// unless the target month is shorter, in which case it lands on its last day.
func addMonthsClamped(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, n, 0)
	day := t.Day()
	if last := daysIn(first.Year(), first.Month(), t.Location()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// PeriodDescription renders the time elapsed from start to end in words,
// e.g. "2 years and 3 months".
func PeriodDescription(start, end time.Time) string {
	months := MonthsBetween(start, end)
	if months < 1 {
		return "Less than 1 month"
	}
	if months < 12 {
		return plural(months, "month")
	}

	years, rest := months/12, months%12
	if rest == 0 {
		return plural(years, "year")
	}
	return plural(years, "year") + " and " + plural(rest, "month")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
