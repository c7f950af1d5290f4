package analysis

import (
	"iter"
	"time"

	"salvadanaio/internal/core"
)

// MonthsInclusive counts the calendar months from start's month to end's
// month, both included. It is 0 when start falls in a later month than end.
// end is read in start's location so both dates truncate consistently.
func MonthsInclusive(start, end time.Time) int {
	n := core.YearMonthOf(start).MonthsUntil(core.YearMonthOf(end.In(start.Location()))) + 1
	if n < 0 {
		return 0
	}
	return n
}

// Months yields every calendar month from start to end inclusive. The
// sequence length is fixed up front by MonthsInclusive, so it always
// terminates, and it can be ranged over any number of times.
func Months(start, end time.Time) iter.Seq[core.YearMonth] {
	first := core.YearMonthOf(start)
	n := MonthsInclusive(start, end)
	return func(yield func(core.YearMonth) bool) {
		ym := first
		for i := 0; i < n; i++ {
			if !yield(ym) {
				return
			}
			ym = ym.Next()
		}
	}
}

// GenerateTheoreticalContributions builds the schedule a goal should have
// followed: one entry per month from start to end inclusive, each worth
// expected, with a running cumulative total. A start in a later month than
// end yields an empty schedule.
func GenerateTheoreticalContributions(start time.Time, expected core.Money, end time.Time) []TheoreticalContribution {
	out := make([]TheoreticalContribution, 0, MonthsInclusive(start, end))
	cumulative := core.Zero
	for ym := range Months(start, end) {
		cumulative = cumulative.Add(expected)
		out = append(out, TheoreticalContribution{
			Year:                  ym.Year,
			Month:                 ym.Month,
			TheoreticalAmount:     expected,
			CumulativeTheoretical: cumulative,
		})
	}
	return out
}

// TheoreticalBalance is expected times the whole months elapsed between
// start and end, or zero when no full month has elapsed.
func TheoreticalBalance(start time.Time, expected core.Money, end time.Time) core.Money {
	months := MonthsBetween(start, end)
	if months <= 0 {
		return core.Zero
	}
	return expected.MulInt(int64(months))
}
