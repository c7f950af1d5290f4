package services

import (
	"time"
)

// DuenessChecker decides whether a periodic job is due, given when it last
// ran, the current time and the schedule's anchor date.
type DuenessChecker interface {
	IsDue(lastExecution, now, anchor time.Time) bool
}

// MonthlyChecker makes a job due once per calendar month, from the anchor's
// day of month onwards. Anchors past the end of a short month fall on its
// last day.
type MonthlyChecker struct{}

func (MonthlyChecker) IsDue(lastExecution, now, anchor time.Time) bool {
	if lastExecution.IsZero() {
		return true
	}

	// Already processed this month?
	if lastExecution.Year() == now.Year() && lastExecution.Month() == now.Month() {
		return false
	}

	targetDay := anchor.Day()
	lastDayOfMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if targetDay > lastDayOfMonth {
		targetDay = lastDayOfMonth
	}
	return now.Day() >= targetDay
}
