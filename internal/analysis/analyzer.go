package analysis

import (
	"errors"
	"fmt"
	"time"

	"salvadanaio/internal/core"
	"salvadanaio/internal/log"
)

// ErrInvalidDateRange is returned when the analysis window is unusable: the
// goal starts in the future or the requested end precedes the start.
var ErrInvalidDateRange = errors.New("invalid date range")

const dateLayout = "2006-01-02"

// Analyzer runs retroactive analyses. The zero value is not usable; build
// one with NewAnalyzer.
type Analyzer struct {
	now    func() time.Time
	logger *log.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithClock replaces the wall clock. A nil clock is ignored.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLogger sets the logger used to report failed quick summaries.
func WithLogger(l *log.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{
		now:    time.Now,
		logger: log.Discard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Now reads the analyzer's clock. Callers deriving dates next to an
// analysis use it so both agree on the current month.
func (a *Analyzer) Now() time.Time {
	return a.now()
}

// AnalyzeGoalPerformance compares the goal's expected monthly schedule with
// the recorded contributions over [goal.StartDate, end], where end is
// opts.EndDate or now. The window is validated before anything is projected.
func (a *Analyzer) AnalyzeGoalPerformance(goal core.Goal, contributions []core.Contribution, opts *Options) (*Result, error) {
	now := a.Now()
	end := now
	if opts != nil && !opts.EndDate.IsZero() {
		end = opts.EndDate
	}
	if err := ValidateDateRange(goal.StartDate, end, now); err != nil {
		return nil, err
	}

	theoretical := GenerateTheoreticalContributions(goal.StartDate, goal.ExpectedMonthlyAmount, end)
	comparisons := CompareMonthlyPerformance(contributions, theoretical)

	return &Result{
		Metrics:                  CalculatePerformanceMetrics(comparisons, theoretical),
		MonthlyComparisons:       comparisons,
		TheoreticalContributions: theoretical,
		StartDate:                goal.StartDate,
		EndDate:                  end,
	}, nil
}

// ValidateDateRange rejects a start after now and an end before start.
func ValidateDateRange(start, end, now time.Time) error {
	if start.After(now) {
		return fmt.Errorf("%w: start date %s is in the future", ErrInvalidDateRange, start.Format(dateLayout))
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end date %s is before start date %s",
			ErrInvalidDateRange, end.Format(dateLayout), start.Format(dateLayout))
	}
	return nil
}

// QuickPerformanceSummary is a cheap preview suitable for lists. It never
// fails: a goal that has not started yet reports no data, and a failed
// analysis reports no data with the cause in Unavailable.
func (a *Analyzer) QuickPerformanceSummary(goal core.Goal, contributions []core.Contribution) (summary QuickSummary) {
	now := a.Now()
	if !goal.StartDate.Before(now) {
		return QuickSummary{HasRetroactiveData: false}
	}

	defer func() {
		if r := recover(); r != nil {
			summary = a.unavailable(goal, fmt.Errorf("analysis panicked: %v", r))
		}
	}()

	result, err := a.AnalyzeGoalPerformance(goal, contributions, &Options{EndDate: now})
	if err != nil {
		return a.unavailable(goal, err)
	}

	pct := result.Metrics.PerformancePercentage
	variance := result.Metrics.TotalVariance
	return QuickSummary{
		HasRetroactiveData:    true,
		PeriodDescription:     PeriodDescription(goal.StartDate, now),
		PerformancePercentage: &pct,
		TotalVariance:         &variance,
	}
}

func (a *Analyzer) unavailable(goal core.Goal, err error) QuickSummary {
	a.logger.Warn("Quick performance summary unavailable",
		log.FieldGoalID, goal.ID,
		log.FieldOperation, log.OpSummary,
		log.FieldError, err)
	return QuickSummary{HasRetroactiveData: false, Unavailable: err}
}
