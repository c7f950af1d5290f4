package analysis

import (
	"math"
	"time"

	"salvadanaio/internal/core"
)

// GoalOutlook looks forward from the current balance. Target fields are nil
// for continuous goals, which have nothing to reach.
type GoalOutlook struct {
	GoalID                     int64         `json:"goalId"`
	Type                       core.GoalType `json:"type"`
	CurrentBalance             core.Money    `json:"currentBalance"`
	RemainingAmount            *core.Money   `json:"remainingAmount,omitempty"`
	ProgressPercentage         *float64      `json:"progressPercentage,omitempty"`
	ProjectedCompletionDate    *time.Time    `json:"projectedCompletionDate,omitempty"`
	MonthsToTarget             *int          `json:"monthsToTarget,omitempty"`
	AverageMonthlyContribution core.Money    `json:"averageMonthlyContribution"`
	ContributionConsistency    int           `json:"contributionConsistency"`
	IsOnTrack                  bool          `json:"isOnTrack"`
	NextTwelveMonths           []core.Money  `json:"nextTwelveMonths"`
}

// ProjectTargetDate estimates when balance reaches target saving monthly
// each month. ok is false when monthly is not positive. A target already
// reached projects to now.
func ProjectTargetDate(balance, target, monthly core.Money, now time.Time) (date time.Time, ok bool) {
	months, ok := monthsToTarget(balance, target, monthly)
	if !ok {
		return time.Time{}, false
	}
	return now.AddDate(0, months, 0), true
}

func monthsToTarget(balance, target, monthly core.Money) (int, bool) {
	if !monthly.IsPositive() {
		return 0, false
	}
	if balance.GreaterThanOrEqual(target) {
		return 0, true
	}
	q, err := target.Sub(balance).Div(monthly)
	if err != nil {
		return 0, false
	}
	return int(q.Decimal().Ceil().IntPart()), true
}

// MonthlyProjections returns the balance after each of the next months
// months, saving monthly each month.
func MonthlyProjections(balance, monthly core.Money, months int) []core.Money {
	if months <= 0 {
		return nil
	}
	out := make([]core.Money, months)
	running := balance
	for i := range out {
		running = running.Add(monthly)
		out[i] = running
	}
	return out
}

// ContributionConsistency scores how closely recorded actuals followed their
// projected amounts: 100 minus the mean absolute deviation, floored at 0 and
// rounded. Contributions without an actual are skipped; none at all scores 0.
func ContributionConsistency(contributions []core.Contribution) int {
	total := core.Zero
	n := 0
	for _, c := range contributions {
		if !c.HasActual() {
			continue
		}
		total = total.Add(c.ActualAmount.Sub(c.ProjectedAmount).Abs())
		n++
	}
	if n == 0 {
		return 0
	}
	avg, err := total.Div(core.NewMoneyFromInt(int64(n)))
	if err != nil {
		return 0
	}
	return roundHalfUp(math.Max(0, 100-avg.Float64()))
}

// AverageMonthlyContribution is the mean of the recorded actual amounts.
func AverageMonthlyContribution(contributions []core.Contribution) core.Money {
	total := core.Zero
	n := 0
	for _, c := range contributions {
		if !c.HasActual() {
			continue
		}
		total = total.Add(*c.ActualAmount)
		n++
	}
	if n == 0 {
		return core.Zero
	}
	avg, err := total.Div(core.NewMoneyFromInt(int64(n)))
	if err != nil {
		return core.Zero
	}
	return avg
}

// Outlook builds the forward-looking view of a goal. Only target-based goals
// get a remaining amount, progress and completion estimate.
func Outlook(goal core.Goal, contributions []core.Contribution, now time.Time) GoalOutlook {
	avg := AverageMonthlyContribution(contributions)
	o := GoalOutlook{
		GoalID:                     goal.ID,
		Type:                       goal.Type,
		CurrentBalance:             goal.CurrentBalance,
		AverageMonthlyContribution: avg,
		ContributionConsistency:    ContributionConsistency(contributions),
		IsOnTrack:                  avg.GreaterThanOrEqual(goal.ExpectedMonthlyAmount),
		NextTwelveMonths:           MonthlyProjections(goal.CurrentBalance, goal.ExpectedMonthlyAmount, 12),
	}
	if goal.Type != core.TargetBased {
		return o
	}

	remaining := core.MaxMoney(goal.TargetAmount.Sub(goal.CurrentBalance), core.Zero)
	progress := math.Min(percentage(goal.CurrentBalance, goal.TargetAmount), 100)
	o.RemainingAmount = &remaining
	o.ProgressPercentage = &progress

	if months, ok := monthsToTarget(goal.CurrentBalance, goal.TargetAmount, goal.ExpectedMonthlyAmount); ok {
		date := now.AddDate(0, months, 0)
		o.MonthsToTarget = &months
		o.ProjectedCompletionDate = &date
	}
	return o
}
