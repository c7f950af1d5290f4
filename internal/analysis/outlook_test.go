package analysis

import (
	"testing"

	"salvadanaio/internal/core"
)

func TestMonthStatus(t *testing.T) {
	tests := []struct {
		actual, theoretical string
		want                PerformanceStatus
	}{
		{"0", "500", StatusNoContribution},
		{"600", "500", StatusAhead},
		{"500", "500", StatusOnTrack},
		{"460", "500", StatusOnTrack},
		{"400", "500", StatusBehind},
		{"10", "0", StatusAhead},
	}
	for _, tt := range tests {
		if got := MonthStatus(money(tt.actual), money(tt.theoretical), DefaultTolerance); got != tt.want {
			t.Errorf("MonthStatus(%s, %s) = %s, want %s", tt.actual, tt.theoretical, got, tt.want)
		}
	}
}

func TestPerformanceIndicators(t *testing.T) {
	comparisons := CompareMonthlyPerformance(
		[]core.Contribution{contribution(2026, 3, "500"), contribution(2026, 4, "333.33")},
		GenerateTheoreticalContributions(date(2026, 3, 1), money("500"), date(2026, 5, 31)),
	)

	got := PerformanceIndicators(comparisons)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Tooltip != "Mar 2026: 100% of target (500.00 / 500.00)" {
		t.Fatalf("tooltip = %q", got[0].Tooltip)
	}
	if got[1].Status != StatusBehind || got[1].Percentage != 67 {
		t.Fatalf("april = %+v, want behind at 67%%", got[1])
	}
	if got[2].Status != StatusNoContribution || got[2].Percentage != 0 {
		t.Fatalf("may = %+v, want no-contribution at 0%%", got[2])
	}
	if got[1].Status.Label() != "Behind" {
		t.Fatalf("label = %q", got[1].Status.Label())
	}
}

func TestProjectTargetDate(t *testing.T) {
	now := date(2026, 10, 17)

	got, ok := ProjectTargetDate(money("1000"), money("2500"), money("500"), now)
	if !ok || !got.Equal(date(2027, 1, 17)) {
		t.Fatalf("ProjectTargetDate = %v, %v; want 2027-01-17", got, ok)
	}

	// Partial months round up.
	got, ok = ProjectTargetDate(money("1000"), money("2600"), money("500"), now)
	if !ok || !got.Equal(date(2027, 2, 17)) {
		t.Fatalf("ProjectTargetDate = %v, %v; want 2027-02-17", got, ok)
	}

	if got, ok = ProjectTargetDate(money("3000"), money("2500"), money("500"), now); !ok || !got.Equal(now) {
		t.Fatalf("reached target = %v, %v; want now", got, ok)
	}
	if _, ok = ProjectTargetDate(money("0"), money("2500"), money("0"), now); ok {
		t.Fatal("zero monthly amount should not project a date")
	}
}

func TestMonthlyProjections(t *testing.T) {
	got := MonthlyProjections(money("100"), money("50"), 3)
	want := []string{"150.00", "200.00", "250.00"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].StringFixed() != want[i] {
			t.Fatalf("month %d = %s, want %s", i+1, got[i].StringFixed(), want[i])
		}
	}
	if MonthlyProjections(money("100"), money("50"), 0) != nil {
		t.Fatal("expected nil for zero months")
	}
}

func TestContributionConsistency(t *testing.T) {
	projectedOnly := core.Contribution{Period: core.YearMonth{Year: 2026, Month: 3}, ProjectedAmount: money("500")}

	tests := []struct {
		name  string
		input []core.Contribution
		want  int
	}{
		{"none", nil, 0},
		{"projected only", []core.Contribution{projectedOnly}, 0},
		{"exact", []core.Contribution{contribution(2026, 1, "500"), projectedOnly}, 100},
		{"average deviation", []core.Contribution{contribution(2026, 1, "450"), contribution(2026, 2, "500")}, 75},
		{"clamped", []core.Contribution{contribution(2026, 1, "0")}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContributionConsistency(tt.input); got != tt.want {
				t.Fatalf("ContributionConsistency = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestOutlook(t *testing.T) {
	now := date(2026, 10, 17)
	goal := goalStartingAugust()
	goal.CurrentBalance = money("1000")
	contributions := []core.Contribution{contribution(2026, 8, "500"), contribution(2026, 9, "500")}

	o := Outlook(goal, contributions, now)
	if o.RemainingAmount == nil || o.RemainingAmount.StringFixed() != "5000.00" {
		t.Fatalf("remaining = %v, want 5000.00", o.RemainingAmount)
	}
	if o.MonthsToTarget == nil || *o.MonthsToTarget != 10 {
		t.Fatalf("months to target = %v, want 10", o.MonthsToTarget)
	}
	if o.ProjectedCompletionDate == nil || !o.ProjectedCompletionDate.Equal(date(2027, 8, 17)) {
		t.Fatalf("completion = %v, want 2027-08-17", o.ProjectedCompletionDate)
	}
	if !o.IsOnTrack || o.ContributionConsistency != 100 {
		t.Fatalf("on track = %v consistency = %d", o.IsOnTrack, o.ContributionConsistency)
	}
	if len(o.NextTwelveMonths) != 12 {
		t.Fatalf("projections = %d, want 12", len(o.NextTwelveMonths))
	}

	goal.Type = core.Continuous
	o = Outlook(goal, nil, now)
	if o.RemainingAmount != nil || o.ProjectedCompletionDate != nil || o.MonthsToTarget != nil || o.ProgressPercentage != nil {
		t.Fatalf("continuous goal should have no target fields: %+v", o)
	}
	if o.IsOnTrack {
		t.Fatal("no contributions should not be on track")
	}
}
