package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"salvadanaio/internal/amqp"
	"salvadanaio/internal/analysis"
	"salvadanaio/internal/cache"
	"salvadanaio/internal/core"
	"salvadanaio/internal/export"
	"salvadanaio/internal/storage"
)

func newTestService(store *fakeStore, pub RefreshPublisher) (*AnalysisService, *cache.LRUCache[*analysis.Result]) {
	results := cache.NewLRUCache[*analysis.Result](16, time.Hour)
	svc := NewAnalysisService(AnalysisDeps{
		Goals:         store,
		Contributions: store,
		Publisher:     pub,
		Analyzer:      analysis.NewAnalyzer(analysis.WithClock(fixedClock)),
		Cache:         results,
		Concurrency:   2,
	})
	return svc, results
}

func TestAnalysisService_Analyze(t *testing.T) {
	store := newFakeStore(activeGoal(1, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)))
	store.contributions[1] = []core.Contribution{
		{GoalID: 1, Period: core.YearMonth{Year: 2026, Month: 8}, ActualAmount: moneyPtr("500")},
		{GoalID: 1, Period: core.YearMonth{Year: 2026, Month: 9}, ActualAmount: moneyPtr("600")},
	}
	svc, results := newTestService(store, nil)

	_, result, err := svc.Analyze(context.Background(), 1, time.Time{})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Metrics.MonthsAnalyzed != 3 {
		t.Errorf("MonthsAnalyzed = %d, want 3", result.Metrics.MonthsAnalyzed)
	}
	if got := result.Metrics.TotalActual.StringFixed(); got != "1100.00" {
		t.Errorf("TotalActual = %s, want 1100.00", got)
	}
	if !result.EndDate.Equal(testNow) {
		t.Errorf("EndDate = %v, want %v", result.EndDate, testNow)
	}
	if results.Size() != 1 {
		t.Fatalf("cache size = %d, want 1", results.Size())
	}

	// Same inputs, different day of the same month: served from cache with
	// the requested end date.
	end := time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC)
	_, again, err := svc.Analyze(context.Background(), 1, end)
	if err != nil {
		t.Fatalf("Analyze again: %v", err)
	}
	if !again.EndDate.Equal(end) {
		t.Errorf("cached EndDate = %v, want %v", again.EndDate, end)
	}
	if results.Stats().Hits != 1 || results.Size() != 1 {
		t.Errorf("stats = %+v, want one hit and one entry", results.Stats())
	}
	if result.EndDate.Equal(end) {
		t.Error("cache hit must not mutate the stored result")
	}
}

func TestAnalysisService_AnalyzeErrors(t *testing.T) {
	store := newFakeStore(activeGoal(1, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)))
	svc, results := newTestService(store, nil)

	if _, _, err := svc.Analyze(context.Background(), 99, time.Time{}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unknown goal err = %v, want ErrNotFound", err)
	}

	before := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	if _, _, err := svc.Analyze(context.Background(), 1, before); !errors.Is(err, analysis.ErrInvalidDateRange) {
		t.Errorf("end before start err = %v, want ErrInvalidDateRange", err)
	}

	// A valid analysis for August is cached; an end earlier in the same
	// month than the start must still be rejected.
	store.goals[1] = activeGoal(1, time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC))
	if _, _, err := svc.Analyze(context.Background(), 1, time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if _, _, err := svc.Analyze(context.Background(), 1, time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)); !errors.Is(err, analysis.ErrInvalidDateRange) {
		t.Errorf("err = %v, want ErrInvalidDateRange despite cached month", err)
	}
	if results.Size() != 1 {
		t.Errorf("cache size = %d, want 1", results.Size())
	}
}

func TestAnalysisService_RecordContribution(t *testing.T) {
	store := newFakeStore(activeGoal(1, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)))
	pub := &fakePublisher{}
	svc, results := newTestService(store, pub)

	if _, _, err := svc.Analyze(context.Background(), 1, time.Time{}); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if results.Size() != 1 {
		t.Fatalf("cache size = %d, want 1", results.Size())
	}

	c, err := svc.RecordContribution(context.Background(), storage.RecordContributionParams{
		GoalID:       1,
		Period:       core.YearMonth{Year: 2026, Month: 8},
		ActualAmount: moneyPtr("450"),
	})
	if err != nil {
		t.Fatalf("RecordContribution: %v", err)
	}
	if c.ProjectedAmount.StringFixed() != "500.00" {
		t.Errorf("projected = %s, want the goal's expected amount", c.ProjectedAmount.StringFixed())
	}
	if results.Size() != 0 {
		t.Errorf("cache size after record = %d, want 0", results.Size())
	}
	if len(pub.goalIDs) != 1 || pub.goalIDs[0] != 1 || pub.reasons[0] != amqp.ReasonContributionRecorded {
		t.Errorf("published = %v %v", pub.goalIDs, pub.reasons)
	}

	_, result, err := svc.Analyze(context.Background(), 1, time.Time{})
	if err != nil {
		t.Fatalf("Analyze after record: %v", err)
	}
	if got := result.Metrics.TotalActual.StringFixed(); got != "450.00" {
		t.Errorf("TotalActual = %s, want 450.00", got)
	}
}

func TestAnalysisService_RecordContributionPublishFailure(t *testing.T) {
	store := newFakeStore(activeGoal(1, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)))
	svc, _ := newTestService(store, &fakePublisher{err: errBroker})

	_, err := svc.RecordContribution(context.Background(), storage.RecordContributionParams{
		GoalID:       1,
		Period:       core.YearMonth{Year: 2026, Month: 9},
		ActualAmount: moneyPtr("500"),
	})
	if err != nil {
		t.Fatalf("publish failure must not fail the request: %v", err)
	}
	if len(store.contributions[1]) != 1 {
		t.Errorf("contribution should be stored")
	}

	if _, err := svc.RecordContribution(context.Background(), storage.RecordContributionParams{GoalID: 42}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unknown goal err = %v, want ErrNotFound", err)
	}
}

func TestAnalysisService_QuickSummaries(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	paused := activeGoal(3, start)
	paused.Status = core.StatusPaused
	future := activeGoal(4, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC))
	store := newFakeStore(activeGoal(1, start), activeGoal(2, start), paused, future)
	store.contributions[1] = []core.Contribution{
		{GoalID: 1, Period: core.YearMonth{Year: 2026, Month: 8}, ActualAmount: moneyPtr("1500")},
	}
	store.failList[2] = errors.New("disk I/O error")
	svc, _ := newTestService(store, nil)

	summaries, err := svc.QuickSummaries(context.Background(), core.StatusActive)
	if err != nil {
		t.Fatalf("QuickSummaries: %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("len = %d, want 3 active goals", len(summaries))
	}

	first := summaries[0]
	if first.Goal.ID != 1 || !first.Summary.HasRetroactiveData {
		t.Fatalf("first = %+v", first)
	}
	if *first.Summary.PerformancePercentage != 100 {
		t.Errorf("performance = %v, want 100", *first.Summary.PerformancePercentage)
	}

	failed := summaries[1]
	if failed.Goal.ID != 2 || failed.Summary.Unavailable == nil || failed.Summary.HasRetroactiveData {
		t.Errorf("failed goal summary = %+v", failed)
	}

	if summaries[2].Goal.ID != 4 || summaries[2].Summary.HasRetroactiveData {
		t.Errorf("future goal summary = %+v", summaries[2])
	}
	if store.calls(3) != 0 {
		t.Error("paused goal should not be loaded")
	}
}

func TestAnalysisService_QuickSummariesCancelled(t *testing.T) {
	store := newFakeStore(activeGoal(1, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)))
	store.failList[1] = context.Canceled
	svc, _ := newTestService(store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.QuickSummaries(ctx, core.StatusActive); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestAnalysisService_IndicatorsAndOutlook(t *testing.T) {
	store := newFakeStore(activeGoal(1, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)))
	store.contributions[1] = []core.Contribution{
		{GoalID: 1, Period: core.YearMonth{Year: 2026, Month: 8}, ActualAmount: moneyPtr("500")},
		{GoalID: 1, Period: core.YearMonth{Year: 2026, Month: 9}, ActualAmount: moneyPtr("700")},
	}
	svc, _ := newTestService(store, nil)

	indicators, err := svc.Indicators(context.Background(), 1, time.Time{})
	if err != nil {
		t.Fatalf("Indicators: %v", err)
	}
	want := []analysis.PerformanceStatus{analysis.StatusOnTrack, analysis.StatusAhead, analysis.StatusNoContribution}
	if len(indicators) != len(want) {
		t.Fatalf("indicators = %+v", indicators)
	}
	for i, s := range want {
		if indicators[i].Status != s {
			t.Errorf("month %d status = %s, want %s", i, indicators[i].Status, s)
		}
	}

	outlook, err := svc.Outlook(context.Background(), 1)
	if err != nil {
		t.Fatalf("Outlook: %v", err)
	}
	if outlook.GoalID != 1 || outlook.RemainingAmount == nil || len(outlook.NextTwelveMonths) != 12 {
		t.Errorf("outlook = %+v", outlook)
	}
}

func TestAnalysisService_Export(t *testing.T) {
	store := newFakeStore(activeGoal(1, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)))
	svc, _ := newTestService(store, nil)

	var buf bytes.Buffer
	name, err := svc.Export(context.Background(), 1, export.KindSummary, &buf)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if name != "Goal_1_summary_2026-10-17.csv" {
		t.Errorf("filename = %q", name)
	}
	if !strings.HasPrefix(buf.String(), "Metric,Value\n") {
		t.Errorf("unexpected csv:\n%s", buf.String())
	}

	if _, err := svc.Export(context.Background(), 1, "pdf", &buf); !errors.Is(err, ErrUnknownExportKind) {
		t.Errorf("err = %v, want ErrUnknownExportKind", err)
	}
}
