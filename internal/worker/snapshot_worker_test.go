package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"salvadanaio/internal/amqp"
	"salvadanaio/internal/analysis"
	"salvadanaio/internal/core"
	"salvadanaio/internal/sheets"
	"salvadanaio/internal/sheets/memory"
	"salvadanaio/internal/storage"
)

var testNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	goals         map[int64]core.Goal
	contributions map[int64][]core.Contribution
	getErr        error
	saveErr       error
	saved         []storage.Snapshot
	byMessage     map[string]storage.Snapshot
}

func (s *fakeStore) GetGoal(_ context.Context, id int64) (core.Goal, error) {
	if s.getErr != nil {
		return core.Goal{}, s.getErr
	}
	g, ok := s.goals[id]
	if !ok {
		return core.Goal{}, fmt.Errorf("goal %d: %w", id, storage.ErrNotFound)
	}
	return g, nil
}

func (s *fakeStore) ListContributions(_ context.Context, goalID int64) ([]core.Contribution, error) {
	return s.contributions[goalID], nil
}

func (s *fakeStore) SaveSnapshot(_ context.Context, goalID int64, messageID, reason string, result *analysis.Result) (storage.Snapshot, bool, error) {
	if s.saveErr != nil {
		return storage.Snapshot{}, false, s.saveErr
	}
	if snap, ok := s.byMessage[messageID]; ok && messageID != "" {
		return snap, false, nil
	}
	snap := storage.Snapshot{
		ID:                    int64(len(s.saved) + 1),
		GoalID:                goalID,
		MessageID:             messageID,
		WindowStart:           result.StartDate,
		WindowEnd:             result.EndDate,
		PerformancePercentage: result.Metrics.PerformancePercentage,
		TotalVariance:         result.Metrics.TotalVariance,
		Metrics:               result.Metrics,
		Reason:                reason,
	}
	s.saved = append(s.saved, snap)
	if s.byMessage == nil {
		s.byMessage = make(map[string]storage.Snapshot)
	}
	s.byMessage[messageID] = snap
	return snap, true, nil
}

type failingWriter struct {
	err   error
	calls int
}

func (w *failingWriter) WriteAnalysis(context.Context, core.Goal, *analysis.Result) (string, error) {
	w.calls++
	return "", w.err
}

func newStore() *fakeStore {
	actual := core.MustParseMoney("250")
	return &fakeStore{
		goals: map[int64]core.Goal{
			1: {
				ID:                    1,
				Name:                  "Fondo emergenza",
				Type:                  core.Continuous,
				Status:                core.StatusActive,
				StartDate:             time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
				ExpectedMonthlyAmount: core.MustParseMoney("250"),
			},
			2: {
				ID:                    2,
				Name:                  "Futuro",
				Type:                  core.Continuous,
				StartDate:             time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
				ExpectedMonthlyAmount: core.MustParseMoney("100"),
			},
		},
		contributions: map[int64][]core.Contribution{
			1: {{GoalID: 1, Period: core.YearMonth{Year: 2026, Month: 9}, ActualAmount: &actual}},
		},
	}
}

func newWorker(store *fakeStore, writer *memory.Store) *SnapshotWorker {
	if writer == nil {
		return newWorkerWith(store, nil)
	}
	return newWorkerWith(store, writer)
}

func newWorkerWith(store *fakeStore, writer sheets.AnalysisWriter) *SnapshotWorker {
	a := analysis.NewAnalyzer(analysis.WithClock(func() time.Time { return testNow }))
	return NewSnapshotWorker(store, a, writer, nil)
}

func TestHandleRefresh_SavesSnapshotAndWritesSheet(t *testing.T) {
	store := newStore()
	writer := memory.New()
	w := newWorker(store, writer)

	msg := amqp.NewAnalysisRefreshMessage(1, amqp.ReasonContributionRecorded)
	if err := w.HandleRefresh(context.Background(), msg); err != nil {
		t.Fatalf("HandleRefresh: %v", err)
	}

	if len(store.saved) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(store.saved))
	}
	snap := store.saved[0]
	if snap.Reason != amqp.ReasonContributionRecorded || snap.Metrics.MonthsAnalyzed != 2 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.PerformancePercentage != 50 {
		t.Errorf("performance = %v, want 50", snap.PerformancePercentage)
	}
	if rows := writer.Rows(1); len(rows) != 3 {
		t.Errorf("sheet rows = %d, want header + 2", len(rows))
	}
}

func TestHandleRefresh_AcknowledgedWithoutWork(t *testing.T) {
	store := newStore()
	w := newWorker(store, nil)

	for _, id := range []int64{2, 99} {
		if err := w.HandleRefresh(context.Background(), amqp.NewAnalysisRefreshMessage(id, amqp.ReasonManual)); err != nil {
			t.Errorf("goal %d: HandleRefresh = %v, want nil", id, err)
		}
	}
	if len(store.saved) != 0 {
		t.Errorf("snapshots = %d, want 0", len(store.saved))
	}
}

func TestHandleRefresh_FailuresAreReturned(t *testing.T) {
	dbErr := errors.New("database is locked")

	store := newStore()
	store.getErr = dbErr
	if err := newWorker(store, nil).HandleRefresh(context.Background(), amqp.NewAnalysisRefreshMessage(1, amqp.ReasonManual)); !errors.Is(err, dbErr) {
		t.Errorf("get failure: err = %v", err)
	}

	store = newStore()
	store.saveErr = dbErr
	if err := newWorker(store, nil).HandleRefresh(context.Background(), amqp.NewAnalysisRefreshMessage(1, amqp.ReasonManual)); !errors.Is(err, dbErr) {
		t.Errorf("save failure: err = %v", err)
	}
}

func TestHandleRefresh_RedeliveryAfterSheetsFailureKeepsOneSnapshot(t *testing.T) {
	store := newStore()
	sheetsErr := errors.New("sheets: quota exceeded")
	writer := &failingWriter{err: sheetsErr}
	w := newWorkerWith(store, writer)

	msg := amqp.NewAnalysisRefreshMessage(1, amqp.ReasonContributionRecorded)
	for i := 1; i <= 2; i++ {
		if err := w.HandleRefresh(context.Background(), msg); !errors.Is(err, sheetsErr) {
			t.Fatalf("delivery %d: err = %v, want sheets failure", i, err)
		}
	}

	if len(store.saved) != 1 {
		t.Fatalf("snapshots = %d, want 1 across redeliveries", len(store.saved))
	}
	if store.saved[0].MessageID != msg.MessageID {
		t.Errorf("snapshot message id = %q, want %q", store.saved[0].MessageID, msg.MessageID)
	}
	if writer.calls != 2 {
		t.Errorf("sheet writes = %d, want a retry on each delivery", writer.calls)
	}

	if err := w.HandleRefresh(context.Background(), amqp.NewAnalysisRefreshMessage(1, amqp.ReasonManual)); !errors.Is(err, sheetsErr) {
		t.Fatalf("new message: err = %v", err)
	}
	if len(store.saved) != 2 {
		t.Errorf("snapshots = %d, want a new one for a distinct message", len(store.saved))
	}
}
