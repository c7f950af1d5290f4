package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"salvadanaio/internal/analysis"
	"salvadanaio/internal/core"
	"salvadanaio/internal/services"
	"salvadanaio/internal/storage"
)

var testNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

type memoryStore struct {
	mu            sync.Mutex
	goals         map[int64]core.Goal
	contributions map[int64][]core.Contribution
	listErr       error
}

func newMemoryStore() *memoryStore {
	actual := func(month int, amount string) core.Contribution {
		a := core.MustParseMoney(amount)
		return core.Contribution{
			GoalID:          1,
			Period:          core.YearMonth{Year: 2026, Month: month},
			ProjectedAmount: core.MustParseMoney("500"),
			ActualAmount:    &a,
		}
	}
	return &memoryStore{
		goals: map[int64]core.Goal{
			1: {
				ID:                    1,
				Name:                  "Casa",
				Type:                  core.TargetBased,
				Category:              core.CategoryPersonal,
				Status:                core.StatusActive,
				StartDate:             time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
				ExpectedMonthlyAmount: core.MustParseMoney("500"),
				TargetAmount:          core.MustParseMoney("20000"),
				CurrentBalance:        core.MustParseMoney("1100"),
			},
		},
		contributions: map[int64][]core.Contribution{1: {actual(8, "500"), actual(9, "600")}},
	}
}

func (s *memoryStore) GetGoal(_ context.Context, id int64) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok {
		return core.Goal{}, fmt.Errorf("goal %d: %w", id, storage.ErrNotFound)
	}
	return g, nil
}

func (s *memoryStore) ListGoals(_ context.Context, status core.GoalStatus) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Goal
	for _, g := range s.goals {
		if g.Status == status {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *memoryStore) ListContributions(_ context.Context, goalID int64) ([]core.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]core.Contribution(nil), s.contributions[goalID]...), nil
}

func (s *memoryStore) RecordContribution(_ context.Context, p storage.RecordContributionParams) (core.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[p.GoalID]
	if !ok {
		return core.Contribution{}, fmt.Errorf("goal %d: %w", p.GoalID, storage.ErrNotFound)
	}
	c := core.Contribution{
		ID:               int64(len(s.contributions[p.GoalID]) + 1),
		GoalID:           p.GoalID,
		Period:           p.Period,
		ProjectedAmount:  g.ExpectedMonthlyAmount,
		ActualAmount:     p.ActualAmount,
		ContributionDate: p.ContributionDate,
		Notes:            p.Notes,
	}
	s.contributions[p.GoalID] = append(s.contributions[p.GoalID], c)
	return c, nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	reasons []string
}

func (p *recordingPublisher) PublishAnalysisRefresh(_ context.Context, _ int64, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reasons = append(p.reasons, reason)
	return nil
}

type testServer struct {
	*Server
	store     *memoryStore
	publisher *recordingPublisher
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	store := newMemoryStore()
	publisher := &recordingPublisher{}
	svc := services.NewAnalysisService(services.AnalysisDeps{
		Goals:         store,
		Contributions: store,
		Publisher:     publisher,
		Analyzer:      analysis.NewAnalyzer(analysis.WithClock(func() time.Time { return testNow })),
	})
	opts.Now = func() time.Time { return testNow }
	srv := NewServer(":0", svc, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testServer{Server: srv, store: store, publisher: publisher}
}

func (ts *testServer) do(method, target, contentType, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
	if !strings.HasPrefix(rec.Header().Get("X-Request-ID"), "req_") {
		t.Errorf("X-Request-ID = %q", rec.Header().Get("X-Request-ID"))
	}
}

func TestServer_Ready(t *testing.T) {
	ready := newTestServer(t, Options{Ready: func(context.Context) error { return nil }})
	if rec := ready.do(http.MethodGet, "/readyz", "", ""); rec.Code != http.StatusOK {
		t.Errorf("ready status = %d", rec.Code)
	}

	down := newTestServer(t, Options{Ready: func(context.Context) error { return errors.New("database is locked") }})
	rec := down.do(http.MethodGet, "/readyz", "", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("not ready status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "locked") {
		t.Error("readiness error details should not leak")
	}
}

func TestServer_Analysis(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(http.MethodGet, "/goals/1/analysis", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	body := decode[struct {
		Goal    core.Goal                   `json:"goal"`
		Metrics analysis.PerformanceMetrics `json:"metrics"`
	}](t, rec)
	if body.Goal.Name != "Casa" {
		t.Errorf("goal = %+v", body.Goal)
	}
	if body.Metrics.MonthsAnalyzed != 3 || body.Metrics.TotalActual.StringFixed() != "1100.00" {
		t.Errorf("metrics = %+v", body.Metrics)
	}

	rec = ts.do(http.MethodGet, "/goals/1/analysis?end=2026-09-15", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("windowed status = %d", rec.Code)
	}
	windowed := decode[struct {
		Metrics analysis.PerformanceMetrics `json:"metrics"`
	}](t, rec)
	if windowed.Metrics.MonthsAnalyzed != 2 {
		t.Errorf("windowed months = %d, want 2", windowed.Metrics.MonthsAnalyzed)
	}
}

func TestServer_ErrorStatuses(t *testing.T) {
	ts := newTestServer(t, Options{})

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"unknown goal", "/goals/99/analysis", http.StatusNotFound},
		{"bad goal id", "/goals/abc/summary", http.StatusUnprocessableEntity},
		{"bad end date", "/goals/1/analysis?end=tomorrow", http.StatusUnprocessableEntity},
		{"end before start", "/goals/1/indicators?end=2026-07-01", http.StatusUnprocessableEntity},
		{"unknown export", "/goals/1/export/ledger.csv", http.StatusNotFound},
		{"export without csv suffix", "/goals/1/export/analysis", http.StatusNotFound},
		{"bad status filter", "/summaries?status=ARCHIVED", http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodGet, tt.target, "", "")
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
		})
	}

	rec := ts.do(http.MethodGet, "/goals/99/analysis", "", "")
	body := decode[errorBody](t, rec)
	if body.Error == "" || body.RequestID != rec.Header().Get("X-Request-ID") {
		t.Errorf("error body = %+v", body)
	}
}

func TestServer_InternalErrorHidesDetails(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.store.listErr = errors.New("sqlite: disk I/O error at /var/lib/salvadanaio.db")

	rec := ts.do(http.MethodGet, "/goals/1/analysis", "", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "sqlite") {
		t.Errorf("body leaks error details: %s", rec.Body)
	}
	if m := ts.Metrics(); m.FailedRequests != 1 {
		t.Errorf("failed requests = %d, want 1", m.FailedRequests)
	}
}

func TestServer_SummaryIndicatorsOutlook(t *testing.T) {
	ts := newTestServer(t, Options{})

	summary := decode[analysis.QuickSummary](t, ts.do(http.MethodGet, "/goals/1/summary", "", ""))
	if !summary.HasRetroactiveData || summary.PerformancePercentage == nil {
		t.Errorf("summary = %+v", summary)
	}

	summaries := decode[[]services.GoalSummary](t, ts.do(http.MethodGet, "/summaries", "", ""))
	if len(summaries) != 1 || summaries[0].Goal.ID != 1 {
		t.Errorf("summaries = %+v", summaries)
	}

	empty := ts.do(http.MethodGet, "/summaries?status=PAUSED", "", "")
	if strings.TrimSpace(empty.Body.String()) != "[]" {
		t.Errorf("paused summaries = %s, want []", empty.Body)
	}

	indicators := decode[[]analysis.MonthlyIndicator](t, ts.do(http.MethodGet, "/goals/1/indicators", "", ""))
	if len(indicators) != 3 {
		t.Errorf("indicators = %d, want 3", len(indicators))
	}

	if rec := ts.do(http.MethodGet, "/goals/1/outlook", "", ""); rec.Code != http.StatusOK {
		t.Errorf("outlook status = %d", rec.Code)
	}
}

func TestServer_Export(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(http.MethodGet, "/goals/1/export/analysis.csv", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != "attachment; filename=Casa_analysis_2026-10-17.csv" {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.HasPrefix(rec.Body.String(), "Goal Name,Year,Month") {
		t.Errorf("body = %q", rec.Body)
	}

	rec = ts.do(http.MethodGet, "/goals/1/export/summary.csv", "", "")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "Metric,Value") {
		t.Errorf("summary export = %d %q", rec.Code, rec.Body)
	}
}

func TestServer_RecordContribution(t *testing.T) {
	ts := newTestServer(t, Options{})

	rec := ts.do(http.MethodPost, "/goals/1/contributions", "application/json", `{"actual": "450", "notes": "ottobre"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	c := decode[core.Contribution](t, rec)
	if c.Period != (core.YearMonth{Year: 2026, Month: 10}) || c.ActualAmount == nil || c.ActualAmount.StringFixed() != "450.00" {
		t.Errorf("contribution = %+v", c)
	}
	if len(ts.publisher.reasons) != 1 {
		t.Errorf("published %d refresh messages, want 1", len(ts.publisher.reasons))
	}

	analysisRec := ts.do(http.MethodGet, "/goals/1/analysis", "", "")
	body := decode[struct {
		Metrics analysis.PerformanceMetrics `json:"metrics"`
	}](t, analysisRec)
	if body.Metrics.TotalActual.StringFixed() != "1550.00" {
		t.Errorf("total actual after record = %s, want 1550.00", body.Metrics.TotalActual.StringFixed())
	}

	if rec := ts.do(http.MethodPost, "/goals/1/contributions", "application/json", `{"month": 14}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid month status = %d", rec.Code)
	}
	if rec := ts.do(http.MethodPost, "/goals/1/contributions", "application/json", `{"actual":`); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d", rec.Code)
	}
	if rec := ts.do(http.MethodPost, "/goals/42/contributions", "application/x-www-form-urlencoded", "actual=10"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown goal status = %d", rec.Code)
	}
	if rec := ts.do(http.MethodGet, "/goals/1/contributions", "", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET contributions status = %d, want 405", rec.Code)
	}
}

func TestServer_RecordContributionRateLimited(t *testing.T) {
	ts := newTestServer(t, Options{WriteRequestsPerMinute: 1})

	if rec := ts.do(http.MethodPost, "/goals/1/contributions", "application/json", `{"actual": "1"}`); rec.Code != http.StatusCreated {
		t.Fatalf("first status = %d", rec.Code)
	}
	rec := ts.do(http.MethodPost, "/goals/1/contributions", "application/json", `{"actual": "1"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}

	if rec := ts.do(http.MethodGet, "/goals/1/summary", "", ""); rec.Code != http.StatusOK {
		t.Errorf("reads should not be rate limited, status = %d", rec.Code)
	}
}

func TestServer_ShutdownTwice(t *testing.T) {
	ts := newTestServer(t, Options{})
	if err := ts.Shutdown(context.Background()); err != nil {
		t.Fatalf("first Shutdown() = %v", err)
	}
	if err := ts.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown() = %v", err)
	}
}
