package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"salvadanaio/internal/analysis"
	"salvadanaio/internal/core"
	"salvadanaio/internal/export"
	"salvadanaio/internal/log"
	"salvadanaio/internal/middleware/ratelimit"
	"salvadanaio/internal/middleware/security"
	"salvadanaio/internal/middleware/trace"
	"salvadanaio/internal/services"
	"salvadanaio/internal/storage"
)

// AnalysisAPI is what the handlers need from the service layer.
// *services.AnalysisService implements it.
type AnalysisAPI interface {
	Analyze(ctx context.Context, goalID int64, end time.Time) (core.Goal, *analysis.Result, error)
	QuickSummary(ctx context.Context, goalID int64) (analysis.QuickSummary, error)
	QuickSummaries(ctx context.Context, status core.GoalStatus) ([]services.GoalSummary, error)
	Indicators(ctx context.Context, goalID int64, end time.Time) ([]analysis.MonthlyIndicator, error)
	Outlook(ctx context.Context, goalID int64) (analysis.GoalOutlook, error)
	Export(ctx context.Context, goalID int64, kind string, w io.Writer) (string, error)
	RecordContribution(ctx context.Context, p storage.RecordContributionParams) (core.Contribution, error)
}

// ReadyCheck reports whether dependencies can serve requests.
type ReadyCheck func(ctx context.Context) error

// Options tune the server. Zero values pick defaults.
type Options struct {
	Logger *log.Logger
	Ready  ReadyCheck
	// WriteRequestsPerMinute limits POSTs per client (default 60).
	WriteRequestsPerMinute int
	Now                    func() time.Time
}

type Server struct {
	http.Server
	svc     AnalysisAPI
	ready   ReadyCheck
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware
	logger  *log.Logger
	now     func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, svc AnalysisAPI, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		svc:     svc,
		ready:   opts.Ready,
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.WriteRequestsPerMinute}),
		tracer:  trace.NewMiddleware(extractClientIP),
		logger:  logger,
		now:     now,
	}

	limited := s.limiter.Middleware(extractClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded", log.FieldClientIP, extractClientIP(r), log.FieldPath, r.URL.Path)
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded", RequestID: trace.GetRequestID(r.Context())})
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /goals/{id}/analysis", s.handleAnalysis)
	mux.HandleFunc("GET /goals/{id}/summary", s.handleSummary)
	mux.HandleFunc("GET /summaries", s.handleSummaries)
	mux.HandleFunc("GET /goals/{id}/indicators", s.handleIndicators)
	mux.HandleFunc("GET /goals/{id}/outlook", s.handleOutlook)
	mux.HandleFunc("GET /goals/{id}/export/{file}", s.handleExport)
	mux.Handle("POST /goals/{id}/contributions", limited(http.HandlerFunc(s.handleRecordContribution)))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var handler http.Handler = mux
	handler = headers.Middleware(handler)
	handler = s.tracer.Middleware(handler)
	handler = log.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops background routines and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics returns request counters from the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

func errInvalidStatus(status core.GoalStatus) error {
	return fmt.Errorf("%w: status %q", errInvalidInput, status)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	id, err := ParseGoalID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := ParseEndDate(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	goal, result, err := s.svc.Analyze(r.Context(), id, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Goal core.Goal `json:"goal"`
		*analysis.Result
	}{goal, result})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	id, err := ParseGoalID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := s.svc.QuickSummary(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	status := core.GoalStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = core.StatusActive
	}
	if !status.IsValid() {
		writeError(w, r, errInvalidStatus(status))
		return
	}
	summaries, err := s.svc.QuickSummaries(r.Context(), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if summaries == nil {
		summaries = []services.GoalSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	id, err := ParseGoalID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := ParseEndDate(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	indicators, err := s.svc.Indicators(r.Context(), id, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, indicators)
}

func (s *Server) handleOutlook(w http.ResponseWriter, r *http.Request) {
	id, err := ParseGoalID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	outlook, err := s.svc.Outlook(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outlook)
}

// handleExport serves /goals/{id}/export/analysis.csv and summary.csv.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id, err := ParseGoalID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	kind, ok := strings.CutSuffix(r.PathValue("file"), ".csv")
	if !ok || (kind != export.KindAnalysis && kind != export.KindSummary) {
		http.NotFound(w, r)
		return
	}

	var buf bytes.Buffer
	filename, err := s.svc.Export(r.Context(), id, kind, &buf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleRecordContribution(w http.ResponseWriter, r *http.Request) {
	id, err := ParseGoalID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body", RequestID: trace.GetRequestID(r.Context())})
		return
	}

	params, err := ParseContributionParams(p, id, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.svc.RecordContribution(r.Context(), params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}
