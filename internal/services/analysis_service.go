package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"salvadanaio/internal/amqp"
	"salvadanaio/internal/analysis"
	"salvadanaio/internal/cache"
	"salvadanaio/internal/core"
	"salvadanaio/internal/export"
	"salvadanaio/internal/log"
	"salvadanaio/internal/storage"
)

// ErrUnknownExportKind is returned by Export for kinds other than
// export.KindAnalysis and export.KindSummary.
var ErrUnknownExportKind = errors.New("unknown export kind")

const defaultSummaryConcurrency = 4

// AnalysisDeps wires an AnalysisService. Publisher and Cache are optional.
type AnalysisDeps struct {
	Goals         GoalReader
	Contributions ContributionRecorder
	Publisher     RefreshPublisher
	Analyzer      *analysis.Analyzer
	Cache         cache.Cache[*analysis.Result]
	// Concurrency bounds QuickSummaries. Zero means 4.
	Concurrency int
	Logger      *log.Logger
}

// AnalysisService loads goals from storage and runs the analysis engine on
// them, memoizing results.
type AnalysisService struct {
	goals         GoalReader
	contributions ContributionRecorder
	publisher     RefreshPublisher
	analyzer      *analysis.Analyzer
	results       cache.Cache[*analysis.Result]
	concurrency   int
	logger        *log.Logger
	events        *log.StructuredLogger
}

func NewAnalysisService(deps AnalysisDeps) *AnalysisService {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	analyzer := deps.Analyzer
	if analyzer == nil {
		analyzer = analysis.NewAnalyzer(analysis.WithLogger(logger))
	}
	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = defaultSummaryConcurrency
	}
	return &AnalysisService{
		goals:         deps.Goals,
		contributions: deps.Contributions,
		publisher:     deps.Publisher,
		analyzer:      analyzer,
		results:       deps.Cache,
		concurrency:   concurrency,
		logger:        logger.WithComponent(log.ComponentAnalysis),
		events:        log.NewStructuredLogger(logger),
	}
}

// GoalSummary pairs a goal with its quick summary.
type GoalSummary struct {
	Goal    core.Goal             `json:"goal"`
	Summary analysis.QuickSummary `json:"summary"`
}

func (s *AnalysisService) load(ctx context.Context, goalID int64) (core.Goal, []core.Contribution, error) {
	goal, err := s.goals.GetGoal(ctx, goalID)
	if err != nil {
		return core.Goal{}, nil, err
	}
	contributions, err := s.goals.ListContributions(ctx, goalID)
	if err != nil {
		return core.Goal{}, nil, err
	}
	return goal, contributions, nil
}

// Analyze runs the retroactive analysis of a goal up to end, or up to now
// when end is zero.
func (s *AnalysisService) Analyze(ctx context.Context, goalID int64, end time.Time) (core.Goal, *analysis.Result, error) {
	goal, contributions, err := s.load(ctx, goalID)
	if err != nil {
		return core.Goal{}, nil, err
	}
	result, err := s.analyze(ctx, goal, contributions, end)
	if err != nil {
		return core.Goal{}, nil, err
	}
	return goal, result, nil
}

func (s *AnalysisService) analyze(ctx context.Context, goal core.Goal, contributions []core.Contribution, end time.Time) (*analysis.Result, error) {
	now := s.analyzer.Now()
	if end.IsZero() {
		end = now
	}
	// Validation depends on the exact instant, so it runs before any
	// month-granular cache lookup.
	if err := analysis.ValidateDateRange(goal.StartDate, end, now); err != nil {
		return nil, err
	}

	key := resultKey(goal, contributions, end)
	if s.results != nil {
		if cached, ok := s.results.Get(key); ok {
			s.logger.DebugContext(ctx, "Analysis cache hit", log.FieldGoalID, goal.ID, log.FieldCacheHit, true)
			r := *cached
			r.EndDate = end
			return &r, nil
		}
	}

	result, err := s.analyzer.AnalyzeGoalPerformance(goal, contributions, &analysis.Options{EndDate: end})
	if err != nil {
		return nil, err
	}
	if s.results != nil {
		s.results.Set(key, result)
	}

	m := result.Metrics
	s.events.LogAnalysisCompleted(ctx, goal.ID,
		result.StartDate.Format(time.DateOnly), result.EndDate.Format(time.DateOnly),
		m.MonthsAnalyzed, m.PerformancePercentage, m.TotalVariance.StringFixed())
	return result, nil
}

// resultKey identifies an analysis by the inputs it depends on: the goal's
// schedule, the contributions and the month the window ends in.
func resultKey(goal core.Goal, contributions []core.Contribution, end time.Time) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|", goal.StartDate.Format(time.RFC3339Nano), goal.ExpectedMonthlyAmount.String())
	for _, c := range contributions {
		actual := "-"
		if c.HasActual() {
			actual = c.ActualAmount.String()
		}
		fmt.Fprintf(h, "%s=%s;", c.Period, actual)
	}
	endMonth := core.YearMonthOf(end.In(goal.StartDate.Location()))
	return fmt.Sprintf("%s%x:%s", goalKeyPrefix(goal.ID), h.Sum64(), endMonth)
}

func goalKeyPrefix(goalID int64) string {
	return fmt.Sprintf("goal:%d:", goalID)
}

// QuickSummary returns the dashboard summary of one goal.
func (s *AnalysisService) QuickSummary(ctx context.Context, goalID int64) (analysis.QuickSummary, error) {
	goal, contributions, err := s.load(ctx, goalID)
	if err != nil {
		return analysis.QuickSummary{}, err
	}
	return s.analyzer.QuickPerformanceSummary(goal, contributions), nil
}

// QuickSummaries computes the quick summary of every goal with the given
// status, in the order storage lists them. Goals are independent: a goal
// whose data cannot be loaded gets an unavailable summary and the others
// are still returned.
func (s *AnalysisService) QuickSummaries(ctx context.Context, status core.GoalStatus) ([]GoalSummary, error) {
	goals, err := s.goals.ListGoals(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}

	out := make([]GoalSummary, len(goals))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, goal := range goals {
		g.Go(func() error {
			out[i].Goal = goal
			contributions, err := s.goals.ListContributions(gctx, goal.ID)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				s.logger.WarnContext(gctx, "Failed to load contributions for summary",
					log.FieldGoalID, goal.ID, log.FieldError, err)
				out[i].Summary = analysis.QuickSummary{Unavailable: err}
				return nil
			}
			out[i].Summary = s.analyzer.QuickPerformanceSummary(goal, contributions)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Indicators returns the per-month status badges of a goal's analysis.
func (s *AnalysisService) Indicators(ctx context.Context, goalID int64, end time.Time) ([]analysis.MonthlyIndicator, error) {
	_, result, err := s.Analyze(ctx, goalID, end)
	if err != nil {
		return nil, err
	}
	return analysis.PerformanceIndicators(result.MonthlyComparisons), nil
}

// Outlook returns the forward-looking projection of a goal.
func (s *AnalysisService) Outlook(ctx context.Context, goalID int64) (analysis.GoalOutlook, error) {
	goal, contributions, err := s.load(ctx, goalID)
	if err != nil {
		return analysis.GoalOutlook{}, err
	}
	return analysis.Outlook(goal, contributions, s.analyzer.Now()), nil
}

// Export writes the CSV export of the given kind to w and returns the
// suggested file name.
func (s *AnalysisService) Export(ctx context.Context, goalID int64, kind string, w io.Writer) (string, error) {
	var write func(io.Writer, core.Goal, *analysis.Result) error
	switch kind {
	case export.KindAnalysis:
		write = export.WriteAnalysisCSV
	case export.KindSummary:
		write = export.WriteSummaryCSV
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownExportKind, kind)
	}

	goal, result, err := s.Analyze(ctx, goalID, time.Time{})
	if err != nil {
		return "", err
	}
	if err := write(w, goal, result); err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "Exported analysis", log.FieldGoalID, goalID, "kind", kind, log.FieldOperation, log.OpExport)
	return export.Filename(goal.Name, kind, s.analyzer.Now()), nil
}

// RecordContribution stores a contribution, drops the goal's memoized
// analyses and asks the worker to refresh the snapshot. A failed publish is
// logged; the contribution is already stored.
func (s *AnalysisService) RecordContribution(ctx context.Context, p storage.RecordContributionParams) (core.Contribution, error) {
	c, err := s.contributions.RecordContribution(ctx, p)
	if err != nil {
		return core.Contribution{}, fmt.Errorf("record contribution: %w", err)
	}

	if s.results != nil {
		s.results.DeletePrefix(goalKeyPrefix(p.GoalID))
	}

	amount := ""
	if c.HasActual() {
		amount = c.ActualAmount.StringFixed()
	}
	s.events.LogContributionRecorded(ctx, c.GoalID, c.Period.Year, c.Period.Month, amount)

	if s.publisher == nil {
		s.logger.WarnContext(ctx, "AMQP client not available, skipping refresh message", log.FieldGoalID, p.GoalID)
		return c, nil
	}
	if err := s.publisher.PublishAnalysisRefresh(ctx, p.GoalID, amqp.ReasonContributionRecorded); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish refresh message", log.FieldGoalID, p.GoalID, log.FieldError, err)
	}
	return c, nil
}
