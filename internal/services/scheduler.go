package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"salvadanaio/internal/amqp"
	"salvadanaio/internal/core"
	"salvadanaio/internal/log"
)

// SchedulerConfig holds configuration for the contribution scheduler.
type SchedulerConfig struct {
	// Interval is how often goals are checked (default: 1h)
	Interval time.Duration
	// Checker decides when a goal is due (default: MonthlyChecker)
	Checker DuenessChecker
	// Now is the clock (default: time.Now)
	Now func() time.Time
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval: time.Hour,
		Checker:  MonthlyChecker{},
		Now:      time.Now,
	}
}

// ContributionScheduler makes sure every active goal has a projected
// contribution row for the current month, so that missed months show up as
// rows with no actual amount.
type ContributionScheduler struct {
	store     ProjectionStore
	publisher RefreshPublisher
	config    SchedulerConfig
	logger    *log.Logger

	// last run per goal; guarded by mu
	lastRun map[int64]time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewContributionScheduler creates a scheduler. publisher may be nil.
func NewContributionScheduler(store ProjectionStore, publisher RefreshPublisher, config SchedulerConfig, logger *log.Logger) *ContributionScheduler {
	defaults := DefaultSchedulerConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Checker == nil {
		config.Checker = defaults.Checker
	}
	if config.Now == nil {
		config.Now = defaults.Now
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &ContributionScheduler{
		store:     store,
		publisher: publisher,
		config:    config,
		logger:    logger.WithComponent(log.ComponentScheduler),
		lastRun:   make(map[int64]time.Time),
	}
}

// RunOnce checks every active goal and inserts the projected row of the
// current month where it is missing. It returns how many rows were inserted.
func (s *ContributionScheduler) RunOnce(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, fmt.Errorf("scheduler not properly initialized")
	}

	goals, err := s.store.ListGoals(ctx, core.StatusActive)
	if err != nil {
		return 0, fmt.Errorf("list active goals: %w", err)
	}

	now := s.config.Now()
	inserted := 0
	for _, goal := range goals {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}

		period := core.YearMonthOf(now.In(goal.StartDate.Location()))
		if period.Before(core.YearMonthOf(goal.StartDate)) {
			continue
		}

		s.mu.Lock()
		last := s.lastRun[goal.ID]
		s.mu.Unlock()
		if !s.config.Checker.IsDue(last, now, goal.StartDate) {
			continue
		}

		created, err := s.store.EnsureProjectedContribution(ctx, goal.ID, period, goal.ExpectedMonthlyAmount)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to ensure projected contribution",
				log.FieldGoalID, goal.ID,
				log.FieldYear, period.Year,
				log.FieldMonth, period.Month,
				log.FieldError, err)
			continue
		}

		s.mu.Lock()
		s.lastRun[goal.ID] = now
		s.mu.Unlock()

		if !created {
			continue
		}
		inserted++
		s.logger.InfoContext(ctx, "Projected contribution created",
			log.FieldGoalID, goal.ID,
			log.FieldYear, period.Year,
			log.FieldMonth, period.Month,
			log.FieldAmount, goal.ExpectedMonthlyAmount.StringFixed(),
			log.FieldOperation, log.OpSchedule)

		if s.publisher != nil {
			if err := s.publisher.PublishAnalysisRefresh(ctx, goal.ID, amqp.ReasonScheduled); err != nil {
				s.logger.WarnContext(ctx, "Failed to publish refresh message", log.FieldGoalID, goal.ID, log.FieldError, err)
			}
		}
	}

	s.logger.InfoContext(ctx, "Scheduled projection run complete",
		"inserted", inserted,
		"total_checked", len(goals))
	return inserted, nil
}

// Start begins the scheduling loop. Returns an error if already running.
func (s *ContributionScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("contribution scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	s.logger.InfoContext(ctx, "Contribution scheduler started", "interval", s.config.Interval)
	return nil
}

// Stop stops the loop and waits for the current run to finish.
func (s *ContributionScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	close(s.stopCh)

	select {
	case <-s.doneCh:
		s.logger.InfoContext(ctx, "Contribution scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Contribution scheduler stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

func (s *ContributionScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *ContributionScheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *ContributionScheduler) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.ErrorContext(ctx, "Scheduled projection run failed", log.FieldError, err)
	}
}
