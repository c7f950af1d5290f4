package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"salvadanaio/internal/core"
	"salvadanaio/internal/storage"
)

var testNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type fakeStore struct {
	mu            sync.Mutex
	goals         map[int64]core.Goal
	contributions map[int64][]core.Contribution
	listCalls     map[int64]int
	failList      map[int64]error
	ensured       []core.YearMonth
	ensureErr     error
}

func newFakeStore(goals ...core.Goal) *fakeStore {
	s := &fakeStore{
		goals:         make(map[int64]core.Goal),
		contributions: make(map[int64][]core.Contribution),
		listCalls:     make(map[int64]int),
		failList:      make(map[int64]error),
	}
	for _, g := range goals {
		s.goals[g.ID] = g
	}
	return s
}

func (s *fakeStore) GetGoal(_ context.Context, id int64) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok {
		return core.Goal{}, fmt.Errorf("goal %d: %w", id, storage.ErrNotFound)
	}
	return g, nil
}

func (s *fakeStore) ListGoals(_ context.Context, status core.GoalStatus) ([]core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Goal
	for id := int64(1); id <= int64(len(s.goals)); id++ {
		g, ok := s.goals[id]
		if ok && (status == "" || g.Status == status) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *fakeStore) ListContributions(_ context.Context, goalID int64) ([]core.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls[goalID]++
	if err := s.failList[goalID]; err != nil {
		return nil, err
	}
	return append([]core.Contribution(nil), s.contributions[goalID]...), nil
}

func (s *fakeStore) RecordContribution(_ context.Context, p storage.RecordContributionParams) (core.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[p.GoalID]
	if !ok {
		return core.Contribution{}, fmt.Errorf("goal %d: %w", p.GoalID, storage.ErrNotFound)
	}
	projected := g.ExpectedMonthlyAmount
	if p.ProjectedAmount != nil {
		projected = *p.ProjectedAmount
	}
	c := core.Contribution{GoalID: p.GoalID, Period: p.Period, ProjectedAmount: projected, ActualAmount: p.ActualAmount}
	s.contributions[p.GoalID] = append(s.contributions[p.GoalID], c)
	return c, nil
}

func (s *fakeStore) EnsureProjectedContribution(_ context.Context, goalID int64, period core.YearMonth, projected core.Money) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensureErr != nil {
		return false, s.ensureErr
	}
	for _, c := range s.contributions[goalID] {
		if c.Period == period {
			return false, nil
		}
	}
	s.contributions[goalID] = append(s.contributions[goalID], core.Contribution{GoalID: goalID, Period: period, ProjectedAmount: projected})
	s.ensured = append(s.ensured, period)
	return true, nil
}

func (s *fakeStore) calls(goalID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls[goalID]
}

type fakePublisher struct {
	mu      sync.Mutex
	err     error
	goalIDs []int64
	reasons []string
}

func (p *fakePublisher) PublishAnalysisRefresh(_ context.Context, goalID int64, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.goalIDs = append(p.goalIDs, goalID)
	p.reasons = append(p.reasons, reason)
	return nil
}

var errBroker = errors.New("broker unreachable")

func moneyPtr(s string) *core.Money {
	m := core.MustParseMoney(s)
	return &m
}

func activeGoal(id int64, start time.Time) core.Goal {
	return core.Goal{
		ID:                    id,
		Name:                  fmt.Sprintf("Goal %d", id),
		Type:                  core.TargetBased,
		Category:              core.CategoryPersonal,
		Status:                core.StatusActive,
		StartDate:             start,
		ExpectedMonthlyAmount: core.MustParseMoney("500"),
		TargetAmount:          core.MustParseMoney("6000"),
	}
}
