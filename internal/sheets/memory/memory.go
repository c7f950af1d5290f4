package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"salvadanaio/internal/analysis"
	"salvadanaio/internal/core"
	"salvadanaio/internal/export"
	ports "salvadanaio/internal/sheets"
)

var _ ports.AnalysisWriter = (*Store)(nil)

// Store keeps the last rows written for each goal.
type Store struct {
	mu     sync.Mutex
	rows   map[int64][][]string
	writes int
}

func New() *Store {
	return &Store{rows: make(map[int64][][]string)}
}

// WriteAnalysis replaces the rows stored for goal and returns a synthetic
// reference.
func (s *Store) WriteAnalysis(_ context.Context, goal core.Goal, result *analysis.Result) (string, error) {
	if result == nil {
		return "", errors.New("nil analysis result")
	}
	rows := export.AnalysisRows(goal, result)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[goal.ID] = rows
	s.writes++
	return fmt.Sprintf("mem:%d:%d", goal.ID, s.writes), nil
}

// Rows returns a copy of the rows last written for goalID.
func (s *Store) Rows(goalID int64) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.rows[goalID]
	out := make([][]string, len(src))
	for i, r := range src {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// Writes reports how many writes the store has accepted.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
