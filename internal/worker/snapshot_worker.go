package worker

import (
	"context"
	"errors"
	"fmt"

	"salvadanaio/internal/amqp"
	"salvadanaio/internal/analysis"
	"salvadanaio/internal/core"
	"salvadanaio/internal/log"
	"salvadanaio/internal/sheets"
	"salvadanaio/internal/storage"
)

// SnapshotStore is the storage the worker reads goals from and writes
// snapshots to. SaveSnapshot must store at most one snapshot per non-empty
// message id and report created=false for a repeated one.
type SnapshotStore interface {
	GetGoal(ctx context.Context, id int64) (core.Goal, error)
	ListContributions(ctx context.Context, goalID int64) ([]core.Contribution, error)
	SaveSnapshot(ctx context.Context, goalID int64, messageID, reason string, result *analysis.Result) (storage.Snapshot, bool, error)
}

// SnapshotWorker recomputes a goal's analysis when asked to, persists the
// metrics and optionally pushes the monthly rows to a spreadsheet.
type SnapshotWorker struct {
	store    SnapshotStore
	analyzer *analysis.Analyzer
	sheets   sheets.AnalysisWriter
	logger   *log.Logger
}

// NewSnapshotWorker creates a worker. writer may be nil.
func NewSnapshotWorker(store SnapshotStore, analyzer *analysis.Analyzer, writer sheets.AnalysisWriter, logger *log.Logger) *SnapshotWorker {
	if logger == nil {
		logger = log.Discard()
	}
	if analyzer == nil {
		analyzer = analysis.NewAnalyzer(analysis.WithLogger(logger))
	}
	return &SnapshotWorker{
		store:    store,
		analyzer: analyzer,
		sheets:   writer,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleRefresh processes one refresh message. Messages for unknown goals
// and for goals that have not started yet are acknowledged without work;
// any other failure is returned so the message is redelivered. A
// redelivered message reuses the snapshot saved on its first delivery and
// only retries the spreadsheet write.
func (w *SnapshotWorker) HandleRefresh(ctx context.Context, msg *amqp.AnalysisRefreshMessage) error {
	w.logger.InfoContext(ctx, "Processing refresh message",
		log.FieldGoalID, msg.GoalID,
		"reason", msg.Reason,
		"message_id", msg.MessageID)

	goal, err := w.store.GetGoal(ctx, msg.GoalID)
	if errors.Is(err, storage.ErrNotFound) {
		w.logger.WarnContext(ctx, "Refresh requested for unknown goal, dropping", log.FieldGoalID, msg.GoalID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get goal: %w", err)
	}
	contributions, err := w.store.ListContributions(ctx, goal.ID)
	if err != nil {
		return fmt.Errorf("list contributions: %w", err)
	}

	result, err := w.analyzer.AnalyzeGoalPerformance(goal, contributions, nil)
	if errors.Is(err, analysis.ErrInvalidDateRange) {
		w.logger.InfoContext(ctx, "Goal has no analyzable window yet", log.FieldGoalID, goal.ID, log.FieldError, err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("analyze goal %d: %w", goal.ID, err)
	}

	snap, created, err := w.store.SaveSnapshot(ctx, goal.ID, msg.MessageID, msg.Reason, result)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if created {
		w.logger.InfoContext(ctx, "Snapshot saved",
			log.FieldGoalID, goal.ID,
			"snapshot_id", snap.ID,
			log.FieldPerformance, snap.PerformancePercentage,
			log.FieldOperation, log.OpSnapshot)
	} else {
		w.logger.InfoContext(ctx, "Snapshot already saved for message",
			log.FieldGoalID, goal.ID,
			"snapshot_id", snap.ID,
			"message_id", msg.MessageID,
			log.FieldOperation, log.OpSnapshot)
	}

	if w.sheets == nil {
		return nil
	}
	ref, err := w.sheets.WriteAnalysis(ctx, goal, result)
	if err != nil {
		return fmt.Errorf("write analysis to sheets: %w", err)
	}
	w.logger.InfoContext(ctx, "Analysis pushed to sheets", log.FieldGoalID, goal.ID, "ref", ref)
	return nil
}
