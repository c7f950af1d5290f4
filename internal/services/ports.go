package services

import (
	"context"

	"salvadanaio/internal/core"
	"salvadanaio/internal/storage"
)

// Ports onto storage and messaging. *storage.SQLiteRepository and
// *amqp.Client satisfy them.
type (
	GoalReader interface {
		GetGoal(ctx context.Context, id int64) (core.Goal, error)
		ListGoals(ctx context.Context, status core.GoalStatus) ([]core.Goal, error)
		ListContributions(ctx context.Context, goalID int64) ([]core.Contribution, error)
	}

	ContributionRecorder interface {
		RecordContribution(ctx context.Context, p storage.RecordContributionParams) (core.Contribution, error)
	}

	// ProjectionStore is what the scheduler needs to keep projected rows
	// in place.
	ProjectionStore interface {
		ListGoals(ctx context.Context, status core.GoalStatus) ([]core.Goal, error)
		EnsureProjectedContribution(ctx context.Context, goalID int64, period core.YearMonth, projected core.Money) (bool, error)
	}

	RefreshPublisher interface {
		PublishAnalysisRefresh(ctx context.Context, goalID int64, reason string) error
	}
)
