package storage

import (
	"context"
	"database/sql"
)

const goalColumns = `id, name, description, goal_type, category, status, start_date,
	expected_monthly_amount, target_amount, current_balance, created_at, updated_at`

func scanGoal(row interface{ Scan(...any) error }) (Goal, error) {
	var g Goal
	err := row.Scan(
		&g.ID,
		&g.Name,
		&g.Description,
		&g.GoalType,
		&g.Category,
		&g.Status,
		&g.StartDate,
		&g.ExpectedMonthlyAmount,
		&g.TargetAmount,
		&g.CurrentBalance,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	return g, err
}

const createGoal = `-- name: CreateGoal :one
INSERT INTO goals (name, description, goal_type, category, status, start_date,
	expected_monthly_amount, target_amount, current_balance)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + goalColumns

type CreateGoalParams struct {
	Name                  string
	Description           string
	GoalType              string
	Category              string
	Status                string
	StartDate             string
	ExpectedMonthlyAmount string
	TargetAmount          sql.NullString
	CurrentBalance        string
}

func (q *Queries) CreateGoal(ctx context.Context, arg CreateGoalParams) (Goal, error) {
	row := q.db.QueryRowContext(ctx, createGoal,
		arg.Name,
		arg.Description,
		arg.GoalType,
		arg.Category,
		arg.Status,
		arg.StartDate,
		arg.ExpectedMonthlyAmount,
		arg.TargetAmount,
		arg.CurrentBalance,
	)
	return scanGoal(row)
}

const getGoal = `-- name: GetGoal :one
SELECT ` + goalColumns + ` FROM goals WHERE id = ?`

func (q *Queries) GetGoal(ctx context.Context, id int64) (Goal, error) {
	return scanGoal(q.db.QueryRowContext(ctx, getGoal, id))
}

const listGoals = `-- name: ListGoals :many
SELECT ` + goalColumns + ` FROM goals ORDER BY id`

const listGoalsByStatus = `-- name: ListGoalsByStatus :many
SELECT ` + goalColumns + ` FROM goals WHERE status = ? ORDER BY id`

func (q *Queries) ListGoals(ctx context.Context) ([]Goal, error) {
	return q.listGoals(ctx, listGoals)
}

func (q *Queries) ListGoalsByStatus(ctx context.Context, status string) ([]Goal, error) {
	return q.listGoals(ctx, listGoalsByStatus, status)
}

func (q *Queries) listGoals(ctx context.Context, query string, args ...any) ([]Goal, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, g)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateGoalBalance = `-- name: UpdateGoalBalance :exec
UPDATE goals
SET current_balance = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
WHERE id = ?`

func (q *Queries) UpdateGoalBalance(ctx context.Context, balance string, id int64) error {
	_, err := q.db.ExecContext(ctx, updateGoalBalance, balance, id)
	return err
}

const contributionColumns = `id, goal_id, year, month, projected_amount, actual_amount, variance,
	running_balance, contribution_date, notes`

func scanContribution(row interface{ Scan(...any) error }) (Contribution, error) {
	var c Contribution
	err := row.Scan(
		&c.ID,
		&c.GoalID,
		&c.Year,
		&c.Month,
		&c.ProjectedAmount,
		&c.ActualAmount,
		&c.Variance,
		&c.RunningBalance,
		&c.ContributionDate,
		&c.Notes,
	)
	return c, err
}

const listContributions = `-- name: ListContributions :many
SELECT ` + contributionColumns + `
FROM contributions
WHERE goal_id = ?
ORDER BY year, month`

func (q *Queries) ListContributions(ctx context.Context, goalID int64) ([]Contribution, error) {
	rows, err := q.db.QueryContext(ctx, listContributions, goalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Contribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertContribution = `-- name: UpsertContribution :one
INSERT INTO contributions (goal_id, year, month, projected_amount, actual_amount, variance,
	contribution_date, notes)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (goal_id, year, month) DO UPDATE SET
	projected_amount = excluded.projected_amount,
	actual_amount = excluded.actual_amount,
	variance = excluded.variance,
	contribution_date = excluded.contribution_date,
	notes = excluded.notes,
	updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
RETURNING id`

type UpsertContributionParams struct {
	GoalID           int64
	Year             int64
	Month            int64
	ProjectedAmount  string
	ActualAmount     sql.NullString
	Variance         sql.NullString
	ContributionDate sql.NullString
	Notes            string
}

func (q *Queries) UpsertContribution(ctx context.Context, arg UpsertContributionParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, upsertContribution,
		arg.GoalID,
		arg.Year,
		arg.Month,
		arg.ProjectedAmount,
		arg.ActualAmount,
		arg.Variance,
		arg.ContributionDate,
		arg.Notes,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const insertProjectedContribution = `-- name: InsertProjectedContribution :execrows
INSERT INTO contributions (goal_id, year, month, projected_amount)
VALUES (?, ?, ?, ?)
ON CONFLICT (goal_id, year, month) DO NOTHING`

func (q *Queries) InsertProjectedContribution(ctx context.Context, goalID, year, month int64, projected string) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertProjectedContribution, goalID, year, month, projected)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateRunningBalance = `-- name: UpdateRunningBalance :exec
UPDATE contributions SET running_balance = ? WHERE id = ?`

func (q *Queries) UpdateRunningBalance(ctx context.Context, balance string, id int64) error {
	_, err := q.db.ExecContext(ctx, updateRunningBalance, balance, id)
	return err
}

const createSnapshot = `-- name: CreateSnapshot :one
INSERT INTO analysis_snapshots (goal_id, message_id, window_start, window_end, performance_percentage,
	total_variance, metrics_json, reason)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (message_id) DO NOTHING
RETURNING id, created_at`

type CreateSnapshotParams struct {
	GoalID                int64
	MessageID             sql.NullString
	WindowStart           string
	WindowEnd             string
	PerformancePercentage float64
	TotalVariance         string
	MetricsJSON           string
	Reason                string
}

// CreateSnapshot returns sql.ErrNoRows when a snapshot with the same
// message id already exists.
func (q *Queries) CreateSnapshot(ctx context.Context, arg CreateSnapshotParams) (int64, string, error) {
	row := q.db.QueryRowContext(ctx, createSnapshot,
		arg.GoalID,
		arg.MessageID,
		arg.WindowStart,
		arg.WindowEnd,
		arg.PerformancePercentage,
		arg.TotalVariance,
		arg.MetricsJSON,
		arg.Reason,
	)
	var (
		id        int64
		createdAt string
	)
	err := row.Scan(&id, &createdAt)
	return id, createdAt, err
}

const snapshotColumns = `id, goal_id, message_id, window_start, window_end, performance_percentage,
	total_variance, metrics_json, reason, created_at`

func scanSnapshot(row interface{ Scan(...any) error }) (AnalysisSnapshot, error) {
	var s AnalysisSnapshot
	err := row.Scan(
		&s.ID,
		&s.GoalID,
		&s.MessageID,
		&s.WindowStart,
		&s.WindowEnd,
		&s.PerformancePercentage,
		&s.TotalVariance,
		&s.MetricsJSON,
		&s.Reason,
		&s.CreatedAt,
	)
	return s, err
}

const latestSnapshot = `-- name: LatestSnapshot :one
SELECT ` + snapshotColumns + `
FROM analysis_snapshots
WHERE goal_id = ?
ORDER BY id DESC
LIMIT 1`

func (q *Queries) LatestSnapshot(ctx context.Context, goalID int64) (AnalysisSnapshot, error) {
	return scanSnapshot(q.db.QueryRowContext(ctx, latestSnapshot, goalID))
}

const snapshotByMessage = `-- name: SnapshotByMessage :one
SELECT ` + snapshotColumns + `
FROM analysis_snapshots
WHERE message_id = ?`

func (q *Queries) SnapshotByMessage(ctx context.Context, messageID string) (AnalysisSnapshot, error) {
	return scanSnapshot(q.db.QueryRowContext(ctx, snapshotByMessage, messageID))
}
