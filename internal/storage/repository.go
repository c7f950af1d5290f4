package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"salvadanaio/internal/analysis"
	"salvadanaio/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a goal or snapshot does not exist.
var ErrNotFound = errors.New("not found")

const (
	timeLayout = time.RFC3339
	dateLayout = "2006-01-02"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateGoal stores a new goal. Used for seeding and imports.
func (r *SQLiteRepository) CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, fmt.Errorf("validate goal: %w", err)
	}

	var target sql.NullString
	if g.Type == core.TargetBased {
		target = sql.NullString{String: g.TargetAmount.String(), Valid: true}
	}

	row, err := r.queries.CreateGoal(ctx, CreateGoalParams{
		Name:                  g.Name,
		Description:           g.Description,
		GoalType:              string(g.Type),
		Category:              string(g.Category),
		Status:                string(g.Status),
		StartDate:             g.StartDate.Format(timeLayout),
		ExpectedMonthlyAmount: g.ExpectedMonthlyAmount.String(),
		TargetAmount:          target,
		CurrentBalance:        g.CurrentBalance.String(),
	})
	if err != nil {
		return core.Goal{}, fmt.Errorf("create goal: %w", err)
	}

	slog.InfoContext(ctx, "Goal saved to SQLite", "id", row.ID, "name", row.Name, "type", row.GoalType)
	return toGoal(ctx, row)
}

// GetGoal returns the goal with the given id or ErrNotFound.
func (r *SQLiteRepository) GetGoal(ctx context.Context, id int64) (core.Goal, error) {
	row, err := r.queries.GetGoal(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, fmt.Errorf("goal %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Goal{}, fmt.Errorf("get goal %d: %w", id, err)
	}
	return toGoal(ctx, row)
}

// ListGoals returns goals with the given status, or every goal when status
// is empty.
func (r *SQLiteRepository) ListGoals(ctx context.Context, status core.GoalStatus) ([]core.Goal, error) {
	var (
		rows []Goal
		err  error
	)
	if status == "" {
		rows, err = r.queries.ListGoals(ctx)
	} else {
		rows, err = r.queries.ListGoalsByStatus(ctx, string(status))
	}
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}

	goals := make([]core.Goal, 0, len(rows))
	for _, row := range rows {
		g, err := toGoal(ctx, row)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, nil
}

// ListContributions returns the goal's contributions ordered by period.
func (r *SQLiteRepository) ListContributions(ctx context.Context, goalID int64) ([]core.Contribution, error) {
	rows, err := r.queries.ListContributions(ctx, goalID)
	if err != nil {
		return nil, fmt.Errorf("list contributions for goal %d: %w", goalID, err)
	}
	out := make([]core.Contribution, len(rows))
	for i, row := range rows {
		out[i] = toContribution(ctx, row)
	}
	return out, nil
}

// GetGoalWithContributions loads a goal together with its contributions.
func (r *SQLiteRepository) GetGoalWithContributions(ctx context.Context, id int64) (core.GoalWithContributions, error) {
	goal, err := r.GetGoal(ctx, id)
	if err != nil {
		return core.GoalWithContributions{}, err
	}
	contributions, err := r.ListContributions(ctx, id)
	if err != nil {
		return core.GoalWithContributions{}, err
	}
	return core.GoalWithContributions{Goal: goal, Contributions: contributions}, nil
}

// RecordContributionParams describes a contribution to store. A nil
// ProjectedAmount defaults to the goal's expected monthly amount.
type RecordContributionParams struct {
	GoalID           int64
	Period           core.YearMonth
	ProjectedAmount  *core.Money
	ActualAmount     *core.Money
	ContributionDate time.Time
	Notes            string
}

// RecordContribution inserts or replaces the contribution for a month. The
// variance, every running balance of the goal and the goal's current
// balance are recomputed in the same transaction.
func (r *SQLiteRepository) RecordContribution(ctx context.Context, p RecordContributionParams) (core.Contribution, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Contribution{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	q := r.queries.WithTx(tx)

	row, err := q.GetGoal(ctx, p.GoalID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Contribution{}, fmt.Errorf("goal %d: %w", p.GoalID, ErrNotFound)
	}
	if err != nil {
		return core.Contribution{}, fmt.Errorf("get goal %d: %w", p.GoalID, err)
	}
	goal, err := toGoal(ctx, row)
	if err != nil {
		return core.Contribution{}, err
	}

	c := core.Contribution{
		GoalID:           p.GoalID,
		Period:           p.Period,
		ProjectedAmount:  goal.ExpectedMonthlyAmount,
		ActualAmount:     p.ActualAmount,
		ContributionDate: p.ContributionDate,
		Notes:            p.Notes,
	}
	if p.ProjectedAmount != nil {
		c.ProjectedAmount = *p.ProjectedAmount
	}
	if c.ActualAmount != nil {
		v := c.ActualAmount.Sub(c.ProjectedAmount)
		c.Variance = &v
	}
	if err := c.Validate(); err != nil {
		return core.Contribution{}, fmt.Errorf("validate contribution: %w", err)
	}

	c.ID, err = q.UpsertContribution(ctx, UpsertContributionParams{
		GoalID:           c.GoalID,
		Year:             int64(c.Period.Year),
		Month:            int64(c.Period.Month),
		ProjectedAmount:  c.ProjectedAmount.String(),
		ActualAmount:     nullMoney(c.ActualAmount),
		Variance:         nullMoney(c.Variance),
		ContributionDate: nullDate(c.ContributionDate),
		Notes:            c.Notes,
	})
	if err != nil {
		return core.Contribution{}, fmt.Errorf("upsert contribution: %w", err)
	}

	balances, total, err := recalculateRunningBalances(ctx, q, c.GoalID)
	if err != nil {
		return core.Contribution{}, err
	}
	if err := q.UpdateGoalBalance(ctx, total.String(), c.GoalID); err != nil {
		return core.Contribution{}, fmt.Errorf("update goal balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.Contribution{}, fmt.Errorf("commit transaction: %w", err)
	}

	c.RunningBalance = balances[c.ID]
	return c, nil
}

// recalculateRunningBalances walks the goal's contributions in period order
// and stores the cumulative actual amount on each one.
func recalculateRunningBalances(ctx context.Context, q *Queries, goalID int64) (map[int64]core.Money, core.Money, error) {
	rows, err := q.ListContributions(ctx, goalID)
	if err != nil {
		return nil, core.Zero, fmt.Errorf("list contributions: %w", err)
	}

	balances := make(map[int64]core.Money, len(rows))
	running := core.Zero
	for _, row := range rows {
		if row.ActualAmount.Valid {
			running = running.Add(core.MoneyOrZero(ctx, row.ActualAmount.String))
		}
		if err := q.UpdateRunningBalance(ctx, running.String(), row.ID); err != nil {
			return nil, core.Zero, fmt.Errorf("update running balance: %w", err)
		}
		balances[row.ID] = running
	}
	return balances, running, nil
}

// EnsureProjectedContribution inserts a projected-only row for the month if
// none exists. It reports whether a row was created.
func (r *SQLiteRepository) EnsureProjectedContribution(ctx context.Context, goalID int64, period core.YearMonth, projected core.Money) (bool, error) {
	if err := period.Validate(); err != nil {
		return false, err
	}
	n, err := r.queries.InsertProjectedContribution(ctx, goalID, int64(period.Year), int64(period.Month), projected.String())
	if err != nil {
		return false, fmt.Errorf("insert projected contribution: %w", err)
	}
	return n > 0, nil
}

// Snapshot is a persisted analysis outcome.
type Snapshot struct {
	ID                    int64
	GoalID                int64
	MessageID             string
	WindowStart           time.Time
	WindowEnd             time.Time
	PerformancePercentage float64
	TotalVariance         core.Money
	Metrics               analysis.PerformanceMetrics
	Reason                string
	CreatedAt             time.Time
}

// SaveSnapshot persists the metrics of an analysis result. A non-empty
// messageID makes the save idempotent: when a snapshot was already stored
// for that message, it is returned with created set to false.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, goalID int64, messageID, reason string, result *analysis.Result) (snap Snapshot, created bool, err error) {
	metrics, err := json.Marshal(result.Metrics)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("marshal metrics: %w", err)
	}

	id, createdAt, err := r.queries.CreateSnapshot(ctx, CreateSnapshotParams{
		GoalID:                goalID,
		MessageID:             sql.NullString{String: messageID, Valid: messageID != ""},
		WindowStart:           result.StartDate.Format(timeLayout),
		WindowEnd:             result.EndDate.Format(timeLayout),
		PerformancePercentage: result.Metrics.PerformancePercentage,
		TotalVariance:         result.Metrics.TotalVariance.String(),
		MetricsJSON:           string(metrics),
		Reason:                reason,
	})
	if errors.Is(err, sql.ErrNoRows) && messageID != "" {
		row, err := r.queries.SnapshotByMessage(ctx, messageID)
		if err != nil {
			return Snapshot{}, false, fmt.Errorf("get snapshot for message %s: %w", messageID, err)
		}
		existing, err := toSnapshot(ctx, row)
		return existing, false, err
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("create snapshot: %w", err)
	}

	createdTime, _ := time.Parse(timeLayout, createdAt)
	return Snapshot{
		ID:                    id,
		GoalID:                goalID,
		MessageID:             messageID,
		WindowStart:           result.StartDate,
		WindowEnd:             result.EndDate,
		PerformancePercentage: result.Metrics.PerformancePercentage,
		TotalVariance:         result.Metrics.TotalVariance,
		Metrics:               result.Metrics,
		Reason:                reason,
		CreatedAt:             createdTime,
	}, true, nil
}

// LatestSnapshot returns the most recent snapshot of a goal or ErrNotFound.
func (r *SQLiteRepository) LatestSnapshot(ctx context.Context, goalID int64) (Snapshot, error) {
	row, err := r.queries.LatestSnapshot(ctx, goalID)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("snapshot for goal %d: %w", goalID, ErrNotFound)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get latest snapshot: %w", err)
	}
	return toSnapshot(ctx, row)
}

func toSnapshot(ctx context.Context, row AnalysisSnapshot) (Snapshot, error) {
	s := Snapshot{
		ID:                    row.ID,
		GoalID:                row.GoalID,
		MessageID:             row.MessageID.String,
		PerformancePercentage: row.PerformancePercentage,
		TotalVariance:         core.MoneyOrZero(ctx, row.TotalVariance),
		Reason:                row.Reason,
	}
	if err := json.Unmarshal([]byte(row.MetricsJSON), &s.Metrics); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot metrics: %w", err)
	}
	s.WindowStart, _ = time.Parse(timeLayout, row.WindowStart)
	s.WindowEnd, _ = time.Parse(timeLayout, row.WindowEnd)
	s.CreatedAt, _ = time.Parse(timeLayout, row.CreatedAt)
	return s, nil
}

func toGoal(ctx context.Context, row Goal) (core.Goal, error) {
	start, err := time.Parse(timeLayout, row.StartDate)
	if err != nil {
		return core.Goal{}, fmt.Errorf("goal %d: parse start date %q: %w", row.ID, row.StartDate, err)
	}
	g := core.Goal{
		ID:                    row.ID,
		Name:                  row.Name,
		Description:           row.Description,
		Type:                  core.GoalType(row.GoalType),
		Category:              core.GoalCategory(row.Category),
		Status:                core.GoalStatus(row.Status),
		StartDate:             start,
		ExpectedMonthlyAmount: core.MoneyOrZero(ctx, row.ExpectedMonthlyAmount),
		CurrentBalance:        core.MoneyOrZero(ctx, row.CurrentBalance),
	}
	if row.TargetAmount.Valid {
		g.TargetAmount = core.MoneyOrZero(ctx, row.TargetAmount.String)
	}
	g.CreatedAt, _ = time.Parse(timeLayout, row.CreatedAt)
	g.UpdatedAt, _ = time.Parse(timeLayout, row.UpdatedAt)
	return g, nil
}

func toContribution(ctx context.Context, row Contribution) core.Contribution {
	c := core.Contribution{
		ID:              row.ID,
		GoalID:          row.GoalID,
		Period:          core.YearMonth{Year: int(row.Year), Month: int(row.Month)},
		ProjectedAmount: core.MoneyOrZero(ctx, row.ProjectedAmount),
		RunningBalance:  core.MoneyOrZero(ctx, row.RunningBalance),
		Notes:           row.Notes,
	}
	if row.ActualAmount.Valid {
		a := core.MoneyOrZero(ctx, row.ActualAmount.String)
		c.ActualAmount = &a
	}
	if row.Variance.Valid {
		v := core.MoneyOrZero(ctx, row.Variance.String)
		c.Variance = &v
	}
	if row.ContributionDate.Valid {
		c.ContributionDate, _ = time.Parse(dateLayout, row.ContributionDate.String)
	}
	return c
}

func nullMoney(m *core.Money) sql.NullString {
	if m == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: m.String(), Valid: true}
}

func nullDate(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(dateLayout), Valid: true}
}
