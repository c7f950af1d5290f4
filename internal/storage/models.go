package storage

import (
	"database/sql"
)

// Amounts and timestamps are stored as TEXT; conversion to domain types
// happens in the repository.

type Goal struct {
	ID                    int64
	Name                  string
	Description           string
	GoalType              string
	Category              string
	Status                string
	StartDate             string
	ExpectedMonthlyAmount string
	TargetAmount          sql.NullString
	CurrentBalance        string
	CreatedAt             string
	UpdatedAt             string
}

type Contribution struct {
	ID               int64
	GoalID           int64
	Year             int64
	Month            int64
	ProjectedAmount  string
	ActualAmount     sql.NullString
	Variance         sql.NullString
	RunningBalance   string
	ContributionDate sql.NullString
	Notes            string
}

type AnalysisSnapshot struct {
	ID                    int64
	GoalID                int64
	MessageID             sql.NullString
	WindowStart           string
	WindowEnd             string
	PerformancePercentage float64
	TotalVariance         string
	MetricsJSON           string
	Reason                string
	CreatedAt             string
}
