package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	TargetBased GoalType = "TARGET_BASED"
	Continuous  GoalType = "CONTINUOUS"
)

const (
	StatusActive    GoalStatus = "ACTIVE"
	StatusCompleted GoalStatus = "COMPLETED"
	StatusPaused    GoalStatus = "PAUSED"
	StatusCancelled GoalStatus = "CANCELLED"
)

const (
	CategoryDebtRepayment GoalCategory = "DEBT_REPAYMENT"
	CategoryInvestment    GoalCategory = "INVESTMENT"
	CategoryPersonal      GoalCategory = "PERSONAL"
	CategoryEmergencyFund GoalCategory = "EMERGENCY_FUND"
	CategoryOther         GoalCategory = "OTHER"
)

type (
	GoalType     string
	GoalStatus   string
	GoalCategory string

	// YearMonth identifies a calendar month.
	YearMonth struct {
		Year  int `json:"year"`
		Month int `json:"month"` // 1-12
	}

	// Goal is a savings objective.
	Goal struct {
		ID                    int64        `json:"id"`
		Name                  string       `json:"name"`
		Description           string       `json:"description,omitempty"`
		Type                  GoalType     `json:"type"`
		Category              GoalCategory `json:"category"`
		Status                GoalStatus   `json:"status"`
		StartDate             time.Time    `json:"startDate"`
		ExpectedMonthlyAmount Money        `json:"expectedMonthlyAmount"`
		TargetAmount          Money        `json:"targetAmount"`
		CurrentBalance        Money        `json:"currentBalance"`
		CreatedAt             time.Time    `json:"createdAt"`
		UpdatedAt             time.Time    `json:"updatedAt"`
	}

	// Contribution is the record of one month of saving for a goal.
	// ActualAmount is nil until something has actually been saved.
	Contribution struct {
		ID               int64     `json:"id"`
		GoalID           int64     `json:"goalId"`
		Period           YearMonth `json:"period"`
		ProjectedAmount  Money     `json:"projectedAmount"`
		ActualAmount     *Money    `json:"actualAmount"`
		Variance         *Money    `json:"variance"`
		RunningBalance   Money     `json:"runningBalance"`
		ContributionDate time.Time `json:"contributionDate"`
		Notes            string    `json:"notes,omitempty"`
	}

	GoalWithContributions struct {
		Goal          Goal           `json:"goal"`
		Contributions []Contribution `json:"contributions"`
	}
)

var (
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidYear       = errors.New("invalid year")
	ErrEmptyName         = errors.New("empty goal name")
	ErrInvalidGoalType   = errors.New("invalid goal type")
	ErrInvalidStatus     = errors.New("invalid goal status")
	ErrInvalidCategory   = errors.New("invalid goal category")
	ErrMissingStartDate  = errors.New("missing start date")
	ErrNonPositiveAmount = errors.New("amount must be positive")
)

// YearMonthOf truncates t to its calendar month, in t's location.
func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: int(t.Month())}
}

// Next returns the following month, rolling over the year after December.
func (ym YearMonth) Next() YearMonth {
	if ym.Month >= 12 {
		return YearMonth{Year: ym.Year + 1, Month: 1}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month + 1}
}

func (ym YearMonth) index() int { return ym.Year*12 + ym.Month - 1 }

// Before reports whether ym is strictly earlier than o.
func (ym YearMonth) Before(o YearMonth) bool { return ym.index() < o.index() }

// After reports whether ym is strictly later than o.
func (ym YearMonth) After(o YearMonth) bool { return ym.index() > o.index() }

// MonthsUntil returns the signed number of months from ym to o.
func (ym YearMonth) MonthsUntil(o YearMonth) int { return o.index() - ym.index() }

// FirstDay returns midnight of the first day of the month in loc.
func (ym YearMonth) FirstDay(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(ym.Year, time.Month(ym.Month), 1, 0, 0, 0, 0, loc)
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

func (ym YearMonth) Validate() error {
	if ym.Month < 1 || ym.Month > 12 {
		return ErrInvalidMonth
	}
	if ym.Year < 2000 || ym.Year > 2100 {
		return ErrInvalidYear
	}
	return nil
}

func (t GoalType) IsValid() bool {
	return t == TargetBased || t == Continuous
}

func (s GoalStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusPaused, StatusCancelled:
		return true
	}
	return false
}

func (c GoalCategory) IsValid() bool {
	switch c {
	case CategoryDebtRepayment, CategoryInvestment, CategoryPersonal, CategoryEmergencyFund, CategoryOther:
		return true
	}
	return false
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if len(g.Name) > 100 {
		return errors.New("goal name too long (max 100 characters)")
	}
	if len(g.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	if !g.Type.IsValid() {
		return ErrInvalidGoalType
	}
	if !g.Status.IsValid() {
		return ErrInvalidStatus
	}
	if !g.Category.IsValid() {
		return ErrInvalidCategory
	}
	if g.StartDate.IsZero() {
		return ErrMissingStartDate
	}
	if !g.ExpectedMonthlyAmount.IsPositive() {
		return fmt.Errorf("expected monthly amount: %w", ErrNonPositiveAmount)
	}
	// Continuous goals have no target to reach.
	if g.Type == TargetBased && !g.TargetAmount.IsPositive() {
		return fmt.Errorf("target amount: %w", ErrNonPositiveAmount)
	}
	return nil
}

// HasActual reports whether an actual amount was recorded.
func (c Contribution) HasActual() bool { return c.ActualAmount != nil }

// Actual returns the recorded actual amount, or zero.
func (c Contribution) Actual() Money {
	if c.ActualAmount == nil {
		return Zero
	}
	return *c.ActualAmount
}

func (c Contribution) Validate() error {
	if err := c.Period.Validate(); err != nil {
		return err
	}
	if c.ProjectedAmount.IsNegative() {
		return fmt.Errorf("projected amount: %w", ErrInvalidAmount)
	}
	if c.ActualAmount != nil && c.ActualAmount.IsNegative() {
		return fmt.Errorf("actual amount: %w", ErrInvalidAmount)
	}
	if len(c.Notes) > 1000 {
		return errors.New("notes too long (max 1000 characters)")
	}
	return nil
}
