// Package export turns analysis results into tabular rows and CSV files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"salvadanaio/internal/analysis"
	"salvadanaio/internal/core"
)

// Kinds of export.
const (
	KindAnalysis = "analysis"
	KindSummary  = "summary"
)

// AnalysisHeader is the first row of the monthly analysis export.
var AnalysisHeader = []string{
	"Goal Name",
	"Year",
	"Month",
	"Month Name",
	"Theoretical Amount",
	"Actual Amount",
	"Variance",
	"Performance %",
	"Status",
	"Cumulative Theoretical",
	"Cumulative Actual",
}

const isoDate = "2006-01-02"

// AnalysisRows returns the header followed by one row per analyzed month.
func AnalysisRows(goal core.Goal, result *analysis.Result) [][]string {
	rows := make([][]string, 0, len(result.MonthlyComparisons)+1)
	rows = append(rows, AnalysisHeader)

	cumulativeActual := core.Zero
	for i, c := range result.MonthlyComparisons {
		cumulativeActual = cumulativeActual.Add(c.Actual)

		cumulativeTheoretical := "0"
		if i < len(result.TheoreticalContributions) {
			cumulativeTheoretical = result.TheoreticalContributions[i].CumulativeTheoretical.StringFixed()
		}

		rows = append(rows, []string{
			textCell(goal.Name),
			strconv.Itoa(c.Year),
			strconv.Itoa(c.Month),
			time.Month(c.Month).String(),
			c.Theoretical.StringFixed(),
			c.Actual.StringFixed(),
			c.Variance.StringFixed(),
			strconv.FormatFloat(c.PerformanceRatio*100, 'f', 1, 64),
			analysis.MonthStatus(c.Actual, c.Theoretical, analysis.DefaultTolerance).Label(),
			cumulativeTheoretical,
			cumulativeActual.StringFixed(),
		})
	}
	return rows
}

// SummaryRows returns metric/value pairs describing the goal and the
// analysis, ending with a count of months per status in first-seen order.
func SummaryRows(goal core.Goal, result *analysis.Result) [][]string {
	target := ""
	if goal.Type == core.TargetBased {
		target = goal.TargetAmount.StringFixed()
	}
	m := result.Metrics

	rows := [][]string{
		{"Metric", "Value"},
		{"Goal Name", textCell(goal.Name)},
		{"Description", textCell(goal.Description)},
		{"Target Amount", target},
		{"Current Balance", goal.CurrentBalance.StringFixed()},
		{"Expected Monthly Amount", goal.ExpectedMonthlyAmount.StringFixed()},
		{"Start Date", goal.StartDate.Format(isoDate)},
		{"Analysis Period", result.StartDate.Format(isoDate) + " to " + result.EndDate.Format(isoDate)},
		{"", ""},
		{"=== PERFORMANCE METRICS ===", ""},
		{"Total Theoretical", m.TotalTheoretical.StringFixed()},
		{"Total Actual", m.TotalActual.StringFixed()},
		{"Total Variance", m.TotalVariance.StringFixed()},
		{"Performance Percentage", strconv.FormatFloat(m.PerformancePercentage, 'f', 1, 64) + "%"},
		{"Months Analyzed", strconv.Itoa(m.MonthsAnalyzed)},
		{"Months On Track", strconv.Itoa(m.MonthsOnTrack)},
		{"Consistency Score", strconv.FormatFloat(m.ConsistencyScore, 'f', 1, 64) + "%"},
		{"", ""},
		{"=== STATUS BREAKDOWN ===", ""},
	}
	return append(rows, statusBreakdown(result.MonthlyComparisons)...)
}

func statusBreakdown(comparisons []analysis.MonthlyPerformanceComparison) [][]string {
	var order []analysis.PerformanceStatus
	counts := make(map[analysis.PerformanceStatus]int)
	for _, c := range comparisons {
		s := analysis.MonthStatus(c.Actual, c.Theoretical, analysis.DefaultTolerance)
		if _, seen := counts[s]; !seen {
			order = append(order, s)
		}
		counts[s]++
	}

	rows := make([][]string, 0, len(order))
	for _, s := range order {
		rows = append(rows, []string{s.Label() + " Months", strconv.Itoa(counts[s])})
	}
	return rows
}

// WriteAnalysisCSV writes the monthly analysis of goal as CSV.
func WriteAnalysisCSV(w io.Writer, goal core.Goal, result *analysis.Result) error {
	return writeAll(w, AnalysisRows(goal, result))
}

// WriteSummaryCSV writes the summary of goal as CSV.
func WriteSummaryCSV(w io.Writer, goal core.Goal, result *analysis.Result) error {
	return writeAll(w, SummaryRows(goal, result))
}

// textCell prefixes user text that a spreadsheet would evaluate as a
// formula with a single quote, which spreadsheets treat as a literal marker.
func textCell(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

func writeAll(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Filename builds "<goal>_<kind>_<YYYY-MM-DD>.csv" with every character of
// the goal name outside [a-zA-Z0-9] replaced by an underscore.
func Filename(goalName, kind string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%s.csv", unsafeFilenameChars.ReplaceAllString(goalName, "_"), kind, now.UTC().Format(isoDate))
}
