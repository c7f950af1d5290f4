package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"salvadanaio/internal/analysis"
	"salvadanaio/internal/core"
	"salvadanaio/internal/export"
	"salvadanaio/internal/log"
	ports "salvadanaio/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

var _ ports.AnalysisWriter = (*Client)(nil)

// Credentials selects the service account used by the client. JSON wins
// over File, File wins over ApplicationFile.
type Credentials struct {
	JSON            string
	File            string
	ApplicationFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	prefix        string
	logger        *log.Logger
}

// New creates a Sheets client that writes one tab per goal, named
// "<prefix> <goal name>".
func New(ctx context.Context, spreadsheetID, prefix string, creds Credentials, logger *log.Logger) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	credentialsJSON, err := loadCredentials(ctx, creds, logger)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", spreadsheetID)

	return &Client{svc: svc, spreadsheetID: spreadsheetID, prefix: strings.TrimSpace(prefix), logger: logger}, nil
}

func loadCredentials(ctx context.Context, creds Credentials, logger *log.Logger) ([]byte, error) {
	inline := strings.TrimSpace(creds.JSON)
	file := strings.TrimSpace(creds.File)
	if inline == "" && file == "" {
		file = strings.TrimSpace(creds.ApplicationFile)
	}

	switch {
	case inline != "":
		logger.DebugContext(ctx, "Using inline service account credentials", "json_length", len(inline))
		return []byte(inline), nil
	case file != "":
		logger.DebugContext(ctx, "Reading service account credentials", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// WriteAnalysis replaces the content of the goal's tab with the monthly
// analysis, creating the tab when it does not exist yet.
func (c *Client) WriteAnalysis(ctx context.Context, goal core.Goal, result *analysis.Result) (string, error) {
	if result == nil {
		return "", errors.New("nil analysis result")
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	title := sheetTitle(c.prefix, goal.Name)
	if err := c.ensureSheet(ctx, title); err != nil {
		return "", err
	}

	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, quoteSheet(title), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear sheet %s: %w", title, err)
	}

	rows := export.AnalysisRows(goal, result)
	rng := dataRange(title, len(rows), len(export.AnalysisHeader))
	vr := &gsheet.ValueRange{Values: toValues(rows)}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("update %s: %w", rng, err)
	}

	c.logger.InfoContext(ctx, "Analysis written to sheet",
		log.FieldGoalID, goal.ID,
		"range", rng,
		log.FieldOperation, log.OpExport)
	return rng, nil
}

func (c *Client) ensureSheet(ctx context.Context, title string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	c.logger.InfoContext(ctx, "Created sheet", "title", title)
	return nil
}

func sheetTitle(prefix, goalName string) string {
	return strings.TrimSpace(prefix + " " + strings.TrimSpace(goalName))
}

// quoteSheet renders a sheet title for A1 notation.
func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func dataRange(title string, rows, cols int) string {
	return fmt.Sprintf("%s!A1:%s%d", quoteSheet(title), columnName(cols), rows)
}

// columnName converts a 1-based column index into its letter form.
func columnName(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

func toValues(rows [][]string) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		vals := make([]any, len(r))
		for j, v := range r {
			vals[j] = v
		}
		out[i] = vals
	}
	return out
}
