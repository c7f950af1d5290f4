package sheets

import (
	"context"

	"salvadanaio/internal/analysis"
	"salvadanaio/internal/core"
)

// Ports for outbound adapters.
type (
	// AnalysisWriter publishes the monthly analysis of a goal to a
	// spreadsheet. Each write replaces what was previously written for the
	// same goal.
	AnalysisWriter interface {
		WriteAnalysis(ctx context.Context, goal core.Goal, result *analysis.Result) (ref string, err error)
	}
)
