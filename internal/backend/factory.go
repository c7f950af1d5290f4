package backend

import (
	"context"
	"fmt"

	"salvadanaio/internal/log"
	gsheet "salvadanaio/internal/sheets/google"
	"salvadanaio/internal/sheets/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentSheets)}
}

// CreateWriter implements Factory.CreateWriter
func (f *DefaultFactory) CreateWriter(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case GoogleBackend:
		client, err := gsheet.New(ctx, config.GoogleSpreadsheetID, config.GoogleSheetPrefix, config.GoogleCredentials, f.logger)
		if err != nil {
			return nil, fmt.Errorf("initialize Google Sheets client: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized Google Sheets backend", "spreadsheet_id", config.GoogleSpreadsheetID)
		return &Result{Writer: client}, nil
	case MemoryBackend:
		f.logger.InfoContext(ctx, "Initialized memory sheets backend")
		return &Result{Writer: memory.New()}, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
