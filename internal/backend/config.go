package backend

import (
	"fmt"

	"salvadanaio/internal/config"
	gsheet "salvadanaio/internal/sheets/google"
)

// Config is the subset of the application config a backend needs.
type Config struct {
	Type BackendType

	GoogleSpreadsheetID string
	GoogleSheetPrefix   string
	GoogleCredentials   gsheet.Credentials
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.SheetsBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.SheetsBackend)
	}

	return Config{
		Type:                backendType,
		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,
		GoogleSheetPrefix:   appConfig.GoogleSheetPrefix,
		GoogleCredentials: gsheet.Credentials{
			JSON:            appConfig.GoogleServiceAccountJSON,
			File:            appConfig.GoogleServiceAccountFile,
			ApplicationFile: appConfig.GoogleApplicationCredFile,
		},
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	if c.Type == GoogleBackend {
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for google backend")
		}
		creds := c.GoogleCredentials
		if creds.JSON == "" && creds.File == "" && creds.ApplicationFile == "" {
			return fmt.Errorf("service account credentials are required for google backend")
		}
	}
	return nil
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	return []string{MemoryBackend.String(), GoogleBackend.String()}
}
