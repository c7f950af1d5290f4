// Package backend selects where the worker exports analysis snapshots.
package backend

import (
	"context"

	"salvadanaio/internal/sheets"
)

// BackendType names a sheets export backend.
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	GoogleBackend BackendType = "google"
)

func (t BackendType) IsValid() bool {
	switch t {
	case MemoryBackend, GoogleBackend:
		return true
	}
	return false
}

func (t BackendType) String() string {
	return string(t)
}

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// Result holds the writer and an optional cleanup function.
type Result struct {
	Writer  sheets.AnalysisWriter
	Cleanup CleanupFunc
}

// Factory creates writers based on configuration.
type Factory interface {
	CreateWriter(ctx context.Context, config Config) (*Result, error)
}
