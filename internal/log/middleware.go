package log

import (
	"context"
	"log/slog"
	"net/http"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// NewContext returns a copy of ctx carrying logger
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the context, falling back to slog's default
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// Middleware creates HTTP middleware that adds a logger to the request context
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// StructuredLogger provides domain-specific log helpers
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogAnalysisCompleted logs the outcome of a retroactive analysis
func (sl *StructuredLogger) LogAnalysisCompleted(ctx context.Context, goalID int64, start, end string, months int, performancePct float64, totalVariance string) {
	fields := NewFields().
		WithGoal(goalID).
		WithWindow(start, end).
		WithMetrics(months, performancePct, totalVariance).
		WithOperation(OpAnalyze).
		WithComponent(ComponentAnalysis)

	sl.logger.Logger.InfoContext(ctx, "Retroactive analysis completed", fields.ToSlice()...)
}

// LogContributionRecorded logs a stored contribution
func (sl *StructuredLogger) LogContributionRecorded(ctx context.Context, goalID int64, year, month int, amount string) {
	fields := NewFields().
		WithGoal(goalID).
		WithOperation(OpRecord).
		WithComponent(ComponentStorage)
	fields[FieldYear] = year
	fields[FieldMonth] = month
	fields[FieldAmount] = amount

	sl.logger.Logger.InfoContext(ctx, "Contribution recorded", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	allFields := fields.
		WithError(err).
		WithOperation(operation).
		WithComponent(component)

	sl.logger.Logger.ErrorContext(ctx, msg, allFields.ToSlice()...)
}
