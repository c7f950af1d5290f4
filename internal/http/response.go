package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"salvadanaio/internal/analysis"
	"salvadanaio/internal/core"
	"salvadanaio/internal/log"
	"salvadanaio/internal/middleware/trace"
	"salvadanaio/internal/services"
	"salvadanaio/internal/storage"
)

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code and writes a JSON error body. Server
// errors are logged and their details withheld from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	msg := err.Error()
	requestID := trace.GetRequestID(r.Context())

	if status >= http.StatusInternalServerError {
		fields := log.NewFields().WithRequestID(requestID).WithHTTPRequest(r.Method, r.URL.Path)
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, log.ComponentHTTP, operationFor(r), fields)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorBody{Error: msg, RequestID: requestID})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, errInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, services.ErrUnknownExportKind):
		return http.StatusNotFound
	case errors.Is(err, analysis.ErrInvalidDateRange),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrInvalidYear):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func operationFor(r *http.Request) string {
	if r.Method == http.MethodPost {
		return log.OpRecord
	}
	return log.OpAnalyze
}
