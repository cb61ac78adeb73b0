package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/opencode-ai/llmcall/internal/agent"
	"github.com/opencode-ai/llmcall/internal/checkpoint"
	"github.com/opencode-ai/llmcall/internal/logging"
	"github.com/opencode-ai/llmcall/internal/orchestrator"
	"github.com/opencode-ai/llmcall/internal/provider"
	"github.com/opencode-ai/llmcall/internal/structured"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error codes
const (
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeInvalidConfig    = "INVALID_CONFIG"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeProviderError    = "PROVIDER_ERROR"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Component("server").Debug().Err(err).Msg("failed to write response")
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeErrorWithDetails(w, status, code, message, nil)
}

// writeErrorWithDetails writes an error response with details.
func writeErrorWithDetails(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// writeCallError maps an orchestrator error to a response. Configuration
// and input errors are the caller's to fix (400), a structured response that failed
// its schema is 422, everything else came from the providers (502).
func writeCallError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *structured.ValidationError
		ce *provider.ConfigError
	)

	switch {
	case errors.As(err, &ve):
		details := map[string]any{"schema": ve.Schema}
		if len(ve.Errors) > 0 {
			details["errors"] = ve.Errors
		}
		writeErrorWithDetails(w, http.StatusUnprocessableEntity, ErrCodeValidationFailed, err.Error(), details)
	case errors.As(err, &ce):
		details := map[string]any{"model": ce.Model}
		if ce.Suggestion != "" {
			details["suggestion"] = ce.Suggestion
		}
		writeErrorWithDetails(w, http.StatusBadRequest, ErrCodeInvalidConfig, err.Error(), details)
	case isConfigError(err):
		writeError(w, http.StatusBadRequest, ErrCodeInvalidConfig, err.Error())
	case errors.Is(err, context.Canceled):
		// The client went away; nothing useful can be written.
		logging.Component("server").Debug().Err(err).Str("path", r.URL.Path).Msg("request cancelled")
	default:
		logging.Component("server").Error().Err(err).Str("path", r.URL.Path).Msg("call failed")
		writeError(w, http.StatusBadGateway, ErrCodeProviderError, err.Error())
	}
}

func isConfigError(err error) bool {
	return agent.IsInputError(err) ||
		errors.Is(err, orchestrator.ErrThreadIDRequired) ||
		errors.Is(err, orchestrator.ErrNoModel) ||
		errors.Is(err, checkpoint.ErrInvalidConfig) ||
		errors.Is(err, checkpoint.ErrDriverMissing)
}
