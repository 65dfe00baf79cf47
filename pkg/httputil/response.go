package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/obaraelijah/LeafLine-Server/pkg/errors"
	"github.com/obaraelijah/LeafLine-Server/pkg/logger"
	"github.com/obaraelijah/LeafLine-Server/pkg/validator"
)

// Response is the JSON envelope shared by all LeafLine endpoints.
type Response struct {
	StatusCode int                    `json:"statusCode"`
	Success    bool                   `json:"success"`
	Message    string                 `json:"message,omitempty"`
	Data       any                    `json:"data,omitempty"`
	Errors     []validator.FieldError `json:"errors,omitempty"`
	RequestID  string                 `json:"requestId,omitempty"`
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; an encode failure cannot be reported.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteSuccess writes a success envelope.
func WriteSuccess(w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, Response{
		StatusCode: status,
		Success:    true,
		Message:    message,
		Data:       data,
	})
}

// WriteError maps err to a status code and writes an error envelope. Client
// errors keep their message; anything that maps to 500 without an AppError is
// logged and replaced with a generic message. The request-scoped logger is
// preferred over fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}
	requestID := logger.CorrelationIDFromContext(r.Context())

	status := apperrors.HTTPStatus(err)
	resp := Response{
		StatusCode: status,
		Success:    false,
		RequestID:  requestID,
	}

	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		resp.Message = appErr.Message
		if appErr.Status == http.StatusBadRequest {
			resp.Message = "Validation error"
			field := appErr.Field
			if field == "" {
				field = "body"
			}
			resp.Errors = []validator.FieldError{{Field: field, Message: appErr.Message}}
		}
	case errors.Is(err, apperrors.ErrNotFound):
		resp.Message = "resource not found"
	case errors.Is(err, apperrors.ErrOutOfStock):
		resp.Message = "out of stock"
	default:
		resp.Message = "an internal error occurred"
	}

	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.Int("status", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, resp)
}

// WriteValidationError writes a 400 envelope listing field-level failures.
func WriteValidationError(w http.ResponseWriter, r *http.Request, err error) {
	resp := Response{
		StatusCode: http.StatusBadRequest,
		Success:    false,
		Message:    "Validation error",
		RequestID:  logger.CorrelationIDFromContext(r.Context()),
	}

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		resp.Errors = valErr.FieldErrors()
	} else {
		resp.Errors = []validator.FieldError{{Field: "body", Message: err.Error()}}
	}

	WriteJSON(w, http.StatusBadRequest, resp)
}
