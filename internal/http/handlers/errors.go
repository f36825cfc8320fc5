package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/jmylchreest/memmux/internal/media"
	"github.com/jmylchreest/memmux/internal/observability"
)

// APIError is the error body returned by every operation.
type APIError struct {
	Status    int    `json:"status"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Error implements error.
func (e *APIError) Error() string { return e.Message }

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int { return e.Status }

// ContentType implements huma.ContentTypeFilter.
func (e *APIError) ContentType(string) string { return "application/problem+json" }

// statusForKind maps failure kinds onto HTTP statuses. Problems with the
// caller's media are 422, problems with the request itself 400.
func statusForKind(err error) int {
	switch {
	case errors.Is(err, media.ErrPrecondition):
		return http.StatusBadRequest
	case errors.Is(err, media.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, media.ErrOpen),
		errors.Is(err, media.ErrProbe),
		errors.Is(err, media.ErrNoStream),
		errors.Is(err, media.ErrCodec):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled):
		return 499
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// newAPIError classifies err for the response.
func newAPIError(ctx context.Context, err error) *APIError {
	status := statusForKind(err)
	msg := err.Error()
	if status == http.StatusInternalServerError && media.KindOf(err) == "" {
		msg = http.StatusText(status)
	}
	return &APIError{
		Status:    status,
		Kind:      media.KindName(err),
		Message:   msg,
		RequestID: observability.RequestIDFromContext(ctx),
	}
}

// badRequest reports a malformed request parameter.
func badRequest(ctx context.Context, status int, msg string) *APIError {
	return &APIError{
		Status:    status,
		Kind:      "RequestError",
		Message:   msg,
		RequestID: observability.RequestIDFromContext(ctx),
	}
}
