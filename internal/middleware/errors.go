package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	apperrors "firmpulse/internal/errors"
	"firmpulse/internal/infrastructure"
)

// Problem is an RFC 7807 problem details response.
type Problem struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Status  int    `json:"status"`
	Detail  string `json:"detail,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// ProblemFromStatus builds a Problem for a bare HTTP status.
func ProblemFromStatus(status int, detail, traceID string) Problem {
	return Problem{
		Type:    "/errors/" + slugForStatus(status),
		Title:   http.StatusText(status),
		Status:  status,
		Detail:  detail,
		TraceID: traceID,
	}
}

// ProblemFromError maps application error types to problem responses.
func ProblemFromError(err error, traceID string) Problem {
	status := http.StatusInternalServerError
	switch {
	case apperrors.IsType(err, apperrors.ErrTypeNotFound):
		status = http.StatusNotFound
	case apperrors.IsType(err, apperrors.ErrTypeValidation):
		status = http.StatusBadRequest
	case apperrors.IsType(err, apperrors.ErrTypeParsing):
		status = http.StatusUnprocessableEntity
	case apperrors.IsType(err, apperrors.ErrTypeNetwork):
		status = http.StatusBadGateway
	}
	return ProblemFromStatus(status, err.Error(), traceID)
}

// writeProblem renders a Problem with the problem+json content type.
func writeProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// RespondError writes an error as a problem response and logs it.
func RespondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	traceID := infrastructure.GetTraceID(r.Context())
	p := ProblemFromError(err, traceID)

	if p.Status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request error",
			slog.String("path", r.URL.Path),
			slog.Int("status", p.Status),
			slog.String("error", err.Error()))
	}

	writeProblem(w, p)
}

func slugForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not-found"
	case http.StatusBadRequest:
		return "bad-request"
	case http.StatusUnprocessableEntity:
		return "unprocessable-entity"
	case http.StatusBadGateway:
		return "bad-gateway"
	case http.StatusTooManyRequests:
		return "rate-limit-exceeded"
	case http.StatusGatewayTimeout:
		return "request-timeout"
	default:
		return "internal-server-error"
	}
}
