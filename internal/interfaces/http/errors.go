package http

import (
	"log/slog"
	"net/http"

	"moneymind/internal/shared/apperr"
	"moneymind/internal/shared/requestctx"
)

// ErrorBody is the JSON shape of every failed response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

// WriteError is the single place where failures become HTTP statuses.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	kind := apperr.KindOf(err)
	status := statusFor(err, kind)

	message := "request failed"
	if e, ok := apperr.As(err); ok && e.Message != "" {
		message = e.Message
	}
	switch kind {
	case apperr.Internal:
		message = "internal error (request id " + requestctx.RequestID(ctx) + ")"
		slog.ErrorContext(ctx, "Internal error", "error", err)
	case apperr.DeadlineExceeded:
		message = "request deadline exceeded"
		slog.WarnContext(ctx, "Request deadline exceeded", "error", err)
	default:
		if status >= http.StatusInternalServerError {
			slog.ErrorContext(ctx, "Upstream failure", "kind", kind, "error", err)
		} else {
			slog.DebugContext(ctx, "Request rejected", "kind", kind, "error", err)
		}
	}

	writeJSON(w, status, ErrorBody{Error: ErrorDetail{Kind: kind, Message: message}})
}

func statusFor(err error, kind apperr.Kind) int {
	switch kind {
	case apperr.ValidationFailed:
		return http.StatusBadRequest
	case apperr.AuthMissing, apperr.AuthExpired, apperr.AuthInvalid:
		return http.StatusUnauthorized
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.UpstreamUnavailable:
		if e, ok := apperr.As(err); ok && e.Upstream == apperr.UpstreamDatastore {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	case apperr.UpstreamRejected:
		return http.StatusBadGateway
	case apperr.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
