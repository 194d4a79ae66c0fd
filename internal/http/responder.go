package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/lab-scheduler/internal/application"
)

var (
	errBadRequestBody   = errors.New("request body is not valid JSON")
	errMissingID        = errors.New("resource id is required")
	errMissingDate      = errors.New("date query parameter must be YYYY-MM-DD")
	errMissingIdentity  = errors.New("a bearer token is required")
	errInvalidIdentity  = errors.New("the bearer token is invalid or expired")
	errServiceMisconfig = errors.New("handler is not configured")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Kind: kindForStatus(status), Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode:      string(vErr.ReasonCode()),
			Kind:           string(application.KindValidation),
			Message:        vErr.Error(),
			Errors:         vErr.FieldErrors,
			InvalidSeatIDs: vErr.InvalidSeatIDs,
		})
		return
	}

	var cErr *application.ConflictError
	if errors.As(err, &cErr) {
		detail := cErr.Detail
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: string(cErr.ReasonCode()),
			Kind:      string(application.KindConflict),
			Message:   cErr.Error(),
			Detail:    &detail,
		})
		return
	}

	kind := application.KindOf(err)
	switch kind {
	case application.KindUnauthorized:
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "FORBIDDEN",
			Kind:      string(kind),
			Message:   "you are not allowed to perform this operation",
		})
	case application.KindNotFound:
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{
			ErrorCode: "NOT_FOUND",
			Kind:      string(kind),
			Message:   "the requested resource was not found",
		})
	case application.KindStorage:
		r.loggerFor(ctx).ErrorContext(ctx, "storage unavailable", "error", err)
		r.writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{
			ErrorCode: "STORAGE_UNAVAILABLE",
			Kind:      string(kind),
			Message:   "storage is temporarily unavailable, retry later",
		})
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{
			ErrorCode: "INTERNAL",
			Kind:      string(application.KindUnexpected),
			Message:   "internal server error",
		})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func kindForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return string(application.KindValidation)
	case http.StatusUnauthorized, http.StatusForbidden:
		return string(application.KindUnauthorized)
	case http.StatusNotFound:
		return string(application.KindNotFound)
	case http.StatusConflict:
		return string(application.KindConflict)
	case http.StatusServiceUnavailable:
		return string(application.KindStorage)
	default:
		return string(application.KindUnexpected)
	}
}

type errorResponse struct {
	ErrorCode      string                      `json:"error_code,omitempty"`
	Kind           string                      `json:"kind"`
	Message        string                      `json:"message"`
	Errors         map[string]string           `json:"errors,omitempty"`
	InvalidSeatIDs []string                    `json:"invalid_seat_ids,omitempty"`
	Detail         *application.ConflictDetail `json:"detail,omitempty"`
}
