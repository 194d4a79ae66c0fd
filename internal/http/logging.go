package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/lab-scheduler/internal/application"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = fallback
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"handler", handlerName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// base carries what every handler shares.
type base struct {
	name      string
	responder responder
	logger    *slog.Logger
}

func newBase(name string, logger *slog.Logger) base {
	logger = defaultLogger(logger)
	return base{name: name, responder: newResponder(logger), logger: logger}
}

func (b base) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, b.logger, b.name, operation, attrs...)
}

// principal returns the caller or writes 401.
func (b base) principal(w http.ResponseWriter, r *http.Request, operation string) (application.Principal, bool) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok || strings.TrimSpace(principal.UserID) == "" {
		b.log(r.Context(), operation, "error_kind", "unauthorized").WarnContext(r.Context(), "missing authenticated principal")
		b.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingIdentity)
		return application.Principal{}, false
	}
	return principal, true
}

// pathID returns the {id} wildcard or writes 400.
func (b base) pathID(w http.ResponseWriter, r *http.Request, operation string) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		b.log(r.Context(), operation, "error_kind", "bad_request").WarnContext(r.Context(), "missing path id")
		b.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return "", false
	}
	return id, true
}

func (b base) decode(w http.ResponseWriter, r *http.Request, operation string, target any) bool {
	if err := decodeJSON(r, target); err != nil {
		b.log(r.Context(), operation, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode request", "error", err)
		b.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return false
	}
	return true
}

// fail logs the service error at the level its kind deserves and renders it.
func (b base) fail(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, message string, err error) {
	switch application.KindOf(err) {
	case application.KindValidation, application.KindConflict, application.KindNotFound, application.KindUnauthorized:
		logger.InfoContext(ctx, message, "error", err, "error_kind", application.ErrorKind(err))
	default:
		logger.ErrorContext(ctx, message, "error", err, "error_kind", application.ErrorKind(err))
	}
	b.responder.handleServiceError(ctx, w, err)
}
