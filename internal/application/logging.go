package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/lab-scheduler/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps service errors to a stable logging label.
func ErrorKind(err error) string {
	return string(KindOf(err))
}

// logOutcome writes the single outcome line of an operation. Rejections are
// expected business results and are logged at info with their reason code.
func logOutcome(ctx context.Context, logger *slog.Logger, err error, failure, success string, attrs ...any) {
	if err == nil {
		logger.InfoContext(ctx, success, attrs...)
		return
	}
	var rejection Rejection
	if errors.As(err, &rejection) {
		logger.InfoContext(ctx, failure, append(attrs, "error", err, "error_kind", ErrorKind(err), "reason_code", rejection.ReasonCode())...)
		return
	}
	logger.ErrorContext(ctx, failure, append(attrs, "error", err, "error_kind", ErrorKind(err))...)
}
