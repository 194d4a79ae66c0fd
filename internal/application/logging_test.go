package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/example/lab-scheduler/internal/logging"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestLogOutcome_Levels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := context.Background()

	logOutcome(ctx, logger, nil, "failed", "done", "reservation_id", "r1")
	logOutcome(ctx, logger, newConflict(ReasonSeatBooked, "taken", ConflictDetail{}), "failed", "done")
	logOutcome(ctx, logger, errors.New("boom"), "failed", "done")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected three log lines, got %d: %s", len(lines), buf.String())
	}

	var records []map[string]any
	for _, line := range lines {
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		records = append(records, record)
	}

	if records[0]["level"] != "INFO" || records[0]["msg"] != "done" || records[0]["reservation_id"] != "r1" {
		t.Fatalf("unexpected success record %v", records[0])
	}
	if records[1]["level"] != "INFO" || records[1]["reason_code"] != string(ReasonSeatBooked) || records[1]["error_kind"] != "conflict" {
		t.Fatalf("unexpected rejection record %v", records[1])
	}
	if records[2]["level"] != "ERROR" || records[2]["error_kind"] != "unexpected" {
		t.Fatalf("unexpected failure record %v", records[2])
	}
}

func TestServiceLogger_PrefersContextLogger(t *testing.T) {
	t.Parallel()

	var base, scoped bytes.Buffer
	baseLogger := slog.New(slog.NewJSONHandler(&base, nil))
	ctx := logging.ContextWithLogger(context.Background(), slog.New(slog.NewJSONHandler(&scoped, nil)))

	serviceLogger(ctx, baseLogger, "ReservationService", "CreateReservation").Info("hello")
	if base.Len() != 0 {
		t.Fatalf("expected base logger unused, got %s", base.String())
	}
	if !strings.Contains(scoped.String(), `"service":"ReservationService"`) || !strings.Contains(scoped.String(), `"operation":"CreateReservation"`) {
		t.Fatalf("expected service attributes, got %s", scoped.String())
	}
}
