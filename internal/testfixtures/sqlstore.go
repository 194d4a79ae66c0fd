package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/lab-scheduler/internal/persistence"
	"github.com/example/lab-scheduler/internal/persistence/sqlstore"
	"github.com/example/lab-scheduler/internal/seating"
)

// SQLStoreHarness exposes repositories backed by a temporary, migrated and
// seeded SQLite database.
type SQLStoreHarness struct {
	Store         *sqlstore.Store
	Reservations  persistence.ReservationRepository
	Seats         persistence.SeatRepository
	SeatBlocks    persistence.SeatBlockRepository
	FixedSchedule persistence.FixedScheduleRepository
	Classes       persistence.ClassRepository
	Notifications persistence.NotificationRepository
	Audit         persistence.AuditRepository
	Clock         *Clock

	cleanup func()
}

// Close releases the database. It also runs automatically at test cleanup.
func (h *SQLStoreHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLStoreHarness opens a SQLite file under tb.TempDir, applies the
// migrations and seeds the default seat catalog.
func NewSQLStoreHarness(tb testing.TB) *SQLStoreHarness {
	tb.Helper()

	clock := NewClock(ReferenceTime())
	path := filepath.Join(tb.TempDir(), "labscheduler.db")
	store, err := sqlstore.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)",
		sqlstore.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		sqlstore.WithClock(clock.Now),
	)
	if err != nil {
		tb.Fatalf("failed to open store: %v", err)
	}

	ctx := context.Background()
	if _, err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate store: %v", err)
	}
	if _, err := store.SeedSeats(ctx, PersistenceSeats(seating.DefaultCatalog())); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to seed seats: %v", err)
	}

	harness := &SQLStoreHarness{
		Store:         store,
		Reservations:  store,
		Seats:         store,
		SeatBlocks:    store,
		FixedSchedule: store,
		Classes:       store,
		Notifications: store,
		Audit:         store,
		Clock:         clock,
		cleanup: func() {
			_ = store.Close()
		},
	}
	tb.Cleanup(harness.Close)
	return harness
}
