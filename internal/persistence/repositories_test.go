package persistence_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/example/lab-scheduler/internal/application"
	"github.com/example/lab-scheduler/internal/persistence"
	"github.com/example/lab-scheduler/internal/testfixtures"
)

func TestSeatRepository(t *testing.T) {
	t.Parallel()

	t.Run("harness seeds the default catalog once", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewSQLStoreHarness(t)

		seats, err := harness.Seats.ListSeats(ctx, false)
		if err != nil {
			t.Fatalf("ListSeats failed: %v", err)
		}
		if len(seats) != 21 {
			t.Fatalf("expected 21 seeded seats, got %d", len(seats))
		}
		if seats[0].ID != "A1" || seats[0].Side != "left" {
			t.Fatalf("unexpected first seat %+v", seats[0])
		}

		seeded, err := harness.Seats.SeedSeats(ctx, nil)
		if err != nil {
			t.Fatalf("SeedSeats failed: %v", err)
		}
		if seeded {
			t.Fatalf("expected catalog to be marked initialized")
		}
	})
}

func TestReservationRepository(t *testing.T) {
	t.Parallel()

	t.Run("guard sees only the candidate's date", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewSQLStoreHarness(t)
		monday := testfixtures.ReferenceDate()
		tuesday := monday.AddDays(1)

		for _, fixture := range []testfixtures.ReservationFixture{
			testfixtures.NewReservationFixture(testfixtures.WithReservationID("mon-1")),
			testfixtures.NewReservationFixture(testfixtures.WithReservationID("tue-1"), testfixtures.WithWindow(tuesday, 9, 10)),
		} {
			if _, err := harness.Reservations.CreateReservation(ctx, fixture.Persistence(), nil); err != nil {
				t.Fatalf("CreateReservation(%s) failed: %v", fixture.ID, err)
			}
		}

		var seen []string
		candidate := testfixtures.NewReservationFixture(
			testfixtures.WithReservationID("mon-2"),
			testfixtures.WithSeats("A1", "A2"),
		)
		_, err := harness.Reservations.CreateReservation(ctx, candidate.Persistence(), func(existing []persistence.Reservation) error {
			for _, r := range existing {
				seen = append(seen, r.ID)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("CreateReservation failed: %v", err)
		}
		if !slices.Equal(seen, []string{"mon-1"}) {
			t.Fatalf("guard saw unexpected reservations %v", seen)
		}

		stored, err := harness.Reservations.GetReservation(ctx, "mon-2")
		if err != nil {
			t.Fatalf("GetReservation failed: %v", err)
		}
		if !slices.Equal(stored.SeatIDs, []string{"A1", "A2"}) {
			t.Fatalf("unexpected seats %v", stored.SeatIDs)
		}
	})

	t.Run("guard rejection leaves no record", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewSQLStoreHarness(t)
		rejection := errors.New("lab full")

		fixture := testfixtures.NewReservationFixture(testfixtures.WithReservationID("rejected"))
		_, err := harness.Reservations.CreateReservation(ctx, fixture.Persistence(), func([]persistence.Reservation) error {
			return rejection
		})
		if !errors.Is(err, rejection) {
			t.Fatalf("expected guard error, got %v", err)
		}
		if _, err := harness.Reservations.GetReservation(ctx, "rejected"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("updates require the current version", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewSQLStoreHarness(t)

		created, err := harness.Reservations.CreateReservation(ctx, testfixtures.NewReservationFixture().Persistence(), nil)
		if err != nil {
			t.Fatalf("CreateReservation failed: %v", err)
		}

		cancelled := created
		cancelled.Status = string(application.StatusCancelled)
		cancelled.UpdatedAt = created.UpdatedAt.Add(time.Minute)
		if _, err := harness.Reservations.UpdateReservation(ctx, cancelled); err != nil {
			t.Fatalf("UpdateReservation failed: %v", err)
		}

		missed := created
		missed.Status = string(application.StatusMissed)
		if _, err := harness.Reservations.UpdateReservation(ctx, missed); !errors.Is(err, persistence.ErrStale) {
			t.Fatalf("expected ErrStale for outdated version, got %v", err)
		}

		stored, err := harness.Reservations.GetReservation(ctx, created.ID)
		if err != nil {
			t.Fatalf("GetReservation failed: %v", err)
		}
		if stored.Status != string(application.StatusCancelled) || stored.Version != 2 {
			t.Fatalf("unexpected stored reservation %+v", stored)
		}
	})
}

func TestScheduleRepositories(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLStoreHarness(t)

	block := testfixtures.NewSeatBlockFixture(testfixtures.WithBlockedSeat("C1"))
	if _, err := harness.SeatBlocks.CreateSeatBlock(ctx, block.Persistence()); err != nil {
		t.Fatalf("CreateSeatBlock failed: %v", err)
	}
	blocks, err := harness.SeatBlocks.ListSeatBlocks(ctx, block.Date.String(), "C1")
	if err != nil || len(blocks) != 1 {
		t.Fatalf("expected one block, got %v, %v", blocks, err)
	}

	class := testfixtures.NewClassFixture()
	if _, err := harness.Classes.CreateClass(ctx, class.Persistence()); err != nil {
		t.Fatalf("CreateClass failed: %v", err)
	}
	classes, err := harness.Classes.ListClasses(ctx, persistence.ClassFilter{Date: class.Date.String()})
	if err != nil || len(classes) != 1 || classes[0].ClassName != "Robotics" {
		t.Fatalf("unexpected classes %v, %v", classes, err)
	}

	entry := testfixtures.FixedScheduleFixture("fs-1", time.Monday, "13:00", "14:00")
	if _, err := harness.FixedSchedule.UpsertFixedScheduleEntry(ctx, entry); err != nil {
		t.Fatalf("UpsertFixedScheduleEntry failed: %v", err)
	}
	entries, err := harness.FixedSchedule.ListFixedSchedule(ctx)
	if err != nil || len(entries) != 1 || entries[0].DayOfWeek != int(time.Monday) {
		t.Fatalf("unexpected fixed schedule %v, %v", entries, err)
	}
}
