package testfixtures

import (
	"context"
	"testing"

	"github.com/example/lab-scheduler/internal/application"
)

type capturingFixedScheduleRepo struct {
	saved []application.FixedScheduleEntry
}

func (c *capturingFixedScheduleRepo) ListFixedSchedule(ctx context.Context) ([]application.FixedScheduleEntry, error) {
	return c.saved, nil
}

func (c *capturingFixedScheduleRepo) GetFixedScheduleEntry(ctx context.Context, id string) (application.FixedScheduleEntry, error) {
	for _, entry := range c.saved {
		if entry.ID == id {
			return entry, nil
		}
	}
	return application.FixedScheduleEntry{}, application.ErrNotFound
}

func (c *capturingFixedScheduleRepo) UpsertFixedScheduleEntry(ctx context.Context, entry application.FixedScheduleEntry) (application.FixedScheduleEntry, error) {
	c.saved = append(c.saved, entry)
	return entry, nil
}

func (c *capturingFixedScheduleRepo) DeactivateFixedScheduleEntry(ctx context.Context, id string) error {
	return nil
}

func TestServiceFactoryNewLabServices(t *testing.T) {
	factory := NewServiceFactory(WithIDGenerator(NewIDGenerator("fs")))
	repo := &capturingFixedScheduleRepo{}

	services := factory.NewLabServices(LabRepositories{FixedSchedule: repo})
	if services.Notifications != nil {
		t.Fatalf("expected no inbox without a notification repository")
	}

	admin := application.Principal{UserID: "admin-1", Role: application.RoleAdmin}
	entry, err := services.FixedSchedule.UpsertFixedScheduleEntry(context.Background(), admin, application.FixedScheduleInput{
		DayOfWeek:    "monday",
		StartTime:    "08:00",
		EndTime:      "09:00",
		GradeLevelID: "grade-7",
		SectionID:    "section-a",
		TeacherID:    "teacher-1",
	})
	if err != nil {
		t.Fatalf("UpsertFixedScheduleEntry returned error: %v", err)
	}
	if entry.ID != "fs-1" {
		t.Fatalf("expected generated ID fs-1, got %q", entry.ID)
	}
	if len(repo.saved) != 1 || repo.saved[0].ID != entry.ID {
		t.Fatalf("repository received unexpected entries: %+v", repo.saved)
	}
	if !entry.CreatedAt.Equal(factory.Clock.Now()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Now(), entry.CreatedAt)
	}
}

func TestReservationFixtureConversions(t *testing.T) {
	fixture := NewReservationFixture(WithReservationID("res-x"), WithSeats(), WithWindow(ReferenceDate(), 13, 15))

	app := fixture.Application()
	if !app.WholeLab() || app.Start.Hour() != 13 || app.AttendanceDeadlineAt == nil {
		t.Fatalf("unexpected application reservation %+v", app)
	}
	record := fixture.Persistence()
	if record.Date != "2025-06-16" || record.Status != "approved" || record.Version != 1 {
		t.Fatalf("unexpected persistence reservation %+v", record)
	}
}
