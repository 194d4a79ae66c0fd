package application

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newFixedScheduleFixture(t *testing.T, entries ...FixedScheduleEntry) (*FixedScheduleService, *fixedScheduleRepoStub, *auditorStub) {
	t.Helper()
	repo := &fixedScheduleRepoStub{entries: entries}
	auditor := &auditorStub{}
	svc := NewFixedScheduleService(repo, nil, Sinks{Auditor: auditor}, sequentialIDs("fs"), func() time.Time { return on(monday, 7, 0) })
	return svc, repo, auditor
}

func TestFixedScheduleService_Upsert_NormalizesInput(t *testing.T) {
	t.Parallel()

	svc, _, auditor := newFixedScheduleFixture(t)
	entry, err := svc.UpsertFixedScheduleEntry(context.Background(), admin(), FixedScheduleInput{
		DayOfWeek:    "Tuesday",
		StartTime:    "8:00",
		EndTime:      "9:30",
		GradeLevelID: "g7",
		GradeLevel:   "Grade 7",
		SectionID:    "sec-a",
		Section:      "Section A",
		TeacherID:    "t1",
		TeacherName:  "Ms. Cruz",
	})
	if err != nil {
		t.Fatalf("UpsertFixedScheduleEntry returned error: %v", err)
	}
	if entry.ID != "fs-1" || entry.DayOfWeek != time.Tuesday {
		t.Fatalf("unexpected entry identity %+v", entry)
	}
	if entry.StartTime != "08:00" || entry.EndTime != "09:30" {
		t.Fatalf("expected normalized times, got %s-%s", entry.StartTime, entry.EndTime)
	}
	if entry.Label != "Grade 7 - Section A - Ms. Cruz" {
		t.Fatalf("unexpected default label %q", entry.Label)
	}
	if len(auditor.entries) != 1 || auditor.entries[0].Action != ActionFixedScheduleUpsert {
		t.Fatalf("expected upsert audit, got %v", auditor.actions())
	}
}

func TestFixedScheduleService_Upsert_Validation(t *testing.T) {
	t.Parallel()

	svc, _, _ := newFixedScheduleFixture(t)
	ctx := context.Background()

	if _, err := svc.UpsertFixedScheduleEntry(ctx, student("s1"), FixedScheduleInput{}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected admin-only, got %v", err)
	}

	_, err := svc.UpsertFixedScheduleEntry(ctx, admin(), FixedScheduleInput{
		DayOfWeek: "9", StartTime: "10:00", EndTime: "09:00",
	})
	vErr := requireValidation(t, err, ReasonInvalidInput)
	for _, field := range []string{"day_of_week", "grade_level_id", "section_id", "teacher_id"} {
		if _, ok := vErr.FieldErrors[field]; !ok {
			t.Fatalf("expected %s error, got %v", field, vErr.FieldErrors)
		}
	}

	_, err = svc.UpsertFixedScheduleEntry(ctx, admin(), FixedScheduleInput{
		DayOfWeek: "1", StartTime: "10:00", EndTime: "09:00",
		GradeLevelID: "g", SectionID: "s", TeacherID: "t",
	})
	vErr = requireValidation(t, err, ReasonInvalidInput)
	if _, ok := vErr.FieldErrors["end_time"]; !ok {
		t.Fatalf("expected end_time error, got %v", vErr.FieldErrors)
	}
}

func TestFixedScheduleService_Upsert_RejectsOverlap(t *testing.T) {
	t.Parallel()

	existing := FixedScheduleEntry{ID: "fs-a", DayOfWeek: time.Monday, StartTime: "08:00", EndTime: "09:00", Active: true}
	svc, _, _ := newFixedScheduleFixture(t, existing)
	ctx := context.Background()
	input := FixedScheduleInput{
		DayOfWeek: "1", StartTime: "08:30", EndTime: "09:30",
		GradeLevelID: "g", SectionID: "s", TeacherID: "t",
	}

	_, err := svc.UpsertFixedScheduleEntry(ctx, admin(), input)
	cErr := requireConflict(t, err, ReasonFixedScheduleOverlap)
	if cErr.Detail.FixedEntry == nil || cErr.Detail.FixedEntry.ID != "fs-a" {
		t.Fatalf("expected colliding entry, got %+v", cErr.Detail.FixedEntry)
	}

	input.ID = "fs-a"
	if _, err := svc.UpsertFixedScheduleEntry(ctx, admin(), input); err != nil {
		t.Fatalf("expected entry to be movable over itself, got %v", err)
	}

	input.ID = ""
	input.DayOfWeek = "wed"
	if _, err := svc.UpsertFixedScheduleEntry(ctx, admin(), input); err != nil {
		t.Fatalf("expected other weekday to be accepted, got %v", err)
	}

	input.ID = "missing"
	if _, err := svc.UpsertFixedScheduleEntry(ctx, admin(), input); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestFixedScheduleService_EntriesForDateAndConflict(t *testing.T) {
	t.Parallel()

	svc, _, _ := newFixedScheduleFixture(t,
		FixedScheduleEntry{ID: "late", DayOfWeek: time.Monday, StartTime: "13:00", EndTime: "14:00", Active: true},
		FixedScheduleEntry{ID: "early", DayOfWeek: time.Monday, StartTime: "08:00", EndTime: "09:00", Active: true},
		FixedScheduleEntry{ID: "tuesday", DayOfWeek: time.Tuesday, StartTime: "08:00", EndTime: "09:00", Active: true},
		FixedScheduleEntry{ID: "inactive", DayOfWeek: time.Monday, StartTime: "10:00", EndTime: "11:00"},
	)
	ctx := context.Background()

	occurrences, err := svc.EntriesForDate(ctx, monday)
	if err != nil {
		t.Fatalf("EntriesForDate returned error: %v", err)
	}
	if len(occurrences) != 2 || occurrences[0].Entry.ID != "early" || occurrences[1].Entry.ID != "late" {
		t.Fatalf("unexpected occurrences %+v", occurrences)
	}

	found, err := svc.FindConflict(ctx, monday, scheduleWindow(monday, 8, 10), "")
	if err != nil || found == nil || found.Entry.ID != "early" {
		t.Fatalf("expected early conflict, got %+v, %v", found, err)
	}
	found, err = svc.FindConflict(ctx, monday, scheduleWindow(monday, 8, 10), "early")
	if err != nil || found != nil {
		t.Fatalf("expected excluded entry to be ignored, got %+v, %v", found, err)
	}
	found, err = svc.FindConflict(ctx, monday, scheduleWindow(monday, 10, 11), "")
	if err != nil || found != nil {
		t.Fatalf("expected inactive entry to be ignored, got %+v, %v", found, err)
	}
}

func TestFixedScheduleService_ListMineAndDelete(t *testing.T) {
	t.Parallel()

	svc, repo, _ := newFixedScheduleFixture(t,
		FixedScheduleEntry{ID: "by-id", DayOfWeek: time.Monday, StartTime: "08:00", EndTime: "09:00", TeacherID: "t1", Active: true},
		FixedScheduleEntry{ID: "by-name", DayOfWeek: time.Tuesday, StartTime: "08:00", EndTime: "09:00", TeacherName: "Ms. Cruz", Active: true},
		FixedScheduleEntry{ID: "other", DayOfWeek: time.Monday, StartTime: "10:00", EndTime: "11:00", TeacherID: "t2", Active: true},
	)
	ctx := context.Background()

	mine, err := svc.ListMyFixedSchedule(ctx, Principal{UserID: "t1", DisplayName: "ms. cruz", Role: RoleTeacher})
	if err != nil {
		t.Fatalf("ListMyFixedSchedule returned error: %v", err)
	}
	if len(mine) != 2 || mine[0].ID != "by-id" || mine[1].ID != "by-name" {
		t.Fatalf("unexpected entries %+v", mine)
	}

	if err := svc.DeleteFixedScheduleEntry(ctx, admin(), "other"); err != nil {
		t.Fatalf("DeleteFixedScheduleEntry returned error: %v", err)
	}
	if repo.entries[2].Active {
		t.Fatalf("expected entry deactivated, not removed")
	}
	if err := svc.DeleteFixedScheduleEntry(ctx, admin(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
