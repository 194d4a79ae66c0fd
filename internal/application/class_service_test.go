package application

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

func TestClassService_CRUD(t *testing.T) {
	t.Parallel()

	repo := &classRepoStub{}
	fixed := NewFixedScheduleService(&fixedScheduleRepoStub{entries: []FixedScheduleEntry{
		{ID: "fs-1", DayOfWeek: time.Monday, StartTime: "13:00", EndTime: "14:00", Label: "Grade 8", Active: true},
	}}, nil, Sinks{}, nil, nil)
	auditor := &auditorStub{}
	svc := NewClassService(repo, fixed, Sinks{Auditor: auditor}, sequentialIDs("class"), func() time.Time { return on(monday, 7, 0) })
	ctx := context.Background()

	input := ClassInput{ClassName: "Robotics", Date: monday.String(), Start: on(monday, 9, 0), End: on(monday, 10, 0)}
	if _, err := svc.CreateClass(ctx, student("s1"), input); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected admin-only, got %v", err)
	}

	teacher := Principal{UserID: "t1", DisplayName: "Mr. Reyes", Role: RoleTeacher}
	input.TeacherID = teacher.UserID
	input.TeacherName = teacher.DisplayName
	class, err := svc.CreateClass(ctx, admin(), input)
	if err != nil {
		t.Fatalf("CreateClass returned error: %v", err)
	}
	if class.ID != "class-1" || class.Capacity != 30 || class.TeacherID != "t1" {
		t.Fatalf("unexpected class %+v", class)
	}

	conflicting := input
	conflicting.Start = on(monday, 13, 30)
	conflicting.End = on(monday, 14, 30)
	_, err = svc.CreateClass(ctx, admin(), conflicting)
	requireConflict(t, err, ReasonFixedSchedule)

	input.ClassName = "Robotics II"
	input.Capacity = 12
	updated, err := svc.UpdateClass(ctx, admin(), class.ID, input)
	if err != nil {
		t.Fatalf("UpdateClass returned error: %v", err)
	}
	if updated.ClassName != "Robotics II" || updated.Capacity != 12 || updated.ID != class.ID {
		t.Fatalf("unexpected update %+v", updated)
	}

	onDate, err := svc.ClassesOn(ctx, monday)
	if err != nil || len(onDate) != 1 {
		t.Fatalf("expected one class on date, got %v, %v", onDate, err)
	}
	mine, err := svc.ListMyClasses(ctx, teacher)
	if err != nil || len(mine) != 1 {
		t.Fatalf("expected one class for teacher, got %v, %v", mine, err)
	}

	if err := svc.DeleteClass(ctx, admin(), class.ID); err != nil {
		t.Fatalf("DeleteClass returned error: %v", err)
	}
	if _, err := svc.GetClass(ctx, class.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted class to be gone, got %v", err)
	}
	if !slices.Equal(auditor.actions(), []string{ActionClassCreated, ActionClassUpdated, ActionClassDeleted}) {
		t.Fatalf("unexpected audit actions %v", auditor.actions())
	}
}

func TestClassService_CreateClass_Validation(t *testing.T) {
	t.Parallel()

	svc := NewClassService(&classRepoStub{}, nil, Sinks{}, nil, nil)
	_, err := svc.CreateClass(context.Background(), admin(), ClassInput{
		Date:     "16/06/2025",
		Start:    on(monday, 10, 0),
		End:      on(monday, 9, 0),
		Capacity: 1000,
	})
	vErr := requireValidation(t, err, ReasonInvalidInput)
	for _, field := range []string{"class_name", "date", "end", "capacity"} {
		if _, ok := vErr.FieldErrors[field]; !ok {
			t.Fatalf("expected %s error, got %v", field, vErr.FieldErrors)
		}
	}

	_, err = svc.CreateClass(context.Background(), admin(), ClassInput{
		ClassName: "Robotics",
		Date:      monday.String(),
		Start:     on(monday.AddDays(1), 9, 0),
		End:       on(monday.AddDays(1), 10, 0),
	})
	vErr = requireValidation(t, err, ReasonInvalidInput)
	for _, field := range []string{"start", "end"} {
		if _, ok := vErr.FieldErrors[field]; !ok {
			t.Fatalf("expected %s error for window off date, got %v", field, vErr.FieldErrors)
		}
	}
}
