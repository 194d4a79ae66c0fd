package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/lab-scheduler/internal/scheduler"
)

const defaultClassCapacity = 30

// ClassFilter narrows class listings. Zero fields match everything.
type ClassFilter struct {
	Date      scheduler.Date
	TeacherID string
}

// ClassRepository captures persistence of ad-hoc classes.
type ClassRepository interface {
	CreateClass(ctx context.Context, class Class) (Class, error)
	GetClass(ctx context.Context, id string) (Class, error)
	UpdateClass(ctx context.Context, class Class) (Class, error)
	DeleteClass(ctx context.Context, id string) error
	ListClasses(ctx context.Context, filter ClassFilter) ([]Class, error)
}

// ClassService manages ad-hoc classes that occupy the whole lab.
type ClassService struct {
	classes       ClassRepository
	fixedSchedule FixedScheduleLookup
	sinks         Sinks
	idGenerator   func() string
	now           func() time.Time
	location      *time.Location
	logger        *slog.Logger
}

// NewClassService constructs a class service.
func NewClassService(classes ClassRepository, fixedSchedule FixedScheduleLookup, sinks Sinks, idGenerator func() string, now func() time.Time) *ClassService {
	return NewClassServiceWithLogger(classes, fixedSchedule, sinks, idGenerator, now, nil)
}

// NewClassServiceWithLogger constructs a class service with a specified logger.
func NewClassServiceWithLogger(classes ClassRepository, fixedSchedule FixedScheduleLookup, sinks Sinks, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ClassService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if sinks.IDGenerator == nil {
		sinks.IDGenerator = idGenerator
	}
	return &ClassService{
		classes:       classes,
		fixedSchedule: fixedSchedule,
		sinks:         sinks,
		idGenerator:   idGenerator,
		now:           now,
		location:      time.UTC,
		logger:        defaultLogger(logger),
	}
}

// WithLocation sets the zone class windows are checked against.
func (s *ClassService) WithLocation(loc *time.Location) *ClassService {
	if loc != nil {
		s.location = loc
	}
	return s
}

func (s *ClassService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ClassService", operation, attrs...)
}

// CreateClass schedules a class for administrators.
func (s *ClassService) CreateClass(ctx context.Context, principal Principal, input ClassInput) (class Class, err error) {
	if s == nil {
		err = fmt.Errorf("ClassService is nil")
		return
	}
	if s.classes == nil {
		err = fmt.Errorf("class repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateClass", "principal_id", principal.UserID, "date", input.Date)
	defer func() {
		logOutcome(ctx, logger, err, "failed to create class", "class created", "class_id", class.ID)
	}()

	if !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	now := s.now()
	candidate, err := s.buildClass(ctx, principal, input)
	if err != nil {
		return
	}
	candidate.ID = s.idGenerator()
	candidate.CreatedAt = now
	candidate.UpdatedAt = now

	class, err = s.classes.CreateClass(ctx, candidate)
	if err != nil {
		err = mapRepoError("create class", err)
		return
	}
	s.audit(ctx, logger, principal, ActionClassCreated, class)
	return
}

// UpdateClass replaces the fields of an existing class.
func (s *ClassService) UpdateClass(ctx context.Context, principal Principal, classID string, input ClassInput) (class Class, err error) {
	if s == nil {
		err = fmt.Errorf("ClassService is nil")
		return
	}
	if s.classes == nil {
		err = fmt.Errorf("class repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateClass", "principal_id", principal.UserID, "class_id", classID)
	defer func() {
		logOutcome(ctx, logger, err, "failed to update class", "class updated")
	}()

	if !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	existing, err := s.classes.GetClass(ctx, classID)
	if err != nil {
		err = mapRepoError("get class", err)
		return
	}
	candidate, err := s.buildClass(ctx, principal, input)
	if err != nil {
		return
	}
	candidate.ID = existing.ID
	candidate.CreatedAt = existing.CreatedAt
	candidate.UpdatedAt = s.now()

	class, err = s.classes.UpdateClass(ctx, candidate)
	if err != nil {
		err = mapRepoError("update class", err)
		return
	}
	s.audit(ctx, logger, principal, ActionClassUpdated, class)
	return
}

// DeleteClass removes a class.
func (s *ClassService) DeleteClass(ctx context.Context, principal Principal, classID string) (err error) {
	if s == nil || s.classes == nil {
		return fmt.Errorf("class repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteClass", "principal_id", principal.UserID, "class_id", classID)
	defer func() {
		logOutcome(ctx, logger, err, "failed to delete class", "class deleted")
	}()

	if !principal.IsAdmin() {
		return ErrUnauthorized
	}
	existing, err := s.classes.GetClass(ctx, classID)
	if err != nil {
		return mapRepoError("get class", err)
	}
	if err = s.classes.DeleteClass(ctx, classID); err != nil {
		return mapRepoError("delete class", err)
	}
	s.audit(ctx, logger, principal, ActionClassDeleted, existing)
	return nil
}

// GetClass returns one class.
func (s *ClassService) GetClass(ctx context.Context, classID string) (Class, error) {
	if s == nil || s.classes == nil {
		return Class{}, fmt.Errorf("class repository not configured")
	}
	class, err := s.classes.GetClass(ctx, classID)
	if err != nil {
		return Class{}, mapRepoError("get class", err)
	}
	return class, nil
}

// ClassesOn returns the classes held on date ordered by start.
func (s *ClassService) ClassesOn(ctx context.Context, date scheduler.Date) ([]Class, error) {
	if s == nil || s.classes == nil {
		return nil, fmt.Errorf("class repository not configured")
	}
	classes, err := s.classes.ListClasses(ctx, ClassFilter{Date: date})
	if err != nil {
		return nil, mapRepoError("list classes", err)
	}
	sortClasses(classes)
	return classes, nil
}

// ListMyClasses returns the classes taught by the principal ordered by date
// then start.
func (s *ClassService) ListMyClasses(ctx context.Context, principal Principal) ([]Class, error) {
	if s == nil || s.classes == nil {
		return nil, fmt.Errorf("class repository not configured")
	}
	if principal.UserID == "" {
		return nil, ErrUnauthorized
	}
	classes, err := s.classes.ListClasses(ctx, ClassFilter{TeacherID: principal.UserID})
	if err != nil {
		return nil, mapRepoError("list classes", err)
	}
	sortClasses(classes)
	return classes, nil
}

func (s *ClassService) buildClass(ctx context.Context, principal Principal, input ClassInput) (Class, error) {
	vErr := validateStruct(input)
	date := parseDateField(vErr, "date", input.Date)
	validateWindow(vErr, date, input.Start, input.End, s.location)
	if err := vErr.finish(); err != nil {
		return Class{}, err
	}

	class := Class{
		TeacherID:   strings.TrimSpace(input.TeacherID),
		TeacherName: strings.TrimSpace(input.TeacherName),
		Date:        date,
		Start:       input.Start,
		End:         input.End,
		ClassName:   strings.TrimSpace(input.ClassName),
		Capacity:    input.Capacity,
	}
	if class.TeacherID == "" {
		class.TeacherID = principal.UserID
		if class.TeacherName == "" {
			class.TeacherName = principal.DisplayName
		}
	}
	if class.Capacity == 0 {
		class.Capacity = defaultClassCapacity
	}

	if s.fixedSchedule != nil {
		occurrence, err := s.fixedSchedule.FindConflict(ctx, date, class.Interval(), "")
		if err != nil {
			return Class{}, mapRepoError("find fixed schedule conflict", err)
		}
		if occurrence != nil {
			return Class{}, newConflict(ReasonFixedSchedule, "time slot is occupied by the fixed weekly schedule",
				ConflictDetail{FixedSchedule: occurrence})
		}
	}
	return class, nil
}

func (s *ClassService) audit(ctx context.Context, logger *slog.Logger, principal Principal, action string, class Class) {
	s.sinks.audit(ctx, logger, s.now(), AuditEntry{
		ActorID:    principal.UserID,
		Action:     action,
		TargetID:   class.ID,
		TargetType: "class",
		Details: map[string]any{
			"date":       class.Date.String(),
			"class_name": class.ClassName,
		},
	})
}

func sortClasses(classes []Class) {
	sort.SliceStable(classes, func(i, j int) bool {
		if classes[i].Date != classes[j].Date {
			return classes[i].Date.String() < classes[j].Date.String()
		}
		return classes[i].Start.Before(classes[j].Start)
	})
}
