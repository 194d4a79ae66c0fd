package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/lab-scheduler/internal/recurrence"
	"github.com/example/lab-scheduler/internal/scheduler"
)

// FixedScheduleRepository captures persistence of the weekly schedule.
type FixedScheduleRepository interface {
	// ListFixedSchedule returns active entries.
	ListFixedSchedule(ctx context.Context) ([]FixedScheduleEntry, error)
	GetFixedScheduleEntry(ctx context.Context, id string) (FixedScheduleEntry, error)
	UpsertFixedScheduleEntry(ctx context.Context, entry FixedScheduleEntry) (FixedScheduleEntry, error)
	DeactivateFixedScheduleEntry(ctx context.Context, id string) error
}

// FixedScheduleService manages the weekly class schedule and materializes
// it onto dates for conflict checks.
type FixedScheduleService struct {
	entries     FixedScheduleRepository
	engine      *recurrence.Engine
	sinks       Sinks
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewFixedScheduleService constructs a fixed schedule service.
func NewFixedScheduleService(entries FixedScheduleRepository, engine *recurrence.Engine, sinks Sinks, idGenerator func() string, now func() time.Time) *FixedScheduleService {
	return NewFixedScheduleServiceWithLogger(entries, engine, sinks, idGenerator, now, nil)
}

// NewFixedScheduleServiceWithLogger constructs a fixed schedule service with a specified logger.
func NewFixedScheduleServiceWithLogger(entries FixedScheduleRepository, engine *recurrence.Engine, sinks Sinks, idGenerator func() string, now func() time.Time, logger *slog.Logger) *FixedScheduleService {
	if engine == nil {
		engine = recurrence.NewEngine(time.UTC)
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if sinks.IDGenerator == nil {
		sinks.IDGenerator = idGenerator
	}
	return &FixedScheduleService{
		entries:     entries,
		engine:      engine,
		sinks:       sinks,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *FixedScheduleService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "FixedScheduleService", operation, attrs...)
}

// ListFixedSchedule returns active entries ordered by day, start and end.
func (s *FixedScheduleService) ListFixedSchedule(ctx context.Context) ([]FixedScheduleEntry, error) {
	if s == nil || s.entries == nil {
		return nil, fmt.Errorf("fixed schedule repository not configured")
	}
	entries, err := s.entries.ListFixedSchedule(ctx)
	if err != nil {
		return nil, mapRepoError("list fixed schedule", err)
	}
	active := make([]FixedScheduleEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Active {
			active = append(active, entry)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		a, b := active[i], active[j]
		if a.DayOfWeek != b.DayOfWeek {
			return a.DayOfWeek < b.DayOfWeek
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.EndTime < b.EndTime
	})
	return active, nil
}

// ListMyFixedSchedule returns entries taught by the principal, matched by id
// or by display name.
func (s *FixedScheduleService) ListMyFixedSchedule(ctx context.Context, principal Principal) ([]FixedScheduleEntry, error) {
	if principal.UserID == "" {
		return nil, ErrUnauthorized
	}
	entries, err := s.ListFixedSchedule(ctx)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(principal.DisplayName)
	mine := make([]FixedScheduleEntry, 0)
	for _, entry := range entries {
		if entry.TeacherID == principal.UserID ||
			(name != "" && strings.EqualFold(strings.TrimSpace(entry.TeacherName), name)) {
			mine = append(mine, entry)
		}
	}
	return mine, nil
}

// UpsertFixedScheduleEntry creates or replaces a weekly entry. Entries on the
// same weekday may not overlap.
func (s *FixedScheduleService) UpsertFixedScheduleEntry(ctx context.Context, principal Principal, input FixedScheduleInput) (entry FixedScheduleEntry, err error) {
	if s == nil {
		err = fmt.Errorf("FixedScheduleService is nil")
		return
	}
	if s.entries == nil {
		err = fmt.Errorf("fixed schedule repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpsertFixedScheduleEntry",
		"principal_id", principal.UserID,
		"entry_id", input.ID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "failed to upsert fixed schedule entry", "fixed schedule entry upserted", "entry_id", entry.ID)
	}()

	if !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	vErr := validateStruct(input)
	day, dayErr := recurrence.ParseWeekday(input.DayOfWeek)
	if dayErr != nil && input.DayOfWeek != "" {
		vErr.add("day_of_week", "day_of_week must be 0-6 or a weekday name")
	}
	var slot recurrence.Slot
	if dayErr == nil && input.StartTime != "" && input.EndTime != "" {
		var slotErr error
		slot, slotErr = recurrence.NewSlot(day, input.StartTime, input.EndTime)
		switch {
		case errors.Is(slotErr, recurrence.ErrInvalidRange):
			vErr.add("end_time", "end_time must be after start_time")
		case slotErr != nil:
			vErr.add("start_time", "times must use HH:mm format")
		}
	}
	if err = vErr.finish(); err != nil {
		return
	}

	now := s.now()
	candidate := FixedScheduleEntry{
		ID:           strings.TrimSpace(input.ID),
		DayOfWeek:    slot.Weekday,
		StartTime:    slot.Start.String(),
		EndTime:      slot.End.String(),
		GradeLevelID: strings.TrimSpace(input.GradeLevelID),
		GradeLevel:   strings.TrimSpace(input.GradeLevel),
		SectionID:    strings.TrimSpace(input.SectionID),
		Section:      strings.TrimSpace(input.Section),
		TeacherID:    strings.TrimSpace(input.TeacherID),
		TeacherName:  strings.TrimSpace(input.TeacherName),
		Label:        strings.TrimSpace(input.Label),
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if candidate.Label == "" {
		candidate.Label = defaultFixedLabel(candidate)
	}
	if candidate.ID != "" {
		existing, getErr := s.entries.GetFixedScheduleEntry(ctx, candidate.ID)
		if getErr != nil {
			err = mapRepoError("get fixed schedule entry", getErr)
			return
		}
		candidate.CreatedAt = existing.CreatedAt
	} else {
		candidate.ID = s.idGenerator()
	}

	entries, err := s.ListFixedSchedule(ctx)
	if err != nil {
		return
	}
	for _, other := range entries {
		if other.ID == candidate.ID {
			continue
		}
		otherSlot, slotErr := other.slot()
		if slotErr != nil || !otherSlot.Overlaps(slot) {
			continue
		}
		conflicting := other
		err = newConflict(ReasonFixedScheduleOverlap, "fixed schedule overlaps an existing entry",
			ConflictDetail{FixedEntry: &conflicting})
		return
	}

	entry, err = s.entries.UpsertFixedScheduleEntry(ctx, candidate)
	if err != nil {
		err = mapRepoError("upsert fixed schedule entry", err)
		return
	}

	s.sinks.audit(ctx, logger, now, AuditEntry{
		ActorID:    principal.UserID,
		Action:     ActionFixedScheduleUpsert,
		TargetID:   entry.ID,
		TargetType: "fixed_schedule",
		Details: map[string]any{
			"day_of_week": int(entry.DayOfWeek),
			"start_time":  entry.StartTime,
			"end_time":    entry.EndTime,
		},
	})
	return
}

// DeleteFixedScheduleEntry deactivates an entry.
func (s *FixedScheduleService) DeleteFixedScheduleEntry(ctx context.Context, principal Principal, entryID string) (err error) {
	if s == nil || s.entries == nil {
		return fmt.Errorf("fixed schedule repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteFixedScheduleEntry", "principal_id", principal.UserID, "entry_id", entryID)
	defer func() {
		logOutcome(ctx, logger, err, "failed to delete fixed schedule entry", "fixed schedule entry deleted")
	}()

	if !principal.IsAdmin() {
		return ErrUnauthorized
	}
	if _, err = s.entries.GetFixedScheduleEntry(ctx, entryID); err != nil {
		return mapRepoError("get fixed schedule entry", err)
	}
	if err = s.entries.DeactivateFixedScheduleEntry(ctx, entryID); err != nil {
		return mapRepoError("deactivate fixed schedule entry", err)
	}

	s.sinks.audit(ctx, logger, s.now(), AuditEntry{
		ActorID:    principal.UserID,
		Action:     ActionFixedScheduleDeleted,
		TargetID:   entryID,
		TargetType: "fixed_schedule",
	})
	return nil
}

// EntriesForDate materializes the active entries recurring on date, ordered
// by start.
func (s *FixedScheduleService) EntriesForDate(ctx context.Context, date scheduler.Date) ([]FixedScheduleOccurrence, error) {
	entries, err := s.ListFixedSchedule(ctx)
	if err != nil {
		return nil, err
	}
	occurrences := make([]FixedScheduleOccurrence, 0)
	for _, entry := range entries {
		slot, slotErr := entry.slot()
		if slotErr != nil {
			s.logger.WarnContext(ctx, "skipping malformed fixed schedule entry", "entry_id", entry.ID, "error", slotErr)
			continue
		}
		window, ok := s.engine.Occurrence(slot, date)
		if !ok {
			continue
		}
		occurrences = append(occurrences, FixedScheduleOccurrence{Entry: entry, Start: window.Start, End: window.End})
	}
	sort.SliceStable(occurrences, func(i, j int) bool {
		return occurrences[i].Start.Before(occurrences[j].Start)
	})
	return occurrences, nil
}

// FindConflict returns the first occurrence on date overlapping window,
// ignoring the entry excludeID, or nil.
func (s *FixedScheduleService) FindConflict(ctx context.Context, date scheduler.Date, window scheduler.Interval, excludeID string) (*FixedScheduleOccurrence, error) {
	occurrences, err := s.EntriesForDate(ctx, date)
	if err != nil {
		return nil, err
	}
	for _, occurrence := range occurrences {
		if excludeID != "" && occurrence.Entry.ID == excludeID {
			continue
		}
		if scheduler.Overlaps(occurrence.Start, occurrence.End, window.Start, window.End) {
			found := occurrence
			return &found, nil
		}
	}
	return nil, nil
}

func defaultFixedLabel(entry FixedScheduleEntry) string {
	pick := func(name, id string) string {
		if name != "" {
			return name
		}
		return id
	}
	return strings.Join([]string{
		pick(entry.GradeLevel, entry.GradeLevelID),
		pick(entry.Section, entry.SectionID),
		pick(entry.TeacherName, entry.TeacherID),
	}, " - ")
}
