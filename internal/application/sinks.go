package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/lab-scheduler/internal/scheduler"
)

// Notifier accepts notifications. Delivery is fire-and-forget for services.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// Auditor accepts audit records for state-changing operations.
type Auditor interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// Locker serialises check-then-create sections across processes.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Audit actions.
const (
	ActionReservationCreated   = "RESERVATION_CREATED"
	ActionReservationCancelled = "RESERVATION_CANCELLED"
	ActionAttendanceConfirmed  = "ATTENDANCE_CONFIRMED"
	ActionAttendanceMarked     = "ATTENDANCE_MARKED"
	ActionAttendanceNoShow     = "ATTENDANCE_NO_SHOW"
	ActionSeatUpserted         = "SEAT_UPSERTED"
	ActionSeatDeleted          = "SEAT_DELETED"
	ActionSeatBlockCreated     = "SEAT_BLOCK_CREATED"
	ActionSeatBlockDeleted     = "SEAT_BLOCK_DELETED"
	ActionFixedScheduleUpsert  = "FIXED_SCHEDULE_UPSERTED"
	ActionFixedScheduleDeleted = "FIXED_SCHEDULE_DELETED"
	ActionClassCreated         = "CLASS_CREATED"
	ActionClassUpdated         = "CLASS_UPDATED"
	ActionClassDeleted         = "CLASS_DELETED"
)

// SystemActor is the audit actor for automated transitions.
const SystemActor = "system"

// Sinks bundles the best-effort side effect collaborators shared by services.
type Sinks struct {
	Notifier    Notifier
	Auditor     Auditor
	IDGenerator func() string
}

func (s Sinks) nextID() string {
	if s.IDGenerator == nil {
		return ""
	}
	return s.IDGenerator()
}

// notify delivers a notification; failures are logged and suppressed.
func (s Sinks) notify(ctx context.Context, logger *slog.Logger, now time.Time, notification Notification) {
	if s.Notifier == nil {
		return
	}
	if notification.ID == "" {
		notification.ID = s.nextID()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = now
	}
	if err := s.Notifier.Notify(ctx, notification); err != nil {
		logger.WarnContext(ctx, "failed to deliver notification",
			"error", err,
			"recipient_id", notification.RecipientID,
			"reservation_id", notification.ReservationID,
		)
	}
}

// audit records an entry; failures are logged and suppressed.
func (s Sinks) audit(ctx context.Context, logger *slog.Logger, now time.Time, entry AuditEntry) {
	if s.Auditor == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = s.nextID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if err := s.Auditor.Record(ctx, entry); err != nil {
		logger.WarnContext(ctx, "failed to record audit entry",
			"error", err,
			"action", entry.Action,
			"target_id", entry.TargetID,
		)
	}
}

// Policy holds the lab's booking and attendance rules.
type Policy struct {
	MaxBookingsPerDay  int
	LabCapacity        int
	ConfirmationWindow time.Duration
	PastGrace          time.Duration
	Location           *time.Location
}

// DefaultPolicy returns the lab's standard rules anchored in UTC.
func DefaultPolicy() Policy {
	return Policy{
		MaxBookingsPerDay:  2,
		LabCapacity:        20,
		ConfirmationWindow: 15 * time.Minute,
		PastGrace:          5 * time.Minute,
		Location:           time.UTC,
	}
}

func (p Policy) normalized() Policy {
	defaults := DefaultPolicy()
	if p.MaxBookingsPerDay <= 0 {
		p.MaxBookingsPerDay = defaults.MaxBookingsPerDay
	}
	if p.LabCapacity <= 0 {
		p.LabCapacity = defaults.LabCapacity
	}
	if p.ConfirmationWindow <= 0 {
		p.ConfirmationWindow = defaults.ConfirmationWindow
	}
	if p.PastGrace <= 0 {
		p.PastGrace = defaults.PastGrace
	}
	if p.Location == nil {
		p.Location = defaults.Location
	}
	return p
}

func (p Policy) clock(t time.Time) string {
	return t.In(p.Location).Format("15:04")
}

func (p Policy) today(now time.Time) scheduler.Date {
	return scheduler.DateOf(now, p.Location)
}
