package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/lab-scheduler/internal/scheduler"
)

// ReservationRepository captures the persistence interactions for reservations.
type ReservationRepository interface {
	// CreateReservation runs guard against the reservations currently stored
	// for the same date and inserts only when guard returns nil, atomically.
	CreateReservation(ctx context.Context, reservation Reservation, guard ReservationGuard) (Reservation, error)
	GetReservation(ctx context.Context, id string) (Reservation, error)
	// UpdateReservation replaces the record when its stored version equals
	// reservation.Version and returns it with the incremented version.
	UpdateReservation(ctx context.Context, reservation Reservation) (Reservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)
}

// ReservationGuard re-checks a candidate against fresh state inside the
// storage transaction.
type ReservationGuard func(existing []Reservation) error

// ReservationFilter narrows reservation queries. Zero fields match everything.
type ReservationFilter struct {
	Date    scheduler.Date
	OwnerID string
}

// AttendanceService drives the attendance lifecycle of approved reservations.
type AttendanceService struct {
	reservations ReservationRepository
	sinks        Sinks
	policy       Policy
	now          func() time.Time
	logger       *slog.Logger
}

// NewAttendanceService constructs the attendance lifecycle engine.
func NewAttendanceService(reservations ReservationRepository, sinks Sinks, policy Policy, now func() time.Time) *AttendanceService {
	return NewAttendanceServiceWithLogger(reservations, sinks, policy, now, nil)
}

// NewAttendanceServiceWithLogger constructs the engine with a specified logger.
func NewAttendanceServiceWithLogger(reservations ReservationRepository, sinks Sinks, policy Policy, now func() time.Time, logger *slog.Logger) *AttendanceService {
	if now == nil {
		now = time.Now
	}
	return &AttendanceService{
		reservations: reservations,
		sinks:        sinks,
		policy:       policy.normalized(),
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (s *AttendanceService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AttendanceService", operation, attrs...)
}

// ApplyAutomation back-fills deadlines, sends reminders to reminderOwnerID and
// marks overdue approved reservations as missed. It is idempotent and safe to
// call on every read. A failure on one reservation is logged and that
// reservation is returned unchanged; the others are still processed.
func (s *AttendanceService) ApplyAutomation(ctx context.Context, reservations []Reservation, reminderOwnerID string) []Reservation {
	if s == nil || len(reservations) == 0 {
		return reservations
	}
	logger := s.loggerWith(ctx, "ApplyAutomation",
		"reservation_count", len(reservations),
		"reminder_owner_id", reminderOwnerID,
	)

	now := s.now()
	out := make([]Reservation, len(reservations))
	for i, reservation := range reservations {
		updated, err := s.automate(ctx, logger, reservation, now, reminderOwnerID)
		if err != nil {
			logger.WarnContext(ctx, "attendance automation failed",
				"reservation_id", reservation.ID,
				"error", err,
				"error_kind", ErrorKind(err),
			)
			out[i] = reservation
			continue
		}
		out[i] = updated
	}
	return out
}

func (s *AttendanceService) automate(ctx context.Context, logger *slog.Logger, reservation Reservation, now time.Time, reminderOwnerID string) (Reservation, error) {
	if reservation.Status != StatusApproved {
		return reservation, nil
	}

	next := reservation.clone()
	changed := false
	if next.AttendanceDeadlineAt == nil {
		next.AttendanceDeadlineAt = timePtr(s.deadlineFor(next))
		changed = true
	}
	deadline := *next.AttendanceDeadlineAt
	confirmed := next.AttendanceConfirmedAt != nil

	var notifications []Notification
	noShow := false
	switch {
	case !confirmed && now.After(deadline):
		if s.markNoShow(&next, now) {
			notifications = append(notifications, s.noShowNotification(next))
		}
		noShow = true
		changed = true
	case reminderOwnerID != "" && next.OwnerID == reminderOwnerID && !confirmed &&
		next.ReminderSentAt == nil && !now.Before(next.Start) && !now.After(deadline):
		next.ReminderSentAt = timePtr(now)
		notifications = append(notifications, s.reminderNotification(next, deadline))
		changed = true
	}

	if !changed {
		return reservation, nil
	}

	next.UpdatedAt = now
	saved, err := s.reservations.UpdateReservation(ctx, next)
	if err != nil {
		return reservation, mapRepoError("update reservation", err)
	}

	for _, notification := range notifications {
		s.sinks.notify(ctx, logger, now, notification)
	}
	if noShow {
		s.sinks.audit(ctx, logger, now, AuditEntry{
			ActorID:    SystemActor,
			Action:     ActionAttendanceNoShow,
			TargetID:   saved.ID,
			TargetType: "reservation",
			Details:    map[string]any{"deadline": deadline, "date": saved.Date.String()},
		})
	}
	return saved, nil
}

// ConfirmAttendance records the owner's presence inside the confirmation window.
func (s *AttendanceService) ConfirmAttendance(ctx context.Context, principal Principal, reservationID string) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("AttendanceService is nil")
		return
	}
	if s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "ConfirmAttendance",
		"principal_id", principal.UserID,
		"reservation_id", reservationID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "failed to confirm attendance", "attendance confirmed", "status", reservation.Status)
	}()

	current, err := s.reservations.GetReservation(ctx, reservationID)
	if err != nil {
		err = mapRepoError("get reservation", err)
		return
	}
	if !principal.canAccess(current.OwnerID) {
		err = ErrUnauthorized
		return
	}

	switch current.Status {
	case StatusCancelled, StatusRejected, StatusMissed:
		err = newConflict(ReasonStatusNotConfirmable,
			fmt.Sprintf("cannot confirm attendance for status %s", current.Status),
			ConflictDetail{Status: current.Status})
		return
	case StatusAttended:
		reservation = current
		return
	}

	now := s.now()
	deadline := s.deadlineFor(current)
	if now.Before(current.Start) {
		opensAt := current.Start
		err = newConflict(ReasonConfirmationNotOpen,
			fmt.Sprintf("attendance confirmation opens at %s", s.policy.clock(current.Start)),
			ConflictDetail{OpensAt: &opensAt})
		return
	}

	next := current.clone()
	next.AttendanceDeadlineAt = timePtr(deadline)
	next.UpdatedAt = now

	if now.After(deadline) {
		notifyNoShow := s.markNoShow(&next, now)
		saved, uErr := s.reservations.UpdateReservation(ctx, next)
		if uErr != nil {
			err = mapRepoError("update reservation", uErr)
			return
		}
		if notifyNoShow {
			s.sinks.notify(ctx, logger, now, s.noShowNotification(saved))
		}
		s.sinks.audit(ctx, logger, now, AuditEntry{
			ActorID:    SystemActor,
			Action:     ActionAttendanceNoShow,
			TargetID:   saved.ID,
			TargetType: "reservation",
			Details:    map[string]any{"deadline": deadline, "date": saved.Date.String()},
		})
		reservation = saved
		err = newConflict(ReasonConfirmationExpired,
			"confirmation window expired; reservation marked missed",
			ConflictDetail{Reservation: &saved, Status: saved.Status})
		return
	}

	next.Status = StatusAttended
	if next.AttendanceConfirmedAt == nil {
		next.AttendanceConfirmedAt = timePtr(now)
	}
	saved, uErr := s.reservations.UpdateReservation(ctx, next)
	if uErr != nil {
		err = mapRepoError("update reservation", uErr)
		return
	}

	s.sinks.notify(ctx, logger, now, Notification{
		RecipientID:   saved.OwnerID,
		Title:         "Attendance Confirmed",
		Message:       "Your attendance has been confirmed successfully.",
		Severity:      SeverityInfo,
		Type:          NotificationTypeAttendance,
		ReservationID: saved.ID,
		Date:          saved.Date,
	})
	s.sinks.audit(ctx, logger, now, AuditEntry{
		ActorID:    principal.UserID,
		Action:     ActionAttendanceConfirmed,
		TargetID:   saved.ID,
		TargetType: "reservation",
		Details:    map[string]any{"confirmed_at": now},
	})

	reservation = saved
	return
}

// MarkAttendance lets an admin record present or missed regardless of the
// confirmation window. Cancelled and rejected reservations are refused with
// ATTENDANCE_NOT_CONFIRMABLE. Each override clears the stamps of the other
// outcome.
func (s *AttendanceService) MarkAttendance(ctx context.Context, principal Principal, reservationID, status string) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("AttendanceService is nil")
		return
	}
	if s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "MarkAttendance",
		"principal_id", principal.UserID,
		"reservation_id", reservationID,
		"requested_status", status,
	)
	defer func() {
		logOutcome(ctx, logger, err, "failed to mark attendance", "attendance marked", "status", reservation.Status)
	}()

	if !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	var target ReservationStatus
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "present":
		target = StatusAttended
	case "missed", "absent":
		target = StatusMissed
	default:
		vErr := newValidationError(ReasonInvalidAttendanceStatus, "status must be present or missed")
		vErr.add("status", "status must be present or missed")
		err = vErr
		return
	}

	current, err := s.reservations.GetReservation(ctx, reservationID)
	if err != nil {
		err = mapRepoError("get reservation", err)
		return
	}
	if current.Status == StatusCancelled || current.Status == StatusRejected {
		err = newConflict(ReasonStatusNotConfirmable,
			fmt.Sprintf("cannot mark attendance for status %s", current.Status),
			ConflictDetail{Status: current.Status})
		return
	}

	now := s.now()
	next := current.clone()
	if next.AttendanceDeadlineAt == nil {
		next.AttendanceDeadlineAt = timePtr(s.deadlineFor(next))
	}
	next.UpdatedAt = now

	var notification Notification
	if target == StatusAttended {
		next.Status = StatusAttended
		if next.AttendanceConfirmedAt == nil {
			next.AttendanceConfirmedAt = timePtr(now)
		}
		// Override the automated no-show.
		next.AttendanceNoShowAt = nil
		next.NoShowNotifiedAt = nil
		notification = Notification{
			Title:    "Attendance Confirmed",
			Message:  "Your attendance was confirmed by admin.",
			Severity: SeverityInfo,
		}
	} else {
		next.AttendanceConfirmedAt = nil
		s.markNoShow(&next, now)
		notification = Notification{
			Title:    "Attendance Marked Missed",
			Message:  "Your attendance was marked missed by admin.",
			Severity: SeverityWarning,
		}
	}

	saved, uErr := s.reservations.UpdateReservation(ctx, next)
	if uErr != nil {
		err = mapRepoError("update reservation", uErr)
		return
	}

	notification.RecipientID = saved.OwnerID
	notification.Type = NotificationTypeAttendance
	notification.ReservationID = saved.ID
	notification.Date = saved.Date
	s.sinks.notify(ctx, logger, now, notification)
	s.sinks.audit(ctx, logger, now, AuditEntry{
		ActorID:    principal.UserID,
		Action:     ActionAttendanceMarked,
		TargetID:   saved.ID,
		TargetType: "reservation",
		Details:    map[string]any{"status": string(saved.Status), "previous_status": string(current.Status)},
	})

	reservation = saved
	return
}

// SweepDate applies automation to every reservation on date without sending
// reminders. It returns how many reservations changed.
func (s *AttendanceService) SweepDate(ctx context.Context, date scheduler.Date) (changed int, err error) {
	if s == nil {
		err = fmt.Errorf("AttendanceService is nil")
		return
	}
	if s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "SweepDate", "date", date.String())
	defer func() {
		logOutcome(ctx, logger, err, "failed to sweep attendance", "attendance swept", "changed", changed)
	}()

	reservations, err := s.reservations.ListReservations(ctx, ReservationFilter{Date: date})
	if err != nil {
		err = mapRepoError("list reservations", err)
		return
	}

	updated := s.ApplyAutomation(ctx, reservations, "")
	for i := range updated {
		if updated[i].Version != reservations[i].Version {
			changed++
		}
	}
	return
}

func (s *AttendanceService) deadlineFor(reservation Reservation) time.Time {
	if reservation.AttendanceDeadlineAt != nil {
		return *reservation.AttendanceDeadlineAt
	}
	return reservation.Start.Add(s.policy.ConfirmationWindow)
}

// markNoShow transitions to missed and reports whether the owner still needs
// the one-time no-show notification.
func (s *AttendanceService) markNoShow(reservation *Reservation, now time.Time) bool {
	reservation.Status = StatusMissed
	if reservation.AttendanceNoShowAt == nil {
		reservation.AttendanceNoShowAt = timePtr(now)
	}
	if reservation.NoShowNotifiedAt != nil {
		return false
	}
	reservation.NoShowNotifiedAt = timePtr(now)
	return true
}

func (s *AttendanceService) reminderNotification(reservation Reservation, deadline time.Time) Notification {
	return Notification{
		RecipientID: reservation.OwnerID,
		Title:       "Attendance Confirmation Needed",
		Message: fmt.Sprintf("Confirm your attendance between %s and %s.",
			s.policy.clock(reservation.Start), s.policy.clock(deadline)),
		Severity:      SeverityWarning,
		Type:          NotificationTypeAttendance,
		ReservationID: reservation.ID,
		Date:          reservation.Date,
	}
}

func (s *AttendanceService) noShowNotification(reservation Reservation) Notification {
	return Notification{
		RecipientID: reservation.OwnerID,
		Title:       "Marked Missed",
		Message: fmt.Sprintf("No attendance confirmation was received within %d minutes from start time.",
			int(s.policy.ConfirmationWindow/time.Minute)),
		Severity:      SeverityWarning,
		Type:          NotificationTypeAttendance,
		ReservationID: reservation.ID,
		Date:          reservation.Date,
	}
}
