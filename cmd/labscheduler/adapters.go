package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/lab-scheduler/internal/application"
	"github.com/example/lab-scheduler/internal/persistence"
	"github.com/example/lab-scheduler/internal/scheduler"
	"github.com/example/lab-scheduler/internal/seating"
)

type reservationRepositoryAdapter struct {
	repo persistence.ReservationRepository
}

func newReservationRepositoryAdapter(repo persistence.ReservationRepository) *reservationRepositoryAdapter {
	return &reservationRepositoryAdapter{repo: repo}
}

func (a *reservationRepositoryAdapter) CreateReservation(ctx context.Context, reservation application.Reservation, guard application.ReservationGuard) (application.Reservation, error) {
	var storeGuard persistence.ReservationGuard
	if guard != nil {
		storeGuard = func(existing []persistence.Reservation) error {
			converted, err := toApplicationReservations(existing)
			if err != nil {
				return err
			}
			return guard(converted)
		}
	}
	stored, err := a.repo.CreateReservation(ctx, toPersistenceReservation(reservation), storeGuard)
	if err != nil {
		return application.Reservation{}, err
	}
	return toApplicationReservation(stored)
}

func (a *reservationRepositoryAdapter) GetReservation(ctx context.Context, id string) (application.Reservation, error) {
	stored, err := a.repo.GetReservation(ctx, id)
	if err != nil {
		return application.Reservation{}, err
	}
	return toApplicationReservation(stored)
}

func (a *reservationRepositoryAdapter) UpdateReservation(ctx context.Context, reservation application.Reservation) (application.Reservation, error) {
	stored, err := a.repo.UpdateReservation(ctx, toPersistenceReservation(reservation))
	if err != nil {
		return application.Reservation{}, err
	}
	return toApplicationReservation(stored)
}

func (a *reservationRepositoryAdapter) ListReservations(ctx context.Context, filter application.ReservationFilter) ([]application.Reservation, error) {
	stored, err := a.repo.ListReservations(ctx, persistence.ReservationFilter{
		Date:    filter.Date.String(),
		OwnerID: filter.OwnerID,
	})
	if err != nil {
		return nil, err
	}
	return toApplicationReservations(stored)
}

type seatRepositoryAdapter struct {
	repo persistence.SeatRepository
}

func newSeatRepositoryAdapter(repo persistence.SeatRepository) *seatRepositoryAdapter {
	return &seatRepositoryAdapter{repo: repo}
}

func (a *seatRepositoryAdapter) ListSeats(ctx context.Context, includeInactive bool) ([]seating.Seat, error) {
	stored, err := a.repo.ListSeats(ctx, includeInactive)
	if err != nil {
		return nil, err
	}
	seats := make([]seating.Seat, 0, len(stored))
	for _, seat := range stored {
		seats = append(seats, toApplicationSeat(seat))
	}
	return seats, nil
}

func (a *seatRepositoryAdapter) UpsertSeat(ctx context.Context, seat seating.Seat) (seating.Seat, error) {
	stored, err := a.repo.UpsertSeat(ctx, toPersistenceSeat(seat))
	if err != nil {
		return seating.Seat{}, err
	}
	return toApplicationSeat(stored), nil
}

func (a *seatRepositoryAdapter) DeactivateSeat(ctx context.Context, id string) error {
	return a.repo.DeactivateSeat(ctx, id)
}

func (a *seatRepositoryAdapter) MoveSeats(ctx context.Context, moves []seating.Move) error {
	converted := make([]persistence.SeatMove, 0, len(moves))
	for _, move := range moves {
		converted = append(converted, persistence.SeatMove{From: move.From, To: move.To, NewRow: move.NewRow})
	}
	return a.repo.MoveSeats(ctx, converted)
}

func (a *seatRepositoryAdapter) SeedSeats(ctx context.Context, seats []seating.Seat) (bool, error) {
	converted := make([]persistence.Seat, 0, len(seats))
	for _, seat := range seats {
		converted = append(converted, toPersistenceSeat(seat))
	}
	return a.repo.SeedSeats(ctx, converted)
}

type seatBlockRepositoryAdapter struct {
	repo persistence.SeatBlockRepository
}

func newSeatBlockRepositoryAdapter(repo persistence.SeatBlockRepository) *seatBlockRepositoryAdapter {
	return &seatBlockRepositoryAdapter{repo: repo}
}

func (a *seatBlockRepositoryAdapter) CreateSeatBlock(ctx context.Context, block application.SeatBlock) (application.SeatBlock, error) {
	stored, err := a.repo.CreateSeatBlock(ctx, toPersistenceSeatBlock(block))
	if err != nil {
		return application.SeatBlock{}, err
	}
	return toApplicationSeatBlock(stored)
}

func (a *seatBlockRepositoryAdapter) GetSeatBlock(ctx context.Context, id string) (application.SeatBlock, error) {
	stored, err := a.repo.GetSeatBlock(ctx, id)
	if err != nil {
		return application.SeatBlock{}, err
	}
	return toApplicationSeatBlock(stored)
}

func (a *seatBlockRepositoryAdapter) DeactivateSeatBlock(ctx context.Context, id string) error {
	return a.repo.DeactivateSeatBlock(ctx, id)
}

func (a *seatBlockRepositoryAdapter) ListSeatBlocks(ctx context.Context, date scheduler.Date, seatID string) ([]application.SeatBlock, error) {
	stored, err := a.repo.ListSeatBlocks(ctx, date.String(), seatID)
	if err != nil {
		return nil, err
	}
	blocks := make([]application.SeatBlock, 0, len(stored))
	for _, model := range stored {
		block, err := toApplicationSeatBlock(model)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

type fixedScheduleRepositoryAdapter struct {
	repo persistence.FixedScheduleRepository
}

func newFixedScheduleRepositoryAdapter(repo persistence.FixedScheduleRepository) *fixedScheduleRepositoryAdapter {
	return &fixedScheduleRepositoryAdapter{repo: repo}
}

func (a *fixedScheduleRepositoryAdapter) ListFixedSchedule(ctx context.Context) ([]application.FixedScheduleEntry, error) {
	stored, err := a.repo.ListFixedSchedule(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]application.FixedScheduleEntry, 0, len(stored))
	for _, model := range stored {
		entries = append(entries, toApplicationFixedEntry(model))
	}
	return entries, nil
}

func (a *fixedScheduleRepositoryAdapter) GetFixedScheduleEntry(ctx context.Context, id string) (application.FixedScheduleEntry, error) {
	stored, err := a.repo.GetFixedScheduleEntry(ctx, id)
	if err != nil {
		return application.FixedScheduleEntry{}, err
	}
	return toApplicationFixedEntry(stored), nil
}

func (a *fixedScheduleRepositoryAdapter) UpsertFixedScheduleEntry(ctx context.Context, entry application.FixedScheduleEntry) (application.FixedScheduleEntry, error) {
	stored, err := a.repo.UpsertFixedScheduleEntry(ctx, toPersistenceFixedEntry(entry))
	if err != nil {
		return application.FixedScheduleEntry{}, err
	}
	return toApplicationFixedEntry(stored), nil
}

func (a *fixedScheduleRepositoryAdapter) DeactivateFixedScheduleEntry(ctx context.Context, id string) error {
	return a.repo.DeactivateFixedScheduleEntry(ctx, id)
}

type classRepositoryAdapter struct {
	repo persistence.ClassRepository
}

func newClassRepositoryAdapter(repo persistence.ClassRepository) *classRepositoryAdapter {
	return &classRepositoryAdapter{repo: repo}
}

func (a *classRepositoryAdapter) CreateClass(ctx context.Context, class application.Class) (application.Class, error) {
	stored, err := a.repo.CreateClass(ctx, toPersistenceClass(class))
	if err != nil {
		return application.Class{}, err
	}
	return toApplicationClass(stored)
}

func (a *classRepositoryAdapter) GetClass(ctx context.Context, id string) (application.Class, error) {
	stored, err := a.repo.GetClass(ctx, id)
	if err != nil {
		return application.Class{}, err
	}
	return toApplicationClass(stored)
}

func (a *classRepositoryAdapter) UpdateClass(ctx context.Context, class application.Class) (application.Class, error) {
	stored, err := a.repo.UpdateClass(ctx, toPersistenceClass(class))
	if err != nil {
		return application.Class{}, err
	}
	return toApplicationClass(stored)
}

func (a *classRepositoryAdapter) DeleteClass(ctx context.Context, id string) error {
	return a.repo.DeleteClass(ctx, id)
}

func (a *classRepositoryAdapter) ListClasses(ctx context.Context, filter application.ClassFilter) ([]application.Class, error) {
	stored, err := a.repo.ListClasses(ctx, persistence.ClassFilter{Date: filter.Date.String(), TeacherID: filter.TeacherID})
	if err != nil {
		return nil, err
	}
	classes := make([]application.Class, 0, len(stored))
	for _, model := range stored {
		class, err := toApplicationClass(model)
		if err != nil {
			return nil, err
		}
		classes = append(classes, class)
	}
	return classes, nil
}

type notificationRepositoryAdapter struct {
	repo persistence.NotificationRepository
}

func newNotificationRepositoryAdapter(repo persistence.NotificationRepository) *notificationRepositoryAdapter {
	return &notificationRepositoryAdapter{repo: repo}
}

func (a *notificationRepositoryAdapter) CreateNotification(ctx context.Context, notification application.Notification) (application.Notification, error) {
	stored, err := a.repo.CreateNotification(ctx, toPersistenceNotification(notification))
	if err != nil {
		return application.Notification{}, err
	}
	return toApplicationNotification(stored), nil
}

func (a *notificationRepositoryAdapter) GetNotification(ctx context.Context, id string) (application.Notification, error) {
	stored, err := a.repo.GetNotification(ctx, id)
	if err != nil {
		return application.Notification{}, err
	}
	return toApplicationNotification(stored), nil
}

func (a *notificationRepositoryAdapter) ListNotifications(ctx context.Context, recipientID string, limit int) ([]application.Notification, error) {
	stored, err := a.repo.ListNotifications(ctx, recipientID, limit)
	if err != nil {
		return nil, err
	}
	notifications := make([]application.Notification, 0, len(stored))
	for _, model := range stored {
		notifications = append(notifications, toApplicationNotification(model))
	}
	return notifications, nil
}

func (a *notificationRepositoryAdapter) MarkNotificationRead(ctx context.Context, id string) error {
	return a.repo.MarkNotificationRead(ctx, id)
}

// auditLogAdapter stores audit entries as application.Auditor.
type auditLogAdapter struct {
	repo persistence.AuditRepository
}

func newAuditLogAdapter(repo persistence.AuditRepository) *auditLogAdapter {
	return &auditLogAdapter{repo: repo}
}

func (a *auditLogAdapter) Record(ctx context.Context, entry application.AuditEntry) error {
	var details []byte
	if len(entry.Details) > 0 {
		encoded, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		details = encoded
	}
	return a.repo.AppendAudit(ctx, persistence.AuditEntry{
		ID:         entry.ID,
		ActorID:    entry.ActorID,
		Action:     entry.Action,
		TargetID:   entry.TargetID,
		TargetType: entry.TargetType,
		Details:    details,
		CreatedAt:  entry.CreatedAt,
	})
}

func toApplicationReservations(models []persistence.Reservation) ([]application.Reservation, error) {
	reservations := make([]application.Reservation, 0, len(models))
	for _, model := range models {
		reservation, err := toApplicationReservation(model)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, reservation)
	}
	return reservations, nil
}

func toApplicationReservation(model persistence.Reservation) (application.Reservation, error) {
	date, err := parseDateKey(model.Date, "reservation", model.ID)
	if err != nil {
		return application.Reservation{}, err
	}
	return application.Reservation{
		ID:                    model.ID,
		OwnerID:               model.OwnerID,
		OwnerName:             model.OwnerName,
		OwnerRole:             application.Role(model.OwnerRole),
		Date:                  date,
		Start:                 model.Start,
		End:                   model.End,
		SeatIDs:               append([]string(nil), model.SeatIDs...),
		Purpose:               model.Purpose,
		Subject:               model.Subject,
		GradeLevel:            model.GradeLevel,
		Section:               model.Section,
		Status:                application.ReservationStatus(model.Status),
		AttendanceDeadlineAt:  cloneTime(model.AttendanceDeadlineAt),
		AttendanceConfirmedAt: cloneTime(model.AttendanceConfirmedAt),
		AttendanceNoShowAt:    cloneTime(model.AttendanceNoShowAt),
		ReminderSentAt:        cloneTime(model.ReminderSentAt),
		NoShowNotifiedAt:      cloneTime(model.NoShowNotifiedAt),
		CreatedAt:             model.CreatedAt,
		UpdatedAt:             model.UpdatedAt,
		Version:               model.Version,
	}, nil
}

func toPersistenceReservation(reservation application.Reservation) persistence.Reservation {
	return persistence.Reservation{
		ID:                    reservation.ID,
		OwnerID:               reservation.OwnerID,
		OwnerName:             reservation.OwnerName,
		OwnerRole:             string(reservation.OwnerRole),
		Date:                  reservation.Date.String(),
		Start:                 reservation.Start,
		End:                   reservation.End,
		SeatIDs:               append([]string(nil), reservation.SeatIDs...),
		Purpose:               reservation.Purpose,
		Subject:               reservation.Subject,
		GradeLevel:            reservation.GradeLevel,
		Section:               reservation.Section,
		Status:                string(reservation.Status),
		AttendanceDeadlineAt:  cloneTime(reservation.AttendanceDeadlineAt),
		AttendanceConfirmedAt: cloneTime(reservation.AttendanceConfirmedAt),
		AttendanceNoShowAt:    cloneTime(reservation.AttendanceNoShowAt),
		ReminderSentAt:        cloneTime(reservation.ReminderSentAt),
		NoShowNotifiedAt:      cloneTime(reservation.NoShowNotifiedAt),
		CreatedAt:             reservation.CreatedAt,
		UpdatedAt:             reservation.UpdatedAt,
		Version:               reservation.Version,
	}
}

func toApplicationSeat(model persistence.Seat) seating.Seat {
	return seating.Seat{
		ID:     model.ID,
		Row:    model.Row,
		Column: model.Column,
		Side:   seating.Side(model.Side),
		Active: model.Active,
	}
}

func toPersistenceSeat(seat seating.Seat) persistence.Seat {
	return persistence.Seat{
		ID:     seat.ID,
		Row:    seat.Row,
		Column: seat.Column,
		Side:   string(seat.Side),
		Active: seat.Active,
	}
}

func toApplicationSeatBlock(model persistence.SeatBlock) (application.SeatBlock, error) {
	date, err := parseDateKey(model.Date, "seat block", model.ID)
	if err != nil {
		return application.SeatBlock{}, err
	}
	return application.SeatBlock{
		ID:        model.ID,
		SeatID:    model.SeatID,
		Date:      date,
		Start:     model.Start,
		End:       model.End,
		Reason:    model.Reason,
		Active:    model.Active,
		CreatedBy: model.CreatedBy,
		CreatedAt: model.CreatedAt,
	}, nil
}

func toPersistenceSeatBlock(block application.SeatBlock) persistence.SeatBlock {
	return persistence.SeatBlock{
		ID:        block.ID,
		SeatID:    block.SeatID,
		Date:      block.Date.String(),
		Start:     block.Start,
		End:       block.End,
		Reason:    block.Reason,
		Active:    block.Active,
		CreatedBy: block.CreatedBy,
		CreatedAt: block.CreatedAt,
	}
}

func toApplicationFixedEntry(model persistence.FixedScheduleEntry) application.FixedScheduleEntry {
	return application.FixedScheduleEntry{
		ID:           model.ID,
		DayOfWeek:    time.Weekday(model.DayOfWeek),
		StartTime:    model.StartTime,
		EndTime:      model.EndTime,
		GradeLevelID: model.GradeLevelID,
		GradeLevel:   model.GradeLevel,
		SectionID:    model.SectionID,
		Section:      model.Section,
		TeacherID:    model.TeacherID,
		TeacherName:  model.TeacherName,
		Label:        model.Label,
		Active:       model.Active,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

func toPersistenceFixedEntry(entry application.FixedScheduleEntry) persistence.FixedScheduleEntry {
	return persistence.FixedScheduleEntry{
		ID:           entry.ID,
		DayOfWeek:    int(entry.DayOfWeek),
		StartTime:    entry.StartTime,
		EndTime:      entry.EndTime,
		GradeLevelID: entry.GradeLevelID,
		GradeLevel:   entry.GradeLevel,
		SectionID:    entry.SectionID,
		Section:      entry.Section,
		TeacherID:    entry.TeacherID,
		TeacherName:  entry.TeacherName,
		Label:        entry.Label,
		Active:       entry.Active,
		CreatedAt:    entry.CreatedAt,
		UpdatedAt:    entry.UpdatedAt,
	}
}

func toApplicationClass(model persistence.Class) (application.Class, error) {
	date, err := parseDateKey(model.Date, "class", model.ID)
	if err != nil {
		return application.Class{}, err
	}
	return application.Class{
		ID:          model.ID,
		TeacherID:   model.TeacherID,
		TeacherName: model.TeacherName,
		Date:        date,
		Start:       model.Start,
		End:         model.End,
		ClassName:   model.ClassName,
		Capacity:    model.Capacity,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}, nil
}

func toPersistenceClass(class application.Class) persistence.Class {
	return persistence.Class{
		ID:          class.ID,
		TeacherID:   class.TeacherID,
		TeacherName: class.TeacherName,
		Date:        class.Date.String(),
		Start:       class.Start,
		End:         class.End,
		ClassName:   class.ClassName,
		Capacity:    class.Capacity,
		CreatedAt:   class.CreatedAt,
		UpdatedAt:   class.UpdatedAt,
	}
}

// Notification dates are informational; an unreadable key is dropped rather
// than hiding the message.
func toApplicationNotification(model persistence.Notification) application.Notification {
	date, _ := scheduler.ParseDate(model.Date)
	return application.Notification{
		ID:            model.ID,
		RecipientID:   model.RecipientID,
		Title:         model.Title,
		Message:       model.Message,
		Severity:      application.Severity(model.Severity),
		Type:          model.Type,
		ReservationID: model.ReservationID,
		Date:          date,
		Read:          model.Read,
		CreatedAt:     model.CreatedAt,
	}
}

func toPersistenceNotification(notification application.Notification) persistence.Notification {
	return persistence.Notification{
		ID:            notification.ID,
		RecipientID:   notification.RecipientID,
		Title:         notification.Title,
		Message:       notification.Message,
		Severity:      string(notification.Severity),
		Type:          notification.Type,
		ReservationID: notification.ReservationID,
		Date:          notification.Date.String(),
		Read:          notification.Read,
		CreatedAt:     notification.CreatedAt,
	}
}

func parseDateKey(value, kind, id string) (scheduler.Date, error) {
	date, err := scheduler.ParseDate(value)
	if err != nil {
		return scheduler.Date{}, fmt.Errorf("%s %s has malformed date %q: %w", kind, id, value, err)
	}
	return date, nil
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
