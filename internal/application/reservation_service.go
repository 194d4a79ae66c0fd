package application

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/example/lab-scheduler/internal/scheduler"
	"github.com/example/lab-scheduler/internal/seating"
)

// SeatCatalog exposes the seat lookups the resolver needs.
type SeatCatalog interface {
	ListActiveSeats(ctx context.Context) ([]seating.Seat, error)
	ListSeatBlocks(ctx context.Context, date scheduler.Date) ([]SeatBlock, error)
	FindBlockConflict(ctx context.Context, seatIDs []string, date scheduler.Date, window scheduler.Interval) (*BlockConflict, error)
}

// FixedScheduleLookup exposes the weekly schedule materialized on dates.
type FixedScheduleLookup interface {
	EntriesForDate(ctx context.Context, date scheduler.Date) ([]FixedScheduleOccurrence, error)
	FindConflict(ctx context.Context, date scheduler.Date, window scheduler.Interval, excludeID string) (*FixedScheduleOccurrence, error)
}

// ClassCalendar exposes ad-hoc classes by date.
type ClassCalendar interface {
	ClassesOn(ctx context.Context, date scheduler.Date) ([]Class, error)
}

// ReservationDeps wires the collaborators of ReservationService.
type ReservationDeps struct {
	Reservations  ReservationRepository
	Seats         SeatCatalog
	FixedSchedule FixedScheduleLookup
	Classes       ClassCalendar
	Attendance    *AttendanceService
	Locker        Locker
	Sinks         Sinks
	Policy        Policy
	IDGenerator   func() string
	Now           func() time.Time
	Logger        *slog.Logger
}

// ReservationService decides whether bookings may be created and serves
// reservation reads.
type ReservationService struct {
	reservations  ReservationRepository
	seats         SeatCatalog
	fixedSchedule FixedScheduleLookup
	classes       ClassCalendar
	attendance    *AttendanceService
	locker        Locker
	sinks         Sinks
	policy        Policy
	idGenerator   func() string
	now           func() time.Time
	logger        *slog.Logger
}

// NewReservationService wires dependencies for reservation operations.
func NewReservationService(deps ReservationDeps) *ReservationService {
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "" }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sinks.IDGenerator == nil {
		deps.Sinks.IDGenerator = deps.IDGenerator
	}
	return &ReservationService{
		reservations:  deps.Reservations,
		seats:         deps.Seats,
		fixedSchedule: deps.FixedSchedule,
		classes:       deps.Classes,
		attendance:    deps.Attendance,
		locker:        deps.Locker,
		sinks:         deps.Sinks,
		policy:        deps.Policy.normalized(),
		idGenerator:   deps.IDGenerator,
		now:           deps.Now,
		logger:        defaultLogger(deps.Logger),
	}
}

func (s *ReservationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReservationService", operation, attrs...)
}

// CreateReservation runs the booking pipeline and persists an approved
// reservation, or returns the first rejection as a *ValidationError or
// *ConflictError.
func (s *ReservationService) CreateReservation(ctx context.Context, params CreateReservationParams) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}

	principal := params.Principal
	input := params.Input
	logger := s.loggerWith(ctx, "CreateReservation",
		"principal_id", principal.UserID,
		"date", input.Date,
	)
	defer func() {
		logOutcome(ctx, logger, err, "failed to create reservation", "reservation created", "reservation_id", reservation.ID)
	}()

	if principal.UserID == "" {
		err = ErrUnauthorized
		return
	}
	if !principal.Role.Valid() {
		err = newValidationError(ReasonInvalidRole, fmt.Sprintf("role %q cannot book the lab", principal.Role))
		return
	}

	vErr := validateStruct(input)
	date := parseDateField(vErr, "date", input.Date)
	validateWindow(vErr, date, input.Start, input.End, s.policy.Location)
	if err = vErr.finish(); err != nil {
		return
	}

	seatIDs := normalizeSeatIDs(input.SeatIDs)
	if len(seatIDs) > 0 {
		if err = s.ensureSeatsExist(ctx, seatIDs); err != nil {
			return
		}
	}

	now := s.now()
	window := scheduler.Interval{Start: input.Start, End: input.End}
	if window.Start.Before(now.Add(-s.policy.PastGrace)) {
		err = newValidationError(ReasonPastTime, "cannot book past times")
		return
	}
	if date.IsWeekend() {
		err = newValidationError(ReasonWeekend, "bookings are not allowed on Saturday or Sunday")
		return
	}

	if s.locker != nil {
		unlock, lockErr := s.locker.Lock(ctx, "reservations:"+date.String())
		if lockErr != nil {
			err = &StorageError{Op: "acquire booking lock", Err: lockErr}
			return
		}
		defer unlock()
	}

	candidate := Reservation{
		ID:         s.idGenerator(),
		OwnerID:    principal.UserID,
		OwnerName:  principal.DisplayName,
		OwnerRole:  principal.Role,
		Date:       date,
		Start:      window.Start,
		End:        window.End,
		SeatIDs:    seatIDs,
		Purpose:    strings.TrimSpace(input.Purpose),
		Subject:    strings.TrimSpace(input.Subject),
		GradeLevel: strings.TrimSpace(input.GradeLevel),
		Section:    strings.TrimSpace(input.Section),
		Status:     StatusApproved,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	dayReservations, err := s.reservationsOn(ctx, date, principal.UserID)
	if err != nil {
		return
	}
	if err = s.quotaConflict(candidate, dayReservations); err != nil {
		return
	}

	if s.fixedSchedule != nil {
		occurrence, fErr := s.fixedSchedule.FindConflict(ctx, date, window, "")
		if fErr != nil {
			err = mapRepoError("find fixed schedule conflict", fErr)
			return
		}
		if occurrence != nil {
			err = newConflict(ReasonFixedSchedule, "time slot is occupied by the fixed weekly schedule",
				ConflictDetail{FixedSchedule: occurrence})
			return
		}
	}

	var classes []Class
	if s.classes != nil {
		classes, err = s.classes.ClassesOn(ctx, date)
		if err != nil {
			err = mapRepoError("list classes", err)
			return
		}
	}
	for _, class := range classes {
		if !class.Interval().Overlaps(window) {
			continue
		}
		conflicting := class
		err = newConflict(ReasonClass, "a class is scheduled during this time", ConflictDetail{
			Class:         &conflicting,
			SuggestedSlot: s.suggestSlot(now, window, classes, dayReservations),
		})
		return
	}

	if err = s.occupancyConflict(candidate, dayReservations, classes, now); err != nil {
		return
	}

	if len(seatIDs) > 0 && s.seats != nil {
		blocked, bErr := s.seats.FindBlockConflict(ctx, seatIDs, date, window)
		if bErr != nil {
			err = mapRepoError("find seat block conflict", bErr)
			return
		}
		if blocked != nil {
			block := blocked.Block
			err = newConflict(ReasonSeatBlocked, fmt.Sprintf("seat %s is blocked for this time", blocked.SeatID),
				ConflictDetail{SeatID: blocked.SeatID, SeatBlock: &block})
			return
		}
	}

	candidate.AttendanceDeadlineAt = timePtr(candidate.Start.Add(s.policy.ConfirmationWindow))

	guard := func(existing []Reservation) error {
		if gErr := s.quotaConflict(candidate, existing); gErr != nil {
			return gErr
		}
		return s.occupancyConflict(candidate, existing, classes, now)
	}
	saved, cErr := s.reservations.CreateReservation(ctx, candidate, guard)
	if cErr != nil {
		err = mapRepoError("create reservation", cErr)
		return
	}

	s.sinks.audit(ctx, logger, now, AuditEntry{
		ActorID:    principal.UserID,
		Action:     ActionReservationCreated,
		TargetID:   saved.ID,
		TargetType: "reservation",
		Details: map[string]any{
			"date":  saved.Date.String(),
			"start": saved.Start,
			"end":   saved.End,
			"seats": slices.Clone(saved.SeatIDs),
		},
	})

	reservation = saved
	return
}

// CancelReservation cancels a reservation on behalf of its owner or an admin.
// Cancelling an already cancelled reservation is a no-op.
func (s *ReservationService) CancelReservation(ctx context.Context, principal Principal, reservationID string) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CancelReservation",
		"principal_id", principal.UserID,
		"reservation_id", reservationID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "failed to cancel reservation", "reservation cancelled")
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
	if current.Status == StatusCancelled {
		reservation = current
		return
	}

	now := s.now()
	next := current.clone()
	next.Status = StatusCancelled
	next.UpdatedAt = now
	saved, err := s.reservations.UpdateReservation(ctx, next)
	if err != nil {
		err = mapRepoError("update reservation", err)
		return
	}

	s.sinks.audit(ctx, logger, now, AuditEntry{
		ActorID:    principal.UserID,
		Action:     ActionReservationCancelled,
		TargetID:   saved.ID,
		TargetType: "reservation",
		Details:    map[string]any{"previous_status": string(current.Status)},
	})

	reservation = saved
	return
}

// GetReservation returns one reservation to its owner or an admin.
func (s *ReservationService) GetReservation(ctx context.Context, principal Principal, reservationID string) (Reservation, error) {
	if s == nil || s.reservations == nil {
		return Reservation{}, fmt.Errorf("reservation repository not configured")
	}
	reservation, err := s.reservations.GetReservation(ctx, reservationID)
	if err != nil {
		return Reservation{}, mapRepoError("get reservation", err)
	}
	if !principal.canAccess(reservation.OwnerID) {
		return Reservation{}, ErrUnauthorized
	}
	updated := s.automate(ctx, []Reservation{reservation}, principal.UserID)
	return updated[0], nil
}

// ListMyReservations returns the caller's reservations, newest start first,
// after running attendance automation with reminders for the caller.
func (s *ReservationService) ListMyReservations(ctx context.Context, principal Principal) (reservations []Reservation, err error) {
	if s == nil || s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}
	logger := s.loggerWith(ctx, "ListMyReservations", "principal_id", principal.UserID)
	defer func() {
		logOutcome(ctx, logger, err, "failed to list reservations", "reservations listed", "result_count", len(reservations))
	}()

	if principal.UserID == "" {
		err = ErrUnauthorized
		return
	}
	listed, err := s.reservations.ListReservations(ctx, ReservationFilter{OwnerID: principal.UserID})
	if err != nil {
		err = mapRepoError("list reservations", err)
		return
	}
	reservations = s.automate(ctx, listed, principal.UserID)
	sort.SliceStable(reservations, func(i, j int) bool {
		return reservations[i].Start.After(reservations[j].Start)
	})
	return
}

// ListReservationsByDate returns every reservation on date for admins,
// earliest start first.
func (s *ReservationService) ListReservationsByDate(ctx context.Context, principal Principal, date scheduler.Date) (reservations []Reservation, err error) {
	if s == nil || s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}
	logger := s.loggerWith(ctx, "ListReservationsByDate", "principal_id", principal.UserID, "date", date.String())
	defer func() {
		logOutcome(ctx, logger, err, "failed to list reservations", "reservations listed", "result_count", len(reservations))
	}()

	if !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}
	reservations, err = s.reservationsOn(ctx, date, "")
	return
}

// Availability gathers everything occupying the lab on date.
func (s *ReservationService) Availability(ctx context.Context, date scheduler.Date) (availability DayAvailability, err error) {
	if s == nil || s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}
	logger := s.loggerWith(ctx, "Availability", "date", date.String())
	defer func() {
		logOutcome(ctx, logger, err, "failed to build availability", "availability built")
	}()

	availability.Date = date
	reservations, err := s.reservationsOn(ctx, date, "")
	if err != nil {
		return
	}
	availability.Reservations = make([]Reservation, 0, len(reservations))
	for _, reservation := range reservations {
		if reservation.Status == StatusCancelled || reservation.Status == StatusRejected {
			continue
		}
		availability.Reservations = append(availability.Reservations, reservation)
	}

	if s.classes != nil {
		if availability.Classes, err = s.classes.ClassesOn(ctx, date); err != nil {
			err = mapRepoError("list classes", err)
			return
		}
	}
	if s.seats != nil {
		if availability.Seats, err = s.seats.ListActiveSeats(ctx); err != nil {
			err = mapRepoError("list seats", err)
			return
		}
		if availability.SeatBlocks, err = s.seats.ListSeatBlocks(ctx, date); err != nil {
			err = mapRepoError("list seat blocks", err)
			return
		}
	}
	if s.fixedSchedule != nil {
		if availability.FixedSchedule, err = s.fixedSchedule.EntriesForDate(ctx, date); err != nil {
			err = mapRepoError("list fixed schedule", err)
			return
		}
	}
	return
}

func (s *ReservationService) reservationsOn(ctx context.Context, date scheduler.Date, reminderOwnerID string) ([]Reservation, error) {
	listed, err := s.reservations.ListReservations(ctx, ReservationFilter{Date: date})
	if err != nil {
		return nil, mapRepoError("list reservations", err)
	}
	reservations := s.automate(ctx, listed, reminderOwnerID)
	sort.SliceStable(reservations, func(i, j int) bool {
		return reservations[i].Start.Before(reservations[j].Start)
	})
	return reservations, nil
}

func (s *ReservationService) automate(ctx context.Context, reservations []Reservation, reminderOwnerID string) []Reservation {
	if s.attendance == nil {
		return reservations
	}
	return s.attendance.ApplyAutomation(ctx, reservations, reminderOwnerID)
}

func (s *ReservationService) ensureSeatsExist(ctx context.Context, seatIDs []string) error {
	if s.seats == nil {
		return nil
	}
	catalog, err := s.seats.ListActiveSeats(ctx)
	if err != nil {
		return mapRepoError("list seats", err)
	}
	known := make(map[string]struct{}, len(catalog))
	for _, seat := range catalog {
		known[seat.ID] = struct{}{}
	}
	var invalid []string
	for _, id := range seatIDs {
		if _, ok := known[id]; !ok {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) == 0 {
		return nil
	}
	vErr := newValidationError(ReasonInvalidSeats, "invalid seat selection")
	vErr.InvalidSeatIDs = invalid
	vErr.add("seat_ids", "unknown seat ids: "+strings.Join(invalid, ", "))
	return vErr
}

// quotaConflict enforces the per-owner daily limit on active reservations.
func (s *ReservationService) quotaConflict(candidate Reservation, existing []Reservation) error {
	owned := 0
	for _, reservation := range existing {
		if reservation.ID == candidate.ID || reservation.Date != candidate.Date || !reservation.Status.Active() {
			continue
		}
		if reservation.OwnerID == candidate.OwnerID {
			owned++
		}
	}
	if owned < s.policy.MaxBookingsPerDay {
		return nil
	}
	return newConflict(ReasonDailyLimit,
		fmt.Sprintf("booking limit reached: you can only create up to %d bookings per day", s.policy.MaxBookingsPerDay),
		ConflictDetail{Limit: s.policy.MaxBookingsPerDay})
}

// occupancyConflict checks the candidate against active reservations: a
// whole-lab request collides with any overlapping reservation, a seat request
// with an overlapping reservation sharing a seat, and any request with a lab
// already at capacity.
func (s *ReservationService) occupancyConflict(candidate Reservation, existing []Reservation, classes []Class, now time.Time) error {
	window := candidate.Interval()
	overlapping := 0
	for _, reservation := range existing {
		if reservation.ID == candidate.ID || reservation.Date != candidate.Date || !reservation.Status.Active() {
			continue
		}
		if !reservation.Interval().Overlaps(window) {
			continue
		}
		overlapping++
		conflicting := reservation
		if candidate.WholeLab() {
			return newConflict(ReasonLabBooked, "the lab is already booked for this time", ConflictDetail{
				Reservation:   &conflicting,
				SuggestedSlot: s.suggestSlot(now, window, classes, existing),
			})
		}
		if seatID, shared := reservation.sharedSeat(candidate.SeatIDs); shared {
			return newConflict(ReasonSeatBooked, fmt.Sprintf("seat %s is already booked for this time", seatID),
				ConflictDetail{Reservation: &conflicting, SeatID: seatID})
		}
	}
	if overlapping >= s.policy.LabCapacity {
		return newConflict(ReasonLabFull, "the lab is full at this time", ConflictDetail{
			Limit:         s.policy.LabCapacity,
			SuggestedSlot: s.suggestSlot(now, window, classes, existing),
		})
	}
	return nil
}

func (s *ReservationService) suggestSlot(now time.Time, window scheduler.Interval, classes []Class, reservations []Reservation) *scheduler.Interval {
	occupied := make([]scheduler.Interval, 0, len(classes)+len(reservations))
	for _, class := range classes {
		occupied = append(occupied, class.Interval())
	}
	for _, reservation := range reservations {
		if reservation.Status.Active() {
			occupied = append(occupied, reservation.Interval())
		}
	}
	slot := scheduler.NextAvailableSlot(now, occupied, scheduler.WholeHours(window.Duration()))
	return &slot
}

func normalizeSeatIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = seating.NormalizeID(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
