package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/lab-scheduler/internal/application"
	"github.com/example/lab-scheduler/internal/scheduler"
)

type reservationService interface {
	CreateReservation(ctx context.Context, params application.CreateReservationParams) (application.Reservation, error)
	CancelReservation(ctx context.Context, principal application.Principal, reservationID string) (application.Reservation, error)
	GetReservation(ctx context.Context, principal application.Principal, reservationID string) (application.Reservation, error)
	ListMyReservations(ctx context.Context, principal application.Principal) ([]application.Reservation, error)
	ListReservationsByDate(ctx context.Context, principal application.Principal, date scheduler.Date) ([]application.Reservation, error)
	Availability(ctx context.Context, date scheduler.Date) (application.DayAvailability, error)
}

type attendanceService interface {
	ConfirmAttendance(ctx context.Context, principal application.Principal, reservationID string) (application.Reservation, error)
	MarkAttendance(ctx context.Context, principal application.Principal, reservationID, status string) (application.Reservation, error)
}

// ReservationHandler serves bookings, attendance and availability.
type ReservationHandler struct {
	base
	service    reservationService
	attendance attendanceService
	loc        *time.Location
}

// NewReservationHandler wires the reservation endpoints. loc anchors HH:MM times.
func NewReservationHandler(service reservationService, attendance attendanceService, loc *time.Location, logger *slog.Logger) *ReservationHandler {
	return &ReservationHandler{
		base:       newBase("ReservationHandler", logger),
		service:    service,
		attendance: attendance,
		loc:        loc,
	}
}

func (h *ReservationHandler) ready(w http.ResponseWriter, r *http.Request) bool {
	if h == nil || h.service == nil || h.attendance == nil {
		http.Error(w, errServiceMisconfig.Error(), http.StatusInternalServerError)
		return false
	}
	return true
}

// Create handles POST /reservations.
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	principal, ok := h.principal(w, r, "Create")
	if !ok {
		return
	}

	var req reservationRequest
	if !h.decode(w, r, "Create", &req) {
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID, "date", req.Date)

	input, err := req.toInput(h.loc)
	if err != nil {
		h.fail(r.Context(), w, logger, "reservation rejected", err)
		return
	}

	reservation, err := h.service.CreateReservation(r.Context(), application.CreateReservationParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		h.fail(r.Context(), w, logger, "reservation rejected", err)
		return
	}

	logger.With("reservation_id", reservation.ID).InfoContext(r.Context(), "reservation created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, reservationResponse{Reservation: reservation})
}

// List handles GET /reservations: the caller's own, or with ?date= the
// admin view of a date.
func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	principal, ok := h.principal(w, r, "List")
	if !ok {
		return
	}

	var (
		reservations []application.Reservation
		err          error
		logger       = h.log(r.Context(), "List", "principal_id", principal.UserID)
	)
	if strings.TrimSpace(r.URL.Query().Get("date")) != "" {
		date, dErr := queryDate(r)
		if dErr != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, dErr)
			return
		}
		logger = logger.With("date", date.String())
		reservations, err = h.service.ListReservationsByDate(r.Context(), principal, date)
	} else {
		reservations, err = h.service.ListMyReservations(r.Context(), principal)
	}
	if err != nil {
		h.fail(r.Context(), w, logger, "reservation list failed", err)
		return
	}

	logger.With("result_count", len(reservations)).InfoContext(r.Context(), "reservations listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listReservationsResponse{Reservations: nonNil(reservations)})
}

// Get handles GET /reservations/{id}.
func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.withReservation(w, r, "Get", func(ctx context.Context, principal application.Principal, id string) (application.Reservation, error) {
		return h.service.GetReservation(ctx, principal, id)
	}, http.StatusOK, "reservation fetched")
}

// Cancel handles POST /reservations/{id}/cancel.
func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.withReservation(w, r, "Cancel", func(ctx context.Context, principal application.Principal, id string) (application.Reservation, error) {
		return h.service.CancelReservation(ctx, principal, id)
	}, http.StatusOK, "reservation cancelled")
}

// Confirm handles POST /reservations/{id}/confirm.
func (h *ReservationHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.withReservation(w, r, "Confirm", func(ctx context.Context, principal application.Principal, id string) (application.Reservation, error) {
		return h.attendance.ConfirmAttendance(ctx, principal, id)
	}, http.StatusOK, "attendance confirmed")
}

// MarkAttendance handles POST /reservations/{id}/attendance.
func (h *ReservationHandler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	var req attendanceRequest
	if !h.decode(w, r, "MarkAttendance", &req) {
		return
	}
	h.withReservation(w, r, "MarkAttendance", func(ctx context.Context, principal application.Principal, id string) (application.Reservation, error) {
		return h.attendance.MarkAttendance(ctx, principal, id, req.Status)
	}, http.StatusOK, "attendance marked")
}

func (h *ReservationHandler) withReservation(
	w http.ResponseWriter,
	r *http.Request,
	operation string,
	call func(context.Context, application.Principal, string) (application.Reservation, error),
	status int,
	success string,
) {
	if !h.ready(w, r) {
		return
	}
	principal, ok := h.principal(w, r, operation)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, operation)
	if !ok {
		return
	}

	logger := h.log(r.Context(), operation, "principal_id", principal.UserID, "reservation_id", id)
	reservation, err := call(r.Context(), principal, id)
	if err != nil {
		h.fail(r.Context(), w, logger, strings.ToLower(operation)+" failed", err)
		return
	}

	logger.With("status", string(reservation.Status)).InfoContext(r.Context(), success)
	h.responder.writeJSON(r.Context(), w, status, reservationResponse{Reservation: reservation})
}

// Availability handles GET /availability?date=.
func (h *ReservationHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	if _, ok := h.principal(w, r, "Availability"); !ok {
		return
	}
	date, err := queryDate(r)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "Availability", "date", date.String())
	availability, err := h.service.Availability(r.Context(), date)
	if err != nil {
		h.fail(r.Context(), w, logger, "availability failed", err)
		return
	}

	logger.With("reservation_count", len(availability.Reservations)).InfoContext(r.Context(), "availability computed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, availability)
}

type reservationRequest struct {
	Date       string   `json:"date"`
	Start      string   `json:"start"`
	End        string   `json:"end"`
	SeatIDs    []string `json:"seat_ids"`
	Purpose    string   `json:"purpose"`
	Subject    string   `json:"subject"`
	GradeLevel string   `json:"grade_level"`
	Section    string   `json:"section"`
}

func (r reservationRequest) toInput(loc *time.Location) (application.ReservationInput, error) {
	times := newTimeFields(loc)
	input := application.ReservationInput{
		Date:       strings.TrimSpace(r.Date),
		Start:      times.parse("start", r.Date, r.Start),
		End:        times.parse("end", r.Date, r.End),
		SeatIDs:    append([]string(nil), r.SeatIDs...),
		Purpose:    strings.TrimSpace(r.Purpose),
		Subject:    strings.TrimSpace(r.Subject),
		GradeLevel: strings.TrimSpace(r.GradeLevel),
		Section:    strings.TrimSpace(r.Section),
	}
	return input, times.err()
}

type attendanceRequest struct {
	Status string `json:"status"`
}

type reservationResponse struct {
	Reservation application.Reservation `json:"reservation"`
}

type listReservationsResponse struct {
	Reservations []application.Reservation `json:"reservations"`
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
