package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/lab-scheduler/internal/application"
	"github.com/example/lab-scheduler/internal/scheduler"
	"github.com/example/lab-scheduler/internal/seating"
)

type reservationServiceStub struct {
	created   application.CreateReservationParams
	createErr error
	byDate    scheduler.Date
	mineCalls int
	getErr    error
}

func (s *reservationServiceStub) CreateReservation(_ context.Context, params application.CreateReservationParams) (application.Reservation, error) {
	s.created = params
	if s.createErr != nil {
		return application.Reservation{}, s.createErr
	}
	return application.Reservation{ID: "r-1", OwnerID: params.Principal.UserID, Start: params.Input.Start, End: params.Input.End, Status: application.StatusApproved}, nil
}

func (s *reservationServiceStub) CancelReservation(_ context.Context, _ application.Principal, id string) (application.Reservation, error) {
	return application.Reservation{ID: id, Status: application.StatusCancelled}, nil
}

func (s *reservationServiceStub) GetReservation(_ context.Context, _ application.Principal, id string) (application.Reservation, error) {
	if s.getErr != nil {
		return application.Reservation{}, s.getErr
	}
	return application.Reservation{ID: id}, nil
}

func (s *reservationServiceStub) ListMyReservations(context.Context, application.Principal) ([]application.Reservation, error) {
	s.mineCalls++
	return nil, nil
}

func (s *reservationServiceStub) ListReservationsByDate(_ context.Context, _ application.Principal, date scheduler.Date) ([]application.Reservation, error) {
	s.byDate = date
	return []application.Reservation{{ID: "r-1"}}, nil
}

func (s *reservationServiceStub) Availability(_ context.Context, date scheduler.Date) (application.DayAvailability, error) {
	return application.DayAvailability{Date: date}, nil
}

type attendanceServiceStub struct {
	markedStatus string
}

func (s *attendanceServiceStub) ConfirmAttendance(_ context.Context, _ application.Principal, id string) (application.Reservation, error) {
	return application.Reservation{ID: id, Status: application.StatusAttended}, nil
}

func (s *attendanceServiceStub) MarkAttendance(_ context.Context, _ application.Principal, id, status string) (application.Reservation, error) {
	s.markedStatus = status
	return application.Reservation{ID: id, Status: application.ReservationStatus(status)}, nil
}

type seatServiceStub struct{}

func (seatServiceStub) ListActiveSeats(context.Context) ([]seating.Seat, error) {
	return []seating.Seat{{ID: "A1", Row: "A", Column: 1, Side: seating.SideLeft, Active: true}}, nil
}

func (seatServiceStub) UpsertSeat(context.Context, application.Principal, application.SeatInput) (seating.Seat, error) {
	return seating.Seat{}, application.ErrUnauthorized
}

func (seatServiceStub) DeleteSeat(context.Context, application.Principal, string) ([]seating.Move, error) {
	return []seating.Move{{From: "C1", To: "B1", NewRow: "B"}}, nil
}

func (seatServiceStub) CreateSeatBlock(_ context.Context, _ application.Principal, input application.SeatBlockInput) (application.SeatBlock, error) {
	return application.SeatBlock{ID: "b-1", SeatID: input.SeatID, Start: input.Start, End: input.End}, nil
}

func (seatServiceStub) ListSeatBlocks(context.Context, scheduler.Date) ([]application.SeatBlock, error) {
	return nil, &application.StorageError{Op: "list seat blocks", Err: errors.New("database is locked")}
}

func (seatServiceStub) DeleteSeatBlock(context.Context, application.Principal, string) error {
	return nil
}

type classServiceStub struct {
	mine int
	got  string
}

func (s *classServiceStub) CreateClass(context.Context, application.Principal, application.ClassInput) (application.Class, error) {
	return application.Class{}, nil
}

func (s *classServiceStub) UpdateClass(context.Context, application.Principal, string, application.ClassInput) (application.Class, error) {
	return application.Class{}, nil
}

func (s *classServiceStub) DeleteClass(context.Context, application.Principal, string) error {
	return nil
}

func (s *classServiceStub) GetClass(_ context.Context, id string) (application.Class, error) {
	s.got = id
	return application.Class{ID: id}, nil
}

func (s *classServiceStub) ClassesOn(context.Context, scheduler.Date) ([]application.Class, error) {
	return nil, nil
}

func (s *classServiceStub) ListMyClasses(context.Context, application.Principal) ([]application.Class, error) {
	s.mine++
	return nil, nil
}

type pingStub struct{ err error }

func (p pingStub) Ping(context.Context) error { return p.err }

type routerFixture struct {
	handler      http.Handler
	reservations *reservationServiceStub
	attendance   *attendanceServiceStub
	classes      *classServiceStub
	token        string
}

func newRouterFixture(t *testing.T, health HealthChecker) *routerFixture {
	t.Helper()
	manila := time.FixedZone("UTC+8", 8*60*60)
	f := &routerFixture{
		reservations: &reservationServiceStub{},
		attendance:   &attendanceServiceStub{},
		classes:      &classServiceStub{},
		token:        mustToken(t, application.Principal{UserID: "s1", DisplayName: "Ana", Role: application.RoleStudent}),
	}
	f.handler = NewRouter(RouterConfig{
		Reservations: NewReservationHandler(f.reservations, f.attendance, manila, nil),
		Seats:        NewSeatHandler(seatServiceStub{}, manila, nil),
		Classes:      NewClassHandler(f.classes, manila, nil),
		Identity:     testVerifier(),
		Health:       health,
	})
	return f
}

func (f *routerFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+f.token)
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, req)
	return recorder
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestReservationHandlers(t *testing.T) {
	t.Parallel()

	t.Run("create combines HH:MM times with the date in the lab location", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t, nil)

		rec := f.do(t, http.MethodPost, "/reservations", `{"date":"2025-06-16","start":"9:00","end":"2025-06-16T02:30:00Z","seat_ids":["a1"]}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		input := f.reservations.created.Input
		if !input.Start.Equal(time.Date(2025, 6, 16, 1, 0, 0, 0, time.UTC)) {
			t.Fatalf("unexpected start %v", input.Start)
		}
		if !input.End.Equal(time.Date(2025, 6, 16, 2, 30, 0, 0, time.UTC)) {
			t.Fatalf("unexpected end %v", input.End)
		}
		if f.reservations.created.Principal.UserID != "s1" {
			t.Fatalf("expected owner from token, got %+v", f.reservations.created.Principal)
		}
	})

	t.Run("malformed times are reported per field", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t, nil)

		rec := f.do(t, http.MethodPost, "/reservations", `{"date":"2025-06-16","start":"nine","end":"25:00"}`)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		body := decodeError(t, rec)
		if body.ErrorCode != string(application.ReasonInvalidInput) || body.Errors["start"] == "" || body.Errors["end"] == "" {
			t.Fatalf("unexpected body %+v", body)
		}
	})

	t.Run("unknown fields are a bad request", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t, nil)

		rec := f.do(t, http.MethodPost, "/reservations", `{"owner_id":"someone-else"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("conflicts render reason and detail", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t, nil)
		f.reservations.createErr = &application.ConflictError{
			Reason:  application.ReasonSeatBooked,
			Message: "seat A1 is already booked",
			Detail:  application.ConflictDetail{SeatID: "A1"},
		}

		rec := f.do(t, http.MethodPost, "/reservations", `{"date":"2025-06-16","start":"09:00","end":"10:00","seat_ids":["A1"]}`)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		body := decodeError(t, rec)
		if body.ErrorCode != "SEAT_BOOKED" || body.Kind != "conflict" || body.Detail == nil || body.Detail.SeatID != "A1" {
			t.Fatalf("unexpected body %+v", body)
		}
	})

	t.Run("validation renders invalid seat ids", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t, nil)
		f.reservations.createErr = &application.ValidationError{
			Reason:         application.ReasonInvalidSeats,
			Message:        "unknown seats",
			InvalidSeatIDs: []string{"Z9"},
		}

		rec := f.do(t, http.MethodPost, "/reservations", `{"date":"2025-06-16","start":"09:00","end":"10:00","seat_ids":["Z9"]}`)
		body := decodeError(t, rec)
		if rec.Code != http.StatusUnprocessableEntity || body.ErrorCode != "INVALID_SEATS" || len(body.InvalidSeatIDs) != 1 {
			t.Fatalf("unexpected response %d %+v", rec.Code, body)
		}
	})

	t.Run("list switches to the admin date view", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t, nil)

		if rec := f.do(t, http.MethodGet, "/reservations", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"reservations":[]`) {
			t.Fatalf("unexpected mine response %d %s", rec.Code, rec.Body.String())
		}
		if f.reservations.mineCalls != 1 {
			t.Fatalf("expected mine lookup")
		}
		if rec := f.do(t, http.MethodGet, "/reservations?date=2025-06-16", ""); rec.Code != http.StatusOK {
			t.Fatalf("unexpected date response %d", rec.Code)
		}
		if f.reservations.byDate.String() != "2025-06-16" {
			t.Fatalf("expected date lookup, got %v", f.reservations.byDate)
		}
		if rec := f.do(t, http.MethodGet, "/reservations?date=16/06/2025", ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("expected bad date to be rejected, got %d", rec.Code)
		}
	})

	t.Run("sentinel errors map to status codes", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t, nil)

		f.reservations.getErr = application.ErrNotFound
		if rec := f.do(t, http.MethodGet, "/reservations/r-9", ""); rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		f.reservations.getErr = application.ErrUnauthorized
		if rec := f.do(t, http.MethodGet, "/reservations/r-9", ""); rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("attendance endpoints", func(t *testing.T) {
		t.Parallel()
		f := newRouterFixture(t, nil)

		if rec := f.do(t, http.MethodPost, "/reservations/r-1/confirm", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"attended"`) {
			t.Fatalf("unexpected confirm response %d %s", rec.Code, rec.Body.String())
		}
		if rec := f.do(t, http.MethodPost, "/reservations/r-1/attendance", `{"status":"missed"}`); rec.Code != http.StatusOK {
			t.Fatalf("unexpected mark response %d", rec.Code)
		}
		if f.attendance.markedStatus != "missed" {
			t.Fatalf("expected status forwarded, got %q", f.attendance.markedStatus)
		}
		if rec := f.do(t, http.MethodPost, "/reservations/r-1/cancel", ""); rec.Code != http.StatusOK {
			t.Fatalf("unexpected cancel response %d", rec.Code)
		}
	})
}

func TestSeatAndClassHandlers(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t, nil)

	if rec := f.do(t, http.MethodGet, "/seats", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"id":"A1"`) {
		t.Fatalf("unexpected seats response %d %s", rec.Code, rec.Body.String())
	}
	if rec := f.do(t, http.MethodPut, "/seats", `{"row":"G","column":1,"side":"left"}`); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin upsert, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, "/seats/B1", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"new_row":"B"`) {
		t.Fatalf("unexpected delete response %d %s", rec.Code, rec.Body.String())
	}
	if rec := f.do(t, http.MethodPatch, "/seats", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/seat-blocks?date=2025-06-16", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected storage failure to map to 503, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/seat-blocks", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected missing date to be rejected, got %d", rec.Code)
	}
	rec := f.do(t, http.MethodPost, "/seat-blocks", `{"seat_id":"B2","date":"2025-06-16","start":"09:00","end":"11:00"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected block response %d %s", rec.Code, rec.Body.String())
	}

	if rec := f.do(t, http.MethodGet, "/classes/mine", ""); rec.Code != http.StatusOK || f.classes.mine != 1 {
		t.Fatalf("expected /classes/mine to route to ListMine, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/classes/c-7", ""); rec.Code != http.StatusOK || f.classes.got != "c-7" {
		t.Fatalf("expected /classes/{id} to route to Get, got %d %q", rec.Code, f.classes.got)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	healthy := newRouterFixture(t, pingStub{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	healthy.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected unauthenticated healthz to succeed, got %d", rec.Code)
	}

	down := newRouterFixture(t, pingStub{err: errors.New("database is locked")})
	rec = httptest.NewRecorder()
	down.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	healthy.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/seats", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected API routes to require identity, got %d", rec.Code)
	}
}
