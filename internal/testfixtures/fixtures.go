package testfixtures

import (
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/example/lab-scheduler/internal/application"
	"github.com/example/lab-scheduler/internal/persistence"
	"github.com/example/lab-scheduler/internal/scheduler"
	"github.com/example/lab-scheduler/internal/seating"
)

var (
	reservationCounter uint64
	blockCounter       uint64
	classCounter       uint64
)

var referenceDate = scheduler.MustParseDate("2025-06-16")

// ReferenceDate is the Monday fixtures book on by default.
func ReferenceDate() scheduler.Date {
	return referenceDate
}

// ReferenceTime is 07:00 UTC on ReferenceDate, before any default booking.
func ReferenceTime() time.Time {
	return referenceDate.At(7, 0, time.UTC)
}

// ----------------------------- Reservation fixtures -----------------------------

// ReservationFixture is a deterministic reservation that can be materialised
// for application or persistence tests.
type ReservationFixture struct {
	ID        string
	OwnerID   string
	OwnerName string
	OwnerRole application.Role
	Date      scheduler.Date
	Start     time.Time
	End       time.Time
	SeatIDs   []string
	Purpose   string
	Status    application.ReservationStatus
	Deadline  *time.Time
	CreatedAt time.Time
	Version   int
}

// ReservationOption configures a ReservationFixture.
type ReservationOption func(*ReservationFixture)

// NewReservationFixture returns an approved 09:00-10:00 booking of seat A1 on
// ReferenceDate with its 15 minute attendance deadline.
func NewReservationFixture(opts ...ReservationOption) ReservationFixture {
	idx := atomic.AddUint64(&reservationCounter, 1)
	fixture := ReservationFixture{
		ID:        fmt.Sprintf("res-%03d", idx),
		OwnerID:   "student-1",
		OwnerName: "Student One",
		OwnerRole: application.RoleStudent,
		Date:      referenceDate,
		Start:     referenceDate.At(9, 0, time.UTC),
		End:       referenceDate.At(10, 0, time.UTC),
		SeatIDs:   []string{"A1"},
		Purpose:   "Research",
		Status:    application.StatusApproved,
		CreatedAt: ReferenceTime(),
		Version:   1,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	if fixture.Deadline == nil {
		deadline := fixture.Start.Add(15 * time.Minute)
		fixture.Deadline = &deadline
	}
	return fixture
}

// WithReservationID overrides the generated id.
func WithReservationID(id string) ReservationOption {
	return func(f *ReservationFixture) {
		f.ID = id
	}
}

// WithOwner sets the owning user.
func WithOwner(id, name string, role application.Role) ReservationOption {
	return func(f *ReservationFixture) {
		f.OwnerID = id
		f.OwnerName = name
		f.OwnerRole = role
	}
}

// WithWindow books startHour:00 to endHour:00 UTC on date.
func WithWindow(date scheduler.Date, startHour, endHour int) ReservationOption {
	return func(f *ReservationFixture) {
		f.Date = date
		f.Start = date.At(startHour, 0, time.UTC)
		f.End = date.At(endHour, 0, time.UTC)
	}
}

// WithSeats replaces the seat selection; no seats books the whole lab.
func WithSeats(seatIDs ...string) ReservationOption {
	return func(f *ReservationFixture) {
		f.SeatIDs = slices.Clone(seatIDs)
	}
}

// WithStatus sets the lifecycle status.
func WithStatus(status application.ReservationStatus) ReservationOption {
	return func(f *ReservationFixture) {
		f.Status = status
	}
}

// Application returns the fixture as an application.Reservation.
func (f ReservationFixture) Application() application.Reservation {
	var deadline *time.Time
	if f.Deadline != nil {
		copied := *f.Deadline
		deadline = &copied
	}
	return application.Reservation{
		ID:                   f.ID,
		OwnerID:              f.OwnerID,
		OwnerName:            f.OwnerName,
		OwnerRole:            f.OwnerRole,
		Date:                 f.Date,
		Start:                f.Start,
		End:                  f.End,
		SeatIDs:              slices.Clone(f.SeatIDs),
		Purpose:              f.Purpose,
		Status:               f.Status,
		AttendanceDeadlineAt: deadline,
		CreatedAt:            f.CreatedAt,
		UpdatedAt:            f.CreatedAt,
		Version:              f.Version,
	}
}

// Persistence returns the fixture as a persistence.Reservation.
func (f ReservationFixture) Persistence() persistence.Reservation {
	app := f.Application()
	return persistence.Reservation{
		ID:                   app.ID,
		OwnerID:              app.OwnerID,
		OwnerName:            app.OwnerName,
		OwnerRole:            string(app.OwnerRole),
		Date:                 app.Date.String(),
		Start:                app.Start,
		End:                  app.End,
		SeatIDs:              app.SeatIDs,
		Purpose:              app.Purpose,
		Status:               string(app.Status),
		AttendanceDeadlineAt: app.AttendanceDeadlineAt,
		CreatedAt:            app.CreatedAt,
		UpdatedAt:            app.UpdatedAt,
		Version:              app.Version,
	}
}

// ----------------------------- Seat fixtures -----------------------------

// PersistenceSeats converts catalog seats to persistence records.
func PersistenceSeats(seats []seating.Seat) []persistence.Seat {
	out := make([]persistence.Seat, len(seats))
	for i, seat := range seats {
		out[i] = persistence.Seat{
			ID:     seat.ID,
			Row:    seat.Row,
			Column: seat.Column,
			Side:   string(seat.Side),
			Active: seat.Active,
		}
	}
	return out
}

// SeatBlockFixture is a deterministic seat block.
type SeatBlockFixture struct {
	ID        string
	SeatID    string
	Date      scheduler.Date
	Start     time.Time
	End       time.Time
	Reason    string
	CreatedBy string
}

// SeatBlockOption configures a SeatBlockFixture.
type SeatBlockOption func(*SeatBlockFixture)

// NewSeatBlockFixture returns a 09:00-11:00 block of seat B2 on ReferenceDate.
func NewSeatBlockFixture(opts ...SeatBlockOption) SeatBlockFixture {
	idx := atomic.AddUint64(&blockCounter, 1)
	fixture := SeatBlockFixture{
		ID:        fmt.Sprintf("block-%03d", idx),
		SeatID:    "B2",
		Date:      referenceDate,
		Start:     referenceDate.At(9, 0, time.UTC),
		End:       referenceDate.At(11, 0, time.UTC),
		Reason:    "Maintenance",
		CreatedBy: "admin-1",
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithBlockedSeat overrides the blocked seat.
func WithBlockedSeat(seatID string) SeatBlockOption {
	return func(f *SeatBlockFixture) {
		f.SeatID = seatID
	}
}

// Application returns the fixture as an active application.SeatBlock.
func (f SeatBlockFixture) Application() application.SeatBlock {
	return application.SeatBlock{
		ID:        f.ID,
		SeatID:    f.SeatID,
		Date:      f.Date,
		Start:     f.Start,
		End:       f.End,
		Reason:    f.Reason,
		Active:    true,
		CreatedBy: f.CreatedBy,
		CreatedAt: ReferenceTime(),
	}
}

// Persistence returns the fixture as an active persistence.SeatBlock.
func (f SeatBlockFixture) Persistence() persistence.SeatBlock {
	return persistence.SeatBlock{
		ID:        f.ID,
		SeatID:    f.SeatID,
		Date:      f.Date.String(),
		Start:     f.Start,
		End:       f.End,
		Reason:    f.Reason,
		Active:    true,
		CreatedBy: f.CreatedBy,
		CreatedAt: ReferenceTime(),
	}
}

// ----------------------------- Schedule fixtures -----------------------------

// ClassFixture is a deterministic ad-hoc class.
type ClassFixture struct {
	ID          string
	TeacherID   string
	TeacherName string
	Date        scheduler.Date
	Start       time.Time
	End         time.Time
	ClassName   string
	Capacity    int
}

// ClassOption configures a ClassFixture.
type ClassOption func(*ClassFixture)

// NewClassFixture returns a 10:00-11:00 class on ReferenceDate.
func NewClassFixture(opts ...ClassOption) ClassFixture {
	idx := atomic.AddUint64(&classCounter, 1)
	fixture := ClassFixture{
		ID:          fmt.Sprintf("class-%03d", idx),
		TeacherID:   "teacher-1",
		TeacherName: "Teacher One",
		Date:        referenceDate,
		Start:       referenceDate.At(10, 0, time.UTC),
		End:         referenceDate.At(11, 0, time.UTC),
		ClassName:   "Robotics",
		Capacity:    30,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithClassWindow sets the class hours on date.
func WithClassWindow(date scheduler.Date, startHour, endHour int) ClassOption {
	return func(f *ClassFixture) {
		f.Date = date
		f.Start = date.At(startHour, 0, time.UTC)
		f.End = date.At(endHour, 0, time.UTC)
	}
}

// Application returns the fixture as an application.Class.
func (f ClassFixture) Application() application.Class {
	return application.Class{
		ID:          f.ID,
		TeacherID:   f.TeacherID,
		TeacherName: f.TeacherName,
		Date:        f.Date,
		Start:       f.Start,
		End:         f.End,
		ClassName:   f.ClassName,
		Capacity:    f.Capacity,
		CreatedAt:   ReferenceTime(),
		UpdatedAt:   ReferenceTime(),
	}
}

// Persistence returns the fixture as a persistence.Class.
func (f ClassFixture) Persistence() persistence.Class {
	return persistence.Class{
		ID:          f.ID,
		TeacherID:   f.TeacherID,
		TeacherName: f.TeacherName,
		Date:        f.Date.String(),
		Start:       f.Start,
		End:         f.End,
		ClassName:   f.ClassName,
		Capacity:    f.Capacity,
		CreatedAt:   ReferenceTime(),
		UpdatedAt:   ReferenceTime(),
	}
}

// FixedScheduleFixture returns an active weekly entry.
func FixedScheduleFixture(id string, day time.Weekday, start, end string) persistence.FixedScheduleEntry {
	return persistence.FixedScheduleEntry{
		ID:           id,
		DayOfWeek:    int(day),
		StartTime:    start,
		EndTime:      end,
		GradeLevelID: "grade-7",
		GradeLevel:   "Grade 7",
		SectionID:    "section-a",
		Section:      "Section A",
		TeacherID:    "teacher-1",
		TeacherName:  "Teacher One",
		Label:        "Grade 7 - Section A - Teacher One",
		Active:       true,
		CreatedAt:    ReferenceTime(),
		UpdatedAt:    ReferenceTime(),
	}
}
