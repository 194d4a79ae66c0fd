package application

import (
	"slices"
	"time"

	"github.com/example/lab-scheduler/internal/recurrence"
	"github.com/example/lab-scheduler/internal/scheduler"
	"github.com/example/lab-scheduler/internal/seating"
)

// Role is the caller's role as reported by the identity provider.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid reports whether the role is one the lab recognises.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	default:
		return false
	}
}

// Principal represents the already-verified caller invoking a service method.
type Principal struct {
	UserID      string
	DisplayName string
	Role        Role
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func (p Principal) owns(ownerID string) bool {
	return p.UserID != "" && p.UserID == ownerID
}

func (p Principal) canAccess(ownerID string) bool {
	return p.IsAdmin() || p.owns(ownerID)
}

// ReservationStatus is a state of the attendance lifecycle.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusApproved  ReservationStatus = "approved"
	StatusAttended  ReservationStatus = "attended"
	StatusMissed    ReservationStatus = "missed"
	StatusCancelled ReservationStatus = "cancelled"
	StatusRejected  ReservationStatus = "rejected"
)

// Active reports whether the status still occupies its time window.
func (s ReservationStatus) Active() bool {
	return s == StatusPending || s == StatusApproved
}

// Terminal reports whether no further lifecycle transition is expected.
func (s ReservationStatus) Terminal() bool {
	switch s {
	case StatusAttended, StatusMissed, StatusCancelled, StatusRejected:
		return true
	default:
		return false
	}
}

// Reservation is a booking of the lab, or of specific seats, for a window on a date.
// An empty SeatIDs set books the whole lab.
type Reservation struct {
	ID                    string            `json:"id"`
	OwnerID               string            `json:"owner_id"`
	OwnerName             string            `json:"owner_name"`
	OwnerRole             Role              `json:"owner_role"`
	Date                  scheduler.Date    `json:"date"`
	Start                 time.Time         `json:"start"`
	End                   time.Time         `json:"end"`
	SeatIDs               []string          `json:"seat_ids"`
	Purpose               string            `json:"purpose,omitempty"`
	Subject               string            `json:"subject,omitempty"`
	GradeLevel            string            `json:"grade_level,omitempty"`
	Section               string            `json:"section,omitempty"`
	Status                ReservationStatus `json:"status"`
	AttendanceDeadlineAt  *time.Time        `json:"attendance_deadline_at,omitempty"`
	AttendanceConfirmedAt *time.Time        `json:"attendance_confirmed_at,omitempty"`
	AttendanceNoShowAt    *time.Time        `json:"attendance_no_show_at,omitempty"`
	ReminderSentAt        *time.Time        `json:"reminder_sent_at,omitempty"`
	NoShowNotifiedAt      *time.Time        `json:"no_show_notified_at,omitempty"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
	Version               int               `json:"version"`
}

// Interval returns the reservation's [Start, End) window.
func (r Reservation) Interval() scheduler.Interval {
	return scheduler.Interval{Start: r.Start, End: r.End}
}

// WholeLab reports whether the reservation books the lab rather than seats.
func (r Reservation) WholeLab() bool {
	return len(r.SeatIDs) == 0
}

func (r Reservation) sharedSeat(seatIDs []string) (string, bool) {
	for _, id := range seatIDs {
		if slices.Contains(r.SeatIDs, id) {
			return id, true
		}
	}
	return "", false
}

func (r Reservation) clone() Reservation {
	out := r
	out.SeatIDs = slices.Clone(r.SeatIDs)
	out.AttendanceDeadlineAt = cloneTime(r.AttendanceDeadlineAt)
	out.AttendanceConfirmedAt = cloneTime(r.AttendanceConfirmedAt)
	out.AttendanceNoShowAt = cloneTime(r.AttendanceNoShowAt)
	out.ReminderSentAt = cloneTime(r.ReminderSentAt)
	out.NoShowNotifiedAt = cloneTime(r.NoShowNotifiedAt)
	return out
}

// ReservationInput captures caller provided booking fields. The owner is
// always the calling principal.
type ReservationInput struct {
	Date       string    `json:"date" validate:"required"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	SeatIDs    []string  `json:"seat_ids" validate:"dive,required"`
	Purpose    string    `json:"purpose" validate:"max=500"`
	Subject    string    `json:"subject" validate:"max=200"`
	GradeLevel string    `json:"grade_level" validate:"max=100"`
	Section    string    `json:"section" validate:"max=100"`
}

// CreateReservationParams wraps the data required to create a reservation.
type CreateReservationParams struct {
	Principal Principal
	Input     ReservationInput
}

// FixedScheduleEntry is a weekly recurring occupation of the lab.
type FixedScheduleEntry struct {
	ID           string       `json:"id"`
	DayOfWeek    time.Weekday `json:"day_of_week"`
	StartTime    string       `json:"start_time"`
	EndTime      string       `json:"end_time"`
	GradeLevelID string       `json:"grade_level_id"`
	GradeLevel   string       `json:"grade_level"`
	SectionID    string       `json:"section_id"`
	Section      string       `json:"section"`
	TeacherID    string       `json:"teacher_id"`
	TeacherName  string       `json:"teacher_name"`
	Label        string       `json:"label"`
	Active       bool         `json:"active"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (e FixedScheduleEntry) slot() (recurrence.Slot, error) {
	return recurrence.NewSlot(e.DayOfWeek, e.StartTime, e.EndTime)
}

// FixedScheduleOccurrence is an entry materialized onto a concrete date.
type FixedScheduleOccurrence struct {
	Entry FixedScheduleEntry `json:"entry"`
	Start time.Time          `json:"start"`
	End   time.Time          `json:"end"`
}

// FixedScheduleInput captures admin supplied fixed schedule fields. DayOfWeek
// accepts 0-6 or a weekday name; times accept H:MM or HH:MM.
type FixedScheduleInput struct {
	ID           string `json:"id"`
	DayOfWeek    string `json:"day_of_week" validate:"required"`
	StartTime    string `json:"start_time" validate:"required"`
	EndTime      string `json:"end_time" validate:"required"`
	GradeLevelID string `json:"grade_level_id" validate:"required"`
	GradeLevel   string `json:"grade_level"`
	SectionID    string `json:"section_id" validate:"required"`
	Section      string `json:"section"`
	TeacherID    string `json:"teacher_id" validate:"required"`
	TeacherName  string `json:"teacher_name"`
	Label        string `json:"label" validate:"max=200"`
}

// SeatInput captures an admin seat upsert.
type SeatInput struct {
	Row    string `json:"row" validate:"required,len=1,alpha"`
	Column int    `json:"column" validate:"min=1,max=99"`
	Side   string `json:"side" validate:"required,oneof=left right"`
}

// SeatBlock makes one seat unavailable for a window on a date.
type SeatBlock struct {
	ID        string         `json:"id"`
	SeatID    string         `json:"seat_id"`
	Date      scheduler.Date `json:"date"`
	Start     time.Time      `json:"start"`
	End       time.Time      `json:"end"`
	Reason    string         `json:"reason,omitempty"`
	Active    bool           `json:"active"`
	CreatedBy string         `json:"created_by"`
	CreatedAt time.Time      `json:"created_at"`
}

// Interval returns the block's [Start, End) window.
func (b SeatBlock) Interval() scheduler.Interval {
	return scheduler.Interval{Start: b.Start, End: b.End}
}

// SeatBlockInput captures an admin seat block request.
type SeatBlockInput struct {
	SeatID string    `json:"seat_id" validate:"required"`
	Date   string    `json:"date" validate:"required"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Reason string    `json:"reason" validate:"max=200"`
}

// BlockConflict identifies the block that prevents a seat from being booked.
type BlockConflict struct {
	SeatID string    `json:"seat_id"`
	Block  SeatBlock `json:"block"`
}

// Class is an ad-hoc, single-date occupation of the lab.
type Class struct {
	ID          string         `json:"id"`
	TeacherID   string         `json:"teacher_id"`
	TeacherName string         `json:"teacher_name"`
	Date        scheduler.Date `json:"date"`
	Start       time.Time      `json:"start"`
	End         time.Time      `json:"end"`
	ClassName   string         `json:"class_name"`
	Capacity    int            `json:"capacity"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Interval returns the class's [Start, End) window.
func (c Class) Interval() scheduler.Interval {
	return scheduler.Interval{Start: c.Start, End: c.End}
}

// ClassInput captures class fields. TeacherID defaults to the caller.
type ClassInput struct {
	TeacherID   string    `json:"teacher_id"`
	TeacherName string    `json:"teacher_name"`
	ClassName   string    `json:"class_name" validate:"required,max=200"`
	Date        string    `json:"date" validate:"required"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Capacity    int       `json:"capacity" validate:"omitempty,min=1,max=500"`
}

// Severity grades a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// NotificationTypeAttendance tags attendance lifecycle notifications.
const NotificationTypeAttendance = "attendance"

// Notification is a message addressed to one user.
type Notification struct {
	ID            string         `json:"id"`
	RecipientID   string         `json:"recipient_id"`
	Title         string         `json:"title"`
	Message       string         `json:"message"`
	Severity      Severity       `json:"severity"`
	Type          string         `json:"type"`
	ReservationID string         `json:"reservation_id,omitempty"`
	Date          scheduler.Date `json:"date"`
	Read          bool           `json:"read"`
	CreatedAt     time.Time      `json:"created_at"`
}

// AuditEntry records one state-changing operation.
type AuditEntry struct {
	ID         string         `json:"id"`
	ActorID    string         `json:"actor_id"`
	Action     string         `json:"action"`
	TargetID   string         `json:"target_id"`
	TargetType string         `json:"target_type"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// DayAvailability is everything occupying the lab on one date.
type DayAvailability struct {
	Date          scheduler.Date            `json:"date"`
	Reservations  []Reservation             `json:"reservations"`
	Classes       []Class                   `json:"classes"`
	Seats         []seating.Seat            `json:"seats"`
	SeatBlocks    []SeatBlock               `json:"seat_blocks"`
	FixedSchedule []FixedScheduleOccurrence `json:"fixed_schedule"`
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func timePtr(t time.Time) *time.Time {
	return &t
}
