package persistence

import "context"

// ReservationFilter narrows reservation queries. Empty fields match all.
type ReservationFilter struct {
	Date    string
	OwnerID string
}

// ReservationGuard inspects the reservations already stored for the
// candidate's date. A non-nil error aborts the insert and is returned as is.
type ReservationGuard func(existing []Reservation) error

// ReservationRepository stores reservations with guarded inserts and
// optimistic versioned updates.
type ReservationRepository interface {
	CreateReservation(ctx context.Context, reservation Reservation, guard ReservationGuard) (Reservation, error)
	GetReservation(ctx context.Context, id string) (Reservation, error)
	UpdateReservation(ctx context.Context, reservation Reservation) (Reservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)
}

// SeatRepository stores the seat catalog.
type SeatRepository interface {
	ListSeats(ctx context.Context, includeInactive bool) ([]Seat, error)
	UpsertSeat(ctx context.Context, seat Seat) (Seat, error)
	DeactivateSeat(ctx context.Context, id string) error
	MoveSeats(ctx context.Context, moves []SeatMove) error
	SeedSeats(ctx context.Context, seats []Seat) (bool, error)
}

// SeatBlockRepository stores seat blocks.
type SeatBlockRepository interface {
	CreateSeatBlock(ctx context.Context, block SeatBlock) (SeatBlock, error)
	GetSeatBlock(ctx context.Context, id string) (SeatBlock, error)
	DeactivateSeatBlock(ctx context.Context, id string) error
	ListSeatBlocks(ctx context.Context, date, seatID string) ([]SeatBlock, error)
}

// FixedScheduleRepository stores weekly schedule entries.
type FixedScheduleRepository interface {
	ListFixedSchedule(ctx context.Context) ([]FixedScheduleEntry, error)
	GetFixedScheduleEntry(ctx context.Context, id string) (FixedScheduleEntry, error)
	UpsertFixedScheduleEntry(ctx context.Context, entry FixedScheduleEntry) (FixedScheduleEntry, error)
	DeactivateFixedScheduleEntry(ctx context.Context, id string) error
}

// ClassFilter narrows class queries. Empty fields match all.
type ClassFilter struct {
	Date      string
	TeacherID string
}

// ClassRepository stores ad-hoc classes.
type ClassRepository interface {
	CreateClass(ctx context.Context, class Class) (Class, error)
	GetClass(ctx context.Context, id string) (Class, error)
	UpdateClass(ctx context.Context, class Class) (Class, error)
	DeleteClass(ctx context.Context, id string) error
	ListClasses(ctx context.Context, filter ClassFilter) ([]Class, error)
}

// NotificationRepository stores recipient inboxes.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification Notification) (Notification, error)
	GetNotification(ctx context.Context, id string) (Notification, error)
	ListNotifications(ctx context.Context, recipientID string, limit int) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

// AuditRepository appends to and reads the audit trail.
type AuditRepository interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	ListAudit(ctx context.Context, targetID string, limit int) ([]AuditEntry, error)
}
