package application

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/lab-scheduler/internal/persistence"
	"github.com/example/lab-scheduler/internal/scheduler"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
)

// Kind is the tagged variant of every error a service returns.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindStorage      Kind = "storage"
	KindUnexpected   Kind = "unexpected"
)

// ReasonCode is the machine readable cause of a rejection.
type ReasonCode string

const (
	ReasonInvalidInput            ReasonCode = "INVALID_INPUT"
	ReasonInvalidSeats            ReasonCode = "INVALID_SEATS"
	ReasonInvalidRole             ReasonCode = "INVALID_ROLE"
	ReasonPastTime                ReasonCode = "PAST_TIME"
	ReasonWeekend                 ReasonCode = "WEEKEND_NOT_ALLOWED"
	ReasonInvalidAttendanceStatus ReasonCode = "INVALID_ATTENDANCE_STATUS"

	ReasonDailyLimit             ReasonCode = "DAILY_LIMIT_REACHED"
	ReasonFixedSchedule          ReasonCode = "FIXED_SCHEDULE_CONFLICT"
	ReasonClass                  ReasonCode = "CLASS_CONFLICT"
	ReasonLabBooked              ReasonCode = "LAB_BOOKED"
	ReasonSeatBooked             ReasonCode = "SEAT_BOOKED"
	ReasonLabFull                ReasonCode = "LAB_FULL"
	ReasonSeatBlocked            ReasonCode = "SEAT_BLOCKED"
	ReasonSeatAlreadyBlocked     ReasonCode = "SEAT_ALREADY_BLOCKED"
	ReasonFixedScheduleOverlap   ReasonCode = "FIXED_SCHEDULE_OVERLAP"
	ReasonStatusNotConfirmable   ReasonCode = "ATTENDANCE_NOT_CONFIRMABLE"
	ReasonConfirmationNotOpen    ReasonCode = "CONFIRMATION_NOT_OPEN"
	ReasonConfirmationExpired    ReasonCode = "CONFIRMATION_EXPIRED"
	ReasonConcurrentModification ReasonCode = "CONCURRENT_MODIFICATION"
)

// Rejection is implemented by the structured errors a caller can render as
// remediation UI.
type Rejection interface {
	error
	Kind() Kind
	ReasonCode() ReasonCode
}

// ValidationError captures malformed or missing input.
type ValidationError struct {
	Reason         ReasonCode
	Message        string
	FieldErrors    map[string]string
	InvalidSeatIDs []string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if v.Message != "" {
		return v.Message
	}
	return "validation failed"
}

// Kind implements Rejection.
func (v *ValidationError) Kind() Kind { return KindValidation }

// ReasonCode implements Rejection.
func (v *ValidationError) ReasonCode() ReasonCode {
	if v == nil || v.Reason == "" {
		return ReasonInvalidInput
	}
	return v.Reason
}

// HasErrors reports whether any issue was recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && (len(v.FieldErrors) > 0 || len(v.InvalidSeatIDs) > 0)
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func newValidationError(reason ReasonCode, message string) *ValidationError {
	return &ValidationError{Reason: reason, Message: message}
}

// ConflictDetail names the entity a request collided with. Only the fields
// relevant to the reason are set.
type ConflictDetail struct {
	Reservation   *Reservation             `json:"reservation,omitempty"`
	FixedSchedule *FixedScheduleOccurrence `json:"fixed_schedule,omitempty"`
	FixedEntry    *FixedScheduleEntry      `json:"fixed_entry,omitempty"`
	Class         *Class                   `json:"class,omitempty"`
	SeatID        string                   `json:"seat_id,omitempty"`
	SeatBlock     *SeatBlock               `json:"seat_block,omitempty"`
	Status        ReservationStatus        `json:"status,omitempty"`
	OpensAt       *time.Time               `json:"opens_at,omitempty"`
	Limit         int                      `json:"limit,omitempty"`
	SuggestedSlot *scheduler.Interval      `json:"suggested_slot,omitempty"`
}

// ConflictError is a scheduling conflict: an overlap, an exhausted quota or a
// lifecycle state that forbids the operation.
type ConflictError struct {
	Reason  ReasonCode
	Message string
	Detail  ConflictDetail
}

// Error implements the error interface.
func (c *ConflictError) Error() string {
	if c == nil {
		return ""
	}
	if c.Message != "" {
		return c.Message
	}
	return "conflict"
}

// Kind implements Rejection.
func (c *ConflictError) Kind() Kind { return KindConflict }

// ReasonCode implements Rejection.
func (c *ConflictError) ReasonCode() ReasonCode {
	if c == nil {
		return ""
	}
	return c.Reason
}

func newConflict(reason ReasonCode, message string, detail ConflictDetail) *ConflictError {
	return &ConflictError{Reason: reason, Message: message, Detail: detail}
}

// StorageError wraps a failed storage call. Callers decide whether to retry.
type StorageError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (s *StorageError) Error() string {
	if s == nil {
		return ""
	}
	return fmt.Sprintf("storage: %s: %v", s.Op, s.Err)
}

// Unwrap exposes the underlying storage error.
func (s *StorageError) Unwrap() error {
	if s == nil {
		return nil
	}
	return s.Err
}

// KindOf classifies err into its tagged variant.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var rejection Rejection
	if errors.As(err, &rejection) {
		return rejection.Kind()
	}
	switch {
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	}
	var sErr *StorageError
	if errors.As(err, &sErr) {
		return KindStorage
	}
	return KindUnexpected
}

// mapRepoError translates persistence failures into service errors.
func mapRepoError(op string, err error) error {
	if err == nil {
		return nil
	}
	var rejection Rejection
	switch {
	case errors.As(err, &rejection):
		return err
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrStale):
		return newConflict(ReasonConcurrentModification, "the record was modified by another request; reload and retry", ConflictDetail{})
	default:
		return &StorageError{Op: op, Err: err}
	}
}
