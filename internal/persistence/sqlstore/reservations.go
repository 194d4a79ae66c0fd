package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/lab-scheduler/internal/persistence"
)

const reservationColumns = `id, owner_id, owner_name, owner_role, date_key, start_at, end_at,
	purpose, subject, grade_level, section, status,
	attendance_deadline_at, attendance_confirmed_at, attendance_no_show_at,
	reminder_sent_at, no_show_notified_at, created_at, updated_at, version`

// CreateReservation inserts reservation after guard accepts the
// reservations already stored for its date. Both run in one transaction.
func (s *Store) CreateReservation(ctx context.Context, reservation persistence.Reservation, guard persistence.ReservationGuard) (persistence.Reservation, error) {
	if reservation.ID == "" || reservation.Date == "" {
		return persistence.Reservation{}, fmt.Errorf("sqlstore: reservation id and date are required")
	}
	reservation.Version = 1

	err := s.withTx(ctx, "create reservation", func(tx *sql.Tx) error {
		if guard != nil {
			existing, err := s.listReservations(ctx, tx, persistence.ReservationFilter{Date: reservation.Date}, true)
			if err != nil {
				return err
			}
			if err := guard(existing); err != nil {
				return err
			}
		}
		return insertReservation(ctx, tx, reservation)
	})
	if err != nil {
		return persistence.Reservation{}, err
	}
	return reservation, nil
}

func insertReservation(ctx context.Context, tx *sql.Tx, r persistence.Reservation) error {
	query := `INSERT INTO reservations (` + reservationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, query,
		r.ID,
		r.OwnerID,
		r.OwnerName,
		r.OwnerRole,
		r.Date,
		formatTimestamp(r.Start),
		formatTimestamp(r.End),
		r.Purpose,
		r.Subject,
		r.GradeLevel,
		r.Section,
		r.Status,
		formatNullableTimestamp(r.AttendanceDeadlineAt),
		formatNullableTimestamp(r.AttendanceConfirmedAt),
		formatNullableTimestamp(r.AttendanceNoShowAt),
		formatNullableTimestamp(r.ReminderSentAt),
		formatNullableTimestamp(r.NoShowNotifiedAt),
		formatTimestamp(r.CreatedAt),
		formatTimestamp(r.UpdatedAt),
		r.Version,
	); err != nil {
		return err
	}

	for i, seatID := range r.SeatIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO reservation_seats (reservation_id, seat_id, position) VALUES (?, ?, ?)`,
			r.ID, seatID, i,
		); err != nil {
			return err
		}
	}
	return nil
}

// GetReservation loads one reservation with its seats.
func (s *Store) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	if id == "" {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	var reservation persistence.Reservation
	err := s.withRetry(ctx, "get reservation", func() error {
		row := s.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
		scanned, err := scanReservation(row)
		if err != nil {
			return err
		}
		seats, err := loadReservationSeats(ctx, s.db, []string{scanned.ID})
		if err != nil {
			return err
		}
		scanned.SeatIDs = seats[scanned.ID]
		reservation = scanned
		return nil
	})
	if err != nil {
		return persistence.Reservation{}, err
	}
	return reservation, nil
}

// UpdateReservation writes the mutable lifecycle fields when the stored
// version matches and returns the record with its new version.
func (s *Store) UpdateReservation(ctx context.Context, reservation persistence.Reservation) (persistence.Reservation, error) {
	if reservation.ID == "" {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	query := `UPDATE reservations SET
			status = ?,
			purpose = ?,
			subject = ?,
			grade_level = ?,
			section = ?,
			attendance_deadline_at = ?,
			attendance_confirmed_at = ?,
			attendance_no_show_at = ?,
			reminder_sent_at = ?,
			no_show_notified_at = ?,
			updated_at = ?,
			version = version + 1
		WHERE id = ? AND version = ?`

	err := s.withTx(ctx, "update reservation", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query,
			reservation.Status,
			reservation.Purpose,
			reservation.Subject,
			reservation.GradeLevel,
			reservation.Section,
			formatNullableTimestamp(reservation.AttendanceDeadlineAt),
			formatNullableTimestamp(reservation.AttendanceConfirmedAt),
			formatNullableTimestamp(reservation.AttendanceNoShowAt),
			formatNullableTimestamp(reservation.ReminderSentAt),
			formatNullableTimestamp(reservation.NoShowNotifiedAt),
			formatTimestamp(reservation.UpdatedAt),
			reservation.ID,
			reservation.Version,
		)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected > 0 {
			return nil
		}
		var exists int
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM reservations WHERE id = ?`, reservation.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.ErrNotFound
		}
		if err != nil {
			return err
		}
		return persistence.ErrStale
	})
	if err != nil {
		return persistence.Reservation{}, err
	}
	reservation.Version++
	return reservation, nil
}

// ListReservations returns reservations ordered by start time.
func (s *Store) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	var reservations []persistence.Reservation
	err := s.withRetry(ctx, "list reservations", func() error {
		listed, err := s.listReservations(ctx, s.db, filter, false)
		if err != nil {
			return err
		}
		reservations = listed
		return nil
	})
	return reservations, err
}

func (s *Store) listReservations(ctx context.Context, q queryer, filter persistence.ReservationFilter, lock bool) ([]persistence.Reservation, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Date != "" {
		clauses = append(clauses, "date_key = ?")
		args = append(args, filter.Date)
	}
	if filter.OwnerID != "" {
		clauses = append(clauses, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	query := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY start_at, id"
	if lock {
		query += s.dialect.lockRows()
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reservations := make([]persistence.Reservation, 0)
	ids := make([]string, 0)
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, reservation)
		ids = append(ids, reservation.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	seats, err := loadReservationSeats(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range reservations {
		reservations[i].SeatIDs = seats[reservations[i].ID]
	}
	return reservations, nil
}

func scanReservation(row rowScanner) (persistence.Reservation, error) {
	var (
		r                                            persistence.Reservation
		start, end, created, updated                 any
		deadline, confirmed, noShow, reminder, notif any
	)
	if err := row.Scan(
		&r.ID,
		&r.OwnerID,
		&r.OwnerName,
		&r.OwnerRole,
		&r.Date,
		&start,
		&end,
		&r.Purpose,
		&r.Subject,
		&r.GradeLevel,
		&r.Section,
		&r.Status,
		&deadline,
		&confirmed,
		&noShow,
		&reminder,
		&notif,
		&created,
		&updated,
		&r.Version,
	); err != nil {
		return persistence.Reservation{}, err
	}

	var err error
	if r.Start, err = parseTimestamp(start); err != nil {
		return persistence.Reservation{}, err
	}
	if r.End, err = parseTimestamp(end); err != nil {
		return persistence.Reservation{}, err
	}
	if r.CreatedAt, err = parseTimestamp(created); err != nil {
		return persistence.Reservation{}, err
	}
	if r.UpdatedAt, err = parseTimestamp(updated); err != nil {
		return persistence.Reservation{}, err
	}
	if r.AttendanceDeadlineAt, err = parseNullableTimestamp(deadline); err != nil {
		return persistence.Reservation{}, err
	}
	if r.AttendanceConfirmedAt, err = parseNullableTimestamp(confirmed); err != nil {
		return persistence.Reservation{}, err
	}
	if r.AttendanceNoShowAt, err = parseNullableTimestamp(noShow); err != nil {
		return persistence.Reservation{}, err
	}
	if r.ReminderSentAt, err = parseNullableTimestamp(reminder); err != nil {
		return persistence.Reservation{}, err
	}
	if r.NoShowNotifiedAt, err = parseNullableTimestamp(notif); err != nil {
		return persistence.Reservation{}, err
	}
	return r, nil
}

func loadReservationSeats(ctx context.Context, q queryer, ids []string) (map[string][]string, error) {
	seats := make(map[string][]string, len(ids))
	if len(ids) == 0 {
		return seats, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := q.QueryContext(ctx,
		`SELECT reservation_id, seat_id FROM reservation_seats
		WHERE reservation_id IN (`+placeholders(len(ids))+`)
		ORDER BY reservation_id, position`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var reservationID, seatID string
		if err := rows.Scan(&reservationID, &seatID); err != nil {
			return nil, err
		}
		seats[reservationID] = append(seats[reservationID], seatID)
	}
	return seats, rows.Err()
}
