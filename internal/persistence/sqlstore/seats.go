package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/lab-scheduler/internal/persistence"
)

// SettingSeatCatalogInitialized marks that the default catalog was seeded.
const SettingSeatCatalogInitialized = "seat_catalog.initialized"

const seatColumns = `id, seat_row, seat_col, side, active, created_at, updated_at`

// ListSeats returns seats ordered by row then column.
func (s *Store) ListSeats(ctx context.Context, includeInactive bool) ([]persistence.Seat, error) {
	query := `SELECT ` + seatColumns + ` FROM seats`
	if !includeInactive {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY seat_row, seat_col`

	var seats []persistence.Seat
	err := s.withRetry(ctx, "list seats", func() error {
		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()
		listed := make([]persistence.Seat, 0)
		for rows.Next() {
			seat, err := scanSeat(rows)
			if err != nil {
				return err
			}
			listed = append(listed, seat)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		seats = listed
		return nil
	})
	return seats, err
}

// UpsertSeat inserts the seat or overwrites the row with the same id.
func (s *Store) UpsertSeat(ctx context.Context, seat persistence.Seat) (persistence.Seat, error) {
	if seat.ID == "" {
		return persistence.Seat{}, fmt.Errorf("sqlstore: seat id is required")
	}
	now := s.now()
	err := s.withTx(ctx, "upsert seat", func(tx *sql.Tx) error {
		var createdRaw any
		err := tx.QueryRowContext(ctx, `SELECT created_at FROM seats WHERE id = ?`, seat.ID).Scan(&createdRaw)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			seat.CreatedAt = now
			seat.UpdatedAt = now
			return insertSeat(ctx, tx, seat)
		case err != nil:
			return err
		}
		if seat.CreatedAt, err = parseTimestamp(createdRaw); err != nil {
			return err
		}
		seat.UpdatedAt = now
		_, err = tx.ExecContext(ctx,
			`UPDATE seats SET seat_row = ?, seat_col = ?, side = ?, active = ?, updated_at = ? WHERE id = ?`,
			seat.Row, seat.Column, seat.Side, boolToInt(seat.Active), formatTimestamp(seat.UpdatedAt), seat.ID,
		)
		return err
	})
	if err != nil {
		return persistence.Seat{}, err
	}
	return seat, nil
}

func insertSeat(ctx context.Context, tx *sql.Tx, seat persistence.Seat) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO seats (`+seatColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		seat.ID, seat.Row, seat.Column, seat.Side, boolToInt(seat.Active),
		formatTimestamp(seat.CreatedAt), formatTimestamp(seat.UpdatedAt),
	)
	return err
}

// DeactivateSeat soft-deletes an active seat.
func (s *Store) DeactivateSeat(ctx context.Context, id string) error {
	return s.withTx(ctx, "deactivate seat", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE seats SET active = 0, updated_at = ? WHERE id = ? AND active = 1`,
			s.timestamp(), id,
		)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
}

// MoveSeats renames seats for row compaction in one transaction. Inactive
// seats occupying a target id are removed first; sources are parked under
// temporary ids so chained renames cannot collide.
func (s *Store) MoveSeats(ctx context.Context, moves []persistence.SeatMove) error {
	if len(moves) == 0 {
		return nil
	}
	return s.withTx(ctx, "move seats", func(tx *sql.Tx) error {
		stamp := s.timestamp()
		for _, move := range moves {
			if _, err := tx.ExecContext(ctx, `DELETE FROM seats WHERE id = ? AND active = 0`, move.To); err != nil {
				return err
			}
		}
		for i, move := range moves {
			result, err := tx.ExecContext(ctx,
				`UPDATE seats SET id = ?, updated_at = ? WHERE id = ?`,
				parkedSeatID(i), stamp, move.From,
			)
			if err != nil {
				return err
			}
			if err := requireAffected(result); err != nil {
				return fmt.Errorf("move seat %s: %w", move.From, err)
			}
		}
		for i, move := range moves {
			if _, err := tx.ExecContext(ctx,
				`UPDATE seats SET id = ?, seat_row = ?, updated_at = ? WHERE id = ?`,
				move.To, move.NewRow, stamp, parkedSeatID(i),
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func parkedSeatID(i int) string {
	return fmt.Sprintf("~%d", i)
}

// SeedSeats inserts seats once, guarded by the catalog initialized setting.
// It reports false when the catalog had already been seeded.
func (s *Store) SeedSeats(ctx context.Context, seats []persistence.Seat) (bool, error) {
	seeded := false
	err := s.withTx(ctx, "seed seats", func(tx *sql.Tx) error {
		seeded = false
		var value string
		err := tx.QueryRowContext(ctx,
			`SELECT setting_value FROM settings WHERE setting_key = ?`+s.dialect.lockRows(),
			SettingSeatCatalogInitialized,
		).Scan(&value)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		now := s.now()
		for _, seat := range seats {
			seat.CreatedAt = now
			seat.UpdatedAt = now
			if _, err := tx.ExecContext(ctx, `DELETE FROM seats WHERE id = ?`, seat.ID); err != nil {
				return err
			}
			if err := insertSeat(ctx, tx, seat); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO settings (setting_key, setting_value, updated_at) VALUES (?, ?, ?)`,
			SettingSeatCatalogInitialized, "true", formatTimestamp(now),
		); err != nil {
			return err
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return seeded, nil
}

func scanSeat(row rowScanner) (persistence.Seat, error) {
	var (
		seat             persistence.Seat
		active           int
		created, updated any
	)
	if err := row.Scan(&seat.ID, &seat.Row, &seat.Column, &seat.Side, &active, &created, &updated); err != nil {
		return persistence.Seat{}, err
	}
	seat.Active = active == 1
	var err error
	if seat.CreatedAt, err = parseTimestamp(created); err != nil {
		return persistence.Seat{}, err
	}
	if seat.UpdatedAt, err = parseTimestamp(updated); err != nil {
		return persistence.Seat{}, err
	}
	return seat, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
