package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/lab-scheduler/internal/persistence"
)

const seatBlockColumns = `id, seat_id, date_key, start_at, end_at, reason, active, created_by, created_at`

// CreateSeatBlock inserts a block.
func (s *Store) CreateSeatBlock(ctx context.Context, block persistence.SeatBlock) (persistence.SeatBlock, error) {
	if block.ID == "" || block.SeatID == "" || block.Date == "" {
		return persistence.SeatBlock{}, fmt.Errorf("sqlstore: seat block id, seat and date are required")
	}
	if block.CreatedAt.IsZero() {
		block.CreatedAt = s.now()
	}
	err := s.withTx(ctx, "create seat block", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO seat_blocks (`+seatBlockColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			block.ID,
			block.SeatID,
			block.Date,
			formatTimestamp(block.Start),
			formatTimestamp(block.End),
			block.Reason,
			boolToInt(block.Active),
			block.CreatedBy,
			formatTimestamp(block.CreatedAt),
		)
		return err
	})
	if err != nil {
		return persistence.SeatBlock{}, err
	}
	return block, nil
}

// GetSeatBlock loads a block whether or not it is active.
func (s *Store) GetSeatBlock(ctx context.Context, id string) (persistence.SeatBlock, error) {
	var block persistence.SeatBlock
	err := s.withRetry(ctx, "get seat block", func() error {
		scanned, err := scanSeatBlock(s.db.QueryRowContext(ctx, `SELECT `+seatBlockColumns+` FROM seat_blocks WHERE id = ?`, id))
		if err != nil {
			return err
		}
		block = scanned
		return nil
	})
	return block, err
}

// DeactivateSeatBlock soft-deletes a block.
func (s *Store) DeactivateSeatBlock(ctx context.Context, id string) error {
	return s.withTx(ctx, "deactivate seat block", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `UPDATE seat_blocks SET active = 0 WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
}

// ListSeatBlocks returns active blocks on date, optionally for one seat.
func (s *Store) ListSeatBlocks(ctx context.Context, date, seatID string) ([]persistence.SeatBlock, error) {
	query := `SELECT ` + seatBlockColumns + ` FROM seat_blocks WHERE active = 1 AND date_key = ?`
	args := []any{date}
	if seatID != "" {
		query += ` AND seat_id = ?`
		args = append(args, seatID)
	}
	query += ` ORDER BY seat_id, start_at`

	var blocks []persistence.SeatBlock
	err := s.withRetry(ctx, "list seat blocks", func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		listed := make([]persistence.SeatBlock, 0)
		for rows.Next() {
			block, err := scanSeatBlock(rows)
			if err != nil {
				return err
			}
			listed = append(listed, block)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		blocks = listed
		return nil
	})
	return blocks, err
}

func scanSeatBlock(row rowScanner) (persistence.SeatBlock, error) {
	var (
		block              persistence.SeatBlock
		active             int
		start, end, create any
	)
	if err := row.Scan(&block.ID, &block.SeatID, &block.Date, &start, &end, &block.Reason, &active, &block.CreatedBy, &create); err != nil {
		return persistence.SeatBlock{}, err
	}
	block.Active = active == 1
	var err error
	if block.Start, err = parseTimestamp(start); err != nil {
		return persistence.SeatBlock{}, err
	}
	if block.End, err = parseTimestamp(end); err != nil {
		return persistence.SeatBlock{}, err
	}
	if block.CreatedAt, err = parseTimestamp(create); err != nil {
		return persistence.SeatBlock{}, err
	}
	return block, nil
}
