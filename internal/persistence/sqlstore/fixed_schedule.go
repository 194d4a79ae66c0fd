package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/lab-scheduler/internal/persistence"
)

const fixedScheduleColumns = `id, day_of_week, start_time, end_time, grade_level_id, grade_level,
	section_id, section, teacher_id, teacher_name, label, active, created_at, updated_at`

// ListFixedSchedule returns active entries by weekday and start time.
func (s *Store) ListFixedSchedule(ctx context.Context) ([]persistence.FixedScheduleEntry, error) {
	query := `SELECT ` + fixedScheduleColumns + ` FROM fixed_schedule WHERE active = 1 ORDER BY day_of_week, start_time, end_time`
	var entries []persistence.FixedScheduleEntry
	err := s.withRetry(ctx, "list fixed schedule", func() error {
		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()
		listed := make([]persistence.FixedScheduleEntry, 0)
		for rows.Next() {
			entry, err := scanFixedScheduleEntry(rows)
			if err != nil {
				return err
			}
			listed = append(listed, entry)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		entries = listed
		return nil
	})
	return entries, err
}

// GetFixedScheduleEntry loads one entry.
func (s *Store) GetFixedScheduleEntry(ctx context.Context, id string) (persistence.FixedScheduleEntry, error) {
	var entry persistence.FixedScheduleEntry
	err := s.withRetry(ctx, "get fixed schedule entry", func() error {
		scanned, err := scanFixedScheduleEntry(s.db.QueryRowContext(ctx,
			`SELECT `+fixedScheduleColumns+` FROM fixed_schedule WHERE id = ?`, id))
		if err != nil {
			return err
		}
		entry = scanned
		return nil
	})
	return entry, err
}

// UpsertFixedScheduleEntry inserts or replaces an entry by id.
func (s *Store) UpsertFixedScheduleEntry(ctx context.Context, entry persistence.FixedScheduleEntry) (persistence.FixedScheduleEntry, error) {
	if entry.ID == "" {
		return persistence.FixedScheduleEntry{}, fmt.Errorf("sqlstore: fixed schedule id is required")
	}
	err := s.withTx(ctx, "upsert fixed schedule entry", func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM fixed_schedule WHERE id = ?`, entry.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO fixed_schedule (`+fixedScheduleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				entry.ID,
				entry.DayOfWeek,
				entry.StartTime,
				entry.EndTime,
				entry.GradeLevelID,
				entry.GradeLevel,
				entry.SectionID,
				entry.Section,
				entry.TeacherID,
				entry.TeacherName,
				entry.Label,
				boolToInt(entry.Active),
				formatTimestamp(entry.CreatedAt),
				formatTimestamp(entry.UpdatedAt),
			)
			return err
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE fixed_schedule SET day_of_week = ?, start_time = ?, end_time = ?, grade_level_id = ?,
				grade_level = ?, section_id = ?, section = ?, teacher_id = ?, teacher_name = ?, label = ?,
				active = ?, created_at = ?, updated_at = ?
			WHERE id = ?`,
			entry.DayOfWeek,
			entry.StartTime,
			entry.EndTime,
			entry.GradeLevelID,
			entry.GradeLevel,
			entry.SectionID,
			entry.Section,
			entry.TeacherID,
			entry.TeacherName,
			entry.Label,
			boolToInt(entry.Active),
			formatTimestamp(entry.CreatedAt),
			formatTimestamp(entry.UpdatedAt),
			entry.ID,
		)
		return err
	})
	if err != nil {
		return persistence.FixedScheduleEntry{}, err
	}
	return entry, nil
}

// DeactivateFixedScheduleEntry soft-deletes an entry.
func (s *Store) DeactivateFixedScheduleEntry(ctx context.Context, id string) error {
	return s.withTx(ctx, "deactivate fixed schedule entry", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE fixed_schedule SET active = 0, updated_at = ? WHERE id = ?`,
			s.timestamp(), id,
		)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
}

func scanFixedScheduleEntry(row rowScanner) (persistence.FixedScheduleEntry, error) {
	var (
		entry            persistence.FixedScheduleEntry
		active           int
		created, updated any
	)
	if err := row.Scan(
		&entry.ID,
		&entry.DayOfWeek,
		&entry.StartTime,
		&entry.EndTime,
		&entry.GradeLevelID,
		&entry.GradeLevel,
		&entry.SectionID,
		&entry.Section,
		&entry.TeacherID,
		&entry.TeacherName,
		&entry.Label,
		&active,
		&created,
		&updated,
	); err != nil {
		return persistence.FixedScheduleEntry{}, err
	}
	entry.Active = active == 1
	var err error
	if entry.CreatedAt, err = parseTimestamp(created); err != nil {
		return persistence.FixedScheduleEntry{}, err
	}
	if entry.UpdatedAt, err = parseTimestamp(updated); err != nil {
		return persistence.FixedScheduleEntry{}, err
	}
	return entry, nil
}
