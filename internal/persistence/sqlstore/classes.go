package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/lab-scheduler/internal/persistence"
)

const classColumns = `id, teacher_id, teacher_name, date_key, start_at, end_at, class_name, capacity, created_at, updated_at`

// CreateClass inserts a class.
func (s *Store) CreateClass(ctx context.Context, class persistence.Class) (persistence.Class, error) {
	if class.ID == "" || class.Date == "" {
		return persistence.Class{}, fmt.Errorf("sqlstore: class id and date are required")
	}
	err := s.withTx(ctx, "create class", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO classes (`+classColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			class.ID,
			class.TeacherID,
			class.TeacherName,
			class.Date,
			formatTimestamp(class.Start),
			formatTimestamp(class.End),
			class.ClassName,
			class.Capacity,
			formatTimestamp(class.CreatedAt),
			formatTimestamp(class.UpdatedAt),
		)
		return err
	})
	if err != nil {
		return persistence.Class{}, err
	}
	return class, nil
}

// GetClass loads one class.
func (s *Store) GetClass(ctx context.Context, id string) (persistence.Class, error) {
	var class persistence.Class
	err := s.withRetry(ctx, "get class", func() error {
		scanned, err := scanClass(s.db.QueryRowContext(ctx, `SELECT `+classColumns+` FROM classes WHERE id = ?`, id))
		if err != nil {
			return err
		}
		class = scanned
		return nil
	})
	return class, err
}

// UpdateClass overwrites a class by id.
func (s *Store) UpdateClass(ctx context.Context, class persistence.Class) (persistence.Class, error) {
	err := s.withTx(ctx, "update class", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE classes SET teacher_id = ?, teacher_name = ?, date_key = ?, start_at = ?, end_at = ?,
				class_name = ?, capacity = ?, updated_at = ?
			WHERE id = ?`,
			class.TeacherID,
			class.TeacherName,
			class.Date,
			formatTimestamp(class.Start),
			formatTimestamp(class.End),
			class.ClassName,
			class.Capacity,
			formatTimestamp(class.UpdatedAt),
			class.ID,
		)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
	if err != nil {
		return persistence.Class{}, err
	}
	return class, nil
}

// DeleteClass removes a class.
func (s *Store) DeleteClass(ctx context.Context, id string) error {
	return s.withTx(ctx, "delete class", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM classes WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
}

// ListClasses returns classes ordered by date and start time.
func (s *Store) ListClasses(ctx context.Context, filter persistence.ClassFilter) ([]persistence.Class, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Date != "" {
		clauses = append(clauses, "date_key = ?")
		args = append(args, filter.Date)
	}
	if filter.TeacherID != "" {
		clauses = append(clauses, "teacher_id = ?")
		args = append(args, filter.TeacherID)
	}
	query := `SELECT ` + classColumns + ` FROM classes`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY date_key, start_at, id"

	var classes []persistence.Class
	err := s.withRetry(ctx, "list classes", func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		listed := make([]persistence.Class, 0)
		for rows.Next() {
			class, err := scanClass(rows)
			if err != nil {
				return err
			}
			listed = append(listed, class)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		classes = listed
		return nil
	})
	return classes, err
}

func scanClass(row rowScanner) (persistence.Class, error) {
	var (
		class                        persistence.Class
		start, end, created, updated any
	)
	if err := row.Scan(
		&class.ID,
		&class.TeacherID,
		&class.TeacherName,
		&class.Date,
		&start,
		&end,
		&class.ClassName,
		&class.Capacity,
		&created,
		&updated,
	); err != nil {
		return persistence.Class{}, err
	}
	var err error
	if class.Start, err = parseTimestamp(start); err != nil {
		return persistence.Class{}, err
	}
	if class.End, err = parseTimestamp(end); err != nil {
		return persistence.Class{}, err
	}
	if class.CreatedAt, err = parseTimestamp(created); err != nil {
		return persistence.Class{}, err
	}
	if class.UpdatedAt, err = parseTimestamp(updated); err != nil {
		return persistence.Class{}, err
	}
	return class, nil
}
