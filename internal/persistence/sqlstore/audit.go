package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/lab-scheduler/internal/persistence"
)

// AppendAudit stores an audit entry.
func (s *Store) AppendAudit(ctx context.Context, entry persistence.AuditEntry) error {
	if entry.ID == "" || entry.Action == "" {
		return fmt.Errorf("sqlstore: audit id and action are required")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	var details any
	if len(entry.Details) > 0 {
		details = string(entry.Details)
	}
	return s.withTx(ctx, "append audit", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO audit_log (id, actor_id, action, target_id, target_type, details, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			entry.ID,
			entry.ActorID,
			entry.Action,
			entry.TargetID,
			entry.TargetType,
			details,
			formatTimestamp(entry.CreatedAt),
		)
		return err
	})
}

// ListAudit returns the newest entries first, optionally for one target.
func (s *Store) ListAudit(ctx context.Context, targetID string, limit int) ([]persistence.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, actor_id, action, target_id, target_type, details, created_at FROM audit_log`
	args := []any{}
	if targetID != "" {
		query += ` WHERE target_id = ?`
		args = append(args, targetID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	var entries []persistence.AuditEntry
	err := s.withRetry(ctx, "list audit", func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		listed := make([]persistence.AuditEntry, 0)
		for rows.Next() {
			var (
				entry   persistence.AuditEntry
				details sql.NullString
				created any
			)
			if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.Action, &entry.TargetID, &entry.TargetType, &details, &created); err != nil {
				return err
			}
			if details.Valid {
				entry.Details = []byte(details.String)
			}
			if entry.CreatedAt, err = parseTimestamp(created); err != nil {
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
