package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/lab-scheduler/internal/persistence"
)

const notificationColumns = `id, recipient_id, title, message, severity, notification_type, reservation_id, date_key, is_read, created_at`

// CreateNotification stores a notification in its recipient's inbox.
func (s *Store) CreateNotification(ctx context.Context, notification persistence.Notification) (persistence.Notification, error) {
	if notification.ID == "" || notification.RecipientID == "" {
		return persistence.Notification{}, fmt.Errorf("sqlstore: notification id and recipient are required")
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = s.now()
	}
	err := s.withTx(ctx, "create notification", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO notifications (`+notificationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			notification.ID,
			notification.RecipientID,
			notification.Title,
			notification.Message,
			notification.Severity,
			notification.Type,
			notification.ReservationID,
			notification.Date,
			boolToInt(notification.Read),
			formatTimestamp(notification.CreatedAt),
		)
		return err
	})
	if err != nil {
		return persistence.Notification{}, err
	}
	return notification, nil
}

// GetNotification loads one notification.
func (s *Store) GetNotification(ctx context.Context, id string) (persistence.Notification, error) {
	var notification persistence.Notification
	err := s.withRetry(ctx, "get notification", func() error {
		scanned, err := scanNotification(s.db.QueryRowContext(ctx,
			`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id))
		if err != nil {
			return err
		}
		notification = scanned
		return nil
	})
	return notification, err
}

// ListNotifications returns a recipient's newest notifications first.
func (s *Store) ListNotifications(ctx context.Context, recipientID string, limit int) ([]persistence.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var notifications []persistence.Notification
	err := s.withRetry(ctx, "list notifications", func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+notificationColumns+` FROM notifications
			WHERE recipient_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?`,
			recipientID, limit,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		listed := make([]persistence.Notification, 0)
		for rows.Next() {
			notification, err := scanNotification(rows)
			if err != nil {
				return err
			}
			listed = append(listed, notification)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		notifications = listed
		return nil
	})
	return notifications, err
}

// MarkNotificationRead flags a notification as read.
func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	return s.withTx(ctx, "mark notification read", func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM notifications WHERE id = ?`, id).Scan(&exists); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ?`, id)
		return err
	})
}

func scanNotification(row rowScanner) (persistence.Notification, error) {
	var (
		notification persistence.Notification
		read         int
		created      any
	)
	if err := row.Scan(
		&notification.ID,
		&notification.RecipientID,
		&notification.Title,
		&notification.Message,
		&notification.Severity,
		&notification.Type,
		&notification.ReservationID,
		&notification.Date,
		&read,
		&created,
	); err != nil {
		return persistence.Notification{}, err
	}
	notification.Read = read == 1
	var err error
	if notification.CreatedAt, err = parseTimestamp(created); err != nil {
		return persistence.Notification{}, err
	}
	return notification, nil
}
