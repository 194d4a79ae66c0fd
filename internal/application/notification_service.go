package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

const notificationListLimit = 50

// NotificationRepository captures persistence of the notification inbox.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification Notification) (Notification, error)
	GetNotification(ctx context.Context, id string) (Notification, error)
	ListNotifications(ctx context.Context, recipientID string, limit int) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

// NotificationService stores notifications in each recipient's inbox and
// serves inbox reads. It implements Notifier.
type NotificationService struct {
	notifications NotificationRepository
	now           func() time.Time
	logger        *slog.Logger
}

// NewNotificationService constructs a notification service.
func NewNotificationService(notifications NotificationRepository, now func() time.Time) *NotificationService {
	return NewNotificationServiceWithLogger(notifications, now, nil)
}

// NewNotificationServiceWithLogger constructs a notification service with a specified logger.
func NewNotificationServiceWithLogger(notifications NotificationRepository, now func() time.Time, logger *slog.Logger) *NotificationService {
	if now == nil {
		now = time.Now
	}
	return &NotificationService{notifications: notifications, now: now, logger: defaultLogger(logger)}
}

func (s *NotificationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "NotificationService", operation, attrs...)
}

// Notify stores notification in the recipient's inbox.
func (s *NotificationService) Notify(ctx context.Context, notification Notification) error {
	if s == nil || s.notifications == nil {
		return fmt.Errorf("notification repository not configured")
	}
	if notification.RecipientID == "" {
		return fmt.Errorf("notification recipient is required")
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = s.now()
	}
	if _, err := s.notifications.CreateNotification(ctx, notification); err != nil {
		return mapRepoError("create notification", err)
	}
	return nil
}

// ListNotifications returns the principal's newest notifications first.
func (s *NotificationService) ListNotifications(ctx context.Context, principal Principal) (notifications []Notification, err error) {
	if s == nil || s.notifications == nil {
		err = fmt.Errorf("notification repository not configured")
		return
	}
	logger := s.loggerWith(ctx, "ListNotifications", "principal_id", principal.UserID)
	defer func() {
		logOutcome(ctx, logger, err, "failed to list notifications", "notifications listed", "result_count", len(notifications))
	}()

	if principal.UserID == "" {
		err = ErrUnauthorized
		return
	}
	notifications, err = s.notifications.ListNotifications(ctx, principal.UserID, notificationListLimit)
	if err != nil {
		err = mapRepoError("list notifications", err)
		return
	}
	sort.SliceStable(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})
	if len(notifications) > notificationListLimit {
		notifications = notifications[:notificationListLimit]
	}
	return
}

// MarkNotificationRead flags a notification as read for its recipient.
func (s *NotificationService) MarkNotificationRead(ctx context.Context, principal Principal, notificationID string) (err error) {
	if s == nil || s.notifications == nil {
		return fmt.Errorf("notification repository not configured")
	}
	logger := s.loggerWith(ctx, "MarkNotificationRead", "principal_id", principal.UserID, "notification_id", notificationID)
	defer func() {
		logOutcome(ctx, logger, err, "failed to mark notification read", "notification marked read")
	}()

	notification, err := s.notifications.GetNotification(ctx, notificationID)
	if err != nil {
		return mapRepoError("get notification", err)
	}
	if notification.RecipientID != principal.UserID {
		return ErrUnauthorized
	}
	if notification.Read {
		return nil
	}
	if err = s.notifications.MarkNotificationRead(ctx, notificationID); err != nil {
		return mapRepoError("mark notification read", err)
	}
	return nil
}
