package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/lab-scheduler/internal/application"
)

type notificationService interface {
	ListNotifications(ctx context.Context, principal application.Principal) ([]application.Notification, error)
	MarkNotificationRead(ctx context.Context, principal application.Principal, notificationID string) error
}

// NotificationHandler serves the caller's inbox.
type NotificationHandler struct {
	base
	service notificationService
}

// NewNotificationHandler wires the inbox endpoints.
func NewNotificationHandler(service notificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{base: newBase("NotificationHandler", logger), service: service}
}

// List handles GET /notifications.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, errServiceMisconfig.Error(), http.StatusInternalServerError)
		return
	}
	principal, ok := h.principal(w, r, "List")
	if !ok {
		return
	}
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)
	notifications, err := h.service.ListNotifications(r.Context(), principal)
	if err != nil {
		h.fail(r.Context(), w, logger, "notification list failed", err)
		return
	}
	logger.With("result_count", len(notifications)).InfoContext(r.Context(), "notifications listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listNotificationsResponse{Notifications: nonNil(notifications)})
}

// MarkRead handles POST /notifications/{id}/read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, errServiceMisconfig.Error(), http.StatusInternalServerError)
		return
	}
	principal, ok := h.principal(w, r, "MarkRead")
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "MarkRead")
	if !ok {
		return
	}
	logger := h.log(r.Context(), "MarkRead", "principal_id", principal.UserID, "notification_id", id)
	if err := h.service.MarkNotificationRead(r.Context(), principal, id); err != nil {
		h.fail(r.Context(), w, logger, "notification mark read failed", err)
		return
	}
	logger.InfoContext(r.Context(), "notification marked read")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type listNotificationsResponse struct {
	Notifications []application.Notification `json:"notifications"`
}
