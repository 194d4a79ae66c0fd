package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/lab-scheduler/internal/application"
)

type fixedScheduleService interface {
	ListFixedSchedule(ctx context.Context) ([]application.FixedScheduleEntry, error)
	ListMyFixedSchedule(ctx context.Context, principal application.Principal) ([]application.FixedScheduleEntry, error)
	UpsertFixedScheduleEntry(ctx context.Context, principal application.Principal, input application.FixedScheduleInput) (application.FixedScheduleEntry, error)
	DeleteFixedScheduleEntry(ctx context.Context, principal application.Principal, entryID string) error
}

// FixedScheduleHandler serves the weekly fixed schedule.
type FixedScheduleHandler struct {
	base
	service fixedScheduleService
}

// NewFixedScheduleHandler wires the fixed schedule endpoints.
func NewFixedScheduleHandler(service fixedScheduleService, logger *slog.Logger) *FixedScheduleHandler {
	return &FixedScheduleHandler{base: newBase("FixedScheduleHandler", logger), service: service}
}

// List handles GET /fixed-schedule.
func (h *FixedScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "List", func(ctx context.Context, _ application.Principal) ([]application.FixedScheduleEntry, error) {
		return h.service.ListFixedSchedule(ctx)
	})
}

// ListMine handles GET /fixed-schedule/mine.
func (h *FixedScheduleHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "ListMine", func(ctx context.Context, principal application.Principal) ([]application.FixedScheduleEntry, error) {
		return h.service.ListMyFixedSchedule(ctx, principal)
	})
}

func (h *FixedScheduleHandler) list(w http.ResponseWriter, r *http.Request, operation string, call func(context.Context, application.Principal) ([]application.FixedScheduleEntry, error)) {
	if h == nil || h.service == nil {
		http.Error(w, errServiceMisconfig.Error(), http.StatusInternalServerError)
		return
	}
	principal, ok := h.principal(w, r, operation)
	if !ok {
		return
	}
	logger := h.log(r.Context(), operation, "principal_id", principal.UserID)
	entries, err := call(r.Context(), principal)
	if err != nil {
		h.fail(r.Context(), w, logger, "fixed schedule list failed", err)
		return
	}
	logger.With("result_count", len(entries)).InfoContext(r.Context(), "fixed schedule listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listFixedScheduleResponse{Entries: nonNil(entries)})
}

// Upsert handles PUT /fixed-schedule.
func (h *FixedScheduleHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, errServiceMisconfig.Error(), http.StatusInternalServerError)
		return
	}
	principal, ok := h.principal(w, r, "Upsert")
	if !ok {
		return
	}
	var input application.FixedScheduleInput
	if !h.decode(w, r, "Upsert", &input) {
		return
	}

	logger := h.log(r.Context(), "Upsert", "principal_id", principal.UserID, "entry_id", input.ID)
	entry, err := h.service.UpsertFixedScheduleEntry(r.Context(), principal, input)
	if err != nil {
		h.fail(r.Context(), w, logger, "fixed schedule upsert failed", err)
		return
	}
	logger.With("entry_id", entry.ID).InfoContext(r.Context(), "fixed schedule upserted")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, fixedScheduleResponse{Entry: entry})
}

// Delete handles DELETE /fixed-schedule/{id}.
func (h *FixedScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, errServiceMisconfig.Error(), http.StatusInternalServerError)
		return
	}
	principal, ok := h.principal(w, r, "Delete")
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "Delete")
	if !ok {
		return
	}

	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "entry_id", id)
	if err := h.service.DeleteFixedScheduleEntry(r.Context(), principal, id); err != nil {
		h.fail(r.Context(), w, logger, "fixed schedule delete failed", err)
		return
	}
	logger.InfoContext(r.Context(), "fixed schedule deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type listFixedScheduleResponse struct {
	Entries []application.FixedScheduleEntry `json:"entries"`
}

type fixedScheduleResponse struct {
	Entry application.FixedScheduleEntry `json:"entry"`
}
