package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/lab-scheduler/internal/application"
	"github.com/example/lab-scheduler/internal/scheduler"
)

type classService interface {
	CreateClass(ctx context.Context, principal application.Principal, input application.ClassInput) (application.Class, error)
	UpdateClass(ctx context.Context, principal application.Principal, classID string, input application.ClassInput) (application.Class, error)
	DeleteClass(ctx context.Context, principal application.Principal, classID string) error
	GetClass(ctx context.Context, classID string) (application.Class, error)
	ClassesOn(ctx context.Context, date scheduler.Date) ([]application.Class, error)
	ListMyClasses(ctx context.Context, principal application.Principal) ([]application.Class, error)
}

// ClassHandler serves ad-hoc classes.
type ClassHandler struct {
	base
	service classService
	loc     *time.Location
}

// NewClassHandler wires the class endpoints.
func NewClassHandler(service classService, loc *time.Location, logger *slog.Logger) *ClassHandler {
	return &ClassHandler{base: newBase("ClassHandler", logger), service: service, loc: loc}
}

func (h *ClassHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, errServiceMisconfig.Error(), http.StatusInternalServerError)
		return false
	}
	return true
}

// List handles GET /classes?date=.
func (h *ClassHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if _, ok := h.principal(w, r, "List"); !ok {
		return
	}
	date, err := queryDate(r)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	logger := h.log(r.Context(), "List", "date", date.String())
	classes, err := h.service.ClassesOn(r.Context(), date)
	if err != nil {
		h.fail(r.Context(), w, logger, "class list failed", err)
		return
	}
	logger.With("result_count", len(classes)).InfoContext(r.Context(), "classes listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listClassesResponse{Classes: nonNil(classes)})
}

// ListMine handles GET /classes/mine.
func (h *ClassHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, ok := h.principal(w, r, "ListMine")
	if !ok {
		return
	}
	logger := h.log(r.Context(), "ListMine", "principal_id", principal.UserID)
	classes, err := h.service.ListMyClasses(r.Context(), principal)
	if err != nil {
		h.fail(r.Context(), w, logger, "class list failed", err)
		return
	}
	logger.With("result_count", len(classes)).InfoContext(r.Context(), "classes listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listClassesResponse{Classes: nonNil(classes)})
}

// Get handles GET /classes/{id}.
func (h *ClassHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if _, ok := h.principal(w, r, "Get"); !ok {
		return
	}
	id, ok := h.pathID(w, r, "Get")
	if !ok {
		return
	}
	logger := h.log(r.Context(), "Get", "class_id", id)
	class, err := h.service.GetClass(r.Context(), id)
	if err != nil {
		h.fail(r.Context(), w, logger, "class fetch failed", err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, classResponse{Class: class})
}

// Create handles POST /classes.
func (h *ClassHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, ok := h.principal(w, r, "Create")
	if !ok {
		return
	}
	var req classRequest
	if !h.decode(w, r, "Create", &req) {
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)
	input, err := req.toInput(h.loc)
	if err != nil {
		h.fail(r.Context(), w, logger, "class rejected", err)
		return
	}
	class, err := h.service.CreateClass(r.Context(), principal, input)
	if err != nil {
		h.fail(r.Context(), w, logger, "class rejected", err)
		return
	}
	logger.With("class_id", class.ID).InfoContext(r.Context(), "class created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, classResponse{Class: class})
}

// Update handles PUT /classes/{id}.
func (h *ClassHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, ok := h.principal(w, r, "Update")
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "Update")
	if !ok {
		return
	}
	var req classRequest
	if !h.decode(w, r, "Update", &req) {
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "class_id", id)
	input, err := req.toInput(h.loc)
	if err != nil {
		h.fail(r.Context(), w, logger, "class update rejected", err)
		return
	}
	class, err := h.service.UpdateClass(r.Context(), principal, id, input)
	if err != nil {
		h.fail(r.Context(), w, logger, "class update rejected", err)
		return
	}
	logger.InfoContext(r.Context(), "class updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, classResponse{Class: class})
}

// Delete handles DELETE /classes/{id}.
func (h *ClassHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
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
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "class_id", id)
	if err := h.service.DeleteClass(r.Context(), principal, id); err != nil {
		h.fail(r.Context(), w, logger, "class delete failed", err)
		return
	}
	logger.InfoContext(r.Context(), "class deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type classRequest struct {
	TeacherID   string `json:"teacher_id"`
	TeacherName string `json:"teacher_name"`
	ClassName   string `json:"class_name"`
	Date        string `json:"date"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Capacity    int    `json:"capacity"`
}

func (r classRequest) toInput(loc *time.Location) (application.ClassInput, error) {
	times := newTimeFields(loc)
	input := application.ClassInput{
		TeacherID:   strings.TrimSpace(r.TeacherID),
		TeacherName: strings.TrimSpace(r.TeacherName),
		ClassName:   strings.TrimSpace(r.ClassName),
		Date:        strings.TrimSpace(r.Date),
		Start:       times.parse("start", r.Date, r.Start),
		End:         times.parse("end", r.Date, r.End),
		Capacity:    r.Capacity,
	}
	return input, times.err()
}

type listClassesResponse struct {
	Classes []application.Class `json:"classes"`
}

type classResponse struct {
	Class application.Class `json:"class"`
}
