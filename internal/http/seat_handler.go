package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/lab-scheduler/internal/application"
	"github.com/example/lab-scheduler/internal/scheduler"
	"github.com/example/lab-scheduler/internal/seating"
)

type seatService interface {
	ListActiveSeats(ctx context.Context) ([]seating.Seat, error)
	UpsertSeat(ctx context.Context, principal application.Principal, input application.SeatInput) (seating.Seat, error)
	DeleteSeat(ctx context.Context, principal application.Principal, seatID string) ([]seating.Move, error)
	CreateSeatBlock(ctx context.Context, principal application.Principal, input application.SeatBlockInput) (application.SeatBlock, error)
	ListSeatBlocks(ctx context.Context, date scheduler.Date) ([]application.SeatBlock, error)
	DeleteSeatBlock(ctx context.Context, principal application.Principal, blockID string) error
}

// SeatHandler serves the seat catalog and seat blocks.
type SeatHandler struct {
	base
	service seatService
	loc     *time.Location
}

// NewSeatHandler wires the seat and seat block endpoints.
func NewSeatHandler(service seatService, loc *time.Location, logger *slog.Logger) *SeatHandler {
	return &SeatHandler{base: newBase("SeatHandler", logger), service: service, loc: loc}
}

func (h *SeatHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, errServiceMisconfig.Error(), http.StatusInternalServerError)
		return false
	}
	return true
}

// List handles GET /seats.
func (h *SeatHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, ok := h.principal(w, r, "List")
	if !ok {
		return
	}
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)
	seats, err := h.service.ListActiveSeats(r.Context())
	if err != nil {
		h.fail(r.Context(), w, logger, "seat list failed", err)
		return
	}
	logger.With("result_count", len(seats)).InfoContext(r.Context(), "seats listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSeatsResponse{Seats: nonNil(seats)})
}

// Upsert handles PUT /seats.
func (h *SeatHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, ok := h.principal(w, r, "Upsert")
	if !ok {
		return
	}
	var input application.SeatInput
	if !h.decode(w, r, "Upsert", &input) {
		return
	}

	logger := h.log(r.Context(), "Upsert", "principal_id", principal.UserID)
	seat, err := h.service.UpsertSeat(r.Context(), principal, input)
	if err != nil {
		h.fail(r.Context(), w, logger, "seat upsert failed", err)
		return
	}
	logger.With("seat_id", seat.ID).InfoContext(r.Context(), "seat upserted")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, seatResponse{Seat: seat})
}

// Delete handles DELETE /seats/{id}.
func (h *SeatHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "seat_id", id)
	moves, err := h.service.DeleteSeat(r.Context(), principal, id)
	if err != nil {
		h.fail(r.Context(), w, logger, "seat delete failed", err)
		return
	}
	logger.With("move_count", len(moves)).InfoContext(r.Context(), "seat deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, deleteSeatResponse{Moves: nonNil(moves)})
}

// ListBlocks handles GET /seat-blocks?date=.
func (h *SeatHandler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if _, ok := h.principal(w, r, "ListBlocks"); !ok {
		return
	}
	date, err := queryDate(r)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "ListBlocks", "date", date.String())
	blocks, err := h.service.ListSeatBlocks(r.Context(), date)
	if err != nil {
		h.fail(r.Context(), w, logger, "seat block list failed", err)
		return
	}
	logger.With("result_count", len(blocks)).InfoContext(r.Context(), "seat blocks listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSeatBlocksResponse{SeatBlocks: nonNil(blocks)})
}

// CreateBlock handles POST /seat-blocks.
func (h *SeatHandler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, ok := h.principal(w, r, "CreateBlock")
	if !ok {
		return
	}
	var req seatBlockRequest
	if !h.decode(w, r, "CreateBlock", &req) {
		return
	}

	logger := h.log(r.Context(), "CreateBlock", "principal_id", principal.UserID, "seat_id", req.SeatID)
	times := newTimeFields(h.loc)
	input := application.SeatBlockInput{
		SeatID: strings.TrimSpace(req.SeatID),
		Date:   strings.TrimSpace(req.Date),
		Start:  times.parse("start", req.Date, req.Start),
		End:    times.parse("end", req.Date, req.End),
		Reason: strings.TrimSpace(req.Reason),
	}
	if err := times.err(); err != nil {
		h.fail(r.Context(), w, logger, "seat block rejected", err)
		return
	}

	block, err := h.service.CreateSeatBlock(r.Context(), principal, input)
	if err != nil {
		h.fail(r.Context(), w, logger, "seat block rejected", err)
		return
	}
	logger.With("block_id", block.ID).InfoContext(r.Context(), "seat block created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, seatBlockResponse{SeatBlock: block})
}

// DeleteBlock handles DELETE /seat-blocks/{id}.
func (h *SeatHandler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	principal, ok := h.principal(w, r, "DeleteBlock")
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "DeleteBlock")
	if !ok {
		return
	}

	logger := h.log(r.Context(), "DeleteBlock", "principal_id", principal.UserID, "block_id", id)
	if err := h.service.DeleteSeatBlock(r.Context(), principal, id); err != nil {
		h.fail(r.Context(), w, logger, "seat block delete failed", err)
		return
	}
	logger.InfoContext(r.Context(), "seat block deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type seatBlockRequest struct {
	SeatID string `json:"seat_id"`
	Date   string `json:"date"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Reason string `json:"reason"`
}

type listSeatsResponse struct {
	Seats []seating.Seat `json:"seats"`
}

type seatResponse struct {
	Seat seating.Seat `json:"seat"`
}

type deleteSeatResponse struct {
	Moves []seating.Move `json:"moves"`
}

type listSeatBlocksResponse struct {
	SeatBlocks []application.SeatBlock `json:"seat_blocks"`
}

type seatBlockResponse struct {
	SeatBlock application.SeatBlock `json:"seat_block"`
}
