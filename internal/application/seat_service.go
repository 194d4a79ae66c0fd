package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/lab-scheduler/internal/scheduler"
	"github.com/example/lab-scheduler/internal/seating"
)

// SeatRepository captures seat catalog persistence.
type SeatRepository interface {
	ListSeats(ctx context.Context, includeInactive bool) ([]seating.Seat, error)
	UpsertSeat(ctx context.Context, seat seating.Seat) (seating.Seat, error)
	DeactivateSeat(ctx context.Context, id string) error
	// MoveSeats applies a compaction batch atomically. Inactive seats holding
	// a target id are removed.
	MoveSeats(ctx context.Context, moves []seating.Move) error
	// SeedSeats inserts seats once, reporting false when the catalog was
	// already initialized.
	SeedSeats(ctx context.Context, seats []seating.Seat) (bool, error)
}

// SeatBlockRepository captures seat block persistence.
type SeatBlockRepository interface {
	CreateSeatBlock(ctx context.Context, block SeatBlock) (SeatBlock, error)
	GetSeatBlock(ctx context.Context, id string) (SeatBlock, error)
	DeactivateSeatBlock(ctx context.Context, id string) error
	// ListSeatBlocks returns active blocks on date; an empty seatID matches
	// every seat.
	ListSeatBlocks(ctx context.Context, date scheduler.Date, seatID string) ([]SeatBlock, error)
}

// SeatService manages the seat catalog and admin seat blocks.
type SeatService struct {
	seats       SeatRepository
	blocks      SeatBlockRepository
	sinks       Sinks
	cache       *catalogCache
	idGenerator func() string
	now         func() time.Time
	location    *time.Location
	logger      *slog.Logger
}

// NewSeatService constructs a seat service with the provided dependencies.
func NewSeatService(seats SeatRepository, blocks SeatBlockRepository, sinks Sinks, idGenerator func() string, now func() time.Time) *SeatService {
	return NewSeatServiceWithLogger(seats, blocks, sinks, idGenerator, now, nil)
}

// NewSeatServiceWithLogger constructs a seat service with a specified logger.
func NewSeatServiceWithLogger(seats SeatRepository, blocks SeatBlockRepository, sinks Sinks, idGenerator func() string, now func() time.Time, logger *slog.Logger) *SeatService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if sinks.IDGenerator == nil {
		sinks.IDGenerator = idGenerator
	}
	return &SeatService{
		seats:       seats,
		blocks:      blocks,
		sinks:       sinks,
		cache:       newCatalogCache(30*time.Second, now),
		idGenerator: idGenerator,
		now:         now,
		location:    time.UTC,
		logger:      defaultLogger(logger),
	}
}

// WithLocation sets the zone seat block windows are checked against.
func (s *SeatService) WithLocation(loc *time.Location) *SeatService {
	if loc != nil {
		s.location = loc
	}
	return s
}

func (s *SeatService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SeatService", operation, attrs...)
}

// ListActiveSeats returns active seats ordered by row then column.
func (s *SeatService) ListActiveSeats(ctx context.Context) ([]seating.Seat, error) {
	if s == nil || s.seats == nil {
		return nil, fmt.Errorf("seat repository not configured")
	}
	if cached, ok := s.cache.Get(); ok {
		return cached, nil
	}
	seats, err := s.seats.ListSeats(ctx, false)
	if err != nil {
		return nil, mapRepoError("list seats", err)
	}
	active := make([]seating.Seat, 0, len(seats))
	for _, seat := range seats {
		if seat.Active {
			active = append(active, seat)
		}
	}
	seating.Sort(active)
	s.cache.Store(active)
	return active, nil
}

// UpsertSeat creates a seat, or re-activates the inactive seat with the same id.
func (s *SeatService) UpsertSeat(ctx context.Context, principal Principal, input SeatInput) (seat seating.Seat, err error) {
	if s == nil {
		err = fmt.Errorf("SeatService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpsertSeat", "principal_id", principal.UserID)
	defer func() {
		logOutcome(ctx, logger, err, "failed to upsert seat", "seat upserted", "seat_id", seat.ID)
	}()

	if !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}
	input.Row = strings.ToUpper(strings.TrimSpace(input.Row))
	input.Side = strings.ToLower(strings.TrimSpace(input.Side))
	if err = validateStruct(input).finish(); err != nil {
		return
	}
	side, err := seating.ParseSide(input.Side)
	if err != nil {
		err = &ValidationError{Reason: ReasonInvalidInput, Message: "validation failed", FieldErrors: map[string]string{"side": err.Error()}}
		return
	}
	candidate, err := seating.NewSeat(input.Row, input.Column, side)
	if err != nil {
		err = &ValidationError{Reason: ReasonInvalidInput, Message: "validation failed", FieldErrors: map[string]string{"seat": err.Error()}}
		return
	}

	seat, err = s.seats.UpsertSeat(ctx, candidate)
	if err != nil {
		err = mapRepoError("upsert seat", err)
		return
	}
	s.cache.Invalidate()

	s.sinks.audit(ctx, logger, s.now(), AuditEntry{
		ActorID:    principal.UserID,
		Action:     ActionSeatUpserted,
		TargetID:   seat.ID,
		TargetType: "seat",
		Details:    map[string]any{"row": seat.Row, "column": seat.Column, "side": string(seat.Side)},
	})
	return
}

// DeleteSeat deactivates a seat and compacts the row letters on its side.
// The applied moves are returned.
func (s *SeatService) DeleteSeat(ctx context.Context, principal Principal, seatID string) (moves []seating.Move, err error) {
	if s == nil {
		err = fmt.Errorf("SeatService is nil")
		return
	}

	seatID = seating.NormalizeID(seatID)
	logger := s.loggerWith(ctx, "DeleteSeat", "principal_id", principal.UserID, "seat_id", seatID)
	defer func() {
		logOutcome(ctx, logger, err, "failed to delete seat", "seat deleted", "moved_seats", len(moves))
	}()

	if !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	all, err := s.seats.ListSeats(ctx, false)
	if err != nil {
		err = mapRepoError("list seats", err)
		return
	}
	var target *seating.Seat
	remaining := make([]seating.Seat, 0, len(all))
	for i := range all {
		if !all[i].Active {
			continue
		}
		if all[i].ID == seatID {
			target = &all[i]
			continue
		}
		remaining = append(remaining, all[i])
	}
	if target == nil {
		err = ErrNotFound
		return
	}

	if err = s.seats.DeactivateSeat(ctx, seatID); err != nil {
		err = mapRepoError("deactivate seat", err)
		return
	}
	s.cache.Invalidate()

	var sideSeats []seating.Seat
	var otherRows []string
	for _, seat := range remaining {
		if seat.Side == target.Side {
			sideSeats = append(sideSeats, seat)
		} else {
			otherRows = append(otherRows, seat.Row)
		}
	}
	moves = seating.PlanMoves(sideSeats, seating.CompactRows(target.Side, sideSeats, otherRows))
	if len(moves) > 0 {
		if err = s.seats.MoveSeats(ctx, moves); err != nil {
			err = mapRepoError("compact seat rows", err)
			return
		}
		s.cache.Invalidate()
	}

	s.sinks.audit(ctx, logger, s.now(), AuditEntry{
		ActorID:    principal.UserID,
		Action:     ActionSeatDeleted,
		TargetID:   seatID,
		TargetType: "seat",
		Details:    map[string]any{"moves": len(moves)},
	})
	return
}

// SeedSeatCatalog installs seats when the catalog has never been initialized.
func (s *SeatService) SeedSeatCatalog(ctx context.Context, seats []seating.Seat) (seeded bool, err error) {
	if s == nil || s.seats == nil {
		err = fmt.Errorf("seat repository not configured")
		return
	}
	logger := s.loggerWith(ctx, "SeedSeatCatalog", "seat_count", len(seats))
	defer func() {
		logOutcome(ctx, logger, err, "failed to seed seat catalog", "seat catalog checked", "seeded", seeded)
	}()

	seeded, err = s.seats.SeedSeats(ctx, seats)
	if err != nil {
		err = mapRepoError("seed seats", err)
		return
	}
	if seeded {
		s.cache.Invalidate()
	}
	return
}

// CreateSeatBlock makes a seat unavailable for a window on a date.
func (s *SeatService) CreateSeatBlock(ctx context.Context, principal Principal, input SeatBlockInput) (block SeatBlock, err error) {
	if s == nil {
		err = fmt.Errorf("SeatService is nil")
		return
	}
	if s.blocks == nil {
		err = fmt.Errorf("seat block repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateSeatBlock", "principal_id", principal.UserID, "seat_id", input.SeatID)
	defer func() {
		logOutcome(ctx, logger, err, "failed to create seat block", "seat block created", "block_id", block.ID)
	}()

	if !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}

	input.SeatID = seating.NormalizeID(input.SeatID)
	vErr := validateStruct(input)
	date := parseDateField(vErr, "date", input.Date)
	validateWindow(vErr, date, input.Start, input.End, s.location)
	if err = vErr.finish(); err != nil {
		return
	}

	active, err := s.ListActiveSeats(ctx)
	if err != nil {
		return
	}
	known := false
	for _, seat := range active {
		if seat.ID == input.SeatID {
			known = true
			break
		}
	}
	if !known {
		vErr = newValidationError(ReasonInvalidSeats, "invalid seat selection")
		vErr.InvalidSeatIDs = []string{input.SeatID}
		err = vErr
		return
	}

	window := scheduler.Interval{Start: input.Start, End: input.End}
	existing, err := s.blocks.ListSeatBlocks(ctx, date, input.SeatID)
	if err != nil {
		err = mapRepoError("list seat blocks", err)
		return
	}
	for _, other := range existing {
		if other.Active && other.Interval().Overlaps(window) {
			conflicting := other
			err = newConflict(ReasonSeatAlreadyBlocked,
				fmt.Sprintf("seat %s is already blocked for this time", input.SeatID),
				ConflictDetail{SeatID: input.SeatID, SeatBlock: &conflicting})
			return
		}
	}

	now := s.now()
	block, err = s.blocks.CreateSeatBlock(ctx, SeatBlock{
		ID:        s.idGenerator(),
		SeatID:    input.SeatID,
		Date:      date,
		Start:     input.Start,
		End:       input.End,
		Reason:    strings.TrimSpace(input.Reason),
		Active:    true,
		CreatedBy: principal.UserID,
		CreatedAt: now,
	})
	if err != nil {
		err = mapRepoError("create seat block", err)
		return
	}

	s.sinks.audit(ctx, logger, now, AuditEntry{
		ActorID:    principal.UserID,
		Action:     ActionSeatBlockCreated,
		TargetID:   block.ID,
		TargetType: "seat_block",
		Details:    map[string]any{"seat_id": block.SeatID, "date": block.Date.String()},
	})
	return
}

// ListSeatBlocks returns active blocks on date sorted by seat then start.
func (s *SeatService) ListSeatBlocks(ctx context.Context, date scheduler.Date) ([]SeatBlock, error) {
	if s == nil || s.blocks == nil {
		return nil, fmt.Errorf("seat block repository not configured")
	}
	blocks, err := s.blocks.ListSeatBlocks(ctx, date, "")
	if err != nil {
		return nil, mapRepoError("list seat blocks", err)
	}
	active := blocks[:0]
	for _, block := range blocks {
		if block.Active {
			active = append(active, block)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].SeatID != active[j].SeatID {
			return active[i].SeatID < active[j].SeatID
		}
		return active[i].Start.Before(active[j].Start)
	})
	return active, nil
}

// DeleteSeatBlock deactivates a seat block.
func (s *SeatService) DeleteSeatBlock(ctx context.Context, principal Principal, blockID string) (err error) {
	if s == nil || s.blocks == nil {
		return fmt.Errorf("seat block repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteSeatBlock", "principal_id", principal.UserID, "block_id", blockID)
	defer func() {
		logOutcome(ctx, logger, err, "failed to delete seat block", "seat block deleted")
	}()

	if !principal.IsAdmin() {
		return ErrUnauthorized
	}
	if _, err = s.blocks.GetSeatBlock(ctx, blockID); err != nil {
		return mapRepoError("get seat block", err)
	}
	if err = s.blocks.DeactivateSeatBlock(ctx, blockID); err != nil {
		return mapRepoError("deactivate seat block", err)
	}

	s.sinks.audit(ctx, logger, s.now(), AuditEntry{
		ActorID:    principal.UserID,
		Action:     ActionSeatBlockDeleted,
		TargetID:   blockID,
		TargetType: "seat_block",
	})
	return nil
}

// FindBlockConflict returns the first active block on one of seatIDs whose
// window overlaps window, or nil.
func (s *SeatService) FindBlockConflict(ctx context.Context, seatIDs []string, date scheduler.Date, window scheduler.Interval) (*BlockConflict, error) {
	if s == nil || s.blocks == nil {
		return nil, nil
	}
	for _, seatID := range seatIDs {
		blocks, err := s.blocks.ListSeatBlocks(ctx, date, seatID)
		if err != nil {
			return nil, mapRepoError("list seat blocks", err)
		}
		for _, block := range blocks {
			if block.Active && block.Interval().Overlaps(window) {
				return &BlockConflict{SeatID: seatID, Block: block}, nil
			}
		}
	}
	return nil, nil
}
