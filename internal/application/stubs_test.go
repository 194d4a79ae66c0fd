package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/example/lab-scheduler/internal/persistence"
	"github.com/example/lab-scheduler/internal/scheduler"
	"github.com/example/lab-scheduler/internal/seating"
)

type reservationRepoStub struct {
	mu        sync.Mutex
	items     map[string]Reservation
	order     []string
	updateErr error
	updates   int
}

func newReservationRepoStub(seed ...Reservation) *reservationRepoStub {
	repo := &reservationRepoStub{items: make(map[string]Reservation)}
	for _, r := range seed {
		repo.items[r.ID] = r.clone()
		repo.order = append(repo.order, r.ID)
	}
	return repo
}

func (r *reservationRepoStub) CreateReservation(ctx context.Context, reservation Reservation, guard ReservationGuard) (Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if guard != nil {
		if err := guard(r.listLocked(ReservationFilter{Date: reservation.Date})); err != nil {
			return Reservation{}, err
		}
	}
	reservation.Version = 1
	r.items[reservation.ID] = reservation.clone()
	r.order = append(r.order, reservation.ID)
	return reservation.clone(), nil
}

func (r *reservationRepoStub) GetReservation(ctx context.Context, id string) (Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return Reservation{}, persistence.ErrNotFound
	}
	return item.clone(), nil
}

func (r *reservationRepoStub) UpdateReservation(ctx context.Context, reservation Reservation) (Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return Reservation{}, r.updateErr
	}
	current, ok := r.items[reservation.ID]
	if !ok {
		return Reservation{}, persistence.ErrNotFound
	}
	if current.Version != reservation.Version {
		return Reservation{}, persistence.ErrStale
	}
	reservation.Version++
	r.items[reservation.ID] = reservation.clone()
	r.updates++
	return reservation.clone(), nil
}

func (r *reservationRepoStub) ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listLocked(filter), nil
}

func (r *reservationRepoStub) listLocked(filter ReservationFilter) []Reservation {
	out := make([]Reservation, 0)
	for _, id := range r.order {
		item := r.items[id]
		if !filter.Date.IsZero() && item.Date != filter.Date {
			continue
		}
		if filter.OwnerID != "" && item.OwnerID != filter.OwnerID {
			continue
		}
		out = append(out, item.clone())
	}
	return out
}

func (r *reservationRepoStub) get(t *testing.T, id string) Reservation {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		t.Fatalf("reservation %s not stored", id)
	}
	return item.clone()
}

type seatRepoStub struct {
	mu      sync.Mutex
	seats   []seating.Seat
	moves   []seating.Move
	seeded  bool
	listErr error
	lists   int
}

func newSeatRepoStub(seats ...seating.Seat) *seatRepoStub {
	if len(seats) == 0 {
		seats = seating.DefaultCatalog()
	}
	return &seatRepoStub{seats: append([]seating.Seat(nil), seats...)}
}

func (s *seatRepoStub) ListSeats(ctx context.Context, includeInactive bool) ([]seating.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]seating.Seat, 0, len(s.seats))
	for _, seat := range s.seats {
		if seat.Active || includeInactive {
			out = append(out, seat)
		}
	}
	return out, nil
}

func (s *seatRepoStub) UpsertSeat(ctx context.Context, seat seating.Seat) (seating.Seat, error) {
	for i := range s.seats {
		if s.seats[i].ID == seat.ID {
			s.seats[i] = seat
			return seat, nil
		}
	}
	s.seats = append(s.seats, seat)
	return seat, nil
}

func (s *seatRepoStub) DeactivateSeat(ctx context.Context, id string) error {
	for i := range s.seats {
		if s.seats[i].ID == id {
			s.seats[i].Active = false
			return nil
		}
	}
	return persistence.ErrNotFound
}

func (s *seatRepoStub) MoveSeats(ctx context.Context, moves []seating.Move) error {
	s.moves = append(s.moves, moves...)
	targets := make(map[string]seating.Move, len(moves))
	for _, move := range moves {
		targets[move.From] = move
	}
	kept := s.seats[:0]
	for _, seat := range s.seats {
		if !seat.Active {
			continue
		}
		if move, ok := targets[seat.ID]; ok {
			seat.ID = move.To
			seat.Row = move.NewRow
		}
		kept = append(kept, seat)
	}
	s.seats = kept
	return nil
}

func (s *seatRepoStub) SeedSeats(ctx context.Context, seats []seating.Seat) (bool, error) {
	if s.seeded {
		return false, nil
	}
	s.seeded = true
	s.seats = append(s.seats, seats...)
	return true, nil
}

type seatBlockRepoStub struct {
	blocks []SeatBlock
}

func (s *seatBlockRepoStub) CreateSeatBlock(ctx context.Context, block SeatBlock) (SeatBlock, error) {
	s.blocks = append(s.blocks, block)
	return block, nil
}

func (s *seatBlockRepoStub) GetSeatBlock(ctx context.Context, id string) (SeatBlock, error) {
	for _, block := range s.blocks {
		if block.ID == id {
			return block, nil
		}
	}
	return SeatBlock{}, persistence.ErrNotFound
}

func (s *seatBlockRepoStub) DeactivateSeatBlock(ctx context.Context, id string) error {
	for i := range s.blocks {
		if s.blocks[i].ID == id {
			s.blocks[i].Active = false
			return nil
		}
	}
	return persistence.ErrNotFound
}

func (s *seatBlockRepoStub) ListSeatBlocks(ctx context.Context, date scheduler.Date, seatID string) ([]SeatBlock, error) {
	out := make([]SeatBlock, 0)
	for _, block := range s.blocks {
		if !block.Active || block.Date != date {
			continue
		}
		if seatID != "" && block.SeatID != seatID {
			continue
		}
		out = append(out, block)
	}
	return out, nil
}

type fixedScheduleRepoStub struct {
	entries []FixedScheduleEntry
}

func (f *fixedScheduleRepoStub) ListFixedSchedule(ctx context.Context) ([]FixedScheduleEntry, error) {
	out := make([]FixedScheduleEntry, 0, len(f.entries))
	for _, entry := range f.entries {
		if entry.Active {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (f *fixedScheduleRepoStub) GetFixedScheduleEntry(ctx context.Context, id string) (FixedScheduleEntry, error) {
	for _, entry := range f.entries {
		if entry.ID == id {
			return entry, nil
		}
	}
	return FixedScheduleEntry{}, persistence.ErrNotFound
}

func (f *fixedScheduleRepoStub) UpsertFixedScheduleEntry(ctx context.Context, entry FixedScheduleEntry) (FixedScheduleEntry, error) {
	for i := range f.entries {
		if f.entries[i].ID == entry.ID {
			f.entries[i] = entry
			return entry, nil
		}
	}
	f.entries = append(f.entries, entry)
	return entry, nil
}

func (f *fixedScheduleRepoStub) DeactivateFixedScheduleEntry(ctx context.Context, id string) error {
	for i := range f.entries {
		if f.entries[i].ID == id {
			f.entries[i].Active = false
			return nil
		}
	}
	return persistence.ErrNotFound
}

type classRepoStub struct {
	classes []Class
}

func (c *classRepoStub) CreateClass(ctx context.Context, class Class) (Class, error) {
	c.classes = append(c.classes, class)
	return class, nil
}

func (c *classRepoStub) GetClass(ctx context.Context, id string) (Class, error) {
	for _, class := range c.classes {
		if class.ID == id {
			return class, nil
		}
	}
	return Class{}, persistence.ErrNotFound
}

func (c *classRepoStub) UpdateClass(ctx context.Context, class Class) (Class, error) {
	for i := range c.classes {
		if c.classes[i].ID == class.ID {
			c.classes[i] = class
			return class, nil
		}
	}
	return Class{}, persistence.ErrNotFound
}

func (c *classRepoStub) DeleteClass(ctx context.Context, id string) error {
	for i := range c.classes {
		if c.classes[i].ID == id {
			c.classes = append(c.classes[:i], c.classes[i+1:]...)
			return nil
		}
	}
	return persistence.ErrNotFound
}

func (c *classRepoStub) ListClasses(ctx context.Context, filter ClassFilter) ([]Class, error) {
	out := make([]Class, 0)
	for _, class := range c.classes {
		if !filter.Date.IsZero() && class.Date != filter.Date {
			continue
		}
		if filter.TeacherID != "" && class.TeacherID != filter.TeacherID {
			continue
		}
		out = append(out, class)
	}
	return out, nil
}

type notificationRepoStub struct {
	items []Notification
}

func (n *notificationRepoStub) CreateNotification(ctx context.Context, notification Notification) (Notification, error) {
	n.items = append(n.items, notification)
	return notification, nil
}

func (n *notificationRepoStub) GetNotification(ctx context.Context, id string) (Notification, error) {
	for _, item := range n.items {
		if item.ID == id {
			return item, nil
		}
	}
	return Notification{}, persistence.ErrNotFound
}

func (n *notificationRepoStub) ListNotifications(ctx context.Context, recipientID string, limit int) ([]Notification, error) {
	out := make([]Notification, 0)
	for _, item := range n.items {
		if item.RecipientID == recipientID {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (n *notificationRepoStub) MarkNotificationRead(ctx context.Context, id string) error {
	for i := range n.items {
		if n.items[i].ID == id {
			n.items[i].Read = true
			return nil
		}
	}
	return persistence.ErrNotFound
}

type notifierStub struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (n *notifierStub) Notify(ctx context.Context, notification Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return n.err
}

func (n *notifierStub) titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.sent))
	for i, sent := range n.sent {
		out[i] = sent.Title
	}
	return out
}

type auditorStub struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (a *auditorStub) Record(ctx context.Context, entry AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return a.err
}

func (a *auditorStub) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.entries))
	for i, entry := range a.entries {
		out[i] = entry.Action
	}
	return out
}

type lockerStub struct {
	mu    sync.Mutex
	keys  []string
	err   error
	inner sync.Mutex
}

func (l *lockerStub) Lock(ctx context.Context, key string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.mu.Unlock()
	l.inner.Lock()
	return l.inner.Unlock, nil
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	next := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		next++
		return fmt.Sprintf("%s-%d", prefix, next)
	}
}

type testClock struct {
	mu      sync.Mutex
	current time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{current: t}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// monday is 2025-06-16, a Monday.
var monday = scheduler.MustParseDate("2025-06-16")

func on(date scheduler.Date, hour, minute int) time.Time {
	return date.At(hour, minute, time.UTC)
}

type reservationHarness struct {
	clock        *testClock
	reservations *reservationRepoStub
	seats        *seatRepoStub
	blocks       *seatBlockRepoStub
	fixed        *fixedScheduleRepoStub
	classes      *classRepoStub
	notifier     *notifierStub
	auditor      *auditorStub
	locker       *lockerStub

	seatService  *SeatService
	fixedService *FixedScheduleService
	classService *ClassService
	attendance   *AttendanceService
	service      *ReservationService
}

func newReservationHarness(t *testing.T, now time.Time, seed ...Reservation) *reservationHarness {
	t.Helper()
	h := &reservationHarness{
		clock:        newTestClock(now),
		reservations: newReservationRepoStub(seed...),
		seats:        newSeatRepoStub(),
		blocks:       &seatBlockRepoStub{},
		fixed:        &fixedScheduleRepoStub{},
		classes:      &classRepoStub{},
		notifier:     &notifierStub{},
		auditor:      &auditorStub{},
		locker:       &lockerStub{},
	}
	ids := sequentialIDs("id")
	sinks := Sinks{Notifier: h.notifier, Auditor: h.auditor, IDGenerator: ids}
	policy := DefaultPolicy()

	h.seatService = NewSeatService(h.seats, h.blocks, sinks, ids, h.clock.Now)
	h.fixedService = NewFixedScheduleService(h.fixed, nil, sinks, ids, h.clock.Now)
	h.classService = NewClassService(h.classes, h.fixedService, sinks, ids, h.clock.Now)
	h.attendance = NewAttendanceService(h.reservations, sinks, policy, h.clock.Now)
	h.service = NewReservationService(ReservationDeps{
		Reservations:  h.reservations,
		Seats:         h.seatService,
		FixedSchedule: h.fixedService,
		Classes:       h.classService,
		Attendance:    h.attendance,
		Locker:        h.locker,
		Sinks:         sinks,
		Policy:        policy,
		IDGenerator:   sequentialIDs("reservation"),
		Now:           h.clock.Now,
	})
	return h
}

func student(id string) Principal {
	return Principal{UserID: id, DisplayName: "Student " + id, Role: RoleStudent}
}

func admin() Principal {
	return Principal{UserID: "admin-1", DisplayName: "Admin", Role: RoleAdmin}
}

func booking(date scheduler.Date, startHour, startMinute, endHour, endMinute int, seats ...string) ReservationInput {
	return ReservationInput{
		Date:    date.String(),
		Start:   on(date, startHour, startMinute),
		End:     on(date, endHour, endMinute),
		SeatIDs: seats,
	}
}

func approvedReservation(id, owner string, date scheduler.Date, startHour, endHour int, seats ...string) Reservation {
	start := on(date, startHour, 0)
	return Reservation{
		ID:                   id,
		OwnerID:              owner,
		OwnerRole:            RoleStudent,
		Date:                 date,
		Start:                start,
		End:                  on(date, endHour, 0),
		SeatIDs:              seats,
		Status:               StatusApproved,
		AttendanceDeadlineAt: timePtr(start.Add(15 * time.Minute)),
		Version:              1,
	}
}

func scheduleWindow(date scheduler.Date, startHour, endHour int) scheduler.Interval {
	return scheduler.Interval{Start: on(date, startHour, 0), End: on(date, endHour, 0)}
}
