package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/lab-scheduler/internal/application"
	"github.com/example/lab-scheduler/internal/recurrence"
)

// ServiceFactory builds application services with deterministic ids and a
// controllable clock.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Policy      application.Policy
	Logger      *slog.Logger
}

// ServiceFactoryOption configures a ServiceFactory.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Policy:      application.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithPolicy overrides the booking policy.
func WithPolicy(policy application.Policy) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Policy = policy
	}
}

// LabRepositories are the application level repositories the lab services
// need.
type LabRepositories struct {
	Reservations  application.ReservationRepository
	Seats         application.SeatRepository
	SeatBlocks    application.SeatBlockRepository
	FixedSchedule application.FixedScheduleRepository
	Classes       application.ClassRepository
	Notifications application.NotificationRepository
	Auditor       application.Auditor
	Locker        application.Locker
}

// LabServices is a fully wired service graph.
type LabServices struct {
	Reservations  *application.ReservationService
	Attendance    *application.AttendanceService
	Seats         *application.SeatService
	FixedSchedule *application.FixedScheduleService
	Classes       *application.ClassService
	Notifications *application.NotificationService
}

// NewLabServices wires every service over repos the way the binary does:
// notifications land in the inbox service and audits in repos.Auditor.
// Notification and audit ids come from the "event" sequence so entity ids
// stay predictable.
func (f *ServiceFactory) NewLabServices(repos LabRepositories) LabServices {
	now := f.Clock.NowFunc()
	ids := f.IDGenerator.NextFunc()
	policy := f.Policy

	var notifications *application.NotificationService
	sinks := application.Sinks{Auditor: repos.Auditor, IDGenerator: f.IDGenerator.For("event")}
	if repos.Notifications != nil {
		notifications = application.NewNotificationServiceWithLogger(repos.Notifications, now, f.Logger)
		sinks.Notifier = notifications
	}

	engine := recurrence.NewEngine(policy.Location)
	fixed := application.NewFixedScheduleServiceWithLogger(repos.FixedSchedule, engine, sinks, ids, now, f.Logger)
	seats := application.NewSeatServiceWithLogger(repos.Seats, repos.SeatBlocks, sinks, ids, now, f.Logger).WithLocation(policy.Location)
	classes := application.NewClassServiceWithLogger(repos.Classes, fixed, sinks, ids, now, f.Logger).WithLocation(policy.Location)
	attendance := application.NewAttendanceServiceWithLogger(repos.Reservations, sinks, policy, now, f.Logger)
	reservations := application.NewReservationService(application.ReservationDeps{
		Reservations:  repos.Reservations,
		Seats:         seats,
		FixedSchedule: fixed,
		Classes:       classes,
		Attendance:    attendance,
		Locker:        repos.Locker,
		Sinks:         sinks,
		Policy:        policy,
		IDGenerator:   ids,
		Now:           now,
		Logger:        f.Logger,
	})

	return LabServices{
		Reservations:  reservations,
		Attendance:    attendance,
		Seats:         seats,
		FixedSchedule: fixed,
		Classes:       classes,
		Notifications: notifications,
	}
}
