package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/example/lab-scheduler/internal/application"
	"github.com/example/lab-scheduler/internal/config"
	"github.com/example/lab-scheduler/internal/lock"
	"github.com/example/lab-scheduler/internal/notify"
	"github.com/example/lab-scheduler/internal/persistence/sqlstore"
	"github.com/example/lab-scheduler/internal/recurrence"
	"github.com/example/lab-scheduler/internal/seating"
)

// labServices is the service graph the commands run against.
type labServices struct {
	reservations  *application.ReservationService
	attendance    *application.AttendanceService
	seats         *application.SeatService
	fixedSchedule *application.FixedScheduleService
	classes       *application.ClassService
	notifications *application.NotificationService
}

// app owns the external resources opened for one command.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *sqlstore.Store
	redis     *redis.Client
	publisher *notify.Publisher
	services  labServices
}

func policyFromConfig(cfg config.Config) application.Policy {
	policy := application.DefaultPolicy()
	policy.MaxBookingsPerDay = cfg.MaxBookingsPerDay
	policy.LabCapacity = cfg.LabCapacity
	policy.ConfirmationWindow = cfg.ConfirmationWindow
	if cfg.Location != nil {
		policy.Location = cfg.Location
	}
	return policy
}

// openStore connects to the configured database and applies pending
// migrations.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sqlstore.Store, error) {
	store, err := sqlstore.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, sqlstore.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	applied, err := store.Migrate(ctx)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info("database ready", "driver", cfg.DatabaseDriver, "migrations_applied", applied)
	return store, nil
}

// startApp opens storage and the optional redis and amqp backends, then
// wires the services. Backends that cannot be reached are skipped with a
// warning.
func startApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	rt := &app{cfg: cfg, logger: logger, store: store}

	var locker application.Locker = lock.NewLocalLocker()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warn("redis unavailable, using in-process locks", "addr", cfg.RedisAddr, "error", err)
			_ = client.Close()
		} else {
			rt.redis = client
			locker = lock.NewRedisLocker(client, lock.RedisOptions{Logger: logger})
			logger.Info("using redis locks", "addr", cfg.RedisAddr)
		}
	}

	if cfg.AMQPURL != "" {
		publisher, err := notify.Dial(cfg.AMQPURL, logger)
		if err != nil {
			logger.Warn("message broker unavailable, events stay local", "error", err)
		} else {
			rt.publisher = publisher
		}
	}

	rt.services = buildServices(rt, locker, time.Now, uuid.NewString)
	return rt, nil
}

func buildServices(rt *app, locker application.Locker, now func() time.Time, ids func() string) labServices {
	logger := rt.logger
	policy := policyFromConfig(rt.cfg)

	inbox := application.NewNotificationServiceWithLogger(newNotificationRepositoryAdapter(rt.store), now, logger)
	notifiers := []application.Notifier{inbox}
	auditors := []application.Auditor{newAuditLogAdapter(rt.store)}
	if rt.publisher != nil {
		notifiers = append(notifiers, notify.NewQueueNotifier(rt.publisher, rt.cfg.NotificationQueue))
		auditors = append(auditors, notify.NewQueueAuditor(rt.publisher, rt.cfg.AuditQueue))
	}
	sinks := application.Sinks{
		Notifier:    notify.Notifiers(notifiers...),
		Auditor:     notify.Auditors(auditors...),
		IDGenerator: ids,
	}

	reservationRepo := newReservationRepositoryAdapter(rt.store)
	fixed := application.NewFixedScheduleServiceWithLogger(newFixedScheduleRepositoryAdapter(rt.store), recurrence.NewEngine(policy.Location), sinks, ids, now, logger)
	seats := application.NewSeatServiceWithLogger(newSeatRepositoryAdapter(rt.store), newSeatBlockRepositoryAdapter(rt.store), sinks, ids, now, logger).WithLocation(policy.Location)
	classes := application.NewClassServiceWithLogger(newClassRepositoryAdapter(rt.store), fixed, sinks, ids, now, logger).WithLocation(policy.Location)
	attendance := application.NewAttendanceServiceWithLogger(reservationRepo, sinks, policy, now, logger)
	reservations := application.NewReservationService(application.ReservationDeps{
		Reservations:  reservationRepo,
		Seats:         seats,
		FixedSchedule: fixed,
		Classes:       classes,
		Attendance:    attendance,
		Locker:        locker,
		Sinks:         sinks,
		Policy:        policy,
		IDGenerator:   ids,
		Now:           now,
		Logger:        logger,
	})

	return labServices{
		reservations:  reservations,
		attendance:    attendance,
		seats:         seats,
		fixedSchedule: fixed,
		classes:       classes,
		notifications: inbox,
	}
}

func (rt *app) Close() {
	if rt.publisher != nil {
		if err := rt.publisher.Close(); err != nil {
			rt.logger.Warn("failed to close message broker connection", "error", err)
		}
	}
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil {
			rt.logger.Warn("failed to close redis client", "error", err)
		}
	}
	if err := rt.store.Close(); err != nil {
		rt.logger.Error("failed to close storage", "error", err)
	}
}

// loadCatalog reads the seat catalog file, or returns the built-in layout
// when path is empty.
func loadCatalog(path string) ([]seating.Seat, error) {
	if path == "" {
		return seating.DefaultCatalog(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seat catalog: %w", err)
	}
	defer f.Close()
	seats, err := seating.LoadCatalog(f)
	if err != nil {
		return nil, fmt.Errorf("load seat catalog %s: %w", path, err)
	}
	return seats, nil
}

func (rt *app) seedCatalog(ctx context.Context, path string) (bool, int, error) {
	seats, err := loadCatalog(path)
	if err != nil {
		return false, 0, err
	}
	seeded, err := rt.services.seats.SeedSeatCatalog(ctx, seats)
	return seeded, len(seats), err
}
