// Package jobs runs the periodic attendance sweep.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/example/lab-scheduler/internal/scheduler"
)

// Off disables the sweep schedule.
const Off = "off"

// Sweeper applies attendance automation to every reservation on a date.
type Sweeper interface {
	SweepDate(ctx context.Context, date scheduler.Date) (int, error)
}

// Scheduler triggers a sweep of the current date on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	now     func() time.Time
	loc     *time.Location
	logger  *slog.Logger
	timeout time.Duration
}

// Config configures a Scheduler.
type Config struct {
	// Spec is a cron expression or descriptor such as "@every 1m". "off" or
	// an empty value disables scheduling; RunOnce still works.
	Spec     string
	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger
	// Timeout bounds a single sweep, default 30s.
	Timeout time.Duration
}

// New builds a scheduler. An invalid spec is an error.
func New(sweeper Sweeper, cfg Config) (*Scheduler, error) {
	if sweeper == nil {
		return nil, fmt.Errorf("jobs: sweeper is required")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	s := &Scheduler{
		sweeper: sweeper,
		now:     cfg.Now,
		loc:     cfg.Location,
		logger:  cfg.Logger.With("component", "AttendanceSweep"),
		timeout: cfg.Timeout,
	}

	spec := strings.TrimSpace(cfg.Spec)
	if spec == "" || strings.EqualFold(spec, Off) {
		return s, nil
	}

	cronLogger := cronLog{logger: s.logger}
	c := cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	if _, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		_, _ = s.RunOnce(ctx)
	}); err != nil {
		return nil, fmt.Errorf("jobs: invalid sweep schedule %q: %w", spec, err)
	}
	s.cron = c
	return s, nil
}

// Enabled reports whether a schedule is registered.
func (s *Scheduler) Enabled() bool {
	return s != nil && s.cron != nil
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	if !s.Enabled() {
		s.logger.Info("attendance sweep disabled")
		return
	}
	s.cron.Start()
	s.logger.Info("attendance sweep scheduled", "next_run", s.cron.Entries()[0].Next)
}

// Stop halts the schedule and waits for a running sweep or ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce sweeps today's date in the configured location.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	date := scheduler.DateOf(s.now(), s.loc)
	changed, err := s.sweeper.SweepDate(ctx, date)
	if err != nil {
		s.logger.WarnContext(ctx, "attendance sweep failed", "date", date.String(), "error", err)
		return changed, err
	}
	if changed > 0 {
		s.logger.InfoContext(ctx, "attendance sweep applied", "date", date.String(), "changed", changed)
	}
	return changed, nil
}

// cronLog adapts slog to cron.Logger.
type cronLog struct {
	logger *slog.Logger
}

func (l cronLog) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLog) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
