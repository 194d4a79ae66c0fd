package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/lab-scheduler/internal/config"
	httptransport "github.com/example/lab-scheduler/internal/http"
	"github.com/example/lab-scheduler/internal/jobs"
	"github.com/example/lab-scheduler/internal/logging"
	"github.com/example/lab-scheduler/internal/persistence/sqlstore"
	"github.com/example/lab-scheduler/internal/scheduler"
)

type rootOptions struct {
	envFiles []string
}

func (o *rootOptions) load(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.envFiles...)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.New(cfg.LogLevel, cmd.ErrOrStderr()), nil
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "labscheduler",
		Short:         "Computer lab seat and class reservation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files read before the environment (default .env)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newSeedCommand(opts))
	cmd.AddCommand(newSweepCommand(opts))
	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the attendance sweep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, logger)
		},
	}
}

func runServe(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	lab, err := startApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer lab.Close()

	seeded, count, err := lab.seedCatalog(ctx, cfg.SeatCatalogFile)
	if err != nil {
		return fmt.Errorf("seed seat catalog: %w", err)
	}
	if seeded {
		logger.Info("seat catalog seeded", "seats", count)
	}

	sweeper, err := jobs.New(lab.services.attendance, jobs.Config{
		Spec:     cfg.SweepSchedule,
		Location: cfg.Location,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	sweeper.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sweeper.Stop(stopCtx)
	}()

	services := lab.services
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Reservations:  httptransport.NewReservationHandler(services.reservations, services.attendance, cfg.Location, logger),
		Seats:         httptransport.NewSeatHandler(services.seats, cfg.Location, logger),
		FixedSchedule: httptransport.NewFixedScheduleHandler(services.fixedSchedule, logger),
		Classes:       httptransport.NewClassHandler(services.classes, cfg.Location, logger),
		Notifications: httptransport.NewNotificationHandler(services.notifications, logger),
		Identity:      httptransport.NewJWTVerifier(cfg.JWTSecret, time.Now),
		Health:        lab.store,
		Logger:        logger,
		Middleware:    []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("lab scheduler API listening", "addr", server.Addr, "timezone", cfg.Location.String())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	var statusOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			store, err := sqlstore.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, sqlstore.WithLogger(logger))
			if err != nil {
				return err
			}
			defer store.Close()

			if !statusOnly {
				applied, err := store.Migrate(ctx)
				if err != nil {
					return fmt.Errorf("apply migrations: %w", err)
				}
				fmt.Fprintf(out, "applied %d migrations\n", applied)
			}

			status, err := store.MigrationStatus(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "current version: %s\n", status.CurrentVersion)
			for _, pending := range status.Pending {
				fmt.Fprintf(out, "pending: %s %s\n", pending.Version, pending.Description)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "report migration state without applying anything")
	return cmd
}

func newSeedCommand(opts *rootOptions) *cobra.Command {
	var catalog string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Install the seat catalog on a fresh database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if catalog == "" {
				catalog = cfg.SeatCatalogFile
			}
			lab, err := startApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer lab.Close()

			seeded, count, err := lab.seedCatalog(cmd.Context(), catalog)
			if err != nil {
				return err
			}
			if seeded {
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d seats\n", count)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "seat catalog already initialized")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&catalog, "catalog", "", "YAML seat catalog file (default LAB_SEAT_CATALOG or the built-in layout)")
	return cmd
}

func newSweepCommand(opts *rootOptions) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Apply attendance automation to one date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			lab, err := startApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer lab.Close()

			var changed int
			if date == "" {
				runner, err := jobs.New(lab.services.attendance, jobs.Config{Spec: jobs.Off, Location: cfg.Location, Logger: logger})
				if err != nil {
					return err
				}
				changed, err = runner.RunOnce(cmd.Context())
				if err != nil {
					return err
				}
			} else {
				day, err := scheduler.ParseDate(date)
				if err != nil {
					return err
				}
				changed, err = lab.services.attendance.SweepDate(cmd.Context(), day)
				if err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %d reservations\n", changed)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "date to sweep as YYYY-MM-DD (default today in LAB_TIMEZONE)")
	return cmd
}
