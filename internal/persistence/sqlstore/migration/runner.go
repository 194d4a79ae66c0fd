package migration

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"time"
)

// Runner applies pending migrations from a file system.
type Runner struct {
	executor *Executor
	files    fs.FS
	logger   *slog.Logger
}

// NewRunner builds a Runner over db reading migrations from files.
func NewRunner(db *sql.DB, files fs.FS, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{executor: NewExecutor(db), files: files, logger: logger}
}

// Up applies every pending migration in version order and returns how many
// ran.
func (r *Runner) Up(ctx context.Context) (int, error) {
	started := time.Now()
	status, err := r.Status(ctx)
	if err != nil {
		return 0, err
	}
	if len(status.Pending) == 0 {
		r.logger.InfoContext(ctx, "database schema up to date", "version", status.CurrentVersion)
		return 0, nil
	}

	r.logger.InfoContext(ctx, "applying migrations", "pending", len(status.Pending), "from_version", status.CurrentVersion)
	for i, migration := range status.Pending {
		migrationStart := time.Now()
		if err := r.executor.Execute(ctx, migration); err != nil {
			r.logger.ErrorContext(ctx, "migration failed",
				"version", migration.Version,
				"file", migration.FilePath,
				"error", err,
			)
			return i, err
		}
		r.logger.InfoContext(ctx, "migration applied",
			"version", migration.Version,
			"description", migration.Description,
			"duration", time.Since(migrationStart),
		)
	}
	r.logger.InfoContext(ctx, "migrations complete", "applied", len(status.Pending), "duration", time.Since(started))
	return len(status.Pending), nil
}

// Status reports applied and pending migrations after validating that the
// files and the version table agree.
func (r *Runner) Status(ctx context.Context) (Status, error) {
	if err := r.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, err
	}
	available, err := Scan(r.files)
	if err != nil {
		return Status{}, err
	}
	applied, err := r.executor.Applied(ctx)
	if err != nil {
		return Status{}, err
	}
	if err := validateSequence(available, applied); err != nil {
		return Status{}, err
	}

	appliedSet := make(map[int]struct{}, len(applied))
	for _, item := range applied {
		appliedSet[versionNumber(item.Version)] = struct{}{}
	}
	status := Status{Applied: applied}
	if len(applied) > 0 {
		status.CurrentVersion = applied[len(applied)-1].Version
	}
	for _, migration := range available {
		if _, ok := appliedSet[versionNumber(migration.Version)]; !ok {
			status.Pending = append(status.Pending, migration)
		}
	}
	return status, nil
}

// validateSequence rejects gaps between available versions, applied
// versions without a file and applied files whose content changed.
func validateSequence(available []Migration, applied []AppliedMigration) error {
	byVersion := make(map[int]Migration, len(available))
	for i, migration := range available {
		number := versionNumber(migration.Version)
		if i > 0 && number != versionNumber(available[i-1].Version)+1 {
			return fmt.Errorf("%w: missing migration version %03d in sequence", ErrVersionConflict, versionNumber(available[i-1].Version)+1)
		}
		byVersion[number] = migration
	}
	for _, item := range applied {
		migration, ok := byVersion[versionNumber(item.Version)]
		if !ok {
			return fmt.Errorf("%w: applied migration %s not found in available migrations", ErrVersionConflict, item.Version)
		}
		if item.Checksum != "" && item.Checksum != migration.Checksum {
			return NewMigrationError(item.Version, migration.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}
	return nil
}

func sortApplied(applied []AppliedMigration) {
	sort.Slice(applied, func(i, j int) bool {
		return versionNumber(applied[i].Version) < versionNumber(applied[j].Version)
	})
}
