// Package sqlstore implements the persistence repositories on database/sql.
// SQLite (modernc.org/sqlite) is the default driver; MySQL shares the same
// portable schema.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/example/lab-scheduler/internal/persistence"
	"github.com/example/lab-scheduler/internal/persistence/sqlstore/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the embedded migration files.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Dialect selects driver specific SQL.
type Dialect string

const (
	DialectSQLite Dialect = "sqlite"
	DialectMySQL  Dialect = "mysql"
)

// ParseDialect validates a configured driver name.
func ParseDialect(driver string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(driver))) {
	case DialectSQLite, "":
		return DialectSQLite, nil
	case DialectMySQL:
		return DialectMySQL, nil
	default:
		return "", fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}

// lockRows returns the clause that locks the rows a guarded read selects.
// SQLite serialises writers on its single connection instead.
func (d Dialect) lockRows() string {
	if d == DialectMySQL {
		return " FOR UPDATE"
	}
	return ""
}

// Store implements every persistence repository over one *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
	retry   RetryConfig
	logger  *slog.Logger
	now     func() time.Time
}

var (
	_ persistence.ReservationRepository   = (*Store)(nil)
	_ persistence.SeatRepository          = (*Store)(nil)
	_ persistence.SeatBlockRepository     = (*Store)(nil)
	_ persistence.FixedScheduleRepository = (*Store)(nil)
	_ persistence.ClassRepository         = (*Store)(nil)
	_ persistence.NotificationRepository  = (*Store)(nil)
	_ persistence.AuditRepository         = (*Store)(nil)
)

// Option customises a Store.
type Option func(*Store)

// WithLogger sets the logger used for retries and migrations.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRetryConfig overrides the transient error retry policy.
func WithRetryConfig(config RetryConfig) Option {
	return func(s *Store) {
		s.retry = config
	}
}

// WithClock overrides the time source used for bookkeeping columns.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open connects to the database named by driver and dsn.
func Open(driver, dsn string, opts ...Option) (*Store, error) {
	dialect, err := ParseDialect(driver)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlstore: empty dsn")
	}
	if dialect == DialectMySQL {
		if _, err := mysql.ParseDSN(dsn); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid mysql dsn: %w", err)
		}
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	store := New(db, dialect, opts...)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlstore: enable foreign keys: %w", err)
		}
	}
	return store, nil
}

// New wraps an existing handle.
func New(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	store := &Store{
		db:      db,
		dialect: dialect,
		retry:   DefaultRetryConfig(),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect reports the SQL dialect in use.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies pending schema migrations and returns how many ran.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	return migration.NewRunner(s.db, Migrations(), s.logger).Up(ctx)
}

// MigrationStatus reports applied and pending migrations.
func (s *Store) MigrationStatus(ctx context.Context) (migration.Status, error) {
	return migration.NewRunner(s.db, Migrations(), s.logger).Status(ctx)
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// withTx runs fn in a transaction, retrying the whole transaction on
// transient lock errors.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	return s.withRetry(ctx, op, func() (err error) {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()
		if err = fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func (s *Store) timestamp() string {
	return formatTimestamp(s.now())
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
