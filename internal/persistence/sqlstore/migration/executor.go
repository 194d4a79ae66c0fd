package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const versionTableSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version VARCHAR(32) NOT NULL PRIMARY KEY,
	description VARCHAR(255) NOT NULL,
	checksum VARCHAR(64) NOT NULL,
	applied_at VARCHAR(40) NOT NULL,
	execution_ms BIGINT NOT NULL
)`

// Executor runs migration statements and maintains schema_migrations.
type Executor struct {
	db  *sql.DB
	now func() time.Time
}

// NewExecutor creates an Executor over db.
func NewExecutor(db *sql.DB) *Executor {
	return &Executor{db: db, now: time.Now}
}

// InitializeVersionTable creates schema_migrations when missing.
func (e *Executor) InitializeVersionTable(ctx context.Context) error {
	if _, err := e.db.ExecContext(ctx, versionTableSQL); err != nil {
		return NewDatabaseError("", versionTableSQL, "create schema_migrations table", err)
	}
	return nil
}

// Execute runs every statement of migration and records it, in one
// transaction.
func (e *Executor) Execute(ctx context.Context, migration Migration) (err error) {
	statements := SplitStatements(migration.SQL)
	if len(statements) == 0 {
		return NewMigrationError(migration.Version, migration.FilePath, "parse SQL",
			fmt.Errorf("%w: no SQL statements found", ErrInvalidMigrationFile))
	}

	started := e.now()
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return NewDatabaseError(migration.Version, "", "begin transaction", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rollbackErr := ignoreDone(tx.Rollback()); rollbackErr != nil {
			err = errors.Join(err, rollbackErr)
		}
	}()

	for i, stmt := range statements {
		if _, execErr := tx.ExecContext(ctx, stmt); execErr != nil {
			return NewDatabaseError(migration.Version, stmt, fmt.Sprintf("execute statement %d", i+1), execErr)
		}
	}

	const insertSQL = `INSERT INTO schema_migrations (version, description, checksum, applied_at, execution_ms) VALUES (?, ?, ?, ?, ?)`
	elapsed := e.now().Sub(started)
	if _, execErr := tx.ExecContext(ctx, insertSQL,
		migration.Version,
		migration.Description,
		migration.Checksum,
		e.now().UTC().Format(time.RFC3339),
		elapsed.Milliseconds(),
	); execErr != nil {
		return NewDatabaseError(migration.Version, insertSQL, "record migration", execErr)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return NewDatabaseError(migration.Version, "", "commit transaction", commitErr)
	}
	return nil
}

// Applied lists the recorded migrations in version order.
func (e *Executor) Applied(ctx context.Context) ([]AppliedMigration, error) {
	const querySQL = `SELECT version, description, checksum, applied_at, execution_ms FROM schema_migrations`
	rows, err := e.db.QueryContext(ctx, querySQL)
	if err != nil {
		return nil, NewDatabaseError("", querySQL, "list applied migrations", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			item        AppliedMigration
			appliedAt   string
			executionMS int64
		)
		if err := rows.Scan(&item.Version, &item.Description, &item.Checksum, &appliedAt, &executionMS); err != nil {
			return nil, NewDatabaseError("", querySQL, "scan applied migration", err)
		}
		if parsed, parseErr := time.Parse(time.RFC3339, appliedAt); parseErr == nil {
			item.AppliedAt = parsed
		}
		item.ExecutionTime = time.Duration(executionMS) * time.Millisecond
		applied = append(applied, item)
	}
	if err := rows.Err(); err != nil {
		return nil, NewDatabaseError("", querySQL, "iterate applied migrations", err)
	}
	sortApplied(applied)
	return applied, nil
}

// SplitStatements splits a migration body on semicolons, dropping comment
// lines and empty statements.
func SplitStatements(sqlText string) []string {
	var statements []string
	for _, stmt := range strings.Split(sqlText, ";") {
		lines := strings.Split(stmt, "\n")
		kept := make([]string, 0, len(lines))
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, "--") {
				kept = append(kept, line)
			}
		}
		if len(kept) > 0 {
			statements = append(statements, strings.Join(kept, "\n"))
		}
	}
	return statements
}

func ignoreDone(err error) error {
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}
