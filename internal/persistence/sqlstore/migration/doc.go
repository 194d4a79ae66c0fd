// Package migration applies versioned SQL files to a database/sql handle.
//
// Migration files are named {version}_{description}.sql (for example
// "001_initial_schema.sql") and are read from any fs.FS, typically an
// embedded directory. Applied versions are tracked in a schema_migrations
// table so each file runs once. Every migration runs in its own transaction
// together with its version record.
//
// Example usage:
//
//	runner := migration.NewRunner(db, migrations.Files, logger)
//	if err := runner.Up(ctx); err != nil {
//		return err
//	}
package migration
