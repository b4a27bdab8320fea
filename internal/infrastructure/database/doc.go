// Package database provides the SQLite store used by the Tuya BLE bridge.
//
// This package manages:
//   - Database connection with WAL mode so API reads do not block bridge writes
//   - Schema migrations read from an fs.FS (normally migrations.FS)
//   - Connection lifecycle and health checks
//
// Migrations are YYYYMMDD_HHMMSS_name.up.sql files with an optional
// matching .down.sql. Each one is applied in its own transaction and
// recorded in schema_migrations.
//
// Usage:
//
//	db, err := database.Open(ctx, database.ConfigFrom(cfg.Database, migrations.FS))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
