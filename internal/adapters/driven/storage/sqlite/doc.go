// Package sqlite provides a SQLite-based implementation of driven.TokenStore.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO, enabling easy cross-compilation.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory (NNN_name.up.sql). Applied versions are recorded in
// schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.gspace/tokens.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
