// Package database opens the shared SQL handle used by the project store and
// the SQL queue backend.
//
// Two drivers are supported: modernc.org/sqlite for single-host deployments
// (WAL journal, busy timeout, retry on SQLITE_BUSY) and pgx for PostgreSQL.
// Queries are written with ? placeholders and rebound to $n for PostgreSQL.
// Each consumer registers its own embedded schema through Migrate, which
// records a version per component and refuses to run against a mismatched
// database.
package database
