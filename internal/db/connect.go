// Package db opens the relational database shared by the document store and
// the submission log.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// DriverName maps a configured driver to the database/sql driver name.
func DriverName(driver Driver) (string, error) {
	switch driver {
	case DriverSQLite:
		return "sqlite", nil
	case DriverPostgres:
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported driver: %s", driver)
	}
}

func defaultDSN(driver Driver) string {
	if driver == DriverPostgres {
		return "postgres://localhost:5432/assessments?sslmode=disable"
	}
	return "file:assessments.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// Open connects, pings and applies the schema.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	name, err := DriverName(driver)
	if err != nil {
		return nil, err
	}
	if dsn == "" {
		dsn = defaultDSN(driver)
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// single writer keeps per-path updates serialised
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := EnsureSchema(ctx, db, driver); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}
	return db, nil
}

// schema is rendered per driver: {bool} and {real} become native types.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
  path       TEXT PRIMARY KEY,
  data       TEXT NOT NULL,
  version    BIGINT NOT NULL DEFAULT 1,
  updated_at BIGINT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS submission_log (
  id             TEXT PRIMARY KEY,
  student_key    TEXT NOT NULL,
  course_id      TEXT NOT NULL,
  assessment_id  TEXT NOT NULL,
  answer         TEXT NOT NULL,
  is_correct     {bool} NOT NULL,
  attempt        INTEGER NOT NULL,
  score          {real} NOT NULL DEFAULT 0,
  question_index INTEGER NOT NULL,
  data           TEXT NOT NULL,
  submitted_at   BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS submission_log_by_assessment
  ON submission_log (course_id, assessment_id, student_key)`,
}

// EnsureSchema applies the idempotent application schema one statement at a
// time.
func EnsureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var r *strings.Replacer
	switch driver {
	case DriverSQLite:
		r = strings.NewReplacer("{bool}", "INTEGER", "{real}", "REAL")
	case DriverPostgres:
		r = strings.NewReplacer("{bool}", "BOOLEAN", "{real}", "DOUBLE PRECISION")
	default:
		return fmt.Errorf("unsupported driver: %s", driver)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, r.Replace(stmt)); err != nil {
			return fmt.Errorf("%s: %w", firstLine(stmt), err)
		}
	}
	return nil
}

// Probe returns a readiness check that pings db within timeout.
func Probe(db *sql.DB, timeout time.Duration) func(context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return db.PingContext(ctx)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
