package gradebook

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type dialect struct {
	name string
	// placeholders substituted into the DDL below
	real, serial, stamp, now string
}

var dialects = map[string]dialect{
	"postgres": {name: "postgres", real: "DOUBLE PRECISION", serial: "BIGSERIAL PRIMARY KEY", stamp: "TIMESTAMPTZ", now: "now()"},
	"sqlite":   {name: "sqlite", real: "REAL", serial: "INTEGER PRIMARY KEY AUTOINCREMENT", stamp: "DATETIME", now: "CURRENT_TIMESTAMP"},
}

func (d dialect) render(ddl string) string {
	return strings.NewReplacer("{real}", d.real, "{serial}", d.serial, "{stamp}", d.stamp, "{now}", d.now).Replace(ddl)
}

func lookupDialect(driver string) (dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql", "pgx":
		return dialects["postgres"], nil
	case "sqlite", "sqlite3":
		return dialects["sqlite"], nil
	}
	return dialect{}, fmt.Errorf("unsupported driver %q (expected postgres or sqlite)", driver)
}

// migrations run in order, once each. Append only.
var migrations = []struct {
	name string
	ddl  string
}{
	{"0001_entries", `
CREATE TABLE IF NOT EXISTS gradebook_entries (
  student_key   TEXT NOT NULL,
  course_id     TEXT NOT NULL,
  assessment_id TEXT NOT NULL,
  title         TEXT NOT NULL,
  unit          TEXT NOT NULL DEFAULT '',
  weight        {real} NOT NULL DEFAULT 0,
  score         {real} NOT NULL,
  max_score     {real} NOT NULL,
  updated_at    BIGINT NOT NULL,
  PRIMARY KEY (course_id, assessment_id, student_key)
)`},
	{"0002_course_links", `
CREATE TABLE IF NOT EXISTS lti_course_links (
  course_id        TEXT PRIMARY KEY,
  platform_issuer  TEXT NOT NULL,
  deployment_id    TEXT NOT NULL,
  context_id       TEXT NOT NULL,
  resource_link_id TEXT NOT NULL,
  lineitems_url    TEXT NOT NULL,
  updated_at       {stamp} NOT NULL DEFAULT {now}
)`},
	{"0003_user_map", `
CREATE TABLE IF NOT EXISTS lti_user_map (
  platform_issuer TEXT NOT NULL,
  platform_sub    TEXT NOT NULL,
  local_user_id   TEXT NOT NULL,
  created_at      {stamp} NOT NULL DEFAULT {now},
  PRIMARY KEY (platform_issuer, platform_sub)
)`},
	{"0004_user_map_by_student", `
CREATE INDEX IF NOT EXISTS lti_user_map_by_student ON lti_user_map (platform_issuer, local_user_id)`},
	{"0005_lineitems", `
CREATE TABLE IF NOT EXISTS gradebook_lineitems (
  id              {serial},
  course_id       TEXT NOT NULL,
  assessment_id   TEXT NOT NULL,
  platform_issuer TEXT NOT NULL,
  label           TEXT NOT NULL,
  score_max       {real} NOT NULL,
  line_item_url   TEXT NOT NULL,
  created_at      {stamp} NOT NULL DEFAULT {now},
  updated_at      {stamp} NOT NULL DEFAULT {now},
  UNIQUE (course_id, assessment_id, platform_issuer)
)`},
	{"0006_sync_status", `
CREATE TABLE IF NOT EXISTS grade_sync_status (
  entry_key  TEXT PRIMARY KEY,
  status     TEXT NOT NULL CHECK (status IN ('pending','ok','failed')),
  retries    INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  updated_at {stamp} NOT NULL DEFAULT {now}
)`},
}

// Migrate brings the gradebook tables up to date and returns nil when there
// is nothing left to apply.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	d, err := lookupDialect(driver)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, d.render(`
CREATE TABLE IF NOT EXISTS gradebook_migrations (
  name       TEXT PRIMARY KEY,
  applied_at {stamp} NOT NULL DEFAULT {now}
)`)); err != nil {
		return fmt.Errorf("migrations table: %w", err)
	}

	applied := map[string]bool{}
	rows, err := db.QueryContext(ctx, `SELECT name FROM gradebook_migrations`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		applied[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.name] {
			continue
		}
		if err := apply(ctx, db, m.name, d.render(m.ddl)); err != nil {
			return fmt.Errorf("migration %s (%s): %w", m.name, d.name, err)
		}
	}
	return nil
}

func apply(ctx context.Context, db *sql.DB, name, ddl string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO gradebook_migrations (name) VALUES ($1)`, name); err != nil {
		return err
	}
	return tx.Commit()
}
