package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens the gradebook database and ensures its schema.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	drvName, dsn, err := resolve(driver, dsn)
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// sqlite serializes writers; keep the pool small
		conn.SetMaxOpenConns(4)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if err := ensureSchema(ctx, conn, driver); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return conn, nil
}

// resolve picks the database/sql driver name and a default DSN.
func resolve(driver Driver, dsn string) (string, string, error) {
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = "file:gradebook.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
		}
		return "sqlite", dsn, nil // modernc driver
	case DriverPostgres:
		if dsn == "" {
			dsn = "postgres://localhost:5432/gradebook?sslmode=disable"
		}
		return "pgx", dsn, nil // pgx stdlib driver
	default:
		return "", "", fmt.Errorf("unsupported driver: %s", driver)
	}
}

func ensureSchema(ctx context.Context, conn *sql.DB, driver Driver) error {
	schema := schemaSQLite
	if driver == DriverPostgres {
		schema = schemaPostgres
	}
	_, err := conn.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS sections (
  id INTEGER PRIMARY KEY,
  title TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS assessments (
  id INTEGER PRIMARY KEY,
  section_id INTEGER NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
  kind TEXT NOT NULL,                  -- assignment|quiz
  title TEXT NOT NULL,
  due_at INTEGER,
  position INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS problems (
  assessment_id INTEGER NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
  problem_id INTEGER NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  points REAL,                         -- NULL until weighted
  position INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (assessment_id, problem_id)
);

CREATE TABLE IF NOT EXISTS students (
  section_id INTEGER NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
  user_id INTEGER NOT NULL,
  name TEXT NOT NULL,
  student_no TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (section_id, user_id)
);

CREATE TABLE IF NOT EXISTS grades (
  assessment_id INTEGER NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
  user_id INTEGER NOT NULL,
  problem_id INTEGER NOT NULL,
  score REAL,                          -- NULL = ungraded
  comment TEXT NOT NULL DEFAULT '',
  submitted INTEGER NOT NULL DEFAULT 0,
  submitted_at INTEGER,
  on_time INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (assessment_id, user_id, problem_id)
);

CREATE TABLE IF NOT EXISTS accepted_code (
  assessment_id INTEGER NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
  user_id INTEGER NOT NULL,
  problem_id INTEGER NOT NULL,
  code TEXT NOT NULL,
  PRIMARY KEY (assessment_id, user_id, problem_id)
);

CREATE TABLE IF NOT EXISTS event_log (
  seq INTEGER PRIMARY KEY AUTOINCREMENT, -- BIGSERIAL in Postgres
  id TEXT NOT NULL UNIQUE,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,                     -- e.g., GradeSaved
  key TEXT NOT NULL,                     -- natural key: section/kind/item/cell
  data TEXT NOT NULL,                    -- JSON payload
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS sections (
  id BIGINT PRIMARY KEY,
  title TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS assessments (
  id BIGINT PRIMARY KEY,
  section_id BIGINT NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
  kind TEXT NOT NULL,
  title TEXT NOT NULL,
  due_at BIGINT,
  position INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS problems (
  assessment_id BIGINT NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
  problem_id BIGINT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  points DOUBLE PRECISION,
  position INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (assessment_id, problem_id)
);

CREATE TABLE IF NOT EXISTS students (
  section_id BIGINT NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
  user_id BIGINT NOT NULL,
  name TEXT NOT NULL,
  student_no TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (section_id, user_id)
);

CREATE TABLE IF NOT EXISTS grades (
  assessment_id BIGINT NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
  user_id BIGINT NOT NULL,
  problem_id BIGINT NOT NULL,
  score DOUBLE PRECISION,
  comment TEXT NOT NULL DEFAULT '',
  submitted INTEGER NOT NULL DEFAULT 0,
  submitted_at BIGINT,
  on_time INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (assessment_id, user_id, problem_id)
);

CREATE TABLE IF NOT EXISTS accepted_code (
  assessment_id BIGINT NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
  user_id BIGINT NOT NULL,
  problem_id BIGINT NOT NULL,
  code TEXT NOT NULL,
  PRIMARY KEY (assessment_id, user_id, problem_id)
);

CREATE TABLE IF NOT EXISTS event_log (
  seq BIGSERIAL PRIMARY KEY,
  id TEXT NOT NULL UNIQUE,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`
