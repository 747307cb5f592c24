package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:coe.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/coe?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	tunePool(driver, db)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db: schema: %w", err)
	}
	return db, nil
}

// WithTx runs fn in a transaction, committing when fn returns nil.
func WithTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) (err error) {
	if db == nil {
		return errors.New("db: nil handle")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db: begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if e := tx.Commit(); e != nil {
			err = fmt.Errorf("db: commit: %w", e)
		}
	}()
	err = fn(tx)
	return
}

func tunePool(driver Driver, db *sql.DB) {
	switch driver {
	case DriverSQLite:
		// single writer
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	default:
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(45 * time.Minute)
		db.SetConnMaxIdleTime(15 * time.Minute)
	}
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS rooms (
  room_no TEXT PRIMARY KEY,
  block_name TEXT NOT NULL DEFAULT '',
  capacity INTEGER NOT NULL CHECK (capacity > 0),
  priority_order INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS courses (
  course_code TEXT PRIMARY KEY,
  title TEXT NOT NULL DEFAULT '',
  credits REAL NOT NULL DEFAULT 0,
  max_cie REAL NOT NULL DEFAULT 50,
  max_see REAL NOT NULL DEFAULT 50
);

CREATE TABLE IF NOT EXISTS exam_cycles (
  cycle_id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  status_code INTEGER NOT NULL DEFAULT 1,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS seat_assignments (
  cycle_id TEXT NOT NULL REFERENCES exam_cycles(cycle_id) ON DELETE CASCADE,
  exam_date TEXT NOT NULL,
  session TEXT NOT NULL,
  room_no TEXT NOT NULL,
  seat_no INTEGER NOT NULL,
  usn TEXT NOT NULL,
  full_name TEXT NOT NULL DEFAULT '',
  branch TEXT NOT NULL,
  course_code TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'PRESENT',
  PRIMARY KEY (cycle_id, exam_date, session, room_no, seat_no),
  UNIQUE (cycle_id, exam_date, session, usn)
);

CREATE TABLE IF NOT EXISTS student_results (
  cycle_id TEXT NOT NULL REFERENCES exam_cycles(cycle_id) ON DELETE CASCADE,
  usn TEXT NOT NULL,
  course_code TEXT NOT NULL,
  cie_marks REAL,
  see_raw REAL,
  exam_status TEXT NOT NULL DEFAULT 'PRESENT',
  see_scaled REAL NOT NULL DEFAULT 0,
  total_marks REAL NOT NULL DEFAULT 0,
  grade TEXT NOT NULL DEFAULT '',
  grade_points INTEGER NOT NULL DEFAULT 0,
  credits_earned REAL NOT NULL DEFAULT 0,
  is_pass INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (cycle_id, usn, course_code)
);

CREATE TABLE IF NOT EXISTS event_log (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS rooms (
  room_no TEXT PRIMARY KEY,
  block_name TEXT NOT NULL DEFAULT '',
  capacity INTEGER NOT NULL CHECK (capacity > 0),
  priority_order INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS courses (
  course_code TEXT PRIMARY KEY,
  title TEXT NOT NULL DEFAULT '',
  credits DOUBLE PRECISION NOT NULL DEFAULT 0,
  max_cie DOUBLE PRECISION NOT NULL DEFAULT 50,
  max_see DOUBLE PRECISION NOT NULL DEFAULT 50
);

CREATE TABLE IF NOT EXISTS exam_cycles (
  cycle_id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  status_code INTEGER NOT NULL DEFAULT 1,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS seat_assignments (
  cycle_id TEXT NOT NULL REFERENCES exam_cycles(cycle_id) ON DELETE CASCADE,
  exam_date TEXT NOT NULL,
  session TEXT NOT NULL,
  room_no TEXT NOT NULL,
  seat_no INTEGER NOT NULL,
  usn TEXT NOT NULL,
  full_name TEXT NOT NULL DEFAULT '',
  branch TEXT NOT NULL,
  course_code TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'PRESENT',
  PRIMARY KEY (cycle_id, exam_date, session, room_no, seat_no),
  UNIQUE (cycle_id, exam_date, session, usn)
);

CREATE TABLE IF NOT EXISTS student_results (
  cycle_id TEXT NOT NULL REFERENCES exam_cycles(cycle_id) ON DELETE CASCADE,
  usn TEXT NOT NULL,
  course_code TEXT NOT NULL,
  cie_marks DOUBLE PRECISION,
  see_raw DOUBLE PRECISION,
  exam_status TEXT NOT NULL DEFAULT 'PRESENT',
  see_scaled DOUBLE PRECISION NOT NULL DEFAULT 0,
  total_marks DOUBLE PRECISION NOT NULL DEFAULT 0,
  grade TEXT NOT NULL DEFAULT '',
  grade_points INTEGER NOT NULL DEFAULT 0,
  credits_earned DOUBLE PRECISION NOT NULL DEFAULT 0,
  is_pass INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (cycle_id, usn, course_code)
);

CREATE TABLE IF NOT EXISTS event_log (
  seq BIGSERIAL PRIMARY KEY,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`
