package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Dialect names the SQL engine behind a *sql.DB.  Queries in this module
// stay within the subset both engines share; only DDL differs.
type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenSQLite opens (or creates) an embedded database file.  WAL mode lets
// the API read while the detector appends.  Use ":memory:" in tests; the
// pool is then pinned to a single connection so every query sees the same
// in-memory database.
func OpenSQLite(path string) (*sql.DB, error) {
	if path == ":memory:" {
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(1)
		if err := ping(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	// busy_timeout is per connection, so it goes in the DSN: writers from
	// two processes wait instead of failing with SQLITE_BUSY.
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func ping(db *sql.DB) error {
	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// Migrate creates the detection table and its indexes if they are missing.
// It never alters existing rows.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	var stmts []string
	switch d {
	case MySQL:
		stmts = []string{`CREATE TABLE IF NOT EXISTS vehicle_detections (
			id              BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			detected_at_ms  BIGINT      NOT NULL,
			camera_id       VARCHAR(64) NOT NULL,
			frame_number    BIGINT      NOT NULL,
			vehicle_type    VARCHAR(16) NOT NULL,
			confidence      DOUBLE      NOT NULL,
			bbox_x          DOUBLE      NOT NULL,
			bbox_y          DOUBLE      NOT NULL,
			bbox_width      DOUBLE      NOT NULL,
			bbox_height     DOUBLE      NOT NULL,
			parking_spot_id VARCHAR(32) NULL,
			occupied        BOOLEAN     NOT NULL,
			INDEX idx_vd_time (detected_at_ms),
			INDEX idx_vd_spot_time (parking_spot_id, detected_at_ms)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`}
	case SQLite:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS vehicle_detections (
				id              INTEGER PRIMARY KEY AUTOINCREMENT,
				detected_at_ms  INTEGER NOT NULL,
				camera_id       TEXT    NOT NULL,
				frame_number    INTEGER NOT NULL,
				vehicle_type    TEXT    NOT NULL,
				confidence      REAL    NOT NULL,
				bbox_x          REAL    NOT NULL,
				bbox_y          REAL    NOT NULL,
				bbox_width      REAL    NOT NULL,
				bbox_height     REAL    NOT NULL,
				parking_spot_id TEXT    NULL,
				occupied        INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_vd_time ON vehicle_detections (detected_at_ms)`,
			`CREATE INDEX IF NOT EXISTS idx_vd_spot_time ON vehicle_detections (parking_spot_id, detected_at_ms)`,
		}
	default:
		return fmt.Errorf("migrate: unsupported dialect %q", d)
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate %s: %w", d, err)
		}
	}
	return nil
}
