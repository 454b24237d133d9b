// Package storage opens the detection store named by the configuration.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/iliyamo/fleet-parking-monitor/internal/config"
	"github.com/iliyamo/fleet-parking-monitor/internal/database"
	"github.com/iliyamo/fleet-parking-monitor/internal/journal"
	"github.com/iliyamo/fleet-parking-monitor/internal/repository"
	"github.com/iliyamo/fleet-parking-monitor/internal/service"
)

// Backend is an opened detection store: the append side, the read side
// and a way to release it.
type Backend interface {
	service.Recorder
	service.DetectionStore
	Close() error
}

// sqlBackend adds Close to the repository.
type sqlBackend struct {
	*repository.DetectionRepo
	close func() error
}

func (b sqlBackend) Close() error { return b.close() }

// Mode says whether the opening process appends detections.
type Mode int

const (
	ReadWrite Mode = iota
	// ReadOnly opens the journal without a write handle: the file is never
	// created or modified and Record fails.  SQL stores are opened the same
	// way in both modes; the database arbitrates its own writers.
	ReadOnly
)

func (m Mode) String() string {
	if m == ReadOnly {
		return "read-only"
	}
	return "read-write"
}

// Open connects to cfg.Store and, for SQL stores, applies the schema.
// Every store accepts appends from several processes at once.
func Open(ctx context.Context, cfg config.Config, mode Mode) (Backend, error) {
	switch cfg.Store {
	case config.StoreJSONL:
		open := journal.Open
		if mode == ReadOnly {
			open = journal.OpenReader
		}
		lg, err := open(cfg.OutputLog)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		log.Printf("storage: jsonl journal at %s (%s)", lg.Path(), mode)
		return lg, nil

	case config.StoreMySQL, config.StoreSQLite:
		dialect := database.SQLite
		open := func() (*sql.DB, error) { return database.OpenSQLite(cfg.SQLitePath) }
		if cfg.Store == config.StoreMySQL {
			dialect = database.MySQL
			open = func() (*sql.DB, error) {
				return database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
			}
		}
		db, err := open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", cfg.Store, err)
		}
		if err := database.Migrate(ctx, db, dialect); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate %s: %w", cfg.Store, err)
		}
		log.Printf("storage: %s detection table ready", cfg.Store)
		return sqlBackend{DetectionRepo: repository.NewDetectionRepo(db), close: db.Close}, nil
	}
	return nil, fmt.Errorf("unknown detection store %q", cfg.Store)
}
