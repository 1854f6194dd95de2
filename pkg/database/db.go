package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"animeranker/pkg/logging"
)

type Config struct {
	DSN string
}

// DefaultConfig returns a private in-memory database. Ratings live only as
// long as the process.
func DefaultConfig() Config {
	return Config{DSN: MemoryDSN("animeranker")}
}

// MemoryDSN builds a shared-cache in-memory DSN. Distinct names give
// distinct databases, which keeps tests isolated.
func MemoryDSN(name string) string {
	if strings.TrimSpace(name) == "" {
		name = "animeranker-" + uuid.NewString()
	}
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
}

func isMemory(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

func Open(cfg Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		cfg = DefaultConfig()
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if isMemory(cfg.DSN) {
		// the database disappears with its last connection
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	} else if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma journal_mode: %w", err)
	}

	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma foreign_keys: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

func MustOpen(cfg Config) *sql.DB {
	db, err := Open(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open db")
	}
	return db
}
