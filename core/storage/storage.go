// Package storage opens the SQLite database backing the onode tree.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const (
	DefaultBusyTimeoutMs = 5000
	DefaultMaxOpenConns  = 4
	DefaultJournalMode   = "WAL"

	// OnodeTable holds one row per onode: order-preserving key, fixed-size value.
	OnodeTable = "onode"
)

// Config describes where and how the database is opened.
type Config struct {
	// Path is the database file. It is created if missing.
	Path string `yaml:"path"`
	// BusyTimeoutMs is how long a writer waits for a competing transaction
	// before failing with a conflict.
	BusyTimeoutMs int `yaml:"busy_timeout_ms"`
	// MaxOpenConns caps the connection pool; each running transaction holds one.
	MaxOpenConns int `yaml:"max_open_conns"`
	// JournalMode is the SQLite journal mode (WAL, DELETE, ...).
	JournalMode string `yaml:"journal_mode"`
}

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	if c.BusyTimeoutMs <= 0 {
		c.BusyTimeoutMs = DefaultBusyTimeoutMs
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = DefaultMaxOpenConns
	}
	if c.JournalMode == "" {
		c.JournalMode = DefaultJournalMode
	}
	return c
}

func (c Config) dsn() string {
	// _txlock=immediate: BEGIN takes the write lock.
	return fmt.Sprintf("file:%s?_journal=%s&mode=rwc&_busy_timeout=%d&_txlock=immediate",
		c.Path, strings.ToUpper(c.JournalMode), c.BusyTimeoutMs)
}

// Open opens (creating if needed) the database and its onode table.
func Open(cfg Config, logger *zap.Logger) (*sql.DB, error) {
	cfg = cfg.WithDefaults()
	if cfg.Path == "" {
		return nil, fmt.Errorf("storage: database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("storage: create directory for %s: %w", cfg.Path, err)
	}

	db, err := sql.Open("sqlite3", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", cfg.Path, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: failed to ping database: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + OnodeTable + ` (
		k BLOB PRIMARY KEY NOT NULL,
		v BLOB NOT NULL
	) WITHOUT ROWID`); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: create %s table: %w", OnodeTable, err)
	}

	logger.Info("onode store opened",
		zap.String("path", cfg.Path),
		zap.String("journal_mode", cfg.JournalMode),
		zap.Int("max_open_conns", cfg.MaxOpenConns))
	return db, nil
}
