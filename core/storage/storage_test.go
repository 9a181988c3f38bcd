package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{Path: "x.db"}.WithDefaults()
	require.Equal(t, DefaultBusyTimeoutMs, cfg.BusyTimeoutMs)
	require.Equal(t, DefaultMaxOpenConns, cfg.MaxOpenConns)
	require.Equal(t, DefaultJournalMode, cfg.JournalMode)

	cfg = Config{Path: "x.db", BusyTimeoutMs: 10, MaxOpenConns: 1, JournalMode: "delete"}.WithDefaults()
	require.Equal(t, 10, cfg.BusyTimeoutMs)
	require.Equal(t, 1, cfg.MaxOpenConns)
	require.Contains(t, cfg.dsn(), "_journal=DELETE")
	require.Contains(t, cfg.dsn(), "_txlock=immediate")
}

func TestOpen_CreatesTableAndIsReopenable(t *testing.T) {
	logger := zap.NewNop()
	path := filepath.Join(t.TempDir(), "nested", "onode.db")

	// 1. First open creates the directory, the file and the table.
	db, err := Open(Config{Path: path}, logger)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO `+OnodeTable+` (k, v) VALUES (?, ?)`, []byte{1}, []byte{2})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// 2. Reopening keeps the rows.
	db, err = Open(Config{Path: path}, logger)
	require.NoError(t, err)
	defer db.Close()

	var v []byte
	require.NoError(t, db.QueryRow(`SELECT v FROM `+OnodeTable+` WHERE k = ?`, []byte{1}).Scan(&v))
	require.Equal(t, []byte{2}, v)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{}, zap.NewNop())
	require.Error(t, err)
}
