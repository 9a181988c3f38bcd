package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/felixhuettner/ceph/core/storage"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "onode.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_EmptyPathIsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, DefaultStorePath, cfg.Store.Path)
	require.Equal(t, storage.DefaultJournalMode, cfg.Store.JournalMode)
	require.NoError(t, cfg.Validate())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
logger:
  level: debug
telemetry:
  enabled: true
  service_name: onode-test
  prometheus_port: 9464
store:
  path: /tmp/onode-test.db
  busy_timeout_ms: 250
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Logger.Level)
	require.Equal(t, "console", cfg.Logger.Format, "unset fields keep their defaults")
	require.True(t, cfg.Telemetry.Enabled)
	require.Equal(t, 9464, cfg.Telemetry.PrometheusPort)
	require.Equal(t, "/tmp/onode-test.db", cfg.Store.Path)
	require.Equal(t, 250, cfg.Store.BusyTimeoutMs)
	require.Equal(t, storage.DefaultMaxOpenConns, cfg.Store.MaxOpenConns)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "store: [not, a, map]"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "store:\n  journal_mode: sideways\n"))
	require.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = Load(writeConfig(t, "store:\n  path: \"\"\n"))
	require.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = Load(writeConfig(t, "telemetry:\n  enabled: true\n  service_name: \"\"\n"))
	require.True(t, errors.Is(err, ErrInvalidConfig))
}
