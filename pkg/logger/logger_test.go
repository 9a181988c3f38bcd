package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "onode.log")
	log, err := New(Config{Level: "warn", Format: "json", OutputFile: path})
	require.NoError(t, err)

	log.Info("dropped below level")
	log.Warn("kept")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry), "exactly one JSON line is written")
	require.Equal(t, "WARN", entry["level"])
	require.Equal(t, "kept", entry["msg"])
	require.Equal(t, DefaultService, entry["service"])
}

func TestNew_ServiceAndBadLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "onode.log")
	log, err := New(Config{Level: "chatty", OutputFile: path, Service: "onode-cli"})
	require.NoError(t, err)

	log.Debug("below the info fallback")
	log.Info("visible")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	require.Equal(t, "onode-cli", entry["service"])
	require.Equal(t, "visible", entry["msg"])
}

func TestNew_UnwritableFile(t *testing.T) {
	_, err := New(Config{OutputFile: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	require.Error(t, err)
}
