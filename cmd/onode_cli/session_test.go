package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/felixhuettner/ceph/core/indexing/onodetree"
	"github.com/felixhuettner/ceph/core/onode"
	"github.com/felixhuettner/ceph/core/onode/manager"
	"github.com/felixhuettner/ceph/core/storage"
	"github.com/felixhuettner/ceph/core/transaction"
)

func setupSession(t *testing.T) (*session, *bytes.Buffer) {
	t.Helper()
	logger := zap.NewNop()
	db, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "onode.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	onodes, err := manager.New(onodetree.New(logger), logger, nil)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	return &session{txns: transaction.NewManager(db, logger), onodes: onodes, out: out, logger: logger}, out
}

func run(t *testing.T, s *session, out *bytes.Buffer, line string) (string, error) {
	t.Helper()
	out.Reset()
	err := s.exec(context.Background(), strings.Fields(line))
	return out.String(), err
}

func TestSession_CreateGetRemove(t *testing.T) {
	s, out := setupSession(t)

	got, err := run(t, s, out, "create ns/a ns/b")
	require.NoError(t, err)
	require.Contains(t, got, "created 0:0:00000000:ns/a@0.0")
	require.Contains(t, got, "created 0:0:00000000:ns/b@0.0")

	got, err = run(t, s, out, "create ns/a")
	require.NoError(t, err)
	require.Contains(t, got, "exists")

	_, err = run(t, s, out, "set-size ns/a 1024")
	require.NoError(t, err)
	got, err = run(t, s, out, "get ns/a")
	require.NoError(t, err)
	require.Contains(t, got, "size:  1024")

	got, err = run(t, s, out, "exists ns/b")
	require.NoError(t, err)
	require.Equal(t, "true\n", got)

	_, err = run(t, s, out, "rm ns/b")
	require.NoError(t, err)
	got, err = run(t, s, out, "exists ns/b")
	require.NoError(t, err)
	require.Equal(t, "false\n", got)

	_, err = run(t, s, out, "get ns/b")
	require.True(t, errors.Is(err, onode.ErrNotFound))
}

func TestSession_List(t *testing.T) {
	s, out := setupSession(t)
	_, err := run(t, s, out, "create ns/c ns/a ns/b")
	require.NoError(t, err)

	got, err := run(t, s, out, "ls MIN MAX 2")
	require.NoError(t, err)
	require.Equal(t, "0:0:00000000:ns/a@0.0\n0:0:00000000:ns/b@0.0\nnext: 0:0:00000000:ns/c@0.0\n", got)

	got, err = run(t, s, out, "ls ns/c")
	require.NoError(t, err)
	require.Equal(t, "0:0:00000000:ns/c@0.0\nnext: MAX\n", got)
}

func TestSession_FailedCommandAborts(t *testing.T) {
	s, out := setupSession(t)

	// set-size on a missing object fails and leaves nothing behind.
	_, err := run(t, s, out, "set-size ns/missing 10")
	require.True(t, errors.Is(err, onode.ErrNotFound))
	got, err := run(t, s, out, "exists ns/missing")
	require.NoError(t, err)
	require.Equal(t, "false\n", got)

	_, err = run(t, s, out, "create ns/ok "+"ns/"+strings.Repeat("x", onode.MaxNsOidLength))
	require.True(t, errors.Is(err, onode.ErrValueTooLarge))
	got, err = run(t, s, out, "exists ns/ok")
	require.NoError(t, err)
	require.Equal(t, "false\n", got, "the batch is aborted as a whole")

	_, err = run(t, s, out, "create MAX")
	require.True(t, errors.Is(err, onode.ErrInvalidKey))
	got, err = run(t, s, out, "exists MAX")
	require.NoError(t, err)
	require.Equal(t, "false\n", got, "the listing bound is never stored")
}

func TestSession_Usage(t *testing.T) {
	s, out := setupSession(t)

	got, err := run(t, s, out, "help")
	require.NoError(t, err)
	require.Contains(t, got, "ls [start] [end] [limit]")

	_, err = run(t, s, out, "exit")
	require.True(t, errors.Is(err, errExit))

	for _, line := range []string{"", "bogus", "get", "set-size ns/a big", "ls a b c d", "create no-slash"} {
		_, err = run(t, s, out, line)
		require.Error(t, err, line)
	}
}
