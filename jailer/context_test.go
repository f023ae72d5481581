package jailer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeExecutable(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0755))
}

func TestNewContextDerivedPaths(t *testing.T) {
	tmp := t.TempDir()
	execPath := filepath.Join(tmp, "firecracker")
	writeExecutable(t, execPath)

	ctx, err := NewContext(ContextParams{
		ID:           "alice",
		ExecFilePath: execPath,
		NumaNode:     "0",
		UID:          "123",
		GID:          "456",
		ChrootBase:   filepath.Join(tmp, "jail"),
	})
	require.NoError(t, err)

	wantChroot := filepath.Join(tmp, "jail", "firecracker", "alice", "root")
	require.Equal(t, wantChroot, ctx.ChrootDir())
	require.Equal(t, filepath.Join(tmp, "jail", "firecracker", "alice", "api.socket"), ctx.APISocketPath())
	require.Equal(t, "/firecracker", ctx.ChrootedExecPath())
}

func TestNewContextBadID(t *testing.T) {
	tmp := t.TempDir()
	execPath := filepath.Join(tmp, "firecracker")
	writeExecutable(t, execPath)

	_, err := NewContext(ContextParams{
		ID:           "../evil",
		ExecFilePath: execPath,
		NumaNode:     "0",
		UID:          "123",
		GID:          "456",
	})
	require.Error(t, err)

	var jerr *Error
	require.ErrorAs(t, err, &jerr)
	require.Equal(t, KindInput, jerr.Kind)
}

func TestNewContextMissingExecFile(t *testing.T) {
	_, err := NewContext(ContextParams{
		ID:           "alice",
		ExecFilePath: "/nonexistent/path",
		NumaNode:     "0",
		UID:          "123",
		GID:          "456",
	})
	require.Error(t, err)
}

func TestNewContextDefaultsChrootBase(t *testing.T) {
	tmp := t.TempDir()
	execPath := filepath.Join(tmp, "firecracker")
	writeExecutable(t, execPath)

	ctx, err := NewContext(ContextParams{
		ID:           "alice",
		ExecFilePath: execPath,
		NumaNode:     "0",
		UID:          "123",
		GID:          "456",
	})
	require.NoError(t, err)
	require.Equal(t, DefaultChrootBase, ctx.ChrootBase)
}

func TestExecArgvRoundTrips(t *testing.T) {
	tmp := t.TempDir()
	execPath := filepath.Join(tmp, "firecracker")
	writeExecutable(t, execPath)

	ctx, err := NewContext(ContextParams{
		ID:           "alice",
		ExecFilePath: execPath,
		NumaNode:     "0",
		UID:          "123",
		GID:          "456",
		SeccompLevel: "2",
	})
	require.NoError(t, err)

	argv, err := ctx.ExecArgv()
	require.NoError(t, err)
	require.Equal(t, ctx.ChrootedExecPath(), argv[0])

	var encoded string
	for i, a := range argv {
		if a == "--context" {
			encoded = argv[i+1]
		}
	}
	require.NotEmpty(t, encoded)

	fc, err := DecodeFirecrackerContext([]byte(encoded))
	require.NoError(t, err)
	require.Equal(t, "alice", fc.ID)
	require.True(t, fc.Jailed)
	require.Equal(t, uint32(2), fc.SeccompLevel)
}
