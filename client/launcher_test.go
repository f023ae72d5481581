package client

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func discardLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func writeFakeExec(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0755))
}

func TestNewLauncherValidatesUpFront(t *testing.T) {
	tmp := t.TempDir()
	execPath := filepath.Join(tmp, "firecracker")
	writeFakeExec(t, execPath)

	_, err := NewLauncher(Config{
		ID:           "../evil",
		ExecFilePath: execPath,
		UID:          1000,
		GID:          1000,
	}, discardLogger())
	require.Error(t, err)
}

func TestLauncherArgsAndPaths(t *testing.T) {
	tmp := t.TempDir()
	execPath := filepath.Join(tmp, "firecracker")
	writeFakeExec(t, execPath)

	l, err := NewLauncher(Config{
		JailerBinary: "/usr/local/bin/jailer",
		ID:           "alice",
		ExecFilePath: execPath,
		NumaNode:     1,
		UID:          1000,
		GID:          1000,
		ChrootBase:   filepath.Join(tmp, "jail"),
		Daemonize:    true,
		SeccompLevel: 2,
	}, discardLogger())
	require.NoError(t, err)

	require.Equal(t, filepath.Join(tmp, "jail", "firecracker", "alice", "root"), l.ChrootDir())
	require.Equal(t, filepath.Join(tmp, "jail", "firecracker", "alice", "api.socket"), l.SocketPath())

	args := l.Args()
	require.Contains(t, args, "--daemonize")
	require.Contains(t, args, "alice")

	var seccomp string
	for i, a := range args {
		if a == "--seccomp-level" {
			seccomp = args[i+1]
		}
	}
	require.Equal(t, "2", seccomp)
}

func TestNewLauncherDefaultsBinaryName(t *testing.T) {
	tmp := t.TempDir()
	execPath := filepath.Join(tmp, "firecracker")
	writeFakeExec(t, execPath)

	l, err := NewLauncher(Config{
		ID:           "alice",
		ExecFilePath: execPath,
		UID:          1000,
		GID:          1000,
	}, discardLogger())
	require.NoError(t, err)
	require.Equal(t, "jailer", l.binary)
}
