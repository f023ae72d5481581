// Package client is the thin caller-side half of the jailer: it turns a
// VM's launch parameters into a validated jailer.Context, renders the
// cmd/jailer flag set from it, and starts that binary as a subprocess.
// It owns no filesystem, cgroup, or namespace logic itself — all of that
// lives in the jailer package and runs inside the spawned process.
package client

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/pipeops/firecracker-cri/jailer"
)

// Config describes one jailed launch. It mirrors jailer.ContextParams
// closely, since its only job is to become one.
type Config struct {
	JailerBinary string

	ID           string
	ExecFilePath string
	NumaNode     int
	UID          uint32
	GID          uint32
	ChrootBase   string
	NetNSPath    string
	Daemonize    bool
	SeccompLevel int
}

// Launcher holds a validated jailer.Context for one launch, ready to be
// started.
type Launcher struct {
	binary string
	ctx    *jailer.Context
	log    *logrus.Entry
}

// NewLauncher validates cfg by constructing a jailer.Context up front, so
// a bad id/path/uid is reported before any process is spawned.
func NewLauncher(cfg Config, log *logrus.Entry) (*Launcher, error) {
	ctx, err := jailer.NewContext(jailer.ContextParams{
		ID:           cfg.ID,
		ExecFilePath: cfg.ExecFilePath,
		NumaNode:     strconv.Itoa(cfg.NumaNode),
		UID:          strconv.Itoa(int(cfg.UID)),
		GID:          strconv.Itoa(int(cfg.GID)),
		ChrootBase:   cfg.ChrootBase,
		NetNSPath:    cfg.NetNSPath,
		Daemonize:    cfg.Daemonize,
		SeccompLevel: strconv.Itoa(cfg.SeccompLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("build jailer context: %w", err)
	}

	binary := cfg.JailerBinary
	if binary == "" {
		binary = "jailer"
	}

	return &Launcher{
		binary: binary,
		ctx:    ctx,
		log:    log.WithField("component", "jailer-client"),
	}, nil
}

// ChrootDir is where this launch's pivoted root will be built.
func (l *Launcher) ChrootDir() string {
	return l.ctx.ChrootDir()
}

// SocketPath is the host-visible path the jailer binds the API socket at
// before pivoting into the chroot.
func (l *Launcher) SocketPath() string {
	return l.ctx.APISocketPath()
}

// Args renders the cmd/jailer flag set for this launch.
func (l *Launcher) Args() []string {
	ctx := l.ctx
	args := []string{
		"--id", ctx.ID,
		"--exec-file", ctx.ExecFilePath,
		"--node", strconv.Itoa(ctx.NumaNode),
		"--uid", strconv.Itoa(int(ctx.UID)),
		"--gid", strconv.Itoa(int(ctx.GID)),
		"--chroot-base-dir", ctx.ChrootBase,
	}
	if ctx.NetNSPath != "" {
		args = append(args, "--netns", ctx.NetNSPath)
	}
	if ctx.Daemonize {
		args = append(args, "--daemonize")
	}
	args = append(args, "--seccomp-level", strconv.Itoa(int(ctx.SeccompLevel)))
	return args
}

// Start runs the jailer binary and returns its exec.Cmd once that
// process has exited. The jailer does not fork, even with --daemonize:
// on success it replaces itself with the target via exec, so Start
// returns only when the target exits, or earlier if the jailer fails.
func (l *Launcher) Start(ctx context.Context) (*exec.Cmd, error) {
	args := l.Args()
	l.log.WithFields(logrus.Fields{
		"id":   l.ctx.ID,
		"args": args,
	}).Debug("starting jailer")

	cmd := exec.CommandContext(ctx, l.binary, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	output, err := cmd.CombinedOutput()
	if err != nil {
		return cmd, fmt.Errorf("jailer failed: %w: %s", err, output)
	}

	l.log.WithField("id", l.ctx.ID).Info("jailer started")
	return cmd, nil
}
