// Command jailer prepares a restricted execution environment for a
// microVM monitor and then replaces itself with that binary.
//
// It constructs, in a precise order, a dedicated cgroup, an optional
// network namespace, a fresh mount namespace with a pivoted root
// filesystem, a set of pre-opened file descriptors at well-known
// numbers, and a dropped (uid/gid) identity, then execs the target. It
// never returns on success: the process image becomes the target
// binary.
//
// Usage:
//
//	jailer --id <id> --exec-file <path> --node <numa> --uid <uid> --gid <gid> \
//	       [--chroot-base-dir <dir>] [--netns <path>] [--daemonize] \
//	       [--seccomp-level 0|1|2]
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pipeops/firecracker-cri/jailer"
	"github.com/sirupsen/logrus"
)

func main() {
	os.Exit(run())
}

func run() int {
	startTimeUs := uint64(time.Now().UnixMicro())
	startTimeCPUUs := cpuTimeUs()

	var p jailer.ContextParams
	fs := flag.NewFlagSet("jailer", flag.ContinueOnError)
	fs.StringVar(&p.ID, "id", "", "jail id")
	fs.StringVar(&p.ExecFilePath, "exec-file", "", "file path to exec into")
	fs.StringVar(&p.NumaNode, "node", "", "NUMA node to assign this microVM to")
	fs.StringVar(&p.UID, "uid", "", "user id the jailer switches to after exec")
	fs.StringVar(&p.GID, "gid", "", "group id the jailer switches to after exec")
	fs.StringVar(&p.ChrootBase, "chroot-base-dir", jailer.DefaultChrootBase, "base folder where chroot jails are located")
	fs.StringVar(&p.NetNSPath, "netns", "", "path to the network namespace this microVM should join")
	fs.BoolVar(&p.Daemonize, "daemonize", false, "daemonize the jailer before exec")
	fs.StringVar(&p.SeccompLevel, "seccomp-level", "0", "level of seccomp filtering forwarded to the target")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return 2
	}
	p.StartTimeUs = startTimeUs
	p.StartTimeCPUUs = startTimeCPUUs

	log := logrus.WithField("component", "jailer")

	ctx, err := jailer.NewContext(p)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return jailer.ExitCode(err)
	}

	env, err := jailer.NewEnv(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return jailer.ExitCode(err)
	}

	log.WithFields(logrus.Fields{
		"id":         ctx.ID,
		"exec_file":  ctx.ExecFilePath,
		"chroot_dir": ctx.ChrootDir(),
	}).Debug("starting jail")

	err = env.Run()
	// Run only returns on failure: success replaces this process image.
	fmt.Fprintf(os.Stderr, "jailer: %s (last state: %s)\n", err, env.State())
	return jailer.ExitCode(err)
}
