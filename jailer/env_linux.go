//go:build linux

package jailer

import (
	"os"

	"golang.org/x/sys/unix"
)

// Run drives the full orchestration state machine through exec. It never
// returns on success: control passes to the target binary. On failure
// it returns the failing step's error; e.State() reports the last state
// reached, which together with e.ctx.ID gives the caller enough to
// report context.
//
// The socket bind is sequenced here while the pre-pivot path is still
// resolvable (see the note on PivotInto in chroot_linux.go): CHROOTED
// covers creating the chroot directory, copying the binary and creating
// dev/net (the tun device node is made by PivotInto), SOCKET_BOUND binds
// the listener at its host-visible path, and the pivot_root sequence
// itself runs immediately afterward, still strictly before privileges
// are dropped or the target is exec'd.
func (e *Env) Run() error {
	if err := e.fdPrep.SanitizeProcess(); err != nil {
		return err
	}
	e.state = StateFdsSanitized

	kvmFd, err := e.fdPrep.OpenKVM()
	if err != nil {
		return err
	}
	e.kvmFd = kvmFd
	e.state = StateKVMOpen

	if err := e.cgroup.Create(); err != nil {
		return err
	}
	if err := e.cgroup.AttachSelf(os.Getpid()); err != nil {
		return err
	}
	e.state = StateCgroupJoined

	if e.ctx.NetNSPath != "" {
		if err := joinNetNS(e.ctx.NetNSPath); err != nil {
			return err
		}
	}
	e.state = StateNetnsJoined

	if err := unix.Unshare(unix.CLONE_NEWNS); err != nil {
		return newError(KindNamespace, "unshare(CLONE_NEWNS)", err)
	}
	e.state = StateMntnsUnshared

	if err := e.chroot.Prepare(); err != nil {
		return err
	}
	e.state = StateChrooted

	listenFd, err := e.fdPrep.BindAPISocket(e.ctx.APISocketPath())
	if err != nil {
		return err
	}
	e.listenFd = listenFd
	e.state = StateSocketBound

	if err := e.fdPrep.ClearCloexec(e.kvmFd); err != nil {
		return err
	}
	if err := e.fdPrep.ClearCloexec(e.listenFd); err != nil {
		return err
	}
	e.state = StateCloexecCleared

	if err := e.chroot.PivotInto(); err != nil {
		return err
	}
	e.state = StatePivoted

	if err := dropPrivileges(e.ctx.GID, e.ctx.UID); err != nil {
		return err
	}
	e.state = StatePrivsDropped

	if e.ctx.Daemonize {
		if err := daemonize(); err != nil {
			return err
		}
	}
	e.state = StateDaemonized

	argv, err := e.ctx.ExecArgv()
	if err != nil {
		return err
	}
	e.state = StateExec
	err = unix.Exec(e.ctx.ChrootedExecPath(), argv, os.Environ())
	return newError(KindExec, "execve "+e.ctx.ChrootedExecPath(), err)
}

// joinNetNS opens the namespace handle at path, calls setns(fd,
// CLONE_NEWNET), then closes the handle. This must run before
// MNTNS_UNSHARED: entering a network namespace does not disturb mounts,
// but doing it in the other order is safer to reason about if the
// target later needs /proc.
func joinNetNS(path string) error {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return newError(KindNamespace, "open netns "+path, err)
	}
	defer unix.Close(fd)

	if err := unix.Setns(fd, unix.CLONE_NEWNET); err != nil {
		return newError(KindNamespace, "setns(CLONE_NEWNET) "+path, err)
	}
	return nil
}

// dropPrivileges sets gid before uid. The order matters: after the uid
// switch the process can no longer change its gid.
func dropPrivileges(gid, uid uint32) error {
	if err := unix.Setresgid(int(gid), int(gid), int(gid)); err != nil {
		return newError(KindCredential, "setresgid", err)
	}
	if err := unix.Setresuid(int(uid), int(uid), int(uid)); err != nil {
		return newError(KindCredential, "setresuid", err)
	}
	return nil
}

// daemonize calls setsid(), then redirects fds 0, 1, 2 onto /dev/null.
// This must happen after CLOEXEC_CLEARED so the redirection does not
// undo earlier fd preparation.
func daemonize() error {
	if _, err := unix.Setsid(); err != nil {
		return newError(KindNamespace, "setsid", err)
	}

	devNull, err := unix.Open("/dev/null", unix.O_RDWR, 0)
	if err != nil {
		return newError(KindFilesystem, "open /dev/null", err)
	}
	for _, fd := range []int{0, 1, 2} {
		if err := unix.Dup2(devNull, fd); err != nil {
			unix.Close(devNull)
			return newError(KindFdProtocol, "dup2 /dev/null onto fd", err)
		}
	}
	if devNull > 2 {
		unix.Close(devNull)
	}
	return nil
}
