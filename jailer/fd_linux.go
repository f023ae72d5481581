//go:build linux

package jailer

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sys/unix"
)

// SanitizeProcess closes every fd in [3, openMax) to purge descriptors
// inherited from the parent. EBADF (fd never opened) is expected and
// silently skipped; any other errno is collected without stopping the
// sweep, so every remaining fd is still closed, and the collected errors
// are returned once the sweep is done (Env.Run treats them as fatal).
// No unrelated file may be opened between this call and OpenKVM.
func (FdPrep) SanitizeProcess() error {
	max, err := openMax()
	if err != nil {
		return newError(KindFdProtocol, "sysconf(_SC_OPEN_MAX)", err)
	}

	var sweepErrs *multierror.Error
	for fd := 3; fd < max; fd++ {
		if err := unix.Close(fd); err != nil && err != unix.EBADF {
			sweepErrs = multierror.Append(sweepErrs, fmt.Errorf("close fd %d: %w", fd, err))
		}
	}
	return sweepErrs.ErrorOrNil()
}

// openMax returns the process's open-file-descriptor ceiling, the Go
// idiom for sysconf(_SC_OPEN_MAX).
func openMax() (int, error) {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return 0, err
	}
	return int(rlim.Cur), nil
}

// OpenKVM opens /dev/kvm read-write and asserts it landed on KVMFd, the
// first free slot after SanitizeProcess. If it did not, the caller must
// treat this as UnexpectedKvmFd: the target would otherwise be unable to
// locate KVM without command-line plumbing.
func (FdPrep) OpenKVM() (int, error) {
	fd, err := unix.Open("/dev/kvm", unix.O_RDWR, 0)
	if err != nil {
		return -1, newError(KindFdProtocol, "open /dev/kvm", err)
	}
	if fd != KVMFd {
		unix.Close(fd)
		return -1, newError(KindFdProtocol, fmt.Sprintf("unexpected /dev/kvm fd %d, want %d", fd, KVMFd), nil)
	}
	return fd, nil
}

// BindAPISocket binds a listening stream socket at path and asserts it
// landed on ListenerFd. Sockets created through raw syscalls (rather
// than net.Listen) are used here precisely so the fd number is under the
// caller's control.
func (FdPrep) BindAPISocket(path string) (int, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, newError(KindFdProtocol, "socket(AF_UNIX)", err)
	}

	addr := &unix.SockaddrUnix{Name: path}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return -1, newError(KindFdProtocol, "bind "+path, err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return -1, newError(KindFdProtocol, "listen "+path, err)
	}

	if fd != ListenerFd {
		unix.Close(fd)
		return -1, newError(KindFdProtocol, fmt.Sprintf("unexpected listener fd %d, want %d", fd, ListenerFd), nil)
	}
	return fd, nil
}

// ClearCloexec unsets FD_CLOEXEC on fd so it survives exec. Whether this
// happens immediately after OpenKVM or later alongside the socket fd is
// treated as equivalent as long as both are cleared before exec.
func (FdPrep) ClearCloexec(fd int) error {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	if err != nil {
		return newError(KindFdProtocol, fmt.Sprintf("fcntl(F_GETFD, %d)", fd), err)
	}
	flags &^= unix.FD_CLOEXEC
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFD, flags); err != nil {
		return newError(KindFdProtocol, fmt.Sprintf("fcntl(F_SETFD, %d)", fd), err)
	}
	return nil
}
