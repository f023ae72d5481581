//go:build linux

package jailer

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// PivotInto performs the remaining ChrootBuilder steps: create the
// /dev/net/tun device node and chown it to the target uid/gid, mark the
// mount namespace root private, bind-mount the chroot onto itself so
// pivot_root has a mount point to use, chdir into it, create a scratch
// old_root directory, pivot_root, then detach and remove old_root.
//
// Env.Run calls this after MNTNS_UNSHARED, SOCKET_BOUND (the listener is
// bound at its host path, outside the new root) and CLOEXEC_CLEARED, and
// before privileges are dropped; reordering any two of these steps can
// silently weaken isolation.
func (cb *ChrootBuilder) PivotInto() error {
	tunPath := filepath.Join(cb.ChrootDir, "dev", "net", "tun")
	dev := int(unix.Mkdev(devNetTunMajor, devNetTunMinor))
	if err := unix.Mknod(tunPath, unix.S_IFCHR|0660, dev); err != nil {
		return newError(KindFilesystem, "mknod "+tunPath, err)
	}
	if err := os.Chown(tunPath, int(cb.UID), int(cb.GID)); err != nil {
		return newError(KindFilesystem, "chown "+tunPath, err)
	}

	if err := unix.Mount("", "/", "", unix.MS_PRIVATE|unix.MS_REC, ""); err != nil {
		return newError(KindNamespace, "mark mount propagation private", err)
	}

	if err := unix.Mount(cb.ChrootDir, cb.ChrootDir, "", unix.MS_BIND, ""); err != nil {
		return newError(KindNamespace, "bind-mount "+cb.ChrootDir+" onto itself", err)
	}

	if err := unix.Chdir(cb.ChrootDir); err != nil {
		return newError(KindNamespace, "chdir into "+cb.ChrootDir, err)
	}

	const oldRoot = "old_root"
	if err := os.Mkdir(oldRoot, 0700); err != nil {
		return newError(KindNamespace, "mkdir "+oldRoot, err)
	}

	if err := unix.PivotRoot(".", oldRoot); err != nil {
		return newError(KindNamespace, "pivot_root", err)
	}

	if err := unix.Unmount("/"+oldRoot, unix.MNT_DETACH); err != nil {
		return newError(KindNamespace, "detach "+oldRoot, err)
	}
	if err := os.Remove("/" + oldRoot); err != nil {
		return newError(KindNamespace, "remove "+oldRoot, err)
	}

	return nil
}
