package jailer

import (
	"io"
	"os"
	"path/filepath"
)

// devNetTun is the major/minor pair for /dev/net/tun, the only device
// node the jailed root needs beyond the copied binary.
const (
	devNetTunMajor = 10
	devNetTunMinor = 200
)

// ChrootBuilder produces a pivoted root whose only visible files are the
// copied target binary and a minimal /dev/net/tun.
type ChrootBuilder struct {
	ChrootDir    string
	ExecFilePath string
	ExecFileName string
	UID          uint32
	GID          uint32
}

// Prepare creates chrootDir and copies the target binary into it. It
// does not touch namespaces or mounts; callers run PivotInto (build-tag
// gated, linux-only) after unsharing the mount namespace.
func (cb *ChrootBuilder) Prepare() error {
	if err := os.MkdirAll(cb.ChrootDir, 0755); err != nil {
		return newError(KindFilesystem, "create "+cb.ChrootDir, err)
	}
	dest := filepath.Join(cb.ChrootDir, cb.ExecFileName)
	if err := copyFilePreservingMode(cb.ExecFilePath, dest); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(cb.ChrootDir, "dev", "net"), 0755); err != nil {
		return newError(KindFilesystem, "create dev/net", err)
	}
	return nil
}

// copyFilePreservingMode copies src to dst, preserving src's mode. It
// does not follow a symlink at src's final path component: os.Open
// follows intermediate symlinks but Lstat below rejects a symlink leaf,
// matching the spec's "avoids following symlinks in the source path's
// final component".
func copyFilePreservingMode(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return newError(KindFilesystem, "stat "+src, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return newError(KindFilesystem, src+" is a symlink", nil)
	}

	in, err := os.Open(src)
	if err != nil {
		return newError(KindFilesystem, "open "+src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return newError(KindFilesystem, "create "+dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return newError(KindFilesystem, "copy "+src+" to "+dst, err)
	}
	return nil
}
