//go:build !linux

package jailer

import "runtime"

func (FdPrep) SanitizeProcess() error {
	return newError(KindFdProtocol, "unsupported on "+runtime.GOOS, nil)
}

func (FdPrep) OpenKVM() (int, error) {
	return -1, newError(KindFdProtocol, "unsupported on "+runtime.GOOS, nil)
}

func (FdPrep) BindAPISocket(path string) (int, error) {
	return -1, newError(KindFdProtocol, "unsupported on "+runtime.GOOS, nil)
}

func (FdPrep) ClearCloexec(fd int) error {
	return newError(KindFdProtocol, "unsupported on "+runtime.GOOS, nil)
}
