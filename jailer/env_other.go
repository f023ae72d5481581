//go:build !linux

package jailer

import "runtime"

// Run is only implemented on Linux: cgroup v1, network/mount namespaces,
// and pivot_root have no equivalent elsewhere.
func (e *Env) Run() error {
	return newError(KindNamespace, "jailer is only supported on linux, not "+runtime.GOOS, nil)
}
