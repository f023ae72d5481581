//go:build !linux

package jailer

import "runtime"

func (cb *ChrootBuilder) PivotInto() error {
	return newError(KindNamespace, "unsupported on "+runtime.GOOS, nil)
}
