//go:build linux

package main

import "golang.org/x/sys/unix"

// cpuTimeUs returns the process's CPU time so far, in microseconds,
// propagated to the target as part of its serialized context.
func cpuTimeUs() uint64 {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	userUs := uint64(ru.Utime.Sec)*1_000_000 + uint64(ru.Utime.Usec)
	sysUs := uint64(ru.Stime.Sec)*1_000_000 + uint64(ru.Stime.Usec)
	return userUs + sysUs
}
