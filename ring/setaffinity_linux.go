//go:build linux

// setaffinity_linux.go
//
// Pins the calling OS thread to one logical CPU via sched_setaffinity(2).
// Callers must hold runtime.LockOSThread. Errors (EPERM/EINVAL inside
// restrictive cgroups) are returned and may be ignored: the fallback is
// simply "no pin".

package ring

import "golang.org/x/sys/unix"

func setAffinity(cpu int) error {
	if cpu < 0 {
		return unix.EINVAL
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}
