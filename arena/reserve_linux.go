//go:build linux

// reserve_linux.go
//
// Anonymous private mapping for the arena block. The kernel hands back
// page-aligned, zero-filled memory and munmap returns it in one call, which
// is exactly the arena's free-once contract.

package arena

import "golang.org/x/sys/unix"

func reserve(n int) ([]byte, func([]byte) error, error) {
	buf, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, err
	}
	return buf, unix.Munmap, nil
}
