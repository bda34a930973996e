//go:build linux

package ingest

import (
	"math"
	"os"

	"golang.org/x/sys/unix"

	"onebrc/debug"
)

// load maps f read-only. MADV_SEQUENTIAL lets the kernel read ahead
// aggressively and drop pages behind the cursor.
func load(f *os.File, size int64) ([]byte, func([]byte) error, error) {
	if size > math.MaxInt {
		return nil, nil, unix.EFBIG
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	if err := unix.Madvise(data, unix.MADV_SEQUENTIAL); err != nil {
		debug.DropError("INGEST madvise", err)
	}
	return data, unix.Munmap, nil
}
