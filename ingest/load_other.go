//go:build !linux

package ingest

import (
	"io"
	"os"
)

func load(f *os.File, size int64) ([]byte, func([]byte) error, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, nil, err
	}
	return data, noRelease, nil
}
