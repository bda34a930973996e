// source.go
//
// Whole-file input for the aggregation driver. On Linux the file is mapped
// read-only and advised for sequential access; elsewhere it is read into
// memory. Either way the caller sees one []byte valid until Close.

package ingest

import (
	"fmt"
	"os"
)

// Source is a read-only view of one input file.
type Source struct {
	path    string
	data    []byte
	release func([]byte) error
	closed  bool
}

// Open maps or reads path. Empty files yield an empty, valid Source.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("ingest: stat %s: %w", path, err)
	}
	if !st.Mode().IsRegular() {
		return nil, fmt.Errorf("ingest: %s is not a regular file", path)
	}
	if st.Size() == 0 {
		return &Source{path: path, release: noRelease}, nil
	}

	data, release, err := load(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("ingest: load %s: %w", path, err)
	}
	return &Source{path: path, data: data, release: release}, nil
}

// Bytes returns the file contents. The slice is invalid after Close.
func (s *Source) Bytes() []byte { return s.data }

// Path returns the opened path.
func (s *Source) Path() string { return s.path }

// Size returns the content length in bytes.
func (s *Source) Size() int { return len(s.data) }

// Close releases the mapping. Calling it twice is a no-op.
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	data := s.data
	s.data = nil
	return s.release(data)
}

func noRelease([]byte) error { return nil }
