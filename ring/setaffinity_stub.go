//go:build !linux

// setaffinity_stub.go
//
// Thread pinning is Linux-only; elsewhere consumers run unpinned.

package ring

func setAffinity(int) error { return nil }
