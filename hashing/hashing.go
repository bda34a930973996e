// Package hashing provides the interchangeable key strategies used by the
// open-addressing table. A Strategy bundles a hash and an equality function
// and is picked once, at table construction.
//
// Keys are length-delimited byte slices. Equality is a byte-wise compare
// bounded by the stored length; no terminator byte is ever consulted, so a
// key may legally contain NUL.
package hashing

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/zeebo/xxh3"
)

// Strategy maps keys to 64-bit hashes and compares keys for equality.
// Reduction of the hash to a slot index is the table's job.
type Strategy interface {
	Name() string
	Hash(key []byte) uint64
	Equal(a, b []byte) bool
}

// byteEqual is the canonical equality shared by every strategy.
type byteEqual struct{}

//go:nosplit
//go:inline
func (byteEqual) Equal(a, b []byte) bool { return bytes.Equal(a, b) }

// ───────────────────────────── Summation ──────────────────────────────

// Summation sums the key bytes and weights the sum by the second byte.
// Anagrams and most short names collide; it is kept as a baseline for
// measuring probe behaviour, not for production use.
type Summation struct{ byteEqual }

func (Summation) Name() string { return "sum" }

//go:nosplit
func (Summation) Hash(key []byte) uint64 {
	var sum uint64
	for _, c := range key {
		sum += uint64(c)
	}
	weight := uint64(1)
	if len(key) > 1 {
		weight = uint64(key[1])
	}
	return sum * weight
}

// ───────────────────────────── Polynomial ─────────────────────────────

// Polynomial is the multiplicative hash h = h*97 + b.
type Polynomial struct{ byteEqual }

func (Polynomial) Name() string { return "poly97" }

//go:nosplit
func (Polynomial) Hash(key []byte) uint64 {
	var h uint64
	for _, c := range key {
		h = h*97 + uint64(c)
	}
	return h
}

// ──────────────────────────────── DJB2 ────────────────────────────────

// DJB2 is Bernstein's h = h*33 + b seeded with 5381.
type DJB2 struct{ byteEqual }

func (DJB2) Name() string { return "djb2" }

//go:nosplit
func (DJB2) Hash(key []byte) uint64 {
	h := uint64(5381)
	for _, c := range key {
		h = (h << 5) + h + uint64(c)
	}
	return h
}

// ──────────────────────────────── XXH3 ────────────────────────────────

// XXH3 delegates to the xxh3 64-bit hash; also used for shard routing.
type XXH3 struct{ byteEqual }

func (XXH3) Name() string { return "xxh3" }

func (XXH3) Hash(key []byte) uint64 { return xxh3.Hash(key) }

// ─────────────────────────────── Registry ─────────────────────────────

var registry = map[string]Strategy{
	"sum":    Summation{},
	"poly97": Polynomial{},
	"djb2":   DJB2{},
	"xxh3":   XXH3{},
}

// ByName resolves a strategy from its configuration name.
func ByName(name string) (Strategy, error) {
	s, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("hashing: unknown strategy %q (known: %v)", name, Names())
	}
	return s, nil
}

// Names lists the registered strategy names in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
