// ════════════════════════════════════════════════════════════════════════════════════════════════
// Result Reporting
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: onebrc
// Component: Result Snapshot, Ordering & Text Rendering
//
// Description:
//   Copies table records into heap-owned Results so the aggregator's arena can be released,
//   orders them by key bytes on request and renders `<key>=<min>/<max>/<mean>` lines with
//   one decimal place. Digest fingerprints a result set for regression checks.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package report

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"io"
	"slices"
	"strconv"

	"golang.org/x/crypto/sha3"

	"onebrc/types"
)

// Source is anything that can enumerate key → record pairs
// (aggregator.Aggregator, table.Table[types.Record]).
type Source interface {
	Range(fn func(key []byte, r *types.Record) bool)
}

// Result is a detached copy of one key's statistics.
type Result struct {
	Key   string  `json:"key"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Count uint64  `json:"count"`
}

// Collect snapshots src in its traversal (bucket) order.
func Collect(src Source) []Result {
	var out []Result
	src.Range(func(key []byte, r *types.Record) bool {
		out = append(out, Result{
			Key:   string(key),
			Min:   r.Min,
			Max:   r.Max,
			Mean:  r.Mean,
			Count: r.Count,
		})
		return true
	})
	return out
}

// Sort orders results by key bytes, ascending.
func Sort(rs []Result) {
	slices.SortFunc(rs, func(a, b Result) int {
		return bytes.Compare([]byte(a.Key), []byte(b.Key))
	})
}

// Rows returns the total sample count across results.
func Rows(rs []Result) uint64 {
	var n uint64
	for i := range rs {
		n += rs[i].Count
	}
	return n
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// TEXT OUTPUT
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// AppendLine appends `<key>=<min>/<max>/<mean>\n` to dst.
func AppendLine(dst []byte, r *Result) []byte {
	dst = append(dst, r.Key...)
	dst = append(dst, '=')
	dst = appendTenth(dst, r.Min)
	dst = append(dst, '/')
	dst = appendTenth(dst, r.Max)
	dst = append(dst, '/')
	dst = appendTenth(dst, r.Mean)
	return append(dst, '\n')
}

// appendTenth formats v with one decimal place, printing -0.0 as 0.0.
func appendTenth(dst []byte, v float64) []byte {
	start := len(dst)
	dst = strconv.AppendFloat(dst, v, 'f', 1, 64)
	if string(dst[start:]) == "-0.0" {
		dst = append(dst[:start], "0.0"...)
	}
	return dst
}

// WriteText renders one line per result.
func WriteText(w io.Writer, rs []Result) error {
	bw := bufio.NewWriterSize(w, 64<<10)
	var line []byte
	for i := range rs {
		line = AppendLine(line[:0], &rs[i])
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Digest returns the hex SHA3-256 of the key-sorted text rendering. The input
// slice is not reordered.
func Digest(rs []Result) string {
	sorted := slices.Clone(rs)
	Sort(sorted)
	h := sha3.New256()
	var line []byte
	for i := range sorted {
		line = AppendLine(line[:0], &sorted[i])
		h.Write(line)
	}
	return hex.EncodeToString(h.Sum(nil))
}
