package parser

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"onebrc/constants"
	"onebrc/utils"
)

// ============================================================================
// MEASUREMENT LINE PARSER
// ============================================================================
//
// Splits `<key><delim><sample>\n` lines into a key slice and a float64.
//
// PERFORMANCE CHARACTERISTICS:
// - Zero heap allocations on the common `-?d+(.d+)?` sample shape
// - Returned key aliases the input line; callers copy when they keep it
// - strconv fallback for exponents, signs and long mantissas
//
// LINE ENDINGS:
// - A trailing "\n" and then a trailing "\r" are stripped from every line,
//   including the last, so LF and CRLF files parse identically
//
// ============================================================================

var (
	// ErrMalformed is the root of every line-level parse failure.
	ErrMalformed = errors.New("parser: malformed line")

	// ErrBlankLine reports a line with no content.
	ErrBlankLine = fmt.Errorf("%w: blank line", ErrMalformed)

	// ErrMissingDelimiter reports a line without the key/sample delimiter.
	ErrMissingDelimiter = fmt.Errorf("%w: missing delimiter", ErrMalformed)

	// ErrEmptyKey reports a line whose key field is empty.
	ErrEmptyKey = fmt.Errorf("%w: empty key", ErrMalformed)

	// ErrBadSample reports a sample that is not a finite decimal number.
	ErrBadSample = fmt.Errorf("%w: bad sample", ErrMalformed)
)

// maxFastDigits keeps the integer mantissa below 2^53 so the fast path
// rounds exactly like strconv.
const maxFastDigits = 15

var pow10 = [...]float64{
	1, 1e1, 1e2, 1e3, 1e4, 1e5, 1e6, 1e7, 1e8, 1e9, 1e10, 1e11, 1e12, 1e13, 1e14, 1e15,
}

// TrimEOL strips one trailing "\n" and then one trailing "\r".
//
//go:nosplit
//go:inline
func TrimEOL(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}

// ParseLine splits line at the first delim. The key is returned as a
// sub-slice of line.
func ParseLine(line []byte, delim byte) (key []byte, sample float64, err error) {
	line = TrimEOL(line)
	if len(line) == 0 {
		return nil, 0, ErrBlankLine
	}
	i := bytes.IndexByte(line, delim)
	if i < 0 {
		return nil, 0, ErrMissingDelimiter
	}
	if i == 0 {
		return nil, 0, ErrEmptyKey
	}
	sample, err = ParseSample(line[i+1:])
	if err != nil {
		return nil, 0, err
	}
	return line[:i], sample, nil
}

// ParseSample converts a decimal field to float64. Surrounding ASCII
// whitespace is ignored; NaN and infinities are rejected.
func ParseSample(b []byte) (float64, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return 0, ErrBadSample
	}
	if v, ok := parseFast(b); ok {
		return v, nil
	}
	v, err := strconv.ParseFloat(utils.B2s(b), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrBadSample, b)
	}
	return v, nil
}

// parseFast handles `-?d+(.d+)?` with at most maxFastDigits digits.
//
//go:nosplit
func parseFast(b []byte) (float64, bool) {
	neg := false
	if b[0] == '-' {
		neg = true
		b = b[1:]
	}
	var mant uint64
	digits, frac := 0, -1
	for _, c := range b {
		switch {
		case c >= '0' && c <= '9':
			mant = mant*10 + uint64(c-'0')
			digits++
			if frac >= 0 {
				frac++
			}
		case c == '.' && frac < 0:
			frac = 0
		default:
			return 0, false
		}
	}
	if digits == 0 || digits > maxFastDigits || frac == 0 {
		return 0, false
	}
	v := float64(mant)
	if frac > 0 {
		v /= pow10[frac]
	}
	if neg {
		v = -v
	}
	return v, true
}

// ============================================================================
// LINE ITERATION
// ============================================================================

// ForEachLine calls fn for every line of data after the first skip lines,
// stopping early when fn returns false. A final line without "\n" is still
// delivered. It returns the number of header lines actually skipped.
func ForEachLine(data []byte, skip int, fn func(line []byte) bool) int {
	header := 0
	for len(data) > 0 {
		var line []byte
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, data = data[:i], data[i+1:]
		} else {
			line, data = data, nil
		}
		if header < skip {
			header++
			continue
		}
		if !fn(line) {
			break
		}
	}
	return header
}

// Scan is ForEachLine over a stream. Lines longer than the scanner buffer
// limit produce bufio.ErrTooLong.
func Scan(r io.Reader, skip int, fn func(line []byte) bool) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), constants.ScanBufferSize)
	header := 0
	for sc.Scan() {
		if header < skip {
			header++
			continue
		}
		if !fn(sc.Bytes()) {
			return header, nil
		}
	}
	return header, sc.Err()
}
