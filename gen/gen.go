// ════════════════════════════════════════════════════════════════════════════════════════════════
// Measurement File Generator
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: onebrc
// Component: Parallel, Deterministic Synthetic Data
//
// Description:
//   Samples stations with replacement and perturbs each station mean with Gaussian noise.
//   Rows are rendered in fixed-size blocks by a worker pool; each block draws from its own
//   PCG stream seeded by (seed, block index), so the output depends only on the seed and
//   never on the worker count. A single writer emits blocks strictly in order.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package gen

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"runtime"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"onebrc/constants"
	"onebrc/utils"
)

// ErrInvalidOptions reports unusable generator options.
var ErrInvalidOptions = errors.New("gen: invalid options")

// Options controls one generation run.
type Options struct {
	Rows      int       // 1 … constants.MaxRows
	StdDev    float64   // noise around each station mean; 0 selects constants.DefaultStdDev
	Seed      uint64    // stream seed
	Workers   int       // 0 selects GOMAXPROCS
	Stations  []Station // nil selects DefaultStations
	Header    []string  // lines written verbatim before the data
	Delimiter byte      // 0 selects constants.Delimiter
	BlockRows int       // 0 selects constants.GenBlockRows
}

func (o *Options) fill() error {
	if o.Rows <= 0 || o.Rows > constants.MaxRows {
		return fmt.Errorf("%w: rows %d not in [1, %d]", ErrInvalidOptions, o.Rows, constants.MaxRows)
	}
	if o.StdDev < 0 || math.IsNaN(o.StdDev) || math.IsInf(o.StdDev, 0) {
		return fmt.Errorf("%w: stddev %v", ErrInvalidOptions, o.StdDev)
	}
	if o.StdDev == 0 {
		o.StdDev = constants.DefaultStdDev
	}
	if o.Workers < 0 || o.BlockRows < 0 {
		return fmt.Errorf("%w: workers %d / block %d", ErrInvalidOptions, o.Workers, o.BlockRows)
	}
	if o.Workers == 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.BlockRows == 0 {
		o.BlockRows = constants.GenBlockRows
	}
	if o.Stations == nil {
		o.Stations = DefaultStations()
	}
	if len(o.Stations) == 0 {
		return ErrNoStations
	}
	if o.Delimiter == 0 {
		o.Delimiter = constants.Delimiter
	}
	return nil
}

// Temperature returns mean + stddev·z clamped to ±constants.TempLimit and
// rounded to one decimal place.
func Temperature(mean, stddev, z float64) float64 {
	v := mean + stddev*z
	v = math.Max(-constants.TempLimit, math.Min(constants.TempLimit, v))
	v = math.Round(v*10) / 10
	if v == 0 {
		v = 0 // fold -0
	}
	return v
}

// renderBlock appends rows [0, n) of block idx to dst.
func renderBlock(dst []byte, idx, n int, o *Options) []byte {
	rng := rand.New(rand.NewPCG(o.Seed, utils.Mix64(uint64(idx)+1)))
	for i := 0; i < n; i++ {
		st := &o.Stations[rng.IntN(len(o.Stations))]
		dst = append(dst, st.Name...)
		dst = append(dst, o.Delimiter)
		dst = strconv.AppendFloat(dst, Temperature(st.Mean, o.StdDev, rng.NormFloat64()), 'f', 1, 64)
		dst = append(dst, '\n')
	}
	return dst
}

// Generate writes opts.Rows rows to w and returns the bytes written.
func Generate(ctx context.Context, w io.Writer, opts Options) (int64, error) {
	if err := opts.fill(); err != nil {
		return 0, err
	}

	bw := bufio.NewWriterSize(w, 1<<20)
	var written int64
	for _, h := range opts.Header {
		n, err := bw.WriteString(h + "\n")
		written += int64(n)
		if err != nil {
			return written, err
		}
	}

	blocks := (opts.Rows + opts.BlockRows - 1) / opts.BlockRows
	ready := make([]chan []byte, blocks)
	for i := range ready {
		ready[i] = make(chan []byte, 1)
	}
	window := make(chan struct{}, 2*opts.Workers)
	jobs := make(chan int)
	pool := sync.Pool{New: func() any { return make([]byte, 0, opts.BlockRows*24) }}

	eg, ectx := errgroup.WithContext(ctx)

	// dispatcher: bounded read-ahead so fast workers cannot outrun the writer
	eg.Go(func() error {
		defer close(jobs)
		for i := 0; i < blocks; i++ {
			select {
			case window <- struct{}{}:
			case <-ectx.Done():
				return ectx.Err()
			}
			select {
			case jobs <- i:
			case <-ectx.Done():
				return ectx.Err()
			}
		}
		return nil
	})

	for i := 0; i < opts.Workers; i++ {
		eg.Go(func() error {
			for idx := range jobs {
				n := opts.BlockRows
				if idx == blocks-1 {
					n = opts.Rows - idx*opts.BlockRows
				}
				ready[idx] <- renderBlock(pool.Get().([]byte)[:0], idx, n, &opts)
			}
			return nil
		})
	}

	// writer: strict block order
	eg.Go(func() error {
		for i := 0; i < blocks; i++ {
			var buf []byte
			select {
			case buf = <-ready[i]:
			case <-ectx.Done():
				return ectx.Err()
			}
			n, err := bw.Write(buf)
			written += int64(n)
			pool.Put(buf[:0])
			<-window
			if err != nil {
				return err
			}
		}
		return bw.Flush()
	})

	if err := eg.Wait(); err != nil {
		return written, fmt.Errorf("gen: %w", err)
	}
	return written, nil
}
