// pinned_consumer.go
//
// SPSC consumer goroutine.
//
//   • With core ≥ 0 the goroutine locks its OS thread and pins it to `core`.
//   • Stays in **hot-spin** while new work arrived within hotWindow or the
//     producer keeps the hot flag == 1.
//   • Otherwise drops to **cold-spin**: cpuRelax every iteration and a
//     short sleep after spinBudget consecutive misses.
//   • On *stop == 1 it drains whatever is still queued, then closes `done`
//     exactly once. The producer must set stop only after its final Push.
//
// hot flag contract:
//     Producer             Consumer
//     --------             ------------------------------
//     Store 1  ─────────▶  read (wake / stay hot-spin)
//     ...push items…
//     (optionally) Store 0  ◀─ consumer never writes

package ring

import (
	"runtime"
	"sync/atomic"
	"time"
)

const (
	spinBudget = 256                   // polls before cold back-off
	hotWindow  = 50 * time.Millisecond // hot-spin grace
	coldSleep  = 50 * time.Microsecond // back-off once spinBudget is spent
)

// PinnedConsumer drains r into fn until *stop is set and r is empty.
func PinnedConsumer[T any](
	core int,
	r *Ring[T],
	stop, hot *uint32,
	fn func(T),
	done chan<- struct{},
) {
	go func() {
		if core >= 0 {
			runtime.LockOSThread()
			_ = setAffinity(core) // best effort; unpinned on failure
		}
		defer func() {
			if core >= 0 {
				runtime.UnlockOSThread()
			}
			close(done)
		}()

		last := time.Now() // last time Pop delivered
		miss := 0

		for {
			if v, ok := r.Pop(); ok {
				fn(v)
				last, miss = time.Now(), 0
				continue
			}

			if atomic.LoadUint32(stop) != 0 {
				// Items pushed before stop are visible now.
				for v, ok := r.Pop(); ok; v, ok = r.Pop() {
					fn(v)
				}
				return
			}

			hotSpin := atomic.LoadUint32(hot) != 0 ||
				time.Since(last) <= hotWindow

			if miss++; miss >= spinBudget {
				miss = 0
				if !hotSpin {
					time.Sleep(coldSleep)
					continue
				}
			}
			cpuRelax()
		}
	}()
}
