// control.go — Stop and activity flags for pinned consumers
// ============================================================================
// ENGINE CONTROL
// ============================================================================
//
// Each sharded engine owns one Flags value shared by its producer and every
// pinned consumer. Nothing here is package-global, so several engines (and
// parallel tests) can run in one process.
//
// Threading model:
//   • The producer calls SignalActivity() whenever it publishes a batch
//   • Consumers poll PollCooldown() in their idle path
//   • Shutdown() is called once, after the last batch was pushed
//   • Pointers() hands raw flag words to ring.PinnedConsumer

package control

import (
	"sync/atomic"
	"time"
)

// DefaultCooldown is how long the hot flag stays set after the last activity.
const DefaultCooldown = 50 * time.Millisecond

// Flags coordinates one producer with its consumers.
type Flags struct {
	hot        uint32 // 1 = producer recently active
	stop       uint32 // 1 = no more batches will arrive
	lastHot    atomic.Int64
	cooldownNs int64
}

// New returns cleared flags with the given cooldown; zero selects
// DefaultCooldown.
func New(cooldown time.Duration) *Flags {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Flags{cooldownNs: int64(cooldown)}
}

// SignalActivity marks the producer as active.
func (f *Flags) SignalActivity() {
	f.lastHot.Store(time.Now().UnixNano())
	atomic.StoreUint32(&f.hot, 1)
}

// PollCooldown clears the hot flag once the cooldown has elapsed.
func (f *Flags) PollCooldown() {
	if atomic.LoadUint32(&f.hot) == 1 && time.Now().UnixNano()-f.lastHot.Load() > f.cooldownNs {
		atomic.StoreUint32(&f.hot, 0)
	}
}

// Shutdown raises the stop flag. Consumers drain what is queued, then exit.
func (f *Flags) Shutdown() { atomic.StoreUint32(&f.stop, 1) }

// Hot reports the activity flag.
func (f *Flags) Hot() bool { return atomic.LoadUint32(&f.hot) == 1 }

// Stopping reports the stop flag.
func (f *Flags) Stopping() bool { return atomic.LoadUint32(&f.stop) == 1 }

// Pointers returns (*stop, *hot) for ring.PinnedConsumer. The words must
// only be accessed through sync/atomic.
func (f *Flags) Pointers() (*uint32, *uint32) {
	return &f.stop, &f.hot
}
