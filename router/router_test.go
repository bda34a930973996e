package router

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onebrc/aggregator"
	"onebrc/hashing"
	"onebrc/table"
	"onebrc/types"
)

func cfg(capacity int) aggregator.Config {
	return aggregator.Config{
		Capacity: capacity,
		Strategy: hashing.DJB2{},
		Policy:   table.IndexMask,
		Arena:    true,
	}
}

func newEngine(t *testing.T, shards int, c aggregator.Config, o Options) *Engine {
	t.Helper()
	e, err := New(shards, c, o)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = e.Close()
		_ = e.Release()
	})
	return e
}

func TestNewRejectsBadShardCounts(t *testing.T) {
	for _, n := range []int{0, -2, 3, 128} {
		_, err := New(n, cfg(8), Options{})
		assert.ErrorIs(t, err, table.ErrInvalidArgument, "shards=%d", n)
	}
	_, err := New(2, cfg(8), Options{RingSize: 6})
	assert.ErrorIs(t, err, table.ErrInvalidArgument)
	_, err = New(1, cfg(8), Options{RingSize: 1})
	assert.ErrorIs(t, err, table.ErrInvalidArgument, "one-slot ring")
	_, err = New(2, cfg(12), Options{})
	assert.ErrorIs(t, err, table.ErrInvalidArgument, "aggregator errors surface")
}

func TestShardRoutingIsStable(t *testing.T) {
	e := newEngine(t, 8, cfg(16), Options{})
	for _, k := range []string{"Oslo", "Rome", "Lagos"} {
		s := e.Shard([]byte(k))
		assert.GreaterOrEqual(t, s, 0)
		assert.Less(t, s, 8)
		assert.Equal(t, s, e.Shard([]byte(k)))
	}
	single := newEngine(t, 1, cfg(16), Options{})
	assert.Equal(t, 0, single.Shard([]byte("anything")))
}

func TestTwoStationScenarioSharded(t *testing.T) {
	e := newEngine(t, 4, cfg(8), Options{BatchRows: 2})
	require.NoError(t, e.Observe([]byte("A"), 10))
	require.NoError(t, e.Observe([]byte("B"), 20))
	require.NoError(t, e.Observe([]byte("A"), 30))
	require.NoError(t, e.Close())

	merged, err := e.Merge()
	require.NoError(t, err)
	require.NoError(t, e.Release())

	a, ok := merged.Lookup([]byte("A"))
	require.True(t, ok)
	assert.Equal(t, types.Record{Min: 10, Max: 30, Mean: 20, Count: 2}, *a)
	b, ok := merged.Lookup([]byte("B"))
	require.True(t, ok)
	assert.Equal(t, types.Record{Min: 20, Max: 20, Mean: 20, Count: 1}, *b)
	assert.Equal(t, 2, merged.Size())
}

func TestShardedMatchesSingleAggregator(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	type row struct {
		key    string
		sample float64
	}
	rows := make([]row, 40_000)
	for i := range rows {
		rows[i] = row{fmt.Sprintf("st%03d", rng.Intn(400)), math.Round(rng.NormFloat64()*100) / 10}
	}

	ref, err := aggregator.New(cfg(1024))
	require.NoError(t, err)
	defer ref.Close()
	for _, r := range rows {
		require.NoError(t, ref.Observe([]byte(r.key), r.sample))
	}

	e := newEngine(t, 4, cfg(1024), Options{BatchRows: 64, RingSize: 4})
	for _, r := range rows {
		require.NoError(t, e.Observe([]byte(r.key), r.sample))
	}
	require.NoError(t, e.Close())
	assert.Equal(t, uint64(len(rows)), e.Rows())
	assert.Zero(t, e.Dropped())
	assert.Zero(t, e.Rejected())

	merged, err := e.Merge()
	require.NoError(t, err)
	assert.Equal(t, ref.Size(), merged.Size())

	sizes := 0
	for _, n := range e.Sizes() {
		sizes += n
	}
	assert.Equal(t, ref.Size(), sizes, "shards hold disjoint key sets")

	ref.Range(func(k []byte, want *types.Record) bool {
		got, ok := merged.Lookup(k)
		require.True(t, ok, string(k))
		assert.Equal(t, want.Min, got.Min, string(k))
		assert.Equal(t, want.Max, got.Max, string(k))
		assert.Equal(t, want.Count, got.Count, string(k))
		assert.InDelta(t, want.Mean, got.Mean, 1e-9, string(k))
		return true
	})
}

func TestObserveGuardsAndLifecycle(t *testing.T) {
	e := newEngine(t, 2, cfg(8), Options{})
	assert.ErrorIs(t, e.Observe(nil, 1), aggregator.ErrEmptyKey)
	assert.ErrorIs(t, e.Observe(make([]byte, 101), 1), aggregator.ErrKeyTooLong)
	assert.ErrorIs(t, e.Observe([]byte("x"), math.NaN()), aggregator.ErrBadSample)

	_, err := e.Merge()
	assert.ErrorIs(t, err, ErrNotClosed)
	assert.ErrorIs(t, e.Range(func([]byte, *types.Record) bool { return true }), ErrNotClosed)
	assert.ErrorIs(t, e.Release(), ErrNotClosed)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.ErrorIs(t, e.Observe([]byte("x"), 1), aggregator.ErrClosed)
	assert.Zero(t, e.Rows())
}

func TestSaturationSurfaces(t *testing.T) {
	e := newEngine(t, 1, cfg(2), Options{BatchRows: 1})
	for _, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, e.Observe([]byte(k), 1))
	}
	require.NoError(t, e.Close())
	assert.True(t, e.Saturated())
	assert.Equal(t, uint64(2), e.Dropped())
	assert.Equal(t, []int{2}, e.Sizes())
}

func TestRangeStopsEarly(t *testing.T) {
	e := newEngine(t, 2, cfg(16), Options{})
	for i := 0; i < 10; i++ {
		require.NoError(t, e.Observe([]byte(fmt.Sprintf("k%d", i)), float64(i)))
	}
	require.NoError(t, e.Close())
	seen := 0
	require.NoError(t, e.Range(func([]byte, *types.Record) bool {
		seen++
		return seen < 3
	}))
	assert.Equal(t, 3, seen)
}

func TestPinnedShards(t *testing.T) {
	e := newEngine(t, 2, cfg(16), Options{Pin: true})
	require.NoError(t, e.Observe([]byte("pinned"), 1.5))
	require.NoError(t, e.Close())
	m, err := e.Merge()
	require.NoError(t, err)
	r, ok := m.Lookup([]byte("pinned"))
	require.True(t, ok)
	assert.Equal(t, 1.5, r.Mean)
}

func TestSmallestRingKeepsEveryRow(t *testing.T) {
	e := newEngine(t, 1, cfg(1024), Options{RingSize: 2, BatchRows: 1})
	for i := 0; i < 1000; i++ {
		require.NoError(t, e.Observe([]byte(fmt.Sprintf("k%d", i%37)), float64(i%50)))
	}
	require.NoError(t, e.Close())

	var total uint64
	require.NoError(t, e.Range(func(_ []byte, r *types.Record) bool {
		total += r.Count
		return true
	}))
	assert.Equal(t, uint64(1000), total)
	assert.Equal(t, uint64(1000), e.Rows())
}
