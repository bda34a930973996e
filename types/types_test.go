package types

import (
	"math"
	"math/rand"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeed(t *testing.T) {
	var r Record
	r.Seed(-3.5)
	assert.Equal(t, Record{Min: -3.5, Max: -3.5, Mean: -3.5, Count: 1}, r)
	assert.True(t, r.Valid())
}

func TestObserveRecurrence(t *testing.T) {
	var r Record
	r.Seed(10)
	r.Observe(30)
	assert.Equal(t, Record{Min: 10, Max: 30, Mean: 20, Count: 2}, r)

	r.Observe(-10)
	assert.Equal(t, -10.0, r.Min)
	assert.Equal(t, 30.0, r.Max)
	assert.InDelta(t, 10.0, r.Mean, 1e-12)
	assert.Equal(t, uint64(3), r.Count)
}

func TestObserveMatchesArithmeticMean(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var r Record
	sum := 0.0
	const n = 100_000
	for i := 0; i < n; i++ {
		s := math.Round((rng.Float64()*199.8-99.9)*10) / 10
		sum += s
		if i == 0 {
			r.Seed(s)
		} else {
			r.Observe(s)
		}
		require.True(t, r.Valid(), "bounds invariant broken at sample %d", i)
	}
	assert.Equal(t, uint64(n), r.Count)
	assert.InDelta(t, sum/n, r.Mean, 1e-9)
}

func TestObserveConstantStaysExact(t *testing.T) {
	var r Record
	r.Seed(0.1)
	for i := 0; i < 1000; i++ {
		r.Observe(0.1)
	}
	assert.Equal(t, 0.1, r.Mean, "clamping keeps min ≤ mean ≤ max for constant input")
	assert.True(t, r.Valid())
}

func TestMerge(t *testing.T) {
	var a, b Record
	a.Seed(1)
	a.Observe(3) // mean 2, count 2
	b.Seed(8)    // mean 8, count 1

	a.Merge(&b)
	assert.Equal(t, 1.0, a.Min)
	assert.Equal(t, 8.0, a.Max)
	assert.InDelta(t, 4.0, a.Mean, 1e-12)
	assert.Equal(t, uint64(3), a.Count)
}

func TestMergeWithEmpty(t *testing.T) {
	var a, empty Record
	a.Seed(5)
	a.Merge(&empty)
	assert.Equal(t, Record{Min: 5, Max: 5, Mean: 5, Count: 1}, a)

	empty.Merge(&a)
	assert.Equal(t, a, empty)
	assert.False(t, (&Record{}).Valid())
}

func TestRecordLayout(t *testing.T) {
	assert.Equal(t, uintptr(32), unsafe.Sizeof(Record{}), "four words, no padding")
	assert.Equal(t, uintptr(8), unsafe.Alignof(Record{}))
}
