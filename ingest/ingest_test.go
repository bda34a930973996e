package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onebrc/aggregator"
	"onebrc/hashing"
	"onebrc/router"
	"onebrc/table"
	"onebrc/types"
)

func newAgg(t *testing.T, capacity int) *aggregator.Aggregator {
	t.Helper()
	ag, err := aggregator.New(aggregator.Config{
		Capacity: capacity,
		Strategy: hashing.Polynomial{},
		Policy:   table.IndexModulo,
		Arena:    true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ag.Close() })
	return ag
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "measurements.txt")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestOpenAndRun(t *testing.T) {
	path := writeFile(t, "# generated\n# seed 1\nA;10.0\r\nB;20.0\nA;30.0")
	src, err := Open(path)
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, path, src.Path())
	assert.Positive(t, src.Size())

	ag := newAgg(t, 8)
	st, err := Run(context.Background(), src.Bytes(), ag, Options{Skip: 2})
	require.NoError(t, err)
	assert.Equal(t, Stats{Lines: 3, Rows: 3, Header: 2}, st)

	a, ok := ag.Lookup([]byte("A"))
	require.True(t, ok)
	assert.Equal(t, types.Record{Min: 10, Max: 30, Mean: 20, Count: 2}, *a)

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
	assert.Nil(t, src.Bytes())
}

func TestOpenEmptyAndMissing(t *testing.T) {
	src, err := Open(writeFile(t, ""))
	require.NoError(t, err)
	assert.Zero(t, src.Size())
	st, err := Run(context.Background(), src.Bytes(), newAgg(t, 4), Options{})
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)
	require.NoError(t, src.Close())

	_, err = Open(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)

	_, err = Open(t.TempDir())
	assert.Error(t, err)
}

func TestMalformedLinesAreCountedAndSkipped(t *testing.T) {
	data := "A;1\n\nnodelim\n;5\nB;abc\nC;NaN\n" + strings.Repeat("k", 101) + ";1\nA;3\n"
	ag := newAgg(t, 8)
	st, err := Run(context.Background(), []byte(data), ag, Options{})
	require.NoError(t, err)
	assert.Equal(t, uint64(8), st.Lines)
	assert.Equal(t, uint64(1), st.Blank)
	assert.Equal(t, uint64(5), st.Malformed)
	assert.Equal(t, uint64(2), st.Rows)
	assert.Equal(t, 1, ag.Size())
}

func TestSaturationPolicies(t *testing.T) {
	data := []byte("a;1\nb;2\nc;3\na;4\nd;5\n")

	drop := newAgg(t, 2)
	st, err := Run(context.Background(), data, drop, Options{Saturation: Drop})
	require.NoError(t, err)
	assert.False(t, st.Stopped)
	assert.Equal(t, uint64(2), st.Dropped)
	assert.Equal(t, uint64(3), st.Rows)
	rec, _ := drop.Lookup([]byte("a"))
	assert.Equal(t, uint64(2), rec.Count, "existing keys keep updating")

	stop := newAgg(t, 2)
	st, err = Run(context.Background(), data, stop, Options{Saturation: Stop})
	require.NoError(t, err)
	assert.True(t, st.Stopped)
	assert.Equal(t, uint64(1), st.Dropped)
	assert.Equal(t, uint64(3), st.Lines)
	rec, _ = stop.Lookup([]byte("a"))
	assert.Equal(t, uint64(1), rec.Count)
}

func TestParseSaturationPolicy(t *testing.T) {
	p, err := ParseSaturationPolicy("STOP")
	require.NoError(t, err)
	assert.Equal(t, Stop, p)
	assert.Equal(t, "stop", p.String())
	p, err = ParseSaturationPolicy("")
	require.NoError(t, err)
	assert.Equal(t, Drop, p)
	_, err = ParseSaturationPolicy("grow")
	assert.Error(t, err)
}

func TestCustomDelimiter(t *testing.T) {
	ag := newAgg(t, 4)
	st, err := Run(context.Background(), []byte("x,y|2.5\n"), ag, Options{Delimiter: '|'})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.Rows)
	_, ok := ag.Lookup([]byte("x,y"))
	assert.True(t, ok)
}

func TestRunReaderMatchesRun(t *testing.T) {
	data := "h\nA;1.5\nB;-2\nA;2.5\n"
	a1, a2 := newAgg(t, 8), newAgg(t, 8)

	s1, err := Run(context.Background(), []byte(data), a1, Options{Skip: 1})
	require.NoError(t, err)
	s2, err := RunReader(context.Background(), strings.NewReader(data), a2, Options{Skip: 1})
	require.NoError(t, err)
	assert.Equal(t, s1, s2)

	r1, _ := a1.Lookup([]byte("A"))
	r2, _ := a2.Lookup([]byte("A"))
	assert.Equal(t, *r1, *r2)
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	data := []byte(strings.Repeat("A;1\n", checkEvery*2))
	st, err := Run(ctx, data, newAgg(t, 4), Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(checkEvery), st.Lines)
}

type failing struct{}

func (failing) Observe([]byte, float64) error { return errors.New("disk on fire") }

func TestObserverFailureAborts(t *testing.T) {
	st, err := Run(context.Background(), []byte("A;1\nB;2\n"), failing{}, Options{})
	assert.EqualError(t, err, "disk on fire")
	assert.Equal(t, uint64(1), st.Lines)
}

func TestRunThroughRouter(t *testing.T) {
	e, err := router.New(2, aggregator.Config{
		Capacity: 16,
		Strategy: hashing.XXH3{},
		Policy:   table.IndexMask,
	}, router.Options{BatchRows: 2})
	require.NoError(t, err)

	st, err := Run(context.Background(), []byte("A;10\nB;20\nA;30\nbad\n"), e, Options{})
	require.NoError(t, err)
	require.NoError(t, e.Close())
	assert.Equal(t, uint64(3), st.Rows)
	assert.Equal(t, uint64(1), st.Malformed)

	m, err := e.Merge()
	require.NoError(t, err)
	require.NoError(t, e.Release())
	a, ok := m.Lookup([]byte("A"))
	require.True(t, ok)
	assert.Equal(t, types.Record{Min: 10, Max: 30, Mean: 20, Count: 2}, *a)
}
