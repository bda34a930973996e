package report

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onebrc/aggregator"
	"onebrc/hashing"
	"onebrc/table"
)

func sample() []Result {
	return []Result{
		{Key: "Oslo", Min: -3.4, Max: 12.26, Mean: 4.0, Count: 3},
		{Key: "Abha", Min: -0.04, Max: 0.04, Mean: -0.01, Count: 2},
		{Key: "Zürich", Min: 1, Max: 1, Mean: 1, Count: 1},
	}
}

func TestCollectFromAggregator(t *testing.T) {
	ag, err := aggregator.New(aggregator.Config{Capacity: 8, Strategy: hashing.DJB2{}, Policy: table.IndexMask, Arena: true})
	require.NoError(t, err)
	require.NoError(t, ag.Observe([]byte("A"), 10))
	require.NoError(t, ag.Observe([]byte("B"), 20))
	require.NoError(t, ag.Observe([]byte("A"), 30))

	rs := Collect(ag)
	require.NoError(t, ag.Close()) // results are detached from the arena
	Sort(rs)

	assert.Equal(t, []Result{
		{Key: "A", Min: 10, Max: 30, Mean: 20, Count: 2},
		{Key: "B", Min: 20, Max: 20, Mean: 20, Count: 1},
	}, rs)
	assert.Equal(t, uint64(3), Rows(rs))
}

func TestSortByKeyBytes(t *testing.T) {
	rs := sample()
	rs = append(rs, Result{Key: "abha"}, Result{Key: "Ä"})
	Sort(rs)
	var keys []string
	for _, r := range rs {
		keys = append(keys, r.Key)
	}
	assert.Equal(t, []string{"Abha", "Oslo", "Zürich", "abha", "Ä"}, keys)
}

func TestWriteText(t *testing.T) {
	rs := sample()
	Sort(rs)
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, rs))
	assert.Equal(t, "Abha=0.0/0.0/0.0\nOslo=-3.4/12.3/4.0\nZürich=1.0/1.0/1.0\n", buf.String())
}

func TestWriteTextTwoStations(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, []Result{
		{Key: "A", Min: 10, Max: 30, Mean: 20, Count: 2},
		{Key: "B", Min: 20, Max: 20, Mean: 20, Count: 1},
	}))
	assert.Equal(t, "A=10.0/30.0/20.0\nB=20.0/20.0/20.0\n", buf.String())
}

func TestDigestIgnoresOrder(t *testing.T) {
	a := sample()
	b := sample()
	b[0], b[2] = b[2], b[0]
	assert.Equal(t, Digest(a), Digest(b))
	assert.Len(t, Digest(a), 64)
	assert.Equal(t, "Oslo", a[0].Key, "Digest must not reorder its input")

	b[1].Max = 9
	assert.NotEqual(t, Digest(a), Digest(b))
}

func TestJSONRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, Document{Source: "m.txt", Strategy: "poly97", Capacity: 8, Results: sample()}))

	doc, err := ReadJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, sample(), doc.Results)
	assert.Equal(t, uint64(6), doc.Rows)
	assert.Equal(t, "poly97", doc.Strategy)
	assert.Equal(t, Digest(sample()), doc.Digest)
}

func TestJSONRejectsInvalidUTF8Keys(t *testing.T) {
	rs := []Result{{Key: "Z\xffrich", Min: 1, Max: 1, Mean: 1, Count: 1}}
	var buf bytes.Buffer
	assert.ErrorIs(t, WriteJSON(&buf, Document{Results: rs}), ErrKeyEncoding)
	assert.Zero(t, buf.Len())

	rs[0].Key = "Zürich"
	require.NoError(t, WriteJSON(&buf, Document{Results: rs}))
	doc, err := ReadJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, rs, doc.Results)
}

func TestJSONEmptyAndTampered(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, Document{}))
	assert.Contains(t, buf.String(), `"results":[]`)

	buf.Reset()
	require.NoError(t, WriteJSON(&buf, Document{Results: sample()}))
	tampered := strings.Replace(buf.String(), `"Oslo"`, `"Bergen"`, 1)
	_, err := ReadJSON(strings.NewReader(tampered))
	assert.ErrorContains(t, err, "digest mismatch")

	_, err = ReadJSON(strings.NewReader("{"))
	assert.Error(t, err)
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.db")

	require.NoError(t, WriteSQLite(ctx, path, sample()))
	got, err := ReadSQLite(ctx, path)
	require.NoError(t, err)

	want := sample()
	Sort(want)
	assert.Equal(t, want, got)

	// A second export replaces the previous contents.
	require.NoError(t, WriteSQLite(ctx, path, want[:1]))
	got, err = ReadSQLite(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, want[:1], got)
}
