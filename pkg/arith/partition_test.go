package arith

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proseveil/pkg/ngram"
)

func TestPartitionCells(t *testing.T) {
	m, err := ngram.Build(0, [][]string{strings.Fields("b a b c b a")})
	require.NoError(t, err)
	d, _ := m.Lookup(nil)
	p := NewPartition(d)

	assert.Equal(t, 3, p.Len())
	assert.Equal(t, uint64(6), p.Total())
	assert.Equal(t, []Cell{
		{Token: "b", Low: 0, High: 3},
		{Token: "a", Low: 3, High: 5},
		{Token: "c", Low: 5, High: 6},
	}, p.Cells())

	for target, want := range []int{0, 0, 0, 1, 1, 2} {
		assert.Equal(t, want, p.Search(uint64(target)), "target=%d", target)
	}
	i, ok := p.IndexOf("a")
	assert.True(t, ok)
	assert.Equal(t, 1, i)
	_, ok = p.IndexOf("z")
	assert.False(t, ok)
}

func TestScaleCounts(t *testing.T) {
	got := scaleCounts([]uint64{1, 1000, 7, 1}, 100)
	var total uint64
	for _, c := range got {
		assert.GreaterOrEqual(t, c, uint64(1))
		total += c
	}
	assert.LessOrEqual(t, total, uint64(100))
	assert.Equal(t, []uint64{1, 63, 1, 1}, got)

	// 不超限时原样保留
	assert.Equal(t, []uint64{2, 3}, scaleCounts([]uint64{2, 3}, 5))

	// 全为 1 且超限：停止缩放而不是死循环
	assert.Equal(t, []uint64{1, 1, 1}, scaleCounts([]uint64{1, 1, 1}, 2))
}

func TestPartitionerCache(t *testing.T) {
	m, err := ngram.Build(1, [][]string{strings.Fields("the quick brown fox jumps over the lazy dog")})
	require.NoError(t, err)
	p, err := newPartitioner(m, 2)
	require.NoError(t, err)

	a := p.forContext(ngram.Context{"the"})
	b := p.forContext(ngram.Context{"the"})
	assert.Same(t, a, b)
	// 未见上下文回退到 0 阶，和空上下文共享同一分区
	assert.Same(t, p.forContext(nil), p.forContext(ngram.Context{"unseen"}))
	assert.Equal(t, 8, p.forContext(nil).Len())
}

func TestWalkerBreaksForcedCycle(t *testing.T) {
	m, err := ngram.Build(1, [][]string{strings.Fields("a b a"), strings.Fields("c d")})
	require.NoError(t, err)
	p, err := newPartitioner(m, 8)
	require.NoError(t, err)
	w := newWalker(p)

	root := p.forContext(nil)
	require.Equal(t, 4, root.Len())

	steps := []struct {
		window ngram.Context
		want   *Partition
	}{
		{nil, root},
		{ngram.Context{"a"}, p.forContext(ngram.Context{"a"})},
		{ngram.Context{"b"}, p.forContext(ngram.Context{"b"})},
		{ngram.Context{"a"}, root}, // "a" 在单候选链中重复：回退到 0 阶
		{ngram.Context{"a"}, p.forContext(ngram.Context{"a"})},
	}
	for i, st := range steps {
		got, ok := w.next(st.window)
		require.True(t, ok, "step %d", i)
		assert.Same(t, st.want, got, "step %d", i)
	}
}

func TestWalkerSingleWordVocabulary(t *testing.T) {
	m, err := ngram.Build(0, [][]string{strings.Fields("echo echo")})
	require.NoError(t, err)
	p, err := newPartitioner(m, 8)
	require.NoError(t, err)
	w := newWalker(p)

	_, ok := w.next(nil)
	assert.True(t, ok)
	_, ok = w.next(nil)
	assert.False(t, ok)
}

func TestIntervalCellsNeverEmpty(t *testing.T) {
	// 重整化后区间宽度 > 2^30 >= MaxTotal，每个候选至少一个单位
	iv := interval{low: firstQuarter - 1, high: half}
	total := uint64(MaxTotal)
	iv.narrow(total-1, total, total)
	assert.GreaterOrEqual(t, iv.high, iv.low)
}

func TestIntervalRenormalize(t *testing.T) {
	iv := interval{low: 0, high: half - 1}
	var spans []span
	require.NoError(t, iv.renormalize(func(s span, settled uint64) error {
		spans = append(spans, s)
		return nil
	}))
	assert.Equal(t, []span{spanLower}, spans)
	assert.Equal(t, uint64(1), iv.resolved)
	assert.Equal(t, topValue, iv.high)

	iv = interval{low: firstQuarter, high: thirdQuarter - 1}
	spans = nil
	var settledSeen []uint64
	require.NoError(t, iv.renormalize(func(s span, settled uint64) error {
		spans = append(spans, s)
		settledSeen = append(settledSeen, settled)
		return nil
	}))
	// 中间半区放大后恰为满区间
	assert.Equal(t, []span{spanMiddle}, spans)
	assert.Equal(t, uint64(1), iv.pending)
	assert.Equal(t, uint64(0), iv.resolved)

	// 下一次确定位带出 1 个待定位
	iv = interval{low: half, high: topValue, pending: 1}
	spans, settledSeen = nil, nil
	require.NoError(t, iv.renormalize(func(s span, settled uint64) error {
		spans = append(spans, s)
		settledSeen = append(settledSeen, settled)
		return nil
	}))
	assert.Equal(t, []span{spanUpper}, spans)
	assert.Equal(t, []uint64{1}, settledSeen)
	assert.Equal(t, uint64(2), iv.resolved)
}
