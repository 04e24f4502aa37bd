package ngram

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proseveil/pkg/contract"
)

const fox = "the quick brown fox jumps over the lazy dog"

func words(s string) []string { return strings.Fields(s) }

func candidates(d *Distribution) ([]string, []uint64) {
	var toks []string
	var counts []uint64
	d.Each(func(tok string, c uint64) bool {
		toks = append(toks, tok)
		counts = append(counts, c)
		return true
	})
	return toks, counts
}

// UT-NG-01: 首次出现顺序与计数
func TestBuildFirstOccurrenceOrder(t *testing.T) {
	m, err := Build(1, [][]string{words(fox)})
	require.NoError(t, err)

	d, ok := m.Distribution(Context{"the"})
	require.True(t, ok)
	toks, counts := candidates(d)
	assert.Equal(t, []string{"quick", "lazy"}, toks)
	assert.Equal(t, []uint64{1, 1}, counts)
	assert.Equal(t, uint64(2), d.Total())

	zero, _ := m.Lookup(nil)
	toks, counts = candidates(zero)
	assert.Equal(t, []string{"the", "quick", "brown", "fox", "jumps", "over", "lazy", "dog"}, toks)
	assert.Equal(t, uint64(2), counts[0])
	assert.Equal(t, 8, m.Vocabulary())
	assert.Equal(t, uint64(9), m.Tokens())
	assert.Equal(t, 7, m.Contexts())
}

// UT-NG-02: 阶数越界
func TestInvalidOrder(t *testing.T) {
	for _, k := range []int{-1, MaxOrder + 1} {
		_, err := Build(k, [][]string{words(fox)})
		assert.ErrorIs(t, err, contract.ErrInvalidOrder, "k=%d", k)
	}
	_, err := Build(MaxOrder, [][]string{words(fox + " " + fox)})
	assert.NoError(t, err)
}

// UT-NG-03: 语料不足
func TestEmptyCorpus(t *testing.T) {
	cases := map[string][][]string{
		"无源":    nil,
		"全空":    {{}, {}},
		"均不超过k": {{"a", "b"}, {"c"}},
	}
	for name, seqs := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Build(2, seqs)
			assert.ErrorIs(t, err, contract.ErrEmptyCorpus)
		})
	}
	// 只要有一个源足够长即可
	_, err := Build(2, [][]string{{"a"}, {"a", "b", "c"}})
	assert.NoError(t, err)
}

// UT-NG-04: 回退逐级进行并最终落到 0 阶
func TestLookupBackoff(t *testing.T) {
	m, err := Build(2, [][]string{words("a b c a b d")})
	require.NoError(t, err)

	d, n := m.Lookup(Context{"a", "b"})
	assert.Equal(t, 2, n)
	toks, _ := candidates(d)
	assert.Equal(t, []string{"c", "d"}, toks)

	// "x b" 未见，回退到 "b"
	d, n = m.Lookup(Context{"x", "b"})
	assert.Equal(t, 1, n)
	toks, _ = candidates(d)
	assert.Equal(t, []string{"c", "d"}, toks)

	// 完全未见，落到 0 阶
	d, n = m.Lookup(Context{"x", "y"})
	assert.Equal(t, 0, n)
	assert.Equal(t, 4, d.Len())

	// "d" 只出现在末尾，没有后继
	_, n = m.Lookup(Context{"b", "d"})
	assert.Equal(t, 0, n)

	// 超长上下文先截取最近 k 个词
	_, n = m.Lookup(Context{"zzz", "a", "b"})
	assert.Equal(t, 2, n)

	// 空上下文
	d, n = m.Lookup(nil)
	assert.Equal(t, 0, n)
	assert.Equal(t, uint64(6), d.Total())
}

// UT-NG-05: 上下文不跨源
func TestContextsDoNotSpanSources(t *testing.T) {
	m, err := Build(1, [][]string{words("a b"), words("c d")})
	require.NoError(t, err)
	_, ok := m.Distribution(Context{"b"})
	assert.False(t, ok, "b 之后是源边界，不应有后继")

	one, err := Build(1, [][]string{words("a b c d")})
	require.NoError(t, err)
	d, ok := one.Distribution(Context{"b"})
	require.True(t, ok)
	assert.Equal(t, 1, d.Len())
}

// UT-NG-06: 确定性：两次独立构建结构与指纹一致
func TestDeterministicBuild(t *testing.T) {
	seqs := [][]string{words(fox), words("the dog jumps over the quick fox"), words("over and over the lazy fox")}
	for k := 0; k <= MaxOrder; k++ {
		a, errA := Build(k, seqs)
		b, errB := Build(k, seqs)
		if k >= 9 {
			// 最长的源只有 9 个词
			assert.ErrorIs(t, errA, contract.ErrEmptyCorpus)
			continue
		}
		require.NoError(t, errA)
		require.NoError(t, errB)
		assert.True(t, a.Equal(b), "k=%d", k)
		assert.Equal(t, a.Fingerprint(), b.Fingerprint(), "k=%d", k)
	}
}

// UT-NG-07: 并行构建与顺序构建逐项相同
func TestParallelBuildMatchesSequential(t *testing.T) {
	var seqs [][]string
	for i := 0; i < 17; i++ {
		s := words(fox)
		s = append(s[i%len(s):], s[:i%len(s)]...)
		s = append(s, "tail"+string(rune('a'+i)))
		seqs = append(seqs, s)
	}
	for _, k := range []int{0, 1, 3} {
		seq, err := Build(k, seqs)
		require.NoError(t, err)
		for _, w := range []int{2, 4, 32} {
			par, err := Build(k, seqs, WithWorkers(w))
			require.NoError(t, err)
			assert.True(t, seq.Equal(par), "k=%d workers=%d", k, w)
			assert.Equal(t, seq.Fingerprint(), par.Fingerprint())
		}
	}
}

// UT-NG-08: 逐源 Add 与一次性 Build 相同；封存后拒绝 Add
func TestBuilderIncremental(t *testing.T) {
	seqs := [][]string{words(fox), words("a lazy fox")}
	b, err := NewBuilder(1)
	require.NoError(t, err)
	for _, s := range seqs {
		require.NoError(t, b.Add(s))
	}
	assert.Equal(t, 2, b.Sources())
	inc, err := b.Model()
	require.NoError(t, err)

	all, err := Build(1, seqs)
	require.NoError(t, err)
	assert.True(t, inc.Equal(all))

	assert.ErrorIs(t, b.Add(words("more")), contract.ErrModelSealed)
	_, err = b.Model()
	assert.ErrorIs(t, err, contract.ErrModelSealed)
}

// UT-NG-09: 单文件与拆分为两文件
// k=0 时无跨词上下文，两者完全一致；k>=1 时差异恰为跨越切分点的窗口。
func TestSplitSourcesEquivalence(t *testing.T) {
	all := words(fox + " " + fox)
	left, right := all[:9], all[9:]

	one, err := Build(0, [][]string{all})
	require.NoError(t, err)
	two, err := Build(0, [][]string{left, right})
	require.NoError(t, err)
	assert.True(t, one.Equal(two))
	assert.Equal(t, one.Fingerprint(), two.Fingerprint())

	one, err = Build(1, [][]string{all})
	require.NoError(t, err)
	two, err = Build(1, [][]string{left, right})
	require.NoError(t, err)
	assert.False(t, one.Equal(two))
	// 唯一跨边界窗口 (dog → the)
	d1, ok := one.Distribution(Context{"dog"})
	require.True(t, ok)
	assert.Equal(t, uint64(1), d1.Total())
	_, ok = two.Distribution(Context{"dog"})
	assert.False(t, ok)
	// 其它上下文计数合并一致
	for _, c := range []string{"the", "quick", "over", "lazy"} {
		a, _ := one.Distribution(Context{c})
		b, _ := two.Distribution(Context{c})
		assert.True(t, a.equal(b), "context %q", c)
	}
}

// UT-NG-10: 取消构建
func TestBuildCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(1, [][]string{words(fox), words(fox)}, WithContext(ctx))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = Build(1, [][]string{words(fox), words(fox)}, WithContext(ctx), WithWorkers(2))
	assert.ErrorIs(t, err, context.Canceled)
}

// 指纹对计数与顺序敏感
func TestFingerprintSensitivity(t *testing.T) {
	a, _ := Build(1, [][]string{words("a b a c")})
	b, _ := Build(1, [][]string{words("a c a b")})
	c, _ := Build(0, [][]string{words("a b a c")})
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestContextHelpers(t *testing.T) {
	var c Context
	c = c.Push("a", 2)
	c = c.Push("b", 2)
	c = c.Push("c", 2)
	assert.Equal(t, Context{"b", "c"}, c)
	assert.Nil(t, c.Push("d", 0))
	assert.True(t, c.Equal(Context{"b", "c"}))
	assert.False(t, c.Equal(Context{"b"}))
	assert.Equal(t, Context{"c"}, c.Suffix(1))
	assert.Nil(t, c.Suffix(0))

	// 长度前缀避免 "ab"+"c" 与 "a"+"bc" 冲突
	assert.NotEqual(t, Context{"ab", "c"}.Key(), Context{"a", "bc"}.Key())
	assert.Equal(t, Key(""), Context(nil).Key())
	assert.NotEqual(t, Key(""), Context{""}.Key())
}

func BenchmarkBuild(b *testing.B) {
	var seqs [][]string
	for i := 0; i < 64; i++ {
		seqs = append(seqs, words(strings.Repeat(fox+" ", 50)))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Build(3, seqs, WithWorkers(4)); err != nil {
			b.Fatal(err)
		}
	}
}
