package arith

import (
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"proseveil/pkg/ngram"
)

// MaxTotal 为单个分区允许的最大频数总和。
// 必须不超过 2^(CodeBits-2)，保证重整化后的区间宽度大于总和，每个候选至少分到一个单位。
const MaxTotal = 1 << 24

// partitionLimit 为 NewPartition 实际使用的缩放上限，测试可临时调小。
var partitionLimit uint64 = MaxTotal

// Cell 为候选在 [0,Total) 上的整数区间 [Low,High)。
type Cell struct {
	Token string
	Low   uint64
	High  uint64
}

// Partition 为后继分布的确定性整数分区：候选 i 占 [cum[i], cum[i+1])。
// 只依赖分布的候选顺序与计数，加密端与解密端逐位一致。
type Partition struct {
	dist *ngram.Distribution
	cum  []uint64 // len = n+1; cum[0]=0, cum[n]=Total
}

// NewPartition 由分布构造分区。
// 总和超过 MaxTotal 时把每个计数减半（向上取整，不会归零）直到放得下。
func NewPartition(d *ngram.Distribution) *Partition {
	counts := make([]uint64, d.Len())
	for i := range counts {
		counts[i] = d.Count(i)
	}
	counts = scaleCounts(counts, partitionLimit)
	cum := make([]uint64, len(counts)+1)
	for i, c := range counts {
		cum[i+1] = cum[i] + c
	}
	return &Partition{dist: d, cum: cum}
}

// scaleCounts 原地减半直到总和不超过 limit；正计数减半后仍为正。
func scaleCounts(counts []uint64, limit uint64) []uint64 {
	var total uint64
	for _, c := range counts {
		total += c
	}
	for total > limit {
		prev := total
		total = 0
		for i := range counts {
			counts[i] = (counts[i] + 1) >> 1
			total += counts[i]
		}
		if total == prev {
			// 全部为 1，无法再缩
			break
		}
	}
	return counts
}

// Len 候选数量。
func (p *Partition) Len() int { return len(p.cum) - 1 }

// Total 分区总和（可能已缩放）。
func (p *Partition) Total() uint64 { return p.cum[len(p.cum)-1] }

// Token 第 i 个候选。
func (p *Partition) Token(i int) string { return p.dist.Token(i) }

// Cell 返回第 i 个候选的 [lo,hi)。
func (p *Partition) Cell(i int) (lo, hi uint64) { return p.cum[i], p.cum[i+1] }

// Cells 返回全部区间，按候选顺序。
func (p *Partition) Cells() []Cell {
	out := make([]Cell, p.Len())
	for i := range out {
		out[i] = Cell{Token: p.Token(i), Low: p.cum[i], High: p.cum[i+1]}
	}
	return out
}

// Search 返回满足 cum[i] <= target < cum[i+1] 的 i；要求 target < Total。
func (p *Partition) Search(target uint64) int {
	return sort.Search(p.Len(), func(i int) bool { return p.cum[i+1] > target })
}

// IndexOf 查找候选位置。
func (p *Partition) IndexOf(tok string) (int, bool) { return p.dist.Index(tok) }

// partitioner 按上下文取分区并缓存。
// 缓存以分布对象为键：模型不可变，同一分布的分区恒相同；lru.Cache 自带锁，可被并发运行共享。
type partitioner struct {
	model *ngram.Model
	cache *lru.Cache[*ngram.Distribution, *Partition]
}

func newPartitioner(m *ngram.Model, size int) (*partitioner, error) {
	c, err := lru.New[*ngram.Distribution, *Partition](size)
	if err != nil {
		return nil, err
	}
	return &partitioner{model: m, cache: c}, nil
}

// forContext 返回上下文（回退后）分布的分区。
func (p *partitioner) forContext(c ngram.Context) *Partition {
	part, _ := p.lookup(c)
	return part
}

// lookup 同 forContext，另返回命中的上下文长度。
func (p *partitioner) lookup(c ngram.Context) (*Partition, int) {
	d, level := p.model.Lookup(c)
	if part, ok := p.cache.Get(d); ok {
		return part, level
	}
	part := NewPartition(d)
	p.cache.Add(d, part)
	return part, level
}

// walker 为一次编码或解码运行逐步选出分区，两个方向规则相同。
// forced 记录连续单候选步经过的上下文：单候选步不携带信息，
// 同一上下文在链中再次出现说明进入了环，此时改用更短回退层级中
// 第一个多候选的分布（最终为 0 阶），打破环。
type walker struct {
	parts  *partitioner
	forced map[ngram.Key]struct{}
}

func newWalker(p *partitioner) *walker {
	return &walker{parts: p, forced: make(map[ngram.Key]struct{})}
}

// next 返回 window 这一步使用的分区；ok=false 表示 0 阶也只有一个词，模型无法承载任何位。
func (w *walker) next(window ngram.Context) (part *Partition, ok bool) {
	part, level := w.parts.lookup(window)
	if part.Len() > 1 {
		w.reset()
		return part, true
	}
	key := window.Key()
	if _, seen := w.forced[key]; !seen {
		w.forced[key] = struct{}{}
		return part, true
	}
	for level > 0 {
		part, level = w.parts.lookup(window.Suffix(level - 1))
		if part.Len() > 1 {
			w.reset()
			return part, true
		}
	}
	return part, false
}

func (w *walker) reset() {
	if len(w.forced) > 0 {
		clear(w.forced)
	}
}
