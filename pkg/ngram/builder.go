package ngram

import (
	"context"
	"fmt"
	"sync"

	"proseveil/pkg/contract"
)

// Builder 逐源累加计数；Model() 之后封存。
// 非并发安全：同一 Builder 只应由一个 goroutine 使用。
type Builder struct {
	order   int
	tables  []*table
	formed  bool // 至少一个源形成过完整阶数的窗口
	sources int
	sealed  bool
}

// NewBuilder 创建阶数为 k 的空构建器。
func NewBuilder(k int) (*Builder, error) {
	if k < 0 || k > MaxOrder {
		return nil, fmt.Errorf("%w: k=%d (want 0..%d)", contract.ErrInvalidOrder, k, MaxOrder)
	}
	return &Builder{order: k, tables: newTables(k)}, nil
}

func newTables(k int) []*table {
	ts := make([]*table, k+1)
	for j := range ts {
		ts[j] = newTable()
	}
	return ts
}

// Add 以一个训练源的词序列累加计数。窗口不跨源。
func (b *Builder) Add(seq []string) error {
	if b.sealed {
		return contract.ErrModelSealed
	}
	if countInto(b.tables, b.order, seq) {
		b.formed = true
	}
	b.sources++
	return nil
}

// countInto 把 seq 的全部窗口计入 ts；返回是否形成了完整阶数的窗口。
func countInto(ts []*table, k int, seq []string) bool {
	for j := 0; j <= k; j++ {
		t := ts[j]
		for i := j; i < len(seq); i++ {
			ctx := Context(seq[i-j : i])
			t.at(ctx.Key()).add(seq[i], 1)
		}
	}
	return len(seq) > k
}

// Sources 已累加的源数量。
func (b *Builder) Sources() int { return b.sources }

// Model 封存构建器并返回不可变模型。
func (b *Builder) Model() (*Model, error) {
	if b.sealed {
		return nil, contract.ErrModelSealed
	}
	if !b.formed {
		return nil, fmt.Errorf("%w: %d sources, none longer than k=%d tokens", contract.ErrEmptyCorpus, b.sources, b.order)
	}
	b.sealed = true
	return &Model{order: b.order, tables: b.tables}, nil
}

// Option 配置 Build。
type Option func(*buildOptions)

type buildOptions struct {
	workers int
	ctx     context.Context
}

// WithWorkers 设置并行计数的工作协程数；<=1 表示顺序构建。
func WithWorkers(n int) Option { return func(o *buildOptions) { o.workers = n } }

// WithContext 允许在源之间取消构建。
func WithContext(ctx context.Context) Option { return func(o *buildOptions) { o.ctx = ctx } }

// Build 由多个训练源构建模型。
// 并行模式下每个源计入独立的局部表，再严格按源顺序合并，结果与顺序构建逐项相同。
func Build(k int, seqs [][]string, opts ...Option) (*Model, error) {
	o := buildOptions{workers: 1, ctx: context.Background()}
	for _, fn := range opts {
		fn(&o)
	}
	b, err := NewBuilder(k)
	if err != nil {
		return nil, err
	}
	if o.workers <= 1 || len(seqs) <= 1 {
		for _, s := range seqs {
			if err := o.ctx.Err(); err != nil {
				return nil, err
			}
			if err := b.Add(s); err != nil {
				return nil, err
			}
		}
		return b.Model()
	}

	type partial struct {
		tables []*table
		formed bool
	}
	parts := make([]partial, len(seqs))
	sem := make(chan struct{}, o.workers)
	var wg sync.WaitGroup
	for i := range seqs {
		if o.ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			ts := newTables(k)
			formed := countInto(ts, k, seqs[i])
			parts[i] = partial{tables: ts, formed: formed}
		}(i)
	}
	wg.Wait()
	if err := o.ctx.Err(); err != nil {
		return nil, err
	}
	// 合并：源顺序优先，源内按首次出现顺序
	for _, p := range parts {
		for j := range b.tables {
			b.tables[j].merge(p.tables[j])
		}
		b.formed = b.formed || p.formed
		b.sources++
	}
	return b.Model()
}
