package ngram

// Distribution 为某个上下文的后继分布：候选按首次出现顺序排列，计数恒为正。
// 构建完成后只读。
type Distribution struct {
	tokens []string
	counts []uint64
	index  map[string]int
	total  uint64
}

func newDistribution() *Distribution {
	return &Distribution{index: make(map[string]int)}
}

// add 累加 tok 的计数 n（首次出现时追加到末尾）。
func (d *Distribution) add(tok string, n uint64) {
	if i, ok := d.index[tok]; ok {
		d.counts[i] += n
	} else {
		d.index[tok] = len(d.tokens)
		d.tokens = append(d.tokens, tok)
		d.counts = append(d.counts, n)
	}
	d.total += n
}

// Len 候选数量。
func (d *Distribution) Len() int {
	if d == nil {
		return 0
	}
	return len(d.tokens)
}

// Token 第 i 个候选。
func (d *Distribution) Token(i int) string { return d.tokens[i] }

// Count 第 i 个候选的计数。
func (d *Distribution) Count(i int) uint64 { return d.counts[i] }

// Total 计数总和。
func (d *Distribution) Total() uint64 {
	if d == nil {
		return 0
	}
	return d.total
}

// Index 返回 tok 的位置；不存在时 ok=false。
func (d *Distribution) Index(tok string) (int, bool) {
	if d == nil {
		return 0, false
	}
	i, ok := d.index[tok]
	return i, ok
}

// Each 按候选顺序遍历；fn 返回 false 时提前结束。
func (d *Distribution) Each(fn func(tok string, count uint64) bool) {
	if d == nil {
		return
	}
	for i, t := range d.tokens {
		if !fn(t, d.counts[i]) {
			return
		}
	}
}

func (d *Distribution) equal(o *Distribution) bool {
	if d.Len() != o.Len() || d.Total() != o.Total() {
		return false
	}
	for i := range d.tokens {
		if d.tokens[i] != o.tokens[i] || d.counts[i] != o.counts[i] {
			return false
		}
	}
	return true
}

// table 为某一上下文长度的全部分布；keys 记录首次出现顺序。
type table struct {
	keys  []Key
	dists map[Key]*Distribution
}

func newTable() *table { return &table{dists: make(map[Key]*Distribution)} }

func (t *table) at(k Key) *Distribution {
	d, ok := t.dists[k]
	if !ok {
		d = newDistribution()
		t.dists[k] = d
		t.keys = append(t.keys, k)
	}
	return d
}

// merge 按 o 的上下文顺序、候选顺序并入计数。
// 依次合并各源的局部表即可还原顺序构建的首次出现顺序。
func (t *table) merge(o *table) {
	for _, k := range o.keys {
		src := o.dists[k]
		dst := t.at(k)
		for i, tok := range src.tokens {
			dst.add(tok, src.counts[i])
		}
	}
}
