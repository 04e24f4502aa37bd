package ngram

// Model 为不可变的上下文模型，可被任意多个编解码过程并发只读共享。
// tables[j] 保存长度为 j 的上下文；tables[0] 仅含空上下文，即 0 阶分布。
type Model struct {
	order  int
	tables []*table
}

// Order 返回阶数 k。
func (m *Model) Order() int { return m.order }

// Lookup 返回上下文 c 对应的后继分布，以及命中的上下文长度。
// c 先截取最近 k 个词；缺失时逐次丢弃最旧词回退，最终落到 0 阶分布（恒非空）。
func (m *Model) Lookup(c Context) (*Distribution, int) {
	c = c.Suffix(m.order)
	for j := len(c); j > 0; j-- {
		if d := m.tables[j].dists[c.Suffix(j).Key()]; d.Len() > 0 {
			return d, j
		}
	}
	return m.tables[0].dists[""], 0
}

// Distribution 精确查询长度为 len(c) 的上下文，不做回退。
func (m *Model) Distribution(c Context) (*Distribution, bool) {
	if len(c) > m.order {
		return nil, false
	}
	d, ok := m.tables[len(c)].dists[c.Key()]
	return d, ok
}

// Contexts 返回完整阶数（长度 k）的上下文数量。
func (m *Model) Contexts() int { return len(m.tables[m.order].keys) }

// Vocabulary 返回 0 阶分布中的不同词数。
func (m *Model) Vocabulary() int { return m.tables[0].dists[""].Len() }

// Tokens 返回训练语料的总词数。
func (m *Model) Tokens() uint64 { return m.tables[0].dists[""].Total() }

// Equal 报告两个模型在结构上是否逐项相同（上下文、候选、计数、顺序）。
func (m *Model) Equal(o *Model) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.order != o.order {
		return false
	}
	for j := range m.tables {
		a, b := m.tables[j], o.tables[j]
		if len(a.keys) != len(b.keys) {
			return false
		}
		for i, k := range a.keys {
			if b.keys[i] != k || !a.dists[k].equal(b.dists[k]) {
				return false
			}
		}
	}
	return true
}
