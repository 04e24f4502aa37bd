// Package ngram 实现按阶数 k 统计的 n-gram 上下文模型。
//
// 模型由若干训练源（词序列）构建：对每个 j∈[0,k]，以 j+1 长度窗口在单个源内滑动，
// 前 j 个词为上下文、最后一个词为后继候选。上下文永不跨源。
// 候选按首次出现顺序排列（插入序，而非排序或哈希序），保证独立构建结果逐字节一致。
package ngram

import (
	"encoding/binary"
)

// MaxOrder 为支持的最大阶数（上下文最长 10 个词）。
const MaxOrder = 10

// Context 为前驱词序列（最旧在前）。值语义：比较用 Equal 或 Key。
type Context []string

// Key 为上下文的规范编码：每个词写入 uvarint(len) + 字节。
// 长度前缀保证任意词内容（含空字节）都不会与其它序列冲突。
type Key string

// Key 返回规范编码。
func (c Context) Key() Key {
	if len(c) == 0 {
		return ""
	}
	n := 0
	for _, t := range c {
		n += binary.MaxVarintLen64 + len(t)
	}
	b := make([]byte, 0, n)
	for _, t := range c {
		b = binary.AppendUvarint(b, uint64(len(t)))
		b = append(b, t...)
	}
	return Key(b)
}

// Equal 报告两个上下文的词序列是否相同。
func (c Context) Equal(o Context) bool {
	if len(c) != len(o) {
		return false
	}
	for i := range c {
		if c[i] != o[i] {
			return false
		}
	}
	return true
}

// Push 追加 tok 并丢弃超出 k 的最旧词，返回新上下文；c 本身不被修改。
func (c Context) Push(tok string, k int) Context {
	if k <= 0 {
		return nil
	}
	keep := len(c)
	if keep > k-1 {
		keep = k - 1
	}
	out := make(Context, 0, keep+1)
	out = append(out, c[len(c)-keep:]...)
	return append(out, tok)
}

// Suffix 返回最近 n 个词（n 超过长度时返回全部）。
func (c Context) Suffix(n int) Context {
	if n <= 0 {
		return nil
	}
	if n >= len(c) {
		return c
	}
	return c[len(c)-n:]
}
