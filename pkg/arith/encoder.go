package arith

import (
	"context"
	"fmt"

	"proseveil/pkg/contract"
	"proseveil/pkg/ngram"
)

// Encode 把载荷编码为词序列。
// 输出的词恰好足以确定全部帧位：一旦已确定位数达到帧长即停止，不需额外的结束标记。
func (c *Codec) Encode(ctx context.Context, payload []byte) ([]string, error) {
	framed, bits, err := Frame(payload, c.maxBytes)
	if err != nil {
		return nil, err
	}
	src := newBitSource(framed, bits)

	// 目标值窗口：帧的前 32 位
	var value uint64
	for i := 0; i < CodeBits; i++ {
		b, err := src.next()
		if err != nil {
			return nil, err
		}
		value = value<<1 | b
	}

	k := c.model.Order()
	iv := newInterval()
	var window ngram.Context
	steps := newWalker(c.parts)
	out := make([]string, 0, bits/2+8)

	shift := func(s span, _ uint64) error {
		switch s {
		case spanUpper:
			value -= half
		case spanMiddle:
			value -= firstQuarter
		}
		b, err := src.next()
		if err != nil {
			return err
		}
		value = value<<1 | b
		return nil
	}

	for iv.resolved < bits {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, ok := steps.next(window)
		if !ok {
			return nil, fmt.Errorf("%w: single-word vocabulary after %d tokens", contract.ErrDeadEnd, len(out))
		}

		total := p.Total()
		rng := iv.high - iv.low + 1
		target := ((value-iv.low+1)*total - 1) / rng
		i := p.Search(target)
		lo, hi := p.Cell(i)
		iv.narrow(lo, hi, total)
		if err := iv.renormalize(shift); err != nil {
			return nil, err
		}

		tok := p.Token(i)
		out = append(out, tok)
		window = window.Push(tok, k)
	}
	return out, nil
}
