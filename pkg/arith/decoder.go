package arith

import (
	"context"
	"fmt"

	"proseveil/pkg/contract"
	"proseveil/pkg/ngram"
)

// Decode 从词序列还原载荷。
// 帧长度满足后即停止，之后的词被忽略；词序列先耗尽则返回 ErrTruncatedCiphertext。
func (c *Codec) Decode(ctx context.Context, tokens []string) ([]byte, error) {
	// 每个词的分区总和不超过 MaxTotal，一个词确定的位数少于 CodeBits
	sink := newUnframer(c.maxBytes, uint64(len(tokens))*CodeBits)
	k := c.model.Order()
	iv := newInterval()
	var window ngram.Context
	steps := newWalker(c.parts)

	emit := func(s span, settled uint64) error {
		switch s {
		case spanLower:
			if err := sink.push(false); err != nil {
				return err
			}
			return sink.pushRun(true, settled)
		case spanUpper:
			if err := sink.push(true); err != nil {
				return err
			}
			return sink.pushRun(false, settled)
		}
		return nil
	}

	for pos, tok := range tokens {
		if sink.done() {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, ok := steps.next(window)
		if !ok {
			return nil, fmt.Errorf("%w: single-word vocabulary at position %d", contract.ErrDeadEnd, pos)
		}
		i, ok := p.IndexOf(tok)
		if !ok {
			return nil, fmt.Errorf("%w: %q at position %d", contract.ErrUnknownToken, tok, pos)
		}
		lo, hi := p.Cell(i)
		iv.narrow(lo, hi, p.Total())
		if err := iv.renormalize(emit); err != nil {
			return nil, fmt.Errorf("token %d: %w", pos, err)
		}
		window = window.Push(tok, k)
	}
	if !sink.done() {
		return nil, fmt.Errorf("%w: %d tokens yield %d of %d framed bits", contract.ErrTruncatedCiphertext, len(tokens), sink.seen, max(sink.need(), LengthBits))
	}
	return sink.payload()
}
