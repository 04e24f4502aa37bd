package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"proseveil/pkg/contract"
)

// Options 为线性排版的配置。
type Options struct {
	// Width: 每行最大可见宽度（按 rune 计）；0 表示全部输出在一行。
	// 单词本身超过宽度时独占一行，不拆词。
	Width int `json:"width"`
}

type assembler struct {
	width int
}

// New 从原样 JSON Options 创建线性排版器（未知字段报错）。
func New(raw json.RawMessage) (contract.Assembler, error) {
	var opts Options
	if len(bytes.TrimSpace(raw)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&opts); err != nil {
			return nil, err
		}
	}
	if opts.Width < 0 {
		return nil, fmt.Errorf("linear: width must be >= 0, got %d", opts.Width)
	}
	return &assembler{width: opts.Width}, nil
}

// Assemble 以单个空格连接词，按宽度折行，末尾补换行。
// 词为空或含空白时返回 ErrInvalidInput：否则解密端切分出的词序列会与加密端不同。
func (a *assembler) Assemble(ctx context.Context, tokens []string) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return strings.NewReader(""), nil
	}
	if err := contract.ValidateTokens(tokens); err != nil {
		return nil, err
	}
	var b strings.Builder
	line := 0
	for i, tok := range tokens {
		w := utf8.RuneCountInString(tok)
		if i > 0 {
			if a.width > 0 && line+1+w > a.width {
				b.WriteByte('\n')
				line = 0
			} else {
				b.WriteByte(' ')
				line++
			}
		}
		b.WriteString(tok)
		line += w
	}
	b.WriteByte('\n')
	return strings.NewReader(b.String()), nil
}

var _ contract.Assembler = (*assembler)(nil)
