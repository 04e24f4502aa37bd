package whitespace

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"proseveil/pkg/contract"
)

// Options 为空白切分器的可选配置。
type Options struct {
	// MaxTokenBytes: 单个词的最大字节数。默认 64KiB；超出时返回错误而非截断。
	MaxTokenBytes int `json:"max_token_bytes"`
}

// Tokenizer 按 Unicode 空白切分文本，词的字节内容原样保留（大小写、标点、非法 UTF-8 均不处理）。
type Tokenizer struct {
	maxToken int
}

// New 创建空白切分器。
func New(opts *Options) *Tokenizer {
	const defaultMax = 64 * 1024
	m := defaultMax
	if opts != nil && opts.MaxTokenBytes > 0 {
		m = opts.MaxTokenBytes
	}
	return &Tokenizer{maxToken: m}
}

// ctxCheckEvery: 每切出若干词检查一次取消。
const ctxCheckEvery = 4096

// Tokenize 切分单个文件。空文件返回空切片（非 nil）。
func (t *Tokenizer) Tokenize(ctx context.Context, fileID contract.FileID, r io.Reader) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(r)
	initial := 4096
	if initial > t.maxToken {
		initial = t.maxToken
	}
	sc.Buffer(make([]byte, 0, initial), t.maxToken)
	sc.Split(bufio.ScanWords)

	out := make([]string, 0, 256)
	for sc.Scan() {
		out = append(out, sc.Text())
		if len(out)%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("%s: token longer than %d bytes: %w", fileID, t.maxToken, contract.ErrInvalidInput)
		}
		return nil, fmt.Errorf("%s: %w", fileID, err)
	}
	return out, nil
}

var _ contract.Tokenizer = (*Tokenizer)(nil)
