// Package arith 实现以词为符号的算术编码：把载荷位映射为词序列，以及反向映射。
//
// 加密方向（载荷 → 词）运行算术解码器：帧位充当“码流”，每一步从当前上下文的
// 分区中选出包含目标值的候选词并输出；解密方向（词 → 载荷）运行算术编码器：
// 依次按词收窄区间，重整化时确定的位即为帧位。两个方向共用 interval。
package arith

import (
	"errors"

	"proseveil/pkg/ngram"
)

const (
	// DefaultMaxMessageBytes 为默认的单条消息上限。
	DefaultMaxMessageBytes = 16 << 20
	// DefaultCacheSize 为默认的分区缓存条目数。
	DefaultCacheSize = 4096
)

// Option 配置 Codec。
type Option func(*Codec)

// WithMaxMessageBytes 设置载荷上限（加密拒绝超限载荷，解密拒绝超限长度字段）。
// n<=0 或超过长度字段上限时使用 MaxFrameBytes。
func WithMaxMessageBytes(n int64) Option {
	return func(c *Codec) {
		if n <= 0 || uint64(n) > MaxFrameBytes {
			c.maxBytes = MaxFrameBytes
			return
		}
		c.maxBytes = uint64(n)
	}
}

// WithCacheSize 设置分区缓存大小；n<=0 时使用默认值。
func WithCacheSize(n int) Option {
	return func(c *Codec) {
		if n > 0 {
			c.cacheSize = n
		}
	}
}

// Codec 绑定一个只读模型；Encode/Decode 各自持有独立的编码状态，可并发调用。
type Codec struct {
	model     *ngram.Model
	parts     *partitioner
	maxBytes  uint64
	cacheSize int
}

// New 以模型构造 Codec。
func New(m *ngram.Model, opts ...Option) (*Codec, error) {
	if m == nil {
		return nil, errors.New("arith: nil model")
	}
	c := &Codec{model: m, maxBytes: DefaultMaxMessageBytes, cacheSize: DefaultCacheSize}
	for _, fn := range opts {
		fn(c)
	}
	p, err := newPartitioner(m, c.cacheSize)
	if err != nil {
		return nil, err
	}
	c.parts = p
	return c, nil
}

// Model 返回绑定的模型。
func (c *Codec) Model() *ngram.Model { return c.model }

// MaxMessageBytes 返回生效的载荷上限。
func (c *Codec) MaxMessageBytes() uint64 { return c.maxBytes }
