package stdout

import (
	"bufio"
	"context"
	"io"
	"os"

	"proseveil/pkg/contract"
)

// Options: 标准输出选项。
type Options struct {
	// BufSize: 写缓冲区大小；<=0 使用默认 64KiB。
	BufSize int `json:"buf_size,omitempty"`
}

// Stdout 把结果按字节原样写到标准输出；ArtifactID 仅用于日志，不影响目标。
type Stdout struct {
	w       io.Writer
	bufSize int
}

// New 创建标准输出 Writer。
func New(opts *Options) *Stdout {
	s := &Stdout{w: os.Stdout, bufSize: 64 * 1024}
	if opts != nil && opts.BufSize > 0 {
		s.bufSize = opts.BufSize
	}
	return s
}

// WithOutput 替换目标流（测试与嵌入场景）。
func (s *Stdout) WithOutput(w io.Writer) *Stdout {
	s.w = w
	return s
}

var _ contract.Writer = (*Stdout)(nil)

// Write 复制 r 的全部字节；每次读取前检查 ctx。
func (s *Stdout) Write(ctx context.Context, _ contract.ArtifactID, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bw := bufio.NewWriterSize(s.w, s.bufSize)
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, err := bw.Write(buf[:n]); err != nil {
				return err
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return rerr
		}
	}
	return bw.Flush()
}
