package filesystem

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"proseveil/pkg/contract"
	linear "proseveil/plugins/assembler/linear"
)

var benchWords = []string{"the", "harbor", "was", "quiet", "and", "boats", "rocked", "against", "old", "pier."}

// cipherText 用 linear 组装 n 个词，得到与加密输出同形的文本。
func cipherText(b *testing.B, n int) []byte {
	b.Helper()
	asm, err := linear.New(json.RawMessage(`{"width":72}`))
	if err != nil {
		b.Fatalf("创建 Assembler 失败: %v", err)
	}
	toks := make([]string, n)
	for i := range toks {
		toks[i] = benchWords[(i*7+i/3)%len(benchWords)]
	}
	r, err := asm.Assemble(context.Background(), toks)
	if err != nil {
		b.Fatalf("组装失败: %v", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		b.Fatalf("读取组装结果失败: %v", err)
	}
	return data
}

// BenchmarkWriteCipher 测量写出密文工件的开销：原子替换与直接覆盖两种模式。
func BenchmarkWriteCipher(b *testing.B) {
	for _, words := range []int{200, 200_000} {
		data := cipherText(b, words)
		for _, atomic := range []bool{true, false} {
			atomic := atomic
			b.Run(fmt.Sprintf("words=%d/atomic=%v", words, atomic), func(b *testing.B) {
				w, err := New(&Options{OutputDir: b.TempDir(), Atomic: &atomic})
				if err != nil {
					b.Fatalf("创建 Writer 失败: %v", err)
				}
				id := contract.ArtifactID("cipher.txt")
				ctx := context.Background()
				b.SetBytes(int64(len(data)))
				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if err := w.Write(ctx, id, bytes.NewReader(data)); err != nil {
						b.Fatalf("写入失败: %v", err)
					}
				}
			})
		}
	}
}
