package contract

import (
	"context"
	"io"
)

// Tokenizer: 将单文件字节流切分为有序词序列。
// 约束：
// 1) 不跨文件合并；
// 2) 按空白切分，不改变词的字节内容（不做大小写、标点、Unicode 归一）；
// 3) 无内部并发、幂等；
// 4) 结果中不得出现空词或含空白的词。
type Tokenizer interface {
	Tokenize(ctx context.Context, fileID FileID, r io.Reader) ([]string, error)
}
