package contract

import (
	"context"
	"io"
)

// Assembler: 将密文词序列排版为最终文本。
// 约束：
//  1. 词之间仅插入空白（空格/换行），不改变词本身；
//  2. 按输入顺序输出，不重排、不丢失；
//  3. 词为空或含空白时返回 ErrInvalidInput（否则解密端无法还原同一序列）。
type Assembler interface {
	Assemble(ctx context.Context, tokens []string) (io.Reader, error)
}
