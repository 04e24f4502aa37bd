package contract

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// ValidateToken 校验单个词可以经空白切分原样往返：非空且不含空白。
// 与 bufio.ScanWords 的判定保持一致（unicode.IsSpace）。
func ValidateToken(tok string) error {
	if tok == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidInput)
	}
	for i := 0; i < len(tok); {
		r, w := utf8.DecodeRuneInString(tok[i:])
		if unicode.IsSpace(r) {
			return fmt.Errorf("%w: token %q contains whitespace", ErrInvalidInput, tok)
		}
		i += w
	}
	return nil
}

// ValidateTokens 逐个校验；返回第一个错误并带上位置。
func ValidateTokens(tokens []string) error {
	for i, tok := range tokens {
		if err := ValidateToken(tok); err != nil {
			return fmt.Errorf("token %d: %w", i, err)
		}
	}
	return nil
}

// cloneTokens: 复制词序列，避免底层数组共享导致意外修改。
func cloneTokens(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// Clone 返回 Source 的独立拷贝。
func (s Source) Clone() Source {
	return Source{FileID: s.FileID, Tokens: cloneTokens(s.Tokens)}
}
