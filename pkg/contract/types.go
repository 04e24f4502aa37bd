package contract

// FileID: 逻辑文档ID（通常为路径，需规范化，跨平台一致）。
type FileID string

// Mode: 运行方向。
type Mode string

const (
	// Encipher: 字节载荷 → 词序列（明文读 STDIN，密文写 STDOUT）。
	Encipher Mode = "encipher"
	// Decipher: 词序列 → 字节载荷。
	Decipher Mode = "decipher"
)

// Valid 报告 m 是否为已知方向。
func (m Mode) Valid() bool { return m == Encipher || m == Decipher }

// Source: 一份训练源的词序列（不可跨源拼接）。
// 约束：
// - Tokens 保持原文顺序，不做大小写/标点归一；
// - 同一份 Source 内的上下文窗口才允许相邻。
type Source struct {
	FileID FileID
	Tokens []string
}
