package contract

import "errors"

// Writer/路径相关最小错误分类。
var (
	// ErrPathInvalid: 目标标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrInvalidInput: 调用方输入不合法（空 token、含空白的 token、多份输入等）。
	ErrInvalidInput = errors.New("invalid input")
)

// 模型与编解码错误分类。
// 均为本次运行的致命错误：算术编码状态一旦失步无法恢复，调用方不得重试。
var (
	// ErrInvalidOrder: 上下文阶数 k 越界（k<0 或 k>MaxOrder）。
	ErrInvalidOrder = errors.New("invalid order")
	// ErrEmptyCorpus: 训练语料不足以形成任何完整阶数的上下文。
	ErrEmptyCorpus = errors.New("empty corpus")
	// ErrModelSealed: 模型已生成，构建器不再接受新的训练序列。
	ErrModelSealed = errors.New("model sealed")
	// ErrUnknownToken: 密文中的词不是当前上下文（及其回退分布）的合法候选。
	ErrUnknownToken = errors.New("unknown token")
	// ErrTruncatedCiphertext: 词序列在满足帧长度前耗尽。
	ErrTruncatedCiphertext = errors.New("truncated ciphertext")
	// ErrInvalidLength: 帧长度字段不合理（超过上限或非整字节）。
	ErrInvalidLength = errors.New("invalid length")
	// ErrDeadEnd: 词表只有一个词，任何上下文都只有唯一候选，无法承载载荷位。
	ErrDeadEnd = errors.New("model cannot carry payload")
)
