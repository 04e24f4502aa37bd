package diag

import (
	"context"
	"errors"
	"os"
	"time"

	"proseveil/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/指标汇总，与退出码解耦。
type Code string

const (
	CodeUnknown    Code = "unknown"
	CodeInvariant  Code = "invariant"
	CodeCancel     Code = "cancel"
	CodeIO         Code = "io"
	CodeCorpus     Code = "corpus"     // 模型无法构建
	CodeCiphertext Code = "ciphertext" // 密文与模型不匹配或不完整
	CodeCapacity   Code = "capacity"   // 模型无法承载载荷
)

// Classify 将错误归为最小分类。
// 仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return CodeCancel
	case errors.Is(err, contract.ErrInvalidOrder) ||
		errors.Is(err, contract.ErrEmptyCorpus) ||
		errors.Is(err, contract.ErrModelSealed):
		return CodeCorpus
	case errors.Is(err, contract.ErrUnknownToken) ||
		errors.Is(err, contract.ErrTruncatedCiphertext) ||
		errors.Is(err, contract.ErrInvalidLength):
		return CodeCiphertext
	case errors.Is(err, contract.ErrDeadEnd):
		return CodeCapacity
	case errors.Is(err, contract.ErrInvariantViolation) ||
		errors.Is(err, contract.ErrInvalidInput) ||
		errors.Is(err, contract.ErrPathInvalid):
		return CodeInvariant
	}
	var perr *os.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	return CodeUnknown
}

// NowUTC 返回 RFC3339 UTC 时间字符串（用于结构化日志字段 ts）。
func NowUTC() string { return time.Now().UTC().Format(time.RFC3339) }
