package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON 使用 snake_case；未知字段在解析期失败。
type Config struct {
	// Mode: encipher | decipher。
	Mode string `json:"mode"`
	// Context: 命令行阶数 N（0..10），核心阶数 k = max(0, N-1)。
	// 指针用于区分“未设置”与显式 0。
	Context *int `json:"context,omitempty"`
	// ModelFiles: 训练源（文件或目录），顺序即模型构建顺序。
	ModelFiles []string `json:"model_files"`
	// ModelURLs: 远程训练源；仅记录，不拉取。
	ModelURLs []string `json:"model_urls,omitempty"`
	// Input/Output: "-" 表示 STDIN/STDOUT。
	Input  string `json:"input"`
	Output string `json:"output"`
	// Concurrency: 训练源并行计数的 worker 数（>=1）。
	Concurrency int `json:"concurrency"`
	// MaxMessageBytes: 单条载荷上限（加密拒绝超限载荷，解密拒绝超限长度字段）。
	MaxMessageBytes int64 `json:"max_message_bytes"`
	// CacheSize: 分区缓存条目数。
	CacheSize int     `json:"cache_size"`
	Logging   Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// Logging: 日志等级与目录；Dir 为空时使用 diag.DefaultLogDir。
type Logging struct {
	Level string `json:"level"`
	Dir   string `json:"dir,omitempty"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader    string `json:"reader"`
	Tokenizer string `json:"tokenizer"`
	Assembler string `json:"assembler"`
	Writer    string `json:"writer"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Reader    json.RawMessage `json:"reader,omitempty"`
	Tokenizer json.RawMessage `json:"tokenizer,omitempty"`
	Assembler json.RawMessage `json:"assembler,omitempty"`
	Writer    json.RawMessage `json:"writer,omitempty"`
}

// ContextOrDefault 返回生效的命令行阶数。
func (c Config) ContextOrDefault() int {
	if c.Context == nil {
		return DefaultContext
	}
	return *c.Context
}
