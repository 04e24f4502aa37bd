package config

import "encoding/json"

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 模式为 encipher，训练源指向 ./corpus 目录；
// - 输入输出均为标准流（"-"）；
// - 组件名采用仓库内置实现；
// - 选项给出安全中性默认值，覆盖全部键。
func DefaultTemplateConfig() Config {
	d := Defaults()
	cfg := Config{
		Mode:            "encipher",
		Context:         d.Context,
		ModelFiles:      []string{"corpus"},
		ModelURLs:       []string{},
		Input:           d.Input,
		Output:          d.Output,
		Concurrency:     d.Concurrency,
		MaxMessageBytes: d.MaxMessageBytes,
		CacheSize:       d.CacheSize,
		Logging:         Logging{Level: "info", Dir: "logs"},
		Components:      d.Components,
	}
	cfg.Options.Reader = json.RawMessage(`{
  "buf_size": 65536,
  "exclude_dir_names": [".git", "node_modules", "vendor"],
  "allow_exts": [".txt"],
  "max_file_bytes": 0
}`)
	cfg.Options.Tokenizer = json.RawMessage(`{
  "max_token_bytes": 0
}`)
	cfg.Options.Assembler = json.RawMessage(`{
  "width": 72
}`)
	cfg.Options.Writer = json.RawMessage(`{
  "buf_size": 65536
}`)
	return cfg
}

// DefaultTemplateEnv 返回 .env 模板内容（全部注释，仅作说明）。
func DefaultTemplateEnv() string {
	return `# proseveil 环境变量（优先级：CLI > ENV > config 文件 > 默认值）
# 真实环境变量优先于本文件。
# PROSEVEIL_MODE=encipher
# PROSEVEIL_CONTEXT=3
# PROSEVEIL_MODEL_FILES=corpus
# PROSEVEIL_MODEL_URLS=
# PROSEVEIL_INPUT=-
# PROSEVEIL_OUTPUT=-
# PROSEVEIL_CONCURRENCY=1
# PROSEVEIL_MAX_MESSAGE_BYTES=16777216
# PROSEVEIL_CACHE_SIZE=4096
# PROSEVEIL_LOG_LEVEL=info
# PROSEVEIL_LOG_DIR=logs
# PROSEVEIL_COMPONENTS_WRITER=stdout
# PROSEVEIL_OPTIONS_ASSEMBLER_JSON={"width":72}
`
}
