package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"proseveil/internal/pipeline"
	"proseveil/pkg/contract"
	"proseveil/pkg/ngram"
	"proseveil/pkg/registry"
)

// Validate 对最小必要边界做静态校验。
func Validate(cfg Config) error {
	if !contract.Mode(cfg.Mode).Valid() {
		return fmt.Errorf("config: mode must be %q or %q, got %q", contract.Encipher, contract.Decipher, cfg.Mode)
	}
	if n := cfg.ContextOrDefault(); n < 0 || n > ngram.MaxOrder {
		return fmt.Errorf("config: context must be in [0, %d], got %d", ngram.MaxOrder, n)
	}
	if len(cfg.ModelFiles) == 0 {
		return errors.New("config: model_files empty")
	}
	// 训练源必须是真实路径；STDIN 保留给载荷/密文输入
	for _, p := range cfg.ModelFiles {
		switch strings.TrimSpace(p) {
		case "":
			return errors.New("config: model file path cannot be empty")
		case "-":
			return errors.New("config: model files cannot read from stdin")
		}
	}
	if strings.TrimSpace(cfg.Input) == "" {
		return errors.New("config: input cannot be empty")
	}
	if cfg.Concurrency < 1 {
		return errors.New("config: concurrency must be >= 1")
	}
	if cfg.MaxMessageBytes < 0 {
		return errors.New("config: max_message_bytes must be >= 0")
	}
	if cfg.CacheSize < 0 {
		return errors.New("config: cache_size must be >= 0")
	}
	// 组件名若为空，使用默认名（由 Defaults() 提供）。此处只要最终有值即可。
	d := Defaults()
	if name := effName(cfg.Components.Reader, d.Components.Reader); registry.Reader[name] == nil {
		return fmt.Errorf("config: reader %q not registered", name)
	}
	if name := effName(cfg.Components.Tokenizer, d.Components.Tokenizer); registry.Tokenizer[name] == nil {
		return fmt.Errorf("config: tokenizer %q not registered", name)
	}
	if name := effName(cfg.Components.Assembler, d.Components.Assembler); registry.Assembler[name] == nil {
		return fmt.Errorf("config: assembler %q not registered", name)
	}
	if name := effName(cfg.Components.Writer, d.Components.Writer); registry.Writer[name] == nil {
		return fmt.Errorf("config: writer %q not registered", name)
	}
	return nil
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry （工厂）层进行；此处只传 raw JSON。
// Output 为路径时：stdout writer 自动切换为 fs，output_dir 取路径目录，工件名取基名。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	d := Defaults()
	rn := effName(cfg.Components.Reader, d.Components.Reader)
	tn := effName(cfg.Components.Tokenizer, d.Components.Tokenizer)
	an := effName(cfg.Components.Assembler, d.Components.Assembler)
	wn := effName(cfg.Components.Writer, d.Components.Writer)

	artifact, wraw, wn, err := resolveOutput(cfg.Output, wn, cfg.Options.Writer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	// 构造实例
	r, err := registry.Reader[rn](cfg.Options.Reader)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("config: reader options: %w", err)
	}
	tk, err := registry.Tokenizer[tn](cfg.Options.Tokenizer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("config: tokenizer options: %w", err)
	}
	asm, err := registry.Assembler[an](cfg.Options.Assembler)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("config: assembler options: %w", err)
	}
	w, err := registry.Writer[wn](wraw)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("config: writer options: %w", err)
	}

	comp := pipeline.Components{
		Reader:    r,
		Tokenizer: tk,
		Assembler: asm,
		Writer:    w,
	}
	n := cfg.ContextOrDefault()
	set := pipeline.Settings{
		Mode:            contract.Mode(cfg.Mode),
		Context:         n,
		Order:           CoreOrder(n),
		Sources:         cloneStrings(cfg.ModelFiles),
		Remote:          cloneStrings(cfg.ModelURLs),
		Input:           strings.TrimSpace(cfg.Input),
		Artifact:        artifact,
		Workers:         cfg.Concurrency,
		MaxMessageBytes: cfg.MaxMessageBytes,
		CacheSize:       cfg.CacheSize,
	}
	return comp, set, nil
}

// CoreOrder 把命令行阶数 N 转为核心阶数 k = max(0, N-1)。
func CoreOrder(n int) int {
	if n <= 1 {
		return 0
	}
	return n - 1
}

// resolveOutput 计算工件 ID 与最终 writer 名称/选项。
func resolveOutput(output, writer string, raw json.RawMessage) (contract.ArtifactID, json.RawMessage, string, error) {
	out := strings.TrimSpace(output)
	if out == "" || out == "-" {
		if writer == "fs" {
			return "", nil, "", errors.New("config: writer fs requires an output path")
		}
		return contract.ArtifactID("-"), raw, writer, nil
	}
	switch writer {
	case "stdout":
		// 显式输出路径优先于默认 stdout writer；stdout 的选项不适用于 fs
		writer, raw = "fs", nil
	case "fs":
	default:
		return contract.ArtifactID(out), raw, writer, nil
	}
	m := map[string]json.RawMessage{}
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return "", nil, "", fmt.Errorf("config: writer options: %w", err)
		}
	}
	dir, err := json.Marshal(filepath.Dir(out))
	if err != nil {
		return "", nil, "", err
	}
	m["output_dir"] = dir
	b, err := json.Marshal(m)
	if err != nil {
		return "", nil, "", err
	}
	return contract.ArtifactID(filepath.Base(out)), b, writer, nil
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
