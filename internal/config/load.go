package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultContext 为默认命令行阶数（核心阶数 2）。
const DefaultContext = 3

// EnvPrefix 为环境变量前缀。
const EnvPrefix = "PROSEVEIL_"

// Defaults 返回带有安全默认值的 Config 雏形。
// 注意：Mode 与 ModelFiles 不设默认（必须由 JSON/ENV/CLI 提供）。
func Defaults() Config {
	ctx := DefaultContext
	return Config{
		Context:         &ctx,
		Input:           "-",
		Output:          "-",
		Concurrency:     1,
		MaxMessageBytes: 16 << 20,
		CacheSize:       4096,
		Logging:         Logging{Level: "info"},
		Components: Components{
			Reader:    "fs",
			Tokenizer: "whitespace",
			Assembler: "linear",
			Writer:    "stdout",
		},
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFile 按扩展名加载配置：.yaml/.yml 先经 YAML 解析再转为 JSON 严格解码，其余按 JSON。
func LoadFile(path string) (Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		raw, err := yamlToJSON(b)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
		return LoadJSON("", raw)
	default:
		return LoadJSON(path, nil)
	}
}

// yamlToJSON 将 YAML 文档转为 JSON 字节；空文档视为 {}。
func yamlToJSON(b []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	if doc == nil {
		return []byte("{}"), nil
	}
	norm, err := normalizeYAML(doc)
	if err != nil {
		return nil, err
	}
	return json.Marshal(norm)
}

// normalizeYAML 把 YAML 的非字符串键映射转为 JSON 可编码的 map[string]any。
func normalizeYAML(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			n, err := normalizeYAML(e)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("yaml: non-string key %v", k)
			}
			n, err := normalizeYAML(e)
			if err != nil {
				return nil, err
			}
			out[ks] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			n, err := normalizeYAML(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return v, nil
	}
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if s := strings.TrimSpace(over.Mode); s != "" {
		out.Mode = s
	}
	// Context 的 0 具有语义（核心阶数 0），以指针是否为 nil 判定“存在”。
	if over.Context != nil {
		v := *over.Context
		out.Context = &v
	}
	if len(over.ModelFiles) > 0 {
		out.ModelFiles = cloneStrings(over.ModelFiles)
	}
	if len(over.ModelURLs) > 0 {
		out.ModelURLs = cloneStrings(over.ModelURLs)
	}
	if s := strings.TrimSpace(over.Input); s != "" {
		out.Input = s
	}
	if s := strings.TrimSpace(over.Output); s != "" {
		out.Output = s
	}
	if over.Concurrency != 0 {
		out.Concurrency = over.Concurrency
	}
	if over.MaxMessageBytes != 0 {
		out.MaxMessageBytes = over.MaxMessageBytes
	}
	if over.CacheSize != 0 {
		out.CacheSize = over.CacheSize
	}
	if s := strings.TrimSpace(over.Logging.Level); s != "" {
		out.Logging.Level = s
	}
	if s := strings.TrimSpace(over.Logging.Dir); s != "" {
		out.Logging.Dir = s
	}

	// 组件名（空不覆盖）
	if over.Components.Reader != "" {
		out.Components.Reader = over.Components.Reader
	}
	if over.Components.Tokenizer != "" {
		out.Components.Tokenizer = over.Components.Tokenizer
	}
	if over.Components.Assembler != "" {
		out.Components.Assembler = over.Components.Assembler
	}
	if over.Components.Writer != "" {
		out.Components.Writer = over.Components.Writer
	}

	// Options（完整替换对应键）
	if len(over.Options.Reader) > 0 {
		out.Options.Reader = cloneRaw(over.Options.Reader)
	}
	if len(over.Options.Tokenizer) > 0 {
		out.Options.Tokenizer = cloneRaw(over.Options.Tokenizer)
	}
	if len(over.Options.Assembler) > 0 {
		out.Options.Assembler = cloneRaw(over.Options.Assembler)
	}
	if len(over.Options.Writer) > 0 {
		out.Options.Writer = cloneRaw(over.Options.Writer)
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 规则：前缀 PROSEVEIL_；集合之外的键忽略；数值解析失败返回错误。
// 支持：MODE, CONTEXT, MODEL_FILES, MODEL_URLS, INPUT, OUTPUT, CONCURRENCY,
// MAX_MESSAGE_BYTES, CACHE_SIZE, LOG_LEVEL, LOG_DIR, COMPONENTS_*, OPTIONS_*_JSON。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key := kv[len(EnvPrefix):eq]
		val := kv[eq+1:]
		switch key {
		case "MODE":
			over.Mode = strings.TrimSpace(val)
		case "CONTEXT":
			v, err := atoi(val)
			if err != nil {
				return Config{}, fmt.Errorf("env %sCONTEXT: %w", EnvPrefix, err)
			}
			over.Context = &v
		case "MODEL_FILES":
			over.ModelFiles = splitList(val)
		case "MODEL_URLS":
			over.ModelURLs = splitList(val)
		case "INPUT":
			over.Input = strings.TrimSpace(val)
		case "OUTPUT":
			over.Output = strings.TrimSpace(val)
		case "CONCURRENCY":
			v, err := atoi(val)
			if err != nil {
				return Config{}, fmt.Errorf("env %sCONCURRENCY: %w", EnvPrefix, err)
			}
			over.Concurrency = v
		case "MAX_MESSAGE_BYTES":
			v, err := atoi(val)
			if err != nil {
				return Config{}, fmt.Errorf("env %sMAX_MESSAGE_BYTES: %w", EnvPrefix, err)
			}
			over.MaxMessageBytes = int64(v)
		case "CACHE_SIZE":
			v, err := atoi(val)
			if err != nil {
				return Config{}, fmt.Errorf("env %sCACHE_SIZE: %w", EnvPrefix, err)
			}
			over.CacheSize = v
		case "LOG_LEVEL":
			over.Logging.Level = strings.TrimSpace(val)
		case "LOG_DIR":
			over.Logging.Dir = strings.TrimSpace(val)
		case "COMPONENTS_READER":
			over.Components.Reader = strings.TrimSpace(val)
		case "COMPONENTS_TOKENIZER":
			over.Components.Tokenizer = strings.TrimSpace(val)
		case "COMPONENTS_ASSEMBLER":
			over.Components.Assembler = strings.TrimSpace(val)
		case "COMPONENTS_WRITER":
			over.Components.Writer = strings.TrimSpace(val)
		// 原样 JSON；空值视为未设置，避免清空现有配置
		case "OPTIONS_READER_JSON":
			over.Options.Reader = rawOrNil(val)
		case "OPTIONS_TOKENIZER_JSON":
			over.Options.Tokenizer = rawOrNil(val)
		case "OPTIONS_ASSEMBLER_JSON":
			over.Options.Assembler = rawOrNil(val)
		case "OPTIONS_WRITER_JSON":
			over.Options.Writer = rawOrNil(val)
		}
	}
	return over, nil
}

func rawOrNil(val string) json.RawMessage {
	if strings.TrimSpace(val) == "" {
		return nil
	}
	return json.RawMessage(val)
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

// splitList 按逗号或系统路径分隔符切分并去空白。
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == os.PathListSeparator })
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func atoi(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &n)
	if err != nil {
		return 0, err
	}
	return n, nil
}
