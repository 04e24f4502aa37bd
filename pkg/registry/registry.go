package registry

import (
	"bytes"
	"encoding/json"

	"proseveil/pkg/contract"
	linear "proseveil/plugins/assembler/linear"
	rfs "proseveil/plugins/reader/filesystem"
	tws "proseveil/plugins/tokenizer/whitespace"
	wfs "proseveil/plugins/writer/filesystem"
	wstd "proseveil/plugins/writer/stdout"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewTokenizer 工厂签名：接收原样 JSON Options。
type NewTokenizer func(raw json.RawMessage) (contract.Tokenizer, error)

// NewAssembler 工厂签名：接收原样 JSON Options。
type NewAssembler func(raw json.RawMessage) (contract.Assembler, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件系统/STDIN Reader（训练源与载荷输入共用）
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts), nil
	},
}

// Tokenizer 工厂注册表。
var Tokenizer = map[string]NewTokenizer{
	// whitespace: 按空白切分，不归一
	"whitespace": func(raw json.RawMessage) (contract.Tokenizer, error) {
		var opts tws.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return tws.New(&opts), nil
	},
}

// Assembler 工厂注册表。
var Assembler = map[string]NewAssembler{
	// linear: 空格连接，可按宽度折行
	"linear": func(raw json.RawMessage) (contract.Assembler, error) { return linear.New(raw) },
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// stdout: 标准输出（默认）
	"stdout": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wstd.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wstd.New(&opts), nil
	},
	// fs: 文件系统 Writer（原子替换可配置）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
}
