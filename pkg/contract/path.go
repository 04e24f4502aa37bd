package contract

import (
	"path"
	"strings"
)

// NormalizeFileID 规范化路径，统一为跨平台稳定的 FileID。
// 规则：正斜杠分隔；清理多余分隔符与 ./..；保留相对/绝对语义。
// "-"（STDIN/STDOUT）原样保留。
func NormalizeFileID(p string) FileID {
	if p == "-" {
		return FileID(p)
	}
	return FileID(path.Clean(strings.ReplaceAll(p, "\\", "/")))
}
