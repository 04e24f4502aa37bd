package filesystem

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"proseveil/pkg/contract"
)

// Options 为 FileSystem Reader 的可选配置。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。默认 64KiB。
	BufSize int `json:"buf_size"`
	// ExcludeDirNames: 扫描目录时跳过这些目录名（基名，大小写不敏感）。
	// 仅影响目录递归，不影响单文件 root。
	ExcludeDirNames []string `json:"exclude_dir_names"`
	// AllowExts: 扫描目录时仅收录这些扩展名（如 [".txt",".md"]）；为空表示不过滤。
	// 显式给出的单文件 root 不受限制。
	AllowExts []string `json:"allow_exts"`
	// MaxFileBytes: 单文件字节上限；超出时读取返回错误。0 表示不限制。
	MaxFileBytes int64 `json:"max_file_bytes"`
}

// FileSystem 实现基于文件系统与 STDIN 的 Reader。
// 训练源按参数顺序依次产出；目录先子目录后文件，均按字典序，结果与平台无关。
type FileSystem struct {
	bufSize    int
	excludeDir map[string]struct{}
	allowExt   map[string]struct{}
	maxBytes   int64
	stdin      io.Reader
}

// ErrFileTooLarge: 文件超过 MaxFileBytes。
var ErrFileTooLarge = errors.New("file too large")

// New 创建 FileSystem Reader。
func New(opts *Options) *FileSystem {
	const defaultBuf = 64 * 1024
	r := &FileSystem{bufSize: defaultBuf, excludeDir: map[string]struct{}{}, allowExt: map[string]struct{}{}, stdin: os.Stdin}
	if opts == nil {
		return r
	}
	if opts.BufSize > 0 {
		r.bufSize = opts.BufSize
	}
	for _, name := range opts.ExcludeDirNames {
		if name != "" {
			r.excludeDir[strings.ToLower(name)] = struct{}{}
		}
	}
	for _, ext := range opts.AllowExts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		r.allowExt[ext] = struct{}{}
	}
	if opts.MaxFileBytes > 0 {
		r.maxBytes = opts.MaxFileBytes
	}
	return r
}

// WithStdin 替换 "-" 对应的输入流（测试与嵌入场景）。
func (r *FileSystem) WithStdin(in io.Reader) *FileSystem {
	r.stdin = in
	return r
}

// Iterate 遍历 roots，按稳定顺序对每个常规文件调用 yield。
// roots 为空或仅含 "-" 时读取 STDIN（FileID 为 "-"）。
// yield 负责关闭 rc；yield 返回错误时由 Iterate 关闭。
func (r *FileSystem) Iterate(ctx context.Context, roots []string, yield func(fileID contract.FileID, rc io.ReadCloser) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(roots) == 0 || (len(roots) == 1 && roots[0] == "-") {
		return r.emit("-", io.NopCloser(r.stdin), yield)
	}
	for _, s := range roots {
		if s == "-" {
			return fmt.Errorf("%w: stdin '-' cannot be mixed with other roots", contract.ErrInvalidInput)
		}
	}
	for _, root := range roots {
		if err := r.iterateOne(ctx, root, yield); err != nil {
			return err
		}
	}
	return nil
}

func (r *FileSystem) iterateOne(ctx context.Context, root string, yield func(contract.FileID, io.ReadCloser) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if info.IsDir() {
		// 目录符号链接不跟随
		if l, err := os.Lstat(root); err == nil && l.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		return r.walkDir(ctx, root, yield)
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	return r.open(root, yield)
}

func (r *FileSystem) walkDir(ctx context.Context, dir string, yield func(contract.FileID, io.ReadCloser) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, skip := r.excludeDir[strings.ToLower(e.Name())]; skip {
			continue
		}
		if err := r.walkDir(ctx, filepath.Join(dir, e.Name()), yield); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(r.allowExt) > 0 {
			if _, ok := r.allowExt[strings.ToLower(filepath.Ext(e.Name()))]; !ok {
				continue
			}
		}
		p := filepath.Join(dir, e.Name())
		// 符号链接仅跟随到常规文件
		t, err := os.Stat(p)
		if err != nil {
			return err
		}
		if !t.Mode().IsRegular() {
			continue
		}
		if err := r.open(p, yield); err != nil {
			return err
		}
	}
	return nil
}

func (r *FileSystem) open(p string, yield func(contract.FileID, io.ReadCloser) error) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	return r.emit(contract.NormalizeFileID(p), f, yield)
}

func (r *FileSystem) emit(id contract.FileID, rc io.ReadCloser, yield func(contract.FileID, io.ReadCloser) error) error {
	var src io.Reader = rc
	if r.maxBytes > 0 {
		src = &capReader{r: rc, left: r.maxBytes, id: id}
	}
	brc := &bufferedCloser{Reader: bufio.NewReaderSize(src, r.bufSize), c: rc}
	if err := yield(id, brc); err != nil {
		_ = brc.Close()
		return err
	}
	return nil
}

// capReader 在超过上限时返回 ErrFileTooLarge，而不是静默截断。
type capReader struct {
	r    io.Reader
	left int64
	id   contract.FileID
}

func (c *capReader) Read(p []byte) (int, error) {
	if c.left < 0 {
		return 0, fmt.Errorf("%s: %w", c.id, ErrFileTooLarge)
	}
	// 多读 1 字节以区分“恰好等于上限”与“超出上限”
	if int64(len(p)) > c.left+1 {
		p = p[:c.left+1]
	}
	n, err := c.r.Read(p)
	c.left -= int64(n)
	if c.left < 0 {
		return n + int(c.left), fmt.Errorf("%s: %w", c.id, ErrFileTooLarge)
	}
	return n, err
}

// bufferedCloser 将 bufio.Reader 与底层 Closer 组合为 ReadCloser。
type bufferedCloser struct {
	*bufio.Reader
	c io.Closer
}

func (b *bufferedCloser) Close() error { return b.c.Close() }
