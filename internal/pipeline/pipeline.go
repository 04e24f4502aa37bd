package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"proseveil/internal/diag"
	"proseveil/pkg/arith"
	"proseveil/pkg/contract"
	"proseveil/pkg/ngram"
)

// - 单次运行：Reader → Tokenizer → 模型 → Codec → (Assembler) → Writer。
// - 并发仅在模型构建：训练源并行计数，按源顺序合并；编解码本身是严格顺序的状态机。
// - 首错即停：任一阶段出错立即返回，不写任何部分输出（Writer 只接收完整结果）。

// Components 聚合运行所需的原子组件。
type Components struct {
	Reader    contract.Reader
	Tokenizer contract.Tokenizer
	Assembler contract.Assembler
	Writer    contract.Writer
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	Mode contract.Mode
	// Context 为命令行阶数（仅用于展示）；Order 为核心阶数 k。
	Context int
	Order   int
	// Sources 为训练源根（文件或目录），顺序即构建顺序。
	Sources []string
	// Remote 为远程训练源，仅记录告警，不拉取。
	Remote []string
	// Input 为载荷/密文输入（"-" 为 STDIN）；Artifact 为输出工件。
	Input    string
	Artifact contract.ArtifactID
	// Workers 为模型构建的计数并发度。
	Workers         int
	MaxMessageBytes int64
	CacheSize       int
}

// Run 执行一次完整的加密或解密。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) error {
	if err := sanity(comp, set); err != nil {
		return fmt.Errorf("sanity: %w", err)
	}
	runStart := time.Now()
	ok := false
	if t := diag.GetTerminal(); t != nil {
		t.RunStart(string(set.Mode), set.Context, len(set.Sources))
	}
	defer func() {
		if t := diag.GetTerminal(); t != nil {
			t.RunFinish(ok, time.Since(runStart))
		}
		result := "success"
		if !ok {
			result = "error"
		}
		diag.IncOp("pipeline", "run", result)
		diag.ObserveDuration("pipeline", "run", time.Since(runStart).Milliseconds())
	}()

	if len(set.Remote) > 0 {
		logger.Warn("pipeline", "model urls are not fetched", map[string]string{
			"count": strconv.Itoa(len(set.Remote)),
			"urls":  strings.Join(set.Remote, ","),
		})
	}

	m, err := LoadModel(ctx, comp, set, logger)
	if err != nil {
		return err
	}
	codec, err := arith.New(m, arith.WithMaxMessageBytes(set.MaxMessageBytes), arith.WithCacheSize(set.CacheSize))
	if err != nil {
		return fmt.Errorf("codec: %w", err)
	}

	inID, data, err := readInput(ctx, comp.Reader, set.Input, logger)
	if err != nil {
		return err
	}

	var out io.Reader
	switch set.Mode {
	case contract.Encipher:
		out, err = encipher(ctx, comp, codec, inID, data, logger)
	case contract.Decipher:
		out, err = decipher(ctx, comp, codec, inID, data, logger)
	default:
		err = fmt.Errorf("%w: mode %q", contract.ErrInvalidInput, set.Mode)
	}
	if err != nil {
		return err
	}

	wtimer := logger.StartWith("writer", "write", string(set.Artifact))
	if werr := comp.Writer.Write(ctx, set.Artifact, out); werr != nil {
		fail(logger, "writer", "write failed", string(set.Artifact), werr)
		return fmt.Errorf("writer write: %w", werr)
	}
	wtimer.Finish("write", 1)
	diag.IncOp("writer", "finish", "success")
	ok = true
	return nil
}

// LoadModel 读取并切分全部训练源，再按 set.Order 构建模型。
func LoadModel(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (*ngram.Model, error) {
	srcs, err := LoadSources(ctx, comp, set.Sources, logger)
	if err != nil {
		return nil, err
	}
	seqs := make([][]string, len(srcs))
	for i, s := range srcs {
		seqs[i] = s.Tokens
	}
	mtimer := logger.StartWithKV("model", "build", "", map[string]string{
		"order":   strconv.Itoa(set.Order),
		"sources": strconv.Itoa(len(srcs)),
		"workers": strconv.Itoa(set.Workers),
	})
	m, err := ngram.Build(set.Order, seqs, ngram.WithWorkers(set.Workers), ngram.WithContext(ctx))
	if err != nil {
		fail(logger, "model", "build failed", "", err)
		return nil, fmt.Errorf("model build: %w", err)
	}
	fp := m.Fingerprint()
	mtimer.FinishKV("build", int64(m.Contexts()), map[string]string{
		"vocabulary":  strconv.Itoa(m.Vocabulary()),
		"tokens":      strconv.FormatUint(m.Tokens(), 10),
		"fingerprint": fmt.Sprintf("%016x", fp),
	})
	diag.IncOp("model", "finish", "success")
	diag.ObserveDuration("model", "build", mtimer.Elapsed().Milliseconds())
	if t := diag.GetTerminal(); t != nil {
		t.ModelReady(m.Vocabulary(), m.Contexts(), fp, mtimer.Elapsed())
	}
	return m, nil
}

// LoadSources 以 Reader 遍历训练源根，逐文件切词；顺序与 Reader 回调顺序一致。
func LoadSources(ctx context.Context, comp Components, roots []string, logger *diag.Logger) ([]contract.Source, error) {
	var srcs []contract.Source
	logged := false
	err := comp.Reader.Iterate(ctx, roots, func(fid contract.FileID, rc io.ReadCloser) error {
		defer rc.Close()
		start := time.Now()
		ttimer := logger.StartWith("tokenizer", "tokenize", string(fid))
		toks, err := comp.Tokenizer.Tokenize(ctx, fid, rc)
		if err != nil {
			fail(logger, "tokenizer", "tokenize failed", string(fid), err)
			logged = true
			return fmt.Errorf("tokenizer %s: %w", fid, err)
		}
		ttimer.Finish("tokenize", int64(len(toks)))
		diag.IncOp("tokenizer", "finish", "success")
		srcs = append(srcs, contract.Source{FileID: fid, Tokens: toks})
		if t := diag.GetTerminal(); t != nil {
			t.SourceDone(string(fid), len(toks), time.Since(start))
		}
		return nil
	})
	if err != nil {
		if !logged {
			fail(logger, "reader", "iterate failed", "", err)
		}
		return nil, fmt.Errorf("reader iterate: %w", err)
	}
	if len(srcs) == 0 {
		err := fmt.Errorf("%w: no training files found", contract.ErrEmptyCorpus)
		fail(logger, "reader", "no sources", "", err)
		return nil, err
	}
	return srcs, nil
}

// readInput 读取唯一的载荷/密文输入；多于一个文件视为输入非法。
func readInput(ctx context.Context, r contract.Reader, input string, logger *diag.Logger) (contract.FileID, []byte, error) {
	var (
		id   contract.FileID
		data []byte
		n    int
	)
	rtimer := logger.StartWith("reader", "input", input)
	err := r.Iterate(ctx, []string{input}, func(fid contract.FileID, rc io.ReadCloser) error {
		defer rc.Close()
		n++
		if n > 1 {
			return fmt.Errorf("%w: input %q yields more than one file", contract.ErrInvalidInput, input)
		}
		b, err := io.ReadAll(rc)
		if err != nil {
			return err
		}
		id, data = fid, b
		return nil
	})
	if err == nil && n == 0 {
		err = fmt.Errorf("%w: input %q yields no file", contract.ErrInvalidInput, input)
	}
	if err != nil {
		fail(logger, "reader", "read input failed", input, err)
		return "", nil, fmt.Errorf("read input: %w", err)
	}
	rtimer.Finish("input", int64(len(data)))
	diag.IncOp("reader", "finish", "success")
	return id, data, nil
}

func encipher(ctx context.Context, comp Components, codec *arith.Codec, fid contract.FileID, payload []byte, logger *diag.Logger) (io.Reader, error) {
	start := time.Now()
	ctimer := logger.StartWith("codec", "encode", string(fid))
	toks, err := codec.Encode(ctx, payload)
	if err != nil {
		fail(logger, "codec", "encode failed", string(fid), err)
		codecFinish(false, 0, len(payload), start)
		return nil, fmt.Errorf("encode: %w", err)
	}
	ctimer.FinishKV("encode", int64(len(toks)), map[string]string{"bytes": strconv.Itoa(len(payload))})
	diag.IncOp("codec", "encode", "success")
	diag.ObserveDuration("codec", "encode", time.Since(start).Milliseconds())

	atimer := logger.StartWith("assembler", "assemble", string(fid))
	r, err := comp.Assembler.Assemble(ctx, toks)
	if err != nil {
		fail(logger, "assembler", "assemble failed", string(fid), err)
		codecFinish(false, len(toks), len(payload), start)
		return nil, fmt.Errorf("assembler assemble: %w", err)
	}
	atimer.Finish("assemble", int64(len(toks)))
	diag.IncOp("assembler", "finish", "success")
	codecFinish(true, len(toks), len(payload), start)
	return r, nil
}

func decipher(ctx context.Context, comp Components, codec *arith.Codec, fid contract.FileID, text []byte, logger *diag.Logger) (io.Reader, error) {
	start := time.Now()
	toks, err := comp.Tokenizer.Tokenize(ctx, fid, bytes.NewReader(text))
	if err != nil {
		fail(logger, "tokenizer", "tokenize failed", string(fid), err)
		codecFinish(false, 0, 0, start)
		return nil, fmt.Errorf("tokenizer %s: %w", fid, err)
	}
	ctimer := logger.StartWith("codec", "decode", string(fid))
	payload, err := codec.Decode(ctx, toks)
	if err != nil {
		fail(logger, "codec", "decode failed", string(fid), err)
		codecFinish(false, len(toks), 0, start)
		return nil, fmt.Errorf("decode: %w", err)
	}
	ctimer.FinishKV("decode", int64(len(payload)), map[string]string{"tokens": strconv.Itoa(len(toks))})
	diag.IncOp("codec", "decode", "success")
	diag.ObserveDuration("codec", "decode", time.Since(start).Milliseconds())
	codecFinish(true, len(toks), len(payload), start)
	return bytes.NewReader(payload), nil
}

func codecFinish(ok bool, tokens, n int, start time.Time) {
	if t := diag.GetTerminal(); t != nil {
		t.CodecFinish(ok, tokens, n, time.Since(start))
	}
}

// fail 记录错误事件与分类计数。
func fail(logger *diag.Logger, comp, msg, fileID string, err error) {
	code := diag.Classify(err)
	logger.ErrorWithKV(comp, string(code), msg, nil, fileID, map[string]string{"err": err.Error()})
	diag.IncOp(comp, "error", "error")
	if code != diag.CodeUnknown {
		diag.IncError(comp, string(code))
	}
}

func sanity(c Components, s Settings) error {
	if c.Reader == nil || c.Tokenizer == nil || c.Writer == nil {
		return errors.New("pipeline: missing components")
	}
	if s.Mode == contract.Encipher && c.Assembler == nil {
		return errors.New("pipeline: missing assembler")
	}
	if !s.Mode.Valid() {
		return fmt.Errorf("%w: mode %q", contract.ErrInvalidInput, s.Mode)
	}
	if len(s.Sources) == 0 {
		return errors.New("pipeline: empty sources")
	}
	if s.Order < 0 || s.Order > ngram.MaxOrder {
		return fmt.Errorf("%w: %d", contract.ErrInvalidOrder, s.Order)
	}
	return nil
}
