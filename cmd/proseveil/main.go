package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	cfgpkg "proseveil/internal/config"
	"proseveil/internal/diag"
	"proseveil/internal/pipeline"
)

var pipelineRun = pipeline.Run

// listFlag: 可重复的字符串旗标（-f a -f b）。
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	if strings.TrimSpace(v) == "" {
		return errors.New("empty value")
	}
	*l = append(*l, v)
	return nil
}

// CLI：加密/解密单次运行。
// 位置参数追加为训练源；载荷/密文从 -input（默认 STDIN）读取，结果写 -output（默认 STDOUT）。
func main() {
	os.Exit(run())
}

func run() int {
	start := time.Now()
	corrID := uuid.NewString()
	// 在任何 ENV 读取前，尝试加载工作目录下的 .env（不覆盖已有 ENV）。
	_ = loadDotEnv(".env")
	// 先以默认级别写 stderr，解析/合并配置后再按最终配置重建 logger
	logger := diag.NewLoggerDir(corrID, "info", "")
	var (
		flagMode        string
		flagContext     int
		flagModelFiles  listFlag
		flagModelURLs   listFlag
		flagInput       string
		flagOutput      string
		flagConcurrency int
		flagMaxBytes    int64
		flagConfig      string
		flagInitDir     string
		flagStatus      bool
	)
	flag.StringVar(&flagMode, "mode", "", "运行方向：encipher | decipher")
	flag.StringVar(&flagMode, "m", "", "同 -mode")
	flag.IntVar(&flagContext, "context", cfgpkg.DefaultContext, "上下文阶数 N（0..10），核心阶数为 max(0, N-1)")
	flag.IntVar(&flagContext, "c", cfgpkg.DefaultContext, "同 -context")
	flag.Var(&flagModelFiles, "model-file", "训练源文件或目录（可重复；位置参数同样追加为训练源）")
	flag.Var(&flagModelFiles, "f", "同 -model-file")
	flag.Var(&flagModelURLs, "model-url", "远程训练源（可重复；仅记录，不拉取）")
	flag.Var(&flagModelURLs, "u", "同 -model-url")
	flag.StringVar(&flagInput, "input", "", "载荷/密文输入路径；\"-\" 为 STDIN（默认）")
	flag.StringVar(&flagInput, "i", "", "同 -input")
	flag.StringVar(&flagOutput, "output", "", "输出路径；\"-\" 为 STDOUT（默认），给出路径时原子写文件")
	flag.StringVar(&flagOutput, "o", "", "同 -output")
	flag.IntVar(&flagConcurrency, "concurrency", 0, "模型构建并发度（覆盖配置）")
	flag.Int64Var(&flagMaxBytes, "max-message-bytes", 0, "单条载荷上限（字节，覆盖配置）")
	flag.StringVar(&flagConfig, "config", "", "配置文件路径（JSON；.yaml/.yml 按 YAML）；缺省读取 ./config.json（若存在）")
	flag.StringVar(&flagInitDir, "init-config", "", "在指定目录生成默认配置 config.json 和 .env 模板（若已存在则失败，不覆盖）；不带值时默认当前目录")
	flag.BoolVar(&flagStatus, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")
	normalizeInitArg()
	if err := flag.CommandLine.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fprintf(os.Stderr, "参数解析失败: %v\n", err)
		return 3
	}
	set := visited()

	// --init-config: 生成模板并退出
	if initDir := strings.TrimSpace(flagInitDir); initDir != "" {
		if err := os.MkdirAll(initDir, 0o755); err != nil {
			fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
			logger.Error("cli", string(diag.Classify(err)), "init config failed", &start)
			return 3
		}
		if err := writeConfig(filepath.Join(initDir, "config.json"), cfgpkg.DefaultTemplateConfig()); err != nil {
			fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
			logger.Error("cli", string(diag.Classify(err)), "init config failed", &start)
			return 3
		}
		if err := writeDotEnv(filepath.Join(initDir, ".env")); err != nil {
			fprintf(os.Stderr, "提示：.env 生成失败（已跳过）：%v\n", err)
		}
		return 0
	}

	// 配置来源：-config > PROSEVEIL_CONFIG_FILE > PROSEVEIL_CONFIG_JSON > ./config.json
	cfgJSON := []byte(os.Getenv(cfgpkg.EnvPrefix + "CONFIG_JSON"))
	if flagConfig == "" {
		flagConfig = os.Getenv(cfgpkg.EnvPrefix + "CONFIG_FILE")
	}
	if flagConfig == "" && len(cfgJSON) == 0 {
		if _, err := os.Stat("config.json"); err == nil {
			flagConfig = "config.json"
		}
	}

	cfg := cfgpkg.Defaults()
	if flagConfig != "" || len(cfgJSON) > 0 {
		var (
			base cfgpkg.Config
			err  error
		)
		if flagConfig != "" {
			base, err = cfgpkg.LoadFile(flagConfig)
		} else {
			base, err = cfgpkg.LoadJSON("", cfgJSON)
		}
		if err != nil {
			fprintf(os.Stderr, "配置解析失败: %v\n", err)
			logger.Error("cli", string(diag.Classify(err)), "config load failed", &start)
			return 3
		}
		cfg = cfgpkg.Merge(cfg, base)
	}

	// ENV 覆盖
	overEnv, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		fprintf(os.Stderr, "环境变量解析失败: %v\n", err)
		logger.Error("cli", string(diag.Classify(err)), "env overlay failed", &start)
		return 3
	}
	cfg = cfgpkg.Merge(cfg, overEnv)

	// CLI 覆盖：仅显式给出的旗标生效（-context 0 也是有效覆盖）
	var overCLI cfgpkg.Config
	overCLI.Mode = flagMode
	if set["context"] || set["c"] {
		n := flagContext
		overCLI.Context = &n
	}
	overCLI.ModelFiles = append(append([]string{}, flagModelFiles...), flag.Args()...)
	overCLI.ModelURLs = flagModelURLs
	overCLI.Input = flagInput
	overCLI.Output = flagOutput
	if flagConcurrency > 0 {
		overCLI.Concurrency = flagConcurrency
	}
	if flagMaxBytes > 0 {
		overCLI.MaxMessageBytes = flagMaxBytes
	}
	cfg = cfgpkg.Merge(cfg, overCLI)

	if err := cfgpkg.Validate(cfg); err != nil {
		fprintf(os.Stderr, "配置校验失败: %v\n", err)
		_ = dumpConfig(cfg)
		logger.Error("cli", string(diag.Classify(err)), "config invalid", &start)
		return 3
	}

	// 使用最终配置中的日志级别与目录重建 logger
	logDir := strings.TrimSpace(cfg.Logging.Dir)
	if logDir == "" {
		logDir = diag.DefaultLogDir
	}
	logger = diag.NewLoggerDir(corrID, cfg.Logging.Level, logDir)
	defer logger.Close()

	if err := preflightCheckOutput(cfg.Output); err != nil {
		fprintf(os.Stderr, "输出目录不可写或无法创建: %v\n", err)
		logger.Error("cli", string(diag.Classify(err)), "output preflight failed", &start)
		return 3
	}

	comp, pset, err := cfgpkg.Assemble(cfg)
	if err != nil {
		fprintf(os.Stderr, "装配失败: %v\n", err)
		logger.Error("cli", string(diag.Classify(err)), "assemble failed", &start)
		return 3
	}

	// 终端信息提示（非日志）：按 CLI 启用，默认开启
	term := diag.NewTerminal(os.Stderr, flagStatus)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)

	logger.DebugStart("config", "effective", "", map[string]string{
		"mode":          cfg.Mode,
		"context":       strconv.Itoa(pset.Context),
		"order":         strconv.Itoa(pset.Order),
		"model_files":   strings.Join(cfg.ModelFiles, ","),
		"model_urls":    strconv.Itoa(len(cfg.ModelURLs)),
		"input":         pset.Input,
		"artifact":      string(pset.Artifact),
		"concurrency":   strconv.Itoa(cfg.Concurrency),
		"max_msg_bytes": strconv.FormatInt(cfg.MaxMessageBytes, 10),
		"reader":        cfg.Components.Reader,
		"tokenizer":     cfg.Components.Tokenizer,
		"assembler":     cfg.Components.Assembler,
		"writer":        cfg.Components.Writer,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	t := logger.StartWith("pipeline", "run", pset.Input)
	if err := pipelineRun(ctx, comp, pset, logger); err != nil {
		code := string(diag.Classify(err))
		logger.Error("pipeline", code, "first error", &start)
		diag.IncOp("cli", "error", "error")
		if code != string(diag.CodeUnknown) {
			diag.IncError("cli", code)
		}
		if errors.Is(err, context.Canceled) {
			fprintf(os.Stderr, "已取消\n")
		} else {
			fprintf(os.Stderr, "运行失败: %v\n", err)
		}
		return 1
	}
	t.Finish("run", 0)
	diag.IncOp("cli", "finish", "success")
	diag.ObserveDuration("cli", "finish", time.Since(start).Milliseconds())
	return 0
}

// visited 返回命令行中显式出现的旗标名集合。
func visited() map[string]bool {
	m := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { m[f.Name] = true })
	return m
}

func fprintf(w *os.File, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

func dumpConfig(c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	_, _ = os.Stderr.Write(append([]byte("有效配置:\n"), b...))
	_, _ = os.Stderr.Write([]byte("\n"))
	return nil
}

func writeConfig(path string, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = os.Stdout.Write(append(b, '\n'))
		return err
	}
	// 不覆盖已存在文件
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(b); err != nil {
		return err
	}
	_, err = f.Write([]byte("\n"))
	return err
}

// loadDotEnv 读取简单的 .env 文件格式并注入进程环境。
// 规则：
// - 忽略不存在的文件；无法读取时返回错误（但调用处可忽略）。
// - 跳过空行与以 # 开头的行；支持可选的前缀 "export ".
// - 仅按首个 '=' 分割；key 为左侧去空白；value 去首尾空白；
// - 若 value 被成对的单/双引号包裹，则去除外层引号；双引号内常见转义 \n/\t/\\/\" 作最小处理。
// - 不覆盖已存在的环境变量（保持系统/调用者优先）。
func loadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		eq := strings.IndexByte(line, '=')
		if eq <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := strings.TrimSpace(line[eq+1:])
		if len(val) >= 2 {
			if (val[0] == '\'' && val[len(val)-1] == '\'') || (val[0] == '"' && val[len(val)-1] == '"') {
				quoted := val[0]
				val = val[1 : len(val)-1]
				if quoted == '"' {
					val = strings.ReplaceAll(val, "\\n", "\n")
					val = strings.ReplaceAll(val, "\\t", "\t")
					val = strings.ReplaceAll(val, "\\r", "\r")
					val = strings.ReplaceAll(val, "\\\"", "\"")
					val = strings.ReplaceAll(val, "\\\\", "\\")
				}
			}
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, val)
	}
	return s.Err()
}

// normalizeInitArg: 允许 --init-config 在未提供路径值时采用默认值当前目录 "."。
// 兼容以下形式：
//
//	--init-config                => 等价于 --init-config .
//	--init-config=out
//	--init-config out
//
// 仅在检测到“裸开关或后继为下一个开关”的情况下插入默认值。
func normalizeInitArg() {
	args := os.Args
	if len(args) <= 1 {
		return
	}
	out := make([]string, 0, len(args)+1)
	out = append(out, args[0])
	for i := 1; i < len(args); i++ {
		a := args[i]
		out = append(out, a)
		if a == "--init-config" || a == "-init-config" {
			if i == len(args)-1 || strings.HasPrefix(args[i+1], "-") {
				out = append(out, ".")
			}
		}
	}
	os.Args = out
}

// writeDotEnv 生成 .env 模板（若文件已存在则跳过）。
func writeDotEnv(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	_, err = f.WriteString(cfgpkg.DefaultTemplateEnv())
	return err
}

// preflightCheckOutput: 输出为文件路径时，启动前检查目标目录可写性。
// - 目录已存在：尝试创建并删除临时文件；
// - 目录不存在：检查父目录可写（尝试创建并删除临时目录）。
func preflightCheckOutput(output string) error {
	out := strings.TrimSpace(output)
	if out == "" || out == "-" {
		return nil
	}
	dir := filepath.Dir(out)
	if st, err := os.Stat(dir); err == nil {
		if !st.IsDir() {
			return fmt.Errorf("路径存在但不是目录: %s", dir)
		}
		f, err := os.CreateTemp(dir, ".wcheck-*")
		if err != nil {
			return err
		}
		name := f.Name()
		_ = f.Close()
		_ = os.Remove(name)
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	parent := filepath.Dir(dir)
	if parent == dir {
		return fmt.Errorf("无法确定父目录: %s", dir)
	}
	pst, err := os.Stat(parent)
	if err != nil {
		return err
	}
	if !pst.IsDir() {
		return fmt.Errorf("父路径不是目录: %s", parent)
	}
	tmpd, err := os.MkdirTemp(parent, ".wcheck-*")
	if err != nil {
		return err
	}
	_ = os.RemoveAll(tmpd)
	return nil
}
