package stress

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	cfgpkg "proseveil/internal/config"
	"proseveil/internal/pipeline"
	"proseveil/pkg/arith"
	"proseveil/pkg/ngram"
)

var corpusDir = filepath.Join("..", "testdata", "corpus")

// loadModel 通过正式装配路径读取 testdata 语料并构建模型。
func loadModel(t testing.TB, n int) *ngram.Model {
	t.Helper()
	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Mode = "encipher"
	cfg.Context = &n
	cfg.ModelFiles = []string{corpusDir}
	cfg.Options.Writer = nil
	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	m, err := pipeline.LoadModel(context.Background(), comp, set, nil)
	if err != nil {
		t.Fatalf("load model: %v", err)
	}
	return m
}

// TestStress 在不同并发度下让多个 goroutine 共享同一模型与分区缓存做往返，并记录延迟统计。
func TestStress(t *testing.T) {
	if testing.Short() {
		t.Skip("stress skipped in -short mode")
	}
	m := loadModel(t, 3)
	codec, err := arith.New(m, arith.WithCacheSize(64))
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	levels := []int{1, 8, 32}
	for _, conc := range levels {
		t.Run(fmt.Sprintf("concurrency_%d", conc), func(t *testing.T) {
			const runs = 16
			var (
				mu        sync.Mutex
				latencies []time.Duration
				failures  []string
				wg        sync.WaitGroup
			)
			sem := make(chan struct{}, conc)
			for i := 0; i < runs; i++ {
				wg.Add(1)
				sem <- struct{}{}
				go func(i int) {
					defer wg.Done()
					defer func() { <-sem }()
					rnd := rand.New(rand.NewSource(int64(i)))
					payload := make([]byte, 16+rnd.Intn(240))
					rnd.Read(payload)
					start := time.Now()
					toks, err := codec.Encode(context.Background(), payload)
					if err == nil {
						var got []byte
						got, err = codec.Decode(context.Background(), toks)
						if err == nil && !bytes.Equal(got, payload) {
							err = fmt.Errorf("payload mismatch")
						}
					}
					dur := time.Since(start)
					mu.Lock()
					defer mu.Unlock()
					if err != nil {
						failures = append(failures, fmt.Sprintf("run %d: %v", i, err))
						return
					}
					latencies = append(latencies, dur)
				}(i)
			}
			wg.Wait()
			if len(failures) > 0 {
				t.Fatalf("失败 %d 次: %s", len(failures), strings.Join(failures, "; "))
			}
			sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
			var total time.Duration
			for _, d := range latencies {
				total += d
			}
			avg := total / time.Duration(len(latencies))
			idx := int(math.Ceil(float64(len(latencies))*0.95)) - 1
			if idx < 0 {
				idx = 0
			}
			t.Logf("并发%d 次数%d 平均%v 95%%延迟%v", conc, runs, avg, latencies[idx])
		})
	}
}

// TestStressIndependentBuilds 两次独立构建产生相同密文（跨进程确定性的进程内近似）。
func TestStressIndependentBuilds(t *testing.T) {
	payload := []byte("same corpus, same order, same words")
	var first []string
	for i := 0; i < 3; i++ {
		c, err := arith.New(loadModel(t, 4))
		if err != nil {
			t.Fatalf("codec: %v", err)
		}
		toks, err := c.Encode(context.Background(), payload)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if first == nil {
			first = toks
			continue
		}
		if strings.Join(toks, " ") != strings.Join(first, " ") {
			t.Fatalf("build %d produced different ciphertext", i)
		}
	}
}
