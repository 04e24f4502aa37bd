package linear

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"proseveil/pkg/contract"
)

func assemble(t *testing.T, raw string, toks []string) string {
	t.Helper()
	a, err := New(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	r, err := a.Assemble(context.Background(), toks)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	b, _ := io.ReadAll(r)
	return string(b)
}

// TestAssembleSingleLine 默认单行
func TestAssembleSingleLine(t *testing.T) {
	if got := assemble(t, "", []string{"the", "lazy", "dog"}); got != "the lazy dog\n" {
		t.Fatalf("unexpected output %q", got)
	}
	if got := assemble(t, "", nil); got != "" {
		t.Fatalf("空序列应输出空串: %q", got)
	}
}

// TestAssembleWrap 按宽度折行，切分后与原序列一致
func TestAssembleWrap(t *testing.T) {
	toks := []string{"the", "quick", "brown", "fox", "jumps", "over", "the", "extraordinarily", "lazy", "dog"}
	got := assemble(t, `{"width":10}`, toks)
	want := "the quick\nbrown fox\njumps over\nthe\nextraordinarily\nlazy dog\n"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if strings.Join(strings.Fields(got), " ") != strings.Join(toks, " ") {
		t.Fatalf("折行改变了词序列")
	}
}

// TestAssembleInvalidToken 含空白的词被拒绝
func TestAssembleInvalidToken(t *testing.T) {
	a, _ := New(nil)
	_, err := a.Assemble(context.Background(), []string{"ok", "not ok"})
	if !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatalf("expect ErrInvalidInput, got %v", err)
	}
}

// TestNewOptions 严格解码
func TestNewOptions(t *testing.T) {
	if _, err := New(json.RawMessage(`{"wdth":3}`)); err == nil {
		t.Fatalf("未知字段应报错")
	}
	if _, err := New(json.RawMessage(`{"width":-1}`)); err == nil {
		t.Fatalf("负宽度应报错")
	}
}

// TestAssembleCanceled 取消
func TestAssembleCanceled(t *testing.T) {
	a, _ := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Assemble(ctx, []string{"a"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("want canceled got %v", err)
	}
}
