package contract

import (
	"errors"
	"path/filepath"
	"testing"
)

// TestNormalizeFileID 验证路径规范化逻辑。
func TestNormalizeFileID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"本地分隔符", filepath.Join("a", "b", "c"), "a/b/c"},
		{"父目录", "./x/../y", "y"},
		{"空串", "", "."},
		{"标准流", "-", "-"},
		{"Windows路径", "C:\\corpus\\novel.txt", "C:/corpus/novel.txt"},
		{"清理多余斜杠", "corpus//a///b.txt", "corpus/a/b.txt"},
		{"混合分隔符", "corpus\\a/./b\\\\c.txt", "corpus/a/b/c.txt"},
		{"中文路径", "语料\\小说/第一章.txt", "语料/小说/第一章.txt"},
		{"绝对路径", "/home/u/../corpus/a.txt", "/home/corpus/a.txt"},
		{"复杂父目录", "a\\b\\..\\..\\..\\d", "../d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeFileID(tt.input); string(got) != tt.expected {
				t.Errorf("NormalizeFileID(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

// BenchmarkNormalizeFileID 性能基准测试
func BenchmarkNormalizeFileID(b *testing.B) {
	paths := []string{
		"C:\\Users\\test\\corpus\\file.txt",
		"corpus/../../../test/data/file.txt",
		"very/long/path/with/many/segments/and/mixed\\separators/file.txt",
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, p := range paths {
			NormalizeFileID(p)
		}
	}
}

// TestValidateToken 覆盖合法词与各类非法词。
func TestValidateToken(t *testing.T) {
	ok := []string{"the", "fox.", "«ça»", "dog,", "\x00\xff"}
	for _, tok := range ok {
		if err := ValidateToken(tok); err != nil {
			t.Fatalf("%q 应合法: %v", tok, err)
		}
	}
	bad := []string{"", "a b", "tab\there", "nl\n", "nbsp\u00a0x", "ideo\u3000x"}
	for _, tok := range bad {
		if err := ValidateToken(tok); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%q 应非法, got %v", tok, err)
		}
	}
}

// TestValidateTokens 返回第一个非法词的位置。
func TestValidateTokens(t *testing.T) {
	if err := ValidateTokens([]string{"a", "b"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	err := ValidateTokens([]string{"a", "", "b c"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput got %v", err)
	}
	if got := err.Error(); got != "token 1: invalid input: empty token" {
		t.Fatalf("错误信息不符: %q", got)
	}
}

// TestSourceClone 拷贝后互不影响。
func TestSourceClone(t *testing.T) {
	s := Source{FileID: "f", Tokens: []string{"a", "b"}}
	c := s.Clone()
	s.Tokens[0] = "x"
	if c.Tokens[0] != "a" {
		t.Fatalf("clone 未独立")
	}
	if (Source{}).Clone().Tokens != nil {
		t.Fatalf("nil 应保持 nil")
	}
}

// TestModeValid 方向校验。
func TestModeValid(t *testing.T) {
	if !Encipher.Valid() || !Decipher.Valid() {
		t.Fatalf("已知方向应合法")
	}
	if Mode("encode").Valid() {
		t.Fatalf("未知方向应非法")
	}
}
