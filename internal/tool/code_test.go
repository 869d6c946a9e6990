package tool

import (
	"context"
	"errors"
	"strings"
	"testing"

	"shapebot/internal/domain"
)

type stubGenerator struct {
	reply string
	err   error
	got   domain.GenerationRequest
}

func (g *stubGenerator) Generate(_ context.Context, req domain.GenerationRequest) (string, error) {
	g.got = req
	return g.reply, g.err
}

func TestCodeTool_Execute(t *testing.T) {
	gen := &stubGenerator{reply: "```python\nprint('oi')\n```"}
	tool := NewCodeTool(CodeConfig{Generator: gen, Logger: testLogger()})

	reply, err := tool.Execute(context.Background(), domain.ToolRequest{
		Input: "um olá mundo", Extension: "PY", UserID: "u1", ChannelID: "c1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reply.Files) != 1 {
		t.Fatalf("expected one file, got %d", len(reply.Files))
	}
	f := reply.Files[0]
	if f.Name != "codigo.py" {
		t.Fatalf("expected codigo.py, got %q", f.Name)
	}
	if string(f.Data) != "print('oi')\n" {
		t.Fatalf("unexpected file body %q", f.Data)
	}
	if gen.got.UserID != "u1" || gen.got.ChannelID != "c1" {
		t.Fatalf("ids not forwarded: %+v", gen.got)
	}
	if !strings.Contains(gen.got.Prompt.Text(), "um olá mundo") || !strings.Contains(gen.got.Prompt.Text(), ".py") {
		t.Fatalf("unexpected prompt %q", gen.got.Prompt.Text())
	}
}

func TestCodeTool_Errors(t *testing.T) {
	boom := errors.New("relay down")
	tests := []struct {
		name  string
		gen   *stubGenerator
		limit int
		is    error
	}{
		{"generator", &stubGenerator{err: boom}, 0, boom},
		{"empty", &stubGenerator{reply: "```go\n```"}, 0, ErrEmptyCode},
		{"too large", &stubGenerator{reply: strings.Repeat("x", 64)}, 16, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := NewCodeTool(CodeConfig{Generator: tt.gen, MaxFileBytes: tt.limit, Logger: testLogger()})
			_, err := tool.Execute(context.Background(), domain.ToolRequest{Input: "x"})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Fatalf("expected %v, got %v", tt.is, err)
			}
		})
	}
}

func TestSanitizeExtension(t *testing.T) {
	tests := map[string]string{
		"":               "txt",
		"py":             "py",
		"JS":             "js",
		"[go]":           "go",
		".sh":            "sh",
		"../../etc":      "etc",
		"c++":            "c",
		"???":            "txt",
		"averyverylongx": "averyveryl",
	}
	for in, want := range tests {
		if got := SanitizeExtension(in); got != want {
			t.Errorf("SanitizeExtension(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStripFence(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain code", "plain code"},
		{"```\nx := 1\n```", "x := 1"},
		{"```go\nfunc main() {}\n```\n", "func main() {}"},
		{"```inline```", "inline"},
		{"```js\nunterminated", "unterminated"},
	}
	for _, tt := range tests {
		if got := StripFence(tt.in); got != tt.want {
			t.Errorf("StripFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
