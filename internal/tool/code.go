package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"shapebot/internal/domain"
)

const (
	defaultMaxCodeBytes = 8 << 20
	maxExtensionLen     = 10
	codeBaseName        = "codigo"
	codePrompt          = "Escreva apenas o código, sem explicações e sem markdown, na linguagem de extensão .%s, para: %s"
)

var ErrEmptyCode = errors.New("generator returned no code")

// CodeConfig configures the code file tool.
type CodeConfig struct {
	Generator    domain.Generator
	MaxFileBytes int // default 8 MiB
	Logger       *slog.Logger
}

// CodeTool asks the generator for source code and returns it as a file.
type CodeTool struct {
	generator domain.Generator
	maxBytes  int
	logger    *slog.Logger
}

func NewCodeTool(cfg CodeConfig) *CodeTool {
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = defaultMaxCodeBytes
	}
	return &CodeTool{generator: cfg.Generator, maxBytes: cfg.MaxFileBytes, logger: cfg.Logger}
}

func (t *CodeTool) Name() string { return domain.ToolCode }

func (t *CodeTool) Execute(ctx context.Context, req domain.ToolRequest) (domain.Reply, error) {
	ext := SanitizeExtension(req.Extension)

	raw, err := t.generator.Generate(ctx, domain.GenerationRequest{
		Prompt:    domain.TextPrompt(fmt.Sprintf(codePrompt, ext, req.Input)),
		UserID:    req.UserID,
		ChannelID: req.ChannelID,
	})
	if err != nil {
		return domain.Reply{}, fmt.Errorf("generate code: %w", err)
	}

	code := StripFence(raw)
	if strings.TrimSpace(code) == "" {
		return domain.Reply{}, ErrEmptyCode
	}
	if len(code) > t.maxBytes {
		return domain.Reply{}, fmt.Errorf("generated code is %d bytes, limit %d", len(code), t.maxBytes)
	}
	if !strings.HasSuffix(code, "\n") {
		code += "\n"
	}

	name := codeBaseName + "." + ext
	t.logger.Debug("code file generated", "name", name, "bytes", len(code))
	return domain.Reply{
		Files: []domain.File{{Name: name, ContentType: "text/plain; charset=utf-8", Data: []byte(code)}},
	}, nil
}

// SanitizeExtension lower-cases ext and keeps only [a-z0-9], capped in length.
// An empty result becomes "txt".
func SanitizeExtension(ext string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(ext) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == maxExtensionLen {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "txt"
	}
	return b.String()
}

// StripFence removes a markdown code fence wrapping the whole of s, including
// its language tag. Text without a surrounding fence is returned trimmed.
func StripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	body := s[3:]
	nl := strings.IndexByte(body, '\n')
	if nl < 0 {
		return strings.TrimSpace(strings.Trim(body, "`"))
	}
	body = body[nl+1:]
	if i := strings.LastIndex(body, "```"); i >= 0 {
		body = body[:i]
	}
	return strings.TrimRight(body, " \t\r\n")
}
