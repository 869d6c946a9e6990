package tool

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"shapebot/internal/domain"
	"shapebot/internal/provider"

	"github.com/tidwall/gjson"
)

const (
	defaultImageTimeout = 120 * time.Second
	maxImageBytes       = 8 << 20
	imageBaseName       = "imagem"
)

var ErrEmptyImage = errors.New("image endpoint returned nothing to deliver")

// ImageConfig configures the image generation tool.
type ImageConfig struct {
	URL     string
	Timeout time.Duration // default 120s
	Client  *http.Client
	Logger  *slog.Logger
}

// ImageTool forwards image prompts to an HTTP image endpoint.
//
// The endpoint receives {"tool","input","user_id","channel_id"} and may answer
// with raw image bytes (any image/* content type) or with JSON carrying any
// of "content" (text), "url" (a link to the image) and "image_base64".
type ImageTool struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

func NewImageTool(cfg ImageConfig) *ImageTool {
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultImageTimeout
		}
		client = provider.SharedHTTPClient(timeout)
	}
	return &ImageTool{url: cfg.URL, client: client, logger: cfg.Logger}
}

func (t *ImageTool) Name() string { return domain.ToolImage }

func (t *ImageTool) Execute(ctx context.Context, req domain.ToolRequest) (domain.Reply, error) {
	if t.url == "" {
		return domain.Reply{}, errors.New("image tool endpoint not configured")
	}
	req.Tool = domain.ToolImage
	body, err := json.Marshal(req)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("marshal image request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return domain.Reply{}, fmt.Errorf("create image request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("image request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return domain.Reply{}, fmt.Errorf("read image response: %w", err)
	}
	if len(data) > maxImageBytes {
		return domain.Reply{}, fmt.Errorf("image response exceeds %d bytes", maxImageBytes)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Reply{}, fmt.Errorf("image endpoint status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "image/") {
		t.logger.Debug("image tool returned binary", "content_type", contentType, "bytes", len(data))
		return domain.Reply{Files: []domain.File{imageFile(contentType, data)}}, nil
	}
	return parseImageJSON(data)
}

func parseImageJSON(data []byte) (domain.Reply, error) {
	if !gjson.ValidBytes(data) {
		return domain.Reply{}, fmt.Errorf("image endpoint returned invalid JSON: %s", truncate(string(data), 200))
	}
	res := gjson.ParseBytes(data)

	var lines []string
	if c := strings.TrimSpace(res.Get("content").String()); c != "" {
		lines = append(lines, c)
	}
	if u := strings.TrimSpace(res.Get("url").String()); u != "" {
		lines = append(lines, u)
	}
	reply := domain.Reply{Content: strings.Join(lines, "\n")}

	if b64 := res.Get("image_base64").String(); b64 != "" {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return domain.Reply{}, fmt.Errorf("decode image_base64: %w", err)
		}
		reply.Files = append(reply.Files, imageFile("image/png", raw))
	}

	if reply.IsEmpty() {
		return domain.Reply{}, ErrEmptyImage
	}
	return reply, nil
}

func imageFile(contentType string, data []byte) domain.File {
	ext := "png"
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "image/jpeg":
			ext = "jpg"
		case "image/gif":
			ext = "gif"
		case "image/webp":
			ext = "webp"
		}
		contentType = mt
	}
	return domain.File{Name: imageBaseName + "." + ext, ContentType: contentType, Data: data}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
