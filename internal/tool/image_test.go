package tool

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"shapebot/internal/domain"

	"github.com/google/go-cmp/cmp"
)

func imageServer(t *testing.T, handler func(w http.ResponseWriter, got domain.ToolRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var req domain.ToolRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestImageTool_BinaryResponse(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	var got domain.ToolRequest
	srv := imageServer(t, func(w http.ResponseWriter, req domain.ToolRequest) {
		got = req
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(png)
	})

	tool := NewImageTool(ImageConfig{URL: srv.URL, Logger: testLogger()})
	reply, err := tool.Execute(context.Background(), domain.ToolRequest{Input: "um gato", UserID: "u1", ChannelID: "c1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantReq := domain.ToolRequest{Tool: domain.ToolImage, Input: "um gato", UserID: "u1", ChannelID: "c1"}
	if diff := cmp.Diff(wantReq, got); diff != "" {
		t.Fatalf("request mismatch (-want +got):\n%s", diff)
	}
	want := domain.Reply{Files: []domain.File{{Name: "imagem.jpg", ContentType: "image/jpeg", Data: png}}}
	if diff := cmp.Diff(want, reply); diff != "" {
		t.Fatalf("reply mismatch (-want +got):\n%s", diff)
	}
}

func TestImageTool_JSONResponse(t *testing.T) {
	data := []byte("fake")
	tests := []struct {
		name string
		body string
		want domain.Reply
	}{
		{
			name: "content and url",
			body: `{"content":"Aqui está","url":"https://img.example/1.png"}`,
			want: domain.Reply{Content: "Aqui está\nhttps://img.example/1.png"},
		},
		{
			name: "url only",
			body: `{"url":"https://img.example/2.png"}`,
			want: domain.Reply{Content: "https://img.example/2.png"},
		},
		{
			name: "base64",
			body: `{"image_base64":"` + base64.StdEncoding.EncodeToString(data) + `"}`,
			want: domain.Reply{Files: []domain.File{{Name: "imagem.png", ContentType: "image/png", Data: data}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := imageServer(t, func(w http.ResponseWriter, _ domain.ToolRequest) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body))
			})
			reply, err := NewImageTool(ImageConfig{URL: srv.URL, Logger: testLogger()}).
				Execute(context.Background(), domain.ToolRequest{Input: "x"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, reply); diff != "" {
				t.Fatalf("reply mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestImageTool_Errors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv := imageServer(t, func(w http.ResponseWriter, _ domain.ToolRequest) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		})
		_, err := NewImageTool(ImageConfig{URL: srv.URL, Logger: testLogger()}).
			Execute(context.Background(), domain.ToolRequest{Input: "x"})
		if err == nil {
			t.Fatal("expected error for 503")
		}
	})
	t.Run("empty json", func(t *testing.T) {
		srv := imageServer(t, func(w http.ResponseWriter, _ domain.ToolRequest) {
			w.Write([]byte(`{}`))
		})
		_, err := NewImageTool(ImageConfig{URL: srv.URL, Logger: testLogger()}).
			Execute(context.Background(), domain.ToolRequest{Input: "x"})
		if !errors.Is(err, ErrEmptyImage) {
			t.Fatalf("expected ErrEmptyImage, got %v", err)
		}
	})
	t.Run("invalid json", func(t *testing.T) {
		srv := imageServer(t, func(w http.ResponseWriter, _ domain.ToolRequest) {
			w.Write([]byte(`not json`))
		})
		_, err := NewImageTool(ImageConfig{URL: srv.URL, Logger: testLogger()}).
			Execute(context.Background(), domain.ToolRequest{Input: "x"})
		if err == nil {
			t.Fatal("expected error for invalid JSON")
		}
	})
	t.Run("no endpoint", func(t *testing.T) {
		_, err := NewImageTool(ImageConfig{Logger: testLogger()}).
			Execute(context.Background(), domain.ToolRequest{Input: "x"})
		if err == nil {
			t.Fatal("expected error without endpoint")
		}
	})
}
