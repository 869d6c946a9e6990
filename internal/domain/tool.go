package domain

import "context"

// Tool names invoked by reply directives.
const (
	ToolImage = "gerarImagem"
	ToolCode  = "criarCodigo"
)

// ToolRequest is the input handed to a tool.
type ToolRequest struct {
	Tool      string `json:"tool"`
	Input     string `json:"input"`
	Extension string `json:"extension,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
}

// Tool produces content that can be delivered directly as a reply.
type Tool interface {
	Name() string
	Execute(ctx context.Context, req ToolRequest) (Reply, error)
}
