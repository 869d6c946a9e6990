package domain

import "context"

// Generator sends a prompt to the generation backend and returns its raw
// text reply.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// Classifier asks the auxiliary model a single-turn question. An empty
// answer with a nil error means the response had no text where expected.
type Classifier interface {
	Ask(ctx context.Context, prompt string) (string, error)
}
