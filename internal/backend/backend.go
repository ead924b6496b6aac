package backend

import "context"

// Usage totals the resource units a backend consumed. Token counts apply to
// text backends; Images counts generated pictures.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	Images       int   `json:"images"`
}

// Add accumulates another usage sample into the receiver.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.Images += other.Images
}

// Text is the text generation capability consumed by the content stage.
// Implementations are stateless request/response adapters apart from the
// running usage total.
type Text interface {
	Name() string
	Generate(ctx context.Context, prompt, systemPrompt string) (string, error)
	Usage() Usage
}

// Image is the image generation capability consumed by the cover stage.
type Image interface {
	Name() string
	Generate(ctx context.Context, prompt string, width, height int) ([]byte, error)
	Usage() Usage
}
