package anthropic

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"bookforge/internal/backend"
	"bookforge/internal/services"
)

const defaultSystemPrompt = "You are a helpful assistant."

// Client wraps the Anthropic messages API behind the text backend capability.
type Client struct {
	client    sdk.Client
	model     sdk.Model
	maxTokens int64

	mu    sync.Mutex
	usage backend.Usage
}

// NewClient constructs a hosted text backend. Extra request options are
// passed through to the SDK (tests use option.WithBaseURL).
func NewClient(apiKey, model string, maxTokens int64, opts ...option.RequestOption) *Client {
	requestOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{
		client:    sdk.NewClient(requestOpts...),
		model:     sdk.Model(model),
		maxTokens: maxTokens,
	}
}

// Name identifies the backend in cost records and logs.
func (c *Client) Name() string {
	return "anthropic/" + string(c.model)
}

// Generate produces text for the prompt via the messages API and records the
// exact token usage the API reports.
func (c *Client) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", services.Wrap(services.ErrValidation, "", "anthropic generate", "prompt required", nil)
	}
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = defaultSystemPrompt
	}

	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []sdk.TextBlockParam{
			{Type: "text", Text: systemPrompt},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		marker := services.ErrBackendGeneration
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			marker = services.ErrBackendConnection
		}
		return "", services.Wrap(marker, "", "anthropic generate", "messages api call failed", err)
	}

	c.mu.Lock()
	c.usage.Add(backend.Usage{
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	})
	c.mu.Unlock()

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", services.Wrap(services.ErrBackendGeneration, "", "anthropic generate", "no text content in response", nil)
}

// Usage reports the accumulated token counts across all calls.
func (c *Client) Usage() backend.Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}
