package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"bookforge/internal/backend"
	"bookforge/internal/services"
)

const (
	defaultBaseURL     = "http://localhost:11434"
	defaultModel       = "llama3.1"
	defaultHTTPTimeout = 300 * time.Second
)

// Client wraps the Ollama generate API. Token usage is estimated from
// character counts because the API does not report exact numbers.
type Client struct {
	model      string
	baseURL    string
	httpClient *http.Client

	mu    sync.Mutex
	usage backend.Usage
}

// Option customizes the Ollama client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the default server base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithTimeoutSeconds overrides the request timeout.
func WithTimeoutSeconds(seconds int) Option {
	return func(c *Client) {
		if seconds > 0 {
			c.httpClient = &http.Client{Timeout: time.Duration(seconds) * time.Second}
		}
	}
}

// NewClient constructs an Ollama API client.
func NewClient(model string, opts ...Option) *Client {
	client := &Client{
		model:      strings.TrimSpace(model),
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.model == "" {
		client.model = defaultModel
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// Name identifies the backend in cost records and logs.
func (c *Client) Name() string {
	return "ollama/" + c.model
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Generate produces text for the prompt via the Ollama generate endpoint.
func (c *Client) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", services.Wrap(services.ErrValidation, "", "ollama generate", "prompt required", nil)
	}

	endpoint, err := url.JoinPath(c.baseURL, "/api/generate")
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "", "ollama generate", "build url", err)
	}
	encoded, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		System: systemPrompt,
		Stream: false,
	})
	if err != nil {
		return "", services.Wrap(services.ErrBackendGeneration, "", "ollama generate", "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", services.Wrap(services.ErrBackendGeneration, "", "ollama generate", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrBackendConnection, "", "ollama generate",
			fmt.Sprintf("request to %s failed (is ollama running?)", c.baseURL), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrBackendConnection, "", "ollama generate", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", services.Wrap(services.ErrBackendGeneration, "", "ollama generate",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", services.Wrap(services.ErrBackendGeneration, "", "ollama generate", "decode response", err)
	}
	if decoded.Error != "" {
		return "", services.Wrap(services.ErrBackendGeneration, "", "ollama generate",
			"api error: "+strings.TrimSpace(decoded.Error), nil)
	}
	if strings.TrimSpace(decoded.Response) == "" {
		return "", services.Wrap(services.ErrBackendGeneration, "", "ollama generate", "empty response", nil)
	}

	c.mu.Lock()
	c.usage.Add(backend.Usage{
		InputTokens:  int64(len(prompt)) / 4,
		OutputTokens: int64(len(decoded.Response)) / 4,
	})
	c.mu.Unlock()

	return decoded.Response, nil
}

// Usage reports the accumulated estimated token counts.
func (c *Client) Usage() backend.Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}
