package stablediffusion

import (
	"bytes"
	"context"
	"encoding/base64"
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
	defaultBaseURL        = "http://localhost:7860"
	defaultSteps          = 30
	defaultHTTPTimeout    = 300 * time.Second
	defaultNegativePrompt = "blurry, low quality, distorted, watermark, text errors"
	defaultSampler        = "DPM++ 2M Karras"
	defaultCFGScale       = 7
)

// Client wraps the Stable Diffusion WebUI txt2img API.
type Client struct {
	baseURL    string
	steps      int
	httpClient *http.Client

	mu    sync.Mutex
	usage backend.Usage
}

// Option customizes the Stable Diffusion client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the default WebUI base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithSteps overrides the sampling step count.
func WithSteps(steps int) Option {
	return func(c *Client) {
		if steps > 0 {
			c.steps = steps
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

// NewClient constructs a Stable Diffusion WebUI client.
func NewClient(opts ...Option) *Client {
	client := &Client{
		baseURL:    defaultBaseURL,
		steps:      defaultSteps,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
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
func (c *Client) Name() string { return "stable-diffusion" }

type txt2imgRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Steps          int    `json:"steps"`
	CFGScale       int    `json:"cfg_scale"`
	SamplerName    string `json:"sampler_name"`
}

type txt2imgResponse struct {
	Images []string `json:"images"`
}

// Generate renders an image for the prompt and returns its PNG bytes.
func (c *Client) Generate(ctx context.Context, prompt string, width, height int) ([]byte, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, services.Wrap(services.ErrValidation, "", "txt2img", "prompt required", nil)
	}

	endpoint, err := url.JoinPath(c.baseURL, "/sdapi/v1/txt2img")
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "txt2img", "build url", err)
	}
	encoded, err := json.Marshal(txt2imgRequest{
		Prompt:         prompt,
		NegativePrompt: defaultNegativePrompt,
		Width:          width,
		Height:         height,
		Steps:          c.steps,
		CFGScale:       defaultCFGScale,
		SamplerName:    defaultSampler,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrBackendGeneration, "", "txt2img", "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, services.Wrap(services.ErrBackendGeneration, "", "txt2img", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrBackendConnection, "", "txt2img",
			fmt.Sprintf("request to %s failed (is the WebUI running with --api?)", c.baseURL), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrBackendConnection, "", "txt2img", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, services.Wrap(services.ErrBackendGeneration, "", "txt2img",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var decoded txt2imgResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, services.Wrap(services.ErrBackendGeneration, "", "txt2img", "decode response", err)
	}
	if len(decoded.Images) == 0 {
		return nil, services.Wrap(services.ErrBackendGeneration, "", "txt2img", "no images in response", nil)
	}

	imageBytes, err := base64.StdEncoding.DecodeString(decoded.Images[0])
	if err != nil {
		return nil, services.Wrap(services.ErrBackendGeneration, "", "txt2img", "decode image payload", err)
	}

	c.mu.Lock()
	c.usage.Add(backend.Usage{Images: 1})
	c.mu.Unlock()

	return imageBytes, nil
}

// Usage reports the number of images generated so far.
func (c *Client) Usage() backend.Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}
