// Package backendselect resolves generation capabilities from job
// configuration tags. It sits above the client packages so they never
// depend on their consumers.
package backendselect

import (
	"fmt"
	"strings"

	"bookforge/internal/backend"
	"bookforge/internal/config"
	"bookforge/internal/services"
	"bookforge/internal/services/anthropic"
	"bookforge/internal/services/ollama"
	"bookforge/internal/services/stablediffusion"
)

// Text resolves the text generation capability selected by the job
// configuration. Unknown tags fail at startup, not at first use.
func Text(cfg *config.Config) (backend.Text, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Book.TextBackend)) {
	case "ollama":
		return ollama.NewClient(
			cfg.Backends.Ollama.Model,
			ollama.WithBaseURL(cfg.Backends.Ollama.BaseURL),
			ollama.WithTimeoutSeconds(cfg.Backends.Ollama.TimeoutSeconds),
		), nil
	case "anthropic":
		key := strings.TrimSpace(cfg.Backends.Anthropic.APIKey)
		if key == "" {
			return nil, services.Wrap(services.ErrCredential, "", "select text backend",
				"anthropic backend requires an API key", nil)
		}
		return anthropic.NewClient(key, cfg.Backends.Anthropic.Model, cfg.Backends.Anthropic.MaxTokens), nil
	case "mock":
		return backend.NewMockText(), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "", "select text backend",
			fmt.Sprintf("unknown text backend %q", cfg.Book.TextBackend), nil)
	}
}

// Image resolves the image generation capability selected by the job
// configuration.
func Image(cfg *config.Config) (backend.Image, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Book.ImageBackend)) {
	case "stable_diffusion", "sd":
		return stablediffusion.NewClient(
			stablediffusion.WithBaseURL(cfg.Backends.StableDiffusion.BaseURL),
			stablediffusion.WithSteps(cfg.Backends.StableDiffusion.Steps),
			stablediffusion.WithTimeoutSeconds(cfg.Backends.StableDiffusion.TimeoutSeconds),
		), nil
	case "mock":
		return backend.NewMockImage(), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "", "select image backend",
			fmt.Sprintf("unknown image backend %q", cfg.Book.ImageBackend), nil)
	}
}
