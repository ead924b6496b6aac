package config

import (
	"fmt"
	"strings"

	"bookforge/internal/services"
)

var textBackendTags = map[string]struct{}{
	"ollama":    {},
	"anthropic": {},
	"mock":      {},
}

var imageBackendTags = map[string]struct{}{
	"stable_diffusion": {},
	"mock":             {},
}

// Validate ensures the job configuration is usable. Field validation runs
// before the orchestrator is invoked; a failure here means no run state is
// ever created.
func (c *Config) Validate() error {
	if err := c.validateBook(); err != nil {
		return err
	}
	if err := c.validateBackends(); err != nil {
		return err
	}
	if err := c.validateQuality(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateBook() error {
	missing := make([]string, 0, 4)
	if c.Book.ID == "" {
		missing = append(missing, "book.id")
	}
	if c.Book.Title == "" {
		missing = append(missing, "book.title")
	}
	if c.Book.Author == "" {
		missing = append(missing, "book.author")
	}
	if c.Book.Topic == "" {
		missing = append(missing, "book.topic")
	}
	if len(missing) > 0 {
		return services.Wrap(services.ErrValidation, "", "validate",
			fmt.Sprintf("required fields missing: %s", strings.Join(missing, ", ")), nil)
	}
	if strings.ContainsAny(c.Book.ID, `/\`) {
		return services.Wrap(services.ErrValidation, "", "validate",
			fmt.Sprintf("book.id %q must not contain path separators", c.Book.ID), nil)
	}
	return nil
}

func (c *Config) validateBackends() error {
	if _, ok := textBackendTags[c.Book.TextBackend]; !ok {
		return services.Wrap(services.ErrConfiguration, "", "validate",
			fmt.Sprintf("unknown text backend %q (supported: ollama, anthropic, mock)", c.Book.TextBackend), nil)
	}
	if _, ok := imageBackendTags[c.Book.ImageBackend]; !ok {
		return services.Wrap(services.ErrConfiguration, "", "validate",
			fmt.Sprintf("unknown image backend %q (supported: stable_diffusion, mock)", c.Book.ImageBackend), nil)
	}
	if c.Book.TextBackend == "anthropic" && strings.TrimSpace(c.Backends.Anthropic.APIKey) == "" {
		return services.Wrap(services.ErrCredential, "", "validate",
			"anthropic backend selected but no API key configured (set ANTHROPIC_API_KEY or backends.anthropic.api_key)", nil)
	}
	return nil
}

func (c *Config) validateQuality() error {
	if c.Quality.MaxDuplicateRatio > 1 {
		return services.Wrap(services.ErrConfiguration, "", "validate",
			"quality.max_duplicate_ratio must be between 0 and 1", nil)
	}
	return nil
}
