package testsupport

import (
	"path/filepath"
	"testing"

	"bookforge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a validated job config seeded with a unique temp output
// directory per test. Both backends default to mock so no test touches the
// network.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Book.ID = "book-test"
	cfg.Book.Title = "Test Title"
	cfg.Book.Author = "Test Author"
	cfg.Book.Topic = "Test Topic"
	cfg.Book.TextBackend = "mock"
	cfg.Book.ImageBackend = "mock"
	cfg.Output.Dir = filepath.Join(t.TempDir(), "output")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithBookID overrides the run identifier on the test config.
func WithBookID(id string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Book.ID = id
	}
}

// WithGenre overrides the genre on the test config.
func WithGenre(genre string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Book.Genre = genre
	}
}

// WithOutline seeds a fixed outline so the content stage skips outline
// generation.
func WithOutline(outline string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Book.Outline = outline
	}
}
