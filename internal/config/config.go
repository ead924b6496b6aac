package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"bookforge/internal/services"
)

//go:embed sample_config.toml
var sampleConfig string

// Book describes one publication job. It is immutable once loaded: the
// orchestrator and stages consume it read-only.
type Book struct {
	ID           string   `toml:"id" yaml:"id"`
	Title        string   `toml:"title" yaml:"title"`
	Author       string   `toml:"author" yaml:"author"`
	Topic        string   `toml:"topic" yaml:"topic"`
	Genre        string   `toml:"genre" yaml:"genre"`
	Language     string   `toml:"language" yaml:"language"`
	TextBackend  string   `toml:"text_backend" yaml:"text_backend"`
	ImageBackend string   `toml:"image_backend" yaml:"image_backend"`
	Outline      string   `toml:"outline" yaml:"outline"`
	Cover        Cover    `toml:"cover" yaml:"cover"`
	Metadata     Metadata `toml:"metadata" yaml:"metadata"`
}

// Cover holds cover generation options.
type Cover struct {
	Style string `toml:"style" yaml:"style"`
}

// Metadata carries publication metadata copied verbatim into the manifest.
type Metadata struct {
	Description string   `toml:"description" yaml:"description"`
	Keywords    []string `toml:"keywords" yaml:"keywords"`
	Categories  []string `toml:"categories" yaml:"categories"`
	PriceUSD    string   `toml:"price_usd" yaml:"price_usd"`
}

// Output controls where run namespaces and cross-run files live.
type Output struct {
	Dir string `toml:"dir" yaml:"dir"`
}

// Logging controls log verbosity and format.
type Logging struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// Ollama contains connection settings for the local text backend.
type Ollama struct {
	BaseURL        string `toml:"base_url" yaml:"base_url"`
	Model          string `toml:"model" yaml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
}

// Anthropic contains settings for the hosted text backend.
type Anthropic struct {
	APIKey    string `toml:"api_key" yaml:"api_key"`
	Model     string `toml:"model" yaml:"model"`
	MaxTokens int64  `toml:"max_tokens" yaml:"max_tokens"`
}

// StableDiffusion contains connection settings for the image backend.
type StableDiffusion struct {
	BaseURL        string `toml:"base_url" yaml:"base_url"`
	Width          int    `toml:"width" yaml:"width"`
	Height         int    `toml:"height" yaml:"height"`
	Steps          int    `toml:"steps" yaml:"steps"`
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
}

// Backends groups per-backend connection settings.
type Backends struct {
	Ollama          Ollama          `toml:"ollama" yaml:"ollama"`
	Anthropic       Anthropic       `toml:"anthropic" yaml:"anthropic"`
	StableDiffusion StableDiffusion `toml:"stable_diffusion" yaml:"stable_diffusion"`
}

// Quality holds the thresholds the quality checker reports against.
type Quality struct {
	MinWordCount      int     `toml:"min_word_count" yaml:"min_word_count"`
	MinChapterCount   int     `toml:"min_chapter_count" yaml:"min_chapter_count"`
	MaxDuplicateRatio float64 `toml:"max_duplicate_ratio" yaml:"max_duplicate_ratio"`
}

// Retry bounds the backoff loop the content and cover stages own.
type Retry struct {
	MaxAttempts    int     `toml:"max_attempts" yaml:"max_attempts"`
	InitialDelayMS int     `toml:"initial_delay_ms" yaml:"initial_delay_ms"`
	MaxDelayMS     int     `toml:"max_delay_ms" yaml:"max_delay_ms"`
	Multiplier     float64 `toml:"multiplier" yaml:"multiplier"`
}

// Policy converts the configured retry bounds into a stage retry policy.
func (r Retry) Policy() services.RetryPolicy {
	return services.RetryPolicy{
		MaxAttempts:  r.MaxAttempts,
		InitialDelay: time.Duration(r.InitialDelayMS) * time.Millisecond,
		MaxDelay:     time.Duration(r.MaxDelayMS) * time.Millisecond,
		Multiplier:   r.Multiplier,
	}
}

// Config is the fully resolved publication job configuration.
type Config struct {
	Book     Book     `toml:"book" yaml:"book"`
	Output   Output   `toml:"output" yaml:"output"`
	Logging  Logging  `toml:"logging" yaml:"logging"`
	Backends Backends `toml:"backends" yaml:"backends"`
	Quality  Quality  `toml:"quality" yaml:"quality"`
	Retry    Retry    `toml:"retry" yaml:"retry"`
}

// Sample returns the embedded sample job file contents.
func Sample() string {
	return sampleConfig
}

// Load reads, normalizes, and validates a job configuration file. TOML is the
// primary format; files ending in .yaml or .yml are decoded as YAML.
func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "", "load", "configuration path required", nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrConfiguration, "", "load", fmt.Sprintf("configuration file not found: %s", path), nil)
		}
		return nil, services.Wrap(services.ErrConfiguration, "", "load", "read configuration file", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "", "load", "configuration file is empty", nil)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "", "load", "parse yaml", err)
		}
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "", "load", "parse toml", err)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// RunDir resolves the run's storage namespace for the configured identifier.
func (c *Config) RunDir() string {
	return filepath.Join(c.Output.Dir, c.Book.ID)
}

func (c *Config) applyEnvOverrides() {
	if key := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); key != "" && c.Backends.Anthropic.APIKey == "" {
		c.Backends.Anthropic.APIKey = key
	}
	if base := strings.TrimSpace(os.Getenv("OLLAMA_BASE_URL")); base != "" {
		c.Backends.Ollama.BaseURL = base
	}
	if base := strings.TrimSpace(os.Getenv("SD_BASE_URL")); base != "" {
		c.Backends.StableDiffusion.BaseURL = base
	}
}
