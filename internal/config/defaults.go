package config

const (
	defaultGenre              = "general"
	defaultLanguage           = "en"
	defaultTextBackend        = "ollama"
	defaultImageBackend       = "stable_diffusion"
	defaultCoverStyle         = "modern minimalist"
	defaultPriceUSD           = "9.99"
	defaultOutputDir          = "output"
	defaultLogLevel           = "info"
	defaultLogFormat          = "console"
	defaultOllamaBaseURL      = "http://localhost:11434"
	defaultOllamaModel        = "llama3.1"
	defaultOllamaTimeout      = 300
	defaultAnthropicModel     = "claude-3-5-sonnet-20241022"
	defaultAnthropicMaxTokens = 4096
	defaultSDBaseURL          = "http://localhost:7860"
	defaultSDWidth            = 1024
	defaultSDHeight           = 1024
	defaultSDSteps            = 30
	defaultSDTimeout          = 300
	defaultMinWordCount       = 10000
	defaultMinChapterCount    = 5
	defaultMaxDuplicateRatio  = 0.15
	defaultRetryMaxAttempts   = 4
	defaultRetryInitialMS     = 500
	defaultRetryMaxMS         = 8000
	defaultRetryMultiplier    = 2.0
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Book: Book{
			Genre:        defaultGenre,
			Language:     defaultLanguage,
			TextBackend:  defaultTextBackend,
			ImageBackend: defaultImageBackend,
			Cover:        Cover{Style: defaultCoverStyle},
			Metadata:     Metadata{PriceUSD: defaultPriceUSD},
		},
		Output:  Output{Dir: defaultOutputDir},
		Logging: Logging{Level: defaultLogLevel, Format: defaultLogFormat},
		Backends: Backends{
			Ollama: Ollama{
				BaseURL:        defaultOllamaBaseURL,
				Model:          defaultOllamaModel,
				TimeoutSeconds: defaultOllamaTimeout,
			},
			Anthropic: Anthropic{
				Model:     defaultAnthropicModel,
				MaxTokens: defaultAnthropicMaxTokens,
			},
			StableDiffusion: StableDiffusion{
				BaseURL:        defaultSDBaseURL,
				Width:          defaultSDWidth,
				Height:         defaultSDHeight,
				Steps:          defaultSDSteps,
				TimeoutSeconds: defaultSDTimeout,
			},
		},
		Quality: Quality{
			MinWordCount:      defaultMinWordCount,
			MinChapterCount:   defaultMinChapterCount,
			MaxDuplicateRatio: defaultMaxDuplicateRatio,
		},
		Retry: Retry{
			MaxAttempts:    defaultRetryMaxAttempts,
			InitialDelayMS: defaultRetryInitialMS,
			MaxDelayMS:     defaultRetryMaxMS,
			Multiplier:     defaultRetryMultiplier,
		},
	}
}

// applyDefaults backfills zero values left behind by a sparse job file.
func (c *Config) applyDefaults() {
	def := Default()
	if c.Book.Genre == "" {
		c.Book.Genre = def.Book.Genre
	}
	if c.Book.Language == "" {
		c.Book.Language = def.Book.Language
	}
	if c.Book.TextBackend == "" {
		c.Book.TextBackend = def.Book.TextBackend
	}
	if c.Book.ImageBackend == "" {
		c.Book.ImageBackend = def.Book.ImageBackend
	}
	if c.Book.Cover.Style == "" {
		c.Book.Cover.Style = def.Book.Cover.Style
	}
	if c.Book.Metadata.PriceUSD == "" {
		c.Book.Metadata.PriceUSD = def.Book.Metadata.PriceUSD
	}
	if c.Output.Dir == "" {
		c.Output.Dir = def.Output.Dir
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
	if c.Backends.Ollama.BaseURL == "" {
		c.Backends.Ollama.BaseURL = def.Backends.Ollama.BaseURL
	}
	if c.Backends.Ollama.Model == "" {
		c.Backends.Ollama.Model = def.Backends.Ollama.Model
	}
	if c.Backends.Ollama.TimeoutSeconds <= 0 {
		c.Backends.Ollama.TimeoutSeconds = def.Backends.Ollama.TimeoutSeconds
	}
	if c.Backends.Anthropic.Model == "" {
		c.Backends.Anthropic.Model = def.Backends.Anthropic.Model
	}
	if c.Backends.Anthropic.MaxTokens <= 0 {
		c.Backends.Anthropic.MaxTokens = def.Backends.Anthropic.MaxTokens
	}
	if c.Backends.StableDiffusion.BaseURL == "" {
		c.Backends.StableDiffusion.BaseURL = def.Backends.StableDiffusion.BaseURL
	}
	if c.Backends.StableDiffusion.Width <= 0 {
		c.Backends.StableDiffusion.Width = def.Backends.StableDiffusion.Width
	}
	if c.Backends.StableDiffusion.Height <= 0 {
		c.Backends.StableDiffusion.Height = def.Backends.StableDiffusion.Height
	}
	if c.Backends.StableDiffusion.Steps <= 0 {
		c.Backends.StableDiffusion.Steps = def.Backends.StableDiffusion.Steps
	}
	if c.Backends.StableDiffusion.TimeoutSeconds <= 0 {
		c.Backends.StableDiffusion.TimeoutSeconds = def.Backends.StableDiffusion.TimeoutSeconds
	}
	if c.Quality.MinWordCount <= 0 {
		c.Quality.MinWordCount = def.Quality.MinWordCount
	}
	if c.Quality.MinChapterCount <= 0 {
		c.Quality.MinChapterCount = def.Quality.MinChapterCount
	}
	if c.Quality.MaxDuplicateRatio <= 0 {
		c.Quality.MaxDuplicateRatio = def.Quality.MaxDuplicateRatio
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if c.Retry.InitialDelayMS <= 0 {
		c.Retry.InitialDelayMS = def.Retry.InitialDelayMS
	}
	if c.Retry.MaxDelayMS <= 0 {
		c.Retry.MaxDelayMS = def.Retry.MaxDelayMS
	}
	if c.Retry.Multiplier <= 1 {
		c.Retry.Multiplier = def.Retry.Multiplier
	}
}
