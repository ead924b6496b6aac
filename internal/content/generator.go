package content

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"bookforge/internal/backend"
	"bookforge/internal/config"
	"bookforge/internal/logging"
	"bookforge/internal/services"
)

// Generator turns a topic and optional outline into a structured manuscript.
// It is a pure function of (config, backend); all run statefulness lives in
// the orchestrator. Backend failures are retried with bounded backoff before
// a terminal stage failure is surfaced.
type Generator struct {
	llm    backend.Text
	policy services.RetryPolicy
	logger *slog.Logger
}

// NewGenerator constructs the content stage.
func NewGenerator(llm backend.Text, policy services.RetryPolicy, logger *slog.Logger) *Generator {
	return &Generator{
		llm:    llm,
		policy: policy,
		logger: logging.NewComponentLogger(logger, "content"),
	}
}

var chapterPattern = regexp.MustCompile(`^\d+[.)]\s*`)

// fallbackChapters is used when no chapter headings can be parsed out of an
// outline.
var fallbackChapters = []string{"Introduction", "Main Discussion", "Conclusion"}

// GenerateOutline asks the text backend for a chapter outline.
func (g *Generator) GenerateOutline(ctx context.Context, cfg *config.Config) (string, error) {
	logger := logging.WithContext(ctx, g.logger)
	logger.Info("generating outline")

	systemPrompt := fmt.Sprintf("You are a professional book outliner. Always respond in %s.", cfg.LanguageName())
	prompt := fmt.Sprintf(`Write a detailed chapter outline for the following book.
Title: %s
Topic: %s

Produce 12 to 15 chapters, each with 2 to 3 sub-sections.
Format each chapter as '1. Chapter Title'.`, cfg.Book.Title, cfg.Book.Topic)

	outline, err := services.Retry(ctx, g.policy, logger, func() (string, error) {
		return g.llm.Generate(ctx, prompt, systemPrompt)
	})
	if err != nil {
		return "", err
	}
	logger.Info("outline generated")
	return outline, nil
}

// ParseChapters extracts chapter titles from outline text. Lines numbered
// "1. Title" or "1) Title" become chapters; anything else is ignored.
func ParseChapters(outline string) []string {
	var chapters []string
	for _, line := range strings.Split(outline, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !chapterPattern.MatchString(line) {
			continue
		}
		title := strings.TrimSpace(chapterPattern.ReplaceAllString(line, ""))
		if title != "" {
			chapters = append(chapters, title)
		}
	}
	if len(chapters) == 0 {
		chapters = append(chapters, fallbackChapters...)
	}
	return chapters
}

// GenerateChapter produces one chapter as markdown under a "## Chapter N"
// heading.
func (g *Generator) GenerateChapter(ctx context.Context, cfg *config.Config, title string, number int) (string, error) {
	logger := logging.WithContext(ctx, g.logger)

	systemPrompt := fmt.Sprintf(
		"You are a professional author writing a book in %s. "+
			"Write detailed, engaging, and informative chapters with clear structure.",
		cfg.LanguageName())
	prompt := fmt.Sprintf(`Book title: %s
Overall topic: %s
Current chapter: Chapter %d — %s

Write this chapter at roughly 1500 to 2000 words.
Structure it with at least three '###' sub-headings and include concrete examples.`,
		cfg.Book.Title, cfg.Book.Topic, number, title)

	body, err := services.Retry(ctx, g.policy, logger, func() (string, error) {
		return g.llm.Generate(ctx, prompt, systemPrompt)
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("## Chapter %d: %s\n\n%s", number, title, body), nil
}

// GenerateBook produces the full manuscript: outline (generated when the
// config carries none), then one backend call per chapter, joined under the
// book title heading.
func (g *Generator) GenerateBook(ctx context.Context, cfg *config.Config) (string, error) {
	logger := logging.WithContext(ctx, g.logger)

	outline := strings.TrimSpace(cfg.Book.Outline)
	if outline == "" {
		generated, err := g.GenerateOutline(ctx, cfg)
		if err != nil {
			return "", err
		}
		outline = generated
	}

	chapters := ParseChapters(outline)
	logger.Info("generating chapters",
		logging.Int("chapter_count", len(chapters)),
		logging.String("text_backend", g.llm.Name()))

	lines := []string{fmt.Sprintf("# %s\n", cfg.Book.Title)}
	for idx, title := range chapters {
		number := idx + 1
		logger.Info("generating chapter",
			logging.Int("chapter", number),
			logging.Int("chapter_count", len(chapters)),
			logging.String("title", title))
		chapter, err := g.GenerateChapter(ctx, cfg, title, number)
		if err != nil {
			return "", err
		}
		lines = append(lines, chapter)
	}

	return strings.Join(lines, "\n\n"), nil
}
