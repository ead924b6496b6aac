package cover

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bookforge/internal/backend"
	"bookforge/internal/config"
	"bookforge/internal/logging"
	"bookforge/internal/services"
)

// genrePrompts keys cover prompt templates by normalized genre tag.
var genrePrompts = map[string]string{
	"technology": "A %s book cover for a technology book. " +
		"Clean, futuristic design with subtle digital circuit patterns and cool-toned gradients. ",
	"business": "A %s book cover for a business book. " +
		"Sophisticated, corporate feel with geometric shapes and warm gold or navy tones. ",
	"fiction": "A %s book cover for a fiction novel. " +
		"Dramatic, cinematic composition with moody lighting and rich colours. ",
	"self-help": "A %s book cover for a self-help and motivation book. " +
		"Bright, inspiring design with sunrise or nature imagery and uplifting energy. ",
	"science": "A %s book cover for a science book. " +
		"Visually striking design with macro-photography style scientific imagery. ",
}

const defaultPrompt = "A %s professional book cover. " +
	"Clean, modern design suitable for print-on-demand publishing. "

// Designer turns config and genre into a cover image using the image backend.
// Stateless apart from the backend's usage counter; backend failures are
// retried with bounded backoff.
type Designer struct {
	image  backend.Image
	policy services.RetryPolicy
	logger *slog.Logger
}

// NewDesigner constructs the cover stage.
func NewDesigner(image backend.Image, policy services.RetryPolicy, logger *slog.Logger) *Designer {
	return &Designer{
		image:  image,
		policy: policy,
		logger: logging.NewComponentLogger(logger, "cover"),
	}
}

// BuildPrompt derives the genre-keyed image prompt for the configured book.
func BuildPrompt(cfg *config.Config) string {
	template, ok := genrePrompts[strings.ToLower(cfg.Book.Genre)]
	if !ok {
		template = defaultPrompt
	}
	base := fmt.Sprintf(template, cfg.Book.Cover.Style)
	return base +
		fmt.Sprintf("The words '%s' should appear prominently on the cover in a clean readable font. ", cfg.Book.Title) +
		"Professional publishing quality, high resolution, no watermarks."
}

// GenerateCover renders the cover image and returns its PNG bytes.
func (d *Designer) GenerateCover(ctx context.Context, cfg *config.Config) ([]byte, error) {
	logger := logging.WithContext(ctx, d.logger)
	logger.Info("generating cover image",
		logging.String("image_backend", d.image.Name()),
		logging.String("genre", cfg.Book.Genre))

	prompt := BuildPrompt(cfg)
	width := cfg.Backends.StableDiffusion.Width
	height := cfg.Backends.StableDiffusion.Height

	imageBytes, err := services.Retry(ctx, d.policy, logger, func() ([]byte, error) {
		return d.image.Generate(ctx, prompt, width, height)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("cover image generated", logging.Int("bytes", len(imageBytes)))
	return imageBytes, nil
}
