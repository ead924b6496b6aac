package assemble

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-pdf/fpdf"

	"bookforge/internal/config"
	"bookforge/internal/logging"
	"bookforge/internal/services"
)

const (
	pageFormat    = "A4"
	bodyFont      = "Helvetica"
	titleSize     = 28
	chapterSize   = 18
	sectionSize   = 14
	bodySize      = 11
	bodyLineHt    = 5.5
	headingLineHt = 9
)

// Assembler renders the manuscript and cover image into print-ready PDFs.
// It is a pure transform: no state survives between calls.
type Assembler struct {
	logger *slog.Logger
}

// NewAssembler constructs the assembly stage.
func NewAssembler(logger *slog.Logger) *Assembler {
	return &Assembler{logger: logging.NewComponentLogger(logger, "assemble")}
}

// BuildInterior renders the markdown manuscript into an interior PDF at
// outPath. Chapter headings ("## ") start new pages; subheadings ("### ")
// become section titles; everything else flows as body text.
func (a *Assembler) BuildInterior(cfg *config.Config, manuscript, outPath string) error {
	if strings.TrimSpace(manuscript) == "" {
		return services.Wrap(services.ErrValidation, "assembly", "build interior", "manuscript is empty", nil)
	}

	pdf := fpdf.New("P", "mm", pageFormat, "")
	pdf.SetTitle(cfg.Book.Title, true)
	pdf.SetAuthor(cfg.Book.Author, true)
	pdf.SetMargins(20, 20, 20)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// Title page.
	pdf.AddPage()
	pdf.Ln(60)
	pdf.SetFont(bodyFont, "B", titleSize)
	pdf.MultiCell(0, 12, tr(cfg.Book.Title), "", "C", false)
	pdf.Ln(10)
	pdf.SetFont(bodyFont, "", sectionSize)
	pdf.MultiCell(0, 8, tr(cfg.Book.Author), "", "C", false)

	for _, line := range strings.Split(manuscript, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			pdf.Ln(3)
		case strings.HasPrefix(trimmed, "# "):
			// Book title heading is already on the title page.
		case strings.HasPrefix(trimmed, "## "):
			pdf.AddPage()
			pdf.SetFont(bodyFont, "B", chapterSize)
			pdf.MultiCell(0, headingLineHt, tr(strings.TrimPrefix(trimmed, "## ")), "", "L", false)
			pdf.Ln(4)
		case strings.HasPrefix(trimmed, "### "):
			pdf.SetFont(bodyFont, "B", sectionSize)
			pdf.MultiCell(0, 7, tr(strings.TrimPrefix(trimmed, "### ")), "", "L", false)
			pdf.Ln(2)
		default:
			pdf.SetFont(bodyFont, "", bodySize)
			pdf.MultiCell(0, bodyLineHt, tr(trimmed), "", "L", false)
		}
	}

	if pdf.Err() {
		return services.Wrap(services.ErrStorage, "assembly", "build interior", "render pdf", pdf.Error())
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return services.Wrap(services.ErrStorage, "assembly", "build interior", "write pdf", err)
	}

	if a.logger != nil {
		a.logger.Info("interior assembled", logging.String("path", outPath))
	}
	return nil
}

// BuildCover wraps the cover image into a single-page PDF at outPath.
func (a *Assembler) BuildCover(imageBytes []byte, outPath string) error {
	if len(imageBytes) == 0 {
		return services.Wrap(services.ErrValidation, "assembly", "build cover", "cover image is empty", nil)
	}

	pdf := fpdf.New("P", "mm", pageFormat, "")
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	pdf.RegisterImageOptionsReader("cover", opts, bytes.NewReader(imageBytes))
	pageW, pageH := pdf.GetPageSize()
	pdf.ImageOptions("cover", 0, 0, pageW, pageH, false, opts, 0, "")

	if pdf.Err() {
		return services.Wrap(services.ErrStorage, "assembly", "build cover", "render pdf", pdf.Error())
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return services.Wrap(services.ErrStorage, "assembly", "build cover",
			fmt.Sprintf("write pdf to %s", outPath), err)
	}

	if a.logger != nil {
		a.logger.Info("cover assembled", logging.String("path", outPath))
	}
	return nil
}
