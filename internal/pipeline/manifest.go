package pipeline

import (
	"encoding/json"
	"os"
	"time"

	"bookforge/internal/config"
	"bookforge/internal/cost"
	"bookforge/internal/fileutil"
	"bookforge/internal/quality"
	"bookforge/internal/services"
)

// Metadata is the publication metadata block copied into the manifest.
type Metadata struct {
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Categories  []string `json:"categories"`
	PriceUSD    string   `json:"price_usd"`
	Language    string   `json:"language"`
}

// Manifest is the terminal artifact of a completed run. It is written
// exactly once, after every stage has finished, and never mutated.
type Manifest struct {
	BookID       string            `json:"book_id"`
	Title        string            `json:"title"`
	Author       string            `json:"author"`
	Files        map[string]string `json:"files"`
	Metadata     Metadata          `json:"metadata"`
	AIGenerated  bool              `json:"ai_generated"`
	QualityCheck quality.Result    `json:"quality_check"`
	Cost         cost.RunSummary   `json:"cost"`
	CreatedAt    time.Time         `json:"created_at"`
}

func buildManifest(cfg *config.Config, paths Paths, check quality.Result, run cost.RunSummary) *Manifest {
	return &Manifest{
		BookID: cfg.Book.ID,
		Title:  cfg.Book.Title,
		Author: cfg.Book.Author,
		Files: map[string]string{
			RoleManuscript:  paths.Manuscript,
			RoleCover:       paths.Cover,
			RoleInteriorPDF: paths.Interior,
			RoleCoverPDF:    paths.CoverPDF,
		},
		Metadata: Metadata{
			Description: cfg.Book.Metadata.Description,
			Keywords:    cfg.Book.Metadata.Keywords,
			Categories:  cfg.Book.Metadata.Categories,
			PriceUSD:    cfg.Book.Metadata.PriceUSD,
			Language:    cfg.Book.Language,
		},
		AIGenerated:  true,
		QualityCheck: check,
		Cost:         run,
		CreatedAt:    time.Now().UTC(),
	}
}

// LoadManifest reads a previously written manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "", "load manifest", "read manifest file", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, services.Wrap(services.ErrStorage, "", "load manifest", "parse manifest file", err)
	}
	return &manifest, nil
}

func (m *Manifest) save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrStorage, "", "save manifest", "encode manifest", err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return services.Wrap(services.ErrStorage, "", "save manifest", "write manifest file", err)
	}
	return nil
}
