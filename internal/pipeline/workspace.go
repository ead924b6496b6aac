package pipeline

import (
	"os"
	"path/filepath"

	"bookforge/internal/config"
	"bookforge/internal/services"
)

// Artifact roles as they appear in the manifest's file map.
const (
	RoleManuscript  = "manuscript"
	RoleCover       = "cover"
	RoleInteriorPDF = "interior_pdf"
	RoleCoverPDF    = "cover_pdf"
)

// Paths resolves every file a run touches in its storage namespace.
// Exactly one orchestrator invocation owns the namespace at a time;
// concurrent runs against the same book identifier are unsupported.
type Paths struct {
	Root       string
	Manuscript string
	Cover      string
	Interior   string
	CoverPDF   string
	State      string
	Manifest   string
}

// NewPaths lays out the run namespace for the configured book.
func NewPaths(cfg *config.Config) Paths {
	root := cfg.RunDir()
	return Paths{
		Root:       root,
		Manuscript: filepath.Join(root, "manuscript.md"),
		Cover:      filepath.Join(root, "cover.png"),
		Interior:   filepath.Join(root, "interior.pdf"),
		CoverPDF:   filepath.Join(root, "cover.pdf"),
		State:      filepath.Join(root, "state.json"),
		Manifest:   filepath.Join(root, "manifest.json"),
	}
}

// Ensure creates the run namespace directory.
func (p Paths) Ensure() error {
	if err := os.MkdirAll(p.Root, 0o755); err != nil {
		return services.Wrap(services.ErrStorage, "", "ensure namespace", "create run directory", err)
	}
	return nil
}
