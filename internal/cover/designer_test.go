package cover_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bookforge/internal/backend"
	"bookforge/internal/cover"
	"bookforge/internal/services"
	"bookforge/internal/testsupport"
)

type failingImage struct {
	calls int
}

func (f *failingImage) Name() string { return "failing" }

func (f *failingImage) Generate(context.Context, string, int, int) ([]byte, error) {
	f.calls++
	return nil, services.Wrap(services.ErrBackendConnection, "cover", "txt2img", "refused", nil)
}

func (f *failingImage) Usage() backend.Usage { return backend.Usage{} }

func fastPolicy() services.RetryPolicy {
	return services.RetryPolicy{MaxAttempts: 2, InitialDelay: 1, MaxDelay: 2, Multiplier: 2}
}

func TestBuildPromptGenreKeyed(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithGenre("technology"))
	prompt := cover.BuildPrompt(cfg)
	if !strings.Contains(prompt, "technology book") {
		t.Fatalf("expected genre template in prompt: %q", prompt)
	}
	if !strings.Contains(prompt, cfg.Book.Cover.Style) {
		t.Fatal("expected cover style interpolated")
	}
	if !strings.Contains(prompt, cfg.Book.Title) {
		t.Fatal("expected title in prompt")
	}
}

func TestBuildPromptUnknownGenreFallsBack(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithGenre("gardening"))
	prompt := cover.BuildPrompt(cfg)
	if !strings.Contains(prompt, "professional book cover") {
		t.Fatalf("expected default template, got %q", prompt)
	}
}

func TestGenerateCoverProducesImage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mock := backend.NewMockImage()
	designer := cover.NewDesigner(mock, fastPolicy(), nil)

	data, err := designer.GenerateCover(context.Background(), cfg)
	if err != nil {
		t.Fatalf("GenerateCover returned error: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected image bytes")
	}
	if mock.Calls() != 1 {
		t.Fatalf("expected 1 backend call, got %d", mock.Calls())
	}
}

func TestGenerateCoverExhaustsRetries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	failing := &failingImage{}
	designer := cover.NewDesigner(failing, fastPolicy(), nil)

	_, err := designer.GenerateCover(context.Background(), cfg)
	if !errors.Is(err, services.ErrBackendConnection) {
		t.Fatalf("expected connection marker, got %v", err)
	}
	if failing.calls != 2 {
		t.Fatalf("expected attempt ceiling of 2, got %d calls", failing.calls)
	}
}
