package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"bookforge/internal/backend"
	"bookforge/internal/config"
	"bookforge/internal/cost"
	"bookforge/internal/logging"
	"bookforge/internal/registry"
	"bookforge/internal/services"
	"bookforge/internal/testsupport"
)

// stubText is a text backend with a fixed response and fixed priced
// usage, for cost assertions that need exact numbers.
type stubText struct {
	mu     sync.Mutex
	name   string
	output string
	usage  backend.Usage
	calls  int
}

func (s *stubText) Name() string { return s.name }

func (s *stubText) Generate(_ context.Context, _, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.output, nil
}

func (s *stubText) Usage() backend.Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == 0 {
		return backend.Usage{}
	}
	return s.usage
}

func (s *stubText) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// failingImage always refuses, simulating an unreachable image service.
type failingImage struct {
	calls int
}

func (f *failingImage) Name() string { return "stable-diffusion" }

func (f *failingImage) Generate(context.Context, string, int, int) ([]byte, error) {
	f.calls++
	return nil, services.Wrap(services.ErrBackendConnection, "cover", "txt2img", "connection refused", nil)
}

func (f *failingImage) Usage() backend.Usage { return backend.Usage{} }

func fastRetries(cfg *config.Config) {
	cfg.Retry = config.Retry{MaxAttempts: 2, InitialDelayMS: 1, MaxDelayMS: 2, Multiplier: 2.0}
}

func newTestConfig(t *testing.T, opts ...testsupport.ConfigOption) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	fastRetries(cfg)
	return cfg
}

func TestFreshRunProducesManifest(t *testing.T) {
	cfg := newTestConfig(t, testsupport.WithOutline("1. Only Chapter"))
	text := backend.NewMockText()
	image := backend.NewMockImage()

	orch, err := New(cfg, logging.NewNop(), WithTextBackend(text), WithImageBackend(image))
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	manifest, err := orch.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if !manifest.AIGenerated {
		t.Fatal("ai_generated must be true")
	}
	wantRoles := []string{RoleManuscript, RoleCover, RoleInteriorPDF, RoleCoverPDF}
	if len(manifest.Files) != len(wantRoles) {
		t.Fatalf("files map has %d roles, want %d: %v", len(manifest.Files), len(wantRoles), manifest.Files)
	}
	for _, role := range wantRoles {
		path := manifest.Files[role]
		if path == "" {
			t.Fatalf("role %s missing from manifest", role)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("artifact %s missing on disk: %v", role, err)
		}
	}

	state, err := LoadState(NewPaths(cfg).State)
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if state == nil || !state.ContentDone || !state.CoverDone || !state.AssemblyDone || !state.Completed {
		t.Fatalf("state after completed run = %+v", state)
	}
	if text.Calls() != 1 {
		t.Fatalf("text backend calls = %d, want 1", text.Calls())
	}
}

func TestResumeSkipsCompletedStages(t *testing.T) {
	cfg := newTestConfig(t, testsupport.WithOutline("1. Only Chapter"))
	text := backend.NewMockText()
	broken := &failingImage{}

	orch, err := New(cfg, logging.NewNop(), WithTextBackend(text), WithImageBackend(broken))
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	_, err = orch.Run(context.Background(), false)
	if err == nil {
		t.Fatal("expected cover stage failure")
	}
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageCover {
		t.Fatalf("failure = %v, want cover stage error", err)
	}

	paths := NewPaths(cfg)
	state, err := LoadState(paths.State)
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if !state.ContentDone || state.CoverDone || state.Completed {
		t.Fatalf("state after cover failure = %+v", state)
	}
	if state.FailedStage != StageCover || state.LastError == "" {
		t.Fatalf("failure not recorded: %+v", state)
	}

	// Resume with a working image backend: content must not rerun.
	orch2, err := New(cfg, logging.NewNop(), WithTextBackend(text), WithImageBackend(backend.NewMockImage()))
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	manifest, err := orch2.Run(context.Background(), true)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if manifest == nil {
		t.Fatal("resume returned nil manifest")
	}
	if text.Calls() != 1 {
		t.Fatalf("text backend calls across both invocations = %d, want 1", text.Calls())
	}

	state, err = LoadState(paths.State)
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if !state.ContentDone || !state.CoverDone || !state.AssemblyDone || !state.Completed {
		t.Fatalf("state after resume = %+v", state)
	}
	if state.FailedStage != "" || state.LastError != "" {
		t.Fatalf("stale failure left in state: %+v", state)
	}
}

func TestResumeCompletedRunIsNoOp(t *testing.T) {
	cfg := newTestConfig(t, testsupport.WithOutline("1. Only Chapter"))
	orch, err := New(cfg, logging.NewNop(),
		WithTextBackend(backend.NewMockText()), WithImageBackend(backend.NewMockImage()))
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	first, err := orch.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}

	text := backend.NewMockText()
	image := backend.NewMockImage()
	orch2, err := New(cfg, logging.NewNop(), WithTextBackend(text), WithImageBackend(image))
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	second, err := orch2.Run(context.Background(), true)
	if err != nil {
		t.Fatalf("resume of completed run: %v", err)
	}
	if text.Calls() != 0 || image.Calls() != 0 {
		t.Fatalf("completed resume invoked backends: text=%d image=%d", text.Calls(), image.Calls())
	}
	if second.BookID != first.BookID || second.CreatedAt.IsZero() {
		t.Fatalf("manifest not reconstructed: %+v", second)
	}
}

func TestRunWithoutResumeOverwrites(t *testing.T) {
	cfg := newTestConfig(t, testsupport.WithOutline("1. Only Chapter"))
	orch, err := New(cfg, logging.NewNop(),
		WithTextBackend(backend.NewMockText()), WithImageBackend(backend.NewMockImage()))
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	if _, err := orch.Run(context.Background(), false); err != nil {
		t.Fatalf("first run: %v", err)
	}

	text := backend.NewMockText()
	orch2, err := New(cfg, logging.NewNop(), WithTextBackend(text), WithImageBackend(backend.NewMockImage()))
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	if _, err := orch2.Run(context.Background(), false); err != nil {
		t.Fatalf("overwrite run: %v", err)
	}
	if text.Calls() != 1 {
		t.Fatalf("overwrite run should re-execute content, calls = %d", text.Calls())
	}
}

func TestReexecutesStageWhenArtifactDeleted(t *testing.T) {
	cfg := newTestConfig(t, testsupport.WithOutline("1. Only Chapter"))
	text := backend.NewMockText()
	broken := &failingImage{}
	orch, err := New(cfg, logging.NewNop(), WithTextBackend(text), WithImageBackend(broken))
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	if _, err := orch.Run(context.Background(), false); err == nil {
		t.Fatal("expected cover failure")
	}

	// Delete the manuscript out from under the state file.
	paths := NewPaths(cfg)
	if err := os.Remove(paths.Manuscript); err != nil {
		t.Fatalf("remove manuscript: %v", err)
	}

	orch2, err := New(cfg, logging.NewNop(), WithTextBackend(text), WithImageBackend(backend.NewMockImage()))
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	if _, err := orch2.Run(context.Background(), true); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if text.Calls() != 2 {
		t.Fatalf("content should rerun after artifact deletion, calls = %d", text.Calls())
	}
}

func TestResumeRebuildsDeletedCoverPDF(t *testing.T) {
	cfg := newTestConfig(t, testsupport.WithOutline("1. Only Chapter"))
	text := backend.NewMockText()
	image := backend.NewMockImage()
	orch, err := New(cfg, logging.NewNop(), WithTextBackend(text), WithImageBackend(image))
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	if _, err := orch.Run(context.Background(), false); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Assembly produces two artifacts; losing either one must force
	// the stage to rerun even though the interior PDF survived.
	paths := NewPaths(cfg)
	if err := os.Remove(paths.CoverPDF); err != nil {
		t.Fatalf("remove cover pdf: %v", err)
	}

	orch2, err := New(cfg, logging.NewNop(), WithTextBackend(text), WithImageBackend(image))
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	manifest, err := orch2.Run(context.Background(), true)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if _, err := os.Stat(manifest.Files[RoleCoverPDF]); err != nil {
		t.Fatalf("cover pdf not rebuilt: %v", err)
	}
	if text.Calls() != 1 || image.Calls() != 1 {
		t.Fatalf("backends re-invoked for assembly rerun: text=%d image=%d", text.Calls(), image.Calls())
	}
}

func TestLoadStateIgnoresCrashedPartialWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	state := NewState("book-test")
	state.ContentDone = true
	if err := state.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Simulate a crash mid-write: garbage temp file beside the last
	// complete write. Only the complete write may be observed.
	if err := os.WriteFile(path+".tmp", []byte(`{"content_done": tr`), 0o644); err != nil {
		t.Fatalf("write partial temp: %v", err)
	}

	loaded, err := LoadState(path)
	if err != nil {
		t.Fatalf("load after simulated crash: %v", err)
	}
	if loaded == nil || !loaded.ContentDone {
		t.Fatalf("prior complete write lost: %+v", loaded)
	}

	state.CoverDone = true
	if err := state.Save(path); err != nil {
		t.Fatalf("save over stray temp: %v", err)
	}
	loaded, err = LoadState(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !loaded.CoverDone {
		t.Fatalf("new write not visible: %+v", loaded)
	}
}

func TestRunLogsCarryCorrelationAndEventTypes(t *testing.T) {
	cfg := newTestConfig(t, testsupport.WithOutline("1. Only Chapter"))

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	orch, err := New(cfg, logger,
		WithTextBackend(backend.NewMockText()), WithImageBackend(backend.NewMockImage()))
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	if _, err := orch.Run(context.Background(), false); err != nil {
		t.Fatalf("run: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		`"correlation_id"`,
		`"run_id":"book-test"`,
		`"event_type":"stage_start"`,
		`"event_type":"stage_complete"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %s:\n%s", want, out)
		}
	}
}

func TestResumeAfterCrashBeforeCumulativeMerge(t *testing.T) {
	cfg := newTestConfig(t, testsupport.WithOutline("1. Only Chapter"))
	text := backend.NewMockText()
	image := backend.NewMockImage()
	orch, err := New(cfg, logging.NewNop(), WithTextBackend(text), WithImageBackend(image))
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	if _, err := orch.Run(context.Background(), false); err != nil {
		t.Fatalf("run: %v", err)
	}

	// Rewind to the crash window between the manifest write and the
	// cumulative merge: manifest on disk, completion not yet recorded,
	// cumulative store never updated.
	paths := NewPaths(cfg)
	state, err := LoadState(paths.State)
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	state.Completed = false
	if err := state.Save(paths.State); err != nil {
		t.Fatalf("save state: %v", err)
	}
	summaryPath := filepath.Join(cfg.Output.Dir, cost.SummaryFileName)
	if err := os.Remove(summaryPath); err != nil {
		t.Fatalf("remove cumulative file: %v", err)
	}

	orch2, err := New(cfg, logging.NewNop(), WithTextBackend(text), WithImageBackend(image))
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	if _, err := orch2.Run(context.Background(), true); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if text.Calls() != 1 || image.Calls() != 1 {
		t.Fatalf("stages re-executed during finalize replay: text=%d image=%d", text.Calls(), image.Calls())
	}

	summary, err := cost.NewStore(summaryPath).Load()
	if err != nil {
		t.Fatalf("load cumulative summary: %v", err)
	}
	if summary.TotalRuns != 1 {
		t.Fatalf("cumulative runs = %d, want exactly 1", summary.TotalRuns)
	}
}

func TestStatePersistenceSurvivesRewrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	state := NewState("book-test")
	for i := 0; i < 3; i++ {
		if err := state.Save(path); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
		loaded, err := LoadState(path)
		if err != nil {
			t.Fatalf("load %d: %v", i, err)
		}
		if loaded.BookID != "book-test" {
			t.Fatalf("load %d bookID = %q", i, loaded.BookID)
		}
		state.ContentDone = true
	}

	missing, err := LoadState(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("missing state load: %v", err)
	}
	if missing != nil {
		t.Fatalf("missing state should be nil, got %+v", missing)
	}
}

func TestUnknownBackendRejectedBeforeStateExists(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Book.TextBackend = "nope"

	if _, err := New(cfg, logging.NewNop()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
	if _, err := os.Stat(NewPaths(cfg).State); !os.IsNotExist(err) {
		t.Fatal("state file must not exist after rejected construction")
	}
}

func TestCostAccumulatesExactlyAndAcrossRuns(t *testing.T) {
	outputDir := filepath.Join(t.TempDir(), "output")

	runBook := func(id string) *Manifest {
		cfg := testsupport.NewConfig(t, testsupport.WithBookID(id), testsupport.WithOutline("1. Alpha"))
		fastRetries(cfg)
		cfg.Output.Dir = outputDir

		text := &stubText{
			name:   "anthropic/claude-3-5-sonnet-20241022",
			output: "### Section\n\nGenerated body text.",
			usage:  backend.Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000},
		}
		orch, err := New(cfg, logging.NewNop(), WithTextBackend(text), WithImageBackend(backend.NewMockImage()))
		if err != nil {
			t.Fatalf("new orchestrator: %v", err)
		}
		manifest, err := orch.Run(context.Background(), false)
		if err != nil {
			t.Fatalf("run %s: %v", id, err)
		}
		return manifest
	}

	// 1M input at $3/MTok plus 1M output at $15/MTok.
	first := runBook("book-one")
	if math.Abs(first.Cost.TotalCostUSD-18.00) > 1e-9 {
		t.Fatalf("run cost = %v, want 18.00", first.Cost.TotalCostUSD)
	}

	runBook("book-two")

	store := cost.NewStore(filepath.Join(outputDir, cost.SummaryFileName))
	summary, err := store.Load()
	if err != nil {
		t.Fatalf("load cumulative summary: %v", err)
	}
	if math.Abs(summary.CumulativeCostUSD-36.00) > 1e-9 {
		t.Fatalf("cumulative cost = %v, want 36.00", summary.CumulativeCostUSD)
	}
	if summary.TotalRuns != 2 {
		t.Fatalf("total runs = %d, want 2", summary.TotalRuns)
	}
}

func TestRegistryRecordsOutcomes(t *testing.T) {
	cfg := newTestConfig(t, testsupport.WithOutline("1. Only Chapter"))
	reg, err := registry.Open(cfg.Output.Dir)
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}
	defer reg.Close()

	orch, err := New(cfg, logging.NewNop(),
		WithTextBackend(backend.NewMockText()), WithImageBackend(backend.NewMockImage()),
		WithRegistry(reg))
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	if _, err := orch.Run(context.Background(), false); err != nil {
		t.Fatalf("run: %v", err)
	}

	latest, err := reg.Latest(context.Background(), cfg.Book.ID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest == nil || latest.Status != registry.StatusCompleted {
		t.Fatalf("registry entry = %+v", latest)
	}
}
