package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"bookforge/internal/assemble"
	"bookforge/internal/backend"
	"bookforge/internal/backendselect"
	"bookforge/internal/config"
	"bookforge/internal/content"
	"bookforge/internal/cost"
	"bookforge/internal/cover"
	"bookforge/internal/fileutil"
	"bookforge/internal/logging"
	"bookforge/internal/quality"
	"bookforge/internal/registry"
	"bookforge/internal/services"
)

// Stage names in execution order.
const (
	StageContent  = "content"
	StageCover    = "cover"
	StageAssembly = "assembly"
)

// StageError reports which stage halted the run. The underlying cause
// is preserved for errors.Is classification.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Orchestrator sequences the publication stages for one run, owns the
// persisted run state, and writes the final manifest. It is the only
// writer of the run namespace for the duration of a run.
type Orchestrator struct {
	cfg      *config.Config
	text     backend.Text
	image    backend.Image
	ledger   *cost.Ledger
	store    *cost.Store
	registry *registry.Store
	logger   *slog.Logger
}

// Option adjusts orchestrator construction, mainly for tests that
// inject instrumented backends.
type Option func(*Orchestrator)

// WithTextBackend overrides the factory-selected text backend.
func WithTextBackend(text backend.Text) Option {
	return func(o *Orchestrator) { o.text = text }
}

// WithImageBackend overrides the factory-selected image backend.
func WithImageBackend(image backend.Image) Option {
	return func(o *Orchestrator) { o.image = image }
}

// WithRegistry records run outcomes in the given registry.
func WithRegistry(store *registry.Store) Option {
	return func(o *Orchestrator) { o.registry = store }
}

// New builds an orchestrator for the job, selecting backends from the
// configuration tags. Unknown tags and missing credentials fail here,
// before any stage runs.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		cfg:    cfg,
		ledger: cost.NewLedger(),
		store:  cost.NewStore(filepath.Join(cfg.Output.Dir, cost.SummaryFileName)),
		logger: logging.NewComponentLogger(logger, "pipeline"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.text == nil {
		text, err := backendselect.Text(cfg)
		if err != nil {
			return nil, err
		}
		o.text = text
	}
	if o.image == nil {
		image, err := backendselect.Image(cfg)
		if err != nil {
			return nil, err
		}
		o.image = image
	}
	return o, nil
}

// Run executes the pipeline. With resume, previously completed stages
// whose artifacts survive are skipped; without it, any prior state for
// the identifier is overwritten and every stage executes. A completed
// run resumed again is a no-op returning the existing manifest.
func (o *Orchestrator) Run(ctx context.Context, resume bool) (*Manifest, error) {
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, o.cfg.Book.ID)
	ctx = logging.WithRequestID(ctx, runID)
	logger := logging.WithContext(ctx, o.logger)

	paths := NewPaths(o.cfg)
	if err := paths.Ensure(); err != nil {
		return nil, err
	}

	state, err := o.loadOrInitState(paths, resume)
	if err != nil {
		return nil, err
	}

	if state.Completed && resume {
		logger.Info("run already completed, returning existing manifest")
		return LoadManifest(paths.Manifest)
	}

	o.recordStart(ctx, runID, resume)
	logger.Info("run started",
		logging.Bool("resume", resume),
		logging.String("text_backend", o.text.Name()),
		logging.String("image_backend", o.image.Name()))

	stages := []struct {
		name      string
		done      func() bool
		markDone  func()
		artifacts []string
		execute   func(context.Context) error
	}{
		{
			name:      StageContent,
			done:      func() bool { return state.ContentDone },
			markDone:  func() { state.ContentDone = true },
			artifacts: []string{paths.Manuscript},
			execute:   func(ctx context.Context) error { return o.runContent(ctx, paths) },
		},
		{
			name:      StageCover,
			done:      func() bool { return state.CoverDone },
			markDone:  func() { state.CoverDone = true },
			artifacts: []string{paths.Cover},
			execute:   func(ctx context.Context) error { return o.runCover(ctx, paths) },
		},
		{
			name:      StageAssembly,
			done:      func() bool { return state.AssemblyDone },
			markDone:  func() { state.AssemblyDone = true },
			artifacts: []string{paths.Interior, paths.CoverPDF},
			execute:   func(ctx context.Context) error { return o.runAssembly(ctx, paths) },
		},
	}

	for _, stage := range stages {
		// Skip only when the flag is set AND every artifact survives;
		// an externally deleted artifact forces re-execution.
		if stage.done() && allExist(stage.artifacts) {
			logger.Info("stage already complete, skipping", logging.String(logging.FieldStage, stage.name))
			continue
		}

		stageCtx := logging.WithStage(ctx, stage.name)
		logger.Info("stage started",
			logging.String(logging.FieldStage, stage.name),
			logging.String(logging.FieldEventType, "stage_start"))

		if err := stage.execute(stageCtx); err != nil {
			state.FailedStage = stage.name
			state.LastError = err.Error()
			state.Cost = o.ledger.Summary()
			if saveErr := state.Save(paths.State); saveErr != nil {
				logger.Error("persist state after stage failure", logging.Error(saveErr))
			}
			o.recordFailure(ctx, runID, stage.name, err)
			logger.Error("stage failed",
				logging.String(logging.FieldStage, stage.name),
				logging.String(logging.FieldEventType, "stage_failure"),
				logging.Error(err))
			return nil, &StageError{Stage: stage.name, Err: err}
		}

		stage.markDone()
		state.FailedStage = ""
		state.LastError = ""
		// The state cost block tracks this attempt only, like the
		// original per-session tracker; prior attempts live in the
		// cumulative store.
		state.Cost = o.ledger.Summary()
		if err := state.Save(paths.State); err != nil {
			return nil, err
		}
		logger.Info("stage completed",
			logging.String(logging.FieldStage, stage.name),
			logging.String(logging.FieldEventType, "stage_complete"))
	}

	manifest, err := o.finalize(paths, state, runID)
	if err != nil {
		return nil, err
	}
	o.recordFinish(ctx, runID, manifest.Cost.TotalCostUSD)
	logger.Info("run completed",
		logging.String("manifest", paths.Manifest),
		logging.Float64("cost_usd", manifest.Cost.TotalCostUSD))
	return manifest, nil
}

func (o *Orchestrator) loadOrInitState(paths Paths, resume bool) (*State, error) {
	if resume {
		state, err := LoadState(paths.State)
		if err != nil {
			return nil, err
		}
		if state != nil {
			return state, nil
		}
	}
	return NewState(o.cfg.Book.ID), nil
}

func (o *Orchestrator) runContent(ctx context.Context, paths Paths) error {
	generator := content.NewGenerator(o.text, o.cfg.Retry.Policy(), o.logger)
	before := o.text.Usage()
	manuscript, err := generator.GenerateBook(ctx, o.cfg)
	if err != nil {
		o.ledger.Add(o.text.Name(), usageDelta(before, o.text.Usage()))
		return err
	}
	if err := fileutil.WriteFileAtomic(paths.Manuscript, []byte(manuscript), 0o644); err != nil {
		return services.Wrap(services.ErrStorage, StageContent, "persist manuscript", "write manuscript file", err)
	}
	o.ledger.Add(o.text.Name(), usageDelta(before, o.text.Usage()))
	return nil
}

func (o *Orchestrator) runCover(ctx context.Context, paths Paths) error {
	designer := cover.NewDesigner(o.image, o.cfg.Retry.Policy(), o.logger)
	before := o.image.Usage()
	img, err := designer.GenerateCover(ctx, o.cfg)
	if err != nil {
		o.ledger.Add(o.image.Name(), usageDelta(before, o.image.Usage()))
		return err
	}
	if err := fileutil.WriteFileAtomic(paths.Cover, img, 0o644); err != nil {
		return services.Wrap(services.ErrStorage, StageCover, "persist cover", "write cover image", err)
	}
	o.ledger.Add(o.image.Name(), usageDelta(before, o.image.Usage()))
	return nil
}

func (o *Orchestrator) runAssembly(_ context.Context, paths Paths) error {
	manuscript, err := os.ReadFile(paths.Manuscript)
	if err != nil {
		return services.Wrap(services.ErrStorage, StageAssembly, "read manuscript", "manuscript artifact missing", err)
	}
	img, err := os.ReadFile(paths.Cover)
	if err != nil {
		return services.Wrap(services.ErrStorage, StageAssembly, "read cover", "cover artifact missing", err)
	}

	assembler := assemble.NewAssembler(o.logger)
	if err := assembler.BuildInterior(o.cfg, string(manuscript), paths.Interior); err != nil {
		return err
	}
	return assembler.BuildCover(img, paths.CoverPDF)
}

// finalize runs the quality check, writes the manifest, merges the run
// into the cumulative cost store, and marks the state completed.
func (o *Orchestrator) finalize(paths Paths, state *State, runID string) (*Manifest, error) {
	manuscript, err := os.ReadFile(paths.Manuscript)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "", "finalize", "read manuscript for quality check", err)
	}
	check := quality.Check(string(manuscript), o.cfg.Quality)
	for _, warning := range check.Warnings {
		o.logger.Warn("quality warning", logging.String("warning", warning))
	}

	run := o.ledger.Summary()
	manifest := buildManifest(o.cfg, paths, check, run)
	if err := manifest.save(paths.Manifest); err != nil {
		return nil, err
	}

	// Merge into the cumulative store only after the manifest exists;
	// a crash before this point costs a re-run of finalize, not a
	// duplicated cumulative entry. A crash between here and the
	// completed-state save below still double-counts on resume.
	if _, err := o.store.Apply(o.cfg.Book.ID, runID, run); err != nil {
		return nil, err
	}

	state.Completed = true
	state.Cost = run
	if err := state.Save(paths.State); err != nil {
		return nil, err
	}
	return manifest, nil
}

func (o *Orchestrator) recordStart(ctx context.Context, runID string, resume bool) {
	if o.registry == nil {
		return
	}
	if err := o.registry.StartRun(ctx, runID, o.cfg.Book.ID, o.cfg.Book.Title, resume); err != nil {
		o.logger.Warn("record run start", logging.Error(err))
	}
}

func (o *Orchestrator) recordFinish(ctx context.Context, runID string, costUSD float64) {
	if o.registry == nil {
		return
	}
	if err := o.registry.FinishRun(ctx, runID, costUSD); err != nil {
		o.logger.Warn("record run completion", logging.Error(err))
	}
}

func (o *Orchestrator) recordFailure(ctx context.Context, runID, stage string, cause error) {
	if o.registry == nil {
		return
	}
	if err := o.registry.FailRun(ctx, runID, stage, cause.Error(), o.ledger.Total()); err != nil {
		o.logger.Warn("record run failure", logging.Error(err))
	}
}

func allExist(paths []string) bool {
	for _, path := range paths {
		if !fileutil.Exists(path) {
			return false
		}
	}
	return true
}

func usageDelta(before, after backend.Usage) backend.Usage {
	return backend.Usage{
		InputTokens:  after.InputTokens - before.InputTokens,
		OutputTokens: after.OutputTokens - before.OutputTokens,
		Images:       after.Images - before.Images,
	}
}
