package cost

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/gofrs/flock"

	"bookforge/internal/fileutil"
	"bookforge/internal/services"
)

// SummaryFileName is the cumulative cost file kept at the output root,
// shared by every run across all books.
const SummaryFileName = "cost_summary.json"

// RunEntry is one completed run inside the cumulative summary.
type RunEntry struct {
	BookID      string    `json:"book_id"`
	RunID       string    `json:"run_id"`
	CostUSD     float64   `json:"cost_usd"`
	CompletedAt time.Time `json:"completed_at"`
}

// Summary is the cumulative cost state persisted across runs. A new
// run merges into the previous file contents; the cumulative total is
// explicit state, never recomputed from scratch.
type Summary struct {
	CumulativeCostUSD float64    `json:"cumulative_cost_usd"`
	TotalRuns         int        `json:"total_runs"`
	LastRun           *RunEntry  `json:"last_run,omitempty"`
	Runs              []RunEntry `json:"runs"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Store reads and updates the cumulative summary file. Updates are
// serialized with a sibling flock so concurrent runs of different
// books cannot clobber each other.
type Store struct {
	path string
}

// NewStore points at the cumulative summary file.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the current cumulative summary. A missing file yields an
// empty summary, not an error.
func (s *Store) Load() (Summary, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Summary{}, nil
	}
	if err != nil {
		return Summary{}, services.Wrap(services.ErrStorage, "cost", "load summary", "read cumulative file", err)
	}
	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return Summary{}, services.Wrap(services.ErrStorage, "cost", "load summary", "parse cumulative file", err)
	}
	return summary, nil
}

// Apply merges one completed run into the cumulative file and rewrites
// it atomically, returning the post-merge state.
func (s *Store) Apply(bookID, runID string, run RunSummary) (Summary, error) {
	lock := flock.New(s.path + ".lock")
	if err := lock.Lock(); err != nil {
		return Summary{}, services.Wrap(services.ErrStorage, "cost", "apply summary", "acquire lock", err)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	summary, err := s.Load()
	if err != nil {
		return Summary{}, err
	}

	entry := RunEntry{
		BookID:      bookID,
		RunID:       runID,
		CostUSD:     run.TotalCostUSD,
		CompletedAt: time.Now().UTC(),
	}
	summary.CumulativeCostUSD += run.TotalCostUSD
	summary.TotalRuns++
	summary.LastRun = &entry
	summary.Runs = append(summary.Runs, entry)
	summary.UpdatedAt = entry.CompletedAt

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return Summary{}, services.Wrap(services.ErrStorage, "cost", "apply summary", "encode cumulative file", err)
	}
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return Summary{}, services.Wrap(services.ErrStorage, "cost", "apply summary", "write cumulative file", err)
	}
	return summary, nil
}
