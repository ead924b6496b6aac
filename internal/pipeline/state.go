package pipeline

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"time"

	"bookforge/internal/cost"
	"bookforge/internal/fileutil"
	"bookforge/internal/services"
)

// State is the persisted progress of one run. Stage flags are
// monotonic: the orchestrator sets them on stage success and never
// clears them within a run. The file on disk is replaced atomically so
// a resuming run only ever observes a complete write.
type State struct {
	BookID       string          `json:"book_id"`
	ContentDone  bool            `json:"content_done"`
	CoverDone    bool            `json:"cover_done"`
	AssemblyDone bool            `json:"assembly_done"`
	Completed    bool            `json:"completed"`
	FailedStage  string          `json:"failed_stage,omitempty"`
	LastError    string          `json:"last_error,omitempty"`
	Cost         cost.RunSummary `json:"cost"`
	StartedAt    time.Time       `json:"started_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewState initializes fresh run state with all flags false.
func NewState(bookID string) *State {
	now := time.Now().UTC()
	return &State{BookID: bookID, StartedAt: now, UpdatedAt: now}
}

// LoadState reads persisted run state. A missing file returns
// (nil, nil) so callers can distinguish "no prior run" from a real
// storage failure.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "", "load state", "read state file", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, services.Wrap(services.ErrStorage, "", "load state", "parse state file", err)
	}
	return &state, nil
}

// Save persists the state with an atomic replace.
func (s *State) Save(path string) error {
	s.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrStorage, "", "save state", "encode state", err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return services.Wrap(services.ErrStorage, "", "save state", "write state file", err)
	}
	return nil
}
