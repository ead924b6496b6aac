// Package pipeline sequences a publication run through its stages and
// owns every piece of persisted run state.
//
// The Orchestrator executes content, cover, and assembly in fixed
// order. After each stage it sets the matching completion flag, prices
// the stage's backend usage into the run ledger, and replaces
// state.json atomically, so an interrupted run resumes from the last
// completed stage. A stage is skipped on resume only when its flag is
// set and its artifact still exists on disk; a state file that claims
// completion for a deleted artifact forces re-execution.
//
// Completion is terminal: resuming a completed run returns the existing
// manifest without invoking any backend. Running without resume
// reinitializes state and re-executes everything. Stage flags are
// monotonic within a run; the orchestrator never clears one.
//
// The run namespace belongs to a single orchestrator invocation at a
// time. Concurrent runs against the same book identifier are not
// supported; only the cross-run cost file outside the namespace is
// guarded by a lock.
package pipeline
