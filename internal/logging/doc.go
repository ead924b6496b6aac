// Package logging wraps log/slog with the handlers and attribute helpers used
// across bookforge: a console handler for interactive runs, a JSON handler for
// machine consumption, standardized field keys, and context helpers that stamp
// run and stage identifiers onto every record emitted inside a pipeline run.
package logging
