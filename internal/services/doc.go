// Package services defines shared utilities consumed by the pipeline stages
// and the generation backend clients.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     (configuration vs credential vs backend vs storage) and drive both the
//     stage retry policy and the CLI exit status.
//
// Use these helpers when wiring new stage logic so operational behaviour stays
// uniform across the pipeline.
package services
