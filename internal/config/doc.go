// Package config loads and validates publication job files. TOML is the
// primary format; YAML job files are accepted by extension. A loaded Config
// is immutable for the duration of a run.
package config
