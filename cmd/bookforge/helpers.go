package main

import (
	"strings"

	"bookforge/internal/config"
)

// resolveOutputDir resolves the output root for the read-only commands.
// A job file argument wins; otherwise the --output flag value is used.
func resolveOutputDir(args []string, outputFlag string) (string, error) {
	if len(args) > 0 {
		cfg, err := config.Load(args[0])
		if err != nil {
			return "", err
		}
		return cfg.Output.Dir, nil
	}
	return strings.TrimSpace(outputFlag), nil
}
