package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration     = errors.New("configuration error")
	ErrCredential        = errors.New("credential error")
	ErrValidation        = errors.New("validation error")
	ErrBackendConnection = errors.New("backend connection error")
	ErrBackendGeneration = errors.New("backend generation error")
	ErrStorage           = errors.New("storage error")
	ErrTransient         = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether an error should be retried by a stage's bounded
// backoff loop. Connection and transient failures are retryable; everything
// else (configuration, credential, validation, storage) is permanent.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrBackendConnection), errors.Is(err, ErrTransient):
		return true
	case errors.Is(err, ErrBackendGeneration):
		// Malformed payloads and 5xx responses are worth another attempt;
		// the attempt ceiling keeps this bounded either way.
		return true
	default:
		return false
	}
}

// Exit codes reported by the command surface.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitConfiguration = 2
	ExitStageFailure  = 3
)

// ExitCode maps an error to the process exit status the CLI reports, so
// callers can distinguish validation failures from stage failures.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrCredential), errors.Is(err, ErrValidation):
		return ExitConfiguration
	case errors.Is(err, ErrBackendConnection), errors.Is(err, ErrBackendGeneration), errors.Is(err, ErrStorage):
		return ExitStageFailure
	default:
		return ExitFailure
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
