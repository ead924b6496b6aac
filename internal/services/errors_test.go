package services_test

import (
	"errors"
	"strings"
	"testing"

	"bookforge/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrBackendConnection, "content", "generate chapter", "request failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrBackendConnection) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"content", "generate chapter", "request failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "cover", "render", "unexpected", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection", services.Wrap(services.ErrBackendConnection, "content", "post", "refused", nil), true},
		{"generation", services.Wrap(services.ErrBackendGeneration, "content", "decode", "bad payload", nil), true},
		{"transient", services.Wrap(services.ErrTransient, "content", "", "", nil), true},
		{"configuration", services.Wrap(services.ErrConfiguration, "", "load", "missing field", nil), false},
		{"credential", services.Wrap(services.ErrCredential, "", "", "no api key", nil), false},
		{"storage", services.Wrap(services.ErrStorage, "assembly", "write", "disk full", nil), false},
	}
	for _, tc := range cases {
		if got := services.Retryable(tc.err); got != tc.want {
			t.Errorf("%s: Retryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestExitCodeMapping(t *testing.T) {
	if code := services.ExitCode(nil); code != services.ExitOK {
		t.Fatalf("expected 0 for nil error, got %d", code)
	}
	configErr := services.Wrap(services.ErrConfiguration, "", "validate", "title required", nil)
	if code := services.ExitCode(configErr); code != services.ExitConfiguration {
		t.Fatalf("expected configuration exit code, got %d", code)
	}
	credErr := services.Wrap(services.ErrCredential, "", "", "ANTHROPIC_API_KEY not set", nil)
	if code := services.ExitCode(credErr); code != services.ExitConfiguration {
		t.Fatalf("expected configuration exit code for credential error, got %d", code)
	}
	stageErr := services.Wrap(services.ErrBackendGeneration, "cover", "generate", "exhausted retries", nil)
	if code := services.ExitCode(stageErr); code != services.ExitStageFailure {
		t.Fatalf("expected stage failure exit code, got %d", code)
	}
	if code := services.ExitCode(errors.New("unclassified")); code != services.ExitFailure {
		t.Fatalf("expected generic failure exit code, got %d", code)
	}
}
