package ollama_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"bookforge/internal/services"
	"bookforge/internal/services/ollama"
)

func TestGenerateRoundTrip(t *testing.T) {
	var gotModel, gotSystem string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotModel, _ = payload["model"].(string)
		gotSystem, _ = payload["system"].(string)
		if stream, ok := payload["stream"].(bool); !ok || stream {
			t.Errorf("expected stream=false, got %v", payload["stream"])
		}
		json.NewEncoder(w).Encode(map[string]any{"response": "generated text"})
	}))
	defer server.Close()

	client := ollama.NewClient("llama3.1", ollama.WithBaseURL(server.URL))
	out, err := client.Generate(context.Background(), "write something", "be helpful")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if out != "generated text" {
		t.Fatalf("unexpected output %q", out)
	}
	if gotModel != "llama3.1" {
		t.Fatalf("unexpected model %q", gotModel)
	}
	if gotSystem != "be helpful" {
		t.Fatalf("unexpected system prompt %q", gotSystem)
	}

	usage := client.Usage()
	if usage.InputTokens == 0 || usage.OutputTokens == 0 {
		t.Fatalf("expected usage estimates, got %+v", usage)
	}
}

func TestGenerateConnectionRefused(t *testing.T) {
	client := ollama.NewClient("llama3.1", ollama.WithBaseURL("http://127.0.0.1:1"))
	_, err := client.Generate(context.Background(), "prompt", "")
	if !errors.Is(err, services.ErrBackendConnection) {
		t.Fatalf("expected connection marker, got %v", err)
	}
}

func TestGenerateHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := ollama.NewClient("llama3.1", ollama.WithBaseURL(server.URL))
	_, err := client.Generate(context.Background(), "prompt", "")
	if !errors.Is(err, services.ErrBackendGeneration) {
		t.Fatalf("expected generation marker, got %v", err)
	}
}

func TestGenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error": "out of memory"})
	}))
	defer server.Close()

	client := ollama.NewClient("llama3.1", ollama.WithBaseURL(server.URL))
	_, err := client.Generate(context.Background(), "prompt", "")
	if !errors.Is(err, services.ErrBackendGeneration) {
		t.Fatalf("expected generation marker, got %v", err)
	}
}

func TestName(t *testing.T) {
	client := ollama.NewClient("llama3.1")
	if client.Name() != "ollama/llama3.1" {
		t.Fatalf("unexpected name %q", client.Name())
	}
}
