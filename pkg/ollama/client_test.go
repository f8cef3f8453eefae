package ollama_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/coalops/minesafe/internal/config"
	"github.com/coalops/minesafe/pkg/ollama"
)

func TestNewClientInvalidURL(t *testing.T) {
	cfg := config.OllamaConfig{BaseURL: "not a url", Timeout: time.Second}
	if _, err := ollama.NewClient(cfg, nil); err == nil {
		t.Fatalf("expected error for invalid base url")
	}
}

func TestCloseIdempotent(t *testing.T) {
	cfg := config.OllamaConfig{BaseURL: "http://localhost:11434", Timeout: time.Second}
	c, err := ollama.NewClient(cfg, &http.Client{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	var nilClient *ollama.Client
	if err := nilClient.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}
