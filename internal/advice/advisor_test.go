package advice_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coalops/minesafe/internal/advice"
	"github.com/coalops/minesafe/internal/config"
	"github.com/coalops/minesafe/internal/scoring"
	"github.com/coalops/minesafe/pkg/ollama"
)

func coachingServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":` + `"` + reply + `","done":true}` + "\n"))
	}))
}

func newAdvisor(t *testing.T, baseURL string) (*advice.Advisor, *ollama.Client) {
	t.Helper()
	client, err := ollama.NewClient(config.OllamaConfig{
		BaseURL:                 baseURL,
		Timeout:                 2 * time.Second,
		CircuitFailureThreshold: 5,
	}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	cfg := config.AdvisorConfig{Enabled: true, Model: "llama3", Timeout: 2 * time.Second}
	return advice.New(client, cfg, nil), client
}

func TestCoachRendersPrediction(t *testing.T) {
	srv := coachingServer(t, "Complete your checklist before heading down. ")
	defer srv.Close()

	advisor, client := newAdvisor(t, srv.URL)
	defer client.Close()

	pred := &scoring.Prediction{
		RiskScore:   54,
		RiskLevel:   "high",
		Suggestions: []string{"Complete your daily safety checklists."},
	}
	out, err := advisor.Coach(context.Background(), pred)
	if err != nil {
		t.Fatalf("Coach: %v", err)
	}
	if out != "Complete your checklist before heading down." {
		t.Fatalf("coaching = %q; want trimmed reply", out)
	}
}

func TestCoachNoSuggestionsNoCall(t *testing.T) {
	// server that fails the test if contacted
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("model called for a prediction without suggestions")
		http.Error(w, "unexpected", http.StatusInternalServerError)
	}))
	defer srv.Close()

	advisor, client := newAdvisor(t, srv.URL)
	defer client.Close()

	out, err := advisor.Coach(context.Background(), &scoring.Prediction{RiskLevel: "low"})
	if err != nil {
		t.Fatalf("Coach: %v", err)
	}
	if out != "" {
		t.Fatalf("expected empty coaching, got %q", out)
	}
}

func TestCoachNilPrediction(t *testing.T) {
	advisor := advice.New(nil, config.AdvisorConfig{}, nil)
	if _, err := advisor.Coach(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil prediction")
	}
}
