package advice

import (
	"context"
	"fmt"
	"strings"

	"log/slog"

	"github.com/coalops/minesafe/internal/config"
	"github.com/coalops/minesafe/internal/scoring"
	"github.com/coalops/minesafe/pkg/ollama"
)

// promptTemplate turns a risk prediction into a short worker-facing coaching
// note. The fixed-text suggestions remain the source of truth; the model only
// rephrases them.
const promptTemplate = `You are a mine-safety coach. A worker's predicted compliance risk is {{.RiskLevel}} (risk score {{.RiskScore}}/100).
Recommendations for them:
{{range .Suggestions}}- {{.}}
{{end}}
Write two or three encouraging sentences, in plain language, telling the worker what to do next shift. Do not mention scores or risk levels.`

// Advisor renders predictor output through a local LLM. Optional: when not
// configured the predict endpoint simply omits the coaching text.
type Advisor struct {
	client *ollama.Client
	cfg    config.AdvisorConfig
	logger *slog.Logger
}

func New(client *ollama.Client, cfg config.AdvisorConfig, logger *slog.Logger) *Advisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Advisor{client: client, cfg: cfg, logger: logger}
}

// Coach produces a coaching paragraph for a prediction. Errors are expected to
// be swallowed by the caller; coaching is best-effort decoration.
func (a *Advisor) Coach(ctx context.Context, pred *scoring.Prediction) (string, error) {
	if pred == nil {
		return "", fmt.Errorf("prediction is required")
	}
	if len(pred.Suggestions) == 0 {
		return "", nil
	}

	prompt, err := ollama.RenderTemplate(promptTemplate, pred)
	if err != nil {
		return "", fmt.Errorf("render coaching prompt: %w", err)
	}

	ctxReq, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	out, err := a.client.Generate(ctxReq, a.cfg.Model, prompt)
	if err != nil {
		return "", fmt.Errorf("generate coaching text: %w", err)
	}
	return strings.TrimSpace(out), nil
}
