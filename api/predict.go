package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coalops/minesafe/internal/advice"
	"github.com/coalops/minesafe/internal/scoring"
	"github.com/coalops/minesafe/pkg/models"
	"github.com/coalops/minesafe/pkg/repository"
)

type PredictHandler struct {
	predictor *scoring.Predictor
	advisor   *advice.Advisor
}

// NewPredictHandler builds the predict endpoint handler. advisor may be nil;
// the coaching field is then omitted from responses.
func NewPredictHandler(p *scoring.Predictor, advisor *advice.Advisor) *PredictHandler {
	return &PredictHandler{predictor: p, advisor: advisor}
}

type predictRequest struct {
	UserID  int64           `json:"user_id,omitempty"`
	Metrics models.Metadata `json:"metrics,omitempty"`
}

// Predict forecasts compliance risk. With a metrics object the forecast is
// hypothetical and storage is never read; otherwise it runs against the target
// user's latest snapshot. Employees may only predict for themselves.
func (h *PredictHandler) Predict(w http.ResponseWriter, r *http.Request) {
	callerID, role := callerIdentity(r)
	if callerID <= 0 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	var (
		pred *scoring.Prediction
		err  error
	)
	switch {
	case req.Metrics != nil:
		pred, err = h.predictor.PredictFromMetrics(req.Metrics)
		if err != nil {
			http.Error(w, "invalid metrics", http.StatusBadRequest)
			return
		}
	default:
		userID := req.UserID
		if userID == 0 {
			userID = callerID
		}
		if userID != callerID && !models.IsSupervisory(role) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		pred, err = h.predictor.PredictForUser(r.Context(), userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				http.Error(w, "no snapshots for user", http.StatusNotFound)
				return
			}
			http.Error(w, "failed to predict", http.StatusInternalServerError)
			return
		}
	}

	resp := map[string]any{
		"riskScore":   pred.RiskScore,
		"riskLevel":   pred.RiskLevel,
		"confidence":  pred.Confidence,
		"suggestions": pred.Suggestions,
		"explanation": pred.Explanation,
	}

	if h.advisor != nil {
		if coaching, err := h.advisor.Coach(r.Context(), pred); err != nil {
			logger.Warn("coaching advisor unavailable", "err", err)
		} else if coaching != "" {
			resp["coaching"] = coaching
		}
	}

	writeJSON(w, resp, http.StatusOK)
}
