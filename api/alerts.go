package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/coalops/minesafe/internal/scoring"
	"github.com/coalops/minesafe/pkg/models"
	"github.com/coalops/minesafe/pkg/repository"
	"github.com/gorilla/mux"
)

type AlertsHandler struct {
	alertRepo repository.AlertRepo
	issuer    *scoring.Issuer
}

func NewAlertsHandler(ar repository.AlertRepo, issuer *scoring.Issuer) *AlertsHandler {
	return &AlertsHandler{alertRepo: ar, issuer: issuer}
}

// ListAlerts returns behavior alerts, newest first. Employees see only their
// own alerts; supervisory roles may filter by user_id or see all.
func (h *AlertsHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	callerID, role := callerIdentity(r)
	if callerID <= 0 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()

	status := q.Get("status")
	if status != "" && status != models.AlertOpen && status != models.AlertAcknowledged {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}

	var userID int64
	if models.IsSupervisory(role) {
		if s := q.Get("user_id"); s != "" {
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil || v <= 0 {
				http.Error(w, "invalid user_id", http.StatusBadRequest)
				return
			}
			userID = v
		}
	} else {
		userID = callerID
	}

	limit := 0
	if l := q.Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}

	alerts, err := h.alertRepo.ListAlerts(r.Context(), status, userID, limit)
	if err != nil {
		http.Error(w, "failed to list alerts", http.StatusInternalServerError)
		return
	}
	if alerts == nil {
		alerts = []models.BehaviorAlert{}
	}

	writeJSON(w, map[string]any{"items": alerts}, http.StatusOK)
}

// AcknowledgeAlert transitions an open alert to acknowledged. Acknowledging an
// already-acknowledged alert returns it unchanged.
func (h *AlertsHandler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid alert id", http.StatusBadRequest)
		return
	}

	alert, err := h.issuer.Acknowledge(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "alert not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to acknowledge alert", http.StatusInternalServerError)
		return
	}

	writeJSON(w, alert, http.StatusOK)
}
