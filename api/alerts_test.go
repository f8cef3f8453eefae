package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/coalops/minesafe/api"
	"github.com/coalops/minesafe/internal/scoring"
	"github.com/coalops/minesafe/pkg/models"
	"github.com/coalops/minesafe/pkg/repository/mock"
	"github.com/gorilla/mux"
)

func newAlertsFixture(t *testing.T) (*mock.Store, *api.AlertsHandler) {
	t.Helper()
	store := mock.NewStore()
	return store, api.NewAlertsHandler(store, scoring.NewIssuer(store))
}

func seedAlert(t *testing.T, store *mock.Store, userID int64, typ string) *models.BehaviorAlert {
	t.Helper()
	a, err := store.EnsureOpenAlert(context.Background(), &models.BehaviorAlert{
		UserID: userID, SnapshotDate: "2026-09-01", Type: typ,
		Severity: models.SeverityMedium, Status: models.AlertOpen,
	})
	if err != nil {
		t.Fatalf("seed alert: %v", err)
	}
	return a
}

func TestListAlertsScopedToEmployee(t *testing.T) {
	store, h := newAlertsFixture(t)
	seedAlert(t, store, 1, models.AlertLowCompliance)
	seedAlert(t, store, 2, models.AlertLowCompliance)

	rr := httptest.NewRecorder()
	h.ListAlerts(rr, authedRequest(t, http.MethodGet, "/v1/alerts?user_id=2", nil, 1, models.RoleEmployee))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Items []models.BehaviorAlert `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	// the user_id filter is ignored for employees; they always get their own
	if len(resp.Items) != 1 || resp.Items[0].UserID != 1 {
		t.Fatalf("items = %+v, want only user 1's alert", resp.Items)
	}
}

func TestListAlertsSupervisorSeesAll(t *testing.T) {
	store, h := newAlertsFixture(t)
	seedAlert(t, store, 1, models.AlertLowCompliance)
	seedAlert(t, store, 2, models.AlertPPENonCompliance)

	rr := httptest.NewRecorder()
	h.ListAlerts(rr, authedRequest(t, http.MethodGet, "/v1/alerts", nil, 9, models.RoleSupervisor))

	var resp struct {
		Items []models.BehaviorAlert `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(resp.Items))
	}
}

func ackRequest(t *testing.T, h *api.AlertsHandler, id string, userID int64, role string) *httptest.ResponseRecorder {
	t.Helper()
	req := authedRequest(t, http.MethodPost, "/v1/alerts/"+id+"/acknowledge", nil, userID, role)
	req = mux.SetURLVars(req, map[string]string{"id": id})
	rr := httptest.NewRecorder()
	h.AcknowledgeAlert(rr, req)
	return rr
}

func TestAcknowledgeAlertEndpoint(t *testing.T) {
	store, h := newAlertsFixture(t)
	a := seedAlert(t, store, 1, models.AlertLowCompliance)

	rr := ackRequest(t, h, "1", 9, models.RoleSupervisor)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var got models.BehaviorAlert
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != a.ID || got.Status != models.AlertAcknowledged || got.AcknowledgedAt == nil {
		t.Fatalf("acknowledged alert = %+v", got)
	}
}

func TestAcknowledgeMissingAlert(t *testing.T) {
	_, h := newAlertsFixture(t)

	rr := ackRequest(t, h, "42", 9, models.RoleSupervisor)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestAcknowledgeBadID(t *testing.T) {
	_, h := newAlertsFixture(t)

	rr := ackRequest(t, h, "abc", 9, models.RoleSupervisor)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}
