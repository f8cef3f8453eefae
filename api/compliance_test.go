package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coalops/minesafe/api"
	"github.com/coalops/minesafe/pkg/models"
	"github.com/coalops/minesafe/pkg/repository/mock"
)

func newComplianceFixture(t *testing.T) (*mock.Store, *api.ComplianceHandler) {
	t.Helper()
	store := mock.NewStore()
	return store, api.NewComplianceHandler(store, store, store, store)
}

func TestTrendForCaller(t *testing.T) {
	store, h := newComplianceFixture(t)
	store.CreateUser(context.Background(), &models.User{Name: "A", Email: "a@x", Role: models.RoleEmployee})

	today := time.Now().UTC()
	for i := 0; i < 3; i++ {
		store.SeedSnapshot(&models.DailySnapshot{
			UserID:          1,
			SnapshotDate:    today.AddDate(0, 0, -i).Format(time.DateOnly),
			ComplianceScore: 80 - 10*i,
			RiskLevel:       models.RiskLow,
		})
	}

	rr := httptest.NewRecorder()
	h.Trend(rr, authedRequest(t, http.MethodGet, "/v1/compliance/trend?days=7", nil, 1, models.RoleEmployee))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		UserID int64 `json:"user_id"`
		Days   int   `json:"days"`
		Points []struct {
			Date            string `json:"date"`
			ComplianceScore int    `json:"complianceScore"`
			RiskLevel       string `json:"riskLevel"`
		} `json:"points"`
		Latest *models.DailySnapshot `json:"latest"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Days != 7 || len(resp.Points) != 3 {
		t.Fatalf("days=%d points=%d, want 7/3", resp.Days, len(resp.Points))
	}
	// ascending by date
	if resp.Points[0].Date > resp.Points[2].Date {
		t.Fatalf("points not ascending: %v", resp.Points)
	}
	if resp.Latest == nil || resp.Latest.SnapshotDate != today.Format(time.DateOnly) {
		t.Fatalf("latest = %+v", resp.Latest)
	}
}

func TestTrendUnknownUser404(t *testing.T) {
	_, h := newComplianceFixture(t)

	rr := httptest.NewRecorder()
	h.Trend(rr, authedRequest(t, http.MethodGet, "/v1/compliance/trend", nil, 1, models.RoleEmployee))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestTrendOtherUserForbidden(t *testing.T) {
	store, h := newComplianceFixture(t)
	store.CreateUser(context.Background(), &models.User{Name: "A", Email: "a@x", Role: models.RoleEmployee})
	store.CreateUser(context.Background(), &models.User{Name: "B", Email: "b@x", Role: models.RoleEmployee})

	rr := httptest.NewRecorder()
	h.Trend(rr, authedRequest(t, http.MethodGet, "/v1/compliance/trend?user_id=2", nil, 1, models.RoleEmployee))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
}

func TestOverview(t *testing.T) {
	store, h := newComplianceFixture(t)
	ctx := context.Background()
	store.CreateUser(ctx, &models.User{Name: "Ravi", Email: "r@x", Role: models.RoleEmployee})   // id 1
	store.CreateUser(ctx, &models.User{Name: "Meena", Email: "m@x", Role: models.RoleWorker})    // id 2
	store.CreateUser(ctx, &models.User{Name: "Idle", Email: "i@x", Role: models.RoleEmployee})   // id 3
	store.CreateUser(ctx, &models.User{Name: "Sup", Email: "s@x", Role: models.RoleSupervisor}) // id 4

	now := time.Now().UTC()
	today := now.Format(time.DateOnly)
	store.SeedSnapshot(&models.DailySnapshot{UserID: 1, SnapshotDate: today, ComplianceScore: 90, RiskLevel: models.RiskLow})
	store.SeedSnapshot(&models.DailySnapshot{UserID: 2, SnapshotDate: today, ComplianceScore: 40, RiskLevel: models.RiskHigh})

	// incident events in the last 24h, grouped by zone
	store.CreateEvent(ctx, &models.EngagementEvent{UserID: 2, Type: models.EventPPESkipped, Metadata: models.Metadata{"zone": "conveyor-1"}, OccurredAt: now.Add(-time.Hour).UnixMilli()})
	store.CreateEvent(ctx, &models.EngagementEvent{UserID: 1, Type: models.EventHazardReported, Metadata: models.Metadata{"zone": "conveyor-1"}, OccurredAt: now.Add(-2 * time.Hour).UnixMilli()})
	// too old to count
	store.CreateEvent(ctx, &models.EngagementEvent{UserID: 1, Type: models.EventHazardReported, Metadata: models.Metadata{"zone": "shaft-3"}, OccurredAt: now.Add(-48 * time.Hour).UnixMilli()})

	store.EnsureOpenAlert(ctx, &models.BehaviorAlert{UserID: 2, SnapshotDate: today, Type: models.AlertLowCompliance, Severity: models.SeverityHigh, Status: models.AlertOpen})

	rr := httptest.NewRecorder()
	h.Overview(rr, authedRequest(t, http.MethodGet, "/v1/compliance/overview", nil, 4, models.RoleSupervisor))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		AverageCompliance int `json:"averageCompliance"`
		HighRiskCount     int `json:"highRiskCount"`
		LowRiskCount      int `json:"lowRiskCount"`
		InactiveCount     int `json:"inactiveCount"`
		EmployeeCount     int `json:"employeeCount"`
		TopCompliant      []struct {
			Name            string `json:"name"`
			ComplianceScore int    `json:"complianceScore"`
		} `json:"topCompliant"`
		TopAtRisk []struct {
			Name string `json:"name"`
		} `json:"topAtRisk"`
		IncidentHeatmap []struct {
			Zone     string `json:"zone"`
			Hazards  int    `json:"hazards"`
			PPEFails int    `json:"ppeFails"`
		} `json:"incidentHeatmap"`
		OpenAlerts []models.BehaviorAlert `json:"openAlerts"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.EmployeeCount != 3 {
		t.Fatalf("employeeCount = %d, want 3 (worker alias included)", resp.EmployeeCount)
	}
	if resp.AverageCompliance != 65 {
		t.Fatalf("averageCompliance = %d, want 65", resp.AverageCompliance)
	}
	if resp.HighRiskCount != 1 || resp.LowRiskCount != 1 {
		t.Fatalf("risk counts = %d/%d, want 1/1", resp.HighRiskCount, resp.LowRiskCount)
	}
	if resp.InactiveCount != 1 {
		t.Fatalf("inactiveCount = %d, want 1 (the idle employee)", resp.InactiveCount)
	}
	if len(resp.TopCompliant) == 0 || resp.TopCompliant[0].Name != "Ravi" {
		t.Fatalf("topCompliant = %+v", resp.TopCompliant)
	}
	if len(resp.TopAtRisk) == 0 || resp.TopAtRisk[0].Name != "Meena" {
		t.Fatalf("topAtRisk = %+v", resp.TopAtRisk)
	}
	if len(resp.IncidentHeatmap) != 1 {
		t.Fatalf("heatmap = %+v, want one zone within 24h", resp.IncidentHeatmap)
	}
	cell := resp.IncidentHeatmap[0]
	if cell.Zone != "conveyor-1" || cell.Hazards != 1 || cell.PPEFails != 1 {
		t.Fatalf("cell = %+v", cell)
	}
	if len(resp.OpenAlerts) != 1 {
		t.Fatalf("openAlerts = %d, want 1", len(resp.OpenAlerts))
	}
}
