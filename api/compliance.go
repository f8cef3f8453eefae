package api

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/coalops/minesafe/internal/scoring"
	"github.com/coalops/minesafe/pkg/models"
	"github.com/coalops/minesafe/pkg/repository"
)

type ComplianceHandler struct {
	userRepo     repository.UserRepo
	eventRepo    repository.EventRepo
	snapshotRepo repository.SnapshotRepo
	alertRepo    repository.AlertRepo
}

func NewComplianceHandler(ur repository.UserRepo, er repository.EventRepo, sr repository.SnapshotRepo, ar repository.AlertRepo) *ComplianceHandler {
	return &ComplianceHandler{userRepo: ur, eventRepo: er, snapshotRepo: sr, alertRepo: ar}
}

type trendPoint struct {
	Date            string `json:"date"`
	ComplianceScore int    `json:"complianceScore"`
	RiskLevel       string `json:"riskLevel"`
}

// Trend returns a user's compliance score series for the last N days plus
// their most recent snapshot. Employees may only read their own trend.
func (h *ComplianceHandler) Trend(w http.ResponseWriter, r *http.Request) {
	callerID, role := callerIdentity(r)
	if callerID <= 0 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	userID := callerID
	if s := q.Get("user_id"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v <= 0 {
			http.Error(w, "invalid user_id", http.StatusBadRequest)
			return
		}
		if v != callerID && !models.IsSupervisory(role) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		userID = v
	}

	days := 7
	if d := q.Get("days"); d != "" {
		if v, err := strconv.Atoi(d); err == nil && v > 0 && v <= 90 {
			days = v
		}
	}

	ctx := r.Context()

	user, err := h.userRepo.GetByID(ctx, userID)
	if err != nil {
		http.Error(w, "failed to load user", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -(days - 1)).Format(time.DateOnly)
	to := now.Format(time.DateOnly)

	snaps, err := h.snapshotRepo.ListUserSnapshots(ctx, userID, from, to)
	if err != nil {
		http.Error(w, "failed to load snapshots", http.StatusInternalServerError)
		return
	}

	points := make([]trendPoint, 0, len(snaps))
	for _, s := range snaps {
		points = append(points, trendPoint{
			Date:            s.SnapshotDate,
			ComplianceScore: s.ComplianceScore,
			RiskLevel:       s.RiskLevel,
		})
	}

	latest, err := h.snapshotRepo.GetLatestSnapshot(ctx, userID)
	if err != nil {
		http.Error(w, "failed to load latest snapshot", http.StatusInternalServerError)
		return
	}

	resp := map[string]any{
		"user_id": userID,
		"days":    days,
		"points":  points,
	}
	if latest != nil {
		resp["latest"] = latest
	}

	writeJSON(w, resp, http.StatusOK)
}

type rankedUser struct {
	UserID          int64  `json:"user_id"`
	Name            string `json:"name"`
	ComplianceScore int    `json:"complianceScore"`
	RiskLevel       string `json:"riskLevel"`
}

type heatmapCell struct {
	Zone     string `json:"zone"`
	Hazards  int    `json:"hazards"`
	PPEFails int    `json:"ppeFails"`
}

// Overview is the supervisor dashboard aggregate: today's workforce-wide
// posture, a 7 day trend, compliance rankings, an incident heatmap over the
// last 24 hours, and the open alert queue.
func (h *ComplianceHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	employees, err := h.userRepo.ListByRole(ctx, models.RoleEmployee)
	if err != nil {
		http.Error(w, "failed to list employees", http.StatusInternalServerError)
		return
	}
	names := make(map[int64]string, len(employees))
	for _, u := range employees {
		names[u.ID] = u.Name
	}

	now := time.Now().UTC()
	today := now.Format(time.DateOnly)

	snaps, err := h.snapshotRepo.ListSnapshotsByDate(ctx, today)
	if err != nil {
		http.Error(w, "failed to load snapshots", http.StatusInternalServerError)
		return
	}

	var scoreSum, highRisk, lowRisk int
	active := make(map[int64]bool, len(snaps))
	ranked := make([]rankedUser, 0, len(snaps))
	for _, s := range snaps {
		active[s.UserID] = true
		scoreSum += s.ComplianceScore
		switch s.RiskLevel {
		case models.RiskHigh:
			highRisk++
		case models.RiskLow:
			lowRisk++
		}
		name, ok := names[s.UserID]
		if !ok {
			// snapshot for a non-employee row, skip from rankings
			continue
		}
		ranked = append(ranked, rankedUser{
			UserID:          s.UserID,
			Name:            name,
			ComplianceScore: s.ComplianceScore,
			RiskLevel:       s.RiskLevel,
		})
	}

	avgScore := 0
	if len(snaps) > 0 {
		avgScore = scoreSum / len(snaps)
	}

	inactive := 0
	for _, u := range employees {
		if !active[u.ID] {
			inactive++
		}
	}

	sort.Slice(ranked, func(i, j int) bool { return ranked[i].ComplianceScore > ranked[j].ComplianceScore })
	topCompliant := ranked
	if len(topCompliant) > 5 {
		topCompliant = topCompliant[:5]
	}
	atRisk := make([]rankedUser, len(ranked))
	copy(atRisk, ranked)
	sort.Slice(atRisk, func(i, j int) bool { return atRisk[i].ComplianceScore < atRisk[j].ComplianceScore })
	if len(atRisk) > 5 {
		atRisk = atRisk[:5]
	}

	from := now.AddDate(0, 0, -6).Format(time.DateOnly)
	trend, err := h.trendAllUsers(r, from, today)
	if err != nil {
		http.Error(w, "failed to load trend", http.StatusInternalServerError)
		return
	}

	heatmap, err := h.incidentHeatmap(r, now.Add(-24*time.Hour).UnixMilli())
	if err != nil {
		http.Error(w, "failed to load incidents", http.StatusInternalServerError)
		return
	}

	alerts, err := h.alertRepo.ListAlerts(ctx, models.AlertOpen, 0, 20)
	if err != nil {
		http.Error(w, "failed to load alerts", http.StatusInternalServerError)
		return
	}
	if alerts == nil {
		alerts = []models.BehaviorAlert{}
	}

	resp := map[string]any{
		"date":               today,
		"averageCompliance":  avgScore,
		"highRiskCount":      highRisk,
		"lowRiskCount":       lowRisk,
		"inactiveCount":      inactive,
		"trend":              trend,
		"topCompliant":       topCompliant,
		"topAtRisk":          atRisk,
		"incidentHeatmap":    heatmap,
		"openAlerts":         alerts,
		"employeeCount":      len(employees),
		"snapshotCountToday": len(snaps),
	}

	writeJSON(w, resp, http.StatusOK)
}

// trendAllUsers averages every employee snapshot per day over the range.
func (h *ComplianceHandler) trendAllUsers(r *http.Request, from, to string) ([]trendPoint, error) {
	snaps, err := h.snapshotRepo.ListSnapshotsRange(r.Context(), from, to)
	if err != nil {
		return nil, err
	}

	sums := map[string]int{}
	counts := map[string]int{}
	for _, s := range snaps {
		sums[s.SnapshotDate] += s.ComplianceScore
		counts[s.SnapshotDate]++
	}

	dates := make([]string, 0, len(sums))
	for d := range sums {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	points := make([]trendPoint, 0, len(dates))
	for _, d := range dates {
		avg := sums[d] / counts[d]
		points = append(points, trendPoint{
			Date:            d,
			ComplianceScore: avg,
			RiskLevel:       scoring.RiskLevelFor(avg),
		})
	}
	return points, nil
}

// incidentHeatmap groups hazard reports and skipped PPE checks from the last
// 24 hours by the zone recorded in event metadata.
func (h *ComplianceHandler) incidentHeatmap(r *http.Request, since int64) ([]heatmapCell, error) {
	events, err := h.eventRepo.ListByTypesSince(r.Context(),
		[]string{models.EventHazardReported, models.EventPPESkipped}, since)
	if err != nil {
		return nil, err
	}

	cells := map[string]*heatmapCell{}
	for _, e := range events {
		zone, ok := e.Metadata.String("zone")
		if !ok || zone == "" {
			zone = "unknown"
		}
		c := cells[zone]
		if c == nil {
			c = &heatmapCell{Zone: zone}
			cells[zone] = c
		}
		switch e.Type {
		case models.EventHazardReported:
			c.Hazards++
		case models.EventPPESkipped:
			c.PPEFails++
		}
	}

	zones := make([]string, 0, len(cells))
	for z := range cells {
		zones = append(zones, z)
	}
	sort.Strings(zones)

	out := make([]heatmapCell, 0, len(zones))
	for _, z := range zones {
		out = append(out, *cells[z])
	}
	return out, nil
}
