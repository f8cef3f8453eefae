package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/coalops/minesafe/pkg/models"
	"github.com/coalops/minesafe/pkg/repository"
)

// Predictor is the stateless forward-looking risk heuristic. It reads
// snapshots only and never writes.
type Predictor struct {
	snapshots repository.SnapshotRepo
}

func NewPredictor(sr repository.SnapshotRepo) *Predictor {
	return &Predictor{snapshots: sr}
}

// Prediction is the predictor's output, including the explanation fields that
// make the forecast auditable.
type Prediction struct {
	RiskScore   int         `json:"riskScore"`
	RiskLevel   string      `json:"riskLevel"`
	Confidence  int         `json:"confidence"`
	Suggestions []string    `json:"suggestions"`
	Explanation Explanation `json:"explanation"`
}

type Explanation struct {
	BaselineCompliance  int     `json:"baselineCompliance"`
	TrendDelta          int     `json:"trendDelta"`
	PredictedCompliance float64 `json:"predictedCompliance"`
	FeaturesPresent     int     `json:"featuresPresent"`
}

// candidate fields counted by the presence-based confidence heuristic, in
// fixed order.
var confidenceFields = []string{
	"checklistCompletionRate",
	"engagementMinutes",
	"hazardsReported",
	"quizAverageScore",
	"ppeChecksFailed",
}

const (
	improvingTrendFactor = 0.4
	// a worsening trend is extrapolated three times more aggressively than
	// an improving one: bias toward flagging decline early
	worseningTrendFactor = 1.2
)

// PredictForUser forecasts from the user's most recent snapshot, using the
// immediately preceding day for the trend. Returns repository.ErrNotFound when
// the user has no snapshots at all.
func (p *Predictor) PredictForUser(ctx context.Context, userID int64) (*Prediction, error) {
	latest, err := p.snapshots.GetLatestSnapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("latest snapshot for user %d: %w", userID, err)
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}

	baseline := ComputeScore(latest.Metrics)

	trendDelta := 0
	prev, err := p.snapshots.GetSnapshotBefore(ctx, userID, latest.SnapshotDate)
	if err != nil {
		return nil, fmt.Errorf("previous snapshot for user %d: %w", userID, err)
	}
	if prev != nil {
		prevScore := prev.ComplianceScore
		if prevScore == 0 {
			prevScore = ComputeScore(prev.Metrics)
		}
		trendDelta = baseline - prevScore
	}

	return p.forecast(latest.Metrics, baseline, trendDelta, metricsPresence(latest.Metrics)), nil
}

// PredictFromMetrics forecasts from a caller-supplied hypothetical metrics
// object; nothing is read from storage and the trend delta is zero. The raw
// map is kept so the confidence heuristic can see which fields the caller
// actually provided.
func (p *Predictor) PredictFromMetrics(raw models.Metadata) (*Prediction, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode metrics: %w", err)
	}
	var m models.Metrics
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode metrics: %w", err)
	}

	present := 0
	for _, f := range confidenceFields {
		if v, ok := raw[f]; ok && v != nil {
			present++
		}
	}

	return p.forecast(m, ComputeScore(m), 0, present), nil
}

func (p *Predictor) forecast(m models.Metrics, baseline, trendDelta, featuresPresent int) *Prediction {
	factor := improvingTrendFactor
	if trendDelta < 0 {
		factor = worseningTrendFactor
	}
	predicted := clamp(float64(baseline)+float64(trendDelta)*factor, 0, 100)

	confidence := 50 + 9*featuresPresent
	if confidence > 95 {
		confidence = 95
	}

	// risk band compares the raw forecast, not the rounded score
	level := models.RiskHigh
	switch {
	case predicted >= StreakThreshold:
		level = models.RiskLow
	case predicted >= 60:
		level = models.RiskMedium
	}

	return &Prediction{
		RiskScore:   int(math.Round(100 - predicted)),
		RiskLevel:   level,
		Confidence:  confidence,
		Suggestions: suggestions(m),
		Explanation: Explanation{
			BaselineCompliance:  baseline,
			TrendDelta:          trendDelta,
			PredictedCompliance: predicted,
			FeaturesPresent:     featuresPresent,
		},
	}
}

// metricsPresence: a fully materialized snapshot aggregate carries every
// candidate field.
func metricsPresence(models.Metrics) int {
	return len(confidenceFields)
}

// suggestions appends a fixed-text recommendation per firing condition, in
// fixed order.
func suggestions(m models.Metrics) []string {
	out := []string{}
	if m.ChecklistCompletionRate < 80 {
		out = append(out, "Complete today's safety checklists to raise your compliance score.")
	}
	if m.EngagementMinutes < 10 {
		out = append(out, "Watch safety training videos; aim for at least 10 engaged minutes per shift.")
	}
	if m.PPEChecksFailed > 0 {
		out = append(out, "Confirm personal protective equipment before every entry; skipped checks were recorded.")
	}
	if m.HazardsReported == 0 {
		out = append(out, "Report hazards and near-misses you notice, even minor ones.")
	}
	return out
}
