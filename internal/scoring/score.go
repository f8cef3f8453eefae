package scoring

import (
	"math"

	"github.com/coalops/minesafe/pkg/models"
)

// Score weights. Checklists dominate because they are the primary daily duty;
// 20 engaged minutes of training video or 10 hazard reports max out their
// components.
const (
	weightChecklist = 0.40
	weightVideo     = 0.25
	weightHazard    = 0.15
	weightQuiz      = 0.20

	// StreakThreshold is the minimum compliance score for a day to count
	// toward the consecutive-day streak.
	StreakThreshold = 80
)

// ComputeScore recomputes the 0-100 compliance score from the full metrics
// aggregate. It is a pure function of its input: the same metrics always yield
// the same score.
func ComputeScore(m models.Metrics) int {
	checklist := float64(m.ChecklistCompletionRate)
	if m.ChecklistsCompleted > 0 && checklist == 0 {
		checklist = 100
	}
	video := clamp(m.EngagementMinutes*5, 0, 100)
	hazard := clamp(float64(m.HazardsReported)*10, 0, 100)
	quiz := clamp(m.QuizAverageScore, 0, 100)

	score := weightChecklist*checklist + weightVideo*video + weightHazard*hazard + weightQuiz*quiz
	return int(math.Round(score))
}

// RiskLevelFor maps a compliance score to its risk band: high below 60,
// medium below 80, low otherwise.
func RiskLevelFor(score int) string {
	switch {
	case score < 60:
		return models.RiskHigh
	case score < StreakThreshold:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
