package scoring

import (
	"math"

	"github.com/coalops/minesafe/pkg/models"
)

// Apply folds a single event into the daily metrics aggregate and returns the
// updated value. The reducer is pure: it mutates nothing and touches only the
// counters named for the event type. Counters never decrease; the one derived
// field, checklistCompletionRate, is recomputed from the checklist counters
// after every event.
func Apply(m models.Metrics, eventType string, meta models.Metadata) models.Metrics {
	switch eventType {
	case models.EventAppLogin:
		m.LoginCount++

	case models.EventChecklistViewed:
		if total, ok := meta.Float("totalItems"); ok {
			m.TotalChecklistItems = int(total)
		}

	case models.EventChecklistItemCompleted:
		if done, _ := meta.Bool("completed"); done {
			m.ChecklistItemsCompleted++
		}
		if total, ok := meta.Float("totalItems"); ok {
			m.TotalChecklistItems = int(total)
		}

	case models.EventChecklistCompleted:
		m.ChecklistsCompleted++
		// force items to 100% of known items
		m.ChecklistItemsCompleted = m.TotalChecklistItems

	case models.EventPPEConfirmed:
		m.PPEChecksPassed++

	case models.EventPPESkipped:
		m.PPEChecksFailed++

	case models.EventVideoStarted:
		m.VideosStarted++

	case models.EventVideoProgress:
		m.VideoMilestones++
		if delta, ok := meta.Float("deltaSeconds"); ok {
			m.VideoWatchSeconds += delta
			m.EngagementMinutes += delta / 60
		}

	case models.EventVideoCompleted:
		m.VideosCompleted++
		if dur, ok := meta.Float("durationSeconds"); ok {
			m.VideoWatchSeconds += dur
			m.EngagementMinutes += dur / 60
		}

	case models.EventHazardReported:
		m.HazardsReported++

	case models.EventInstructionAcknowledged:
		m.Acknowledgements++

	case models.EventQuizCompleted:
		score, ok := meta.Float("score")
		if !ok {
			score = 0
		}
		avg := (m.QuizAverageScore*float64(m.QuizAttempts) + score) / float64(m.QuizAttempts+1)
		m.QuizAverageScore = math.Round(avg*100) / 100
		m.QuizAttempts++

	case models.EventNudgeAcknowledged:
		m.NudgesAcknowledged++

	default:
		// ingestion filters unknown types already; leave metrics untouched
	}

	m.ChecklistCompletionRate = checklistRate(m)
	return m
}

// checklistRate derives the completion percentage. Once non-zero it never
// resets to zero unless no checklist activity occurred at all today.
func checklistRate(m models.Metrics) int {
	if m.TotalChecklistItems > 0 {
		return int(math.Round(float64(m.ChecklistItemsCompleted) / float64(m.TotalChecklistItems) * 100))
	}
	if m.ChecklistsCompleted > 0 {
		return 100
	}
	return m.ChecklistCompletionRate
}
