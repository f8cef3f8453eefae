package models

// Recognized engagement event types. Ingestion rejects anything outside this
// vocabulary before persisting.
const (
	EventAppLogin                = "app_login"
	EventAppLogout               = "app_logout"
	EventChecklistViewed         = "checklist_viewed"
	EventChecklistItemCompleted  = "checklist_item_completed"
	EventChecklistCompleted      = "checklist_completed"
	EventPPEConfirmed            = "ppe_confirmed"
	EventPPESkipped              = "ppe_skipped"
	EventVideoStarted            = "video_started"
	EventVideoProgress           = "video_progress"
	EventVideoCompleted          = "video_completed"
	EventHazardReported          = "hazard_reported"
	EventInstructionAcknowledged = "instruction_acknowledged"
	EventQuizCompleted           = "quiz_completed"
	EventNudgeAcknowledged       = "nudge_acknowledged"
)

var eventTypes = map[string]struct{}{
	EventAppLogin:                {},
	EventAppLogout:               {},
	EventChecklistViewed:         {},
	EventChecklistItemCompleted:  {},
	EventChecklistCompleted:      {},
	EventPPEConfirmed:            {},
	EventPPESkipped:              {},
	EventVideoStarted:            {},
	EventVideoProgress:           {},
	EventVideoCompleted:          {},
	EventHazardReported:          {},
	EventInstructionAcknowledged: {},
	EventQuizCompleted:           {},
	EventNudgeAcknowledged:       {},
}

// ValidEventType reports whether t belongs to the fixed event vocabulary.
func ValidEventType(t string) bool {
	_, ok := eventTypes[t]
	return ok
}

// Risk levels derived from the compliance score (high < 60 <= medium < 80 <= low).
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Behavior alert types.
const (
	AlertLowCompliance    = "low_compliance"
	AlertPPENonCompliance = "ppe_non_compliance"
	AlertInactive         = "inactive"
	AlertVideoAvoidance   = "video_avoidance"
	AlertChecklistMissed  = "checklist_missed"
	AlertCustom           = "custom"
)

// Alert severities and statuses.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"

	AlertOpen         = "open"
	AlertAcknowledged = "acknowledged"
)
