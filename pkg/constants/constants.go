package constants

// Report target types
const (
	TargetPost    = "post"
	TargetComment = "comment"
	TargetUser    = "user"
)

var ReportTargetTypes = map[string]bool{
	TargetPost:    true,
	TargetComment: true,
	TargetUser:    true,
}

// Report statuses
const (
	ReportPending   = "pending"
	ReportTriaged   = "triaged"
	ReportReviewed  = "reviewed"
	ReportDismissed = "dismissed"
)

// Severity levels, low to critical
const (
	SeverityLow      = 1
	SeverityMedium   = 2
	SeverityHigh     = 3
	SeverityCritical = 4
)

// Report categories. Legal and safety categories seed a higher
// default severity at intake.
const (
	CategorySpam        = "spam"
	CategoryHarassment  = "harassment"
	CategoryHateSpeech  = "hate_speech"
	CategoryViolence    = "violence"
	CategorySelfHarm    = "self_harm"
	CategoryIllegal     = "illegal"
	CategoryMisinfo     = "misinformation"
	CategoryNSFW        = "nsfw"
	CategoryImpersonate = "impersonation"
	CategoryOther       = "other"
)

var CategorySeverity = map[string]int{
	CategorySpam:        SeverityLow,
	CategoryMisinfo:     SeverityLow,
	CategoryOther:       SeverityLow,
	CategoryNSFW:        SeverityMedium,
	CategoryImpersonate: SeverityMedium,
	CategoryHarassment:  SeverityMedium,
	CategoryHateSpeech:  SeverityHigh,
	CategoryViolence:    SeverityCritical,
	CategorySelfHarm:    SeverityCritical,
	CategoryIllegal:     SeverityCritical,
}

// Priority levels assigned at triage
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

var Priorities = map[string]bool{
	PriorityLow:    true,
	PriorityNormal: true,
	PriorityHigh:   true,
	PriorityUrgent: true,
}

// Moderation action types
const (
	ActionRemove    = "remove"
	ActionWarn      = "warn"
	ActionBanIssued = "ban-issued"
	ActionRevert    = "revert"
)

var ActionTypes = map[string]bool{
	ActionRemove:    true,
	ActionWarn:      true,
	ActionBanIssued: true,
	ActionRevert:    true,
}

// Moderation action statuses
const (
	ActionPending   = "pending"
	ActionCompleted = "completed"
	ActionReverted  = "reverted"
)

// Appeal target types
const (
	AppealTargetBan    = "community_ban"
	AppealTargetAction = "moderation_action"
)

var AppealTargetTypes = map[string]bool{
	AppealTargetBan:    true,
	AppealTargetAction: true,
}

// Appeal statuses
const (
	AppealPending    = "pending"
	AppealUpheld     = "upheld"
	AppealOverturned = "overturned"
)

// Appeal decisions accepted from reviewers
var AppealDecisions = map[string]bool{
	AppealUpheld:     true,
	AppealOverturned: true,
}

// Paging bounds
const (
	DefaultPageLimit = 100
	MaxPageLimit     = 500
)
