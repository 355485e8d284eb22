package db

import "time"

type Report struct {
	ID          string     `json:"id"`
	ReporterID  *string    `json:"reporter_id,omitempty"`
	TargetType  string     `json:"target_type"`
	TargetID    string     `json:"target_id"`
	CommunityID string     `json:"community_id"`
	Category    string     `json:"category"`
	ReasonText  string     `json:"reason_text"`
	Status      string     `json:"status"`
	Severity    int        `json:"severity"`
	Priority    string     `json:"priority"`
	Version     int64      `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type ModerationAction struct {
	ID             string    `json:"id"`
	ReportID       *string   `json:"report_id,omitempty"`
	ActorID        string    `json:"actor_id"`
	TargetType     string    `json:"target_type"`
	TargetID       string    `json:"target_id"`
	CommunityID    string    `json:"community_id"`
	ActionType     string    `json:"action_type"`
	ReasonCategory string    `json:"reason_category"`
	ReasonText     string    `json:"reason_text"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

type CommunityBan struct {
	ID             string     `json:"id"`
	CommunityID    string     `json:"community_id"`
	BannedUserID   string     `json:"banned_user_id"`
	IssuedBy       string     `json:"issued_by"`
	ReasonCategory string     `json:"reason_category"`
	ReasonText     string     `json:"reason_text"`
	IsPermanent    bool       `json:"is_permanent"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	IsActive       bool       `json:"is_active"`
	LiftedAt       *time.Time `json:"lifted_at,omitempty"`
	LiftedBy       *string    `json:"lifted_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// EffectiveActive derives the real ban state from the row and the clock.
// The stored is_active flag alone is not authoritative: a temporary ban
// past its expiry is inactive whether or not the sweeper ran.
func (b *CommunityBan) EffectiveActive(now time.Time) bool {
	if !b.IsActive {
		return false
	}
	if b.IsPermanent {
		return true
	}
	return b.ExpiresAt != nil && b.ExpiresAt.After(now)
}

type ModerationAppeal struct {
	ID                  string     `json:"id"`
	AppellantID         string     `json:"appellant_id"`
	TargetType          string     `json:"target_type"`
	TargetID            string     `json:"target_id"`
	AppealText          string     `json:"appeal_text"`
	Status              string     `json:"status"`
	ReviewedBy          *string    `json:"reviewed_by,omitempty"`
	DecisionExplanation string     `json:"decision_explanation"`
	IsEscalated         bool       `json:"is_escalated"`
	EscalatedAt         *time.Time `json:"escalated_at,omitempty"`
	ReversalPending     bool       `json:"reversal_pending"`
	ResolvedAt          *time.Time `json:"resolved_at,omitempty"`
	Version             int64      `json:"version"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
