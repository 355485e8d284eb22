package v1

type CreateReport struct {
	TargetType  string `json:"target_type"`
	TargetID    string `json:"target_id"`
	CommunityID string `json:"community_id"`
	Category    string `json:"category"`
	ReasonText  string `json:"reason_text"`
}

type TriageReport struct {
	Priority        string `json:"priority"`
	Severity        int    `json:"severity"`
	ExpectedVersion int64  `json:"expected_version"`
}

type DismissReport struct {
	ExpectedVersion int64 `json:"expected_version"`
}

type Report struct {
	ID          string  `json:"id"`
	ReporterID  *string `json:"reporter_id,omitempty"`
	TargetType  string  `json:"target_type"`
	TargetID    string  `json:"target_id"`
	CommunityID string  `json:"community_id"`
	Category    string  `json:"category"`
	ReasonText  string  `json:"reason_text"`
	Status      string  `json:"status"`
	Severity    int     `json:"severity"`
	Priority    string  `json:"priority"`
	Version     int64   `json:"version"`
	CreatedAt   uint64  `json:"created_at"`
	UpdatedAt   uint64  `json:"updated_at"`
}

type CreateAction struct {
	ReportID       *string `json:"report_id,omitempty"`
	TargetType     string  `json:"target_type"`
	TargetID       string  `json:"target_id"`
	CommunityID    string  `json:"community_id"`
	ActionType     string  `json:"action_type"`
	ReasonCategory string  `json:"reason_category"`
	ReasonText     string  `json:"reason_text"`
}

type ModerationAction struct {
	ID             string  `json:"id"`
	ReportID       *string `json:"report_id,omitempty"`
	ActorID        string  `json:"actor_id"`
	TargetType     string  `json:"target_type"`
	TargetID       string  `json:"target_id"`
	CommunityID    string  `json:"community_id"`
	ActionType     string  `json:"action_type"`
	ReasonCategory string  `json:"reason_category"`
	ReasonText     string  `json:"reason_text"`
	Status         string  `json:"status"`
	CreatedAt      uint64  `json:"created_at"`
}

type IssueBan struct {
	CommunityID    string `json:"community_id"`
	BannedUserID   string `json:"banned_user_id"`
	ReasonCategory string `json:"reason_category"`
	ReasonText     string `json:"reason_text"`
	IsPermanent    bool   `json:"is_permanent"`
	ExpiresAt      uint64 `json:"expires_at,omitempty"`
}

type BanInfo struct {
	ID             string  `json:"id"`
	CommunityID    string  `json:"community_id"`
	BannedUserID   string  `json:"banned_user_id"`
	IssuedBy       string  `json:"issued_by"`
	ReasonCategory string  `json:"reason_category"`
	ReasonText     string  `json:"reason_text"`
	IsPermanent    bool    `json:"is_permanent"`
	ExpiresAt      uint64  `json:"expires_at,omitempty"`
	IsActive       bool    `json:"is_active"`
	LiftedAt       uint64  `json:"lifted_at,omitempty"`
	LiftedBy       *string `json:"lifted_by,omitempty"`
	CreatedAt      uint64  `json:"created_at"`
}

type SubmitAppeal struct {
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	AppealText string `json:"appeal_text"`
}

type ReviewAppeal struct {
	Decision    string `json:"decision"`
	Explanation string `json:"explanation"`
}

type Appeal struct {
	ID                  string  `json:"id"`
	AppellantID         string  `json:"appellant_id"`
	TargetType          string  `json:"target_type"`
	TargetID            string  `json:"target_id"`
	AppealText          string  `json:"appeal_text"`
	Status              string  `json:"status"`
	ReviewedBy          *string `json:"reviewed_by,omitempty"`
	DecisionExplanation string  `json:"decision_explanation"`
	IsEscalated         bool    `json:"is_escalated"`
	EscalatedAt         uint64  `json:"escalated_at,omitempty"`
	ReversalPending     bool    `json:"reversal_pending"`
	ResolvedAt          uint64  `json:"resolved_at,omitempty"`
	Version             int64   `json:"version"`
	CreatedAt           uint64  `json:"created_at"`
	UpdatedAt           uint64  `json:"updated_at"`
}
