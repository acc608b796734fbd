// Package models contains data structures for the moderation domain.
package models

import (
	"fmt"
	"time"
)

// CaseStatus is the lifecycle state of a moderation case.
type CaseStatus string

const (
	CaseOpen      CaseStatus = "open"
	CaseActioned  CaseStatus = "actioned"
	CaseDismissed CaseStatus = "dismissed"
	CaseEscalated CaseStatus = "escalated"
	CaseClosed    CaseStatus = "closed"
)

// Payload is free-form JSON attached to actions, rules and audit entries.
type Payload map[string]any

// String returns the payload value at key as a string, or "".
func (p Payload) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Int returns the payload value at key as an int and whether it was present.
func (p Payload) Int(key string) (int, bool) {
	switch t := p[key].(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case float32:
		return int(t), true
	default:
		return 0, false
	}
}

// Strings returns a string slice stored at key. JSON round trips turn
// []string into []any so both shapes are accepted.
func (p Payload) Strings(key string) []string {
	switch t := p[key].(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Clone returns a shallow copy of the payload.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ModerationCase is one governance record per subject. Cases are never
// physically deleted.
type ModerationCase struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	SubjectType     string     `gorm:"size:64;not null;uniqueIndex:idx_cases_open_subject,where:status <> 'closed'" json:"subject_type"`
	SubjectID       string     `gorm:"size:128;not null;uniqueIndex:idx_cases_open_subject,where:status <> 'closed'" json:"subject_id"`
	Status          CaseStatus `gorm:"size:20;not null;default:'open';index" json:"status"`
	Reason          string     `gorm:"type:text;default:''" json:"reason"`
	Severity        int        `gorm:"not null;default:0" json:"severity"`
	PolicyID        string     `gorm:"size:128;default:''" json:"policy_id"`
	AssignedTo      string     `gorm:"size:128;default:'';index" json:"assigned_to"`
	EscalationLevel int        `gorm:"not null;default:0" json:"escalation_level"`
	AppealOpen      bool       `gorm:"not null;default:false" json:"appeal_open"`
	AppealedBy      string     `gorm:"size:128;default:''" json:"appealed_by"`
	AppealNote      string     `gorm:"type:text;default:''" json:"appeal_note"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

// TableName specifies the table name for GORM.
func (ModerationCase) TableName() string {
	return "moderation_cases"
}

// SubjectKey identifies the subject a case governs.
func (c *ModerationCase) SubjectKey() string {
	return c.SubjectType + ":" + c.SubjectID
}

// ModerationAction is an append-only record of an enforcement applied to a case.
type ModerationAction struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CaseID    string    `gorm:"size:36;not null;uniqueIndex:idx_actions_case_action" json:"case_id"`
	Action    Action    `gorm:"size:32;not null;uniqueIndex:idx_actions_case_action" json:"action"`
	Payload   Payload   `gorm:"type:text;serializer:json" json:"payload"`
	ActorID   string    `gorm:"size:128;default:''" json:"actor_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (ModerationAction) TableName() string {
	return "moderation_actions"
}

// ReportStatus tracks whether a report still counts against the reporter's cap.
type ReportStatus string

const (
	ReportOpen      ReportStatus = "open"
	ReportResolved  ReportStatus = "resolved"
	ReportDismissed ReportStatus = "dismissed"
)

// ModerationReport is a user-filed report attached to a case.
type ModerationReport struct {
	ID          string       `gorm:"primaryKey;size:36" json:"id"`
	CaseID      string       `gorm:"size:36;not null;uniqueIndex:idx_reports_case_reporter" json:"case_id"`
	ReporterID  string       `gorm:"size:128;not null;uniqueIndex:idx_reports_case_reporter;index:idx_reports_reporter_status" json:"reporter_id"`
	SubjectType string       `gorm:"size:64;not null" json:"subject_type"`
	SubjectID   string       `gorm:"size:128;not null" json:"subject_id"`
	Reason      string       `gorm:"size:255;not null" json:"reason"`
	Details     string       `gorm:"type:text;default:''" json:"details"`
	Status      ReportStatus `gorm:"size:20;not null;default:'open';index:idx_reports_reporter_status" json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (ModerationReport) TableName() string {
	return "moderation_reports"
}

// AppealStatus is the state of an appeal.
type AppealStatus string

const (
	AppealPending  AppealStatus = "pending"
	AppealAccepted AppealStatus = "accepted"
	AppealRejected AppealStatus = "rejected"
)

// ModerationAppeal is a request by the subject owner to reverse a case outcome.
type ModerationAppeal struct {
	ID             string       `gorm:"primaryKey;size:36" json:"id"`
	CaseID         string       `gorm:"size:36;not null;index;uniqueIndex:idx_moderation_appeals_pending,where:status = 'pending'" json:"case_id"`
	AppellantID    string       `gorm:"size:128;not null;index" json:"appellant_id"`
	Note           string       `gorm:"type:text;default:''" json:"note"`
	Status         AppealStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	ResolvedBy     string       `gorm:"size:128;default:''" json:"resolved_by"`
	ResolutionNote string       `gorm:"type:text;default:''" json:"resolution_note"`
	CreatedAt      time.Time    `json:"created_at"`
	ResolvedAt     *time.Time   `json:"resolved_at,omitempty"`
}

// TableName specifies the table name for GORM.
func (ModerationAppeal) TableName() string {
	return "moderation_appeals"
}

// AuditLogEntry is an insert-only trail of moderation side effects.
type AuditLogEntry struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	ActorID    string    `gorm:"size:128;default:'';index" json:"actor_id"`
	Action     string    `gorm:"size:64;not null;index" json:"action"`
	TargetType string    `gorm:"size:64;not null;index:idx_audit_target" json:"target_type"`
	TargetID   string    `gorm:"size:128;not null;index:idx_audit_target" json:"target_id"`
	Meta       Payload   `gorm:"type:text;serializer:json" json:"meta"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (AuditLogEntry) TableName() string {
	return "moderation_audit_log"
}

// CaseFilter narrows case listings.
type CaseFilter struct {
	Status      CaseStatus
	SubjectType string
	AssignedTo  string
	Limit       int
	Offset      int
}
