// Package service holds the moderation workflow: reports, case handling,
// appeals and the content ingestion pipeline.
package service

import (
	"context"

	"warden/internal/enforcement"
	"warden/internal/models"
	"warden/internal/policy"
)

// SubjectResolver finds the user that owns a subject.
type SubjectResolver interface {
	ResolveOwner(ctx context.Context, subjectType, subjectID string) (string, error)
}

// HandleResolver maps a public handle to a canonical user id.
type HandleResolver interface {
	ResolveHandle(ctx context.Context, handle string) (string, error)
}

// Notifier persists an in-app notification.
type Notifier interface {
	PersistNotification(ctx context.Context, userID, kind, refID, actorID string, payload models.Payload) error
}

// ContentRestorer undoes tombstone, remove and shadow_hide.
type ContentRestorer interface {
	RestoreContent(ctx context.Context, subjectType, subjectID string, action models.Action) error
}

// MembershipRestorer lifts mute and ban.
type MembershipRestorer interface {
	RestoreMembership(ctx context.Context, groupID, userID string, action models.Action) error
}

// RestrictionRevoker revokes restrictions written by restrict_create.
type RestrictionRevoker interface {
	Revoke(ctx context.Context, restrictionID, actorID string) error
}

// Enforcer applies policy decisions to cases.
type Enforcer interface {
	ApplyDecision(ctx context.Context, s enforcement.Subject, d policy.Decision, actorID string) (*models.ModerationCase, error)
}

// ReputationRecorder records reputation deltas; positive is worse.
type ReputationRecorder interface {
	Record(ctx context.Context, userID string, delta int, reason string, meta models.Payload) (*models.ReputationScore, error)
}

// Notification kinds sent by the workflow.
const (
	NotifyAppealReceived = "moderation.appeal_received"
	NotifyAppealResolved = "moderation.appeal_resolved"
	NotifyCaseEscalated  = "moderation.case_escalated"
)

// ReputationPerSeverity scales a case's severity into a reputation delta.
const ReputationPerSeverity = 10
