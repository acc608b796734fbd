// Package enforcement turns policy decisions into case mutations and
// idempotent side effects against the owning domains.
package enforcement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"warden/internal/models"
	"warden/internal/observability"
	"warden/internal/policy"
	"warden/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// ErrUnsupportedAction is returned for actions outside the dispatch table.
var ErrUnsupportedAction = errors.New("unsupported enforcement action")

// DefaultRestrictTTL applies to restrict_create decisions without ttl_minutes.
const DefaultRestrictTTL = 60 * time.Minute

// Audit target and action names.
const (
	AuditTargetCase     = "moderation_case"
	AuditActionFailed   = "enforcement.failed"
	AuditActionFlagged  = "case.flagged"
	auditActionPrefix   = "enforcement."
	payloadRestrictions = "restriction_ids"
)

// Subject identifies what a decision is about. OwnerID, when known, is
// the user that warn and restrict_create target.
type Subject struct {
	Type    string
	ID      string
	OwnerID string
}

type dispatchFunc func(h Hooks, ctx context.Context, c *models.ModerationCase, p models.Payload) error

var dispatch = map[models.Action]dispatchFunc{
	models.ActionTombstone:  Hooks.Tombstone,
	models.ActionRemove:     Hooks.Remove,
	models.ActionShadowHide: Hooks.ShadowHide,
	models.ActionMute:       Hooks.Mute,
	models.ActionBan:        Hooks.Ban,
	models.ActionWarn:       Hooks.Warn,
}

// Supported reports whether the coordinator can dispatch a.
func Supported(a models.Action) bool {
	if a == models.ActionNone || a == models.ActionRestrictCreate {
		return true
	}
	_, ok := dispatch[a]
	return ok
}

// Coordinator applies decisions to cases exactly once per (case, action).
type Coordinator struct {
	repo  repository.ModerationRepository
	hooks Hooks
	now   func() time.Time

	// RestrictTTL applies to restrict_create decisions without ttl_minutes.
	RestrictTTL time.Duration
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(repo repository.ModerationRepository, hooks Hooks) *Coordinator {
	return &Coordinator{repo: repo, hooks: hooks, now: time.Now, RestrictTTL: DefaultRestrictTTL}
}

// ApplyDecision upserts the subject's case and dispatches the decided
// action. A none decision with severity 0 is a no-op returning a nil case;
// with a positive severity the case is opened for review without any
// side effect. Reapplying an action already recorded for the case returns
// the case unchanged.
func (co *Coordinator) ApplyDecision(ctx context.Context, s Subject, d policy.Decision, actorID string) (_ *models.ModerationCase, err error) {
	span, ctx := observability.NewSpan(ctx, "enforcement.ApplyDecision")
	defer func() {
		span.SetError(err)
		span.End()
	}()
	span.AddAttributes(
		attribute.String("subject.type", s.Type),
		attribute.String("subject.id", s.ID),
		attribute.String("action", string(d.Action)),
		attribute.String("rule_id", d.RuleID),
	)

	if !d.Action.Valid() || !Supported(d.Action) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAction, d.Action)
	}
	if d.Action == models.ActionNone && d.Severity <= 0 {
		return nil, nil
	}

	c, created, err := co.repo.UpsertCase(ctx, repository.CaseUpsert{
		SubjectType: s.Type,
		SubjectID:   s.ID,
		Severity:    d.Severity,
		Reason:      d.Reason,
		PolicyID:    d.PolicyID,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert case: %w", err)
	}
	span.AddAttributes(attribute.String("case.id", c.ID), attribute.Bool("case.created", created))

	if d.Action == models.ActionNone {
		err := co.repo.AppendAudit(ctx, &models.AuditLogEntry{
			ActorID:    actorID,
			Action:     AuditActionFlagged,
			TargetType: AuditTargetCase,
			TargetID:   c.ID,
			Meta:       decisionMeta(d, nil),
		})
		if err != nil {
			return nil, fmt.Errorf("audit flagged case: %w", err)
		}
		return c, nil
	}

	applied, err := co.repo.AlreadyApplied(ctx, c.ID, d.Action)
	if err != nil {
		return nil, fmt.Errorf("check applied: %w", err)
	}
	if applied {
		observability.EnforcementActions.WithLabelValues(string(d.Action), "duplicate").Inc()
		return c, nil
	}

	payload := d.Payload.Clone()
	if payload.String("user_id") == "" && s.OwnerID != "" {
		payload["user_id"] = s.OwnerID
	}
	if actorID != "" {
		payload["actor_id"] = actorID
	}

	if err := co.dispatchHook(ctx, c, d.Action, payload); err != nil {
		observability.EnforcementActions.WithLabelValues(string(d.Action), "failed").Inc()
		observability.GlobalLogger.ErrorContext(ctx, "enforcement hook failed",
			slog.String("case_id", c.ID),
			slog.String("action", string(d.Action)),
			slog.String("error", err.Error()),
		)
		meta := decisionMeta(d, payload)
		meta["error"] = err.Error()
		if auditErr := co.repo.AppendAudit(ctx, &models.AuditLogEntry{
			ActorID:    actorID,
			Action:     AuditActionFailed,
			TargetType: AuditTargetCase,
			TargetID:   c.ID,
			Meta:       meta,
		}); auditErr != nil {
			observability.GlobalLogger.ErrorContext(ctx, "failed to audit enforcement failure",
				slog.String("case_id", c.ID),
				slog.String("error", auditErr.Error()),
			)
		}
		return nil, fmt.Errorf("dispatch %s: %w", d.Action, err)
	}

	now := co.now()
	err = co.repo.Transaction(ctx, func(tx repository.ModerationRepository) error {
		if err := tx.RecordAction(ctx, &models.ModerationAction{
			CaseID:    c.ID,
			Action:    d.Action,
			Payload:   payload,
			ActorID:   actorID,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		if c.Status != models.CaseActioned {
			if err := Transition(c, models.CaseActioned, now); err != nil {
				return err
			}
		}
		if err := tx.UpdateCase(ctx, c); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, &models.AuditLogEntry{
			ActorID:    actorID,
			Action:     auditActionPrefix + string(d.Action),
			TargetType: AuditTargetCase,
			TargetID:   c.ID,
			Meta:       decisionMeta(d, payload),
			CreatedAt:  now,
		})
	})
	if errors.Is(err, repository.ErrActionAlreadyRecorded) {
		// A concurrent delivery recorded the action first.
		observability.EnforcementActions.WithLabelValues(string(d.Action), "duplicate").Inc()
		return co.repo.GetCase(ctx, c.ID)
	}
	if err != nil {
		observability.EnforcementActions.WithLabelValues(string(d.Action), "failed").Inc()
		return nil, fmt.Errorf("record %s: %w", d.Action, err)
	}

	observability.EnforcementActions.WithLabelValues(string(d.Action), "applied").Inc()
	observability.GlobalLogger.InfoContext(ctx, "enforcement applied",
		slog.String("case_id", c.ID),
		slog.String("action", string(d.Action)),
		slog.Int("severity", c.Severity),
		slog.String("rule_id", d.RuleID),
	)
	return c, nil
}

func (co *Coordinator) dispatchHook(ctx context.Context, c *models.ModerationCase, a models.Action, payload models.Payload) error {
	if a == models.ActionRestrictCreate {
		ttl := co.RestrictTTL
		if ttl <= 0 {
			ttl = DefaultRestrictTTL
		}
		if m, ok := payload.Int("ttl_minutes"); ok && m > 0 {
			ttl = time.Duration(m) * time.Minute
		}
		expiresAt := co.now().Add(ttl)
		ids, err := co.hooks.RestrictCreate(ctx, c, payload, expiresAt)
		if err != nil {
			return err
		}
		payload[payloadRestrictions] = ids
		payload["expires_at"] = expiresAt.UTC().Format(time.RFC3339)
		return nil
	}
	fn, ok := dispatch[a]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedAction, a)
	}
	return fn(co.hooks, ctx, c, payload)
}

// RestrictionIDs returns the restriction ids a restrict_create action stored.
func RestrictionIDs(a *models.ModerationAction) []string {
	return a.Payload.Strings(payloadRestrictions)
}

func decisionMeta(d policy.Decision, payload models.Payload) models.Payload {
	meta := models.Payload{
		"action":    string(d.Action),
		"severity":  d.Severity,
		"reason":    d.Reason,
		"rule_id":   d.RuleID,
		"policy_id": d.PolicyID,
	}
	if payload != nil {
		meta["payload"] = payload
	}
	return meta
}
