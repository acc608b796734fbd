package enforcement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"warden/internal/models"
	"warden/internal/observability"
	"warden/internal/restrictions"
)

// ContentHooks act on the content domain that owns a subject.
type ContentHooks interface {
	Tombstone(ctx context.Context, c *models.ModerationCase, payload models.Payload) error
	Remove(ctx context.Context, c *models.ModerationCase, payload models.Payload) error
	ShadowHide(ctx context.Context, c *models.ModerationCase, payload models.Payload) error
	Mute(ctx context.Context, c *models.ModerationCase, payload models.Payload) error
	Ban(ctx context.Context, c *models.ModerationCase, payload models.Payload) error
}

// Hooks is the full dispatch surface of the coordinator.
type Hooks interface {
	ContentHooks
	Warn(ctx context.Context, c *models.ModerationCase, payload models.Payload) error
	// RestrictCreate returns the ids of the restrictions it wrote.
	RestrictCreate(ctx context.Context, c *models.ModerationCase, payload models.Payload, expiresAt time.Time) ([]string, error)
}

// Notifier persists an in-app notification for a user.
type Notifier interface {
	PersistNotification(ctx context.Context, userID, kind, refID, actorID string, payload models.Payload) error
}

// RestrictionApplier is the part of the restriction ledger the hooks use.
type RestrictionApplier interface {
	Apply(ctx context.Context, in restrictions.ApplyInput) (*models.Restriction, error)
}

// DefaultScope applies to restrictions whose payload names no scope.
const DefaultScope = "global"

// EngineHooks routes content hooks by subject type and serves warn and
// restrict_create itself.
type EngineHooks struct {
	content      map[string]ContentHooks
	fallback     ContentHooks
	restrictions RestrictionApplier
	notifier     Notifier
}

// NewEngineHooks creates hooks with fallback serving unrouted subject types.
func NewEngineHooks(fallback ContentHooks, ledger RestrictionApplier, notifier Notifier) *EngineHooks {
	return &EngineHooks{
		content:      make(map[string]ContentHooks),
		fallback:     fallback,
		restrictions: ledger,
		notifier:     notifier,
	}
}

// Route sends hooks for subjectType to h.
func (e *EngineHooks) Route(subjectType string, h ContentHooks) *EngineHooks {
	e.content[subjectType] = h
	return e
}

func (e *EngineHooks) route(subjectType string) (ContentHooks, error) {
	if h, ok := e.content[subjectType]; ok {
		return h, nil
	}
	if e.fallback != nil {
		return e.fallback, nil
	}
	return nil, fmt.Errorf("no content hooks for subject type %q", subjectType)
}

func (e *EngineHooks) Tombstone(ctx context.Context, c *models.ModerationCase, p models.Payload) error {
	h, err := e.route(c.SubjectType)
	if err != nil {
		return err
	}
	return h.Tombstone(ctx, c, p)
}

func (e *EngineHooks) Remove(ctx context.Context, c *models.ModerationCase, p models.Payload) error {
	h, err := e.route(c.SubjectType)
	if err != nil {
		return err
	}
	return h.Remove(ctx, c, p)
}

func (e *EngineHooks) ShadowHide(ctx context.Context, c *models.ModerationCase, p models.Payload) error {
	h, err := e.route(c.SubjectType)
	if err != nil {
		return err
	}
	return h.ShadowHide(ctx, c, p)
}

func (e *EngineHooks) Mute(ctx context.Context, c *models.ModerationCase, p models.Payload) error {
	h, err := e.route(c.SubjectType)
	if err != nil {
		return err
	}
	return h.Mute(ctx, c, p)
}

func (e *EngineHooks) Ban(ctx context.Context, c *models.ModerationCase, p models.Payload) error {
	h, err := e.route(c.SubjectType)
	if err != nil {
		return err
	}
	return h.Ban(ctx, c, p)
}

// Warn notifies the payload's user_id.
func (e *EngineHooks) Warn(ctx context.Context, c *models.ModerationCase, p models.Payload) error {
	userID := p.String("user_id")
	if userID == "" {
		return fmt.Errorf("warn case %s: payload has no user_id", c.ID)
	}
	if e.notifier == nil {
		return fmt.Errorf("warn case %s: no notifier configured", c.ID)
	}
	body := models.Payload{"reason": c.Reason, "subject_type": c.SubjectType, "subject_id": c.SubjectID}
	if msg := p.String("message"); msg != "" {
		body["message"] = msg
	}
	return e.notifier.PersistNotification(ctx, userID, "moderation.warning", c.ID, p.String("actor_id"), body)
}

// RestrictCreate writes a restriction for the payload's user_id. The mode
// defaults to cooldown and the scope to DefaultScope.
func (e *EngineHooks) RestrictCreate(ctx context.Context, c *models.ModerationCase, p models.Payload, expiresAt time.Time) ([]string, error) {
	userID := p.String("user_id")
	if userID == "" {
		return nil, fmt.Errorf("restrict case %s: payload has no user_id", c.ID)
	}
	if e.restrictions == nil {
		return nil, fmt.Errorf("restrict case %s: no restriction ledger configured", c.ID)
	}
	mode := models.RestrictionMode(p.String("mode"))
	if mode == "" {
		mode = models.ModeCooldown
	}
	scope := p.String("scope")
	if scope == "" {
		scope = DefaultScope
	}
	r, err := e.restrictions.Apply(ctx, restrictions.ApplyInput{
		UserID:    userID,
		Scope:     scope,
		Mode:      mode,
		ExpiresAt: &expiresAt,
		CaseID:    c.ID,
		Reason:    c.Reason,
	})
	if err != nil {
		return nil, err
	}
	return []string{r.ID}, nil
}

// LogHooks records content hooks in the log without calling any domain.
type LogHooks struct{}

func (LogHooks) log(ctx context.Context, action string, c *models.ModerationCase, p models.Payload) error {
	observability.GlobalLogger.InfoContext(ctx, "content hook",
		slog.String("action", action),
		slog.String("case_id", c.ID),
		slog.String("subject_type", c.SubjectType),
		slog.String("subject_id", c.SubjectID),
		slog.Any("payload", p),
	)
	return nil
}

func (h LogHooks) Tombstone(ctx context.Context, c *models.ModerationCase, p models.Payload) error {
	return h.log(ctx, "tombstone", c, p)
}

func (h LogHooks) Remove(ctx context.Context, c *models.ModerationCase, p models.Payload) error {
	return h.log(ctx, "remove", c, p)
}

func (h LogHooks) ShadowHide(ctx context.Context, c *models.ModerationCase, p models.Payload) error {
	return h.log(ctx, "shadow_hide", c, p)
}

func (h LogHooks) Mute(ctx context.Context, c *models.ModerationCase, p models.Payload) error {
	return h.log(ctx, "mute", c, p)
}

func (h LogHooks) Ban(ctx context.Context, c *models.ModerationCase, p models.Payload) error {
	return h.log(ctx, "ban", c, p)
}
