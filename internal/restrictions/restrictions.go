// Package restrictions is the graduated restriction ledger. Rows are the
// durable record; Redis flags serve enforcement reads. Several rows can
// share a flag key, so flags for a (user, scope) pair are always rebuilt
// from its active rows: a key lives as long as the longest active row that
// sets it.
package restrictions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"warden/internal/cache"
	"warden/internal/models"
	"warden/internal/observability"
	"warden/internal/repository"
)

const (
	// DefaultFlagPrefix namespaces flag keys.
	DefaultFlagPrefix = "restrict"
	// DefaultTTL applies when neither a TTL nor an expiry is given.
	DefaultTTL = time.Hour
	// MinTTL floors TTLs derived from an absolute expiry.
	MinTTL = time.Minute
)

// ErrInvalidMode is returned for an unknown restriction mode.
var ErrInvalidMode = errors.New("invalid restriction mode")

// ApplyInput describes one restriction. ExpiresAt wins over TTL.
type ApplyInput struct {
	UserID    string
	Scope     string
	Mode      models.RestrictionMode
	TTL       time.Duration
	ExpiresAt *time.Time
	CaseID    string
	Reason    string
}

// Flags is the hot-path view of a user's restrictions in one scope.
type Flags struct {
	Cooldown       bool `json:"cooldown"`
	ShadowRestrict bool `json:"shadow_restrict"`
	Captcha        bool `json:"captcha"`
}

// Config tunes the ledger.
type Config struct {
	FlagPrefix string
	DefaultTTL time.Duration
}

// Ledger writes restriction rows and their flags.
type Ledger struct {
	repo   repository.RestrictionRepository
	flags  FlagStore
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewLedger creates a Ledger; zero config values take the defaults.
func NewLedger(repo repository.RestrictionRepository, flags FlagStore, cfg Config) *Ledger {
	if cfg.FlagPrefix == "" {
		cfg.FlagPrefix = DefaultFlagPrefix
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	return &Ledger{repo: repo, flags: flags, prefix: cfg.FlagPrefix, ttl: cfg.DefaultTTL, now: time.Now}
}

// flagModes lists the flags a mode sets.
func flagModes(m models.RestrictionMode) []models.RestrictionMode {
	if m == models.ModeHardBlock {
		return []models.RestrictionMode{models.ModeShadowRestrict, models.ModeCooldown}
	}
	return []models.RestrictionMode{m}
}

// checkedModes lists the flags CheckFlags reads, in order.
var checkedModes = []models.RestrictionMode{models.ModeCooldown, models.ModeShadowRestrict, models.ModeCaptcha}

// syncFlags rebuilds the flags of userID in scope from the active ledger
// rows. Rows without an expiry keep their flags for the default TTL.
func (l *Ledger) syncFlags(ctx context.Context, userID, scope string) error {
	now := l.now()
	rows, err := l.repo.ListActive(ctx, userID, now)
	if err != nil {
		return fmt.Errorf("list active restrictions: %w", err)
	}

	ttls := make(map[models.RestrictionMode]time.Duration, len(checkedModes))
	for _, r := range rows {
		if r.Scope != scope {
			continue
		}
		remaining := l.ttl
		if r.ExpiresAt != nil {
			remaining = r.ExpiresAt.Sub(now)
		}
		if remaining <= 0 {
			continue
		}
		for _, m := range flagModes(r.Mode) {
			if remaining > ttls[m] {
				ttls[m] = remaining
			}
		}
	}

	set := make(map[string]time.Duration, len(ttls))
	var clear []string
	for _, m := range checkedModes {
		key := cache.FlagKey(l.prefix, string(m), userID, scope)
		if ttl, ok := ttls[m]; ok {
			set[key] = ttl
		} else {
			clear = append(clear, key)
		}
	}
	if err := l.flags.Sync(ctx, set, clear); err != nil {
		return fmt.Errorf("sync restriction flags: %w", err)
	}
	return nil
}

// Apply persists a restriction and sets its flags. A flag already held by
// a longer restriction keeps its longer TTL.
func (l *Ledger) Apply(ctx context.Context, in ApplyInput) (*models.Restriction, error) {
	if !in.Mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, in.Mode)
	}
	if in.UserID == "" || in.Scope == "" {
		return nil, models.NewValidationError("user_id and scope are required")
	}

	now := l.now()
	ttl := in.TTL
	var expires time.Time
	switch {
	case in.ExpiresAt != nil:
		ttl = in.ExpiresAt.Sub(now)
		if ttl < MinTTL {
			ttl = MinTTL
		}
		expires = now.Add(ttl)
	case ttl > 0:
		expires = now.Add(ttl)
	default:
		ttl = l.ttl
		expires = now.Add(ttl)
	}

	r := &models.Restriction{
		UserID:     in.UserID,
		Scope:      in.Scope,
		Mode:       in.Mode,
		Reason:     in.Reason,
		CaseID:     in.CaseID,
		TTLSeconds: int64(ttl / time.Second),
		ExpiresAt:  &expires,
		CreatedAt:  now,
	}
	if err := l.repo.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create restriction: %w", err)
	}
	if err := l.syncFlags(ctx, in.UserID, in.Scope); err != nil {
		return nil, err
	}
	observability.RestrictionsApplied.WithLabelValues(string(in.Mode)).Inc()
	observability.GlobalLogger.InfoContext(ctx, "restriction applied",
		slog.String("restriction_id", r.ID),
		slog.String("user_id", in.UserID),
		slog.String("scope", in.Scope),
		slog.String("mode", string(in.Mode)),
		slog.Duration("ttl", ttl),
	)
	return r, nil
}

// ApplyCooldown rate-limits a user in scope.
func (l *Ledger) ApplyCooldown(ctx context.Context, userID, scope string, ttl time.Duration, reason string) (*models.Restriction, error) {
	return l.Apply(ctx, ApplyInput{UserID: userID, Scope: scope, Mode: models.ModeCooldown, TTL: ttl, Reason: reason})
}

// ShadowRestrict hides a user's new content from others in scope.
func (l *Ledger) ShadowRestrict(ctx context.Context, userID, scope string, ttl time.Duration, reason string) (*models.Restriction, error) {
	return l.Apply(ctx, ApplyInput{UserID: userID, Scope: scope, Mode: models.ModeShadowRestrict, TTL: ttl, Reason: reason})
}

// RequireCaptcha gates a user's writes in scope behind a challenge.
func (l *Ledger) RequireCaptcha(ctx context.Context, userID, scope string, ttl time.Duration, reason string) (*models.Restriction, error) {
	return l.Apply(ctx, ApplyInput{UserID: userID, Scope: scope, Mode: models.ModeCaptcha, TTL: ttl, Reason: reason})
}

// HardBlock sets both the shadow and cooldown flags.
func (l *Ledger) HardBlock(ctx context.Context, userID, scope string, ttl time.Duration, reason string) (*models.Restriction, error) {
	return l.Apply(ctx, ApplyInput{UserID: userID, Scope: scope, Mode: models.ModeHardBlock, TTL: ttl, Reason: reason})
}

// CheckFlags reads the user's flags in scope with a single MGET.
func (l *Ledger) CheckFlags(ctx context.Context, userID, scope string) (Flags, error) {
	keys := make([]string, len(checkedModes))
	for i, m := range checkedModes {
		keys[i] = cache.FlagKey(l.prefix, string(m), userID, scope)
	}
	vals, err := l.flags.Get(ctx, keys)
	if err != nil {
		return Flags{}, fmt.Errorf("check restriction flags: %w", err)
	}
	return Flags{Cooldown: vals[0], ShadowRestrict: vals[1], Captcha: vals[2]}, nil
}

// Revoke marks the restriction revoked and drops the flags no other active
// restriction still needs. Revoking an already revoked row changes nothing.
func (l *Ledger) Revoke(ctx context.Context, restrictionID, actorID string) error {
	r, err := l.repo.GetByID(ctx, restrictionID)
	if err != nil {
		return err
	}
	changed, err := l.repo.MarkRevoked(ctx, restrictionID, actorID, l.now())
	if err != nil {
		return fmt.Errorf("revoke restriction: %w", err)
	}
	if !changed {
		observability.GlobalLogger.DebugContext(ctx, "restriction already revoked",
			slog.String("restriction_id", restrictionID),
		)
		return nil
	}
	if err := l.syncFlags(ctx, r.UserID, r.Scope); err != nil {
		return err
	}
	observability.GlobalLogger.InfoContext(ctx, "restriction revoked",
		slog.String("restriction_id", restrictionID),
		slog.String("actor_id", actorID),
	)
	return nil
}

// ListActive returns the user's unexpired, unrevoked restrictions.
func (l *Ledger) ListActive(ctx context.Context, userID string) ([]*models.Restriction, error) {
	return l.repo.ListActive(ctx, userID, l.now())
}
