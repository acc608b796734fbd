// Package trust maintains per-user trust and reputation scores.
package trust

import (
	"context"
	"fmt"
	"time"

	"warden/internal/detectors"
	"warden/internal/models"
	"warden/internal/repository"
)

// Workflow deltas applied to the trust ledger.
const (
	ReporterDismissed = -1
	ReporterActioned  = 1
	AppealAccepted    = 2
	AppealRejected    = -3
)

// Ledger is the trust read/adjust surface used by the workflow.
type Ledger interface {
	Score(ctx context.Context, userID string) (int, error)
	Adjust(ctx context.Context, userID string, delta int) (int, error)
}

// TrustLedger stores a clamped [0,100] trust score per user.
type TrustLedger struct {
	repo repository.TrustRepository
	now  func() time.Time
}

// NewTrustLedger creates a TrustLedger over repo.
func NewTrustLedger(repo repository.TrustRepository) *TrustLedger {
	return &TrustLedger{repo: repo, now: time.Now}
}

// Score returns the user's trust, or the default for unknown users.
func (l *TrustLedger) Score(ctx context.Context, userID string) (int, error) {
	s, err := l.repo.Get(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get trust: %w", err)
	}
	if s == nil {
		return detectors.DefaultTrustScore, nil
	}
	return s.Score, nil
}

// Adjust adds delta to the user's trust and returns the clamped result.
func (l *TrustLedger) Adjust(ctx context.Context, userID string, delta int) (int, error) {
	current, err := l.Score(ctx, userID)
	if err != nil {
		return 0, err
	}
	next := clamp(current + delta)
	if err := l.repo.Save(ctx, &models.TrustScore{UserID: userID, Score: next, UpdatedAt: l.now()}); err != nil {
		return 0, fmt.Errorf("save trust: %w", err)
	}
	return next, nil
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
