package trust

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"warden/internal/models"
	"warden/internal/observability"
	"warden/internal/repository"
)

const (
	// DefaultReputation is the score of a user with no history.
	DefaultReputation = 20
	// DefaultDecayRate multiplies the score on each decay pass.
	DefaultDecayRate = 0.8
	// DefaultDecayWindow is the quiet period required between decays.
	DefaultDecayWindow = 72 * time.Hour
)

// BandFor maps a score to its band.
func BandFor(score int) models.ReputationBand {
	switch {
	case score < 10:
		return models.BandGood
	case score < 30:
		return models.BandNeutral
	case score < 50:
		return models.BandWatch
	case score < 75:
		return models.BandRisk
	}
	return models.BandBad
}

// watchFloor is the lowest score in the watch band.
const watchFloor = 30

// ReputationConfig tunes decay.
type ReputationConfig struct {
	DecayRate   float64
	DecayWindow time.Duration
}

// ReputationService records reputation events and decays old risk.
type ReputationService struct {
	repo repository.ReputationRepository
	cfg  ReputationConfig
	now  func() time.Time
}

// NewReputationService creates a ReputationService; zero config values
// take the defaults.
func NewReputationService(repo repository.ReputationRepository, cfg ReputationConfig) *ReputationService {
	if cfg.DecayRate <= 0 || cfg.DecayRate >= 1 {
		cfg.DecayRate = DefaultDecayRate
	}
	if cfg.DecayWindow <= 0 {
		cfg.DecayWindow = DefaultDecayWindow
	}
	return &ReputationService{repo: repo, cfg: cfg, now: time.Now}
}

// Get returns the user's current score, materializing the default.
func (s *ReputationService) Get(ctx context.Context, userID string) (*models.ReputationScore, error) {
	sc, err := s.repo.GetScore(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get reputation: %w", err)
	}
	if sc == nil {
		return &models.ReputationScore{UserID: userID, Score: DefaultReputation, Band: BandFor(DefaultReputation)}, nil
	}
	return sc, nil
}

// Events lists the user's most recent reputation events.
func (s *ReputationService) Events(ctx context.Context, userID string, limit int) ([]*models.ReputationEvent, error) {
	return s.repo.ListEvents(ctx, userID, limit)
}

// Record applies delta (positive is worse) and writes an adjust event.
func (s *ReputationService) Record(ctx context.Context, userID string, delta int, reason string, meta models.Payload) (*models.ReputationScore, error) {
	return s.write(ctx, userID, models.ReputationAdjust, delta, reason, meta, func(cur int) int { return cur + delta })
}

// ApplyDecayIfNeeded decays a watch-or-worse score once per quiet window.
// It returns nil when no decay applied.
func (s *ReputationService) ApplyDecayIfNeeded(ctx context.Context, userID string, now time.Time) (*models.ReputationScore, error) {
	cur, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cur.Band.Rank() < models.BandWatch.Rank() {
		return nil, nil
	}
	since := now.Add(-s.cfg.DecayWindow)
	worse, err := s.repo.LatestEvent(ctx, repository.EventQuery{UserID: userID, WorseningOnly: true, Since: since})
	if err != nil {
		return nil, fmt.Errorf("latest worsening event: %w", err)
	}
	if worse != nil {
		return nil, nil
	}
	prior, err := s.repo.LatestEvent(ctx, repository.EventQuery{UserID: userID, Kind: models.ReputationDecay, Since: since})
	if err != nil {
		return nil, fmt.Errorf("latest decay event: %w", err)
	}
	if prior != nil {
		return nil, nil
	}

	next := int(math.Floor(float64(cur.Score) * s.cfg.DecayRate))
	meta := models.Payload{"rate": s.cfg.DecayRate, "from": cur.Score}
	return s.writeAt(ctx, userID, models.ReputationDecay, next-cur.Score, "decay", meta, now, func(int) int { return next })
}

// DecaySweep applies decay to up to limit users at watch or worse and
// returns how many decayed.
func (s *ReputationService) DecaySweep(ctx context.Context, now time.Time, limit int) (int, error) {
	scores, err := s.repo.ListScoresAtLeast(ctx, watchFloor, limit)
	if err != nil {
		return 0, fmt.Errorf("list decay candidates: %w", err)
	}
	decayed := 0
	for _, sc := range scores {
		if err := ctx.Err(); err != nil {
			return decayed, err
		}
		res, err := s.ApplyDecayIfNeeded(ctx, sc.UserID, now)
		if err != nil {
			observability.GlobalLogger.WarnContext(ctx, "reputation decay failed",
				slog.String("user_id", sc.UserID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if res != nil {
			decayed++
		}
	}
	return decayed, nil
}

func (s *ReputationService) write(ctx context.Context, userID string, kind models.ReputationEventKind, delta int, reason string, meta models.Payload, next func(int) int) (*models.ReputationScore, error) {
	return s.writeAt(ctx, userID, kind, delta, reason, meta, s.now(), next)
}

func (s *ReputationService) writeAt(ctx context.Context, userID string, kind models.ReputationEventKind, delta int, reason string, meta models.Payload, at time.Time, next func(int) int) (*models.ReputationScore, error) {
	cur, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	score := clamp(next(cur.Score))
	updated := &models.ReputationScore{UserID: userID, Score: score, Band: BandFor(score), UpdatedAt: at}
	if err := s.repo.SaveScore(ctx, updated); err != nil {
		return nil, fmt.Errorf("save reputation: %w", err)
	}
	ev := &models.ReputationEvent{
		UserID:     userID,
		Kind:       kind,
		Delta:      delta,
		Reason:     reason,
		ScoreAfter: score,
		Meta:       meta,
		CreatedAt:  at,
	}
	if err := s.repo.AppendEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("append reputation event: %w", err)
	}
	return updated, nil
}
