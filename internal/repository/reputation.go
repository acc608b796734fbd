package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"warden/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventQuery selects the latest reputation event of a user.
type EventQuery struct {
	UserID string
	Kind   models.ReputationEventKind
	// WorseningOnly restricts to events with a positive delta.
	WorseningOnly bool
	Since         time.Time
}

// ReputationRepository persists reputation scores and their event log.
type ReputationRepository interface {
	// GetScore returns nil without error for users with no score yet.
	GetScore(ctx context.Context, userID string) (*models.ReputationScore, error)
	SaveScore(ctx context.Context, s *models.ReputationScore) error
	AppendEvent(ctx context.Context, e *models.ReputationEvent) error
	// LatestEvent returns nil without error when nothing matches.
	LatestEvent(ctx context.Context, q EventQuery) (*models.ReputationEvent, error)
	ListEvents(ctx context.Context, userID string, limit int) ([]*models.ReputationEvent, error)
	ListScoresAtLeast(ctx context.Context, minScore, limit int) ([]*models.ReputationScore, error)
}

// TrustRepository persists trust ledger scores.
type TrustRepository interface {
	// Get returns nil without error for unknown users.
	Get(ctx context.Context, userID string) (*models.TrustScore, error)
	Save(ctx context.Context, s *models.TrustScore) error
}

type reputationRepository struct {
	db *gorm.DB
}

// NewReputationRepository creates a GORM-backed ReputationRepository.
func NewReputationRepository(db *gorm.DB) ReputationRepository {
	return &reputationRepository{db: db}
}

func (r *reputationRepository) GetScore(ctx context.Context, userID string) (*models.ReputationScore, error) {
	var s models.ReputationScore
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *reputationRepository) SaveScore(ctx context.Context, s *models.ReputationScore) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "band", "updated_at"}),
	}).Create(s).Error
}

func (r *reputationRepository) AppendEvent(ctx context.Context, e *models.ReputationEvent) error {
	if e.ID == "" {
		e.ID = newID()
	}
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *reputationRepository) LatestEvent(ctx context.Context, q EventQuery) (*models.ReputationEvent, error) {
	db := r.db.WithContext(ctx).Where("user_id = ?", q.UserID)
	if q.Kind != "" {
		db = db.Where("kind = ?", q.Kind)
	}
	if q.WorseningOnly {
		db = db.Where("delta > 0")
	}
	if !q.Since.IsZero() {
		db = db.Where("created_at >= ?", q.Since)
	}
	var e models.ReputationEvent
	err := db.Order("created_at desc").Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *reputationRepository) ListEvents(ctx context.Context, userID string, limit int) ([]*models.ReputationEvent, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var out []*models.ReputationEvent
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at desc").Limit(limit).Find(&out).Error
	return out, err
}

func (r *reputationRepository) ListScoresAtLeast(ctx context.Context, minScore, limit int) ([]*models.ReputationScore, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var out []*models.ReputationScore
	err := r.db.WithContext(ctx).Where("score >= ?", minScore).Order("score desc").Limit(limit).Find(&out).Error
	return out, err
}

type trustRepository struct {
	db *gorm.DB
}

// NewTrustRepository creates a GORM-backed TrustRepository.
func NewTrustRepository(db *gorm.DB) TrustRepository {
	return &trustRepository{db: db}
}

func (r *trustRepository) Get(ctx context.Context, userID string) (*models.TrustScore, error) {
	var s models.TrustScore
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *trustRepository) Save(ctx context.Context, s *models.TrustScore) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "updated_at"}),
	}).Create(s).Error
}

// MemoryReputationRepository is an in-process ReputationRepository and TrustRepository.
type MemoryReputationRepository struct {
	mu     sync.Mutex
	scores map[string]models.ReputationScore
	events []models.ReputationEvent
	trust  map[string]models.TrustScore
}

// NewMemoryReputationRepository returns an empty in-memory store.
func NewMemoryReputationRepository() *MemoryReputationRepository {
	return &MemoryReputationRepository{
		scores: make(map[string]models.ReputationScore),
		trust:  make(map[string]models.TrustScore),
	}
}

func (m *MemoryReputationRepository) GetScore(_ context.Context, userID string) (*models.ReputationScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scores[userID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryReputationRepository) SaveScore(_ context.Context, s *models.ReputationScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[s.UserID] = *s
	return nil
}

func (m *MemoryReputationRepository) AppendEvent(_ context.Context, e *models.ReputationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	m.events = append(m.events, *e)
	return nil
}

func (m *MemoryReputationRepository) LatestEvent(_ context.Context, q EventQuery) (*models.ReputationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.ReputationEvent
	for _, e := range m.events {
		if e.UserID != q.UserID {
			continue
		}
		if q.Kind != "" && e.Kind != q.Kind {
			continue
		}
		if q.WorseningOnly && e.Delta <= 0 {
			continue
		}
		if !q.Since.IsZero() && e.CreatedAt.Before(q.Since) {
			continue
		}
		if latest == nil || !e.CreatedAt.Before(latest.CreatedAt) {
			e := e
			latest = &e
		}
	}
	return latest, nil
}

func (m *MemoryReputationRepository) ListEvents(_ context.Context, userID string, limit int) ([]*models.ReputationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = defaultListLimit
	}
	var out []*models.ReputationEvent
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].UserID == userID {
			e := m.events[i]
			out = append(out, &e)
		}
	}
	return out, nil
}

func (m *MemoryReputationRepository) ListScoresAtLeast(_ context.Context, minScore, limit int) ([]*models.ReputationScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = defaultListLimit
	}
	var out []*models.ReputationScore
	for _, s := range m.scores {
		if s.Score >= minScore {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Get implements TrustRepository.
func (m *MemoryReputationRepository) Get(_ context.Context, userID string) (*models.TrustScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.trust[userID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// Save implements TrustRepository.
func (m *MemoryReputationRepository) Save(_ context.Context, s *models.TrustScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trust[s.UserID] = *s
	return nil
}
