package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"warden/internal/models"
	"warden/internal/observability"

	"gorm.io/gorm"
)

// ErrRestrictionNotFound is returned when a restriction id is unknown.
var ErrRestrictionNotFound = errors.New("restriction not found")

// RestrictionRepository persists the restriction ledger.
type RestrictionRepository interface {
	Create(ctx context.Context, r *models.Restriction) error
	GetByID(ctx context.Context, id string) (*models.Restriction, error)
	// MarkRevoked stamps revocation and reports whether the row changed;
	// revoking twice is a no-op returning false.
	MarkRevoked(ctx context.Context, id, actorID string, at time.Time) (bool, error)
	ListActive(ctx context.Context, userID string, now time.Time) ([]*models.Restriction, error)
}

type restrictionRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewRestrictionRepository creates a GORM-backed RestrictionRepository.
func NewRestrictionRepository(db *gorm.DB) RestrictionRepository {
	return &restrictionRepository{db: db, log: observability.NewRepoLogger("user_restrictions")}
}

func (r *restrictionRepository) Create(ctx context.Context, res *models.Restriction) error {
	if res.ID == "" {
		res.ID = newID()
	}
	if err := r.db.WithContext(ctx).Create(res).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return err
	}
	r.log.LogCreate(ctx, map[string]interface{}{"restriction_id": res.ID, "mode": res.Mode, "scope": res.Scope})
	return nil
}

func (r *restrictionRepository) GetByID(ctx context.Context, id string) (*models.Restriction, error) {
	var res models.Restriction
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&res).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRestrictionNotFound, id)
		}
		return nil, err
	}
	return &res, nil
}

func (r *restrictionRepository) MarkRevoked(ctx context.Context, id, actorID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Restriction{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Updates(map[string]interface{}{"revoked_at": at, "revoked_by": actorID})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "mark_revoked")
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (r *restrictionRepository) ListActive(ctx context.Context, userID string, now time.Time) ([]*models.Restriction, error) {
	var out []*models.Restriction
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND revoked_at IS NULL AND (expires_at IS NULL OR expires_at > ?)", userID, now).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// MemoryRestrictionRepository is an in-process RestrictionRepository.
type MemoryRestrictionRepository struct {
	mu   sync.Mutex
	rows map[string]models.Restriction
}

// NewMemoryRestrictionRepository returns an empty in-memory ledger.
func NewMemoryRestrictionRepository() *MemoryRestrictionRepository {
	return &MemoryRestrictionRepository{rows: make(map[string]models.Restriction)}
}

func (m *MemoryRestrictionRepository) Create(_ context.Context, res *models.Restriction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if res.ID == "" {
		res.ID = newID()
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now()
	}
	m.rows[res.ID] = *res
	return nil
}

func (m *MemoryRestrictionRepository) GetByID(_ context.Context, id string) (*models.Restriction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRestrictionNotFound, id)
	}
	return &res, nil
}

func (m *MemoryRestrictionRepository) MarkRevoked(_ context.Context, id, actorID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.rows[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrRestrictionNotFound, id)
	}
	if res.RevokedAt != nil {
		return false, nil
	}
	res.RevokedAt = &at
	res.RevokedBy = actorID
	m.rows[id] = res
	return true, nil
}

func (m *MemoryRestrictionRepository) ListActive(_ context.Context, userID string, now time.Time) ([]*models.Restriction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Restriction
	for _, res := range m.rows {
		if res.UserID == userID && res.IsActive(now) {
			res := res
			out = append(out, &res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
