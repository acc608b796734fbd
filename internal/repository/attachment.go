package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"warden/internal/models"

	"gorm.io/gorm"
)

// ErrAttachmentNotFound is returned when no attachment matches.
var ErrAttachmentNotFound = errors.New("attachment not found")

// AttachmentRepository reads and updates media safety state.
type AttachmentRepository interface {
	Create(ctx context.Context, a *models.Attachment) error
	GetByID(ctx context.Context, id string) (*models.Attachment, error)
	GetByStorageKey(ctx context.Context, key string) (*models.Attachment, error)
	SaveSafety(ctx context.Context, a *models.Attachment) error
}

type attachmentRepository struct {
	db *gorm.DB
}

// NewAttachmentRepository creates a GORM-backed AttachmentRepository.
func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{db: db}
}

func (r *attachmentRepository) Create(ctx context.Context, a *models.Attachment) error {
	if a.ID == "" {
		a.ID = newID()
	}
	if a.SafetyStatus == "" {
		a.SafetyStatus = models.SafetyPending
	}
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *attachmentRepository) get(ctx context.Context, column, value string) (*models.Attachment, error) {
	var a models.Attachment
	if err := r.db.WithContext(ctx).Where(column+" = ?", value).Take(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s=%s", ErrAttachmentNotFound, column, value)
		}
		return nil, err
	}
	return &a, nil
}

func (r *attachmentRepository) GetByID(ctx context.Context, id string) (*models.Attachment, error) {
	return r.get(ctx, "id", id)
}

func (r *attachmentRepository) GetByStorageKey(ctx context.Context, key string) (*models.Attachment, error) {
	return r.get(ctx, "storage_key", key)
}

func (r *attachmentRepository) SaveSafety(ctx context.Context, a *models.Attachment) error {
	res := r.db.WithContext(ctx).Model(a).
		Select("safety_status", "safety_level", "safety_reasons", "nsfw_score", "gore_score",
			"phash", "hash_label", "ocr_text", "scanned_at").
		Updates(a)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: id=%s", ErrAttachmentNotFound, a.ID)
	}
	return nil
}

// MemoryAttachmentRepository is an in-process AttachmentRepository.
type MemoryAttachmentRepository struct {
	mu   sync.Mutex
	rows map[string]models.Attachment
}

// NewMemoryAttachmentRepository returns an empty in-memory store.
func NewMemoryAttachmentRepository() *MemoryAttachmentRepository {
	return &MemoryAttachmentRepository{rows: make(map[string]models.Attachment)}
}

func (m *MemoryAttachmentRepository) Create(_ context.Context, a *models.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = newID()
	}
	if a.SafetyStatus == "" {
		a.SafetyStatus = models.SafetyPending
	}
	m.rows[a.ID] = *a
	return nil
}

func (m *MemoryAttachmentRepository) GetByID(_ context.Context, id string) (*models.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("%w: id=%s", ErrAttachmentNotFound, id)
	}
	return &a, nil
}

func (m *MemoryAttachmentRepository) GetByStorageKey(_ context.Context, key string) (*models.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if a.StorageKey == key {
			a := a
			return &a, nil
		}
	}
	return nil, fmt.Errorf("%w: storage_key=%s", ErrAttachmentNotFound, key)
}

func (m *MemoryAttachmentRepository) SaveSafety(_ context.Context, a *models.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[a.ID]; !ok {
		return fmt.Errorf("%w: id=%s", ErrAttachmentNotFound, a.ID)
	}
	m.rows[a.ID] = *a
	return nil
}
