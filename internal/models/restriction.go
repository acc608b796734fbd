package models

import "time"

// RestrictionMode is the kind of graduated restriction applied to a user.
type RestrictionMode string

const (
	ModeCooldown       RestrictionMode = "cooldown"
	ModeShadowRestrict RestrictionMode = "shadow_restrict"
	ModeCaptcha        RestrictionMode = "captcha"
	ModeHardBlock      RestrictionMode = "hard_block"
)

// Valid reports whether m is a known mode.
func (m RestrictionMode) Valid() bool {
	switch m {
	case ModeCooldown, ModeShadowRestrict, ModeCaptcha, ModeHardBlock:
		return true
	}
	return false
}

// Restriction is a time-bounded limitation on a user within a scope.
type Restriction struct {
	ID         string          `gorm:"primaryKey;size:36" json:"id"`
	UserID     string          `gorm:"size:128;not null;index:idx_restrictions_user_scope" json:"user_id"`
	Scope      string          `gorm:"size:64;not null;index:idx_restrictions_user_scope" json:"scope"`
	Mode       RestrictionMode `gorm:"size:32;not null" json:"mode"`
	Reason     string          `gorm:"type:text;default:''" json:"reason"`
	CaseID     string          `gorm:"size:36;default:'';index" json:"case_id,omitempty"`
	TTLSeconds int64           `gorm:"not null;default:0" json:"ttl_seconds"`
	ExpiresAt  *time.Time      `gorm:"index" json:"expires_at,omitempty"`
	RevokedAt  *time.Time      `json:"revoked_at,omitempty"`
	RevokedBy  string          `gorm:"size:128;default:''" json:"revoked_by,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (Restriction) TableName() string {
	return "user_restrictions"
}

// IsActive reports whether the restriction is in force at now.
func (r *Restriction) IsActive(now time.Time) bool {
	if r.RevokedAt != nil {
		return false
	}
	return r.ExpiresAt == nil || r.ExpiresAt.After(now)
}
