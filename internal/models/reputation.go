package models

import "time"

// ReputationBand is the coarse bucket a reputation score falls into.
type ReputationBand string

const (
	BandGood    ReputationBand = "good"
	BandNeutral ReputationBand = "neutral"
	BandWatch   ReputationBand = "watch"
	BandRisk    ReputationBand = "risk"
	BandBad     ReputationBand = "bad"
)

// Rank orders bands from best (0) to worst.
func (b ReputationBand) Rank() int {
	switch b {
	case BandGood:
		return 0
	case BandNeutral:
		return 1
	case BandWatch:
		return 2
	case BandRisk:
		return 3
	case BandBad:
		return 4
	}
	return -1
}

// ReputationScore is a risk score in [0,100]; higher is worse.
type ReputationScore struct {
	UserID    string         `gorm:"primaryKey;size:128" json:"user_id"`
	Score     int            `gorm:"not null" json:"score"`
	Band      ReputationBand `gorm:"size:16;not null;index" json:"band"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (ReputationScore) TableName() string {
	return "reputation_scores"
}

// ReputationEventKind distinguishes explicit adjustments from decay passes.
type ReputationEventKind string

const (
	ReputationAdjust ReputationEventKind = "adjust"
	ReputationDecay  ReputationEventKind = "decay"
)

// ReputationEvent is an insert-only record of a score mutation.
type ReputationEvent struct {
	ID         string              `gorm:"primaryKey;size:36" json:"id"`
	UserID     string              `gorm:"size:128;not null;index:idx_reputation_events_user_time" json:"user_id"`
	Kind       ReputationEventKind `gorm:"size:16;not null" json:"kind"`
	Delta      int                 `gorm:"not null" json:"delta"`
	Reason     string              `gorm:"size:255;default:''" json:"reason"`
	ScoreAfter int                 `gorm:"not null" json:"score_after"`
	Meta       Payload             `gorm:"type:text;serializer:json" json:"meta,omitempty"`
	CreatedAt  time.Time           `gorm:"index:idx_reputation_events_user_time" json:"created_at"`
}

// TableName specifies the table name for GORM.
func (ReputationEvent) TableName() string {
	return "reputation_events"
}

// TrustScore backs the trust ledger; higher means more trusted.
type TrustScore struct {
	UserID    string    `gorm:"primaryKey;size:128" json:"user_id"`
	Score     int       `gorm:"not null" json:"score"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (TrustScore) TableName() string {
	return "trust_scores"
}
