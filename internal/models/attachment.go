package models

import "time"

// SafetyStatus is the outcome of a media safety scan.
type SafetyStatus string

const (
	SafetyPending     SafetyStatus = "pending"
	SafetyClean       SafetyStatus = "clean"
	SafetyNeedsReview SafetyStatus = "needs_review"
	SafetyQuarantined SafetyStatus = "quarantined"
	SafetyBlocked     SafetyStatus = "blocked"
)

// Attachment holds the safety state of an uploaded media object. The bytes
// live in object storage under StorageKey.
type Attachment struct {
	ID            string       `gorm:"primaryKey;size:36" json:"id"`
	StorageKey    string       `gorm:"size:512;not null;uniqueIndex" json:"storage_key"`
	OwnerID       string       `gorm:"size:128;default:'';index" json:"owner_id"`
	SubjectType   string       `gorm:"size:64;default:''" json:"subject_type"`
	SubjectID     string       `gorm:"size:128;default:''" json:"subject_id"`
	Surface       string       `gorm:"size:64;default:''" json:"surface"`
	MimeType      string       `gorm:"size:128;default:''" json:"mime_type"`
	SizeBytes     int64        `gorm:"default:0" json:"size_bytes"`
	SafetyStatus  SafetyStatus `gorm:"size:20;not null;default:'pending';index" json:"safety_status"`
	SafetyLevel   string       `gorm:"size:16;default:''" json:"safety_level"`
	SafetyReasons []string     `gorm:"type:text;serializer:json" json:"safety_reasons,omitempty"`
	NSFWScore     float64      `gorm:"default:0" json:"nsfw_score"`
	GoreScore     float64      `gorm:"default:0" json:"gore_score"`
	PHash         string       `gorm:"size:16;default:'';index" json:"phash"`
	HashLabel     string       `gorm:"size:32;default:''" json:"hash_label,omitempty"`
	OCRText       string       `gorm:"type:text;default:''" json:"ocr_text,omitempty"`
	ScannedAt     *time.Time   `json:"scanned_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Attachment) TableName() string {
	return "attachments"
}
