package database

import "warden/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.ModerationCase{},
		&models.ModerationAction{},
		&models.ModerationReport{},
		&models.ModerationAppeal{},
		&models.AuditLogEntry{},
		&models.Restriction{},
		&models.ReputationScore{},
		&models.ReputationEvent{},
		&models.TrustScore{},
		&models.Attachment{},
	}
}
