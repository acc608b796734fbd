package database

import (
	"testing"
	"time"

	"warden/internal/config"
	"warden/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}

	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestDialectorFor_RejectsUnknownDriver(t *testing.T) {
	_, err := dialectorFor(&config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}

func TestOpenSQLiteMemory_PartialUniqueIndexOnOpenCases(t *testing.T) {
	db, err := OpenSQLiteMemory(t.Name())
	require.NoError(t, err)

	now := time.Now()
	first := models.ModerationCase{ID: "c1", SubjectType: "post", SubjectID: "p1", Status: models.CaseOpen, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, db.Create(&first).Error)

	dup := models.ModerationCase{ID: "c2", SubjectType: "post", SubjectID: "p1", Status: models.CaseOpen, CreatedAt: now, UpdatedAt: now}
	assert.Error(t, db.Create(&dup).Error, "second non-closed case for a subject must violate the index")

	require.NoError(t, db.Model(&models.ModerationCase{}).Where("id = ?", "c1").Update("status", models.CaseClosed).Error)
	assert.NoError(t, db.Create(&dup).Error, "a closed case frees the subject key")
}

func TestOpenSQLiteMemory_OnePendingAppealPerCase(t *testing.T) {
	db, err := OpenSQLiteMemory(t.Name())
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, db.Create(&models.ModerationCase{ID: "c1", SubjectType: "post", SubjectID: "p1", Status: models.CaseActioned, CreatedAt: now, UpdatedAt: now}).Error)
	require.NoError(t, db.Create(&models.ModerationAppeal{ID: "a1", CaseID: "c1", AppellantID: "u1", Status: models.AppealPending, CreatedAt: now}).Error)

	second := models.ModerationAppeal{ID: "a2", CaseID: "c1", AppellantID: "u1", Status: models.AppealPending, CreatedAt: now}
	assert.Error(t, db.Create(&second).Error)

	require.NoError(t, db.Model(&models.ModerationAppeal{}).Where("id = ?", "a1").Update("status", models.AppealRejected).Error)
	assert.NoError(t, db.Create(&second).Error, "a resolved appeal frees the case")
}

func TestSchemaPolicy(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Config
		wantSQL  bool
		wantAuto bool
		wantErr  bool
	}{
		{"hybrid dev", config.Config{Env: "development"}, true, true, false},
		{"hybrid prod", config.Config{Env: "production", DBSchemaMode: "hybrid"}, true, false, false},
		{"sql only", config.Config{Env: "development", DBSchemaMode: "sql"}, true, false, false},
		{"auto prod refused", config.Config{Env: "prod", DBSchemaMode: "auto"}, false, false, true},
		{"auto prod allowed", config.Config{Env: "prod", DBSchemaMode: "auto", DBAutoMigrateDestructive: true}, false, true, false},
		{"sqlite always auto", config.Config{Env: "production", DBDriver: "sqlite", DBSchemaMode: "sql"}, false, true, false},
		{"unknown mode", config.Config{Env: "development", DBSchemaMode: "yolo"}, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runSQL, runAuto, err := schemaPolicy(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, runSQL)
			assert.Equal(t, tt.wantAuto, runAuto)
		})
	}
}

func TestEmbeddedMigrationsRegistered(t *testing.T) {
	ms := GetMigrations()
	require.GreaterOrEqual(t, len(ms), 2)
	for i, m := range ms {
		assert.Equal(t, i+1, m.Version, "migrations are contiguous and ordered")
		assert.NotEmpty(t, m.UpScript, m.Name)
		assert.NotEmpty(t, m.DownScript, m.Name)
	}
	require.NotNil(t, GetMigrationByVersion(1))
	assert.Contains(t, GetMigrationByVersion(1).UpScript, "moderation_cases")
	assert.Nil(t, GetMigrationByVersion(999))
}
