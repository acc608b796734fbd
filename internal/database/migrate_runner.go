package database

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"warden/internal/middleware"

	"gorm.io/gorm"
)

// AppliedMigration is one row of the schema history table.
type AppliedMigration struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	Checksum  string    `gorm:"size:64;not null;default:''"`
	AppliedAt time.Time `gorm:"not null"`
}

// TableName specifies the table name for GORM.
func (AppliedMigration) TableName() string {
	return "warden_schema_migrations"
}

// CURRENT_TIMESTAMP keeps the DDL valid on both Postgres and SQLite.
const ensureHistoryTableSQL = `
CREATE TABLE IF NOT EXISTS warden_schema_migrations (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	checksum VARCHAR(64) NOT NULL DEFAULT '',
	applied_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// MigrationStore records which migrations ran. Apply and Revert run the
// script and the history change in one transaction.
type MigrationStore interface {
	Applied(ctx context.Context) ([]AppliedMigration, error)
	Apply(ctx context.Context, m Migration) error
	Revert(ctx context.Context, m Migration) error
}

type migrationStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewMigrationStore returns a MigrationStore over db.
func NewMigrationStore(db *gorm.DB) MigrationStore {
	return &migrationStore{db: db, now: time.Now}
}

func (s *migrationStore) Applied(ctx context.Context) ([]AppliedMigration, error) {
	var rows []AppliedMigration
	if err := s.db.WithContext(ctx).Order("version ASC").Find(&rows).Error; err != nil {
		if isMissingTableError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	return rows, nil
}

func isMissingTableError(err error) bool {
	msg := err.Error()
	return (strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist")) ||
		strings.Contains(msg, "no such table")
}

func (s *migrationStore) Apply(ctx context.Context, m Migration) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.UpScript).Error; err != nil {
			return fmt.Errorf("apply %s: %w", m, err)
		}
		row := AppliedMigration{Version: m.Version, Name: m.Name, Checksum: m.Checksum, AppliedAt: s.now().UTC()}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("record %s: %w", m, err)
		}
		return nil
	})
}

func (s *migrationStore) Revert(ctx context.Context, m Migration) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.DownScript).Error; err != nil {
			return fmt.Errorf("revert %s: %w", m, err)
		}
		if err := tx.Where("version = ?", m.Version).Delete(&AppliedMigration{}).Error; err != nil {
			return fmt.Errorf("unrecord %s: %w", m, err)
		}
		return nil
	})
}

func appliedVersions(rows []AppliedMigration) []int {
	out := make([]int, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Version)
	}
	return out
}

// RunMigrations applies every embedded migration not yet recorded in
// warden_schema_migrations, oldest first.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	return runMigrations(ctx, db, migrations)
}

func runMigrations(ctx context.Context, db *gorm.DB, registered []Migration) error {
	if err := db.WithContext(ctx).Exec(ensureHistoryTableSQL).Error; err != nil {
		return fmt.Errorf("ensure schema history table: %w", err)
	}

	store := NewMigrationStore(db)
	rows, err := store.Applied(ctx)
	if err != nil {
		return err
	}
	if err := validateAppliedVersions(appliedVersions(rows), registered); err != nil {
		return err
	}

	done := make(map[int]AppliedMigration, len(rows))
	for _, r := range rows {
		done[r.Version] = r
	}

	applied := 0
	for _, m := range registered {
		if prev, ok := done[m.Version]; ok {
			if prev.Checksum != "" && prev.Checksum != m.Checksum {
				middleware.Logger.Warn("applied migration changed since it ran",
					slog.String("migration", m.String()),
					slog.String("recorded_checksum", prev.Checksum),
					slog.String("embedded_checksum", m.Checksum),
				)
			}
			continue
		}

		start := time.Now()
		if err := store.Apply(ctx, m); err != nil {
			return err
		}
		applied++
		middleware.Logger.Info("schema migration applied",
			slog.String("migration", m.String()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	}
	middleware.Logger.Info("schema up to date",
		slog.Int("applied", applied),
		slog.Int("total", len(registered)),
	)
	return nil
}

// validateAppliedVersions refuses to run against a database migrated by a
// newer build.
func validateAppliedVersions(applied []int, registered []Migration) error {
	known := make(map[int]struct{}, len(registered))
	for _, m := range registered {
		known[m.Version] = struct{}{}
	}

	var unknown []string
	for _, version := range applied {
		if _, ok := known[version]; !ok {
			unknown = append(unknown, fmt.Sprintf("%06d", version))
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("warden_schema_migrations has versions this build does not know: %s", strings.Join(unknown, ", "))
}

// RollbackMigration runs the down script of an applied migration.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	return rollbackMigration(ctx, db, migrations, version)
}

func rollbackMigration(ctx context.Context, db *gorm.DB, registered []Migration, version int) error {
	m := findMigration(registered, version)
	if m == nil {
		return fmt.Errorf("migration %06d is not embedded in this build", version)
	}

	store := NewMigrationStore(db)
	rows, err := store.Applied(ctx)
	if err != nil {
		return err
	}
	found := false
	for _, r := range rows {
		if r.Version == version {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("migration %s has not been applied", m)
	}

	if err := store.Revert(ctx, *m); err != nil {
		return err
	}
	middleware.Logger.Info("schema migration reverted", slog.String("migration", m.String()))
	return nil
}
