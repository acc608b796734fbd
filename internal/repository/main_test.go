package repository

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"warden/internal/database"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// openSQLite returns a fresh in-memory database with the schema applied.
func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	name := fmt.Sprintf("repo_%s_%d", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()), dbSeq.Add(1))
	db, err := database.OpenSQLiteMemory(name)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	return gormDB, mock
}

// fakeUser returns a random user id.
func fakeUser() string {
	return strings.ToLower(gofakeit.Username()) + "-" + gofakeit.DigitN(4)
}

type backend[T any] struct {
	name string
	new  func(t *testing.T) T
}

func moderationBackends() []backend[ModerationRepository] {
	return []backend[ModerationRepository]{
		{"memory", func(*testing.T) ModerationRepository { return NewMemoryModerationRepository() }},
		{"gorm", func(t *testing.T) ModerationRepository { return NewModerationRepository(openSQLite(t)) }},
	}
}
