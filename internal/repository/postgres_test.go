package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"warden/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm duplicated key", gorm.ErrDuplicatedKey, true},
		{"postgres 23505", &pgconn.PgError{Code: "23505"}, true},
		{"postgres other", &pgconn.PgError{Code: "23503"}, false},
		{"sqlite message", errors.New("UNIQUE constraint failed: moderation_reports.case_id"), true},
		{"other", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueViolation(tt.err))
		})
	}
}

func TestModerationRepository_Postgres_GetCase(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewModerationRepository(db)
	ctx := context.Background()

	tests := []struct {
		name         string
		id           string
		mockBehavior func()
		wantErr      error
	}{
		{
			name: "Success",
			id:   "c1",
			mockBehavior: func() {
				rows := sqlmock.NewRows([]string{"id", "subject_type", "subject_id", "status", "severity"}).
					AddRow("c1", "post", "p1", "open", 2)
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "moderation_cases" WHERE id = $1 LIMIT $2`)).
					WithArgs("c1", 1).
					WillReturnRows(rows)
			},
		},
		{
			name: "Not Found",
			id:   "missing",
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "moderation_cases" WHERE id = $1 LIMIT $2`)).
					WithArgs("missing", 1).
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			wantErr: models.ErrCaseNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			c, err := repo.GetCase(ctx, tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, c)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "post:p1", c.SubjectKey())
				assert.Equal(t, models.CaseOpen, c.Status)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestModerationRepository_Postgres_CountOpenReports(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewModerationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "moderation_reports" WHERE reporter_id = $1 AND status = $2`)).
		WithArgs("u1", models.ReportOpen).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	n, err := repo.CountOpenReportsByReporter(context.Background(), "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModerationRepository_Postgres_LockReporter(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewModerationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtext($1))`)).
		WithArgs("reports:u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.LockReporter(context.Background(), "u1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModerationRepository_Postgres_ListCasesFilters(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewModerationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "moderation_cases" WHERE status = $1 AND assigned_to = $2 ORDER BY created_at desc LIMIT $3 OFFSET $4`)).
		WithArgs(models.CaseEscalated, "mod-1", 10, 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow("c9", "escalated"))

	cases, err := repo.ListCases(context.Background(), models.CaseFilter{
		Status:     models.CaseEscalated,
		AssignedTo: "mod-1",
		Limit:      10,
		Offset:     20,
	})
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "c9", cases[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModerationRepository_Postgres_QueryErrorPropagates(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewModerationRepository(db)
	boom := errors.New("connection refused")

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "moderation_actions"`)).WillReturnError(boom)

	_, err := repo.AlreadyApplied(context.Background(), "c1", models.ActionBan)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRestrictionRepository_Postgres_ListActive(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewRestrictionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "user_restrictions" WHERE user_id = $1 AND revoked_at IS NULL AND (expires_at IS NULL OR expires_at > $2) ORDER BY created_at desc`)).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "scope", "mode"}).AddRow("r1", "u1", "post", "cooldown"))

	list, err := repo.ListActive(context.Background(), "u1", time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.ModeCooldown, list[0].Mode)
	assert.NoError(t, mock.ExpectationsWereMet())
}
