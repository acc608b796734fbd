// Package repository provides data access layer implementations for the moderation engine.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"warden/internal/models"
	"warden/internal/observability"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrActionAlreadyRecorded is returned when (case_id, action) already exists.
var ErrActionAlreadyRecorded = errors.New("moderation action already recorded for case")

const defaultListLimit = 50

// CaseUpsert carries the fields merged into the single non-closed case of a subject.
type CaseUpsert struct {
	SubjectType string
	SubjectID   string
	Severity    int
	Reason      string
	PolicyID    string
}

// ModerationRepository is the persistence contract of the case workflow.
// Both the GORM and the in-memory implementation satisfy it.
type ModerationRepository interface {
	// Transaction runs fn against a repository bound to one transaction.
	Transaction(ctx context.Context, fn func(tx ModerationRepository) error) error

	// UpsertCase returns the non-closed case for the subject, creating an
	// open one when none exists. created reports which happened.
	UpsertCase(ctx context.Context, in CaseUpsert) (c *models.ModerationCase, created bool, err error)
	GetCase(ctx context.Context, id string) (*models.ModerationCase, error)
	UpdateCase(ctx context.Context, c *models.ModerationCase) error
	ListCases(ctx context.Context, filter models.CaseFilter) ([]*models.ModerationCase, error)

	RecordAction(ctx context.Context, a *models.ModerationAction) error
	AlreadyApplied(ctx context.Context, caseID string, action models.Action) (bool, error)
	ListActions(ctx context.Context, caseID string) ([]*models.ModerationAction, error)

	CreateReport(ctx context.Context, r *models.ModerationReport) error
	CountOpenReportsByReporter(ctx context.Context, reporterID string) (int64, error)
	// LockReporter serializes report submissions by one reporter until the
	// surrounding transaction ends.
	LockReporter(ctx context.Context, reporterID string) error
	// ResolveReports moves every open report of a case to status and
	// returns the affected reporter ids.
	ResolveReports(ctx context.Context, caseID string, status models.ReportStatus) ([]string, error)

	CreateAppeal(ctx context.Context, a *models.ModerationAppeal) error
	GetAppeal(ctx context.Context, id string) (*models.ModerationAppeal, error)
	// FindPendingAppeal returns nil without error when the case has no pending appeal.
	FindPendingAppeal(ctx context.Context, caseID string) (*models.ModerationAppeal, error)
	UpdateAppeal(ctx context.Context, a *models.ModerationAppeal) error

	AppendAudit(ctx context.Context, e *models.AuditLogEntry) error
	ListAudit(ctx context.Context, targetType, targetID string) ([]*models.AuditLogEntry, error)
}

type moderationRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewModerationRepository creates a GORM-backed ModerationRepository.
func NewModerationRepository(db *gorm.DB) ModerationRepository {
	return &moderationRepository{db: db, log: observability.NewRepoLogger("moderation_cases")}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func newID() string {
	return uuid.NewString()
}

func (r *moderationRepository) Transaction(ctx context.Context, fn func(tx ModerationRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&moderationRepository{db: tx, log: r.log})
	})
}

func (r *moderationRepository) findOpenCase(ctx context.Context, subjectType, subjectID string) (*models.ModerationCase, error) {
	var c models.ModerationCase
	err := r.db.WithContext(ctx).
		Where("subject_type = ? AND subject_id = ? AND status <> ?", subjectType, subjectID, models.CaseClosed).
		Order("created_at desc").
		Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *moderationRepository) UpsertCase(ctx context.Context, in CaseUpsert) (*models.ModerationCase, bool, error) {
	defer observability.TrackQuery("upsert", "moderation_cases")()

	existing, err := r.findOpenCase(ctx, in.SubjectType, in.SubjectID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		c := &models.ModerationCase{
			ID:          newID(),
			SubjectType: in.SubjectType,
			SubjectID:   in.SubjectID,
			Status:      models.CaseOpen,
			Severity:    in.Severity,
			Reason:      in.Reason,
			PolicyID:    in.PolicyID,
		}
		// Savepoint so a unique violation leaves an enclosing transaction usable.
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.Create(c).Error
		})
		if err == nil {
			r.log.LogCreate(ctx, map[string]interface{}{"case_id": c.ID, "subject": c.SubjectKey()})
			return c, true, nil
		}
		if !isUniqueViolation(err) {
			r.log.LogError(ctx, err, "upsert")
			return nil, false, err
		}
		// Lost the race against a concurrent writer for the same subject.
		existing, err = r.findOpenCase(ctx, in.SubjectType, in.SubjectID)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, fmt.Errorf("upsert case %s:%s: conflicting case vanished", in.SubjectType, in.SubjectID)
		}
	}

	mergeCase(existing, in)
	if err := r.db.WithContext(ctx).Save(existing).Error; err != nil {
		r.log.LogError(ctx, err, "upsert")
		return nil, false, err
	}
	return existing, false, nil
}

func mergeCase(c *models.ModerationCase, in CaseUpsert) {
	if in.Severity > c.Severity {
		c.Severity = in.Severity
	}
	if in.Reason != "" {
		c.Reason = in.Reason
	}
	if in.PolicyID != "" {
		c.PolicyID = in.PolicyID
	}
}

func (r *moderationRepository) GetCase(ctx context.Context, id string) (*models.ModerationCase, error) {
	var c models.ModerationCase
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.WithDetail(models.ErrCaseNotFound, fmt.Errorf("case %s", id))
		}
		return nil, err
	}
	return &c, nil
}

func (r *moderationRepository) UpdateCase(ctx context.Context, c *models.ModerationCase) error {
	if err := r.db.WithContext(ctx).Save(c).Error; err != nil {
		r.log.LogError(ctx, err, "update")
		return err
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"case_id": c.ID, "status": c.Status})
	return nil
}

func (r *moderationRepository) ListCases(ctx context.Context, filter models.CaseFilter) ([]*models.ModerationCase, error) {
	q := r.db.WithContext(ctx).Model(&models.ModerationCase{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.SubjectType != "" {
		q = q.Where("subject_type = ?", filter.SubjectType)
	}
	if filter.AssignedTo != "" {
		q = q.Where("assigned_to = ?", filter.AssignedTo)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	var cases []*models.ModerationCase
	err := q.Order("created_at desc").Limit(limit).Offset(filter.Offset).Find(&cases).Error
	return cases, err
}

func (r *moderationRepository) RecordAction(ctx context.Context, a *models.ModerationAction) error {
	if a.ID == "" {
		a.ID = newID()
	}
	err := r.db.WithContext(ctx).Create(a).Error
	if isUniqueViolation(err) {
		return ErrActionAlreadyRecorded
	}
	return err
}

func (r *moderationRepository) AlreadyApplied(ctx context.Context, caseID string, action models.Action) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ModerationAction{}).
		Where("case_id = ? AND action = ?", caseID, action).
		Count(&count).Error
	return count > 0, err
}

func (r *moderationRepository) ListActions(ctx context.Context, caseID string) ([]*models.ModerationAction, error) {
	var actions []*models.ModerationAction
	err := r.db.WithContext(ctx).Where("case_id = ?", caseID).Order("created_at asc").Find(&actions).Error
	return actions, err
}

func (r *moderationRepository) CreateReport(ctx context.Context, rep *models.ModerationReport) error {
	if rep.ID == "" {
		rep.ID = newID()
	}
	if rep.Status == "" {
		rep.Status = models.ReportOpen
	}
	err := r.db.WithContext(ctx).Create(rep).Error
	if isUniqueViolation(err) {
		return models.WithDetail(models.ErrDuplicateReport, fmt.Errorf("case %s reporter %s", rep.CaseID, rep.ReporterID))
	}
	return err
}

func (r *moderationRepository) CountOpenReportsByReporter(ctx context.Context, reporterID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ModerationReport{}).
		Where("reporter_id = ? AND status = ?", reporterID, models.ReportOpen).
		Count(&count).Error
	return count, err
}

func (r *moderationRepository) LockReporter(ctx context.Context, reporterID string) error {
	// SQLite serializes writers already.
	if r.db.Dialector.Name() != "postgres" {
		return nil
	}
	return r.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtext(?))", "reports:"+reporterID).Error
}

func (r *moderationRepository) ResolveReports(ctx context.Context, caseID string, status models.ReportStatus) ([]string, error) {
	var reporters []string
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.ModerationReport{}).
		Where("case_id = ? AND status = ?", caseID, models.ReportOpen).
		Pluck("reporter_id", &reporters).Error; err != nil {
		return nil, err
	}
	if len(reporters) == 0 {
		return nil, nil
	}
	err := db.Model(&models.ModerationReport{}).
		Where("case_id = ? AND status = ?", caseID, models.ReportOpen).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()}).Error
	return reporters, err
}

func (r *moderationRepository) CreateAppeal(ctx context.Context, a *models.ModerationAppeal) error {
	if a.ID == "" {
		a.ID = newID()
	}
	if a.Status == "" {
		a.Status = models.AppealPending
	}
	err := r.db.WithContext(ctx).Create(a).Error
	if isUniqueViolation(err) {
		return models.WithDetail(models.ErrAppealAlreadyOpen, fmt.Errorf("case %s", a.CaseID))
	}
	return err
}

func (r *moderationRepository) GetAppeal(ctx context.Context, id string) (*models.ModerationAppeal, error) {
	var a models.ModerationAppeal
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.WithDetail(models.ErrAppealNotFound, fmt.Errorf("appeal %s", id))
		}
		return nil, err
	}
	return &a, nil
}

func (r *moderationRepository) FindPendingAppeal(ctx context.Context, caseID string) (*models.ModerationAppeal, error) {
	var a models.ModerationAppeal
	err := r.db.WithContext(ctx).
		Where("case_id = ? AND status = ?", caseID, models.AppealPending).
		Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *moderationRepository) UpdateAppeal(ctx context.Context, a *models.ModerationAppeal) error {
	return r.db.WithContext(ctx).Save(a).Error
}

func (r *moderationRepository) AppendAudit(ctx context.Context, e *models.AuditLogEntry) error {
	if e.ID == "" {
		e.ID = newID()
	}
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *moderationRepository) ListAudit(ctx context.Context, targetType, targetID string) ([]*models.AuditLogEntry, error) {
	var entries []*models.AuditLogEntry
	err := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Order("created_at asc").
		Find(&entries).Error
	return entries, err
}
