package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"warden/internal/models"
)

// MemoryModerationRepository is an in-process ModerationRepository. All
// operations are serialized. Transaction holds the lock for the whole of fn
// and runs it against a private copy that replaces the live state only
// when fn succeeds.
type MemoryModerationRepository struct {
	mu      sync.Locker
	now     func() time.Time
	cases   map[string]models.ModerationCase
	actions map[string]models.ModerationAction
	reports map[string]models.ModerationReport
	appeals map[string]models.ModerationAppeal
	audit   []models.AuditLogEntry
}

// NewMemoryModerationRepository returns an empty in-memory repository.
func NewMemoryModerationRepository() *MemoryModerationRepository {
	return &MemoryModerationRepository{
		mu:      &sync.Mutex{},
		now:     time.Now,
		cases:   make(map[string]models.ModerationCase),
		actions: make(map[string]models.ModerationAction),
		reports: make(map[string]models.ModerationReport),
		appeals: make(map[string]models.ModerationAppeal),
	}
}

// heldLock stands in for the mutex inside a transaction view; the parent
// already holds the real one.
type heldLock struct{}

func (heldLock) Lock()   {}
func (heldLock) Unlock() {}

func copyMap[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// txView must be called with r.mu held.
func (r *MemoryModerationRepository) txView() *MemoryModerationRepository {
	return &MemoryModerationRepository{
		mu:      heldLock{},
		now:     r.now,
		cases:   copyMap(r.cases),
		actions: copyMap(r.actions),
		reports: copyMap(r.reports),
		appeals: copyMap(r.appeals),
		audit:   append([]models.AuditLogEntry(nil), r.audit...),
	}
}

func (r *MemoryModerationRepository) Transaction(_ context.Context, fn func(tx ModerationRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	view := r.txView()
	if err := fn(view); err != nil {
		return err
	}
	r.cases, r.actions, r.reports, r.appeals, r.audit = view.cases, view.actions, view.reports, view.appeals, view.audit
	return nil
}

func (r *MemoryModerationRepository) UpsertCase(_ context.Context, in CaseUpsert) (*models.ModerationCase, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var existing *models.ModerationCase
	for _, c := range r.cases {
		if c.SubjectType == in.SubjectType && c.SubjectID == in.SubjectID && c.Status != models.CaseClosed {
			c := c
			existing = &c
			break
		}
	}
	now := r.now()
	if existing == nil {
		c := models.ModerationCase{
			ID:          newID(),
			SubjectType: in.SubjectType,
			SubjectID:   in.SubjectID,
			Status:      models.CaseOpen,
			Severity:    in.Severity,
			Reason:      in.Reason,
			PolicyID:    in.PolicyID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		r.cases[c.ID] = c
		return &c, true, nil
	}
	mergeCase(existing, in)
	existing.UpdatedAt = now
	r.cases[existing.ID] = *existing
	return existing, false, nil
}

func (r *MemoryModerationRepository) GetCase(_ context.Context, id string) (*models.ModerationCase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[id]
	if !ok {
		return nil, models.WithDetail(models.ErrCaseNotFound, fmt.Errorf("case %s", id))
	}
	return &c, nil
}

func (r *MemoryModerationRepository) UpdateCase(_ context.Context, c *models.ModerationCase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cases[c.ID]; !ok {
		return models.WithDetail(models.ErrCaseNotFound, fmt.Errorf("case %s", c.ID))
	}
	c.UpdatedAt = r.now()
	r.cases[c.ID] = *c
	return nil
}

func (r *MemoryModerationRepository) ListCases(_ context.Context, filter models.CaseFilter) ([]*models.ModerationCase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ModerationCase
	for _, c := range r.cases {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.SubjectType != "" && c.SubjectType != filter.SubjectType {
			continue
		}
		if filter.AssignedTo != "" && c.AssignedTo != filter.AssignedTo {
			continue
		}
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryModerationRepository) RecordAction(_ context.Context, a *models.ModerationAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.actions {
		if existing.CaseID == a.CaseID && existing.Action == a.Action {
			return ErrActionAlreadyRecorded
		}
	}
	if a.ID == "" {
		a.ID = newID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.now()
	}
	stored := *a
	stored.Payload = a.Payload.Clone()
	r.actions[a.ID] = stored
	return nil
}

func (r *MemoryModerationRepository) AlreadyApplied(_ context.Context, caseID string, action models.Action) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.actions {
		if a.CaseID == caseID && a.Action == action {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryModerationRepository) ListActions(_ context.Context, caseID string) ([]*models.ModerationAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ModerationAction
	for _, a := range r.actions {
		if a.CaseID == caseID {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryModerationRepository) CreateReport(_ context.Context, rep *models.ModerationReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.reports {
		if existing.CaseID == rep.CaseID && existing.ReporterID == rep.ReporterID {
			return models.WithDetail(models.ErrDuplicateReport, fmt.Errorf("case %s reporter %s", rep.CaseID, rep.ReporterID))
		}
	}
	if rep.ID == "" {
		rep.ID = newID()
	}
	if rep.Status == "" {
		rep.Status = models.ReportOpen
	}
	now := r.now()
	rep.CreatedAt, rep.UpdatedAt = now, now
	r.reports[rep.ID] = *rep
	return nil
}

func (r *MemoryModerationRepository) CountOpenReportsByReporter(_ context.Context, reporterID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, rep := range r.reports {
		if rep.ReporterID == reporterID && rep.Status == models.ReportOpen {
			n++
		}
	}
	return n, nil
}

// LockReporter is a no-op; every operation already holds the repository lock.
func (r *MemoryModerationRepository) LockReporter(context.Context, string) error {
	return nil
}

func (r *MemoryModerationRepository) ResolveReports(_ context.Context, caseID string, status models.ReportStatus) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var reporters []string
	for id, rep := range r.reports {
		if rep.CaseID == caseID && rep.Status == models.ReportOpen {
			rep.Status = status
			rep.UpdatedAt = r.now()
			r.reports[id] = rep
			reporters = append(reporters, rep.ReporterID)
		}
	}
	sort.Strings(reporters)
	return reporters, nil
}

func (r *MemoryModerationRepository) CreateAppeal(_ context.Context, a *models.ModerationAppeal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.Status == "" || a.Status == models.AppealPending {
		for _, existing := range r.appeals {
			if existing.CaseID == a.CaseID && existing.Status == models.AppealPending {
				return models.WithDetail(models.ErrAppealAlreadyOpen, fmt.Errorf("case %s", a.CaseID))
			}
		}
	}
	if a.ID == "" {
		a.ID = newID()
	}
	if a.Status == "" {
		a.Status = models.AppealPending
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.now()
	}
	r.appeals[a.ID] = *a
	return nil
}

func (r *MemoryModerationRepository) GetAppeal(_ context.Context, id string) (*models.ModerationAppeal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appeals[id]
	if !ok {
		return nil, models.WithDetail(models.ErrAppealNotFound, fmt.Errorf("appeal %s", id))
	}
	return &a, nil
}

func (r *MemoryModerationRepository) FindPendingAppeal(_ context.Context, caseID string) (*models.ModerationAppeal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.appeals {
		if a.CaseID == caseID && a.Status == models.AppealPending {
			a := a
			return &a, nil
		}
	}
	return nil, nil
}

func (r *MemoryModerationRepository) UpdateAppeal(_ context.Context, a *models.ModerationAppeal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appeals[a.ID]; !ok {
		return models.WithDetail(models.ErrAppealNotFound, fmt.Errorf("appeal %s", a.ID))
	}
	r.appeals[a.ID] = *a
	return nil
}

func (r *MemoryModerationRepository) AppendAudit(_ context.Context, e *models.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID == "" {
		e.ID = newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now()
	}
	stored := *e
	stored.Meta = e.Meta.Clone()
	r.audit = append(r.audit, stored)
	return nil
}

func (r *MemoryModerationRepository) ListAudit(_ context.Context, targetType, targetID string) ([]*models.AuditLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AuditLogEntry
	for _, e := range r.audit {
		if e.TargetType == targetType && e.TargetID == targetID {
			e := e
			out = append(out, &e)
		}
	}
	return out, nil
}
