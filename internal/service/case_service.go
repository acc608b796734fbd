package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"warden/internal/enforcement"
	"warden/internal/models"
	"warden/internal/observability"
	"warden/internal/policy"
	"warden/internal/repository"
	"warden/internal/streams"
	"warden/internal/trust"

	"go.opentelemetry.io/otel/attribute"
)

// ManualPolicyID marks decisions taken by a moderator.
const ManualPolicyID = "manual"

// Audit action names written by the workflow.
const (
	AuditReportSubmitted = "report.submitted"
	AuditCaseAssigned    = "case.assigned"
	AuditCaseEscalated   = "case.escalated"
	AuditCaseDismissed   = "case.dismissed"
	AuditAppealSubmitted = "appeal.submitted"
	AuditAppealAccepted  = "appeal.accepted"
	AuditAppealRejected  = "appeal.rejected"
	AuditActionsReverted = "appeal.reverted"
)

// CaseServiceConfig tunes the workflow.
type CaseServiceConfig struct {
	MaxOpenReports      int
	EscalationThreshold int
	ReportsStream       string
	AppealsStream       string
	EscalationsStream   string
}

// CaseServiceDeps are the collaborators of a CaseService. Streams,
// Notifier and the restorers may be nil.
type CaseServiceDeps struct {
	Repo        repository.ModerationRepository
	Enforcer    Enforcer
	Trust       trust.Ledger
	Reputation  ReputationRecorder
	Subjects    SubjectResolver
	Handles     HandleResolver
	Notifier    Notifier
	Streams     streams.Publisher
	Content     ContentRestorer
	Memberships MembershipRestorer
	Revoker     RestrictionRevoker
	Failures    FailurePolicy
}

// CaseService runs the report, case and appeal workflow.
type CaseService struct {
	CaseServiceDeps
	cfg CaseServiceConfig
	log *observability.StructuredLogger
	now func() time.Time
}

// NewCaseService creates a CaseService; zero config values take defaults.
func NewCaseService(deps CaseServiceDeps, cfg CaseServiceConfig) *CaseService {
	if cfg.MaxOpenReports <= 0 {
		cfg.MaxOpenReports = 3
	}
	if cfg.EscalationThreshold <= 0 {
		cfg.EscalationThreshold = 4
	}
	if deps.Failures == nil {
		deps.Failures = NewLogAndContinue()
	}
	return &CaseService{CaseServiceDeps: deps, cfg: cfg, log: observability.NewStructuredLogger(), now: time.Now}
}

// SubmitReportInput is a user report against a subject. For user
// subjects Handle may replace SubjectID.
type SubmitReportInput struct {
	ReporterID  string `json:"-"`
	SubjectType string `json:"subject_type"`
	SubjectID   string `json:"subject_id"`
	Handle      string `json:"handle,omitempty"`
	Reason      string `json:"reason"`
	Details     string `json:"details,omitempty"`
}

// SubmitReport files a report, opening a case for the subject if needed.
func (s *CaseService) SubmitReport(ctx context.Context, in SubmitReportInput) (_ *models.ModerationReport, err error) {
	span, ctx := observability.NewSpan(ctx, "CaseService.SubmitReport")
	defer func() {
		span.SetError(err)
		span.End()
	}()

	in.SubjectType = strings.TrimSpace(in.SubjectType)
	in.Reason = strings.TrimSpace(in.Reason)
	if in.ReporterID == "" || in.SubjectType == "" || in.Reason == "" {
		return nil, models.NewValidationError("reporter, subject_type and reason are required")
	}
	subjectID, err := s.canonicalSubject(ctx, in)
	if err != nil {
		return nil, err
	}
	span.AddAttributes(attribute.String("subject.type", in.SubjectType), attribute.String("subject.id", subjectID))

	var report *models.ModerationReport
	err = s.Repo.Transaction(ctx, func(tx repository.ModerationRepository) error {
		if err := tx.LockReporter(ctx, in.ReporterID); err != nil {
			return fmt.Errorf("lock reporter: %w", err)
		}
		open, err := tx.CountOpenReportsByReporter(ctx, in.ReporterID)
		if err != nil {
			return fmt.Errorf("count open reports: %w", err)
		}
		if open >= int64(s.cfg.MaxOpenReports) {
			return models.WithDetail(models.ErrReportLimitExceeded, fmt.Errorf("reporter %s has %d open reports", in.ReporterID, open))
		}
		c, created, err := tx.UpsertCase(ctx, repository.CaseUpsert{SubjectType: in.SubjectType, SubjectID: subjectID})
		if err != nil {
			return err
		}
		if created {
			c.Reason = in.Reason
			if err := tx.UpdateCase(ctx, c); err != nil {
				return err
			}
		}
		report = &models.ModerationReport{
			CaseID:      c.ID,
			ReporterID:  in.ReporterID,
			SubjectType: in.SubjectType,
			SubjectID:   subjectID,
			Reason:      in.Reason,
			Details:     in.Details,
			Status:      models.ReportOpen,
		}
		if err := tx.CreateReport(ctx, report); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, &models.AuditLogEntry{
			ActorID:    in.ReporterID,
			Action:     AuditReportSubmitted,
			TargetType: enforcement.AuditTargetCase,
			TargetID:   c.ID,
			Meta:       models.Payload{"report_id": report.ID, "reason": in.Reason},
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, s.cfg.ReportsStream, map[string]string{
		"report_id":    report.ID,
		"case_id":      report.CaseID,
		"reporter_id":  report.ReporterID,
		"subject_type": report.SubjectType,
		"subject_id":   report.SubjectID,
		"reason":       report.Reason,
	})
	s.log.LogServiceCall(ctx, "CaseService", "SubmitReport", map[string]interface{}{
		"case_id":   report.CaseID,
		"report_id": report.ID,
	})
	return report, nil
}

func (s *CaseService) canonicalSubject(ctx context.Context, in SubmitReportInput) (string, error) {
	id := strings.TrimSpace(in.SubjectID)
	handle := strings.TrimSpace(in.Handle)
	if in.SubjectType == "user" && handle == "" && strings.HasPrefix(id, "@") {
		handle, id = id, ""
	}
	if handle != "" && id == "" {
		if in.SubjectType != "user" {
			return "", models.NewValidationError("handle is only accepted for user subjects")
		}
		if s.Handles == nil {
			return "", models.NewValidationError("handle resolution is not available")
		}
		resolved, err := s.Handles.ResolveHandle(ctx, strings.TrimPrefix(handle, "@"))
		if err != nil {
			return "", fmt.Errorf("resolve handle %s: %w", handle, err)
		}
		id = resolved
	}
	if id == "" {
		return "", models.NewValidationError("subject_id is required")
	}
	return id, nil
}

// AssignCase hands a case to a moderator.
func (s *CaseService) AssignCase(ctx context.Context, caseID, assigneeID, actorID string) (*models.ModerationCase, error) {
	if assigneeID == "" {
		return nil, models.NewValidationError("assignee is required")
	}
	var out *models.ModerationCase
	err := s.Repo.Transaction(ctx, func(tx repository.ModerationRepository) error {
		c, err := tx.GetCase(ctx, caseID)
		if err != nil {
			return err
		}
		if c.Status == models.CaseClosed {
			return models.WithDetail(models.ErrInvalidTransition, fmt.Errorf("case %s is closed", caseID))
		}
		previous := c.AssignedTo
		c.AssignedTo = assigneeID
		if err := tx.UpdateCase(ctx, c); err != nil {
			return err
		}
		out = c
		return tx.AppendAudit(ctx, &models.AuditLogEntry{
			ActorID:    actorID,
			Action:     AuditCaseAssigned,
			TargetType: enforcement.AuditTargetCase,
			TargetID:   c.ID,
			Meta:       models.Payload{"assignee": assigneeID, "previous": previous},
		})
	})
	return out, err
}

// EscalateCase raises a case's escalation level. Cases at or above the
// escalation threshold are published to the escalations stream.
func (s *CaseService) EscalateCase(ctx context.Context, caseID, actorID, note string) (_ *models.ModerationCase, err error) {
	span, ctx := observability.NewSpan(ctx, "CaseService.EscalateCase")
	defer func() {
		span.SetError(err)
		span.End()
	}()

	var out *models.ModerationCase
	err = s.Repo.Transaction(ctx, func(tx repository.ModerationRepository) error {
		c, err := tx.GetCase(ctx, caseID)
		if err != nil {
			return err
		}
		// escalated -> closed is not a transition, so a pending appeal
		// could never be resolved.
		if c.AppealOpen {
			return models.WithDetail(models.ErrInvalidTransition, fmt.Errorf("case %s has a pending appeal", c.ID))
		}
		if c.Status != models.CaseEscalated {
			if err := enforcement.Transition(c, models.CaseEscalated, s.now()); err != nil {
				return err
			}
		}
		c.EscalationLevel++
		if err := tx.UpdateCase(ctx, c); err != nil {
			return err
		}
		out = c
		return tx.AppendAudit(ctx, &models.AuditLogEntry{
			ActorID:    actorID,
			Action:     AuditCaseEscalated,
			TargetType: enforcement.AuditTargetCase,
			TargetID:   c.ID,
			Meta:       models.Payload{"level": c.EscalationLevel, "note": note},
		})
	})
	if err != nil {
		return nil, err
	}

	if out.Severity >= s.cfg.EscalationThreshold {
		s.publish(ctx, s.cfg.EscalationsStream, map[string]string{
			"case_id":      out.ID,
			"subject_type": out.SubjectType,
			"subject_id":   out.SubjectID,
			"severity":     strconv.Itoa(out.Severity),
			"level":        strconv.Itoa(out.EscalationLevel),
			"actor_id":     actorID,
		})
	}
	if out.AssignedTo != "" && out.AssignedTo != actorID {
		s.notify(ctx, out.AssignedTo, NotifyCaseEscalated, out.ID, actorID, models.Payload{"level": out.EscalationLevel, "note": note})
	}
	return out, nil
}

// DismissCase closes out a case without action and resolves its reports.
// Each reporter loses trust.
func (s *CaseService) DismissCase(ctx context.Context, caseID, actorID, note string) (*models.ModerationCase, error) {
	var out *models.ModerationCase
	var reporters []string
	err := s.Repo.Transaction(ctx, func(tx repository.ModerationRepository) error {
		c, err := tx.GetCase(ctx, caseID)
		if err != nil {
			return err
		}
		if err := enforcement.Transition(c, models.CaseDismissed, s.now()); err != nil {
			return err
		}
		if err := tx.UpdateCase(ctx, c); err != nil {
			return err
		}
		reporters, err = tx.ResolveReports(ctx, c.ID, models.ReportDismissed)
		if err != nil {
			return err
		}
		out = c
		return tx.AppendAudit(ctx, &models.AuditLogEntry{
			ActorID:    actorID,
			Action:     AuditCaseDismissed,
			TargetType: enforcement.AuditTargetCase,
			TargetID:   c.ID,
			Meta:       models.Payload{"note": note, "reports": len(reporters)},
		})
	})
	if err != nil {
		return nil, err
	}
	s.adjustTrust(ctx, reporters, trust.ReporterDismissed, "report_dismissed")
	return out, nil
}

// PerformActionInput is a moderator's manual action on a case.
type PerformActionInput struct {
	CaseID   string         `json:"-"`
	ActorID  string         `json:"-"`
	Action   string         `json:"action"`
	Payload  models.Payload `json:"payload,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Severity int            `json:"severity,omitempty"`
}

// PerformCaseAction dispatches a manual action through the coordinator,
// resolves the case's open reports and records reputation against the
// subject's owner.
func (s *CaseService) PerformCaseAction(ctx context.Context, in PerformActionInput) (_ *models.ModerationCase, err error) {
	span, ctx := observability.NewSpan(ctx, "CaseService.PerformCaseAction")
	defer func() {
		span.SetError(err)
		span.End()
	}()

	action, err := models.ParseAction(in.Action)
	if err != nil {
		return nil, models.WithDetail(models.NewValidationError("unknown action"), err)
	}
	if action == models.ActionNone {
		return nil, models.NewValidationError("action is required")
	}
	c, err := s.Repo.GetCase(ctx, in.CaseID)
	if err != nil {
		return nil, err
	}
	if c.Status == models.CaseClosed {
		return nil, models.WithDetail(models.ErrInvalidTransition, fmt.Errorf("case %s is closed", c.ID))
	}

	payload := in.Payload.Clone()
	owner := s.owner(ctx, c)
	switch {
	case action.IsMembership():
		if payload, err = InferMembershipContext(c, payload); err != nil {
			return nil, err
		}
		if owner == "" {
			owner = payload.String("user_id")
		}
	case action == models.ActionWarn || action == models.ActionRestrictCreate:
		if payload.String("user_id") == "" {
			if owner == "" {
				return nil, models.NewValidationError(string(action) + " requires user_id")
			}
			payload["user_id"] = owner
		}
	}

	severity := in.Severity
	if severity <= 0 {
		severity = c.Severity
	}
	reason := in.Reason
	if reason == "" {
		reason = c.Reason
	}
	d := policy.Decision{
		Action:   action,
		Severity: severity,
		Reason:   reason,
		Payload:  payload,
		RuleID:   ManualPolicyID,
		PolicyID: ManualPolicyID,
	}
	updated, err := s.Enforcer.ApplyDecision(ctx, enforcement.Subject{Type: c.SubjectType, ID: c.SubjectID, OwnerID: owner}, d, in.ActorID)
	if err != nil {
		return nil, err
	}

	reporters, err := s.Repo.ResolveReports(ctx, c.ID, models.ReportResolved)
	if err != nil {
		return nil, fmt.Errorf("resolve reports: %w", err)
	}
	s.adjustTrust(ctx, reporters, trust.ReporterActioned, "report_actioned")

	if owner != "" && s.Reputation != nil && severity > 0 {
		bestEffort(ctx, s.Failures, "reputation_record", map[string]interface{}{"user_id": owner, "case_id": c.ID}, func() error {
			_, err := s.Reputation.Record(ctx, owner, severity*ReputationPerSeverity, "case_actioned", models.Payload{
				"case_id": c.ID,
				"action":  string(action),
			})
			return err
		})
	}
	return updated, nil
}

// InferMembershipContext fills group_id and user_id for mute and ban from
// the case subject. Membership subjects carry "{group}:{user}"; user
// subjects supply only the user.
func InferMembershipContext(c *models.ModerationCase, payload models.Payload) (models.Payload, error) {
	out := payload.Clone()
	switch c.SubjectType {
	case "membership", "group_member":
		group, user, ok := strings.Cut(c.SubjectID, ":")
		if ok {
			if out.String("group_id") == "" && group != "" {
				out["group_id"] = group
			}
			if out.String("user_id") == "" && user != "" {
				out["user_id"] = user
			}
		}
	case "user":
		if out.String("user_id") == "" {
			out["user_id"] = c.SubjectID
		}
	}
	if out.String("group_id") == "" || out.String("user_id") == "" {
		return nil, models.WithDetail(models.ErrMembershipContextMissing, fmt.Errorf("case %s subject %s", c.ID, c.SubjectKey()))
	}
	return out, nil
}

// GetCase returns a case by id.
func (s *CaseService) GetCase(ctx context.Context, id string) (*models.ModerationCase, error) {
	return s.Repo.GetCase(ctx, id)
}

// ListCases lists cases matching filter.
func (s *CaseService) ListCases(ctx context.Context, filter models.CaseFilter) ([]*models.ModerationCase, error) {
	return s.Repo.ListCases(ctx, filter)
}

// ListCaseActions lists the actions recorded for a case.
func (s *CaseService) ListCaseActions(ctx context.Context, caseID string) ([]*models.ModerationAction, error) {
	if _, err := s.Repo.GetCase(ctx, caseID); err != nil {
		return nil, err
	}
	return s.Repo.ListActions(ctx, caseID)
}

// ListAudit returns a case's audit trail.
func (s *CaseService) ListAudit(ctx context.Context, caseID string) ([]*models.AuditLogEntry, error) {
	if _, err := s.Repo.GetCase(ctx, caseID); err != nil {
		return nil, err
	}
	return s.Repo.ListAudit(ctx, enforcement.AuditTargetCase, caseID)
}

// inferOwner reads the owner off user and membership subjects.
func (s *CaseService) inferOwner(c *models.ModerationCase) string {
	switch c.SubjectType {
	case "user":
		return c.SubjectID
	case "membership", "group_member":
		if _, user, ok := strings.Cut(c.SubjectID, ":"); ok {
			return user
		}
	}
	return ""
}

// owner resolves the subject's owner, or "" when unknown.
func (s *CaseService) owner(ctx context.Context, c *models.ModerationCase) string {
	if owner := s.inferOwner(c); owner != "" {
		return owner
	}
	if s.Subjects == nil {
		return ""
	}
	owner, err := s.Subjects.ResolveOwner(ctx, c.SubjectType, c.SubjectID)
	if err != nil {
		s.Failures.Handle(ctx, "resolve_owner", err, map[string]interface{}{"case_id": c.ID})
		return ""
	}
	return owner
}

func (s *CaseService) adjustTrust(ctx context.Context, users []string, delta int, reason string) {
	if s.Trust == nil {
		return
	}
	for _, u := range users {
		bestEffort(ctx, s.Failures, "trust_adjust", map[string]interface{}{"user_id": u, "reason": reason}, func() error {
			_, err := s.Trust.Adjust(ctx, u, delta)
			return err
		})
	}
}

func (s *CaseService) publish(ctx context.Context, stream string, fields map[string]string) {
	if s.Streams == nil || stream == "" {
		return
	}
	bestEffort(ctx, s.Failures, "stream_publish", map[string]interface{}{"stream": stream}, func() error {
		_, err := s.Streams.Publish(ctx, stream, fields)
		return err
	})
}

func (s *CaseService) notify(ctx context.Context, userID, kind, refID, actorID string, payload models.Payload) {
	if s.Notifier == nil || userID == "" {
		return
	}
	bestEffort(ctx, s.Failures, "notify", map[string]interface{}{"user_id": userID, "kind": kind}, func() error {
		return s.Notifier.PersistNotification(ctx, userID, kind, refID, actorID, payload)
	})
}
