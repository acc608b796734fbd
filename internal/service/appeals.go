package service

import (
	"context"
	"fmt"

	"warden/internal/enforcement"
	"warden/internal/models"
	"warden/internal/observability"
	"warden/internal/repository"
	"warden/internal/trust"

	"go.opentelemetry.io/otel/attribute"
)

// reputationAppealRejected is the reputation cost of a rejected appeal.
const reputationAppealRejected = 5

// SubmitAppeal lets the subject's owner contest an actioned or dismissed
// case. A case holds at most one pending appeal.
func (s *CaseService) SubmitAppeal(ctx context.Context, caseID, appellantID, note string) (_ *models.ModerationAppeal, err error) {
	span, ctx := observability.NewSpan(ctx, "CaseService.SubmitAppeal")
	defer func() {
		span.SetError(err)
		span.End()
	}()
	span.AddAttributes(attribute.String("case.id", caseID))

	c, err := s.Repo.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Status != models.CaseActioned && c.Status != models.CaseDismissed {
		return nil, models.WithDetail(models.ErrAppealNotAllowed, fmt.Errorf("case %s is %s", c.ID, c.Status))
	}
	owner, err := s.resolveOwnerStrict(ctx, c)
	if err != nil {
		return nil, err
	}
	if owner == "" || owner != appellantID {
		return nil, models.WithDetail(models.ErrAppealNotAllowed, fmt.Errorf("user %s does not own %s", appellantID, c.SubjectKey()))
	}

	var appeal *models.ModerationAppeal
	err = s.Repo.Transaction(ctx, func(tx repository.ModerationRepository) error {
		cur, err := tx.GetCase(ctx, caseID)
		if err != nil {
			return err
		}
		if cur.Status != models.CaseActioned && cur.Status != models.CaseDismissed {
			return models.WithDetail(models.ErrAppealNotAllowed, fmt.Errorf("case %s is %s", cur.ID, cur.Status))
		}
		c = cur
		pending, err := tx.FindPendingAppeal(ctx, c.ID)
		if err != nil {
			return err
		}
		if pending != nil {
			return models.WithDetail(models.ErrAppealAlreadyOpen, fmt.Errorf("appeal %s", pending.ID))
		}
		appeal = &models.ModerationAppeal{
			CaseID:      c.ID,
			AppellantID: appellantID,
			Note:        note,
			Status:      models.AppealPending,
		}
		if err := tx.CreateAppeal(ctx, appeal); err != nil {
			return err
		}
		c.AppealOpen = true
		c.AppealedBy = appellantID
		c.AppealNote = note
		if err := tx.UpdateCase(ctx, c); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, &models.AuditLogEntry{
			ActorID:    appellantID,
			Action:     AuditAppealSubmitted,
			TargetType: enforcement.AuditTargetCase,
			TargetID:   c.ID,
			Meta:       models.Payload{"appeal_id": appeal.ID},
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, s.cfg.AppealsStream, map[string]string{
		"appeal_id":    appeal.ID,
		"case_id":      c.ID,
		"appellant_id": appellantID,
	})
	s.notify(ctx, appellantID, NotifyAppealReceived, appeal.ID, appellantID, models.Payload{"case_id": c.ID})
	return appeal, nil
}

// ResolveAppeal accepts or rejects a pending appeal and closes its case.
// Accepting reverts every action recorded on the case; reverter failures
// are handled by the failure policy and never undo the resolution.
func (s *CaseService) ResolveAppeal(ctx context.Context, appealID string, accept bool, actorID, note string) (_ *models.ModerationAppeal, err error) {
	span, ctx := observability.NewSpan(ctx, "CaseService.ResolveAppeal")
	defer func() {
		span.SetError(err)
		span.End()
	}()
	span.AddAttributes(attribute.String("appeal.id", appealID), attribute.Bool("appeal.accept", accept))

	var appeal *models.ModerationAppeal
	var c *models.ModerationCase
	err = s.Repo.Transaction(ctx, func(tx repository.ModerationRepository) error {
		a, err := tx.GetAppeal(ctx, appealID)
		if err != nil {
			return err
		}
		if a.Status != models.AppealPending {
			return models.WithDetail(models.ErrAppealNotFound, fmt.Errorf("appeal %s is %s", a.ID, a.Status))
		}
		cs, err := tx.GetCase(ctx, a.CaseID)
		if err != nil {
			return err
		}
		now := s.now()
		a.Status = models.AppealRejected
		auditAction := AuditAppealRejected
		if accept {
			a.Status = models.AppealAccepted
			auditAction = AuditAppealAccepted
		}
		a.ResolvedBy = actorID
		a.ResolutionNote = note
		a.ResolvedAt = &now
		if err := tx.UpdateAppeal(ctx, a); err != nil {
			return err
		}
		cs.AppealOpen = false
		if err := enforcement.Transition(cs, models.CaseClosed, now); err != nil {
			return err
		}
		if err := tx.UpdateCase(ctx, cs); err != nil {
			return err
		}
		appeal, c = a, cs
		return tx.AppendAudit(ctx, &models.AuditLogEntry{
			ActorID:    actorID,
			Action:     auditAction,
			TargetType: enforcement.AuditTargetCase,
			TargetID:   cs.ID,
			Meta:       models.Payload{"appeal_id": a.ID, "note": note},
		})
	})
	if err != nil {
		return nil, err
	}

	trustDelta, repDelta, reason := trust.AppealRejected, reputationAppealRejected, "appeal_rejected"
	if accept {
		trustDelta, repDelta, reason = trust.AppealAccepted, -c.Severity*ReputationPerSeverity, "appeal_accepted"
		s.revertActions(ctx, c, actorID)
	}
	s.adjustTrust(ctx, []string{appeal.AppellantID}, trustDelta, reason)
	if s.Reputation != nil && repDelta != 0 {
		bestEffort(ctx, s.Failures, "reputation_record", map[string]interface{}{"user_id": appeal.AppellantID, "case_id": c.ID}, func() error {
			_, err := s.Reputation.Record(ctx, appeal.AppellantID, repDelta, reason, models.Payload{"case_id": c.ID, "appeal_id": appeal.ID})
			return err
		})
	}
	s.notify(ctx, appeal.AppellantID, NotifyAppealResolved, appeal.ID, actorID, models.Payload{
		"case_id": c.ID,
		"status":  string(appeal.Status),
	})
	return appeal, nil
}

// revertActions undoes every recorded action of c and audits the outcome.
func (s *CaseService) revertActions(ctx context.Context, c *models.ModerationCase, actorID string) {
	actions, err := s.Repo.ListActions(ctx, c.ID)
	if err != nil {
		s.Failures.Handle(ctx, "list_actions", err, map[string]interface{}{"case_id": c.ID})
		return
	}
	var reverted, failed []string
	for _, a := range actions {
		fields := map[string]interface{}{"case_id": c.ID, "action": string(a.Action)}
		ok := bestEffort(ctx, s.Failures, "revert_"+string(a.Action), fields, func() error {
			return s.revert(ctx, c, a, actorID)
		})
		if ok {
			reverted = append(reverted, string(a.Action))
		} else {
			failed = append(failed, string(a.Action))
		}
	}
	bestEffort(ctx, s.Failures, "audit", map[string]interface{}{"case_id": c.ID}, func() error {
		return s.Repo.AppendAudit(ctx, &models.AuditLogEntry{
			ActorID:    actorID,
			Action:     AuditActionsReverted,
			TargetType: enforcement.AuditTargetCase,
			TargetID:   c.ID,
			Meta:       models.Payload{"reverted": reverted, "failed": failed},
		})
	})
}

func (s *CaseService) revert(ctx context.Context, c *models.ModerationCase, a *models.ModerationAction, actorID string) error {
	switch {
	case a.Action.IsContent():
		if s.Content == nil {
			return fmt.Errorf("no content restorer configured")
		}
		return s.Content.RestoreContent(ctx, c.SubjectType, c.SubjectID, a.Action)
	case a.Action.IsMembership():
		if s.Memberships == nil {
			return fmt.Errorf("no membership restorer configured")
		}
		return s.Memberships.RestoreMembership(ctx, a.Payload.String("group_id"), a.Payload.String("user_id"), a.Action)
	case a.Action == models.ActionRestrictCreate:
		if s.Revoker == nil {
			return fmt.Errorf("no restriction revoker configured")
		}
		for _, id := range enforcement.RestrictionIDs(a) {
			if err := s.Revoker.Revoke(ctx, id, actorID); err != nil {
				return fmt.Errorf("revoke %s: %w", id, err)
			}
		}
	}
	return nil
}

// resolveOwnerStrict is owner resolution for authorization: resolver
// errors are returned rather than swallowed.
func (s *CaseService) resolveOwnerStrict(ctx context.Context, c *models.ModerationCase) (string, error) {
	if owner := s.inferOwner(c); owner != "" {
		return owner, nil
	}
	if s.Subjects == nil {
		return "", models.WithDetail(models.ErrAppealNotAllowed, fmt.Errorf("owner of %s unknown", c.SubjectKey()))
	}
	owner, err := s.Subjects.ResolveOwner(ctx, c.SubjectType, c.SubjectID)
	if err != nil {
		return "", fmt.Errorf("resolve owner of %s: %w", c.SubjectKey(), err)
	}
	return owner, nil
}
