package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"warden/internal/detectors"
	"warden/internal/enforcement"
	"warden/internal/models"
	"warden/internal/policy"
	"warden/internal/repository"
	"warden/internal/restrictions"
	"warden/internal/thresholds"
	"warden/internal/trust"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type contentHooksStub struct {
	mu    sync.Mutex
	calls []string
}

func (h *contentHooksStub) record(a models.Action, c *models.ModerationCase) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, fmt.Sprintf("%s:%s", a, c.SubjectKey()))
	return nil
}

func (h *contentHooksStub) Tombstone(_ context.Context, c *models.ModerationCase, _ models.Payload) error {
	return h.record(models.ActionTombstone, c)
}
func (h *contentHooksStub) Remove(_ context.Context, c *models.ModerationCase, _ models.Payload) error {
	return h.record(models.ActionRemove, c)
}
func (h *contentHooksStub) ShadowHide(_ context.Context, c *models.ModerationCase, _ models.Payload) error {
	return h.record(models.ActionShadowHide, c)
}
func (h *contentHooksStub) Mute(_ context.Context, c *models.ModerationCase, _ models.Payload) error {
	return h.record(models.ActionMute, c)
}
func (h *contentHooksStub) Ban(_ context.Context, c *models.ModerationCase, _ models.Payload) error {
	return h.record(models.ActionBan, c)
}

type restrictionStub struct {
	applied []restrictions.ApplyInput
	revoked []string
}

func (r *restrictionStub) Apply(_ context.Context, in restrictions.ApplyInput) (*models.Restriction, error) {
	r.applied = append(r.applied, in)
	return &models.Restriction{ID: fmt.Sprintf("r%d", len(r.applied)), UserID: in.UserID, Mode: in.Mode}, nil
}

func (r *restrictionStub) Revoke(_ context.Context, id, _ string) error {
	r.revoked = append(r.revoked, id)
	return nil
}

type restorerStub struct {
	restoreContentFn    func(context.Context, string, string, models.Action) error
	restoreMembershipFn func(context.Context, string, string, models.Action) error
	content             []string
	memberships         []string
}

func (r *restorerStub) RestoreContent(ctx context.Context, subjectType, subjectID string, a models.Action) error {
	r.content = append(r.content, fmt.Sprintf("%s:%s:%s", a, subjectType, subjectID))
	if r.restoreContentFn != nil {
		return r.restoreContentFn(ctx, subjectType, subjectID, a)
	}
	return nil
}

func (r *restorerStub) RestoreMembership(ctx context.Context, groupID, userID string, a models.Action) error {
	r.memberships = append(r.memberships, fmt.Sprintf("%s:%s:%s", a, groupID, userID))
	if r.restoreMembershipFn != nil {
		return r.restoreMembershipFn(ctx, groupID, userID, a)
	}
	return nil
}

type ownersStub map[string]string

func (o ownersStub) ResolveOwner(_ context.Context, subjectType, subjectID string) (string, error) {
	owner, ok := o[subjectType+":"+subjectID]
	if !ok {
		return "", errors.New("subject not found")
	}
	return owner, nil
}

type handlesStub map[string]string

func (h handlesStub) ResolveHandle(_ context.Context, handle string) (string, error) {
	id, ok := h[handle]
	if !ok {
		return "", errors.New("unknown handle")
	}
	return id, nil
}

type publisherStub struct {
	mu        sync.Mutex
	published map[string][]map[string]string
}

func (p *publisherStub) Publish(_ context.Context, stream string, fields map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.published == nil {
		p.published = make(map[string][]map[string]string)
	}
	p.published[stream] = append(p.published[stream], fields)
	return fmt.Sprintf("%d-0", len(p.published[stream])), nil
}

type notifierStub struct {
	kinds []string
}

func (n *notifierStub) PersistNotification(_ context.Context, userID, kind, _, _ string, _ models.Payload) error {
	n.kinds = append(n.kinds, userID+":"+kind)
	return nil
}

type failureRecorder struct {
	ops []string
}

func (f *failureRecorder) Handle(_ context.Context, operation string, _ error, _ map[string]interface{}) {
	f.ops = append(f.ops, operation)
}

type harness struct {
	repo         *repository.MemoryModerationRepository
	ledger       *trust.TrustLedger
	reputation   *trust.ReputationService
	hooks        *contentHooksStub
	restrictions *restrictionStub
	restorer     *restorerStub
	publisher    *publisherStub
	notifier     *notifierStub
	failures     *failureRecorder
	svc          *CaseService
	pipeline     *Pipeline
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		repo:         repository.NewMemoryModerationRepository(),
		hooks:        &contentHooksStub{},
		restrictions: &restrictionStub{},
		restorer:     &restorerStub{},
		publisher:    &publisherStub{},
		notifier:     &notifierStub{},
		failures:     &failureRecorder{},
	}
	scores := repository.NewMemoryReputationRepository()
	h.ledger = trust.NewTrustLedger(scores)
	h.reputation = trust.NewReputationService(scores, trust.ReputationConfig{})

	engine := enforcement.NewEngineHooks(h.hooks, h.restrictions, h.notifier)
	coord := enforcement.NewCoordinator(h.repo, engine)
	h.svc = NewCaseService(CaseServiceDeps{
		Repo:        h.repo,
		Enforcer:    coord,
		Trust:       h.ledger,
		Reputation:  h.reputation,
		Subjects:    ownersStub{"post:p1": "author", "post:p2": "author", "comment:c1": "commenter"},
		Handles:     handlesStub{"alice": "user-alice"},
		Notifier:    h.notifier,
		Streams:     h.publisher,
		Content:     h.restorer,
		Memberships: h.restorer,
		Revoker:     h.restrictions,
		Failures:    h.failures,
	}, CaseServiceConfig{
		ReportsStream:     "reports",
		AppealsStream:     "appeals",
		EscalationsStream: "escalations",
	})

	suite := detectors.NewDefaultSuite(detectors.Config{Counters: detectors.NewMemCounterStore(1024, time.Hour)})
	h.pipeline = NewPipeline(suite, policy.DefaultPolicy(), thresholds.Defaults(), coord, h.ledger, h.reputation, h.failures)
	return h
}

func trustOf(t *testing.T, h *harness, userID string) int {
	t.Helper()
	s, err := h.ledger.Score(context.Background(), userID)
	require.NoError(t, err)
	return s
}

func TestPipelineEndToEnd(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	trustScore := 15

	res, err := h.pipeline.Process(ctx, detectors.ContentEvent{
		ID:          "ev1",
		ActorID:     "author",
		SubjectType: "post",
		SubjectID:   "p1",
		Text:        "this is bar content",
		TrustScore:  &trustScore,
	})
	require.NoError(t, err)

	assert.Equal(t, detectors.SeverityMedium, res.Signals.String(detectors.SignalTextSeverity))
	assert.Equal(t, models.ActionTombstone, res.Decision.Action)
	assert.Equal(t, 2, res.Decision.Severity)
	assert.Equal(t, "profanity", res.Decision.Reason)

	require.NotNil(t, res.Case)
	assert.Equal(t, models.CaseActioned, res.Case.Status)
	assert.Equal(t, []string{"tombstone:post:p1"}, h.hooks.calls)

	audit, err := h.svc.ListAudit(ctx, res.Case.ID)
	require.NoError(t, err)
	assert.Len(t, audit, 1)

	rep, err := h.reputation.Get(ctx, "author")
	require.NoError(t, err)
	assert.Equal(t, trust.DefaultReputation+2*ReputationPerSeverity, rep.Score)
}

func TestPipelineCleanContent(t *testing.T) {
	h := newHarness(t)
	res, err := h.pipeline.Process(context.Background(), detectors.ContentEvent{
		ActorID: "author", SubjectType: "post", SubjectID: "p9", Text: "hello there",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ActionNone, res.Decision.Action)
	assert.Nil(t, res.Case)
	assert.Empty(t, h.hooks.calls)
}

func TestPipelineAppliesTextAndURLThresholds(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	res, err := h.pipeline.Process(ctx, detectors.ContentEvent{
		ActorID: "author", SubjectType: "post", SubjectID: "t1", Text: "polite words",
		Scores: map[string]float64{"hate": 0.91},
	})
	require.NoError(t, err)
	assert.Equal(t, string(models.SafetyBlocked), res.Signals.String(policy.TextStatusPath))
	assert.Equal(t, "text.blocked", res.Decision.RuleID)
	assert.Equal(t, models.ActionRemove, res.Decision.Action)

	res, err = h.pipeline.Process(ctx, detectors.ContentEvent{
		ActorID: "author", SubjectType: "post", SubjectID: "t2", Text: "see https://risky.example/offer",
		URLRisk: map[string]float64{"risky.example": 0.95},
	})
	require.NoError(t, err)
	assert.Equal(t, string(models.SafetyBlocked), res.Signals.String(policy.LinksStatusPath))
	assert.Equal(t, "links.blocked", res.Decision.RuleID)

	res, err = h.pipeline.Process(ctx, detectors.ContentEvent{
		ActorID: "author", SubjectType: "post", SubjectID: "t3", Text: "see https://fine.example",
		Scores:  map[string]float64{"toxicity": 0.75},
		URLRisk: map[string]float64{"fine.example": 0.6},
	})
	require.NoError(t, err)
	assert.Equal(t, string(models.SafetyNeedsReview), res.Signals.String(policy.TextStatusPath))
	assert.Equal(t, string(models.SafetyNeedsReview), res.Signals.String(policy.LinksStatusPath))
	assert.Equal(t, models.ActionNone, res.Decision.Action)

	assert.Equal(t, []string{"remove:post:t1", "remove:post:t2"}, h.hooks.calls)
}

func TestPipelineRejectsIncompleteEvents(t *testing.T) {
	h := newHarness(t)
	_, err := h.pipeline.Process(context.Background(), detectors.ContentEvent{ActorID: "a", Text: "x"})
	assert.Error(t, err)
}

func TestPipelineLowTrustVelocityRestricts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.ledger.Adjust(ctx, "spammer", -45)
	require.NoError(t, err)

	var last *PipelineResult
	for i := 0; i < 3; i++ {
		last, err = h.pipeline.Process(ctx, detectors.ContentEvent{
			ActorID: "spammer", SubjectType: "post", SubjectID: fmt.Sprintf("s%d", i), Text: fmt.Sprintf("message number %d", i),
		})
		require.NoError(t, err)
	}
	assert.Equal(t, models.ActionRestrictCreate, last.Decision.Action)
	require.Len(t, h.restrictions.applied, 1)
	assert.Equal(t, "spammer", h.restrictions.applied[0].UserID)
	assert.Equal(t, models.ModeCooldown, h.restrictions.applied[0].Mode)
}

func TestProcessMedia(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	att := &models.Attachment{ID: "a1", OwnerID: "author", SubjectType: "post", SubjectID: "p2"}
	res, err := h.pipeline.ProcessMedia(ctx, att, thresholds.Result{Status: models.SafetyQuarantined, Level: thresholds.LevelHigh})
	require.NoError(t, err)
	assert.Equal(t, models.ActionShadowHide, res.Decision.Action)
	assert.Equal(t, []string{"shadow_hide:post:p2"}, h.hooks.calls)

	loose := &models.Attachment{ID: "a2", OwnerID: "author"}
	res, err = h.pipeline.ProcessMedia(ctx, loose, thresholds.Result{Status: models.SafetyNeedsReview})
	require.NoError(t, err)
	require.NotNil(t, res.Case)
	assert.Equal(t, "attachment", res.Case.SubjectType)
	assert.Equal(t, models.CaseOpen, res.Case.Status)
}

func TestSubmitReport(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	rep, err := h.svc.SubmitReport(ctx, SubmitReportInput{ReporterID: "r1", SubjectType: "post", SubjectID: "p1", Reason: "spam"})
	require.NoError(t, err)
	assert.Equal(t, models.ReportOpen, rep.Status)

	c, err := h.svc.GetCase(ctx, rep.CaseID)
	require.NoError(t, err)
	assert.Equal(t, models.CaseOpen, c.Status)
	assert.Equal(t, "spam", c.Reason)
	require.Len(t, h.publisher.published["reports"], 1)
	assert.Equal(t, rep.CaseID, h.publisher.published["reports"][0]["case_id"])

	// a second reporter joins the same case
	other, err := h.svc.SubmitReport(ctx, SubmitReportInput{ReporterID: "r2", SubjectType: "post", SubjectID: "p1", Reason: "abuse"})
	require.NoError(t, err)
	assert.Equal(t, rep.CaseID, other.CaseID)

	_, err = h.svc.SubmitReport(ctx, SubmitReportInput{ReporterID: "r1", SubjectType: "post", SubjectID: "p1", Reason: "again"})
	assert.ErrorIs(t, err, models.ErrDuplicateReport)

	_, err = h.svc.SubmitReport(ctx, SubmitReportInput{ReporterID: "r1", SubjectType: "post"})
	assert.Error(t, err)
}

func TestSubmitReportCap(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	for i := 0; i < 3; i++ {
		_, err := h.svc.SubmitReport(ctx, SubmitReportInput{ReporterID: "r1", SubjectType: "post", SubjectID: fmt.Sprintf("x%d", i), Reason: "spam"})
		require.NoError(t, err)
	}
	_, err := h.svc.SubmitReport(ctx, SubmitReportInput{ReporterID: "r1", SubjectType: "post", SubjectID: "x4", Reason: "spam"})
	assert.ErrorIs(t, err, models.ErrReportLimitExceeded)
}

func TestSubmitReportCapHoldsUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.svc.SubmitReport(ctx, SubmitReportInput{ReporterID: "r1", SubjectType: "post", SubjectID: fmt.Sprintf("burst%d", i), Reason: "spam"})
			if err == nil {
				accepted.Add(1)
				return
			}
			assert.ErrorIs(t, err, models.ErrReportLimitExceeded)
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 3, accepted.Load())
	open, err := h.repo.CountOpenReportsByReporter(ctx, "r1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, open)
}

func TestSubmitReportResolvesHandles(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	rep, err := h.svc.SubmitReport(ctx, SubmitReportInput{ReporterID: "r1", SubjectType: "user", SubjectID: "@alice", Reason: "impersonation"})
	require.NoError(t, err)
	assert.Equal(t, "user-alice", rep.SubjectID)

	byHandle, err := h.svc.SubmitReport(ctx, SubmitReportInput{ReporterID: "r2", SubjectType: "user", Handle: "alice", Reason: "impersonation"})
	require.NoError(t, err)
	assert.Equal(t, rep.CaseID, byHandle.CaseID)

	_, err = h.svc.SubmitReport(ctx, SubmitReportInput{ReporterID: "r3", SubjectType: "user", Handle: "nobody", Reason: "x"})
	assert.ErrorContains(t, err, "unknown handle")
}

func TestDismissCasePenalizesReporters(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	rep, err := h.svc.SubmitReport(ctx, SubmitReportInput{ReporterID: "r1", SubjectType: "post", SubjectID: "p1", Reason: "spam"})
	require.NoError(t, err)

	c, err := h.svc.DismissCase(ctx, rep.CaseID, "mod", "not spam")
	require.NoError(t, err)
	assert.Equal(t, models.CaseDismissed, c.Status)
	assert.NotNil(t, c.ResolvedAt)
	assert.Equal(t, 49, trustOf(t, h, "r1"))

	open, err := h.repo.CountOpenReportsByReporter(ctx, "r1")
	require.NoError(t, err)
	assert.Zero(t, open)

	_, err = h.svc.DismissCase(ctx, rep.CaseID, "mod", "")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestAssignAndEscalate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	rep, err := h.svc.SubmitReport(ctx, SubmitReportInput{ReporterID: "r1", SubjectType: "post", SubjectID: "p1", Reason: "spam"})
	require.NoError(t, err)

	c, err := h.svc.AssignCase(ctx, rep.CaseID, "mod2", "mod1")
	require.NoError(t, err)
	assert.Equal(t, "mod2", c.AssignedTo)

	// severity 0 stays off the escalations stream
	c, err = h.svc.EscalateCase(ctx, rep.CaseID, "mod1", "needs senior review")
	require.NoError(t, err)
	assert.Equal(t, models.CaseEscalated, c.Status)
	assert.Equal(t, 1, c.EscalationLevel)
	assert.Empty(t, h.publisher.published["escalations"])
	assert.Contains(t, h.notifier.kinds, "mod2:"+NotifyCaseEscalated)

	_, err = h.svc.PerformCaseAction(ctx, PerformActionInput{CaseID: rep.CaseID, ActorID: "mod2", Action: "remove", Severity: 4})
	require.NoError(t, err)
	c, err = h.svc.EscalateCase(ctx, rep.CaseID, "mod2", "")
	require.NoError(t, err)
	assert.Equal(t, 2, c.EscalationLevel)
	require.Len(t, h.publisher.published["escalations"], 1)
	assert.Equal(t, "4", h.publisher.published["escalations"][0]["severity"])
}

func TestPerformCaseAction(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	rep, err := h.svc.SubmitReport(ctx, SubmitReportInput{ReporterID: "r1", SubjectType: "post", SubjectID: "p1", Reason: "spam"})
	require.NoError(t, err)

	c, err := h.svc.PerformCaseAction(ctx, PerformActionInput{CaseID: rep.CaseID, ActorID: "mod", Action: "tombstone", Severity: 2})
	require.NoError(t, err)
	assert.Equal(t, models.CaseActioned, c.Status)
	assert.Equal(t, []string{"tombstone:post:p1"}, h.hooks.calls)
	assert.Equal(t, 51, trustOf(t, h, "r1"))

	score, err := h.reputation.Get(ctx, "author")
	require.NoError(t, err)
	assert.Equal(t, trust.DefaultReputation+20, score.Score)

	actions, err := h.svc.ListCaseActions(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "mod", actions[0].ActorID)

	_, err = h.svc.PerformCaseAction(ctx, PerformActionInput{CaseID: c.ID, ActorID: "mod", Action: "obliterate"})
	assert.Error(t, err)
	_, err = h.svc.PerformCaseAction(ctx, PerformActionInput{CaseID: "missing", ActorID: "mod", Action: "remove"})
	assert.ErrorIs(t, err, models.ErrCaseNotFound)
}

func TestPerformMembershipAction(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	member, err := h.svc.SubmitReport(ctx, SubmitReportInput{ReporterID: "r1", SubjectType: "membership", SubjectID: "g1:u2", Reason: "abuse"})
	require.NoError(t, err)
	_, err = h.svc.PerformCaseAction(ctx, PerformActionInput{CaseID: member.CaseID, ActorID: "mod", Action: "mute", Payload: models.Payload{"duration_minutes": 30}})
	require.NoError(t, err)

	actions, err := h.svc.ListCaseActions(ctx, member.CaseID)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "g1", actions[0].Payload.String("group_id"))
	assert.Equal(t, "u2", actions[0].Payload.String("user_id"))

	post, err := h.svc.SubmitReport(ctx, SubmitReportInput{ReporterID: "r2", SubjectType: "post", SubjectID: "p2", Reason: "abuse"})
	require.NoError(t, err)
	_, err = h.svc.PerformCaseAction(ctx, PerformActionInput{CaseID: post.CaseID, ActorID: "mod", Action: "ban"})
	assert.ErrorIs(t, err, models.ErrMembershipContextMissing)
}

func TestInferMembershipContext(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		c       models.ModerationCase
		payload models.Payload
		group   string
		user    string
		wantErr bool
	}{
		{name: "membership subject", c: models.ModerationCase{SubjectType: "membership", SubjectID: "g1:u1"}, group: "g1", user: "u1"},
		{name: "group member subject", c: models.ModerationCase{SubjectType: "group_member", SubjectID: "g2:u2"}, group: "g2", user: "u2"},
		{name: "payload wins", c: models.ModerationCase{SubjectType: "membership", SubjectID: "g1:u1"}, payload: models.Payload{"group_id": "g9"}, group: "g9", user: "u1"},
		{name: "user subject needs group", c: models.ModerationCase{SubjectType: "user", SubjectID: "u3"}, payload: models.Payload{"group_id": "g3"}, group: "g3", user: "u3"},
		{name: "user subject alone", c: models.ModerationCase{SubjectType: "user", SubjectID: "u3"}, wantErr: true},
		{name: "malformed membership", c: models.ModerationCase{SubjectType: "membership", SubjectID: "g1"}, wantErr: true},
		{name: "post subject", c: models.ModerationCase{SubjectType: "post", SubjectID: "p1"}, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, err := InferMembershipContext(&tt.c, tt.payload)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrMembershipContextMissing)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.group, out.String("group_id"))
			assert.Equal(t, tt.user, out.String("user_id"))
		})
	}
}

func actionedCase(t *testing.T, h *harness, subjectID, action string) *models.ModerationCase {
	t.Helper()
	ctx := context.Background()
	rep, err := h.svc.SubmitReport(ctx, SubmitReportInput{ReporterID: "reporter-" + subjectID, SubjectType: "post", SubjectID: subjectID, Reason: "spam"})
	require.NoError(t, err)
	c, err := h.svc.PerformCaseAction(ctx, PerformActionInput{CaseID: rep.CaseID, ActorID: "mod", Action: action, Severity: 2})
	require.NoError(t, err)
	return c
}

func TestAppealAccepted(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := actionedCase(t, h, "p1", "remove")

	appeal, err := h.svc.SubmitAppeal(ctx, c.ID, "author", "it was satire")
	require.NoError(t, err)
	assert.Equal(t, models.AppealPending, appeal.Status)
	require.Len(t, h.publisher.published["appeals"], 1)

	_, err = h.svc.SubmitAppeal(ctx, c.ID, "author", "again")
	assert.ErrorIs(t, err, models.ErrAppealAlreadyOpen)

	resolved, err := h.svc.ResolveAppeal(ctx, appeal.ID, true, "mod", "fair")
	require.NoError(t, err)
	assert.Equal(t, models.AppealAccepted, resolved.Status)
	assert.Equal(t, 52, trustOf(t, h, "author"))
	assert.Equal(t, []string{"remove:post:p1"}, h.restorer.content)

	closed, err := h.svc.GetCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CaseClosed, closed.Status)
	assert.False(t, closed.AppealOpen)

	_, err = h.svc.ResolveAppeal(ctx, appeal.ID, true, "mod", "")
	assert.ErrorIs(t, err, models.ErrAppealNotFound)
	_, err = h.svc.SubmitAppeal(ctx, c.ID, "author", "once more")
	assert.ErrorIs(t, err, models.ErrAppealNotAllowed)
	assert.Contains(t, h.notifier.kinds, "author:"+NotifyAppealResolved)
}

func TestAppealRejected(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := actionedCase(t, h, "p1", "remove")

	appeal, err := h.svc.SubmitAppeal(ctx, c.ID, "author", "please")
	require.NoError(t, err)
	_, err = h.svc.ResolveAppeal(ctx, appeal.ID, false, "mod", "upheld")
	require.NoError(t, err)

	assert.Equal(t, 47, trustOf(t, h, "author"))
	assert.Empty(t, h.restorer.content)
	closed, err := h.svc.GetCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CaseClosed, closed.Status)
}

func TestEscalateRejectedWhileAppealPending(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := actionedCase(t, h, "p1", "remove")

	appeal, err := h.svc.SubmitAppeal(ctx, c.ID, "author", "context was missing")
	require.NoError(t, err)

	_, err = h.svc.EscalateCase(ctx, c.ID, "mod", "second opinion")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	got, err := h.svc.GetCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CaseActioned, got.Status)
	assert.Zero(t, got.EscalationLevel)

	resolved, err := h.svc.ResolveAppeal(ctx, appeal.ID, true, "mod", "")
	require.NoError(t, err)
	assert.Equal(t, models.AppealAccepted, resolved.Status)
}

func TestAppealNotAllowed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	rep, err := h.svc.SubmitReport(ctx, SubmitReportInput{ReporterID: "r1", SubjectType: "post", SubjectID: "p1", Reason: "spam"})
	require.NoError(t, err)
	_, err = h.svc.SubmitAppeal(ctx, rep.CaseID, "author", "")
	assert.ErrorIs(t, err, models.ErrAppealNotAllowed, "open cases cannot be appealed")

	c := actionedCase(t, h, "p2", "tombstone")
	_, err = h.svc.SubmitAppeal(ctx, c.ID, "stranger", "")
	assert.ErrorIs(t, err, models.ErrAppealNotAllowed)
}

func TestAppealRevertsRestrictionsAndSurvivesReverterFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.restorer.restoreContentFn = func(context.Context, string, string, models.Action) error {
		return errors.New("content service down")
	}
	c := actionedCase(t, h, "p1", "tombstone")
	_, err := h.svc.PerformCaseAction(ctx, PerformActionInput{CaseID: c.ID, ActorID: "mod", Action: "restrict_create", Payload: models.Payload{"mode": "cooldown", "ttl_minutes": 30}})
	require.NoError(t, err)
	require.Len(t, h.restrictions.applied, 1)
	assert.Equal(t, "author", h.restrictions.applied[0].UserID)

	appeal, err := h.svc.SubmitAppeal(ctx, c.ID, "author", "")
	require.NoError(t, err)
	_, err = h.svc.ResolveAppeal(ctx, appeal.ID, true, "mod", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"r1"}, h.restrictions.revoked)
	assert.Contains(t, h.failures.ops, "revert_tombstone")

	closed, err := h.svc.GetCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CaseClosed, closed.Status)

	audit, err := h.svc.ListAudit(ctx, c.ID)
	require.NoError(t, err)
	last := audit[len(audit)-1]
	assert.Equal(t, AuditActionsReverted, last.Action)
	assert.Equal(t, []string{"tombstone"}, last.Meta.Strings("failed"))
	assert.Equal(t, []string{"restrict_create"}, last.Meta.Strings("reverted"))
}

func TestAppealRestoresMembership(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	rep, err := h.svc.SubmitReport(ctx, SubmitReportInput{ReporterID: "r1", SubjectType: "membership", SubjectID: "g1:u2", Reason: "abuse"})
	require.NoError(t, err)
	_, err = h.svc.PerformCaseAction(ctx, PerformActionInput{CaseID: rep.CaseID, ActorID: "mod", Action: "ban"})
	require.NoError(t, err)

	appeal, err := h.svc.SubmitAppeal(ctx, rep.CaseID, "u2", "")
	require.NoError(t, err)
	_, err = h.svc.ResolveAppeal(ctx, appeal.ID, true, "mod", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"ban:g1:u2"}, h.restorer.memberships)
}

func TestLogAndContinueCounts(t *testing.T) {
	p := NewLogAndContinue()
	ok := bestEffort(context.Background(), p, "notify", nil, func() error { return errors.New("boom") })
	assert.False(t, ok)
	assert.True(t, bestEffort(context.Background(), p, "notify", nil, func() error { return nil }))
}
