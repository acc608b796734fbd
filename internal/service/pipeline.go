package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"warden/internal/detectors"
	"warden/internal/enforcement"
	"warden/internal/models"
	"warden/internal/observability"
	"warden/internal/policy"
	"warden/internal/thresholds"
	"warden/internal/trust"

	"go.opentelemetry.io/otel/attribute"
)

// SystemActor attributes automated decisions.
const SystemActor = "system"

// PipelineResult is the outcome of one evaluated event.
type PipelineResult struct {
	Signals  detectors.Signals      `json:"signals"`
	Decision policy.Decision        `json:"decision"`
	Case     *models.ModerationCase `json:"case,omitempty"`
}

// Pipeline runs content through detectors, policy and enforcement.
type Pipeline struct {
	suite      *detectors.Suite
	policy     *policy.Policy
	enforcer   Enforcer
	trust      trust.Ledger
	reputation ReputationRecorder
	failures   FailurePolicy
	limits     thresholds.Config
}

// NewPipeline creates a Pipeline. trust and reputation may be nil.
func NewPipeline(suite *detectors.Suite, p *policy.Policy, limits thresholds.Config, enforcer Enforcer, ledger trust.Ledger, reputation ReputationRecorder, failures FailurePolicy) *Pipeline {
	if failures == nil {
		failures = NewLogAndContinue()
	}
	return &Pipeline{suite: suite, policy: p, limits: limits, enforcer: enforcer, trust: ledger, reputation: reputation, failures: failures}
}

// Process evaluates a content event and enforces the decision.
func (p *Pipeline) Process(ctx context.Context, ev detectors.ContentEvent) (_ *PipelineResult, err error) {
	span, ctx := observability.NewSpan(ctx, "Pipeline.Process")
	defer func() {
		span.SetError(err)
		span.End()
	}()

	ev.SubjectType = strings.TrimSpace(ev.SubjectType)
	if ev.ActorID == "" || ev.SubjectType == "" || ev.SubjectID == "" {
		return nil, models.NewValidationError("actor_id, subject_type and subject_id are required")
	}
	if ev.TrustScore == nil {
		score := detectors.DefaultTrustScore
		if p.trust != nil {
			bestEffort(ctx, p.failures, "trust_score", map[string]interface{}{"user_id": ev.ActorID}, func() error {
				s, err := p.trust.Score(ctx, ev.ActorID)
				if err == nil {
					score = s
				}
				return err
			})
		}
		ev.TrustScore = &score
	}

	signals := p.suite.Evaluate(ctx, ev)
	p.thresholdSignals(ev, signals)
	d := p.policy.Evaluate(signals, ev.Trust())
	span.AddAttributes(attribute.String("action", string(d.Action)), attribute.String("rule_id", d.RuleID))

	c, err := p.enforcer.ApplyDecision(ctx, enforcement.Subject{Type: ev.SubjectType, ID: ev.SubjectID, OwnerID: ev.ActorID}, d, SystemActor)
	if err != nil {
		return nil, fmt.Errorf("enforce %s:%s: %w", ev.SubjectType, ev.SubjectID, err)
	}
	p.recordWorsening(ctx, ev.ActorID, c, d)
	return &PipelineResult{Signals: signals, Decision: d, Case: c}, nil
}

// ProcessMedia routes a scanned attachment's verdict through the policy
// as the media.status signal.
func (p *Pipeline) ProcessMedia(ctx context.Context, a *models.Attachment, res thresholds.Result) (*PipelineResult, error) {
	signals := detectors.Signals{
		policy.MediaStatusPath: string(res.Status),
		"media.level":          string(res.Level),
	}
	if len(res.Reasons) > 0 {
		signals["media.reasons"] = strings.Join(res.Reasons, ",")
	}
	d := p.policy.Evaluate(signals, detectors.DefaultTrustScore)

	subject := enforcement.Subject{Type: a.SubjectType, ID: a.SubjectID, OwnerID: a.OwnerID}
	if subject.Type == "" || subject.ID == "" {
		subject.Type, subject.ID = "attachment", a.ID
	}
	if d.Payload == nil {
		d.Payload = models.Payload{}
	}
	d.Payload["attachment_id"] = a.ID

	c, err := p.enforcer.ApplyDecision(ctx, subject, d, SystemActor)
	if err != nil {
		return nil, fmt.Errorf("enforce attachment %s: %w", a.ID, err)
	}
	p.recordWorsening(ctx, a.OwnerID, c, d)
	return &PipelineResult{Signals: signals, Decision: d, Case: c}, nil
}

var statusRank = map[models.SafetyStatus]int{
	models.SafetyClean:       0,
	models.SafetyNeedsReview: 1,
	models.SafetyQuarantined: 2,
	models.SafetyBlocked:     3,
}

func worse(a, b thresholds.Result) thresholds.Result {
	if statusRank[b.Status] > statusRank[a.Status] {
		return b
	}
	return a
}

// thresholdSignals adds the text.status and links.status verdicts. Text
// uses the event's classifier scores; links take the worst verdict over
// denylisted hosts and the event's per-host risk.
func (p *Pipeline) thresholdSignals(ev detectors.ContentEvent, signals detectors.Signals) {
	text := thresholds.EvaluateText(p.limits, ev.Scores, ev.Surface)
	signals[policy.TextStatusPath] = string(text.Status)
	if len(text.Reasons) > 0 {
		signals["text.reasons"] = strings.Join(text.Reasons, ",")
	}

	links := thresholds.Result{Status: models.SafetyClean, SuggestedAction: models.ActionNone, Level: thresholds.LevelNone}
	if denied, _ := signals[detectors.SignalLinksHosts].([]string); len(denied) > 0 {
		links = thresholds.EvaluateURL(p.limits, thresholds.URLVerdict{Label: "malicious"})
	}
	for _, host := range detectors.ExtractHosts(ev.Text) {
		if risk, ok := ev.URLRisk[host]; ok {
			links = worse(links, thresholds.EvaluateURL(p.limits, thresholds.URLVerdict{Risk: risk}))
		}
	}
	signals[policy.LinksStatusPath] = string(links.Status)
	if len(links.Reasons) > 0 {
		signals["links.reasons"] = strings.Join(links.Reasons, ",")
	}
}

func (p *Pipeline) recordWorsening(ctx context.Context, userID string, c *models.ModerationCase, d policy.Decision) {
	if c == nil || userID == "" || p.reputation == nil || d.Action == models.ActionNone || d.Severity <= 0 {
		return
	}
	bestEffort(ctx, p.failures, "reputation_record", map[string]interface{}{"user_id": userID, "case_id": c.ID}, func() error {
		_, err := p.reputation.Record(ctx, userID, d.Severity*ReputationPerSeverity, "policy:"+d.RuleID, models.Payload{
			"case_id": c.ID,
			"action":  string(d.Action),
		})
		return err
	})
	observability.GlobalLogger.DebugContext(ctx, "reputation recorded",
		slog.String("user_id", userID),
		slog.String("rule_id", d.RuleID),
	)
}
