// Package policy evaluates ordered declarative rules against detector
// signals and produces enforcement decisions.
package policy

import (
	"fmt"

	"warden/internal/models"
	"warden/internal/observability"
)

// Rule pairs a predicate with the decision it yields.
type Rule struct {
	ID       string
	When     Predicate
	Action   models.Action
	Severity int
	Reason   string
	Payload  models.Payload
}

// Policy is an ordered rule list; the first matching rule wins.
type Policy struct {
	ID            string
	Rules         []Rule
	DefaultAction models.Action
}

// Decision is the outcome of evaluating a policy. It carries no case state
// so automatic and manual enforcement share it.
type Decision struct {
	Action   models.Action  `json:"action"`
	Severity int            `json:"severity"`
	Reason   string         `json:"reason,omitempty"`
	Payload  models.Payload `json:"payload,omitempty"`
	RuleID   string         `json:"rule_id,omitempty"`
	PolicyID string         `json:"policy_id,omitempty"`
}

// Validate checks rule ids and actions.
func (p *Policy) Validate() error {
	if p.DefaultAction == "" {
		p.DefaultAction = models.ActionNone
	}
	if !p.DefaultAction.Valid() {
		return fmt.Errorf("policy %s: unknown default action %q", p.ID, p.DefaultAction)
	}
	seen := make(map[string]struct{}, len(p.Rules))
	for i, r := range p.Rules {
		if r.ID == "" {
			return fmt.Errorf("policy %s: rule %d has no id", p.ID, i)
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("policy %s: duplicate rule id %q", p.ID, r.ID)
		}
		seen[r.ID] = struct{}{}
		if r.When == nil {
			return fmt.Errorf("policy %s: rule %s has no when clause", p.ID, r.ID)
		}
		if !r.Action.Valid() {
			return fmt.Errorf("policy %s: rule %s: unknown action %q", p.ID, r.ID, r.Action)
		}
	}
	return nil
}

// Evaluate returns the decision of the first rule whose predicate matches
// signals merged with the trust score; no match yields DefaultAction with
// severity 0.
func (p *Policy) Evaluate(signals map[string]any, trustScore int) Decision {
	ctx := make(Context, len(signals)+1)
	for k, v := range signals {
		ctx[k] = v
	}
	ctx[TrustPath] = trustScore

	for _, r := range p.Rules {
		if !r.When.Eval(ctx) {
			continue
		}
		observability.PolicyDecisions.WithLabelValues(string(r.Action), r.ID).Inc()
		return Decision{
			Action:   r.Action,
			Severity: r.Severity,
			Reason:   r.Reason,
			Payload:  r.Payload.Clone(),
			RuleID:   r.ID,
			PolicyID: p.ID,
		}
	}
	observability.PolicyDecisions.WithLabelValues(string(p.DefaultAction), "default").Inc()
	return Decision{Action: p.DefaultAction, PolicyID: p.ID, Payload: models.Payload{}}
}
