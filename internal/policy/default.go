package policy

import (
	"warden/internal/detectors"
	"warden/internal/models"
	"warden/internal/thresholds"
)

// Threshold verdict paths. Each carries a models.SafetyStatus.
const (
	MediaStatusPath = "media.status"
	TextStatusPath  = "text.status"
	LinksStatusPath = "links.status"
)

// DefaultPolicyID identifies the built-in policy.
const DefaultPolicyID = "default"

// DefaultPolicy returns the built-in rule set.
func DefaultPolicy() *Policy {
	return &Policy{
		ID:            DefaultPolicyID,
		DefaultAction: models.ActionNone,
		Rules: []Rule{
			{
				ID:       "profanity.severe",
				When:     AtLeast{Path: detectors.SignalTextSeverity, Level: detectors.SeverityHigh},
				Action:   models.ActionRemove,
				Severity: 3,
				Reason:   "profanity",
			},
			{
				ID:       "profanity.basic",
				When:     AnyOf{Path: detectors.SignalTextSeverity, Values: []string{detectors.SeverityMedium}},
				Action:   models.ActionTombstone,
				Severity: 2,
				Reason:   "profanity",
			},
			{
				ID:       "links.denylisted",
				When:     AllOf{Paths: []string{detectors.SignalLinksDenylisted}},
				Action:   models.ActionRemove,
				Severity: 3,
				Reason:   "denylisted link",
			},
			statusRule("text.blocked", TextStatusPath, models.SafetyBlocked, 3, "text blocked"),
			statusRule("links.blocked", LinksStatusPath, models.SafetyBlocked, 3, "link blocked"),
			{
				ID:       "spam.duplicate",
				When:     AllOf{Paths: []string{detectors.SignalTextDuplicate}},
				Action:   models.ActionShadowHide,
				Severity: 1,
				Reason:   "duplicate content",
			},
			{
				ID: "velocity.lowtrust",
				When: And{
					AllOf{Paths: []string{detectors.SignalVelocityExceeded}},
					Below{Path: TrustPath, Threshold: 20},
				},
				Action:   models.ActionRestrictCreate,
				Severity: 1,
				Reason:   "posting too fast",
				Payload:  models.Payload{"mode": string(models.ModeCooldown), "ttl_minutes": 10},
			},
			{
				ID:       "links.excessive",
				When:     AllOf{Paths: []string{detectors.SignalLinksExcessive}},
				Action:   models.ActionShadowHide,
				Severity: 1,
				Reason:   "excessive links",
			},
			mediaRule("media.blocked", models.SafetyBlocked, 3),
			mediaRule("media.quarantined", models.SafetyQuarantined, 2),
			mediaRule("media.review", models.SafetyNeedsReview, 1),
		},
	}
}

// mediaRule maps a scanner verdict to the canonical threshold action.
func mediaRule(id string, status models.SafetyStatus, severity int) Rule {
	return statusRule(id, MediaStatusPath, status, severity, "media "+string(status))
}

func statusRule(id, path string, status models.SafetyStatus, severity int, reason string) Rule {
	return Rule{
		ID:       id,
		When:     Equals{Path: path, Value: string(status)},
		Action:   thresholds.ActionFor(status),
		Severity: severity,
		Reason:   reason,
	}
}

// LoadOrDefault reads the policy at path, or returns DefaultPolicy when
// path is empty.
func LoadOrDefault(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	return LoadFile(path)
}
