// Package detectors turns a content event into a flat map of signals.
package detectors

import "time"

// Signal names produced by the suite.
const (
	SignalTextSeverity       = "text.severity"
	SignalTextProfaneTokens  = "text.profane_tokens"
	SignalTextDuplicate      = "text.duplicate"
	SignalTextDuplicateCount = "text.duplicate_count"
	SignalVelocityExceeded   = "velocity.exceeded"
	SignalVelocityCount      = "velocity.count"
	SignalVelocityThreshold  = "velocity.threshold"
	SignalLinksDenylisted    = "links.denylisted"
	SignalLinksExcessive     = "links.excessive"
	SignalLinksCount         = "links.count"
	SignalLinksHosts         = "links.denylisted_hosts"
)

// DefaultTrustScore is used when an event carries no trust score.
const DefaultTrustScore = 50

// ContentEvent is one piece of user content entering the engine.
type ContentEvent struct {
	ID          string    `json:"id"`
	ActorID     string    `json:"actor_id"`
	SubjectType string    `json:"subject_type"`
	SubjectID   string    `json:"subject_id"`
	Text        string    `json:"text"`
	TrustScore  *int      `json:"trust_score,omitempty"`
	Surface     string    `json:"surface,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	// Scores are upstream classifier label scores (hate, selfharm,
	// toxicity, harassment) in [0,1].
	Scores map[string]float64 `json:"scores,omitempty"`
	// URLRisk maps a link host to its reputation risk in [0,1].
	URLRisk map[string]float64 `json:"url_risk,omitempty"`
}

// Trust returns the event's trust score or the neutral default.
func (e ContentEvent) Trust() int {
	if e.TrustScore == nil {
		return DefaultTrustScore
	}
	return *e.TrustScore
}

// Signals maps signal names to bool, string, number or string-slice values.
type Signals map[string]any

// Bool returns the boolean at key; non-bool values read as false.
func (s Signals) Bool(key string) bool {
	v, _ := s[key].(bool)
	return v
}

// String returns the string at key, or "".
func (s Signals) String(key string) string {
	v, _ := s[key].(string)
	return v
}

// Number returns the value at key as float64 and whether it was numeric.
func (s Signals) Number(key string) (float64, bool) {
	return ToFloat(s[key])
}

// ToFloat converts the numeric kinds stored in signals to float64.
func ToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case float64:
		return t, true
	case float32:
		return float64(t), true
	}
	return 0, false
}
