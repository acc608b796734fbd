// Package thresholds maps classifier scores to safety verdicts.
package thresholds

import (
	"hash/fnv"
	"strings"

	"warden/internal/models"
)

// Severity levels attached to a verdict.
const (
	LevelNone     = "none"
	LevelLow      = "low"
	LevelMedium   = "medium"
	LevelHigh     = "high"
	LevelCritical = "critical"
)

// Known-bad hash labels that always block.
var blockingHashLabels = map[string]struct{}{
	"csam":   {},
	"terror": {},
}

// Result is a verdict for one piece of media, text or URL.
type Result struct {
	Status          models.SafetyStatus `json:"status"`
	SuggestedAction models.Action       `json:"suggested_action"`
	Reasons         []string            `json:"reasons"`
	Level           string              `json:"level"`
}

// actionTable is the single status precedence used by the evaluator and by
// the policy engine's media rules.
var actionTable = map[models.SafetyStatus]models.Action{
	models.SafetyBlocked:     models.ActionRemove,
	models.SafetyQuarantined: models.ActionShadowHide,
	models.SafetyNeedsReview: models.ActionNone,
	models.SafetyClean:       models.ActionNone,
}

// ActionFor returns the enforcement action for a safety status.
func ActionFor(status models.SafetyStatus) models.Action {
	if a, ok := actionTable[status]; ok {
		return a
	}
	return models.ActionNone
}

func result(status models.SafetyStatus, level string, reasons ...string) Result {
	if reasons == nil {
		reasons = []string{}
	}
	return Result{Status: status, SuggestedAction: ActionFor(status), Reasons: reasons, Level: level}
}

// EvaluateImage applies, in order: known-bad hash label, hard gore/nsfw
// thresholds, the soft nsfw threshold.
func EvaluateImage(cfg Config, nsfw, gore float64, hashLabel, surface string) Result {
	t := cfg.ImageFor(surface)
	if label := strings.ToLower(hashLabel); label != "" {
		if _, ok := blockingHashLabels[label]; ok {
			return result(models.SafetyBlocked, LevelCritical, "hash:"+label)
		}
	}
	var hard []string
	if gore >= t.GoreHard {
		hard = append(hard, "gore")
	}
	if nsfw >= t.NSFWHard {
		hard = append(hard, "nsfw")
	}
	if len(hard) > 0 {
		return result(models.SafetyQuarantined, LevelHigh, hard...)
	}
	if nsfw >= t.NSFWSoft {
		return result(models.SafetyNeedsReview, LevelMedium, "nsfw_soft")
	}
	return result(models.SafetyClean, LevelNone)
}

// EvaluateText blocks on any hard label at or above its threshold and asks
// for review on any soft label.
func EvaluateText(cfg Config, scores map[string]float64, surface string) Result {
	t := cfg.TextFor(surface)
	var hard, soft []string
	for _, l := range []struct {
		name      string
		threshold float64
		hard      bool
	}{
		{"hate", t.Hate, true},
		{"selfharm", t.SelfHarm, true},
		{"toxicity", t.Toxicity, false},
		{"harassment", t.Harassment, false},
	} {
		score, ok := scores[l.name]
		if !ok || score < l.threshold {
			continue
		}
		if l.hard {
			hard = append(hard, l.name)
		} else {
			soft = append(soft, l.name)
		}
	}
	if len(hard) > 0 {
		return result(models.SafetyBlocked, LevelHigh, hard...)
	}
	if len(soft) > 0 {
		return result(models.SafetyNeedsReview, LevelMedium, soft...)
	}
	return result(models.SafetyClean, LevelNone)
}

// URLVerdict is a link reputation lookup result.
type URLVerdict struct {
	Label string  `json:"label"`
	Risk  float64 `json:"risk"`
}

// EvaluateURL blocks malicious and phishing links and queues suspicious ones.
func EvaluateURL(cfg Config, verdict URLVerdict) Result {
	switch strings.ToLower(verdict.Label) {
	case "malicious", "phishing":
		return result(models.SafetyBlocked, LevelHigh, "url:"+strings.ToLower(verdict.Label))
	case "suspicious":
		return result(models.SafetyNeedsReview, LevelMedium, "url:suspicious")
	}
	if verdict.Risk >= cfg.URL.RiskBlock {
		return result(models.SafetyBlocked, LevelHigh, "url:risk")
	}
	if verdict.Risk >= cfg.URL.RiskReview {
		return result(models.SafetyNeedsReview, LevelLow, "url:risk")
	}
	return result(models.SafetyClean, LevelNone)
}

// ShouldSample reports whether a clean item is picked for review under the
// named sampling rate. The choice is stable per id.
func ShouldSample(cfg Config, name, id string) bool {
	rate := cfg.Sampling[name]
	if rate <= 0 || id == "" {
		return false
	}
	if rate >= 1 {
		return true
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(name + ":" + id))
	return float64(h.Sum32()%10000) < rate*10000
}
