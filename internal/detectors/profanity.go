package detectors

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Severity levels of a lexicon entry, in rank order.
const (
	SeverityUnknown = "unknown"
	SeverityLow     = "low"
	SeverityMedium  = "medium"
	SeverityHigh    = "high"
)

// SeverityRank orders severities; unrecognized values rank with unknown.
func SeverityRank(s string) int {
	switch strings.ToLower(s) {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	}
	return 0
}

// Lexicon maps normalized tokens to a severity.
type Lexicon map[string]string

// DefaultLexicon is the built-in placeholder lexicon; deployments configure
// their own with PROFANITY_LEXICON.
func DefaultLexicon() Lexicon {
	return Lexicon{
		"foo": SeverityLow,
		"bar": SeverityMedium,
		"baz": SeverityHigh,
	}
}

// ParseLexicon reads "word=level" pairs separated by commas. Words are
// normalized the same way as scanned text.
func ParseLexicon(raw string) (Lexicon, error) {
	out := make(Lexicon)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		word, level, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("lexicon entry %q: expected word=level", pair)
		}
		level = strings.ToLower(strings.TrimSpace(level))
		if SeverityRank(level) == 0 {
			return nil, fmt.Errorf("lexicon entry %q: unknown level %q", pair, level)
		}
		for _, tok := range Tokenize(word) {
			out[tok] = level
		}
	}
	return out, nil
}

var leetReplacer = strings.NewReplacer(
	"0", "o",
	"1", "i",
	"3", "e",
	"4", "a",
	"5", "s",
	"7", "t",
	"@", "a",
	"$", "s",
)

var nonTokenChars = regexp.MustCompile(`[^\pL\pN\s]+`)

// Normalize lower-cases text, undoes common leetspeak substitutions and
// folds diacritics.
func Normalize(text string) string {
	// transformers are stateful, so build one per call
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	lowered := leetReplacer.Replace(strings.ToLower(text))
	folded, _, err := transform.String(fold, lowered)
	if err != nil {
		slog.Warn("unicode normalization error", "err", err)
		folded = lowered
	}
	return folded
}

// Tokenize splits normalized text into word tokens.
func Tokenize(text string) []string {
	return strings.Fields(nonTokenChars.ReplaceAllString(Normalize(text), " "))
}

// ProfanityDetector reports the highest lexicon severity found in the text.
type ProfanityDetector struct {
	Lexicon Lexicon
}

func (d *ProfanityDetector) Name() string { return "profanity" }

func (d *ProfanityDetector) Detect(_ context.Context, ev ContentEvent, out Signals) error {
	severity, tokens := d.Score(ev.Text)
	out[SignalTextSeverity] = severity
	out[SignalTextProfaneTokens] = tokens
	return nil
}

func (d *ProfanityDetector) Fallback(out Signals) {
	out[SignalTextSeverity] = SeverityUnknown
	out[SignalTextProfaneTokens] = []string{}
}

// Score returns the max-rank severity and the distinct matched tokens.
func (d *ProfanityDetector) Score(text string) (string, []string) {
	best := SeverityUnknown
	seen := make(map[string]struct{})
	tokens := []string{}
	for _, tok := range Tokenize(text) {
		level, ok := d.Lexicon[tok]
		if !ok {
			continue
		}
		if _, dup := seen[tok]; !dup {
			seen[tok] = struct{}{}
			tokens = append(tokens, tok)
		}
		if SeverityRank(level) > SeverityRank(best) {
			best = level
		}
	}
	sort.Strings(tokens)
	return best, tokens
}
