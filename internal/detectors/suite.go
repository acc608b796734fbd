package detectors

import (
	"context"
	"fmt"

	"warden/internal/featureflags"
	"warden/internal/observability"
)

// Detector contributes signals for one property of an event.
type Detector interface {
	Name() string
	Detect(ctx context.Context, ev ContentEvent, out Signals) error
	// Fallback writes the neutral signals used when Detect fails.
	Fallback(out Signals)
}

// Suite runs every detector over an event. A failing or panicking detector
// never aborts evaluation; it reports its neutral signals instead.
type Suite struct {
	detectors []Detector
	flags     *featureflags.Manager
}

// Config wires the built-in detectors.
type Config struct {
	Counters           CounterStore
	Lexicon            Lexicon
	Denylist           []string
	MaxLinks           int
	DuplicateThreshold int
	Flags              *featureflags.Manager
}

// NewSuite builds a suite from explicit detectors.
func NewSuite(flags *featureflags.Manager, detectors ...Detector) *Suite {
	return &Suite{detectors: detectors, flags: flags}
}

// NewDefaultSuite wires profanity, duplicate, velocity and link detectors.
func NewDefaultSuite(cfg Config) *Suite {
	lex := cfg.Lexicon
	if len(lex) == 0 {
		lex = DefaultLexicon()
	}
	return NewSuite(cfg.Flags,
		&ProfanityDetector{Lexicon: lex},
		&DuplicateDetector{Store: cfg.Counters, Threshold: cfg.DuplicateThreshold},
		&VelocityDetector{Store: cfg.Counters},
		&LinkDetector{Denylist: cfg.Denylist, MaxLinks: cfg.MaxLinks},
	)
}

// Evaluate produces the merged signal map for ev.
func (s *Suite) Evaluate(ctx context.Context, ev ContentEvent) Signals {
	out := make(Signals)
	for _, d := range s.detectors {
		if !s.flags.EnabledOr("detector_"+d.Name(), ev.ActorID, true) {
			d.Fallback(out)
			continue
		}
		if err := runDetector(ctx, d, ev, out); err != nil {
			observability.DetectorFailures.WithLabelValues(d.Name()).Inc()
			observability.GlobalLogger.WarnContext(ctx, "detector failed",
				"detector", d.Name(),
				"event_id", ev.ID,
				"error", err,
			)
			d.Fallback(out)
		}
	}
	return out
}

func runDetector(ctx context.Context, d Detector, ev ContentEvent, out Signals) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detector %s panicked: %v", d.Name(), r)
		}
	}()
	// Detect into a scratch map so a partial write never leaks.
	scratch := make(Signals)
	if err := d.Detect(ctx, ev, scratch); err != nil {
		return err
	}
	for k, v := range scratch {
		out[k] = v
	}
	return nil
}
