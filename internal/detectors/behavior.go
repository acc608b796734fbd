package detectors

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"warden/internal/cache"
)

// DefaultDuplicateThreshold is the bucket count at which text is a duplicate.
const DefaultDuplicateThreshold = 3

var errNoCounterStore = errors.New("no counter store configured")

// DuplicateDetector fingerprints normalized text per actor and counts
// repeats inside 30 second buckets.
type DuplicateDetector struct {
	Store     CounterStore
	Threshold int
	Window    time.Duration
	Now       func() time.Time
}

func (d *DuplicateDetector) Name() string { return "duplicate" }

// Fingerprint is the SHA-256 of the normalized, whitespace-collapsed text.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(strings.Join(strings.Fields(Normalize(text)), " ")))
	return hex.EncodeToString(sum[:])
}

func (d *DuplicateDetector) Detect(ctx context.Context, ev ContentEvent, out Signals) error {
	if strings.TrimSpace(ev.Text) == "" {
		d.Fallback(out)
		return nil
	}
	if d.Store == nil {
		return errNoCounterStore
	}
	threshold := d.Threshold
	if threshold <= 0 {
		threshold = DefaultDuplicateThreshold
	}
	window := d.Window
	if window <= 0 {
		window = cache.DuplicateWindow
	}
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	n, err := d.Store.Incr(ctx, cache.DuplicateKey(ev.ActorID, now(), Fingerprint(ev.Text)), window)
	if err != nil {
		return err
	}
	out[SignalTextDuplicateCount] = int(n)
	out[SignalTextDuplicate] = n >= int64(threshold)
	return nil
}

func (d *DuplicateDetector) Fallback(out Signals) {
	out[SignalTextDuplicate] = false
	out[SignalTextDuplicateCount] = 0
}

// VelocityDetector counts an actor's writes per subject type in a sliding
// 60 second window.
type VelocityDetector struct {
	Store  CounterStore
	Window time.Duration
}

func (d *VelocityDetector) Name() string { return "velocity" }

// VelocityThreshold is the per-window write allowance: 5 for posts and 12
// otherwise, doubled above trust 70 and halved (min 1) below trust 20.
func VelocityThreshold(subjectType string, trust int) int {
	base := 12
	if subjectType == "post" {
		base = 5
	}
	switch {
	case trust > 70:
		return base * 2
	case trust < 20:
		return max(1, base/2)
	}
	return base
}

func (d *VelocityDetector) Detect(ctx context.Context, ev ContentEvent, out Signals) error {
	if d.Store == nil {
		return errNoCounterStore
	}
	window := d.Window
	if window <= 0 {
		window = cache.VelocityWindow
	}
	n, err := d.Store.Incr(ctx, cache.VelocityKey(ev.ActorID, ev.SubjectType), window)
	if err != nil {
		return err
	}
	threshold := VelocityThreshold(ev.SubjectType, ev.Trust())
	out[SignalVelocityCount] = int(n)
	out[SignalVelocityThreshold] = threshold
	out[SignalVelocityExceeded] = n > int64(threshold)
	return nil
}

func (d *VelocityDetector) Fallback(out Signals) {
	out[SignalVelocityExceeded] = false
	out[SignalVelocityCount] = 0
}
