package visual

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"math/bits"
	"strconv"
	"strings"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const hashSide = 8

// AverageHash computes a 64-bit perceptual hash: the image is scaled to an
// 8x8 grayscale thumbnail and each bit records whether a pixel is brighter
// than the mean.
func AverageHash(data []byte) (uint64, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("decode image: %w", err)
	}
	thumb := image.NewGray(image.Rect(0, 0, hashSide, hashSide))
	xdraw.ApproxBiLinear.Scale(thumb, thumb.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	var sum int
	for _, p := range thumb.Pix {
		sum += int(p)
	}
	mean := sum / len(thumb.Pix)

	var hash uint64
	for i, p := range thumb.Pix {
		if int(p) > mean {
			hash |= 1 << uint(len(thumb.Pix)-1-i)
		}
	}
	return hash, nil
}

// FormatHash renders a hash as 16 hex digits.
func FormatHash(h uint64) string {
	return fmt.Sprintf("%016x", h)
}

// ParseHash reads a hash rendered by FormatHash.
func ParseHash(s string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(s), 16, 64)
}

// Distance is the Hamming distance between two hashes.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// DefaultMaxDistance is the Hamming distance treated as the same image.
const DefaultMaxDistance = 6

type knownHash struct {
	hash  uint64
	label string
}

// HashLabeler maps hashes of known-bad media to a label such as csam or terror.
type HashLabeler struct {
	known       []knownHash
	MaxDistance int
}

// ParseKnownHashes reads "hexhash=label" pairs separated by commas.
func ParseKnownHashes(raw string) (*HashLabeler, error) {
	l := &HashLabeler{MaxDistance: DefaultMaxDistance}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		hexHash, label, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("known hash %q: expected hash=label", pair)
		}
		h, err := ParseHash(hexHash)
		if err != nil {
			return nil, fmt.Errorf("known hash %q: %w", pair, err)
		}
		l.Add(h, strings.ToLower(strings.TrimSpace(label)))
	}
	return l, nil
}

// Add registers a known-bad hash.
func (l *HashLabeler) Add(h uint64, label string) {
	l.known = append(l.known, knownHash{hash: h, label: label})
}

// Label returns the label of the closest known hash within MaxDistance,
// or "" when none matches.
func (l *HashLabeler) Label(h uint64) string {
	if l == nil {
		return ""
	}
	best, bestDist := "", l.MaxDistance+1
	for _, k := range l.known {
		if d := Distance(h, k.hash); d < bestDist {
			best, bestDist = k.label, d
		}
	}
	return best
}
