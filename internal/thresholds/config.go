package thresholds

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"warden/internal/observability"

	"github.com/spf13/viper"
)

// ImageThresholds are classifier score cut-offs for media.
type ImageThresholds struct {
	NSFWSoft float64
	NSFWHard float64
	GoreHard float64
}

// TextThresholds are classifier score cut-offs for text labels.
type TextThresholds struct {
	Hate       float64
	SelfHarm   float64
	Toxicity   float64
	Harassment float64
}

// URLThresholds apply to numeric link risk scores.
type URLThresholds struct {
	RiskBlock  float64
	RiskReview float64
}

// Config is the full threshold configuration. Surfaces holds per-surface
// overrides keyed by "image.nsfw_soft" style paths.
type Config struct {
	Text     TextThresholds
	Image    ImageThresholds
	URL      URLThresholds
	Surfaces map[string]map[string]float64
	Sampling map[string]float64
}

// Defaults returns the built-in safe thresholds.
func Defaults() Config {
	return Config{
		Text:     TextThresholds{Hate: 0.85, SelfHarm: 0.80, Toxicity: 0.70, Harassment: 0.70},
		Image:    ImageThresholds{NSFWSoft: 0.60, NSFWHard: 0.90, GoreHard: 0.85},
		URL:      URLThresholds{RiskBlock: 0.90, RiskReview: 0.50},
		Surfaces: map[string]map[string]float64{},
		Sampling: map[string]float64{},
	}
}

// ImageFor returns image thresholds with the surface's overrides applied.
func (c Config) ImageFor(surface string) ImageThresholds {
	t := c.Image
	o := c.Surfaces[strings.ToLower(surface)]
	override(o, "image.nsfw_soft", &t.NSFWSoft)
	override(o, "image.nsfw_hard", &t.NSFWHard)
	override(o, "image.gore_hard", &t.GoreHard)
	return t
}

// TextFor returns text thresholds with the surface's overrides applied.
func (c Config) TextFor(surface string) TextThresholds {
	t := c.Text
	o := c.Surfaces[strings.ToLower(surface)]
	override(o, "text.hate", &t.Hate)
	override(o, "text.selfharm", &t.SelfHarm)
	override(o, "text.toxicity", &t.Toxicity)
	override(o, "text.harassment", &t.Harassment)
	return t
}

func override(o map[string]float64, key string, dst *float64) {
	if v, ok := o[key]; ok {
		*dst = v
	}
}

// Load reads the threshold file at path. A missing or unreadable file
// yields Defaults; a file the YAML reader rejects is read with the
// indentation parser instead.
func Load(path string) Config {
	if path == "" {
		return Defaults()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			observability.GlobalLogger.Warn("threshold config unreadable, using defaults", "path", path, "error", err)
		}
		return Defaults()
	}
	flat, err := readViper(raw)
	if err != nil {
		observability.GlobalLogger.Warn("threshold config rejected by yaml reader, using fallback parser", "path", path, "error", err)
		flat, err = ParseIndented(raw)
		if err != nil {
			observability.GlobalLogger.Warn("threshold config unparseable, using defaults", "path", path, "error", err)
			return Defaults()
		}
	}
	return FromFlat(flat)
}

func readViper(raw []byte) (map[string]float64, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	flat := make(map[string]float64)
	for _, key := range v.AllKeys() {
		f, err := strconv.ParseFloat(fmt.Sprint(v.Get(key)), 64)
		if err != nil {
			continue
		}
		flat[key] = f
	}
	return flat, nil
}

// ParseIndented reads nested "key: number" lines using indentation for
// nesting and returns dotted keys. Non-numeric values and list items are
// skipped.
func ParseIndented(raw []byte) (map[string]float64, error) {
	type frame struct {
		indent int
		key    string
	}
	var stack []frame
	flat := make(map[string]float64)

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		trimmed := strings.TrimLeft(line, " \t")
		indent := len(line) - len(trimmed)
		if strings.HasPrefix(trimmed, "-") {
			continue
		}
		key, value, ok := strings.Cut(trimmed, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: expected key: value", lineNo)
		}
		key = strings.ToLower(strings.Trim(strings.TrimSpace(key), `"'`))
		value = strings.TrimSpace(value)

		for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}
		if value == "" {
			stack = append(stack, frame{indent: indent, key: key})
			continue
		}
		f, err := strconv.ParseFloat(strings.Trim(value, `"'`), 64)
		if err != nil {
			continue
		}
		parts := make([]string, 0, len(stack)+1)
		for _, fr := range stack {
			parts = append(parts, fr.key)
		}
		flat[strings.Join(append(parts, key), ".")] = f
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return flat, nil
}

// FromFlat overlays dotted keys on Defaults. Unknown keys are ignored.
func FromFlat(flat map[string]float64) Config {
	cfg := Defaults()
	fields := map[string]*float64{
		"text.hate":       &cfg.Text.Hate,
		"text.selfharm":   &cfg.Text.SelfHarm,
		"text.toxicity":   &cfg.Text.Toxicity,
		"text.harassment": &cfg.Text.Harassment,
		"image.nsfw_soft": &cfg.Image.NSFWSoft,
		"image.nsfw_hard": &cfg.Image.NSFWHard,
		"image.gore_hard": &cfg.Image.GoreHard,
		"url.risk_block":  &cfg.URL.RiskBlock,
		"url.risk_review": &cfg.URL.RiskReview,
	}
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := flat[k]
		if dst, ok := fields[k]; ok {
			*dst = v
			continue
		}
		switch {
		case strings.HasPrefix(k, "surfaces."):
			name, rest, ok := strings.Cut(strings.TrimPrefix(k, "surfaces."), ".")
			if !ok {
				continue
			}
			if cfg.Surfaces[name] == nil {
				cfg.Surfaces[name] = make(map[string]float64)
			}
			cfg.Surfaces[name][rest] = v
		case strings.HasPrefix(k, "sampling."):
			cfg.Sampling[strings.TrimPrefix(k, "sampling.")] = v
		}
	}
	return cfg
}
