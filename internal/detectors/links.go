package detectors

import (
	"context"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/purell"
)

// DefaultMaxLinks is the link count above which content is excessive.
const DefaultMaxLinks = 3

var urlRegex = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"'()\[\]]+`)

// LinkDetector flags denylisted hosts and link-heavy content.
type LinkDetector struct {
	Denylist []string
	MaxLinks int
}

// ParseDenylist splits a comma separated host list.
func ParseDenylist(raw string) []string {
	var out []string
	for _, h := range strings.Split(raw, ",") {
		h = strings.Trim(strings.ToLower(strings.TrimSpace(h)), ".")
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}

func (d *LinkDetector) Name() string { return "links" }

func (d *LinkDetector) Detect(_ context.Context, ev ContentEvent, out Signals) error {
	hosts := ExtractHosts(ev.Text)
	limit := d.MaxLinks
	if limit <= 0 {
		limit = DefaultMaxLinks
	}
	bad := d.denylisted(hosts)
	out[SignalLinksCount] = len(hosts)
	out[SignalLinksExcessive] = len(hosts) > limit
	out[SignalLinksDenylisted] = len(bad) > 0
	out[SignalLinksHosts] = bad
	return nil
}

func (d *LinkDetector) Fallback(out Signals) {
	out[SignalLinksCount] = 0
	out[SignalLinksExcessive] = false
	out[SignalLinksDenylisted] = false
	out[SignalLinksHosts] = []string{}
}

func (d *LinkDetector) denylisted(hosts []string) []string {
	set := make(map[string]struct{})
	for _, h := range hosts {
		for _, entry := range d.Denylist {
			if h == entry || strings.HasSuffix(h, "."+entry) {
				set[h] = struct{}{}
				break
			}
		}
	}
	out := make([]string, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// ExtractHosts returns the normalized host of every URL in text, one entry
// per link occurrence.
func ExtractHosts(text string) []string {
	var hosts []string
	for _, raw := range urlRegex.FindAllString(text, -1) {
		raw = strings.TrimRight(raw, ".,;:!?")
		if !strings.Contains(strings.ToLower(raw), "://") {
			raw = "http://" + raw
		}
		normalized, err := purell.NormalizeURLString(raw, purell.FlagsUsuallySafeGreedy|purell.FlagRemoveWWW)
		if err != nil {
			continue
		}
		u, err := url.Parse(normalized)
		if err != nil || u.Hostname() == "" {
			continue
		}
		hosts = append(hosts, strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."))
	}
	return hosts
}
