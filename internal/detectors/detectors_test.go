package detectors

import (
	"context"
	"errors"
	"testing"
	"time"

	"warden/internal/featureflags"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestProfanityMaxSeverityWins(t *testing.T) {
	t.Parallel()
	d := &ProfanityDetector{Lexicon: Lexicon{"foo": SeverityLow, "baz": SeverityHigh, "bar": SeverityMedium}}

	tests := []struct {
		name     string
		text     string
		severity string
		tokens   []string
	}{
		{name: "low and high", text: "foo and baz", severity: SeverityHigh, tokens: []string{"baz", "foo"}},
		{name: "leetspeak", text: "what a f00!", severity: SeverityLow, tokens: []string{"foo"}},
		{name: "symbols", text: "B@R", severity: SeverityMedium, tokens: []string{"bar"}},
		{name: "diacritics", text: "bár", severity: SeverityMedium, tokens: []string{"bar"}},
		{name: "clean", text: "hello world", severity: SeverityUnknown, tokens: []string{}},
		{name: "repeated", text: "foo foo foo", severity: SeverityLow, tokens: []string{"foo"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			severity, tokens := d.Score(tt.text)
			assert.Equal(t, tt.severity, severity)
			assert.Equal(t, tt.tokens, tokens)
		})
	}
}

func TestParseLexicon(t *testing.T) {
	lex, err := ParseLexicon("Foo=low, b4r=HIGH")
	require.NoError(t, err)
	assert.Equal(t, Lexicon{"foo": SeverityLow, "bar": SeverityHigh}, lex)

	_, err = ParseLexicon("foo")
	assert.Error(t, err)
	_, err = ParseLexicon("foo=severe")
	assert.Error(t, err)
}

func TestVelocityThreshold(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 10, VelocityThreshold("post", 80))
	assert.Equal(t, 2, VelocityThreshold("post", 10))
	assert.Equal(t, 5, VelocityThreshold("post", 50))
	assert.Equal(t, 24, VelocityThreshold("comment", 71))
	assert.Equal(t, 6, VelocityThreshold("comment", 0))
}

func TestVelocityScalesWithTrust(t *testing.T) {
	tests := []struct {
		name       string
		trust      int
		flaggedAt  int
		totalPosts int
	}{
		{name: "trusted poster", trust: 80, flaggedAt: 11, totalPosts: 12},
		{name: "low trust poster", trust: 10, flaggedAt: 3, totalPosts: 4},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			d := &VelocityDetector{Store: NewMemCounterStore(128, time.Minute)}
			ev := ContentEvent{ActorID: "u1", SubjectType: "post", TrustScore: intPtr(tt.trust)}
			for i := 1; i <= tt.totalPosts; i++ {
				out := Signals{}
				require.NoError(t, d.Detect(context.Background(), ev, out))
				assert.Equal(t, i >= tt.flaggedAt, out.Bool(SignalVelocityExceeded), "post %d", i)
			}
		})
	}
}

func TestDuplicateDetectorRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Unix(1_700_000_010, 0)
	d := &DuplicateDetector{Store: NewRedisCounterStore(client), Now: func() time.Time { return now }}
	ev := ContentEvent{ActorID: "u1", Text: "Buy   NOW"}

	var last Signals
	for i := 0; i < 3; i++ {
		last = Signals{}
		require.NoError(t, d.Detect(context.Background(), ev, last))
	}
	assert.True(t, last.Bool(SignalTextDuplicate))
	assert.Equal(t, 3, last[SignalTextDuplicateCount])

	key := "dup:u1:56666667:" + Fingerprint("buy now")
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 300*time.Second, mr.TTL(key))

	// a different actor has its own bucket
	other := Signals{}
	require.NoError(t, d.Detect(context.Background(), ContentEvent{ActorID: "u2", Text: "buy now"}, other))
	assert.False(t, other.Bool(SignalTextDuplicate))
}

func TestLinkDetector(t *testing.T) {
	t.Parallel()
	d := &LinkDetector{Denylist: ParseDenylist("evil.com, .spam.io"), MaxLinks: 3}

	out := Signals{}
	require.NoError(t, d.Detect(context.Background(), ContentEvent{
		Text: "see https://WWW.Evil.com/x and http://cdn.spam.io/a, www.fine.org.",
	}, out))
	assert.True(t, out.Bool(SignalLinksDenylisted))
	assert.False(t, out.Bool(SignalLinksExcessive))
	assert.Equal(t, 3, out[SignalLinksCount])
	assert.Equal(t, []string{"cdn.spam.io", "evil.com"}, out[SignalLinksHosts])

	out = Signals{}
	require.NoError(t, d.Detect(context.Background(), ContentEvent{
		Text: "http://a.org http://b.org http://c.org http://d.org notevil.com.example",
	}, out))
	assert.True(t, out.Bool(SignalLinksExcessive))
	assert.False(t, out.Bool(SignalLinksDenylisted))
}

type failingDetector struct {
	panics bool
}

func (f *failingDetector) Name() string { return "broken" }

func (f *failingDetector) Detect(context.Context, ContentEvent, Signals) error {
	if f.panics {
		panic("boom")
	}
	return errors.New("classifier unavailable")
}

func (f *failingDetector) Fallback(out Signals) { out["broken.flag"] = false }

func TestSuiteRecoversDetectorFailures(t *testing.T) {
	t.Parallel()
	for _, panics := range []bool{false, true} {
		s := NewSuite(nil, &failingDetector{panics: panics}, &ProfanityDetector{Lexicon: DefaultLexicon()})
		out := s.Evaluate(context.Background(), ContentEvent{Text: "bar"})
		assert.Equal(t, false, out["broken.flag"])
		assert.Equal(t, SeverityMedium, out.String(SignalTextSeverity))
	}
}

func TestSuiteMissingCounterStoreFallsBack(t *testing.T) {
	t.Parallel()
	s := NewDefaultSuite(Config{})
	out := s.Evaluate(context.Background(), ContentEvent{ActorID: "u1", SubjectType: "post", Text: "this is bar content"})
	assert.Equal(t, SeverityMedium, out.String(SignalTextSeverity))
	assert.False(t, out.Bool(SignalTextDuplicate))
	assert.False(t, out.Bool(SignalVelocityExceeded))
}

func TestSuiteFeatureFlagDisablesDetector(t *testing.T) {
	t.Parallel()
	s := NewDefaultSuite(Config{
		Counters: NewMemCounterStore(64, time.Minute),
		Flags:    featureflags.NewManager("detector_profanity=off"),
	})
	out := s.Evaluate(context.Background(), ContentEvent{ActorID: "u1", SubjectType: "post", Text: "baz"})
	assert.Equal(t, SeverityUnknown, out.String(SignalTextSeverity))
	assert.Equal(t, 1, out[SignalVelocityCount])
}

func TestMemCounterStoreExpiry(t *testing.T) {
	s := NewMemCounterStore(8, time.Hour)
	now := time.Unix(0, 0)
	s.now = func() time.Time { return now }

	n, _ := s.Incr(context.Background(), "k", time.Minute)
	assert.EqualValues(t, 1, n)
	n, _ = s.Incr(context.Background(), "k", time.Minute)
	assert.EqualValues(t, 2, n)

	now = now.Add(2 * time.Minute)
	n, _ = s.Incr(context.Background(), "k", time.Minute)
	assert.EqualValues(t, 1, n)
}
