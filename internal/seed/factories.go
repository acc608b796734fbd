// Package seed generates demo moderation traffic for development and
// testing databases. It drives the real pipeline so cases, actions,
// restrictions and reputation rows come out the way production writes them.
package seed

import (
	"fmt"
	"strings"
	"time"

	"warden/internal/detectors"
	"warden/internal/models"
	"warden/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

// Event kinds produced by the factory.
const (
	KindClean   = "clean"
	KindProfane = "profane"
	KindLink    = "link"
	KindBurst   = "burst"
)

// Distribution is the share of each event kind, in percent.
type Distribution struct {
	Clean   int
	Profane int
	Link    int
	Burst   int
}

var defaultDistribution = Distribution{Clean: 60, Profane: 20, Link: 10, Burst: 10}

// Distributions holds named traffic shapes selectable from the CLI.
var Distributions = map[string]Distribution{
	"default": defaultDistribution,
	"calm":    {Clean: 90, Profane: 5, Link: 5},
	"raid":    {Clean: 20, Profane: 40, Link: 10, Burst: 30},
	"spam":    {Clean: 30, Profane: 5, Link: 50, Burst: 15},
}

// computeCounts splits n across the distribution; rounding error goes to clean.
func computeCounts(n int, d Distribution) (clean, profane, link, burst int) {
	total := d.Clean + d.Profane + d.Link + d.Burst
	if total <= 0 || n <= 0 {
		return n, 0, 0, 0
	}
	profane = n * d.Profane / total
	link = n * d.Link / total
	burst = n * d.Burst / total
	clean = n - profane - link - burst
	return clean, profane, link, burst
}

var (
	subjectTypes  = []string{"post", "comment", "message"}
	reportReasons = []string{"spam", "harassment", "hate", "nsfw", "impersonation", "other"}
	surfaces      = []string{"feed", "chat", "profile"}
	mimeTypes     = []string{"image/png", "image/jpeg", "image/webp", "image/gif"}
)

// Factory builds fake events, reports and attachments.
type Factory struct {
	faker   *gofakeit.Faker
	lexicon []string
	links   []string
	maxDays int
}

// NewFactory returns a factory; seed 0 picks a random seed. lexicon and
// links are the words and domains the generated abusive content draws from.
func NewFactory(seed int64, lexicon detectors.Lexicon, links []string, maxDays int) *Factory {
	words := make([]string, 0, len(lexicon))
	for w := range lexicon {
		words = append(words, w)
	}
	if len(words) == 0 {
		words = []string{"bar"}
	}
	if len(links) == 0 {
		links = []string{"bad.example"}
	}
	if maxDays <= 0 {
		maxDays = 30
	}
	return &Factory{faker: gofakeit.New(seed), lexicon: words, links: links, maxDays: maxDays}
}

// UserIDs returns n distinct fake user ids.
func (f *Factory) UserIDs(n int) []string {
	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for len(out) < n {
		id := fmt.Sprintf("%s-%d", strings.ToLower(f.faker.Username()), f.faker.Number(100, 9999))
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (f *Factory) pick(items []string) string {
	return items[f.faker.Number(0, len(items)-1)]
}

func (f *Factory) createdAt() time.Time {
	back := time.Duration(f.faker.Number(0, f.maxDays*24)) * time.Hour
	return time.Now().UTC().Add(-back)
}

// BuildEvent constructs a content event of the given kind for actor.
func (f *Factory) BuildEvent(actor, kind string) detectors.ContentEvent {
	text := f.faker.Sentence(f.faker.Number(6, 14))
	switch kind {
	case KindProfane:
		text = fmt.Sprintf("%s %s %s", text, f.pick(f.lexicon), f.faker.Sentence(4))
	case KindLink:
		text = fmt.Sprintf("%s https://%s/%s", text, f.pick(f.links), f.faker.Word())
	case KindBurst:
		text = f.faker.Sentence(3)
	}
	return detectors.ContentEvent{
		ID:          uuid.NewString(),
		ActorID:     actor,
		SubjectType: f.pick(subjectTypes),
		SubjectID:   f.faker.UUID(),
		Text:        text,
		Surface:     f.pick(surfaces),
		CreatedAt:   f.createdAt(),
	}
}

// BuildReport constructs a report by reporter against subject.
func (f *Factory) BuildReport(reporter string, subjectType, subjectID string) service.SubmitReportInput {
	return service.SubmitReportInput{
		ReporterID:  reporter,
		SubjectType: subjectType,
		SubjectID:   subjectID,
		Reason:      f.pick(reportReasons),
		Details:     f.faker.Sentence(8),
	}
}

// BuildAttachment constructs a pending attachment owned by owner.
func (f *Factory) BuildAttachment(owner string) *models.Attachment {
	mime := f.pick(mimeTypes)
	ext := strings.TrimPrefix(mime, "image/")
	return &models.Attachment{
		ID:           uuid.NewString(),
		StorageKey:   fmt.Sprintf("uploads/%s/%s.%s", owner, f.faker.UUID(), ext),
		OwnerID:      owner,
		SubjectType:  "post",
		SubjectID:    f.faker.UUID(),
		Surface:      f.pick(surfaces),
		MimeType:     mime,
		SizeBytes:    int64(f.faker.Number(10<<10, 4<<20)),
		SafetyStatus: models.SafetyPending,
	}
}
