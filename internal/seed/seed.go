package seed

import (
	"context"
	"errors"
	"fmt"
	"log"

	"warden/internal/database"
	"warden/internal/detectors"
	"warden/internal/models"
	"warden/internal/repository"
	"warden/internal/service"

	"gorm.io/gorm"
)

// burstSize is how many posts a burst actor writes back to back.
const burstSize = 8

// Options configures a seeding run.
type Options struct {
	NumUsers       int
	NumEvents      int
	NumReports     int
	NumAttachments int
	Distribution   string
	ShouldClean    bool
	// Seed makes runs reproducible; 0 is random.
	Seed    int64
	MaxDays int
}

// Summary counts what a run produced.
type Summary struct {
	Users       int
	Events      int
	Flagged     int
	Reports     int
	Rejected    int
	Attachments int
}

// EventProcessor evaluates content events.
type EventProcessor interface {
	Process(ctx context.Context, ev detectors.ContentEvent) (*service.PipelineResult, error)
}

// ReportSubmitter files user reports.
type ReportSubmitter interface {
	SubmitReport(ctx context.Context, in service.SubmitReportInput) (*models.ModerationReport, error)
}

// Seeder populates a database through the moderation services.
type Seeder struct {
	db          *gorm.DB
	events      EventProcessor
	reports     ReportSubmitter
	attachments repository.AttachmentRepository
	lexicon     detectors.Lexicon
	links       []string
}

// NewSeeder returns a seeder. db is only used by ClearAll.
func NewSeeder(db *gorm.DB, events EventProcessor, reports ReportSubmitter, attachments repository.AttachmentRepository) *Seeder {
	return &Seeder{
		db:          db,
		events:      events,
		reports:     reports,
		attachments: attachments,
		lexicon:     detectors.DefaultLexicon(),
	}
}

// WithContentSources sets the words and link hosts abusive events use.
func (s *Seeder) WithContentSources(lexicon detectors.Lexicon, links []string) *Seeder {
	if len(lexicon) > 0 {
		s.lexicon = lexicon
	}
	s.links = links
	return s
}

// ClearAll deletes every row of the schema-managed tables.
func (s *Seeder) ClearAll(ctx context.Context) error {
	if s.db == nil {
		return errors.New("seed: no database")
	}
	tx := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, m := range database.PersistentModels() {
		if err := tx.Delete(m).Error; err != nil {
			return fmt.Errorf("clear %T: %w", m, err)
		}
	}
	log.Println("✓ moderation tables cleared")
	return nil
}

// Run generates users, content events, reports and attachments.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Summary, error) {
	dist, ok := Distributions[opts.Distribution]
	if !ok {
		if opts.Distribution != "" {
			return nil, fmt.Errorf("unknown distribution %q", opts.Distribution)
		}
		dist = defaultDistribution
	}
	if opts.NumUsers <= 0 {
		return nil, errors.New("seed: at least one user is required")
	}

	if opts.ShouldClean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, err
		}
	}

	f := NewFactory(opts.Seed, s.lexicon, s.links, opts.MaxDays)
	users := f.UserIDs(opts.NumUsers)
	sum := &Summary{Users: len(users)}

	var subjects []detectors.ContentEvent
	emit := func(ev detectors.ContentEvent) error {
		res, err := s.events.Process(ctx, ev)
		if err != nil {
			return fmt.Errorf("process event %s: %w", ev.ID, err)
		}
		sum.Events++
		if res.Decision.Action != models.ActionNone {
			sum.Flagged++
		}
		subjects = append(subjects, ev)
		return nil
	}

	clean, profane, link, burst := computeCounts(opts.NumEvents, dist)
	kinds := []struct {
		kind string
		n    int
	}{{KindClean, clean}, {KindProfane, profane}, {KindLink, link}}
	for _, k := range kinds {
		for i := 0; i < k.n; i++ {
			if err := emit(f.BuildEvent(f.pick(users), k.kind)); err != nil {
				return sum, err
			}
		}
	}
	for written := 0; written < burst; {
		actor := f.pick(users)
		for j := 0; j < burstSize && written < burst; j++ {
			ev := f.BuildEvent(actor, KindBurst)
			ev.SubjectType = "post"
			if err := emit(ev); err != nil {
				return sum, err
			}
			written++
		}
	}
	log.Printf("✓ %d events processed, %d flagged", sum.Events, sum.Flagged)

	if s.reports != nil && len(subjects) > 0 {
		for i := 0; i < opts.NumReports; i++ {
			target := subjects[f.faker.Number(0, len(subjects)-1)]
			reporter := f.pick(users)
			if reporter == target.ActorID {
				continue
			}
			_, err := s.reports.SubmitReport(ctx, f.BuildReport(reporter, target.SubjectType, target.SubjectID))
			switch {
			case err == nil:
				sum.Reports++
			case errors.Is(err, models.ErrDuplicateReport),
				errors.Is(err, models.ErrReportLimitExceeded):
				sum.Rejected++
			default:
				return sum, fmt.Errorf("submit report: %w", err)
			}
		}
		log.Printf("✓ %d reports filed, %d rejected by limits", sum.Reports, sum.Rejected)
	}

	if s.attachments != nil {
		for i := 0; i < opts.NumAttachments; i++ {
			if err := s.attachments.Create(ctx, f.BuildAttachment(f.pick(users))); err != nil {
				return sum, fmt.Errorf("create attachment: %w", err)
			}
			sum.Attachments++
		}
		log.Printf("✓ %d pending attachments created", sum.Attachments)
	}
	return sum, nil
}
