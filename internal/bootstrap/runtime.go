// Package bootstrap connects infrastructure and wires the moderation engine
// shared by the server and scanner binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"warden/internal/cache"
	"warden/internal/config"
	"warden/internal/database"
	"warden/internal/detectors"
	"warden/internal/detectors/visual"
	"warden/internal/enforcement"
	"warden/internal/featureflags"
	"warden/internal/notifications"
	"warden/internal/policy"
	"warden/internal/repository"
	"warden/internal/restrictions"
	"warden/internal/robusthttp"
	"warden/internal/scanner"
	"warden/internal/service"
	"warden/internal/streams"
	"warden/internal/subjects"
	"warden/internal/thresholds"
	"warden/internal/trust"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	ApplySchema bool
}

// InitRuntime connects to the database and Redis and optionally applies
// the schema.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := cache.InitRedis(cfg.RedisURL); err != nil {
		return nil, nil, fmt.Errorf("redis connection failed: %w", err)
	}

	if opts.ApplySchema {
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return nil, nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return db, cache.GetClient(), nil
}

// Engine holds the wired moderation components.
type Engine struct {
	Config       *config.Config
	DB           *gorm.DB
	Redis        *redis.Client
	Flags        *featureflags.Manager
	Thresholds   thresholds.Config
	Policy       *policy.Policy
	Streams      *streams.RedisStreams
	Cursors      *streams.RedisCursorStore
	Notifier     *notifications.Notifier
	Subjects     *subjects.CachedResolver
	Restrictions *restrictions.Ledger
	Trust        *trust.TrustLedger
	Reputation   *trust.ReputationService
	Coordinator  *enforcement.Coordinator
	Cases        *service.CaseService
	Pipeline     *service.Pipeline
	Attachments  repository.AttachmentRepository
}

// BuildEngine wires repositories, ledgers, hooks and services over db and rdb.
func BuildEngine(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*Engine, error) {
	pol, err := policy.LoadOrDefault(cfg.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	lexicon := detectors.DefaultLexicon()
	if cfg.ProfanityLexicon != "" {
		if lexicon, err = detectors.ParseLexicon(cfg.ProfanityLexicon); err != nil {
			return nil, fmt.Errorf("parse lexicon: %w", err)
		}
	}

	e := &Engine{
		Config:     cfg,
		DB:         db,
		Redis:      rdb,
		Flags:      featureflags.NewManager(cfg.FeatureFlags),
		Thresholds: thresholds.Load(cfg.ThresholdsPath),
		Policy:     pol,
		Streams:    streams.NewRedisStreams(rdb, cfg.StreamMaxLen),
		Cursors:    streams.NewRedisCursorStore(rdb),
		Notifier:   notifications.NewNotifier(rdb),
	}

	modRepo := repository.NewModerationRepository(db)
	e.Attachments = repository.NewAttachmentRepository(db)
	e.Trust = trust.NewTrustLedger(repository.NewTrustRepository(db))
	e.Reputation = trust.NewReputationService(repository.NewReputationRepository(db), trust.ReputationConfig{
		DecayRate:   cfg.ReputationDecayRate,
		DecayWindow: cfg.DecayWindow(),
	})
	e.Restrictions = restrictions.NewLedger(repository.NewRestrictionRepository(db), restrictions.NewRedisFlagStore(rdb), restrictions.Config{
		FlagPrefix: cfg.RestrictionFlagPrefix,
	})

	var (
		content     enforcement.ContentHooks = enforcement.LogHooks{}
		owners      subjects.OwnerResolver
		handles     subjects.HandleResolver
		restorer    service.ContentRestorer
		memberships service.MembershipRestorer
	)
	if cfg.ContentAPIURL != "" {
		client := robusthttp.NewClient(10 * time.Second)
		webhooks := enforcement.NewWebhookHooks(client, cfg.ContentAPIURL, cfg.ContentAPIToken)
		content, restorer, memberships = webhooks, webhooks, webhooks
		resolver := subjects.NewHTTPResolver(client, cfg.ContentAPIURL, cfg.ContentAPIToken)
		owners, handles = resolver, resolver
	} else {
		log.Println("CONTENT_API_URL not set: content hooks are logged only")
	}
	e.Subjects = subjects.NewCachedResolver(owners, handles, cfg.SubjectCacheSize, cfg.SubjectCacheTTL())

	hooks := enforcement.NewEngineHooks(content, e.Restrictions, e.Notifier)
	e.Coordinator = enforcement.NewCoordinator(modRepo, hooks)
	if cfg.DefaultRestrictTTLMin > 0 {
		e.Coordinator.RestrictTTL = time.Duration(cfg.DefaultRestrictTTLMin) * time.Minute
	}

	failures := service.NewLogAndContinue()
	e.Cases = service.NewCaseService(service.CaseServiceDeps{
		Repo:        modRepo,
		Enforcer:    e.Coordinator,
		Trust:       e.Trust,
		Reputation:  e.Reputation,
		Subjects:    e.Subjects,
		Handles:     e.Subjects,
		Notifier:    e.Notifier,
		Streams:     e.Streams,
		Content:     restorer,
		Memberships: memberships,
		Revoker:     e.Restrictions,
		Failures:    failures,
	}, service.CaseServiceConfig{
		MaxOpenReports:      cfg.MaxOpenReports,
		EscalationThreshold: cfg.EscalationThreshold,
		ReportsStream:       cfg.ReportsStream,
		AppealsStream:       cfg.AppealsStream,
		EscalationsStream:   cfg.EscalationsStream,
	})

	suite := detectors.NewDefaultSuite(detectors.Config{
		Counters: detectors.NewRedisCounterStore(rdb),
		Lexicon:  lexicon,
		Denylist: detectors.ParseDenylist(cfg.LinkDenylist),
		Flags:    e.Flags,
	})
	e.Pipeline = service.NewPipeline(suite, pol, e.Thresholds, e.Coordinator, e.Trust, e.Reputation, failures)
	return e, nil
}

// ScanWorker builds the media safety worker. It resumes from its committed
// cursor when run. The fetcher is S3 when
// S3_ENDPOINT is set, otherwise the HTTP media origin.
func (e *Engine) ScanWorker() (*scanner.Worker, error) {
	cfg := e.Config
	oracle := robusthttp.NewClient(30 * time.Second)

	var fetcher scanner.Fetcher
	if cfg.S3Endpoint != "" {
		client, err := scanner.NewMinioClient(scanner.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return nil, err
		}
		fetcher = scanner.NewMinioFetcher(client, cfg.S3Bucket)
	} else {
		if cfg.MediaBaseURL == "" {
			return nil, fmt.Errorf("either S3_ENDPOINT or MEDIA_BASE_URL is required")
		}
		fetcher = scanner.NewHTTPFetcher(oracle, cfg.MediaBaseURL)
	}

	hashes, err := visual.ParseKnownHashes(cfg.KnownBadHashes)
	if err != nil {
		return nil, fmt.Errorf("parse known hashes: %w", err)
	}

	deps := scanner.WorkerDeps{
		Reader:      e.Streams,
		Cursors:     e.Cursors,
		Publisher:   e.Streams,
		Attachments: e.Attachments,
		Fetcher:     fetcher,
		Hashes:      hashes,
		Media:       e.Pipeline,
	}
	if cfg.ClassifierURL != "" {
		deps.Classifier = visual.NewHTTPClassifier(oracle, cfg.ClassifierURL, "")
	}
	if cfg.OCRURL != "" {
		deps.OCR = visual.NewHTTPOCR(oracle, cfg.OCRURL)
	}
	return scanner.NewWorker(deps, scanner.WorkerConfig{
		IngressStream:    cfg.ScanIngressStream,
		ResultsStream:    cfg.ScanResultsStream,
		QuarantineStream: cfg.ScanQuarantineStream,
		BatchSize:        cfg.ScanBatchSize,
		Block:            cfg.ScanBlock(),
		MaxBytes:         cfg.ScanMaxBytes,
		Thresholds:       e.Thresholds,
	}), nil
}

// TextConsumer builds the ingress text consumer.
func (e *Engine) TextConsumer() *scanner.TextConsumer {
	return scanner.NewTextConsumer(e.Streams, e.Cursors, e.Pipeline, e.Config.ScanIngressStream, e.Config.ScanBatchSize, e.Config.ScanBlock())
}
