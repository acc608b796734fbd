package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"warden/internal/detectors/visual"
	"warden/internal/models"
	"warden/internal/observability"
	"warden/internal/repository"
	"warden/internal/service"
	"warden/internal/streams"
	"warden/internal/thresholds"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Worker defaults.
const (
	DefaultBatchSize = 16
	DefaultBlock     = 5 * time.Second

	// Consumer names under which cursors are committed.
	WorkerConsumer   = "safety_scanner"
	TextConsumerName = "text_consumer"
)

// errSkipped marks entries the worker does not handle.
var errSkipped = errors.New("skipped")

// MediaProcessor routes a media verdict through the moderation policy.
type MediaProcessor interface {
	ProcessMedia(ctx context.Context, a *models.Attachment, res thresholds.Result) (*service.PipelineResult, error)
}

// WorkerConfig tunes the safety worker.
type WorkerConfig struct {
	IngressStream    string
	ResultsStream    string
	QuarantineStream string
	BatchSize        int64
	Block            time.Duration
	MaxBytes         int64
	Thresholds       thresholds.Config
}

// WorkerDeps are the worker's collaborators. Classifier, OCR, Hashes,
// Media and Cursors may be nil. Without Cursors the worker starts at the
// head of the stream on every run.
type WorkerDeps struct {
	Reader      streams.Reader
	Cursors     streams.CursorStore
	Publisher   streams.Publisher
	Attachments repository.AttachmentRepository
	Fetcher     Fetcher
	Classifier  visual.Classifier
	OCR         visual.OCR
	Hashes      *visual.HashLabeler
	Media       MediaProcessor
}

// Worker is the single-consumer media safety loop.
type Worker struct {
	deps   WorkerDeps
	cfg    WorkerConfig
	cursor string
	log    *observability.WorkerLogger
	now    func() time.Time
}

// NewWorker creates a Worker starting at streams.StartCursor.
func NewWorker(deps WorkerDeps, cfg WorkerConfig) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Block == 0 {
		cfg.Block = DefaultBlock
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	return &Worker{
		deps:   deps,
		cfg:    cfg,
		cursor: streams.StartCursor,
		log:    observability.NewWorkerLogger(WorkerConsumer),
		now:    time.Now,
	}
}

// SetCursor resumes from a committed cursor.
func (w *Worker) SetCursor(cursor string) {
	if cursor != "" {
		w.cursor = cursor
	}
}

// Cursor returns the id of the last drained entry.
func (w *Worker) Cursor() string {
	return w.cursor
}

// Resume loads the committed cursor, if any.
func (w *Worker) Resume(ctx context.Context) error {
	cursor, err := loadCursor(ctx, w.deps.Cursors, w.cfg.IngressStream, WorkerConsumer)
	if err != nil {
		return err
	}
	w.SetCursor(cursor)
	return nil
}

// Run resumes from the committed cursor and consumes batches until ctx is
// cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.Resume(ctx); err != nil {
		return err
	}
	w.log.LogLifecycle(ctx, "start", map[string]interface{}{"stream": w.cfg.IngressStream, "cursor": w.cursor})
	defer w.log.LogLifecycle(ctx, "stop", map[string]interface{}{"cursor": w.cursor})

	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := w.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			observability.LogAsyncOperationError(ctx, "safety_scan_read", err, map[string]interface{}{"stream": w.cfg.IngressStream})
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

// RunOnce reads and drains one batch, returning the number of entries
// read. The cursor advances and is committed only after every entry is
// handled, so a restart re-reads at most the batch in flight.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	entries, err := w.deps.Reader.Read(ctx, w.cfg.IngressStream, w.cursor, w.cfg.BatchSize, w.cfg.Block)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	defer observability.TrackBatch("safety_scanner")()
	ctx = observability.WithCorrelationID(ctx, observability.GenerateCorrelationID())

	processed, failed := 0, 0
	for _, e := range entries {
		switch err := w.handle(ctx, e); {
		case errors.Is(err, errSkipped):
			observability.ScanItems.WithLabelValues("safety_scanner", "skipped").Inc()
		case err != nil:
			failed++
			observability.ScanItems.WithLabelValues("safety_scanner", "failed").Inc()
			w.log.LogItemError(ctx, w.cfg.IngressStream, e.ID, err)
		default:
			processed++
			observability.ScanItems.WithLabelValues("safety_scanner", "processed").Inc()
		}
	}
	w.cursor = entries[len(entries)-1].ID
	commitCursor(ctx, w.deps.Cursors, w.cfg.IngressStream, WorkerConsumer, w.cursor)
	w.log.LogBatch(ctx, w.cfg.IngressStream, len(entries), processed, failed, w.cursor)
	return len(entries), nil
}

func loadCursor(ctx context.Context, store streams.CursorStore, stream, consumer string) (string, error) {
	if store == nil {
		return "", nil
	}
	return store.Load(ctx, stream, consumer)
}

// commitCursor failures are logged; the next commit supersedes them and a
// restart in between replays one extra batch.
func commitCursor(ctx context.Context, store streams.CursorStore, stream, consumer, cursor string) {
	if store == nil {
		return
	}
	if err := store.Commit(ctx, stream, consumer, cursor); err != nil {
		observability.BestEffortFailures.WithLabelValues("cursor_commit").Inc()
		observability.LogAsyncOperationError(ctx, "cursor_commit", err, map[string]interface{}{
			"stream":   stream,
			"consumer": consumer,
			"cursor":   cursor,
		})
	}
}

func (w *Worker) handle(ctx context.Context, e streams.Entry) (err error) {
	kind := e.Fields[FieldType]
	if kind != TypeImage && kind != TypeFile {
		return errSkipped
	}

	defer func() {
		if r := recover(); r != nil {
			observability.GlobalLogger.ErrorContext(ctx, "panic while scanning",
				slog.Any("panic", r),
				slog.String("entry_id", e.ID),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	span, ctx := observability.NewSpan(ctx, "Scanner.Scan")
	defer func() {
		span.SetError(err)
		span.End()
	}()
	span.AddAttributes(attribute.String("entry_id", e.ID))

	a, err := w.resolve(ctx, e.Fields)
	if err != nil {
		return err
	}
	return w.Scan(ctx, a, e.Fields[FieldSurface])
}

func (w *Worker) resolve(ctx context.Context, fields map[string]string) (*models.Attachment, error) {
	if id := fields[FieldAttachmentID]; id != "" {
		return w.deps.Attachments.GetByID(ctx, id)
	}
	if key := fields[FieldStorageKey]; key != "" {
		return w.deps.Attachments.GetByStorageKey(ctx, key)
	}
	return nil, fmt.Errorf("entry has neither %s nor %s", FieldAttachmentID, FieldStorageKey)
}

type mediaSignals struct {
	scores    visual.Scores
	phash     string
	hashLabel string
	ocrText   string
}

// detect runs the classifier, perceptual hash and OCR concurrently. Each
// failure degrades to a zero result and is counted.
func (w *Worker) detect(ctx context.Context, data []byte, mime string) mediaSignals {
	var out mediaSignals
	g, gctx := errgroup.WithContext(ctx)

	recovered := func(name string, fn func() error) func() error {
		return func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic: %v", r)
				}
				if err != nil {
					observability.DetectorFailures.WithLabelValues(name).Inc()
					observability.GlobalLogger.WarnContext(ctx, "media detector failed",
						slog.String("detector", name),
						slog.String("error", err.Error()),
					)
				}
			}()
			return fn()
		}
	}

	if w.deps.Classifier != nil {
		g.Go(func() error {
			_ = recovered("classifier", func() error {
				s, err := w.deps.Classifier.Score(gctx, data, mime)
				if err == nil {
					out.scores = s
				}
				return err
			})()
			return nil
		})
	}
	g.Go(func() error {
		_ = recovered("phash", func() error {
			h, err := visual.AverageHash(data)
			if err != nil {
				return err
			}
			out.phash = visual.FormatHash(h)
			out.hashLabel = w.deps.Hashes.Label(h)
			return nil
		})()
		return nil
	})
	if w.deps.OCR != nil {
		g.Go(func() error {
			_ = recovered("ocr", func() error {
				text, err := w.deps.OCR.Extract(gctx, data, mime)
				if err == nil {
					out.ocrText = strings.TrimSpace(text)
				}
				return err
			})()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Scan fetches, evaluates and persists one attachment, then publishes
// results and hands the verdict to the policy.
func (w *Worker) Scan(ctx context.Context, a *models.Attachment, surface string) error {
	if surface == "" {
		surface = a.Surface
	}
	data, err := w.deps.Fetcher.Fetch(ctx, a.StorageKey, w.cfg.MaxBytes)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", a.StorageKey, err)
	}

	sig := w.detect(ctx, data, a.MimeType)
	res := thresholds.EvaluateImage(w.cfg.Thresholds, sig.scores.NSFW, sig.scores.Gore, sig.hashLabel, surface)
	observability.SafetyVerdicts.WithLabelValues(string(res.Status)).Inc()

	now := w.now().UTC()
	a.SafetyStatus = res.Status
	a.SafetyLevel = res.Level
	a.SafetyReasons = res.Reasons
	a.NSFWScore = sig.scores.NSFW
	a.GoreScore = sig.scores.Gore
	a.PHash = sig.phash
	a.HashLabel = sig.hashLabel
	a.OCRText = sig.ocrText
	a.ScannedAt = &now
	if a.SizeBytes == 0 {
		a.SizeBytes = int64(len(data))
	}
	if err := w.deps.Attachments.SaveSafety(ctx, a); err != nil {
		return fmt.Errorf("save safety %s: %w", a.ID, err)
	}

	w.publish(ctx, w.cfg.ResultsStream, resultFields(a, res))
	switch {
	case res.Status != models.SafetyClean:
		w.publish(ctx, w.cfg.QuarantineStream, resultFields(a, res))
	case thresholds.ShouldSample(w.cfg.Thresholds, "clean", a.ID):
		fields := resultFields(a, res)
		fields["sampled"] = "true"
		w.publish(ctx, w.cfg.QuarantineStream, fields)
	}

	if sig.ocrText != "" {
		w.reinjectText(ctx, a, surface)
	}

	if w.deps.Media != nil {
		if _, err := w.deps.Media.ProcessMedia(ctx, a, res); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) reinjectText(ctx context.Context, a *models.Attachment, surface string) {
	subjectType, subjectID := a.SubjectType, a.SubjectID
	if subjectType == "" || subjectID == "" {
		subjectType, subjectID = "attachment", a.ID
	}
	fields := map[string]string{
		FieldType:        TypeText,
		FieldEventID:     "ocr:" + a.ID,
		FieldActorID:     a.OwnerID,
		FieldSubjectType: subjectType,
		FieldSubjectID:   subjectID,
		FieldText:        a.OCRText,
		FieldCreatedAt:   w.now().UTC().Format(time.RFC3339),
	}
	if surface != "" {
		fields[FieldSurface] = surface
	}
	w.publish(ctx, w.cfg.IngressStream, fields)
}

func (w *Worker) publish(ctx context.Context, stream string, fields map[string]string) {
	if stream == "" || w.deps.Publisher == nil {
		return
	}
	if _, err := w.deps.Publisher.Publish(ctx, stream, fields); err != nil {
		observability.BestEffortFailures.WithLabelValues("scan_publish").Inc()
		observability.GlobalLogger.WarnContext(ctx, "scan publish failed",
			slog.String("stream", stream),
			slog.String("error", err.Error()),
		)
	}
}
