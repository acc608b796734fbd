package scanner

import (
	"context"
	"fmt"
	"time"

	"warden/internal/detectors"
	"warden/internal/observability"
	"warden/internal/service"
	"warden/internal/streams"
)

// TextProcessor evaluates one content event.
type TextProcessor interface {
	Process(ctx context.Context, ev detectors.ContentEvent) (*service.PipelineResult, error)
}

// TextConsumer reads text events from the ingress stream with its own
// cursor and runs them through the pipeline.
type TextConsumer struct {
	reader    streams.Reader
	cursors   streams.CursorStore
	processor TextProcessor
	stream    string
	batchSize int64
	block     time.Duration
	cursor    string
	log       *observability.WorkerLogger
}

// NewTextConsumer creates a consumer of stream. cursors may be nil.
func NewTextConsumer(reader streams.Reader, cursors streams.CursorStore, processor TextProcessor, stream string, batchSize int64, block time.Duration) *TextConsumer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if block == 0 {
		block = DefaultBlock
	}
	return &TextConsumer{
		reader:    reader,
		cursors:   cursors,
		processor: processor,
		stream:    stream,
		batchSize: batchSize,
		block:     block,
		cursor:    streams.StartCursor,
		log:       observability.NewWorkerLogger(TextConsumerName),
	}
}

// Cursor returns the id of the last drained entry.
func (c *TextConsumer) Cursor() string {
	return c.cursor
}

// SetCursor resumes from a committed cursor.
func (c *TextConsumer) SetCursor(cursor string) {
	if cursor != "" {
		c.cursor = cursor
	}
}

// Resume loads the committed cursor, if any.
func (c *TextConsumer) Resume(ctx context.Context) error {
	cursor, err := loadCursor(ctx, c.cursors, c.stream, TextConsumerName)
	if err != nil {
		return err
	}
	c.SetCursor(cursor)
	return nil
}

// Run resumes from the committed cursor and consumes batches until ctx is
// cancelled.
func (c *TextConsumer) Run(ctx context.Context) error {
	if err := c.Resume(ctx); err != nil {
		return err
	}
	c.log.LogLifecycle(ctx, "start", map[string]interface{}{"stream": c.stream, "cursor": c.cursor})
	defer c.log.LogLifecycle(ctx, "stop", map[string]interface{}{"cursor": c.cursor})

	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := c.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			observability.LogAsyncOperationError(ctx, "text_consume_read", err, map[string]interface{}{"stream": c.stream})
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

// RunOnce drains one batch of text events.
func (c *TextConsumer) RunOnce(ctx context.Context) (int, error) {
	entries, err := c.reader.Read(ctx, c.stream, c.cursor, c.batchSize, c.block)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	defer observability.TrackBatch("text_consumer")()
	ctx = observability.WithCorrelationID(ctx, observability.GenerateCorrelationID())

	processed, failed := 0, 0
	for _, e := range entries {
		if e.Fields[FieldType] != TypeText {
			observability.ScanItems.WithLabelValues("text_consumer", "skipped").Inc()
			continue
		}
		if err := c.handle(ctx, e); err != nil {
			failed++
			observability.ScanItems.WithLabelValues("text_consumer", "failed").Inc()
			c.log.LogItemError(ctx, c.stream, e.ID, err)
			continue
		}
		processed++
		observability.ScanItems.WithLabelValues("text_consumer", "processed").Inc()
	}
	c.cursor = entries[len(entries)-1].ID
	commitCursor(ctx, c.cursors, c.stream, TextConsumerName, c.cursor)
	c.log.LogBatch(ctx, c.stream, len(entries), processed, failed, c.cursor)
	return len(entries), nil
}

func (c *TextConsumer) handle(ctx context.Context, e streams.Entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	ev := ParseTextEvent(e.Fields)
	if ev.ID == "" {
		ev.ID = e.ID
	}
	_, err = c.processor.Process(ctx, ev)
	return err
}
