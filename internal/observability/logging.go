// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Logger wraps slog.Logger to provide specialized logging methods.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is the default logger instance for the application.
var GlobalLogger *Logger

func init() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	GlobalLogger = &Logger{Logger: slog.New(handler)}
}

// UseLogger replaces the handler behind GlobalLogger, typically with the
// context-aware handler installed by the middleware package.
func UseLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	GlobalLogger = &Logger{Logger: l}
}

// LogContextKey is a type for context keys used by the logging package.
type LogContextKey string

// Context keys for logging
const (
	CorrelationID LogContextKey = "correlation_id"
	SpanID        LogContextKey = "span_id"
	TraceID       LogContextKey = "trace_id"
)

// LoggingConfig defines which types of automated logging are enabled.
type LoggingConfig struct {
	EnableRepoLogging   bool
	EnableWorkerLogging bool
}

var (
	// Config holds the current logging configuration.
	Config = LoggingConfig{
		EnableRepoLogging:   true,
		EnableWorkerLogging: true,
	}
)

// GenerateCorrelationID creates a new unique correlation ID.
func GenerateCorrelationID() string {
	return uuid.NewString()
}

// WithCorrelationID returns a new context with the given correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationID, id)
}

// ExtractCorrelationID retrieves the correlation ID from the context.
func ExtractCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationID).(string); ok {
		return id
	}
	return ""
}

// RepoLogger provides structured logging for repository operations.
type RepoLogger struct {
	tableName string
	logger    *Logger
}

// NewRepoLogger creates a new RepoLogger for the given table.
func NewRepoLogger(tableName string) *RepoLogger {
	return &RepoLogger{
		tableName: tableName,
		logger:    GlobalLogger,
	}
}

func (l *RepoLogger) log(ctx context.Context, operation, msg string, fields map[string]interface{}) {
	if !Config.EnableRepoLogging {
		return
	}
	attrs := []any{
		slog.String("table", l.tableName),
		slog.String("operation", operation),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	l.logger.DebugContext(ctx, msg, attrs...)
}

// LogCreate logs a repository create operation.
func (l *RepoLogger) LogCreate(ctx context.Context, fields map[string]interface{}) {
	l.log(ctx, "create", "repository create", fields)
}

// LogUpdate logs a repository update operation.
func (l *RepoLogger) LogUpdate(ctx context.Context, fields map[string]interface{}) {
	l.log(ctx, "update", "repository update", fields)
}

// LogError logs a repository error.
func (l *RepoLogger) LogError(ctx context.Context, err error, operation string) {
	if !Config.EnableRepoLogging {
		return
	}
	l.logger.ErrorContext(ctx, "repository error",
		slog.String("table", l.tableName),
		slog.String("operation", operation),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
		slog.String("error", err.Error()),
	)
}

// WorkerLogger provides structured logging for stream consumers.
type WorkerLogger struct {
	worker string
	logger *Logger
}

// NewWorkerLogger creates a new WorkerLogger for the named consumer.
func NewWorkerLogger(worker string) *WorkerLogger {
	return &WorkerLogger{
		worker: worker,
		logger: GlobalLogger,
	}
}

// LogBatch logs the outcome of one consumed batch.
func (l *WorkerLogger) LogBatch(ctx context.Context, stream string, read, processed, failed int, cursor string) {
	if !Config.EnableWorkerLogging {
		return
	}
	l.logger.InfoContext(ctx, "worker batch",
		slog.String("worker", l.worker),
		slog.String("stream", stream),
		slog.Int("read", read),
		slog.Int("processed", processed),
		slog.Int("failed", failed),
		slog.String("cursor", cursor),
	)
}

// LogItemError logs a failure isolated to one stream entry.
func (l *WorkerLogger) LogItemError(ctx context.Context, stream, entryID string, err error) {
	if !Config.EnableWorkerLogging {
		return
	}
	l.logger.WarnContext(ctx, "worker item failed",
		slog.String("worker", l.worker),
		slog.String("stream", stream),
		slog.String("entry_id", entryID),
		slog.String("error", err.Error()),
	)
}

// LogLifecycle logs a worker lifecycle event.
func (l *WorkerLogger) LogLifecycle(ctx context.Context, event string, fields map[string]interface{}) {
	if !Config.EnableWorkerLogging {
		return
	}
	attrs := []any{
		slog.String("worker", l.worker),
		slog.String("event", event),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	l.logger.InfoContext(ctx, "worker lifecycle", attrs...)
}

// LogAsyncOperationError logs an error in an asynchronous operation.
func LogAsyncOperationError(ctx context.Context, operation string, err error, fields map[string]interface{}) {
	attrs := []any{
		slog.String("operation", operation),
		slog.String("type", "async_error"),
		slog.String("error", err.Error()),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	GlobalLogger.ErrorContext(ctx, "async operation failed", attrs...)
}

// StructuredLogger provides a general-purpose structured logger.
type StructuredLogger struct{}

// NewStructuredLogger creates a new StructuredLogger instance.
func NewStructuredLogger() *StructuredLogger {
	return &StructuredLogger{}
}

// LogServiceCall logs a service method call.
func (l *StructuredLogger) LogServiceCall(ctx context.Context, service, method string, fields map[string]interface{}) {
	attrs := []any{
		slog.String("service", service),
		slog.String("method", method),
		slog.String("type", "service_call"),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	GlobalLogger.InfoContext(ctx, "service call", attrs...)
}

// LogBestEffortFailure logs a side effect whose failure does not abort the
// surrounding operation.
func (l *StructuredLogger) LogBestEffortFailure(ctx context.Context, operation string, err error, fields map[string]interface{}) {
	attrs := []any{
		slog.String("operation", operation),
		slog.String("type", "best_effort"),
		slog.String("error", err.Error()),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	GlobalLogger.WarnContext(ctx, "best-effort operation failed", attrs...)
}
