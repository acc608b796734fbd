package service

import (
	"context"

	"warden/internal/observability"
)

// FailurePolicy decides what happens when a best-effort side effect fails.
type FailurePolicy interface {
	Handle(ctx context.Context, operation string, err error, fields map[string]interface{})
}

// LogAndContinue logs and counts the failure; the caller carries on.
type LogAndContinue struct {
	log *observability.StructuredLogger
}

// NewLogAndContinue returns the default FailurePolicy.
func NewLogAndContinue() *LogAndContinue {
	return &LogAndContinue{log: observability.NewStructuredLogger()}
}

func (p *LogAndContinue) Handle(ctx context.Context, operation string, err error, fields map[string]interface{}) {
	observability.BestEffortFailures.WithLabelValues(operation).Inc()
	p.log.LogBestEffortFailure(ctx, operation, err, fields)
}

func bestEffort(ctx context.Context, policy FailurePolicy, operation string, fields map[string]interface{}, fn func() error) bool {
	err := fn()
	if err == nil {
		return true
	}
	policy.Handle(ctx, operation, err, fields)
	return false
}
