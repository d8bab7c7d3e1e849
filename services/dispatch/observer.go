package dispatch

import (
	"context"
	"time"

	"github.com/upb/llm-dispatch/services/providers"
	"go.uber.org/zap"
)

// AttemptInfo describes one provider attempt as seen by an observer
type AttemptInfo struct {
	InvocationID string
	Capability   providers.Capability
	Provider     string
	Fallback     bool
	Duration     time.Duration
	Err          error
}

// Observer receives a callback after every provider attempt. It replaces
// in-place patching of the dispatcher with an explicit, composable hook;
// implementations must be safe for concurrent use and must not block.
type Observer interface {
	OnAttempt(ctx context.Context, info AttemptInfo)
}

// NopObserver ignores all attempts
type NopObserver struct{}

// OnAttempt implements Observer
func (NopObserver) OnAttempt(context.Context, AttemptInfo) {}

// LoggingObserver records every attempt through a zap logger
type LoggingObserver struct {
	logger *zap.Logger
}

// NewLoggingObserver creates an observer that logs attempts
func NewLoggingObserver(logger *zap.Logger) *LoggingObserver {
	return &LoggingObserver{logger: logger}
}

// OnAttempt implements Observer
func (o *LoggingObserver) OnAttempt(_ context.Context, info AttemptInfo) {
	fields := []zap.Field{
		zap.String("invocation_id", info.InvocationID),
		zap.String("capability", string(info.Capability)),
		zap.String("provider", info.Provider),
		zap.Bool("fallback", info.Fallback),
		zap.Duration("duration", info.Duration),
	}
	if info.Err != nil {
		o.logger.Warn("provider attempt failed", append(fields, zap.Error(info.Err))...)
		return
	}
	o.logger.Info("provider attempt succeeded", fields...)
}

// MultiObserver fans attempts out to several observers in order
type MultiObserver []Observer

// OnAttempt implements Observer
func (m MultiObserver) OnAttempt(ctx context.Context, info AttemptInfo) {
	for _, o := range m {
		o.OnAttempt(ctx, info)
	}
}
