// Package dispatch routes capability invocations to registered providers,
// classifies failures and fails over to lower-priority bindings when the
// failure is transient.
package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/upb/llm-dispatch/services/providers"
	"github.com/upb/llm-dispatch/services/settings"
	"go.uber.org/zap"
)

const defaultAttemptTimeout = 60 * time.Second

// Outcome is the result of a single Invoke call. Created fresh per
// invocation and never persisted. Exactly one of Result / Err is set.
type Outcome struct {
	InvocationID string
	Success      bool
	Result       any
	Err          error
	ProviderUsed string
	Attempts     []Attempt
}

// Attempt records one provider trial for diagnostics
type Attempt struct {
	Provider string
	Fallback bool
	Duration time.Duration
	Err      error
}

// Dispatcher selects a provider for a capability, invokes it under a
// timeout and re-routes to the next binding on retryable failures.
// Stateless across invocations; safe for concurrent use.
type Dispatcher struct {
	registry       *providers.Registry
	resolver       *settings.Resolver
	logger         *zap.Logger
	observer       Observer
	breakers       *breakerPool
	defaultTimeout time.Duration
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithObserver installs an observer hook that sees every provider attempt
func WithObserver(observer Observer) Option {
	return func(d *Dispatcher) { d.observer = observer }
}

// WithDefaultTimeout bounds non-fallback provider attempts
func WithDefaultTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.defaultTimeout = timeout
		}
	}
}

// New creates a dispatcher over a registry and settings resolver
func New(registry *providers.Registry, resolver *settings.Resolver, logger *zap.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry:       registry,
		resolver:       resolver,
		logger:         logger,
		observer:       NopObserver{},
		defaultTimeout: defaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Invoke runs the capability against its registered providers in priority
// order. First success wins. A non-retryable failure surfaces immediately;
// a retryable one moves on to the next binding while fallback is enabled.
// The returned error is nil exactly when Outcome.Success is true.
func (d *Dispatcher) Invoke(ctx context.Context, capability providers.Capability, payload any, agent settings.AgentContext) (*Outcome, error) {
	outcome := &Outcome{InvocationID: uuid.NewString()}

	resolved := d.resolver.Resolve(agent)

	bindings, err := d.registry.Lookup(capability)
	if err != nil {
		d.logger.Error("no provider registered",
			zap.String("invocation_id", outcome.InvocationID),
			zap.String("capability", string(capability)),
			zap.String("agent_id", agent.AgentID))
		outcome.Err = err
		return outcome, err
	}

	d.logger.Debug("invoking capability",
		zap.String("invocation_id", outcome.InvocationID),
		zap.String("capability", string(capability)),
		zap.String("agent_id", agent.AgentID),
		zap.Int("providers", len(bindings)),
		zap.Bool("fallback_enabled", resolved.FallbackEnabled))

	var lastErr error
	for i, binding := range bindings {
		if binding.Fallback && !resolved.FallbackEnabled {
			// Policy, not registration: a disabled fallback binding stays
			// registered but is never tried.
			continue
		}

		if err := ctx.Err(); err != nil {
			outcome.Err = err
			return outcome, err
		}

		start := time.Now()
		result, err := d.attempt(ctx, binding, payload, resolved)
		duration := time.Since(start)

		outcome.ProviderUsed = binding.Name
		outcome.Attempts = append(outcome.Attempts, Attempt{
			Provider: binding.Name,
			Fallback: binding.Fallback,
			Duration: duration,
			Err:      err,
		})
		d.observer.OnAttempt(ctx, AttemptInfo{
			InvocationID: outcome.InvocationID,
			Capability:   capability,
			Provider:     binding.Name,
			Fallback:     binding.Fallback,
			Duration:     duration,
			Err:          err,
		})

		if err == nil {
			outcome.Success = true
			outcome.Result = result
			return outcome, nil
		}

		if ctx.Err() != nil {
			// Caller abandoned the request mid-attempt; no further fallback
			outcome.Err = err
			return outcome, err
		}

		lastErr = err

		if !providers.IsRetryable(err) {
			d.logger.Warn("provider failed with terminal error",
				zap.String("invocation_id", outcome.InvocationID),
				zap.String("provider", binding.Name),
				zap.Error(err))
			break
		}
		if !resolved.FallbackEnabled {
			break
		}
		if i < len(bindings)-1 {
			d.logger.Warn("provider failed, trying next",
				zap.String("invocation_id", outcome.InvocationID),
				zap.String("provider", binding.Name),
				zap.Duration("duration", duration),
				zap.Error(err))
		}
	}

	if lastErr == nil {
		// Every binding was a disabled fallback; nothing was attempted
		lastErr = providers.ErrNoProviderRegistered
	}

	d.logger.Error("capability invocation failed",
		zap.String("invocation_id", outcome.InvocationID),
		zap.String("capability", string(capability)),
		zap.String("provider", outcome.ProviderUsed),
		zap.Int("attempts", len(outcome.Attempts)),
		zap.Error(lastErr))

	outcome.Err = lastErr
	return outcome, lastErr
}

// attempt runs one provider handler bounded by the attempt timeout, with
// the resolved settings snapshot attached to the context
func (d *Dispatcher) attempt(ctx context.Context, binding providers.Binding, payload any, resolved settings.Resolved) (any, error) {
	timeout := d.defaultTimeout
	if binding.Fallback {
		timeout = resolved.FallbackTimeout
	}

	attemptCtx, cancel := context.WithTimeout(settings.NewContext(ctx, resolved), timeout)
	defer cancel()

	if d.breakers != nil {
		return d.breakers.execute(binding.Name, func() (any, error) {
			return binding.Handler(attemptCtx, payload)
		})
	}
	return binding.Handler(attemptCtx, payload)
}
