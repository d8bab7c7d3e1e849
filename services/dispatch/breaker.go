package dispatch

import (
	"errors"
	"sync"

	"github.com/sony/gobreaker"
	"github.com/upb/llm-dispatch/services/providers"
)

// WithCircuitBreaker wraps every provider attempt in a per-provider
// circuit breaker. An open breaker classifies as a retryable provider
// failure, so failover proceeds exactly as for a rate limit. Off by
// default; there is no cross-invocation retry state without it.
func WithCircuitBreaker(st gobreaker.Settings) Option {
	return func(d *Dispatcher) {
		d.breakers = &breakerPool{
			settings: st,
			breakers: make(map[string]*gobreaker.CircuitBreaker),
		}
	}
}

// breakerPool lazily creates one breaker per provider name
type breakerPool struct {
	mu       sync.Mutex
	settings gobreaker.Settings
	breakers map[string]*gobreaker.CircuitBreaker
}

func (p *breakerPool) get(provider string) *gobreaker.CircuitBreaker {
	p.mu.Lock()
	defer p.mu.Unlock()

	cb, ok := p.breakers[provider]
	if !ok {
		st := p.settings
		st.Name = provider
		cb = gobreaker.NewCircuitBreaker(st)
		p.breakers[provider] = cb
	}
	return cb
}

func (p *breakerPool) execute(provider string, fn func() (any, error)) (any, error) {
	result, err := p.get(provider).Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, providers.NewProviderError(provider, providers.ErrCodeUnavailable,
			"circuit breaker open", 0, true, err)
	}
	return result, err
}
