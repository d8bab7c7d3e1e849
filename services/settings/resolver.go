// Package settings implements the precedence-ordered configuration merge
// consumed by the dispatcher: built-in defaults < process environment <
// per-agent persistent settings < per-agent secrets. Secrets win because
// they carry the most specific operator intent.
package settings

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Setting keys understood by the resolver
const (
	KeyFallbackEnabled   = "FALLBACK_ENABLED"
	KeyFallbackBaseURL   = "FALLBACK_BASE_URL"
	KeyFallbackAPIKey    = "FALLBACK_API_KEY"
	KeyFallbackTimeoutMS = "FALLBACK_TIMEOUT_MS"
)

const defaultFallbackTimeout = 30 * time.Second

// AgentContext identifies the agent an invocation runs on behalf of and
// carries its secrets layer. Passed explicitly so concurrent multi-agent
// use never shares mutable state.
type AgentContext struct {
	AgentID string
	Secrets map[string]string
}

// Resolved is a read-only snapshot of the merged settings, recomputed on
// every Resolve call so a Set is visible to the next invocation
type Resolved struct {
	FallbackEnabled bool
	FallbackBaseURL string
	FallbackAPIKey  string
	FallbackTimeout time.Duration
}

// Resolver merges the configuration layers. Safe for concurrent use.
type Resolver struct {
	mu       sync.RWMutex
	defaults map[string]string
	env      func(string) string
	agents   map[string]map[string]string
}

// Option configures a Resolver
type Option func(*Resolver)

// WithDefault sets a built-in default for a key
func WithDefault(key, value string) Option {
	return func(r *Resolver) { r.defaults[key] = value }
}

// WithEnvFunc overrides the environment lookup, mainly for tests
func WithEnvFunc(env func(string) string) Option {
	return func(r *Resolver) { r.env = env }
}

// NewResolver creates a resolver with built-in defaults applied
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		defaults: map[string]string{
			KeyFallbackEnabled:   "true",
			KeyFallbackTimeoutMS: strconv.FormatInt(defaultFallbackTimeout.Milliseconds(), 10),
		},
		env:    os.Getenv,
		agents: make(map[string]map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Set mutates the agent-scoped persistent layer immediately; the change is
// visible to the next Resolve call within the same process
func (r *Resolver) Set(agentID, key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	layer, ok := r.agents[agentID]
	if !ok {
		layer = make(map[string]string)
		r.agents[agentID] = layer
	}
	layer[key] = value
}

// LoadAgentFile merges a YAML key/value map into an agent's persistent
// settings layer
func (r *Resolver) LoadAgentFile(agentID, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read agent settings: %w", err)
	}

	values := make(map[string]string)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parse agent settings: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	layer, ok := r.agents[agentID]
	if !ok {
		layer = make(map[string]string)
		r.agents[agentID] = layer
	}
	for k, v := range values {
		layer[k] = v
	}
	return nil
}

// Get returns the merged value for a key. Missing keys fall through the
// layers down to the built-in default, then the empty string. An empty
// value counts as absent at every layer: a higher layer cannot blank out
// a lower one, it can only replace the value. To disable the fallback for
// one agent set FALLBACK_ENABLED rather than clearing the base URL.
func (r *Resolver) Get(agent AgentContext, key string) string {
	if v, ok := agent.Secrets[key]; ok && v != "" {
		return v
	}

	r.mu.RLock()
	layer := r.agents[agent.AgentID]
	v, ok := layer[key]
	r.mu.RUnlock()
	if ok && v != "" {
		return v
	}

	if v := r.env(key); v != "" {
		return v
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaults[key]
}

// Resolve computes the merged snapshot for an agent. Never fails; values
// that do not parse fall back to defaults.
func (r *Resolver) Resolve(agent AgentContext) Resolved {
	resolved := Resolved{
		FallbackBaseURL: r.Get(agent, KeyFallbackBaseURL),
		FallbackAPIKey:  r.Get(agent, KeyFallbackAPIKey),
		FallbackTimeout: defaultFallbackTimeout,
	}

	if enabled, err := strconv.ParseBool(r.Get(agent, KeyFallbackEnabled)); err == nil {
		resolved.FallbackEnabled = enabled
	}
	if ms, err := strconv.Atoi(r.Get(agent, KeyFallbackTimeoutMS)); err == nil && ms > 0 {
		resolved.FallbackTimeout = time.Duration(ms) * time.Millisecond
	}

	return resolved
}
