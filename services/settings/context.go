package settings

import "context"

type contextKey struct{}

// NewContext attaches a resolved settings snapshot to ctx. The dispatcher
// does this per attempt so adapters see the settings active for that
// invocation without holding a reference to the resolver.
func NewContext(ctx context.Context, resolved Resolved) context.Context {
	return context.WithValue(ctx, contextKey{}, resolved)
}

// FromContext returns the resolved settings attached to ctx, if any
func FromContext(ctx context.Context) (Resolved, bool) {
	resolved, ok := ctx.Value(contextKey{}).(Resolved)
	return resolved, ok
}
