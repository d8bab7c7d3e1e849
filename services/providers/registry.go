package providers

import (
	"errors"
	"sort"
	"sync"
)

// Registry holds, per capability, an ordered list of provider bindings.
// Reads return snapshot copies so in-flight invocations never observe a
// concurrent registration. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	nextSeq  uint64
	bindings map[Capability][]entry
}

// entry tracks registration order so equal priorities sort stably
type entry struct {
	binding Binding
	seq     uint64
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		bindings: make(map[Capability][]entry),
	}
}

// Register inserts or replaces a binding keyed by (capability, name) and
// re-sorts the capability's sequence by priority. A replacement keeps its
// original position among equal-priority peers, so re-registering an
// identical binding is a no-op.
func (r *Registry) Register(capability Capability, binding Binding) error {
	if capability == "" {
		return errors.New("capability cannot be empty")
	}
	if binding.Name == "" {
		return errors.New("provider name cannot be empty")
	}
	if binding.Handler == nil {
		return errors.New("provider handler cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.bindings[capability]
	replaced := false
	for i := range entries {
		if entries[i].binding.Name == binding.Name {
			entries[i].binding = binding
			replaced = true
			break
		}
	}
	if !replaced {
		r.nextSeq++
		entries = append(entries, entry{binding: binding, seq: r.nextSeq})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].binding.Priority != entries[j].binding.Priority {
			return entries[i].binding.Priority < entries[j].binding.Priority
		}
		return entries[i].seq < entries[j].seq
	})
	r.bindings[capability] = entries

	return nil
}

// Unregister removes the binding for (capability, name) if present.
// Removing an absent binding is a no-op, not an error.
func (r *Registry) Unregister(capability Capability, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.bindings[capability]
	for i := range entries {
		if entries[i].binding.Name == name {
			r.bindings[capability] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(r.bindings[capability]) == 0 {
		delete(r.bindings, capability)
	}
}

// Lookup returns the capability's bindings in trial order. The returned
// slice is a copy; concurrent registration cannot corrupt an in-flight
// iteration. Fails with ErrNoProviderRegistered when empty.
func (r *Registry) Lookup(capability Capability) ([]Binding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.bindings[capability]
	if len(entries) == 0 {
		return nil, ErrNoProviderRegistered
	}

	out := make([]Binding, len(entries))
	for i, e := range entries {
		out[i] = e.binding
	}
	return out, nil
}

// Capabilities returns all capabilities with at least one binding
func (r *Registry) Capabilities() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := make([]Capability, 0, len(r.bindings))
	for c := range r.bindings {
		caps = append(caps, c)
	}
	return caps
}

// Count returns the number of bindings registered for a capability
func (r *Registry) Count(capability Capability) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.bindings[capability])
}
