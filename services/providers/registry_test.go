package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopHandler(ctx context.Context, payload any) (any, error) {
	return nil, nil
}

func TestRegistry_Register(t *testing.T) {
	t.Run("orders bindings by priority", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(CapabilityTextSmall, Binding{Name: "secondary", Priority: 2, Handler: noopHandler}))
		require.NoError(t, reg.Register(CapabilityTextSmall, Binding{Name: "primary", Priority: 1, Handler: noopHandler}))

		bindings, err := reg.Lookup(CapabilityTextSmall)
		require.NoError(t, err)
		require.Len(t, bindings, 2)
		assert.Equal(t, "primary", bindings[0].Name)
		assert.Equal(t, "secondary", bindings[1].Name)
	})

	t.Run("equal priorities keep registration order", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(CapabilityTextSmall, Binding{Name: "first", Priority: 1, Handler: noopHandler}))
		require.NoError(t, reg.Register(CapabilityTextSmall, Binding{Name: "second", Priority: 1, Handler: noopHandler}))

		bindings, err := reg.Lookup(CapabilityTextSmall)
		require.NoError(t, err)
		assert.Equal(t, "first", bindings[0].Name)
		assert.Equal(t, "second", bindings[1].Name)
	})

	t.Run("replaces binding with same name", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(CapabilityTextSmall, Binding{Name: "primary", Priority: 1, Handler: noopHandler}))
		require.NoError(t, reg.Register(CapabilityTextSmall, Binding{Name: "fallback", Priority: 2, Handler: noopHandler}))

		// Replacement moves to the new priority without growing the sequence
		require.NoError(t, reg.Register(CapabilityTextSmall, Binding{Name: "primary", Priority: 3, Handler: noopHandler}))

		bindings, err := reg.Lookup(CapabilityTextSmall)
		require.NoError(t, err)
		require.Len(t, bindings, 2)
		assert.Equal(t, "fallback", bindings[0].Name)
		assert.Equal(t, "primary", bindings[1].Name)
		assert.Equal(t, 3, bindings[1].Priority)
	})

	t.Run("idempotent under identical input", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(CapabilityTextSmall, Binding{Name: "a", Priority: 1, Handler: noopHandler}))
		require.NoError(t, reg.Register(CapabilityTextSmall, Binding{Name: "b", Priority: 1, Handler: noopHandler}))
		require.NoError(t, reg.Register(CapabilityTextSmall, Binding{Name: "a", Priority: 1, Handler: noopHandler}))

		bindings, err := reg.Lookup(CapabilityTextSmall)
		require.NoError(t, err)
		require.Len(t, bindings, 2)
		assert.Equal(t, "a", bindings[0].Name)
		assert.Equal(t, "b", bindings[1].Name)
	})

	t.Run("rejects invalid bindings", func(t *testing.T) {
		reg := NewRegistry()
		assert.Error(t, reg.Register(CapabilityTextSmall, Binding{Name: "", Priority: 1, Handler: noopHandler}))
		assert.Error(t, reg.Register(CapabilityTextSmall, Binding{Name: "x", Priority: 1, Handler: nil}))
		assert.Error(t, reg.Register("", Binding{Name: "x", Priority: 1, Handler: noopHandler}))
	})
}

func TestRegistry_Unregister(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(CapabilityEmbedding, Binding{Name: "primary", Priority: 1, Handler: noopHandler}))

	reg.Unregister(CapabilityEmbedding, "primary")
	_, err := reg.Lookup(CapabilityEmbedding)
	assert.ErrorIs(t, err, ErrNoProviderRegistered)

	// Removing an absent binding is a no-op
	reg.Unregister(CapabilityEmbedding, "primary")
	reg.Unregister(CapabilityTextLarge, "missing")
}

func TestRegistry_Lookup(t *testing.T) {
	t.Run("empty capability fails", func(t *testing.T) {
		reg := NewRegistry()
		_, err := reg.Lookup(CapabilityTextSmall)
		assert.ErrorIs(t, err, ErrNoProviderRegistered)
	})

	t.Run("returned sequence is a snapshot", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(CapabilityTextSmall, Binding{Name: "primary", Priority: 1, Handler: noopHandler}))

		snapshot, err := reg.Lookup(CapabilityTextSmall)
		require.NoError(t, err)

		// Registration after the snapshot does not change it
		require.NoError(t, reg.Register(CapabilityTextSmall, Binding{Name: "urgent", Priority: 0, Handler: noopHandler}))
		require.Len(t, snapshot, 1)
		assert.Equal(t, "primary", snapshot[0].Name)
	})
}

func TestRegistry_Count(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, 0, reg.Count(CapabilityTextSmall))

	require.NoError(t, reg.Register(CapabilityTextSmall, Binding{Name: "a", Priority: 1, Handler: noopHandler}))
	require.NoError(t, reg.Register(CapabilityTextLarge, Binding{Name: "a", Priority: 1, Handler: noopHandler}))

	assert.Equal(t, 1, reg.Count(CapabilityTextSmall))
	assert.Equal(t, 1, reg.Count(CapabilityTextLarge))
	assert.ElementsMatch(t, []Capability{CapabilityTextSmall, CapabilityTextLarge}, reg.Capabilities())
}
