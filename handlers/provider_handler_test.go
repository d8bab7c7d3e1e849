package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/llm-dispatch/services/providers"
)

func noopHandler(ctx context.Context, payload any) (any, error) {
	return nil, nil
}

func newProviderRouter(t *testing.T) (*chi.Mux, *providers.Registry) {
	t.Helper()
	registry := providers.NewRegistry()
	h := NewProviderHandler(registry, zap.NewNop())

	r := chi.NewRouter()
	r.Get("/v1/providers", h.HandleList)
	r.Delete("/v1/providers/{capability}/{name}", h.HandleUnregister)
	return r, registry
}

func TestHandleList(t *testing.T) {
	router, registry := newProviderRouter(t)

	require.NoError(t, registry.Register(providers.CapabilityTextSmall, providers.Binding{
		Name: "openai", Priority: 1, Handler: noopHandler,
	}))
	require.NoError(t, registry.Register(providers.CapabilityTextSmall, providers.Binding{
		Name: "fallback", Priority: 100, Fallback: true, Handler: noopHandler,
	}))
	require.NoError(t, registry.Register(providers.CapabilityEmbedding, providers.Binding{
		Name: "fallback", Priority: 100, Fallback: true, Handler: noopHandler,
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/providers", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data ProviderListResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&envelope))

	small := envelope.Data.Capabilities["TEXT_SMALL"]
	require.Len(t, small, 2)
	assert.Equal(t, "openai", small[0].Name)
	assert.Equal(t, "fallback", small[1].Name)
	assert.True(t, small[1].Fallback)

	embedding := envelope.Data.Capabilities["TEXT_EMBEDDING"]
	require.Len(t, embedding, 1)
	assert.Equal(t, 100, embedding[0].Priority)
}

func TestHandleListEmpty(t *testing.T) {
	router, _ := newProviderRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/providers", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data ProviderListResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&envelope))
	assert.Empty(t, envelope.Data.Capabilities)
}

func TestHandleUnregister(t *testing.T) {
	t.Run("removes binding", func(t *testing.T) {
		router, registry := newProviderRouter(t)
		require.NoError(t, registry.Register(providers.CapabilityTextSmall, providers.Binding{
			Name: "openai", Priority: 1, Handler: noopHandler,
		}))

		req := httptest.NewRequest(http.MethodDelete, "/v1/providers/TEXT_SMALL/openai", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, 0, registry.Count(providers.CapabilityTextSmall))
	})

	t.Run("absent binding is a no-op", func(t *testing.T) {
		router, _ := newProviderRouter(t)

		req := httptest.NewRequest(http.MethodDelete, "/v1/providers/TEXT_SMALL/ghost", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}
