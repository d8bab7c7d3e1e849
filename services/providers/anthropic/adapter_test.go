package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/llm-dispatch/services/providers"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return New(func(o *Options) {
		o.APIKey = "ak-test"
		o.BaseURL = server.URL
	})
}

func messageResponse(content string) map[string]interface{} {
	return map[string]interface{}{
		"id":    "msg-1",
		"type":  "message",
		"role":  "assistant",
		"model": "claude-3-5-haiku-latest",
		"content": []map[string]string{
			{"type": "text", "text": content},
		},
		"stop_reason": "end_turn",
		"usage":       map[string]int{"input_tokens": 3, "output_tokens": 9},
	}
}

func TestTextHandler(t *testing.T) {
	t.Run("successful completion", func(t *testing.T) {
		adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "claude-3-5-haiku-latest", body["model"])
			assert.NotNil(t, body["max_tokens"])

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(messageResponse("howdy"))
		})

		result, err := adapter.TextHandler(sdk.ModelClaude3_5HaikuLatest)(context.Background(), providers.TextRequest{
			Prompt: "hi",
			System: "be brief",
		})
		require.NoError(t, err)

		text, ok := result.(*providers.TextResult)
		require.True(t, ok)
		assert.Equal(t, "howdy", text.Text)
		assert.Equal(t, "end_turn", text.FinishReason)
		assert.Equal(t, 12, text.Usage.TotalTokens)
	})

	t.Run("model override does not stick to later invocations", func(t *testing.T) {
		var models []string
		adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			models = append(models, body["model"].(string))

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(messageResponse("ok"))
		})

		handler := adapter.TextHandler(sdk.ModelClaude3_5HaikuLatest)

		_, err := handler(context.Background(), providers.TextRequest{Prompt: "hi", Model: "claude-sonnet-4-0"})
		require.NoError(t, err)

		_, err = handler(context.Background(), providers.TextRequest{Prompt: "hi"})
		require.NoError(t, err)

		assert.Equal(t, []string{"claude-sonnet-4-0", string(sdk.ModelClaude3_5HaikuLatest)}, models)
	})

	t.Run("overloaded maps to retryable provider error", func(t *testing.T) {
		adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"overloaded"}}`))
		})

		_, err := adapter.TextHandler(sdk.ModelClaude3_5HaikuLatest)(context.Background(), providers.TextRequest{
			Prompt: "hi",
		})
		require.Error(t, err)
		assert.True(t, providers.IsRetryable(err))
	})

	t.Run("invalid request maps to terminal provider error", func(t *testing.T) {
		adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad params"}}`))
		})

		_, err := adapter.TextHandler(sdk.ModelClaude3_5HaikuLatest)(context.Background(), providers.TextRequest{
			Prompt: "hi",
		})
		require.Error(t, err)
		assert.False(t, providers.IsRetryable(err))
	})

	t.Run("invalid payload rejected without network call", func(t *testing.T) {
		adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("unexpected request")
		})

		_, err := adapter.TextHandler(sdk.ModelClaude3_5HaikuLatest)(context.Background(), struct{ X int }{1})
		require.Error(t, err)

		var provErr *providers.ProviderError
		require.ErrorAs(t, err, &provErr)
		assert.Equal(t, providers.ErrCodeInvalidRequest, provErr.Code)
	})
}

func TestRegister(t *testing.T) {
	adapter := New(func(o *Options) { o.APIKey = "ak-test" })
	registry := providers.NewRegistry()

	require.NoError(t, adapter.Register(registry, 2))

	bindings, err := registry.Lookup(providers.CapabilityTextLarge)
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	assert.Equal(t, Name, bindings[0].Name)
	assert.Equal(t, 2, bindings[0].Priority)
}
