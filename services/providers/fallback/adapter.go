// Package fallback implements the provider binding that forwards requests
// to a secondary, independently operated OpenAI-compatible endpoint. It is
// an ordinary provider from the dispatcher's perspective, registered at
// lower priority than the primaries and reached only through failover.
package fallback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/upb/llm-dispatch/services/providers"
	"github.com/upb/llm-dispatch/services/settings"
)

// Name is the provider name the adapter registers under
const Name = "fallback"

// Config holds the adapter's static defaults. Base URL and API key are
// overridden per invocation by the resolved settings snapshot on the
// attempt context, so reconfiguration needs no re-registration.
type Config struct {
	BaseURL        string
	APIKey         string
	TextModel      string
	EmbeddingModel string
	HTTPClient     *http.Client
}

// Adapter forwards capability requests to the secondary endpoint
type Adapter struct {
	config Config
	client *http.Client
}

// New creates a fallback adapter
func New(config Config) *Adapter {
	client := config.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Adapter{config: config, client: client}
}

// TextHandler returns the handler for text generation capabilities
func (a *Adapter) TextHandler() providers.Handler {
	return func(ctx context.Context, payload any) (any, error) {
		req, err := providers.AsTextRequest(payload)
		if err != nil {
			return nil, providers.NewProviderError(Name, providers.ErrCodeInvalidRequest, err.Error(), 400, false, err)
		}
		return a.completeText(ctx, req)
	}
}

// EmbeddingHandler returns the handler for the embedding capability
func (a *Adapter) EmbeddingHandler() providers.Handler {
	return func(ctx context.Context, payload any) (any, error) {
		req, err := providers.AsEmbeddingRequest(payload)
		if err != nil {
			return nil, providers.NewProviderError(Name, providers.ErrCodeInvalidRequest, err.Error(), 400, false, err)
		}
		return a.embed(ctx, req)
	}
}

// Register adds the adapter's bindings for the given capabilities at the
// given priority, flagged as fallback so the dispatcher applies the
// fallback-enabled policy and timeout
func (a *Adapter) Register(registry *providers.Registry, priority int) error {
	for capability, handler := range map[providers.Capability]providers.Handler{
		providers.CapabilityTextSmall: a.TextHandler(),
		providers.CapabilityTextLarge: a.TextHandler(),
		providers.CapabilityEmbedding: a.EmbeddingHandler(),
	} {
		binding := providers.Binding{Name: Name, Priority: priority, Fallback: true, Handler: handler}
		if err := registry.Register(capability, binding); err != nil {
			return err
		}
	}
	return nil
}

// endpoint resolves the base URL and API key for this attempt, preferring
// the settings snapshot the dispatcher attached to the context
func (a *Adapter) endpoint(ctx context.Context) (baseURL, apiKey string) {
	baseURL, apiKey = a.config.BaseURL, a.config.APIKey
	if resolved, ok := settings.FromContext(ctx); ok {
		if resolved.FallbackBaseURL != "" {
			baseURL = resolved.FallbackBaseURL
		}
		if resolved.FallbackAPIKey != "" {
			apiKey = resolved.FallbackAPIKey
		}
	}
	return baseURL, apiKey
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Model string `json:"model"`
	Data  []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (a *Adapter) completeText(ctx context.Context, req providers.TextRequest) (*providers.TextResult, error) {
	model := req.Model
	if model == "" {
		model = a.config.TextModel
	}

	var messages []chatMessage
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body := chatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	var resp chatResponse
	if err := a.post(ctx, "/chat/completions", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, providers.NewProviderError(Name, providers.ErrCodeUnavailable, "empty response from fallback endpoint", 502, true, nil)
	}

	return &providers.TextResult{
		Text:         resp.Choices[0].Message.Content,
		Model:        resp.Model,
		FinishReason: resp.Choices[0].FinishReason,
		Usage: providers.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (a *Adapter) embed(ctx context.Context, req providers.EmbeddingRequest) (*providers.EmbeddingResult, error) {
	model := req.Model
	if model == "" {
		model = a.config.EmbeddingModel
	}

	var resp embeddingResponse
	if err := a.post(ctx, "/embeddings", embeddingRequest{Model: model, Input: req.Input}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, providers.NewProviderError(Name, providers.ErrCodeUnavailable, "empty embedding from fallback endpoint", 502, true, nil)
	}

	return &providers.EmbeddingResult{Vector: resp.Data[0].Embedding, Model: resp.Model}, nil
}

// post sends a JSON request to the secondary endpoint and decodes the
// response, classifying non-2xx statuses into provider errors
func (a *Adapter) post(ctx context.Context, path string, body, out any) error {
	baseURL, apiKey := a.endpoint(ctx)
	if baseURL == "" {
		return providers.NewProviderError(Name, providers.ErrCodeInvalidRequest, "fallback base URL not configured", 400, false, nil)
	}

	reqBody, err := json.Marshal(body)
	if err != nil {
		return providers.NewProviderError(Name, providers.ErrCodeInternal, "failed to marshal request", 0, false, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return providers.NewProviderError(Name, providers.ErrCodeInternal, "failed to create request", 0, false, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return providers.NewProviderError(Name, providers.ErrCodeUnavailable, "fallback endpoint unreachable", 0, true, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return providers.NewProviderError(Name, providers.ErrCodeUnavailable, "failed to read response", httpResp.StatusCode, true, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return providers.NewStatusError(Name, upstreamMessage(respBody, httpResp.StatusCode), httpResp.StatusCode, nil)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return providers.NewProviderError(Name, providers.ErrCodeUnavailable, "invalid response body", httpResp.StatusCode, true, err)
	}
	return nil
}

// upstreamMessage extracts the error message from an OpenAI-style error
// body, falling back to the status code
func upstreamMessage(body []byte, statusCode int) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return fmt.Sprintf("fallback endpoint returned status %d", statusCode)
}
