package providers

import (
	"context"
	"encoding/json"
	"fmt"
)

// Capability identifies a kind of model operation independent of any
// provider. The set is closed per deployment but deployments may define
// their own values.
type Capability string

const (
	// CapabilityTextSmall is small text generation (fast, cheap models)
	CapabilityTextSmall Capability = "TEXT_SMALL"

	// CapabilityTextLarge is large text generation (frontier models)
	CapabilityTextLarge Capability = "TEXT_LARGE"

	// CapabilityEmbedding produces an embedding vector for a text input
	CapabilityEmbedding Capability = "TEXT_EMBEDDING"
)

// Handler invokes a provider with an opaque payload and returns an opaque
// result. Implementations must honor ctx cancellation and deadlines and
// return a *ProviderError carrying structured metadata on failure so the
// dispatcher can classify it.
type Handler func(ctx context.Context, payload any) (any, error)

// Binding is a named, prioritized handler for a capability. Lower priority
// values are tried first. Fallback marks bindings that forward to a
// secondary endpoint; the dispatcher skips them when fallback is disabled.
type Binding struct {
	Name     string
	Priority int
	Fallback bool
	Handler  Handler
}

// TextRequest is the payload for text generation capabilities
type TextRequest struct {
	Model       string  `json:"model,omitempty"`
	Prompt      string  `json:"prompt"`
	System      string  `json:"system,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// TextResult is the result of a text generation capability
type TextResult struct {
	Text         string `json:"text"`
	Model        string `json:"model"`
	FinishReason string `json:"finish_reason,omitempty"`
	Usage        Usage  `json:"usage"`
}

// EmbeddingRequest is the payload for the embedding capability
type EmbeddingRequest struct {
	Model string `json:"model,omitempty"`
	Input string `json:"input"`
}

// EmbeddingResult is the result of the embedding capability
type EmbeddingResult struct {
	Vector []float32 `json:"vector"`
	Model  string    `json:"model"`
}

// Usage represents token usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// AsTextRequest converts an opaque payload into a TextRequest. Accepts a
// TextRequest value or pointer, or raw JSON from the HTTP surface.
func AsTextRequest(payload any) (TextRequest, error) {
	switch p := payload.(type) {
	case TextRequest:
		return p, nil
	case *TextRequest:
		return *p, nil
	case json.RawMessage:
		var req TextRequest
		if err := json.Unmarshal(p, &req); err != nil {
			return TextRequest{}, fmt.Errorf("invalid text payload: %w", err)
		}
		return req, nil
	case []byte:
		var req TextRequest
		if err := json.Unmarshal(p, &req); err != nil {
			return TextRequest{}, fmt.Errorf("invalid text payload: %w", err)
		}
		return req, nil
	default:
		return TextRequest{}, fmt.Errorf("unsupported text payload type %T", payload)
	}
}

// AsEmbeddingRequest converts an opaque payload into an EmbeddingRequest
func AsEmbeddingRequest(payload any) (EmbeddingRequest, error) {
	switch p := payload.(type) {
	case EmbeddingRequest:
		return p, nil
	case *EmbeddingRequest:
		return *p, nil
	case json.RawMessage:
		var req EmbeddingRequest
		if err := json.Unmarshal(p, &req); err != nil {
			return EmbeddingRequest{}, fmt.Errorf("invalid embedding payload: %w", err)
		}
		return req, nil
	case []byte:
		var req EmbeddingRequest
		if err := json.Unmarshal(p, &req); err != nil {
			return EmbeddingRequest{}, fmt.Errorf("invalid embedding payload: %w", err)
		}
		return req, nil
	default:
		return EmbeddingRequest{}, fmt.Errorf("unsupported embedding payload type %T", payload)
	}
}
