// Package anthropic provides primary provider bindings for the text
// generation capabilities using the official Anthropic client.
package anthropic

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/upb/llm-dispatch/services/providers"
)

// Name is the provider name the adapter registers under
const Name = "anthropic"

const defaultMaxTokens = 4096

// Options configure the adapter
type Options struct {
	APIKey     string
	BaseURL    string
	SmallModel anthropic.Model
	LargeModel anthropic.Model
}

// Adapter wraps the Anthropic Messages API behind provider handlers
type Adapter struct {
	client *anthropic.Client
	opts   Options
}

// New creates an adapter with its own client
func New(optFns ...func(o *Options)) *Adapter {
	opts := Options{
		SmallModel: anthropic.ModelClaude3_5HaikuLatest,
		LargeModel: anthropic.ModelClaudeSonnet4_0,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	// Retry policy lives in the dispatcher, not the SDK.
	clientOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := anthropic.NewClient(clientOpts...)
	return &Adapter{client: &client, opts: opts}
}

// NewFromClient creates an adapter from an existing client
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Adapter {
	opts := Options{
		SmallModel: anthropic.ModelClaude3_5HaikuLatest,
		LargeModel: anthropic.ModelClaudeSonnet4_0,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Adapter{client: client, opts: opts}
}

// TextHandler returns a handler that completes text with the given model
func (a *Adapter) TextHandler(model anthropic.Model) providers.Handler {
	return func(ctx context.Context, payload any) (any, error) {
		req, err := providers.AsTextRequest(payload)
		if err != nil {
			return nil, providers.NewProviderError(Name, providers.ErrCodeInvalidRequest, err.Error(), 400, false, err)
		}

		// Copy before applying the per-request override; the captured
		// model is shared by every invocation of this binding.
		m := model
		if req.Model != "" {
			m = anthropic.Model(req.Model)
		}
		maxTokens := int64(req.MaxTokens)
		if maxTokens <= 0 {
			maxTokens = defaultMaxTokens
		}

		params := anthropic.MessageNewParams{
			Model:     m,
			MaxTokens: maxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
			},
		}
		if req.System != "" {
			params.System = []anthropic.TextBlockParam{{Text: req.System}}
		}
		if req.Temperature > 0 {
			params.Temperature = anthropic.Float(req.Temperature)
		}

		resp, err := a.client.Messages.New(ctx, params)
		if err != nil {
			return nil, mapError(err)
		}

		var text string
		for _, block := range resp.Content {
			if block.Type == "text" {
				text += block.AsText().Text
			}
		}

		return &providers.TextResult{
			Text:         text,
			Model:        string(resp.Model),
			FinishReason: string(resp.StopReason),
			Usage: providers.Usage{
				PromptTokens:     int(resp.Usage.InputTokens),
				CompletionTokens: int(resp.Usage.OutputTokens),
				TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
			},
		}, nil
	}
}

// Register adds text bindings for both generation capabilities
func (a *Adapter) Register(registry *providers.Registry, priority int) error {
	if err := registry.Register(providers.CapabilityTextSmall, providers.Binding{
		Name: Name, Priority: priority, Handler: a.TextHandler(a.opts.SmallModel),
	}); err != nil {
		return err
	}
	return registry.Register(providers.CapabilityTextLarge, providers.Binding{
		Name: Name, Priority: priority, Handler: a.TextHandler(a.opts.LargeModel),
	})
}

// mapError converts SDK errors into classified provider errors
func mapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return providers.NewStatusError(Name, "anthropic request failed", apiErr.StatusCode, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return providers.NewProviderError(Name, providers.ErrCodeUnavailable, "anthropic request failed", 0, true, err)
}
