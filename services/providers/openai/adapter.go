// Package openai provides primary provider bindings for the text
// generation capabilities using the official OpenAI client. SDK failures
// are mapped into structured provider errors by status code so the
// dispatcher can classify them.
package openai

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/upb/llm-dispatch/services/providers"
)

// Name is the provider name the adapter registers under
const Name = "openai"

// Options configure the adapter
type Options struct {
	APIKey     string
	BaseURL    string
	SmallModel string
	LargeModel string
}

// Adapter wraps the OpenAI Chat Completions API behind provider handlers
type Adapter struct {
	client *openai.Client
	opts   Options
}

// New creates an adapter with its own client
func New(optFns ...func(o *Options)) *Adapter {
	opts := Options{
		SmallModel: openai.ChatModelGPT4oMini,
		LargeModel: openai.ChatModelGPT4o,
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
	client := openai.NewClient(clientOpts...)
	return &Adapter{client: &client, opts: opts}
}

// NewFromClient creates an adapter from an existing client
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Adapter {
	opts := Options{
		SmallModel: openai.ChatModelGPT4oMini,
		LargeModel: openai.ChatModelGPT4o,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Adapter{client: client, opts: opts}
}

// TextHandler returns a handler that completes text with the given model
func (a *Adapter) TextHandler(model string) providers.Handler {
	return func(ctx context.Context, payload any) (any, error) {
		req, err := providers.AsTextRequest(payload)
		if err != nil {
			return nil, providers.NewProviderError(Name, providers.ErrCodeInvalidRequest, err.Error(), 400, false, err)
		}

		// Copy before applying the per-request override; the captured
		// model is shared by every invocation of this binding.
		m := model
		if req.Model != "" {
			m = req.Model
		}

		var messages []openai.ChatCompletionMessageParamUnion
		if req.System != "" {
			messages = append(messages, openai.SystemMessage(req.System))
		}
		messages = append(messages, openai.UserMessage(req.Prompt))

		params := openai.ChatCompletionNewParams{
			Model:    m,
			Messages: messages,
		}
		if req.MaxTokens > 0 {
			params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
		}
		if req.Temperature > 0 {
			params.Temperature = openai.Float(req.Temperature)
		}

		resp, err := a.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return nil, mapError(err)
		}
		if len(resp.Choices) == 0 {
			return nil, providers.NewProviderError(Name, providers.ErrCodeUnavailable, "no choices returned", 502, true, nil)
		}

		choice := resp.Choices[0]
		return &providers.TextResult{
			Text:         choice.Message.Content,
			Model:        resp.Model,
			FinishReason: string(choice.FinishReason),
			Usage: providers.Usage{
				PromptTokens:     int(resp.Usage.PromptTokens),
				CompletionTokens: int(resp.Usage.CompletionTokens),
				TotalTokens:      int(resp.Usage.TotalTokens),
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
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = "openai request failed"
		}
		return providers.NewStatusError(Name, message, apiErr.StatusCode, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return providers.NewProviderError(Name, providers.ErrCodeUnavailable, "openai request failed", 0, true, err)
}
