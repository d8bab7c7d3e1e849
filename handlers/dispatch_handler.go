package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/llm-dispatch/middleware"
	"github.com/upb/llm-dispatch/services/dispatch"
	"github.com/upb/llm-dispatch/services/providers"
	"github.com/upb/llm-dispatch/services/settings"
	"github.com/upb/llm-dispatch/utils"
)

// InvokeRequest represents a capability invocation request
type InvokeRequest struct {
	Capability string          `json:"capability" validate:"required,oneof=TEXT_SMALL TEXT_LARGE TEXT_EMBEDDING"`
	Payload    json.RawMessage `json:"payload" validate:"required"`
	AgentID    string          `json:"agent_id,omitempty"`
}

// AttemptDetail describes one provider trial in the response
type AttemptDetail struct {
	Provider   string `json:"provider"`
	Fallback   bool   `json:"fallback"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// InvokeResponse represents a successful invocation
type InvokeResponse struct {
	InvocationID string          `json:"invocation_id"`
	Provider     string          `json:"provider"`
	Result       interface{}     `json:"result"`
	Attempts     []AttemptDetail `json:"attempts"`
}

// Invoker defines the interface for dispatching capability invocations
type Invoker interface {
	Invoke(ctx context.Context, capability providers.Capability, payload any, agent settings.AgentContext) (*dispatch.Outcome, error)
}

// SecretsSource supplies the per-agent secrets layer for an invocation
type SecretsSource interface {
	SecretsForAgent(agentID string) map[string]string
}

// DispatchHandler handles invocation HTTP requests
type DispatchHandler struct {
	dispatcher Invoker
	secrets    SecretsSource
	logger     *zap.Logger
}

// NewDispatchHandler creates a new DispatchHandler. secrets may be nil
// when no secrets layer is configured.
func NewDispatchHandler(dispatcher Invoker, secrets SecretsSource, logger *zap.Logger) *DispatchHandler {
	return &DispatchHandler{
		dispatcher: dispatcher,
		secrets:    secrets,
		logger:     logger,
	}
}

// HandleInvoke handles POST /v1/invoke
func (h *DispatchHandler) HandleInvoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req InvokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	// Authenticated agent identity wins over the body field.
	agentID := middleware.GetAgentIDFromContext(ctx)
	if agentID == "" {
		agentID = req.AgentID
	}
	agent := settings.AgentContext{AgentID: agentID}
	if h.secrets != nil && agentID != "" {
		agent.Secrets = h.secrets.SecretsForAgent(agentID)
	}

	h.logger.Debug("dispatching invocation",
		zap.String("request_id", requestID),
		zap.String("capability", req.Capability),
		zap.String("agent_id", agentID))

	outcome, err := h.dispatcher.Invoke(ctx, providers.Capability(req.Capability), req.Payload, agent)
	if err != nil {
		h.writeDispatchError(w, requestID, outcome, err)
		return
	}

	response := InvokeResponse{
		InvocationID: outcome.InvocationID,
		Provider:     outcome.ProviderUsed,
		Result:       outcome.Result,
		Attempts:     attemptDetails(outcome.Attempts),
	}

	h.logger.Info("invocation successful",
		zap.String("request_id", requestID),
		zap.String("invocation_id", outcome.InvocationID),
		zap.String("capability", req.Capability),
		zap.String("provider", outcome.ProviderUsed),
		zap.Int("attempts", len(outcome.Attempts)))

	_ = utils.WriteOK(w, response)
}

// writeDispatchError maps invocation failures to HTTP responses
func (h *DispatchHandler) writeDispatchError(w http.ResponseWriter, requestID string, outcome *dispatch.Outcome, err error) {
	details := map[string]interface{}{}
	if outcome != nil {
		details["invocation_id"] = outcome.InvocationID
		if len(outcome.Attempts) > 0 {
			details["attempts"] = attemptDetails(outcome.Attempts)
		}
	}

	h.logger.Warn("invocation failed",
		zap.String("request_id", requestID),
		zap.Error(err))

	if errors.Is(err, providers.ErrNoProviderRegistered) {
		_ = utils.WriteNotFound(w, err.Error())
		return
	}

	var provErr *providers.ProviderError
	if errors.As(err, &provErr) {
		switch provErr.Code {
		case providers.ErrCodeRateLimited:
			_ = utils.WriteTooManyRequests(w, provErr.Message, details)
		case providers.ErrCodeTimeout:
			_ = utils.WriteGatewayTimeout(w, provErr.Message)
		case providers.ErrCodeInvalidRequest:
			_ = utils.WriteBadRequest(w, provErr.Message, details)
		default:
			// Upstream unavailable or rejected our credentials; not the
			// caller's fault.
			_ = utils.WriteBadGateway(w, provErr.Message, details)
		}
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		_ = utils.WriteGatewayTimeout(w, "Invocation timed out")
		return
	}

	_ = utils.WriteInternalServerError(w, "Invocation failed")
}

func attemptDetails(attempts []dispatch.Attempt) []AttemptDetail {
	details := make([]AttemptDetail, 0, len(attempts))
	for _, a := range attempts {
		d := AttemptDetail{
			Provider:   a.Provider,
			Fallback:   a.Fallback,
			DurationMs: a.Duration.Milliseconds(),
		}
		if a.Err != nil {
			d.Error = a.Err.Error()
		}
		details = append(details, d)
	}
	return details
}
