package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/upb/llm-dispatch/middleware"
	"github.com/upb/llm-dispatch/services/settings"
	"github.com/upb/llm-dispatch/utils"
)

// SettingsUpdateRequest carries persistent settings for an agent
type SettingsUpdateRequest struct {
	Settings map[string]string `json:"settings" validate:"required,min=1"`
}

// SettingsResponse is the resolved view of an agent's fallback settings.
// The API key itself is never echoed back.
type SettingsResponse struct {
	AgentID           string `json:"agent_id"`
	FallbackEnabled   bool   `json:"fallback_enabled"`
	FallbackBaseURL   string `json:"fallback_base_url,omitempty"`
	FallbackAPIKeySet bool   `json:"fallback_api_key_set"`
	FallbackTimeoutMs int64  `json:"fallback_timeout_ms"`
}

// SettingsHandler handles agent settings HTTP requests
type SettingsHandler struct {
	resolver *settings.Resolver
	logger   *zap.Logger
}

// NewSettingsHandler creates a new SettingsHandler
func NewSettingsHandler(resolver *settings.Resolver, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{
		resolver: resolver,
		logger:   logger,
	}
}

// HandleUpdate handles PUT /v1/agents/{agentID}/settings
func (h *SettingsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestIDFromContext(r.Context())

	agentID := chi.URLParam(r, "agentID")
	if agentID == "" {
		_ = utils.WriteBadRequest(w, "Agent ID is required", nil)
		return
	}

	var req SettingsUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	for key, value := range req.Settings {
		h.resolver.Set(agentID, key, value)
	}

	h.logger.Info("agent settings updated",
		zap.String("request_id", requestID),
		zap.String("agent_id", agentID),
		zap.Int("keys", len(req.Settings)))

	utils.WriteNoContent(w)
}

// HandleGet handles GET /v1/agents/{agentID}/settings
func (h *SettingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	if agentID == "" {
		_ = utils.WriteBadRequest(w, "Agent ID is required", nil)
		return
	}

	resolved := h.resolver.Resolve(settings.AgentContext{AgentID: agentID})

	response := SettingsResponse{
		AgentID:           agentID,
		FallbackEnabled:   resolved.FallbackEnabled,
		FallbackBaseURL:   resolved.FallbackBaseURL,
		FallbackAPIKeySet: resolved.FallbackAPIKey != "",
		FallbackTimeoutMs: resolved.FallbackTimeout.Milliseconds(),
	}

	_ = utils.WriteOK(w, response)
}
