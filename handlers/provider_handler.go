package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/upb/llm-dispatch/middleware"
	"github.com/upb/llm-dispatch/services/providers"
	"github.com/upb/llm-dispatch/utils"
)

// ProviderInfo describes a registered binding without its handler
type ProviderInfo struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Fallback bool   `json:"fallback"`
}

// ProviderListResponse maps capabilities to their bindings in priority order
type ProviderListResponse struct {
	Capabilities map[string][]ProviderInfo `json:"capabilities"`
}

// ProviderHandler handles provider registry HTTP requests
type ProviderHandler struct {
	registry *providers.Registry
	logger   *zap.Logger
}

// NewProviderHandler creates a new ProviderHandler
func NewProviderHandler(registry *providers.Registry, logger *zap.Logger) *ProviderHandler {
	return &ProviderHandler{
		registry: registry,
		logger:   logger,
	}
}

// HandleList handles GET /v1/providers
func (h *ProviderHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	response := ProviderListResponse{
		Capabilities: make(map[string][]ProviderInfo),
	}

	for _, capability := range h.registry.Capabilities() {
		bindings, err := h.registry.Lookup(capability)
		if err != nil {
			continue
		}

		infos := make([]ProviderInfo, 0, len(bindings))
		for _, b := range bindings {
			infos = append(infos, ProviderInfo{
				Name:     b.Name,
				Priority: b.Priority,
				Fallback: b.Fallback,
			})
		}
		response.Capabilities[string(capability)] = infos
	}

	_ = utils.WriteOK(w, response)
}

// HandleUnregister handles DELETE /v1/providers/{capability}/{name}
func (h *ProviderHandler) HandleUnregister(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestIDFromContext(r.Context())

	capability := providers.Capability(chi.URLParam(r, "capability"))
	name := chi.URLParam(r, "name")
	if capability == "" || name == "" {
		_ = utils.WriteBadRequest(w, "Capability and provider name are required", nil)
		return
	}

	h.registry.Unregister(capability, name)

	h.logger.Info("provider unregistered",
		zap.String("request_id", requestID),
		zap.String("capability", string(capability)),
		zap.String("provider", name))

	utils.WriteNoContent(w)
}
