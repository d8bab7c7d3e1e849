package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/llm-dispatch/utils"
)

// HandleValidationError maps request validation failures to 400 responses
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var vErr *utils.ValidationError
	if errors.As(err, &vErr) {
		details := make(map[string]interface{}, len(vErr.Fields))
		for k, v := range vErr.Fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
