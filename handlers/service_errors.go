package handlers

import (
	"errors"
	"net/http"

	"github.com/hirewise/llm-proxy/providers"
	"github.com/hirewise/llm-proxy/router"
	"github.com/hirewise/llm-proxy/utils"
	"go.uber.org/zap"
)

// HandleRouteError maps routing and provider failures to HTTP responses.
// Provider-side failures surface as 502/504 so callers can tell them apart
// from their own bad requests.
func HandleRouteError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	var routeErr *router.Error
	if errors.As(err, &routeErr) {
		switch routeErr.Kind {
		case router.KindValidationFailed:
			_ = utils.WriteBadRequest(w, routeErr.Message, nil)
		case router.KindProviderExhausted:
			_ = utils.WriteBadGateway(w, err.Error())
		default:
			logger.Error("internal routing error", zap.Error(err))
			_ = utils.WriteInternalServerError(w, "an internal error occurred")
		}
		return
	}

	var provErr *providers.ProviderError
	if errors.As(err, &provErr) {
		switch provErr.Kind {
		case providers.KindInvalidRequest:
			_ = utils.WriteBadRequest(w, provErr.Error(), nil)
		case providers.KindTimeout:
			_ = utils.WriteGatewayTimeout(w, provErr.Error())
		case providers.KindAuthFailure, providers.KindRateLimited, providers.KindUnavailable:
			_ = utils.WriteBadGateway(w, provErr.Error())
		default:
			logger.Error("unclassified provider error", zap.Error(err))
			_ = utils.WriteBadGateway(w, provErr.Error())
		}
		return
	}

	logger.Error("unhandled error type", zap.Error(err))
	_ = utils.WriteInternalServerError(w, "an unexpected error occurred")
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		if writeErr := utils.WriteBadRequest(w, "validation failed", utils.GetValidationFields(err)); writeErr != nil {
			logger.Error("failed to write validation error response", zap.Error(writeErr))
		}
		return
	}

	if writeErr := utils.WriteBadRequest(w, err.Error(), nil); writeErr != nil {
		logger.Error("failed to write validation error response", zap.Error(writeErr))
	}
}
