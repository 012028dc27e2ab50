package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"krakenbot/internal/forecast"
	"krakenbot/internal/kraken"
	"krakenbot/internal/models"
	"krakenbot/internal/repo"
	"krakenbot/internal/rest"
)

// classify maps an error from the Kraken or forecast layers to an HTTP
// status and an error code
func classify(err error) (int, string) {
	var apiErr *rest.APIError
	var transportErr *rest.TransportError
	var malformed *rest.MalformedResponse

	switch {
	case errors.Is(err, kraken.ErrNoCredentials):
		return http.StatusServiceUnavailable, "CREDENTIALS_MISSING"
	case errors.Is(err, kraken.ErrUnknownAsset):
		return http.StatusNotFound, "UNKNOWN_ASSET"
	case errors.Is(err, kraken.ErrUnknownPair):
		return http.StatusNotFound, "UNKNOWN_PAIR"
	case errors.Is(err, kraken.ErrInvalidInterval):
		return http.StatusBadRequest, "INVALID_INTERVAL"
	case errors.Is(err, repo.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, forecast.ErrNotEnoughData):
		return http.StatusUnprocessableEntity, "NOT_ENOUGH_DATA"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT"
	case errors.As(err, &apiErr):
		switch {
		case apiErr.IsRateLimitError():
			return http.StatusTooManyRequests, "KRAKEN_RATE_LIMITED"
		case apiErr.IsAuthError():
			return http.StatusBadGateway, "KRAKEN_AUTH_FAILED"
		case apiErr.IsServiceError():
			return http.StatusServiceUnavailable, "KRAKEN_UNAVAILABLE"
		case apiErr.IsOrderError():
			return http.StatusUnprocessableEntity, "ORDER_REJECTED"
		}
		return http.StatusBadGateway, "KRAKEN_ERROR"
	case errors.As(err, &transportErr):
		return http.StatusBadGateway, "UPSTREAM_UNAVAILABLE"
	case errors.As(err, &malformed):
		return http.StatusBadGateway, "UPSTREAM_MALFORMED"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

func respondError(c *gin.Context, err error) {
	status, code := classify(err)
	c.JSON(status, models.NewErrorResponse(code, err.Error(), c.GetString("request_id")))
}

func respondValidation(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.NewErrorResponse(
		"VALIDATION_ERROR",
		err.Error(),
		c.GetString("request_id"),
	))
}
