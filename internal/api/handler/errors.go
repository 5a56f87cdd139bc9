package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/shotlens/internal/api/middleware"
	"github.com/timmy/shotlens/internal/domain"
	"github.com/timmy/shotlens/internal/repository"
	"github.com/timmy/shotlens/internal/service"
)

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrEmptyImage), errors.Is(err, service.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrExtractionFailure), errors.Is(err, service.ErrNothingToEnrich):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrSearchUnavailable),
		errors.Is(err, service.ErrGeocodingUnavailable),
		errors.Is(err, service.ErrEnrichmentUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrEmbeddingFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error": message, "reason": err}. Server-side
// failures are logged with the request logger.
func respondError(c *gin.Context, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		middleware.GetLogger(c).WithError(err).Error(message)
	}
	c.JSON(status, gin.H{
		"error":  message,
		"reason": err.Error(),
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}
