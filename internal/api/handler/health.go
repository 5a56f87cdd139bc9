package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Capabilities reports which optional collaborators are configured.
type Capabilities struct {
	Embedding   bool `json:"embedding"`
	VectorIndex bool `json:"vector_index"`
	Geocoding   bool `json:"geocoding"`
	WebSearch   bool `json:"web_search"`
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	capabilities Capabilities
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(capabilities Capabilities) *HealthHandler {
	return &HealthHandler{capabilities: capabilities}
}

// Health returns the health status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"capabilities": h.capabilities,
	})
}
