package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthCheck handles health check requests
// @Summary Health check
// @Description Returns the health status of the analytics service
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "analytics-service",
	})
}

// ReadinessCheck handles readiness check requests
// @Summary Readiness check
// @Description Returns whether the analytics service is ready to serve traffic
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /ready [get]
func ReadinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ready",
		"service": "analytics-service",
	})
}
