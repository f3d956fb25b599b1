package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"analytics-service/internal/models"
)

// DashboardProvider recomputes the dashboard tables from the source datasets.
type DashboardProvider interface {
	BuildDashboard(ctx context.Context) (*models.Dashboard, error)
}

// AnalyticsHandlers handles HTTP requests for the dashboard tables
type AnalyticsHandlers struct {
	service DashboardProvider
	logger  *logrus.Logger
}

// NewAnalyticsHandlers creates a new analytics handlers instance
func NewAnalyticsHandlers(service DashboardProvider, logger *logrus.Logger) *AnalyticsHandlers {
	return &AnalyticsHandlers{
		service: service,
		logger:  logger,
	}
}

func (h *AnalyticsHandlers) build(c *gin.Context) (*models.Dashboard, bool) {
	dashboard, err := h.service.BuildDashboard(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to build dashboard")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build dashboard"})
		return nil, false
	}
	return dashboard, true
}

// GetDashboard returns every derived table of a fresh recomputation
// @Summary Full dashboard payload
// @Tags Dashboard
// @Produce json
// @Success 200 {object} models.Dashboard
// @Router /api/v1/dashboard [get]
func (h *AnalyticsHandlers) GetDashboard(c *gin.Context) {
	dashboard, ok := h.build(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

// GetKPIs returns the latest-vs-previous monthly KPI comparison
// @Summary Monthly KPI comparison
// @Tags Dashboard
// @Produce json
// @Success 200 {object} models.KPIComparison
// @Router /api/v1/dashboard/kpis [get]
func (h *AnalyticsHandlers) GetKPIs(c *gin.Context) {
	dashboard, ok := h.build(c)
	if !ok {
		return
	}
	if dashboard.KPIs == nil {
		c.JSON(http.StatusOK, gin.H{"kpis": nil, "message": "not enough data for a monthly comparison"})
		return
	}
	c.JSON(http.StatusOK, dashboard.KPIs)
}

// GetMonthlySummary returns the monthly KPI table
// @Summary Monthly KPI summary
// @Tags Dashboard
// @Produce json
// @Success 200 {array} models.MonthlySummary
// @Router /api/v1/dashboard/monthly [get]
func (h *AnalyticsHandlers) GetMonthlySummary(c *gin.Context) {
	dashboard, ok := h.build(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"monthly": dashboard.Monthly, "total": len(dashboard.Monthly)})
}

// GetAttribution returns the first-order channel attribution table
// @Summary Channel attribution (first orders)
// @Tags Dashboard
// @Produce json
// @Success 200 {array} models.ChannelSummary
// @Router /api/v1/dashboard/attribution [get]
func (h *AnalyticsHandlers) GetAttribution(c *gin.Context) {
	dashboard, ok := h.build(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"attribution": dashboard.Attribution, "total": len(dashboard.Attribution)})
}

// GetDiscounts returns the discount-status summary
// @Summary Discount impact summary
// @Tags Dashboard
// @Produce json
// @Success 200 {array} models.DiscountSummary
// @Router /api/v1/dashboard/discounts [get]
func (h *AnalyticsHandlers) GetDiscounts(c *gin.Context) {
	dashboard, ok := h.build(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"discounts": dashboard.Discounts, "total": len(dashboard.Discounts)})
}

// GetCustomerTypes returns the New/Returning revenue summary
// @Summary New vs returning summary
// @Tags Dashboard
// @Produce json
// @Success 200 {array} models.CustomerTypeSummary
// @Router /api/v1/dashboard/customer-types [get]
func (h *AnalyticsHandlers) GetCustomerTypes(c *gin.Context) {
	dashboard, ok := h.build(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"customerTypes": dashboard.CustomerTypes, "total": len(dashboard.CustomerTypes)})
}

// GetSegments returns customer counts per frequency segment
// @Summary Customer segmentation counts
// @Tags Dashboard
// @Produce json
// @Success 200 {array} models.SegmentCount
// @Router /api/v1/dashboard/segments [get]
func (h *AnalyticsHandlers) GetSegments(c *gin.Context) {
	dashboard, ok := h.build(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"segments": dashboard.Segments, "total": len(dashboard.Segments)})
}

// GetEfficiency returns the CAC/ROAS table
// @Summary Channel efficiency (CAC/ROAS)
// @Tags Dashboard
// @Produce json
// @Success 200 {array} models.ChannelEfficiency
// @Router /api/v1/dashboard/efficiency [get]
func (h *AnalyticsHandlers) GetEfficiency(c *gin.Context) {
	dashboard, ok := h.build(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"efficiency": dashboard.Efficiency, "total": len(dashboard.Efficiency)})
}

// Refresh reloads the source datasets and recomputes every table
// @Summary Recompute the dashboard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} models.Dashboard
// @Router /api/v1/dashboard/refresh [post]
func (h *AnalyticsHandlers) Refresh(c *gin.Context) {
	dashboard, ok := h.build(c)
	if !ok {
		return
	}

	h.logger.WithFields(logrus.Fields{
		"snapshot_id":    dashboard.SnapshotID,
		"orders":         dashboard.OrderCount,
		"dropped_orders": dashboard.DroppedOrders,
	}).Info("Dashboard refreshed")

	c.JSON(http.StatusOK, gin.H{
		"snapshotId":    dashboard.SnapshotID,
		"generatedAt":   dashboard.GeneratedAt,
		"orderCount":    dashboard.OrderCount,
		"droppedOrders": dashboard.DroppedOrders,
		"droppedSpend":  dashboard.DroppedSpend,
	})
}
