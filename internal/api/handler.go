package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"fulfillment-service/internal/broker"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/service"
	"fulfillment-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	fulfillment   *service.FulfillmentService
	picking       *service.PickingService
	dashboard     *service.DashboardService
	notifications *service.NotificationService
	enricher      *service.Enricher
	notifProducer *broker.Producer
}

// NewHandler creates a new HTTP handler
func NewHandler(
	fulfillment *service.FulfillmentService,
	picking *service.PickingService,
	dashboard *service.DashboardService,
	notifications *service.NotificationService,
	enricher *service.Enricher,
	notifProducer *broker.Producer,
) *Handler {
	return &Handler{
		fulfillment:   fulfillment,
		picking:       picking,
		dashboard:     dashboard,
		notifications: notifications,
		enricher:      enricher,
		notifProducer: notifProducer,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/webhooks/marketplace", h.marketplaceWebhook)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/scan", h.scan)
		v1.GET("/dashboard", h.getDashboard)
		v1.GET("/shipments/:id/state", h.getShipmentState)
		v1.POST("/shipments/:id/pack", h.packShipment)
		v1.POST("/shipments/:id/dispatch", h.dispatchShipment)
		v1.POST("/catalog/sync", h.syncCatalog)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type scanRequest struct {
	Code string `json:"code" binding:"required"`
	Kind string `json:"kind"`
}

// scan resolves a scanned barcode into a pick list. Kind defaults to
// shipment; "order" forces the direct order path.
func (h *Handler) scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	var (
		detail *models.ShipmentDetail
		cached bool
		err    error
	)
	switch req.Kind {
	case "", "shipment":
		detail, cached, err = h.fulfillment.ScanShipment(c.Request.Context(), req.Code)
	case "order":
		detail, cached, err = h.fulfillment.ScanOrder(c.Request.Context(), req.Code)
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Unknown scan kind",
		})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"cached":   cached,
		"shipment": detail,
	})
}

type packRequest struct {
	Operator string `json:"operator" binding:"required"`
}

// packShipment moves every line of the shipment to packed
func (h *Handler) packShipment(c *gin.Context) {
	var req packRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	shipmentID := c.Param("id")
	if err := h.picking.MarkPacked(c.Request.Context(), shipmentID, req.Operator); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"shipment_id": shipmentID,
		"state":       models.PickStatePacked,
	})
}

type dispatchRequest struct {
	Operator     string `json:"operator" binding:"required"`
	Carrier      string `json:"carrier" binding:"required"`
	DispatchType string `json:"dispatch_type"`
}

// dispatchShipment moves every line of the shipment to dispatched
func (h *Handler) dispatchShipment(c *gin.Context) {
	var req dispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	shipmentID := c.Param("id")
	err := h.picking.MarkDispatched(c.Request.Context(), shipmentID, req.Carrier, req.DispatchType, req.Operator)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"shipment_id": shipmentID,
		"state":       models.PickStateDispatched,
	})
}

// getShipmentState reports the shipment's pick ledger state
func (h *Handler) getShipmentState(c *gin.Context) {
	shipmentID := c.Param("id")

	state, err := h.picking.ShipmentState(c.Request.Context(), shipmentID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"shipment_id": shipmentID,
		"state":       state,
	})
}

// getDashboard returns the rolling-window progress snapshot. An
// optional "at" query parameter (RFC 3339) pins the window end.
func (h *Handler) getDashboard(c *gin.Context) {
	at := time.Now()
	if raw := c.Query("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "Invalid 'at' timestamp",
			})
			return
		}
		at = parsed
	}

	snapshot, err := h.dashboard.Snapshot(c.Request.Context(), at)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"dashboard": snapshot,
	})
}

// syncCatalog forces a full vendor catalog refresh
func (h *Handler) syncCatalog(c *gin.Context) {
	count, err := h.enricher.SyncAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"synced":  count,
	})
}

// marketplaceWebhook accepts a push notification and acknowledges it
// immediately. Notifications go through the broker so a burst never
// stalls the webhook; when the broker is unreachable the notification
// is handled inline instead of dropped.
func (h *Handler) marketplaceWebhook(c *gin.Context) {
	var notif models.MarketplaceNotification
	if err := c.ShouldBindJSON(&notif); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid notification payload",
		})
		return
	}

	if h.notifProducer != nil {
		if err := h.notifProducer.PublishEvent(c.Request.Context(), notif.Resource, notif); err == nil {
			c.JSON(http.StatusOK, gin.H{"success": true})
			return
		}
	}

	if err := h.notifications.Handle(c.Request.Context(), notif); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// respondError maps typed service errors onto HTTP statuses
func respondError(c *gin.Context, err error) {
	var (
		domainErr   *models.DomainError
		notFoundErr *models.NotFoundError
		authErr     *models.AuthError
		upstreamErr *models.UpstreamError
	)

	switch {
	case errors.As(err, &domainErr):
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   domainErr.Error(),
		})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   notFoundErr.Error(),
		})
	case errors.As(err, &authErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   "Marketplace authentication failed",
			"details": authErr.Error(),
		})
	case errors.As(err, &upstreamErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   "Marketplace request failed",
			"details": upstreamErr.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Internal error",
			"details": err.Error(),
		})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
