package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"auction-service/internal/auctionerrors"
	"auction-service/internal/models"
	"auction-service/internal/realtime"
	"auction-service/internal/service"
	"auction-service/internal/store"
	"auction-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Handler contains HTTP handlers
type Handler struct {
	auctionService  *service.AuctionService
	bidService      *service.BidService
	finalizeService *service.FinalizeService
	deliveryService *service.DeliveryService
	store           *store.Store
	registry        *realtime.Registry
}

// NewHandler creates a new HTTP handler
func NewHandler(
	auctionService *service.AuctionService,
	bidService *service.BidService,
	finalizeService *service.FinalizeService,
	deliveryService *service.DeliveryService,
	st *store.Store,
	registry *realtime.Registry,
) *Handler {
	return &Handler{
		auctionService:  auctionService,
		bidService:      bidService,
		finalizeService: finalizeService,
		deliveryService: deliveryService,
		store:           st,
		registry:        registry,
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

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auctions", h.createAuction)
		v1.GET("/auctions", h.listAuctions)
		v1.GET("/auctions/:id", h.getAuction)
		v1.DELETE("/auctions/:id", h.deleteAuction)
		v1.POST("/auctions/:id/status", h.recomputeStatus)
		v1.POST("/auctions/:id/finalize", h.finalizeAuction)
		v1.GET("/auctions/:id/winner", h.getWinner)
		v1.PUT("/auctions/:id/payment", h.markPaid)
		v1.PUT("/auctions/:id/delivery", h.updateDeliveryStatus)
		v1.POST("/auctions/:id/delivery/confirm", h.confirmDelivery)
		v1.POST("/auctions/:id/bids", h.placeBid)
		v1.GET("/auctions/:id/bids", h.listAuctionBids)
		v1.GET("/users/:id/bids", h.listUserBids)
		v1.GET("/users/:id/notifications", h.listNotifications)
		v1.GET("/users/:id/cart", h.getCart)
		v1.PUT("/notifications/:id/read", h.markNotificationRead)
		v1.GET("/events", h.streamEvents)
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

// createAuction handles a buyer posting a need
func (h *Handler) createAuction(c *gin.Context) {
	var req service.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	auction, err := h.auctionService.CreateAuction(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "Failed to create auction", err)
		return
	}

	c.JSON(http.StatusCreated, auction)
}

// listAuctions handles listing with optional status, category and name
// filters
func (h *Handler) listAuctions(c *gin.Context) {
	filter := store.AuctionFilter{
		CategoryID: c.Query("category_id"),
		Name:       c.Query("name"),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.AuctionStatus(raw)
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid status filter",
				"details": "status must be upcoming, active or over",
			})
			return
		}
		filter.Status = status
	}

	auctions, err := h.auctionService.ListAuctions(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "Failed to list auctions", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"auctions": auctions})
}

// getAuction handles get auction by ID
func (h *Handler) getAuction(c *gin.Context) {
	auction, err := h.auctionService.GetAuction(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to get auction", err)
		return
	}

	c.JSON(http.StatusOK, auction)
}

// deleteAuction handles owner-initiated deletion
func (h *Handler) deleteAuction(c *gin.Context) {
	requesterID := c.GetHeader("X-User-ID")
	if requesterID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing X-User-ID header"})
		return
	}

	if err := h.auctionService.DeleteAuction(c.Request.Context(), c.Param("id"), requesterID); err != nil {
		respondError(c, "Failed to delete auction", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// recomputeStatus reconciles an auction's status with the clock and
// returns it
func (h *Handler) recomputeStatus(c *gin.Context) {
	auction, err := h.auctionService.RecomputeStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to get auction status", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"auction_id": auction.ID,
		"status":     auction.Status,
	})
}

// finalizeAuction closes an auction and selects the winner
func (h *Handler) finalizeAuction(c *gin.Context) {
	result, err := h.finalizeService.Finalize(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to finalize auction", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"winner":            result.Winner,
		"already_finalized": result.AlreadyFinalized,
	})
}

// getWinner returns the winning bid and bidder for a finalized auction
func (h *Handler) getWinner(c *gin.Context) {
	winner, err := h.auctionService.GetWinner(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to get winner", err)
		return
	}

	c.JSON(http.StatusOK, winner)
}

// markPaid records the buyer's payment for a won auction
func (h *Handler) markPaid(c *gin.Context) {
	auction, err := h.auctionService.MarkPaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to record payment", err)
		return
	}

	c.JSON(http.StatusOK, auction)
}

type updateDeliveryRequest struct {
	Status models.DeliveryStatus `json:"status" binding:"required"`
	Notes  string                `json:"notes"`
}

// updateDeliveryStatus moves a won auction through delivery sub-states
func (h *Handler) updateDeliveryStatus(c *gin.Context) {
	var req updateDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	auction, err := h.deliveryService.UpdateDeliveryStatus(c.Request.Context(), c.Param("id"), req.Status, req.Notes)
	if err != nil {
		respondError(c, "Failed to update delivery status", err)
		return
	}

	c.JSON(http.StatusOK, auction)
}

type confirmDeliveryRequest struct {
	ActualDeliveryDate time.Time `json:"actual_delivery_date" binding:"required"`
	Notes              string    `json:"notes"`
}

// confirmDelivery records the buyer's delivery confirmation and updates
// the supplier's reliability metrics
func (h *Handler) confirmDelivery(c *gin.Context) {
	var req confirmDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	auction, err := h.deliveryService.ConfirmDelivery(c.Request.Context(), c.Param("id"), req.ActualDeliveryDate, req.Notes)
	if err != nil {
		respondError(c, "Failed to confirm delivery", err)
		return
	}

	c.JSON(http.StatusOK, auction)
}

type placeBidRequest struct {
	BidderID string          `json:"bidder_id" binding:"required"`
	Amount   decimal.Decimal `json:"amount" binding:"required"`
}

// placeBid handles a supplier bidding on an auction
func (h *Handler) placeBid(c *gin.Context) {
	var req placeBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	bid, err := h.bidService.PlaceBid(c.Request.Context(), c.Param("id"), req.BidderID, req.Amount)
	if err != nil {
		respondError(c, "Failed to place bid", err)
		return
	}

	c.JSON(http.StatusCreated, bid)
}

// listAuctionBids returns all bids on an auction in placement order
func (h *Handler) listAuctionBids(c *gin.Context) {
	bids, err := h.bidService.ListBidsByAuction(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to list bids", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bids": bids})
}

// listUserBids returns every bid a supplier has placed
func (h *Handler) listUserBids(c *gin.Context) {
	bids, err := h.bidService.ListBidsByBidder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to list bids", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bids": bids})
}

// listNotifications returns a user's notifications, newest-first
func (h *Handler) listNotifications(c *gin.Context) {
	notifications, err := h.store.ListNotificationsByUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to list notifications", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// getCart returns the auctions a supplier has won
func (h *Handler) getCart(c *gin.Context) {
	auctions, err := h.store.ListCartAuctions(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to get cart", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"auctions": auctions})
}

// markNotificationRead flips a notification's read flag
func (h *Handler) markNotificationRead(c *gin.Context) {
	if err := h.store.MarkNotificationRead(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, "Failed to mark notification read", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"read": true})
}

// streamEvents opens a server-sent events stream for one user. A newer
// connection for the same user replaces this one.
func (h *Handler) streamEvents(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing user_id"})
		return
	}

	session := h.registry.Add(userID)
	defer h.registry.Remove(session)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case env, ok := <-session.Events:
			if !ok {
				return false
			}
			c.SSEvent(env.Event, env.Data)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// respondError maps domain errors to HTTP status codes
func respondError(c *gin.Context, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, auctionerrors.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, auctionerrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, auctionerrors.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, auctionerrors.ErrUnauthorized):
		status = http.StatusForbidden
	}

	c.JSON(status, gin.H{
		"error":   msg,
		"details": err.Error(),
	})
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
