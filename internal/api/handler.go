package api

import (
	"errors"
	"net/http"
	"time"

	"marketplace-payments/internal/service"
	"marketplace-payments/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	coupons     *service.CouponService
	checkout    *service.CheckoutService
	webhooks    *service.WebhookService
	payments    *service.PaymentService
	downloads   *service.DownloadService
	withdrawals *service.WithdrawalService
	auth        TokenAuthenticator
}

// NewHandler creates a new HTTP handler
func NewHandler(
	coupons *service.CouponService,
	checkout *service.CheckoutService,
	webhooks *service.WebhookService,
	payments *service.PaymentService,
	downloads *service.DownloadService,
	withdrawals *service.WithdrawalService,
	auth TokenAuthenticator,
) *Handler {
	return &Handler{
		coupons:     coupons,
		checkout:    checkout,
		webhooks:    webhooks,
		payments:    payments,
		downloads:   downloads,
		withdrawals: withdrawals,
		auth:        auth,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(corsMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/validate-coupon", h.validateCoupon)
	router.POST("/create-checkout-session", h.createCheckoutSession)
	router.POST("/stripe-webhook", h.stripeWebhook)
	router.POST("/generate-download-links", h.generateDownloadLinks)
	router.POST("/track-download", h.trackDownload)

	authed := router.Group("/", authMiddleware(h.auth))
	{
		authed.POST("/process-payment", h.processPayment)
		authed.POST("/request-withdrawal", h.requestWithdrawal)
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

type validateCouponRequest struct {
	Code      string `json:"code"`
	ProductID string `json:"productId"`
	UserID    string `json:"userId"`
}

// validateCoupon handles coupon validation. Invalid coupons are a
// normal 200 outcome; only malformed requests and lookup failures are
// errors.
func (h *Handler) validateCoupon(c *gin.Context) {
	var req validateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"valid": false,
			"error": "Invalid request body",
		})
		return
	}
	if req.Code == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"valid": false,
			"error": "Coupon code is required",
		})
		return
	}

	verdict, err := h.coupons.Validate(c.Request.Context(), req.Code, req.ProductID, req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"valid": false,
			"error": "Failed to validate coupon",
		})
		return
	}

	c.JSON(http.StatusOK, verdict)
}

// createCheckoutSession opens a hosted checkout session
func (h *Handler) createCheckoutSession(c *gin.Context) {
	var req service.CreateCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	resp, err := h.checkout.CreateSession(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// stripeWebhook ingests provider webhook deliveries. The raw body is
// needed for signature verification, so no JSON binding happens before
// the event is verified.
func (h *Handler) stripeWebhook(c *gin.Context) {
	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Missing signature",
		})
		return
	}

	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to read request body",
		})
		return
	}

	if err := h.webhooks.HandleEvent(c.Request.Context(), payload, signature); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// processPayment verifies a client-reported payment intent and records
// the sale
func (h *Handler) processPayment(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req service.ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	resp, err := h.payments.ProcessPayment(c.Request.Context(), user.ID, &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

type generateDownloadLinksRequest struct {
	OrderID       string `json:"orderId"`
	ExpiresInDays int    `json:"expiresInDays"`
	MaxDownloads  int    `json:"maxDownloads"`
}

// generateDownloadLinks issues download links for a completed order
func (h *Handler) generateDownloadLinks(c *gin.Context) {
	var req generateDownloadLinksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}
	if req.OrderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "orderId is required",
		})
		return
	}

	links, expiresAt, err := h.downloads.GenerateLinks(c.Request.Context(), req.OrderID, req.ExpiresInDays, req.MaxDownloads)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Order not found",
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"downloadLinks": links,
		"expiresAt":     expiresAt,
	})
}

type trackDownloadRequest struct {
	Token  string `json:"token"`
	FileID string `json:"fileId"`
}

// trackDownload redeems one use of a download token
func (h *Handler) trackDownload(c *gin.Context) {
	var req trackDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" || req.FileID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "token and fileId are required",
		})
		return
	}

	token, err := h.downloads.TrackDownload(c.Request.Context(), req.Token, req.FileID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrTokenNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, store.ErrTokenExpired), errors.Is(err, store.ErrDownloadLimitReached):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"downloadCount":      token.DownloadCount,
		"maxDownloads":       token.MaxDownloads,
		"remainingDownloads": token.MaxDownloads - token.DownloadCount,
	})
}

// requestWithdrawal records a seller payout request
func (h *Handler) requestWithdrawal(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var input service.WithdrawalRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	resp, err := h.withdrawals.RequestWithdrawal(c.Request.Context(), user.ID, &input)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}
