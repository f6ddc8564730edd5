package api

import (
	"io"
	"net/http"

	"regulie/therapy-app/internal/domain"
	"regulie/therapy-app/internal/service"

	"github.com/gin-gonic/gin"
)

const maxWebhookBodyBytes = 65536

type SubscriptionHandler struct {
	subscriptionService service.SubscriptionService
	usageService        service.UsageService
}

func NewSubscriptionHandler(subscriptionService service.SubscriptionService, usageService service.UsageService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptionService: subscriptionService, usageService: usageService}
}

type CheckoutRequest struct {
	Tier domain.Tier `json:"tier" binding:"required,oneof=professional premium"`
}

// GET /api/subscription
func (h *SubscriptionHandler) GetStatus(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	status, err := h.subscriptionService.Status(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Checkout starts a Stripe Checkout session for a paid tier.
// POST /api/subscription/checkout
func (h *SubscriptionHandler) Checkout(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req CheckoutRequest
	if !bindJSON(c, &req) {
		return
	}

	url, err := h.subscriptionService.Checkout(c.Request.Context(), userID, req.Tier)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// POST /api/subscription/portal
func (h *SubscriptionHandler) Portal(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	url, err := h.subscriptionService.Portal(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Webhook receives Stripe events. The raw body is needed for signature verification.
// POST /api/subscription/webhook
func (h *SubscriptionHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Could not read request body")
		return
	}

	if err := h.subscriptionService.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// GetUsage reports the caller's tier, counters and limits.
// GET /api/usage
func (h *SubscriptionHandler) GetUsage(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	summary, err := h.usageService.Summary(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
