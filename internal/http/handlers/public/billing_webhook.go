package public

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/bidua-hosting/backend/internal/http/response"
	"github.com/bidua-hosting/backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// OrderSettledWebhookRequest is the payload delivered by the billing
// system when an order is settled.
type OrderSettledWebhookRequest struct {
	OrderNo      string `json:"order_no" binding:"required"`
	PurchaserID  uint   `json:"purchaser_id" binding:"required"`
	Amount       string `json:"amount" binding:"required"`
	Currency     string `json:"currency"`
	BillingType  string `json:"billing_type"`
	RenewalCycle int    `json:"renewal_cycle"`
	SettledAt    string `json:"settled_at"`
}

// OrderSettledWebhook ingests a settled-order event from the billing
// system and records the resulting commissions. Redelivery of the same
// order is accepted and ignored.
func (h *Handler) OrderSettledWebhook(c *gin.Context) {
	log := requestLog(c)

	token := strings.TrimSpace(c.GetHeader("X-Billing-Token"))
	expected := strings.TrimSpace(h.Config.Billing.WebhookToken)
	if expected == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		log.Warnw("billing_webhook_token_invalid", "client_ip", c.ClientIP())
		respondError(c, response.CodeUnauthorized, "unauthorized", nil)
		return
	}

	var req OrderSettledWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnw("billing_webhook_payload_invalid", "error", err)
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		log.Warnw("billing_webhook_amount_invalid", "order_no", req.OrderNo, "amount", req.Amount)
		respondError(c, response.CodeBadRequest, "invalid amount", nil)
		return
	}

	settledAt := time.Now()
	if raw := strings.TrimSpace(req.SettledAt); raw != "" {
		parsed, parseErr := time.Parse(time.RFC3339, raw)
		if parseErr != nil {
			respondError(c, response.CodeBadRequest, "invalid settled_at", nil)
			return
		}
		settledAt = parsed
	}

	log.Infow("billing_webhook_received",
		"order_no", req.OrderNo,
		"purchaser_id", req.PurchaserID,
		"amount", amount.String(),
		"billing_type", req.BillingType,
	)

	if err := h.CommissionService.HandleOrderSettled(service.OrderSettledEvent{
		OrderNo:      req.OrderNo,
		PurchaserID:  req.PurchaserID,
		Amount:       amount,
		Currency:     req.Currency,
		BillingType:  req.BillingType,
		RenewalCycle: req.RenewalCycle,
		SettledAt:    settledAt,
	}); err != nil {
		log.Errorw("billing_webhook_handle_failed", "order_no", req.OrderNo, "error", err)
		respondError(c, response.CodeInternal, "order event processing failed", err)
		return
	}

	response.Success(c, gin.H{"accepted": true})
}
