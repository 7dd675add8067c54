package public

import (
	"errors"
	"strconv"
	"strings"

	"github.com/bidua-hosting/backend/internal/http/response"
	"github.com/bidua-hosting/backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// PayoutApplyRequest is the payout application payload.
type PayoutApplyRequest struct {
	Amount  string            `json:"amount" binding:"required"`
	Method  string            `json:"method" binding:"required"`
	Details map[string]string `json:"details"`
}

// RequestPayout submits a payout application against the customer's
// available balance.
func (h *Handler) RequestPayout(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	var req PayoutApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		respondError(c, response.CodeBadRequest, "invalid amount", nil)
		return
	}

	payout, err := h.PayoutService.RequestPayout(uid, service.PayoutRequestInput{
		Amount:  amount,
		Method:  req.Method,
		Details: req.Details,
	})
	if err != nil {
		respondPayoutRequestError(c, err)
		return
	}
	response.Success(c, payout)
}

// ListPayouts lists the customer's payout requests.
func (h *Handler) ListPayouts(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	status := strings.TrimSpace(c.Query("status"))

	rows, total, err := h.PayoutService.ListUserPayouts(uid, page, pageSize, status)
	if err != nil {
		respondError(c, response.CodeInternal, "payout list fetch failed", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// GetPayout returns one of the customer's payout requests.
func (h *Handler) GetPayout(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	payoutID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || payoutID == 0 {
		respondError(c, response.CodeBadRequest, "invalid payout id", nil)
		return
	}

	payout, err := h.PayoutService.GetUserPayout(uid, uint(payoutID))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondError(c, response.CodeNotFound, "payout not found", nil)
			return
		}
		respondError(c, response.CodeInternal, "payout fetch failed", err)
		return
	}
	response.Success(c, payout)
}
