package public

import (
	"strconv"

	"github.com/bidua-hosting/backend/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetReferralOverview returns the customer's referral code, promotion
// path and per-level referral counts.
func (h *Handler) GetReferralOverview(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	overview, err := h.ReferralService.GetOverview(uid)
	if err != nil {
		respondError(c, response.CodeInternal, "referral overview fetch failed", err)
		return
	}
	response.Success(c, overview)
}

// ListReferrals lists the customer's direct referrals.
func (h *Handler) ListReferrals(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	rows, total, err := h.ReferralService.ListDirectReferrals(uid, page, pageSize)
	if err != nil {
		respondError(c, response.CodeInternal, "referral list fetch failed", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// ApplyReferralCodeRequest carries the code to bind after signup.
type ApplyReferralCodeRequest struct {
	ReferralCode string `json:"referral_code" binding:"required"`
}

// ApplyReferralCode binds a referral code to an account that registered
// without one.
func (h *Handler) ApplyReferralCode(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	var req ApplyReferralCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	edge, err := h.ReferralService.ApplyReferralCode(uid, req.ReferralCode)
	if err != nil {
		respondApplyReferralCodeError(c, err)
		return
	}
	response.Success(c, edge)
}
