package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/bidua-hosting/backend/internal/http/response"
	"github.com/bidua-hosting/backend/internal/repository"
	"github.com/bidua-hosting/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// ListAdminPayouts lists payout requests for review.
func (h *Handler) ListAdminPayouts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	userID, _ := strconv.ParseUint(strings.TrimSpace(c.Query("user_id")), 10, 64)

	rows, total, err := h.PayoutService.ListAdminPayouts(repository.PayoutListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   uint(userID),
		Status:   strings.TrimSpace(c.Query("status")),
		PayoutNo: strings.TrimSpace(c.Query("payout_no")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "payout list fetch failed", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// GetAdminPayout returns one payout request.
func (h *Handler) GetAdminPayout(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "invalid payout id", nil)
		return
	}

	payout, err := h.PayoutService.GetPayout(uint(id))
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

// PayoutReviewRequest carries the optional reference or reason for a
// payout review action.
type PayoutReviewRequest struct {
	Reference string `json:"reference"`
	Reason    string `json:"reason"`
}

func parsePayoutReviewRequest(c *gin.Context) (PayoutReviewRequest, uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "invalid payout id", nil)
		return PayoutReviewRequest{}, 0, false
	}

	var req PayoutReviewRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "bad request", err)
			return PayoutReviewRequest{}, 0, false
		}
	}
	return req, uint(id), true
}

func respondPayoutReviewError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		respondError(c, response.CodeNotFound, "payout not found", nil)
	case errors.Is(err, service.ErrInvalidStateTransition):
		respondError(c, response.CodeBadRequest, "payout state does not allow this action", nil)
	default:
		respondError(c, response.CodeInternal, "payout review failed", err)
	}
}

// MarkPayoutUnderReview moves a payout into manual review.
func (h *Handler) MarkPayoutUnderReview(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	_, id, ok := parsePayoutReviewRequest(c)
	if !ok {
		return
	}

	row, err := h.PayoutService.MarkUnderReview(adminID, id)
	if err != nil {
		respondPayoutReviewError(c, err)
		return
	}
	response.Success(c, row)
}

// ApprovePayout approves a reviewed payout.
func (h *Handler) ApprovePayout(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	_, id, ok := parsePayoutReviewRequest(c)
	if !ok {
		return
	}

	row, err := h.PayoutService.Approve(adminID, id)
	if err != nil {
		respondPayoutReviewError(c, err)
		return
	}
	response.Success(c, row)
}

// BeginPayoutProcessing marks a payout as handed to the payment rail.
func (h *Handler) BeginPayoutProcessing(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	req, id, ok := parsePayoutReviewRequest(c)
	if !ok {
		return
	}

	row, err := h.PayoutService.BeginProcessing(adminID, id, strings.TrimSpace(req.Reference))
	if err != nil {
		respondPayoutReviewError(c, err)
		return
	}
	response.Success(c, row)
}

// CompletePayout marks a payout as paid out and settles its ledger entries.
func (h *Handler) CompletePayout(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	req, id, ok := parsePayoutReviewRequest(c)
	if !ok {
		return
	}

	row, err := h.PayoutService.Complete(adminID, id, strings.TrimSpace(req.Reference))
	if err != nil {
		respondPayoutReviewError(c, err)
		return
	}
	response.Success(c, row)
}

// RejectPayout rejects a payout and releases its reserved entries.
func (h *Handler) RejectPayout(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	req, id, ok := parsePayoutReviewRequest(c)
	if !ok {
		return
	}

	row, err := h.PayoutService.Reject(adminID, id, strings.TrimSpace(req.Reason))
	if err != nil {
		respondPayoutReviewError(c, err)
		return
	}
	response.Success(c, row)
}
