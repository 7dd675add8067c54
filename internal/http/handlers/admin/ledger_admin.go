package admin

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bidua-hosting/backend/internal/http/response"
	"github.com/bidua-hosting/backend/internal/repository"
	"github.com/bidua-hosting/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// ListAdminEarnings lists commission ledger entries across all earners.
func (h *Handler) ListAdminEarnings(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	earnerID, _ := strconv.ParseUint(strings.TrimSpace(c.Query("earner_id")), 10, 64)
	level, _ := strconv.Atoi(c.Query("level"))
	from, err := parseTimeQuery(c.Query("from"))
	if err != nil {
		respondError(c, response.CodeBadRequest, "invalid from date", err)
		return
	}
	to, err := parseTimeQuery(c.Query("to"))
	if err != nil {
		respondError(c, response.CodeBadRequest, "invalid to date", err)
		return
	}

	rows, total, err := h.LedgerService.ListAdminEarnings(repository.EarningListFilter{
		Page:        page,
		PageSize:    pageSize,
		EarnerID:    uint(earnerID),
		OrderNo:     strings.TrimSpace(c.Query("order_no")),
		Status:      strings.TrimSpace(c.Query("status")),
		Level:       level,
		CreatedFrom: from,
		CreatedTo:   to,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "earning list fetch failed", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

func parseTimeQuery(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return &parsed, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// GetAdminEarning returns one ledger entry.
func (h *Handler) GetAdminEarning(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "invalid earning id", nil)
		return
	}

	entry, err := h.LedgerService.GetEntry(uint(id))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondError(c, response.CodeNotFound, "earning not found", nil)
			return
		}
		respondError(c, response.CodeInternal, "earning fetch failed", err)
		return
	}
	response.Success(c, entry)
}

// EarningReviewRequest carries the optional reason for a ledger review action.
type EarningReviewRequest struct {
	Reason string `json:"reason"`
}

func respondEarningReviewError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		respondError(c, response.CodeNotFound, "earning not found", nil)
	case errors.Is(err, service.ErrInvalidStateTransition):
		respondError(c, response.CodeBadRequest, "earning state does not allow this action", nil)
	default:
		respondError(c, response.CodeInternal, "earning review failed", err)
	}
}

// ApproveEarning confirms a pending commission ahead of its verification window.
func (h *Handler) ApproveEarning(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "invalid earning id", nil)
		return
	}

	entry, err := h.LedgerService.Approve(uint(id))
	if err != nil {
		respondEarningReviewError(c, err)
		return
	}
	response.Success(c, entry)
}

// RejectEarning rejects a pending or approved commission.
func (h *Handler) RejectEarning(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "invalid earning id", nil)
		return
	}

	var req EarningReviewRequest
	if c.Request.ContentLength > 0 {
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			respondError(c, response.CodeBadRequest, "bad request", bindErr)
			return
		}
	}

	entry, err := h.LedgerService.Reject(uint(id), strings.TrimSpace(req.Reason))
	if err != nil {
		respondEarningReviewError(c, err)
		return
	}
	response.Success(c, entry)
}

// ReverseEarning reverses a commission after the underlying order was
// refunded or charged back.
func (h *Handler) ReverseEarning(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "invalid earning id", nil)
		return
	}

	var req EarningReviewRequest
	if c.Request.ContentLength > 0 {
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			respondError(c, response.CodeBadRequest, "bad request", bindErr)
			return
		}
	}

	entry, err := h.LedgerService.Reverse(uint(id), strings.TrimSpace(req.Reason))
	if err != nil {
		respondEarningReviewError(c, err)
		return
	}
	response.Success(c, entry)
}
