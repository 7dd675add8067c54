package public

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bidua-hosting/backend/internal/http/response"
	"github.com/bidua-hosting/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// ListEarnings lists the customer's commission ledger entries.
func (h *Handler) ListEarnings(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	status := strings.TrimSpace(c.Query("status"))
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

	rows, total, err := h.LedgerService.ListEarnings(uid, service.EarningListQuery{
		Page:        page,
		PageSize:    pageSize,
		Status:      status,
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

// GetEarningStats returns the customer's pending/available/paid balances.
func (h *Handler) GetEarningStats(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	stats, err := h.LedgerService.GetStats(uid)
	if err != nil {
		if errors.Is(err, service.ErrBalanceInvariant) {
			respondError(c, response.CodeInternal, "balance inconsistent", err)
			return
		}
		respondError(c, response.CodeInternal, "earning stats fetch failed", err)
		return
	}
	response.Success(c, stats)
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
