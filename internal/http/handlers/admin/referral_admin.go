package admin

import (
	"errors"

	"github.com/bidua-hosting/backend/internal/http/response"
	"github.com/bidua-hosting/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// GetReferralSettings returns the referral program configuration.
func (h *Handler) GetReferralSettings(c *gin.Context) {
	setting, err := h.SettingService.GetReferralSetting(service.ReferralSettingFromConfig(h.Config.Referral))
	if err != nil {
		respondError(c, response.CodeInternal, "settings fetch failed", err)
		return
	}
	response.Success(c, setting)
}

// UpdateReferralSettings updates the referral program configuration.
func (h *Handler) UpdateReferralSettings(c *gin.Context) {
	var req service.ReferralSetting
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	setting, err := h.SettingService.UpdateReferralSetting(req)
	if err != nil {
		if errors.Is(err, service.ErrReferralConfigInvalid) {
			respondError(c, response.CodeBadRequest, "invalid referral configuration", nil)
			return
		}
		respondError(c, response.CodeInternal, "settings save failed", err)
		return
	}
	response.Success(c, setting)
}
