package service

import (
	"github.com/bidua-hosting/backend/internal/constants"
	"github.com/bidua-hosting/backend/internal/models"
)

// normalizeSettingValueByKey normalizes a setting document before it is
// stored, so malformed values never reach the table.
func normalizeSettingValueByKey(key string, value map[string]interface{}) models.JSON {
	switch key {
	case constants.SettingKeyReferralConfig:
		setting := referralSettingFromJSON(models.JSON(value), ReferralDefaultSetting())
		return models.JSON(ReferralSettingToMap(setting))
	default:
		return models.JSON(value)
	}
}
