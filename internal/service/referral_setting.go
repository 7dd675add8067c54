package service

import (
	"fmt"
	"math"

	"github.com/bidua-hosting/backend/internal/config"
	"github.com/bidua-hosting/backend/internal/constants"
	"github.com/bidua-hosting/backend/internal/models"
	"github.com/shopspring/decimal"
)

const (
	referralRateMin             = 0
	referralRateMax             = 100
	referralVerificationDaysMin = 0
	referralVerificationDaysMax = 365
	referralMinPayoutAmountMin  = 0
)

// ReferralSetting is the effective commission program configuration.
type ReferralSetting struct {
	Level1RatePercent     float64 `json:"level1_rate_percent"`
	Level2RatePercent     float64 `json:"level2_rate_percent"`
	Level3RatePercent     float64 `json:"level3_rate_percent"`
	VerificationDays      int     `json:"verification_days"`
	MinPayoutAmount       float64 `json:"min_payout_amount"`
	TDSRatePercent        float64 `json:"tds_rate_percent"`
	ServiceTaxRatePercent float64 `json:"service_tax_rate_percent"`
}

// ReferralDefaultSetting returns the program defaults.
func ReferralDefaultSetting() ReferralSetting {
	return NormalizeReferralSetting(ReferralSetting{
		Level1RatePercent:     15,
		Level2RatePercent:     10,
		Level3RatePercent:     3,
		VerificationDays:      7,
		MinPayoutAmount:       500,
		TDSRatePercent:        10,
		ServiceTaxRatePercent: 18,
	})
}

// ReferralSettingFromConfig builds a setting from the static configuration.
func ReferralSettingFromConfig(cfg config.ReferralConfig) ReferralSetting {
	return NormalizeReferralSetting(ReferralSetting{
		Level1RatePercent:     cfg.Level1RatePercent,
		Level2RatePercent:     cfg.Level2RatePercent,
		Level3RatePercent:     cfg.Level3RatePercent,
		VerificationDays:      cfg.VerificationDays,
		MinPayoutAmount:       cfg.MinPayoutAmount,
		TDSRatePercent:        cfg.TDSRatePercent,
		ServiceTaxRatePercent: cfg.ServiceTaxRatePercent,
	})
}

// RateForLevel returns the commission rate percent for a referral level.
func (s ReferralSetting) RateForLevel(level int) decimal.Decimal {
	switch level {
	case constants.ReferralLevelOne:
		return decimal.NewFromFloat(s.Level1RatePercent)
	case constants.ReferralLevelTwo:
		return decimal.NewFromFloat(s.Level2RatePercent)
	case constants.ReferralLevelThree:
		return decimal.NewFromFloat(s.Level3RatePercent)
	default:
		return decimal.Zero
	}
}

// NormalizeReferralSetting clamps values into the supported ranges.
func NormalizeReferralSetting(setting ReferralSetting) ReferralSetting {
	setting.Level1RatePercent = clampReferralRate(setting.Level1RatePercent)
	setting.Level2RatePercent = clampReferralRate(setting.Level2RatePercent)
	setting.Level3RatePercent = clampReferralRate(setting.Level3RatePercent)

	if setting.VerificationDays < referralVerificationDaysMin {
		setting.VerificationDays = referralVerificationDaysMin
	}
	if setting.VerificationDays > referralVerificationDaysMax {
		setting.VerificationDays = referralVerificationDaysMax
	}

	setting.MinPayoutAmount = roundReferralDecimal(setting.MinPayoutAmount)
	if setting.MinPayoutAmount < referralMinPayoutAmountMin {
		setting.MinPayoutAmount = referralMinPayoutAmountMin
	}

	setting.TDSRatePercent = clampReferralRate(setting.TDSRatePercent)
	setting.ServiceTaxRatePercent = clampReferralRate(setting.ServiceTaxRatePercent)
	return setting
}

// ValidateReferralSetting rejects configurations outside the supported ranges.
func ValidateReferralSetting(setting ReferralSetting) error {
	rates := []float64{setting.Level1RatePercent, setting.Level2RatePercent, setting.Level3RatePercent}
	for _, rate := range rates {
		if rate < referralRateMin || rate > referralRateMax {
			return fmt.Errorf("%w: commission rate must be between 0 and 100", ErrReferralConfigInvalid)
		}
	}
	if setting.VerificationDays < referralVerificationDaysMin || setting.VerificationDays > referralVerificationDaysMax {
		return fmt.Errorf("%w: verification days must be between 0 and 365", ErrReferralConfigInvalid)
	}
	if setting.MinPayoutAmount < referralMinPayoutAmountMin {
		return fmt.Errorf("%w: minimum payout amount cannot be negative", ErrReferralConfigInvalid)
	}
	if setting.TDSRatePercent < referralRateMin || setting.TDSRatePercent > referralRateMax {
		return fmt.Errorf("%w: TDS rate must be between 0 and 100", ErrReferralConfigInvalid)
	}
	if setting.ServiceTaxRatePercent < referralRateMin || setting.ServiceTaxRatePercent > referralRateMax {
		return fmt.Errorf("%w: service tax rate must be between 0 and 100", ErrReferralConfigInvalid)
	}
	if setting.TDSRatePercent+setting.ServiceTaxRatePercent >= 100 {
		return fmt.Errorf("%w: combined deduction rates must stay below 100", ErrReferralConfigInvalid)
	}
	return nil
}

// ReferralSettingToMap converts a setting into the settings storage shape.
func ReferralSettingToMap(setting ReferralSetting) map[string]interface{} {
	normalized := NormalizeReferralSetting(setting)
	return map[string]interface{}{
		"level1_rate_percent":      normalized.Level1RatePercent,
		"level2_rate_percent":      normalized.Level2RatePercent,
		"level3_rate_percent":      normalized.Level3RatePercent,
		"verification_days":        normalized.VerificationDays,
		"min_payout_amount":        normalized.MinPayoutAmount,
		"tds_rate_percent":         normalized.TDSRatePercent,
		"service_tax_rate_percent": normalized.ServiceTaxRatePercent,
	}
}

func referralSettingFromJSON(raw models.JSON, fallback ReferralSetting) ReferralSetting {
	result := fallback

	if rateRaw, ok := raw["level1_rate_percent"]; ok {
		if parsed, err := parseSettingFloat(rateRaw); err == nil {
			result.Level1RatePercent = parsed
		}
	}
	if rateRaw, ok := raw["level2_rate_percent"]; ok {
		if parsed, err := parseSettingFloat(rateRaw); err == nil {
			result.Level2RatePercent = parsed
		}
	}
	if rateRaw, ok := raw["level3_rate_percent"]; ok {
		if parsed, err := parseSettingFloat(rateRaw); err == nil {
			result.Level3RatePercent = parsed
		}
	}
	if daysRaw, ok := raw["verification_days"]; ok {
		if parsed, err := parseSettingInt(daysRaw); err == nil {
			result.VerificationDays = parsed
		}
	}
	if minRaw, ok := raw["min_payout_amount"]; ok {
		if parsed, err := parseSettingFloat(minRaw); err == nil {
			result.MinPayoutAmount = parsed
		}
	}
	if tdsRaw, ok := raw["tds_rate_percent"]; ok {
		if parsed, err := parseSettingFloat(tdsRaw); err == nil {
			result.TDSRatePercent = parsed
		}
	}
	if taxRaw, ok := raw["service_tax_rate_percent"]; ok {
		if parsed, err := parseSettingFloat(taxRaw); err == nil {
			result.ServiceTaxRatePercent = parsed
		}
	}

	return NormalizeReferralSetting(result)
}

// GetReferralSetting reads the commission program configuration, falling
// back to the supplied defaults when nothing is stored yet.
func (s *SettingService) GetReferralSetting(fallback ReferralSetting) (ReferralSetting, error) {
	fallback = NormalizeReferralSetting(fallback)
	if s == nil {
		return fallback, nil
	}

	value, err := s.GetByKey(constants.SettingKeyReferralConfig)
	if err != nil {
		return fallback, err
	}
	if value == nil {
		return fallback, nil
	}
	return referralSettingFromJSON(value, fallback), nil
}

// UpdateReferralSetting validates and stores the commission program
// configuration.
func (s *SettingService) UpdateReferralSetting(setting ReferralSetting) (ReferralSetting, error) {
	normalized := NormalizeReferralSetting(setting)
	if err := ValidateReferralSetting(setting); err != nil {
		return ReferralDefaultSetting(), err
	}
	if _, err := s.Update(constants.SettingKeyReferralConfig, ReferralSettingToMap(normalized)); err != nil {
		return ReferralDefaultSetting(), err
	}
	return normalized, nil
}

func clampReferralRate(rate float64) float64 {
	rate = roundReferralDecimal(rate)
	if rate < referralRateMin {
		return referralRateMin
	}
	if rate > referralRateMax {
		return referralRateMax
	}
	return rate
}

func roundReferralDecimal(value float64) float64 {
	return math.Round(value*100) / 100
}
