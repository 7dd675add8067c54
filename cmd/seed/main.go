package main

import (
	"os"

	"github.com/bidua-hosting/backend/internal/config"
	"github.com/bidua-hosting/backend/internal/constants"
	"github.com/bidua-hosting/backend/internal/logger"
	"github.com/bidua-hosting/backend/internal/models"
	"github.com/bidua-hosting/backend/internal/repository"
	"github.com/bidua-hosting/backend/internal/service"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()

	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	if err := models.InitDefaultAdmin(os.Getenv("BH_DEFAULT_ADMIN_USERNAME"), os.Getenv("BH_DEFAULT_ADMIN_PASSWORD")); err != nil {
		stdLog.Printf("Failed to init default admin: %v", err)
	}

	// Referral program configuration document.
	settingService := service.NewSettingService(repository.NewSettingRepository(models.DB))
	if doc, err := settingService.GetByKey(constants.SettingKeyReferralConfig); err != nil {
		stdLog.Printf("Failed to read referral setting: %v", err)
	} else if doc == nil {
		setting, updateErr := settingService.UpdateReferralSetting(service.ReferralSettingFromConfig(cfg.Referral))
		if updateErr != nil {
			stdLog.Printf("Failed to seed referral setting: %v", updateErr)
		} else {
			stdLog.Printf("Seeded referral setting: L1=%.0f%% L2=%.0f%% L3=%.0f%%",
				setting.Level1RatePercent, setting.Level2RatePercent, setting.Level3RatePercent)
		}
	} else {
		stdLog.Printf("Referral setting already exists")
	}

	// Demo accounts forming a three-level referral chain.
	demoUsers := []struct {
		Email        string
		DisplayName  string
		ReferralCode string
		ReferrerCode string
	}{
		{Email: "asha@example.com", DisplayName: "Asha", ReferralCode: "ASHA2345"},
		{Email: "bikram@example.com", DisplayName: "Bikram", ReferralCode: "BKRM2345", ReferrerCode: "ASHA2345"},
		{Email: "chandra@example.com", DisplayName: "Chandra", ReferralCode: "CHND2345", ReferrerCode: "BKRM2345"},
		{Email: "deepa@example.com", DisplayName: "Deepa", ReferralCode: "DEEP2345", ReferrerCode: "CHND2345"},
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("demo-pass-123"), bcrypt.DefaultCost)
	if err != nil {
		stdLog.Fatalf("Failed to hash demo password: %v", err)
	}

	usersByCode := make(map[string]*models.User)
	for _, demo := range demoUsers {
		var existing models.User
		if err := models.DB.Where("email = ?", demo.Email).First(&existing).Error; err == nil {
			stdLog.Printf("User already exists: %s", demo.Email)
			usersByCode[existing.ReferralCode] = &existing
			continue
		}
		user := models.User{
			Email:        demo.Email,
			PasswordHash: string(hash),
			DisplayName:  demo.DisplayName,
			ReferralCode: demo.ReferralCode,
			Status:       constants.UserStatusActive,
		}
		if err := models.DB.Create(&user).Error; err != nil {
			stdLog.Printf("Failed to create user %s: %v", demo.Email, err)
			continue
		}
		stdLog.Printf("Created user: %s", demo.Email)
		usersByCode[user.ReferralCode] = &user
	}

	for _, demo := range demoUsers {
		if demo.ReferrerCode == "" {
			continue
		}
		referred, okReferred := usersByCode[demo.ReferralCode]
		referrer, okReferrer := usersByCode[demo.ReferrerCode]
		if !okReferred || !okReferrer {
			continue
		}
		var existing models.ReferralEdge
		if err := models.DB.Where("referred_id = ?", referred.ID).First(&existing).Error; err == nil {
			continue
		}
		edge := models.ReferralEdge{
			ReferrerID: referrer.ID,
			ReferredID: referred.ID,
		}
		if err := models.DB.Create(&edge).Error; err != nil {
			stdLog.Printf("Failed to create referral edge %s -> %s: %v", demo.ReferrerCode, demo.ReferralCode, err)
			continue
		}
		stdLog.Printf("Created referral edge: %s -> %s", demo.ReferrerCode, demo.ReferralCode)
	}

	stdLog.Printf("Seed completed")
}
