package router

import (
	"fmt"
	"strings"

	"github.com/bidua-hosting/backend/internal/cache"
	"github.com/bidua-hosting/backend/internal/config"
	adminhandlers "github.com/bidua-hosting/backend/internal/http/handlers/admin"
	publichandlers "github.com/bidua-hosting/backend/internal/http/handlers/public"
	"github.com/bidua-hosting/backend/internal/logger"
	"github.com/bidua-hosting/backend/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter builds the gin engine and registers all routes.
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)

	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "bh"
	}
	redisClient := cache.Client()
	loginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		BlockSeconds:  cfg.Security.LoginRateLimit.BlockSeconds,
		Message:       "too many login attempts",
	}
	adminLoginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:admin_login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		BlockSeconds:  cfg.Security.LoginRateLimit.BlockSeconds,
		Message:       "too many login attempts",
	}

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		auth := apiV1.Group("/auth")
		{
			auth.POST("/register", publicHandler.UserRegister)
			auth.POST("/login", RateLimitMiddleware(redisClient, loginRule, KeyByIPAndJSONField("email")), publicHandler.UserLogin)
		}

		// Billing system callback, authenticated by shared token.
		apiV1.POST("/billing/events/order-settled", publicHandler.OrderSettledWebhook)

		user := apiV1.Group("")
		user.Use(UserJWTAuthMiddleware(cfg.UserJWT.SecretKey, c.UserRepo))
		{
			user.GET("/me", publicHandler.GetUserProfile)
			user.GET("/referral/overview", publicHandler.GetReferralOverview)
			user.GET("/referral/referrals", publicHandler.ListReferrals)
			user.POST("/referral/apply-code", publicHandler.ApplyReferralCode)
			user.GET("/earnings", publicHandler.ListEarnings)
			user.GET("/earnings/stats", publicHandler.GetEarningStats)
			user.POST("/payouts", publicHandler.RequestPayout)
			user.GET("/payouts", publicHandler.ListPayouts)
			user.GET("/payouts/:id", publicHandler.GetPayout)
		}

		admin := apiV1.Group("/admin")
		{
			admin.POST("/login", RateLimitMiddleware(redisClient, adminLoginRule, KeyByIP), adminHandler.AdminLogin)

			authorized := admin.Use(JWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo))
			{
				authorized.GET("/profile", adminHandler.GetAdminProfile)
				authorized.PUT("/password", adminHandler.UpdateAdminPassword)

				authorized.GET("/users", adminHandler.GetAdminUsers)
				authorized.PUT("/users/:id/status", adminHandler.UpdateUserStatus)

				authorized.GET("/earnings", adminHandler.ListAdminEarnings)
				authorized.GET("/earnings/:id", adminHandler.GetAdminEarning)
				authorized.POST("/earnings/:id/approve", adminHandler.ApproveEarning)
				authorized.POST("/earnings/:id/reject", adminHandler.RejectEarning)
				authorized.POST("/earnings/:id/reverse", adminHandler.ReverseEarning)

				authorized.GET("/payouts", adminHandler.ListAdminPayouts)
				authorized.GET("/payouts/:id", adminHandler.GetAdminPayout)
				authorized.POST("/payouts/:id/under-review", adminHandler.MarkPayoutUnderReview)
				authorized.POST("/payouts/:id/approve", adminHandler.ApprovePayout)
				authorized.POST("/payouts/:id/processing", adminHandler.BeginPayoutProcessing)
				authorized.POST("/payouts/:id/complete", adminHandler.CompletePayout)
				authorized.POST("/payouts/:id/reject", adminHandler.RejectPayout)

				authorized.GET("/settings/referral", adminHandler.GetReferralSettings)
				authorized.PUT("/settings/referral", adminHandler.UpdateReferralSettings)
			}
		}
	}

	return r
}
