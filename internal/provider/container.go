package provider

import (
	"github.com/bidua-hosting/backend/internal/cache"
	"github.com/bidua-hosting/backend/internal/config"
	"github.com/bidua-hosting/backend/internal/logger"
	"github.com/bidua-hosting/backend/internal/models"
	"github.com/bidua-hosting/backend/internal/queue"
	"github.com/bidua-hosting/backend/internal/repository"
	"github.com/bidua-hosting/backend/internal/service"
)

// Container holds the wired repositories and services.
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	AdminRepo    repository.AdminRepository
	UserRepo     repository.UserRepository
	ReferralRepo repository.ReferralRepository
	EarningRepo  repository.EarningRepository
	PayoutRepo   repository.PayoutRepository
	SettingRepo  repository.SettingRepository

	// Services
	AuthService       *service.AuthService
	UserAuthService   *service.UserAuthService
	UserService       *service.UserService
	SettingService    *service.SettingService
	ReferralService   *service.ReferralService
	CommissionService *service.CommissionService
	LedgerService     *service.LedgerService
	PayoutService     *service.PayoutService
}

// NewContainer wires repositories and services from the global DB handle.
func NewContainer(cfg *config.Config) *Container {
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	c.initRepositories()
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.UserRepo = repository.NewUserRepository(db)
	c.ReferralRepo = repository.NewReferralRepository(db)
	c.EarningRepo = repository.NewEarningRepository(db)
	c.PayoutRepo = repository.NewPayoutRepository(db)
	c.SettingRepo = repository.NewSettingRepository(db)
}

func (c *Container) initServices() {
	c.SettingService = service.NewSettingService(c.SettingRepo)
	c.AuthService = service.NewAuthService(c.Config, c.AdminRepo)
	c.ReferralService = service.NewReferralService(c.ReferralRepo, c.UserRepo)
	c.UserAuthService = service.NewUserAuthService(c.Config, c.UserRepo, c.ReferralService)
	c.UserService = service.NewUserService(c.UserRepo)
	c.CommissionService = service.NewCommissionService(c.EarningRepo, c.ReferralService, c.UserRepo, c.SettingService, c.QueueClient, c.Config)
	c.LedgerService = service.NewLedgerService(c.EarningRepo, c.UserRepo, c.SettingService, c.Config)
	c.PayoutService = service.NewPayoutService(c.PayoutRepo, c.EarningRepo, c.UserRepo, c.SettingService, c.QueueClient, c.Config)
}
