package service

import (
	"strings"
	"time"

	"github.com/bidua-hosting/backend/internal/config"
	"github.com/bidua-hosting/backend/internal/constants"
	"github.com/bidua-hosting/backend/internal/logger"
	"github.com/bidua-hosting/backend/internal/models"
	"github.com/bidua-hosting/backend/internal/queue"
	"github.com/bidua-hosting/backend/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommissionService turns settled orders into ledger entries for the
// purchaser's upline.
type CommissionService struct {
	repo            repository.EarningRepository
	referralService *ReferralService
	userRepo        repository.UserRepository
	settingService  *SettingService
	queueClient     *queue.Client
	cfg             *config.Config
}

// NewCommissionService creates a commission service.
func NewCommissionService(
	repo repository.EarningRepository,
	referralService *ReferralService,
	userRepo repository.UserRepository,
	settingService *SettingService,
	queueClient *queue.Client,
	cfg *config.Config,
) *CommissionService {
	return &CommissionService{
		repo:            repo,
		referralService: referralService,
		userRepo:        userRepo,
		settingService:  settingService,
		queueClient:     queueClient,
		cfg:             cfg,
	}
}

// OrderSettledEvent is the inbound billing notification. Billing delivers
// it at least once, only after the order has settled.
type OrderSettledEvent struct {
	OrderNo      string
	PurchaserID  uint
	Amount       decimal.Decimal
	Currency     string
	BillingType  string
	RenewalCycle int
	SettledAt    time.Time
}

// HandleOrderSettled records the per-level commissions for one settled
// order. Redelivery of an already-processed order is a no-op.
func (s *CommissionService) HandleOrderSettled(event OrderSettledEvent) error {
	if s.repo == nil || s.referralService == nil {
		return nil
	}
	orderNo := strings.TrimSpace(event.OrderNo)
	if orderNo == "" || event.PurchaserID == 0 {
		return nil
	}
	amount := event.Amount.Round(2)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	purchaser, err := s.userRepo.GetByID(event.PurchaserID)
	if err != nil {
		return err
	}
	if purchaser == nil {
		// Billing knows a user we don't; the delivery is acknowledged so
		// billing stops retrying, but the sync gap is worth an alert.
		logger.Warnw("order_settled_unknown_purchaser",
			"order_no", orderNo, "purchaser_id", event.PurchaserID)
		return nil
	}

	chain, err := s.referralService.ResolveChain(event.PurchaserID)
	if err != nil {
		return err
	}
	if len(chain) == 0 {
		return nil
	}

	setting, err := s.referralSetting()
	if err != nil {
		return err
	}

	settledAt := event.SettledAt
	if settledAt.IsZero() {
		settledAt = time.Now()
	}
	billingType := strings.ToLower(strings.TrimSpace(event.BillingType))
	if billingType == "" {
		billingType = constants.BillingTypeInitial
	}

	status := constants.EarningStatusPending
	var approvableAt *time.Time
	var approvedAt *time.Time
	if setting.VerificationDays <= 0 {
		status = constants.EarningStatusApproved
		approvedAt = &settledAt
	} else {
		due := settledAt.Add(time.Duration(setting.VerificationDays) * 24 * time.Hour)
		approvableAt = &due
	}

	entries := make([]*models.EarningEntry, 0, len(chain))
	for _, ancestor := range chain {
		if ancestor.User == nil || ancestor.User.ID == 0 {
			continue
		}
		if ancestor.User.ID == event.PurchaserID {
			continue
		}
		if strings.ToLower(ancestor.User.Status) != constants.UserStatusActive {
			continue
		}
		rate := setting.RateForLevel(ancestor.Level)
		if rate.LessThanOrEqual(decimal.Zero) {
			continue
		}
		// Whole currency units, half rounded up.
		commission := amount.Mul(rate).Div(decimal.NewFromInt(100)).Round(0)
		if commission.LessThanOrEqual(decimal.Zero) {
			continue
		}

		existing, err := s.repo.GetByOrderEarnerLevel(orderNo, ancestor.User.ID, ancestor.Level)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}

		entries = append(entries, &models.EarningEntry{
			EarnerUserID:     ancestor.User.ID,
			ReferredUserID:   event.PurchaserID,
			OrderNo:          orderNo,
			ReferralLevel:    ancestor.Level,
			BillingType:      billingType,
			RenewalCycle:     event.RenewalCycle,
			OrderAmount:      models.NewMoneyFromDecimal(amount),
			CommissionRate:   models.NewMoneyFromDecimal(rate),
			CommissionAmount: models.NewMoneyFromDecimal(commission),
			Status:           status,
			ApprovableAt:     approvableAt,
			ApprovedAt:       approvedAt,
		})
	}
	if len(entries) == 0 {
		return nil
	}

	err = s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		for _, entry := range entries {
			if err := repoTx.Create(entry); err != nil {
				// A concurrent delivery of the same order wins the race;
				// the unique index makes the loser a no-op.
				if isUniqueViolation(err) {
					continue
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if approvableAt != nil && s.queueClient.Enabled() {
		delay := time.Until(*approvableAt)
		if err := s.queueClient.EnqueueEarningApproveDue(queue.EarningApproveDuePayload{
			OrderNo: orderNo,
		}, delay); err != nil {
			logger.Warnw("earning_approve_due_enqueue_failed", "order_no", orderNo, "error", err)
		}
	}
	return nil
}

func (s *CommissionService) referralSetting() (ReferralSetting, error) {
	fallback := ReferralDefaultSetting()
	if s.cfg != nil {
		fallback = ReferralSettingFromConfig(s.cfg.Referral)
	}
	if s.settingService == nil {
		return fallback, nil
	}
	return s.settingService.GetReferralSetting(fallback)
}
