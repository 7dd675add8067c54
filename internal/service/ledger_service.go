package service

import (
	"strings"
	"time"

	"github.com/bidua-hosting/backend/internal/config"
	"github.com/bidua-hosting/backend/internal/constants"
	"github.com/bidua-hosting/backend/internal/models"
	"github.com/bidua-hosting/backend/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerService owns the earning entry state machine and balance reads.
type LedgerService struct {
	repo           repository.EarningRepository
	userRepo       repository.UserRepository
	settingService *SettingService
	cfg            *config.Config
}

// NewLedgerService creates a ledger service.
func NewLedgerService(
	repo repository.EarningRepository,
	userRepo repository.UserRepository,
	settingService *SettingService,
	cfg *config.Config,
) *LedgerService {
	return &LedgerService{
		repo:           repo,
		userRepo:       userRepo,
		settingService: settingService,
		cfg:            cfg,
	}
}

// EarningStats is the per-user balance summary.
type EarningStats struct {
	PendingAmount    models.Money `json:"pending_amount"`
	AvailableAmount  models.Money `json:"available_amount"`
	PaidAmount       models.Money `json:"paid_amount"`
	TotalEarned      models.Money `json:"total_earned"`
	MinPayoutAmount  models.Money `json:"min_payout_amount"`
	CanRequestPayout bool         `json:"can_request_payout"`
}

// Approve moves a pending entry to approved ahead of its verification
// window.
func (s *LedgerService) Approve(entryID uint) (*models.EarningEntry, error) {
	return s.transition(entryID, constants.EarningStatusApproved, "")
}

// Reject invalidates an entry during fraud review.
func (s *LedgerService) Reject(entryID uint, reason string) (*models.EarningEntry, error) {
	return s.transition(entryID, constants.EarningStatusRejected, reason)
}

// Reverse claws back an entry after a refund or chargeback.
func (s *LedgerService) Reverse(entryID uint, reason string) (*models.EarningEntry, error) {
	return s.transition(entryID, constants.EarningStatusReversed, reason)
}

func (s *LedgerService) transition(entryID uint, nextStatus, reason string) (*models.EarningEntry, error) {
	if entryID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		entry, err := repoTx.GetByIDForUpdate(entryID)
		if err != nil {
			return err
		}
		if entry == nil {
			return ErrNotFound
		}
		if !ledgerTransitionAllowed(entry.Status, nextStatus) {
			return ErrInvalidStateTransition
		}
		// An earmarked entry belongs to an in-flight payout; it leaves
		// that flow via the payout decision, not here.
		if entry.PayoutRequestID != nil {
			return ErrInvalidStateTransition
		}

		now := time.Now()
		entry.Status = nextStatus
		entry.UpdatedAt = now
		switch nextStatus {
		case constants.EarningStatusApproved:
			entry.ApprovedAt = &now
			entry.ApprovableAt = nil
		case constants.EarningStatusRejected, constants.EarningStatusReversed:
			entry.Reason = strings.TrimSpace(reason)
			entry.ApprovableAt = nil
		}
		return repoTx.Update(entry)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(entryID)
}

func ledgerTransitionAllowed(current, next string) bool {
	switch next {
	case constants.EarningStatusApproved:
		return current == constants.EarningStatusPending
	case constants.EarningStatusRejected, constants.EarningStatusReversed:
		return current == constants.EarningStatusPending || current == constants.EarningStatusApproved
	case constants.EarningStatusPaid:
		return current == constants.EarningStatusApproved
	default:
		return false
	}
}

// ApproveDue flips every pending entry whose verification window has
// elapsed to approved.
func (s *LedgerService) ApproveDue(now time.Time) (int64, error) {
	if s.repo == nil {
		return 0, nil
	}
	return s.repo.ApproveDue(now, now)
}

// EarningListQuery carries the customer-facing ledger filters.
type EarningListQuery struct {
	Page        int
	PageSize    int
	Status      string
	Level       int
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// ListEarnings pages through a user's ledger entries, newest first.
func (s *LedgerService) ListEarnings(userID uint, query EarningListQuery) ([]models.EarningEntry, int64, error) {
	if userID == 0 || s.repo == nil {
		return []models.EarningEntry{}, 0, nil
	}
	return s.repo.List(repository.EarningListFilter{
		Page:        query.Page,
		PageSize:    query.PageSize,
		EarnerID:    userID,
		Status:      strings.TrimSpace(query.Status),
		Level:       query.Level,
		CreatedFrom: query.CreatedFrom,
		CreatedTo:   query.CreatedTo,
	})
}

// ListAdminEarnings pages through the ledger with admin filters.
func (s *LedgerService) ListAdminEarnings(filter repository.EarningListFilter) ([]models.EarningEntry, int64, error) {
	if s.repo == nil {
		return []models.EarningEntry{}, 0, nil
	}
	filter.OrderNo = strings.TrimSpace(filter.OrderNo)
	filter.Status = strings.TrimSpace(filter.Status)
	return s.repo.List(filter)
}

// GetEntry fetches a single ledger entry.
func (s *LedgerService) GetEntry(entryID uint) (*models.EarningEntry, error) {
	if entryID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	entry, err := s.repo.GetByID(entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrNotFound
	}
	return entry, nil
}

// GetStats folds the user's ledger into the balance summary. A negative
// sum means the ledger is corrupt and is surfaced, never clamped.
func (s *LedgerService) GetStats(userID uint) (EarningStats, error) {
	stats := EarningStats{
		PendingAmount:   models.NewMoneyFromDecimal(decimal.Zero),
		AvailableAmount: models.NewMoneyFromDecimal(decimal.Zero),
		PaidAmount:      models.NewMoneyFromDecimal(decimal.Zero),
		TotalEarned:     models.NewMoneyFromDecimal(decimal.Zero),
	}
	setting := s.effectiveSetting()
	minPayout := decimal.NewFromFloat(setting.MinPayoutAmount).Round(2)
	stats.MinPayoutAmount = models.NewMoneyFromDecimal(minPayout)
	if userID == 0 || s.repo == nil {
		return stats, nil
	}

	pending, err := s.repo.SumByStatus(userID, []string{constants.EarningStatusPending}, false)
	if err != nil {
		return stats, err
	}
	approved, err := s.repo.SumByStatus(userID, []string{constants.EarningStatusApproved}, false)
	if err != nil {
		return stats, err
	}
	available, err := s.repo.SumByStatus(userID, []string{constants.EarningStatusApproved}, true)
	if err != nil {
		return stats, err
	}
	paid, err := s.repo.SumByStatus(userID, []string{constants.EarningStatusPaid}, false)
	if err != nil {
		return stats, err
	}

	for _, sum := range []decimal.Decimal{pending, approved, available, paid} {
		if sum.LessThan(decimal.Zero) {
			return stats, ErrBalanceInvariant
		}
	}

	total := pending.Add(approved).Add(paid).Round(2)
	stats.PendingAmount = models.NewMoneyFromDecimal(pending)
	stats.AvailableAmount = models.NewMoneyFromDecimal(available)
	stats.PaidAmount = models.NewMoneyFromDecimal(paid)
	stats.TotalEarned = models.NewMoneyFromDecimal(total)
	stats.CanRequestPayout = available.GreaterThanOrEqual(minPayout)
	return stats, nil
}

func (s *LedgerService) effectiveSetting() ReferralSetting {
	fallback := ReferralDefaultSetting()
	if s.cfg != nil {
		fallback = ReferralSettingFromConfig(s.cfg.Referral)
	}
	if s.settingService == nil {
		return fallback
	}
	setting, err := s.settingService.GetReferralSetting(fallback)
	if err != nil {
		return fallback
	}
	return setting
}
