package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/bidua-hosting/backend/internal/config"
	"github.com/bidua-hosting/backend/internal/constants"
	"github.com/bidua-hosting/backend/internal/logger"
	"github.com/bidua-hosting/backend/internal/models"
	"github.com/bidua-hosting/backend/internal/queue"
	"github.com/bidua-hosting/backend/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const payoutSplitOrderNoPrefix = "sp"

// PayoutService owns the payout request lifecycle. Requesting a payout
// earmarks approved ledger entries; the admin decision either pays them
// out or releases them.
type PayoutService struct {
	repo           repository.PayoutRepository
	earningRepo    repository.EarningRepository
	userRepo       repository.UserRepository
	settingService *SettingService
	queueClient    *queue.Client
	cfg            *config.Config
}

// NewPayoutService creates a payout service.
func NewPayoutService(
	repo repository.PayoutRepository,
	earningRepo repository.EarningRepository,
	userRepo repository.UserRepository,
	settingService *SettingService,
	queueClient *queue.Client,
	cfg *config.Config,
) *PayoutService {
	return &PayoutService{
		repo:           repo,
		earningRepo:    earningRepo,
		userRepo:       userRepo,
		settingService: settingService,
		queueClient:    queueClient,
		cfg:            cfg,
	}
}

// PayoutRequestInput is the user-submitted payout application.
type PayoutRequestInput struct {
	Amount  decimal.Decimal
	Method  string
	Details map[string]string
}

// requiredPayoutDetails lists the mandatory detail fields per method.
var requiredPayoutDetails = map[string][]string{
	constants.PayoutMethodBankTransfer: {"account_number", "ifsc", "account_holder"},
	constants.PayoutMethodUPI:          {"vpa"},
	constants.PayoutMethodPaypal:       {"email"},
}

// RequestPayout earmarks approved earnings and opens a payout request.
// The gross amount is consumed oldest entry first; a final entry larger
// than the remainder is split so nothing beyond the request is frozen.
func (s *PayoutService) RequestPayout(userID uint, input PayoutRequestInput) (*models.PayoutRequest, error) {
	if userID == 0 || s.repo == nil || s.earningRepo == nil {
		return nil, ErrNotFound
	}
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	if strings.ToLower(user.Status) != constants.UserStatusActive {
		return nil, ErrUserSuspended
	}

	setting, err := s.referralSetting()
	if err != nil {
		return nil, err
	}

	gross := input.Amount.Round(2)
	if gross.LessThanOrEqual(decimal.Zero) {
		return nil, ErrPayoutBelowMinimum
	}
	minPayout := decimal.NewFromFloat(setting.MinPayoutAmount).Round(2)
	if gross.LessThan(minPayout) {
		return nil, ErrPayoutBelowMinimum
	}

	method := strings.ToLower(strings.TrimSpace(input.Method))
	required, ok := requiredPayoutDetails[method]
	if !ok {
		return nil, ErrPayoutMethodInvalid
	}
	details := make(models.JSON, len(input.Details))
	for key, value := range input.Details {
		details[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	for _, field := range required {
		value, _ := details[field].(string)
		if strings.TrimSpace(value) == "" {
			return nil, ErrPayoutDetailsIncomplete
		}
	}

	// Deductions come out of the gross, rounded to whole currency units.
	tds := gross.Mul(decimal.NewFromFloat(setting.TDSRatePercent)).Div(decimal.NewFromInt(100)).Round(0)
	serviceTax := gross.Mul(decimal.NewFromFloat(setting.ServiceTaxRatePercent)).Div(decimal.NewFromInt(100)).Round(0)
	net := gross.Sub(tds).Sub(serviceTax).Round(2)
	if net.LessThanOrEqual(decimal.Zero) {
		return nil, ErrReferralConfigInvalid
	}

	// Entries whose verification window has elapsed become spendable now.
	if _, err := s.earningRepo.ApproveDue(time.Now(), time.Now()); err != nil {
		return nil, err
	}

	var createdID uint
	err = s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		earningTx := s.earningRepo.WithTx(tx)

		entries, err := earningTx.ListApprovedUnboundForUpdate(userID)
		if err != nil {
			return err
		}

		remaining := gross
		selectedIDs := make([]uint, 0, len(entries))
		now := time.Now()
		for _, entry := range entries {
			if remaining.LessThanOrEqual(decimal.Zero) {
				break
			}
			rowAmount := entry.CommissionAmount.Decimal.Round(2)
			if rowAmount.LessThanOrEqual(decimal.Zero) {
				continue
			}
			if rowAmount.LessThanOrEqual(remaining) {
				selectedIDs = append(selectedIDs, entry.ID)
				remaining = remaining.Sub(rowAmount).Round(2)
				continue
			}

			// Split the final entry: the bound part carries the original
			// order reference, the remainder stays available under a
			// synthetic one so the uniqueness of
			// (order, earner, level) holds.
			boundAmount := remaining.Round(2)
			remainAmount := rowAmount.Sub(boundAmount).Round(2)
			entry.CommissionAmount = models.NewMoneyFromDecimal(boundAmount)
			entry.UpdatedAt = now
			if err := earningTx.Update(&entry); err != nil {
				return err
			}

			remainEntry := entry
			remainEntry.ID = 0
			remainEntry.OrderNo = buildSplitOrderNo(entry.OrderNo, entry.ID)
			remainEntry.CommissionAmount = models.NewMoneyFromDecimal(remainAmount)
			remainEntry.PayoutRequestID = nil
			remainEntry.Status = constants.EarningStatusApproved
			remainEntry.Reason = ""
			remainEntry.CreatedAt = now
			remainEntry.UpdatedAt = now
			if err := earningTx.Create(&remainEntry); err != nil {
				return err
			}

			selectedIDs = append(selectedIDs, entry.ID)
			remaining = decimal.Zero
			break
		}
		if remaining.GreaterThan(decimal.Zero) {
			return ErrInsufficientBalance
		}

		payoutNo, err := generatePayoutNo()
		if err != nil {
			return err
		}
		payout := &models.PayoutRequest{
			PayoutNo:         payoutNo,
			UserID:           userID,
			GrossAmount:      models.NewMoneyFromDecimal(gross),
			TDSAmount:        models.NewMoneyFromDecimal(tds),
			ServiceTaxAmount: models.NewMoneyFromDecimal(serviceTax),
			NetAmount:        models.NewMoneyFromDecimal(net),
			Status:           constants.PayoutStatusRequested,
			PaymentMethod:    method,
			PaymentDetails:   details,
			RequestedAt:      now,
			UpdatedAt:        now,
		}
		if err := repoTx.Create(payout); err != nil {
			return err
		}
		if err := earningTx.BatchUpdate(selectedIDs, map[string]interface{}{
			"payout_request_id": payout.ID,
			"updated_at":        now,
		}); err != nil {
			return err
		}
		createdID = payout.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(createdID, constants.PayoutStatusRequested)
	return s.repo.GetByID(createdID)
}

// MarkUnderReview moves a fresh request into manual review.
func (s *PayoutService) MarkUnderReview(adminID, payoutID uint) (*models.PayoutRequest, error) {
	return s.decide(adminID, payoutID, constants.PayoutStatusUnderReview, "", "")
}

// Approve accepts a payout request for disbursement.
func (s *PayoutService) Approve(adminID, payoutID uint) (*models.PayoutRequest, error) {
	return s.decide(adminID, payoutID, constants.PayoutStatusApproved, "", "")
}

// BeginProcessing marks the disbursement as handed to the payment desk.
func (s *PayoutService) BeginProcessing(adminID, payoutID uint, reference string) (*models.PayoutRequest, error) {
	return s.decide(adminID, payoutID, constants.PayoutStatusProcessing, reference, "")
}

// Complete finishes the payout and marks the earmarked entries paid.
func (s *PayoutService) Complete(adminID, payoutID uint, reference string) (*models.PayoutRequest, error) {
	return s.decide(adminID, payoutID, constants.PayoutStatusCompleted, reference, "")
}

// Reject refuses the payout and releases the earmarked entries.
func (s *PayoutService) Reject(adminID, payoutID uint, reason string) (*models.PayoutRequest, error) {
	return s.decide(adminID, payoutID, constants.PayoutStatusRejected, "", reason)
}

func (s *PayoutService) decide(adminID, payoutID uint, nextStatus, reference, reason string) (*models.PayoutRequest, error) {
	if payoutID == 0 || s.repo == nil || s.earningRepo == nil {
		return nil, ErrNotFound
	}

	err := s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		earningTx := s.earningRepo.WithTx(tx)

		payout, err := repoTx.GetByIDForUpdate(payoutID)
		if err != nil {
			return err
		}
		if payout == nil {
			return ErrNotFound
		}
		if !payoutTransitionAllowed(payout.Status, nextStatus) {
			return ErrInvalidStateTransition
		}

		now := time.Now()
		payout.Status = nextStatus
		payout.UpdatedAt = now
		if adminID != 0 {
			payout.ProcessedBy = &adminID
		}
		if trimmed := strings.TrimSpace(reference); trimmed != "" {
			payout.Reference = trimmed
		}

		switch nextStatus {
		case constants.PayoutStatusApproved:
			payout.ApprovedAt = &now
		case constants.PayoutStatusCompleted:
			payout.CompletedAt = &now
			entries, err := earningTx.ListByPayoutForUpdate(payout.ID)
			if err != nil {
				return err
			}
			ids := make([]uint, 0, len(entries))
			for _, entry := range entries {
				ids = append(ids, entry.ID)
			}
			if err := earningTx.BatchUpdate(ids, map[string]interface{}{
				"status":     constants.EarningStatusPaid,
				"paid_at":    now,
				"updated_at": now,
			}); err != nil {
				return err
			}
		case constants.PayoutStatusRejected:
			payout.RejectReason = strings.TrimSpace(reason)
			entries, err := earningTx.ListByPayoutForUpdate(payout.ID)
			if err != nil {
				return err
			}
			ids := make([]uint, 0, len(entries))
			for _, entry := range entries {
				ids = append(ids, entry.ID)
			}
			if err := earningTx.BatchUpdate(ids, map[string]interface{}{
				"payout_request_id": nil,
				"updated_at":        now,
			}); err != nil {
				return err
			}
		}
		return repoTx.Update(payout)
	})
	if err != nil {
		return nil, err
	}

	s.notify(payoutID, nextStatus)
	return s.repo.GetByID(payoutID)
}

func payoutTransitionAllowed(current, next string) bool {
	switch next {
	case constants.PayoutStatusUnderReview:
		return current == constants.PayoutStatusRequested
	case constants.PayoutStatusApproved:
		return current == constants.PayoutStatusRequested || current == constants.PayoutStatusUnderReview
	case constants.PayoutStatusProcessing:
		return current == constants.PayoutStatusApproved
	case constants.PayoutStatusCompleted:
		return current == constants.PayoutStatusApproved || current == constants.PayoutStatusProcessing
	case constants.PayoutStatusRejected:
		switch current {
		case constants.PayoutStatusRequested, constants.PayoutStatusUnderReview,
			constants.PayoutStatusApproved, constants.PayoutStatusProcessing:
			return true
		}
		return false
	default:
		return false
	}
}

// GetUserPayout fetches one payout request, scoped to its owner.
func (s *PayoutService) GetUserPayout(userID, payoutID uint) (*models.PayoutRequest, error) {
	if userID == 0 || payoutID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	payout, err := s.repo.GetByID(payoutID)
	if err != nil {
		return nil, err
	}
	if payout == nil || payout.UserID != userID {
		return nil, ErrNotFound
	}
	return payout, nil
}

// ListUserPayouts pages through a user's payout requests.
func (s *PayoutService) ListUserPayouts(userID uint, page, pageSize int, status string) ([]models.PayoutRequest, int64, error) {
	if userID == 0 || s.repo == nil {
		return []models.PayoutRequest{}, 0, nil
	}
	return s.repo.List(repository.PayoutListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   userID,
		Status:   strings.TrimSpace(status),
	})
}

// ListAdminPayouts pages through payout requests with admin filters.
func (s *PayoutService) ListAdminPayouts(filter repository.PayoutListFilter) ([]models.PayoutRequest, int64, error) {
	if s.repo == nil {
		return []models.PayoutRequest{}, 0, nil
	}
	filter.Status = strings.TrimSpace(filter.Status)
	filter.PayoutNo = strings.TrimSpace(filter.PayoutNo)
	return s.repo.List(filter)
}

// GetPayout fetches one payout request for the admin panel.
func (s *PayoutService) GetPayout(payoutID uint) (*models.PayoutRequest, error) {
	if payoutID == 0 || s.repo == nil {
		return nil, ErrNotFound
	}
	payout, err := s.repo.GetByID(payoutID)
	if err != nil {
		return nil, err
	}
	if payout == nil {
		return nil, ErrNotFound
	}
	return payout, nil
}

func (s *PayoutService) notify(payoutID uint, status string) {
	if payoutID == 0 || !s.queueClient.Enabled() {
		return
	}
	if err := s.queueClient.EnqueuePayoutNotify(queue.PayoutNotifyPayload{
		PayoutID: payoutID,
		Status:   status,
	}); err != nil {
		logger.Warnw("payout_notify_enqueue_failed", "payout_id", payoutID, "status", status, "error", err)
	}
}

func (s *PayoutService) referralSetting() (ReferralSetting, error) {
	fallback := ReferralDefaultSetting()
	if s.cfg != nil {
		fallback = ReferralSettingFromConfig(s.cfg.Referral)
	}
	if s.settingService == nil {
		return fallback, nil
	}
	return s.settingService.GetReferralSetting(fallback)
}

func generatePayoutNo() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	compact := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
	return "PO" + time.Now().Format("20060102150405") + compact[:10], nil
}

func buildSplitOrderNo(orderNo string, sourceID uint) string {
	suffix := payoutSplitOrderNoPrefix + strconv.FormatUint(uint64(sourceID), 36) +
		strconv.FormatInt(time.Now().UnixNano()%1000000, 36)
	base := orderNo
	if len(base)+len(suffix)+1 > 64 {
		base = base[:64-len(suffix)-1]
	}
	return base + "-" + suffix
}
