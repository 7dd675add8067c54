package service

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bidua-hosting/backend/internal/constants"
	"github.com/bidua-hosting/backend/internal/models"
	"github.com/bidua-hosting/backend/internal/repository"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var payoutTestBankDetails = map[string]string{
	"account_number": "000111222333",
	"ifsc":           "HDFC0001234",
	"account_holder": "Asha Rao",
}

func TestRequestPayoutEarmarksOldestFirst(t *testing.T) {
	svc, db := setupPayoutServiceTest(t)

	user := createPayoutTestUser(t, db, "fifo@example.com", "FIFO2345", constants.UserStatusActive)
	oldest := createPayoutTestEarning(t, db, user.ID, "ORD-3001", 300, -3*time.Hour)
	middle := createPayoutTestEarning(t, db, user.ID, "ORD-3002", 400, -2*time.Hour)
	newest := createPayoutTestEarning(t, db, user.ID, "ORD-3003", 500, -time.Hour)

	payout, err := svc.RequestPayout(user.ID, PayoutRequestInput{
		Amount:  decimal.NewFromInt(700),
		Method:  constants.PayoutMethodBankTransfer,
		Details: payoutTestBankDetails,
	})
	if err != nil {
		t.Fatalf("request payout failed: %v", err)
	}
	if payout.Status != constants.PayoutStatusRequested {
		t.Fatalf("expected requested status, got %s", payout.Status)
	}
	if got := payout.GrossAmount.String(); got != "700.00" {
		t.Fatalf("expected gross 700.00, got %s", got)
	}
	// 10% TDS and 18% service tax off the gross
	if got := payout.TDSAmount.String(); got != "70.00" {
		t.Fatalf("expected TDS 70.00, got %s", got)
	}
	if got := payout.ServiceTaxAmount.String(); got != "126.00" {
		t.Fatalf("expected service tax 126.00, got %s", got)
	}
	if got := payout.NetAmount.String(); got != "504.00" {
		t.Fatalf("expected net 504.00, got %s", got)
	}

	for _, id := range []uint{oldest.ID, middle.ID} {
		entry := reloadPayoutTestEarning(t, db, id)
		if entry.PayoutRequestID == nil || *entry.PayoutRequestID != payout.ID {
			t.Fatalf("entry %d: expected earmark for payout %d, got %+v", id, payout.ID, entry.PayoutRequestID)
		}
	}
	if entry := reloadPayoutTestEarning(t, db, newest.ID); entry.PayoutRequestID != nil {
		t.Fatalf("newest entry should stay unbound, got payout %d", *entry.PayoutRequestID)
	}
}

func TestRequestPayoutSplitsFinalEntry(t *testing.T) {
	svc, db := setupPayoutServiceTest(t)

	user := createPayoutTestUser(t, db, "split@example.com", "SPLT2345", constants.UserStatusActive)
	createPayoutTestEarning(t, db, user.ID, "ORD-3004", 300, -2*time.Hour)
	splitSource := createPayoutTestEarning(t, db, user.ID, "ORD-3005", 400, -time.Hour)

	payout, err := svc.RequestPayout(user.ID, PayoutRequestInput{
		Amount:  decimal.NewFromInt(500),
		Method:  constants.PayoutMethodUPI,
		Details: map[string]string{"vpa": "split@upi"},
	})
	if err != nil {
		t.Fatalf("request payout failed: %v", err)
	}

	bound := reloadPayoutTestEarning(t, db, splitSource.ID)
	if got := bound.CommissionAmount.String(); got != "200.00" {
		t.Fatalf("expected bound part shrunk to 200.00, got %s", got)
	}
	if bound.PayoutRequestID == nil || *bound.PayoutRequestID != payout.ID {
		t.Fatalf("expected split source earmarked, got %+v", bound.PayoutRequestID)
	}

	var remainder models.EarningEntry
	err = db.Where("earner_user_id = ? AND payout_request_id IS NULL AND status = ?",
		user.ID, constants.EarningStatusApproved).First(&remainder).Error
	if err != nil {
		t.Fatalf("load remainder failed: %v", err)
	}
	if got := remainder.CommissionAmount.String(); got != "200.00" {
		t.Fatalf("expected remainder 200.00, got %s", got)
	}
	if remainder.OrderNo == splitSource.OrderNo || !strings.HasPrefix(remainder.OrderNo, splitSource.OrderNo+"-") {
		t.Fatalf("expected derived order reference, got %s", remainder.OrderNo)
	}

	var boundTotal decimal.Decimal
	for _, entry := range listPayoutTestEarnings(t, db, payout.ID) {
		boundTotal = boundTotal.Add(entry.CommissionAmount.Decimal)
	}
	if got := boundTotal.StringFixed(2); got != "500.00" {
		t.Fatalf("expected earmarked total 500.00, got %s", got)
	}
}

func TestRequestPayoutSecondRequestBlockedByEarmark(t *testing.T) {
	svc, db := setupPayoutServiceTest(t)

	user := createPayoutTestUser(t, db, "double@example.com", "DBLE2345", constants.UserStatusActive)
	createPayoutTestEarning(t, db, user.ID, "ORD-3012", 1000, -2*time.Hour)

	first, err := svc.RequestPayout(user.ID, PayoutRequestInput{
		Amount:  decimal.NewFromInt(1000),
		Method:  constants.PayoutMethodUPI,
		Details: map[string]string{"vpa": "double@upi"},
	})
	if err != nil {
		t.Fatalf("first request failed: %v", err)
	}

	// the full balance is earmarked for the first request
	_, err = svc.RequestPayout(user.ID, PayoutRequestInput{
		Amount:  decimal.NewFromInt(500),
		Method:  constants.PayoutMethodUPI,
		Details: map[string]string{"vpa": "double@upi"},
	})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance while earmarked, got %v", err)
	}

	if _, err := svc.Reject(42, first.ID, "bank details mismatch"); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	second, err := svc.RequestPayout(user.ID, PayoutRequestInput{
		Amount:  decimal.NewFromInt(500),
		Method:  constants.PayoutMethodUPI,
		Details: map[string]string{"vpa": "double@upi"},
	})
	if err != nil {
		t.Fatalf("request after release failed: %v", err)
	}
	if second.Status != constants.PayoutStatusRequested {
		t.Fatalf("expected requested status, got %s", second.Status)
	}
}

func TestRequestPayoutBelowMinimum(t *testing.T) {
	svc, db := setupPayoutServiceTest(t)

	user := createPayoutTestUser(t, db, "small@example.com", "SMLL2345", constants.UserStatusActive)
	createPayoutTestEarning(t, db, user.ID, "ORD-3006", 600, -time.Hour)

	_, err := svc.RequestPayout(user.ID, PayoutRequestInput{
		Amount:  decimal.NewFromInt(100),
		Method:  constants.PayoutMethodUPI,
		Details: map[string]string{"vpa": "small@upi"},
	})
	if !errors.Is(err, ErrPayoutBelowMinimum) {
		t.Fatalf("expected ErrPayoutBelowMinimum, got %v", err)
	}
}

func TestRequestPayoutInsufficientBalanceRollsBack(t *testing.T) {
	svc, db := setupPayoutServiceTest(t)

	user := createPayoutTestUser(t, db, "poor@example.com", "POOR2345", constants.UserStatusActive)
	entry := createPayoutTestEarning(t, db, user.ID, "ORD-3007", 550, -time.Hour)

	_, err := svc.RequestPayout(user.ID, PayoutRequestInput{
		Amount:  decimal.NewFromInt(800),
		Method:  constants.PayoutMethodUPI,
		Details: map[string]string{"vpa": "poor@upi"},
	})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	var payoutCount int64
	if err := db.Model(&models.PayoutRequest{}).Count(&payoutCount).Error; err != nil {
		t.Fatalf("count payouts failed: %v", err)
	}
	if payoutCount != 0 {
		t.Fatalf("expected no payout row after rollback, got %d", payoutCount)
	}
	if reloaded := reloadPayoutTestEarning(t, db, entry.ID); reloaded.PayoutRequestID != nil {
		t.Fatalf("expected entry released after rollback")
	}
}

func TestRequestPayoutValidatesMethodAndDetails(t *testing.T) {
	svc, db := setupPayoutServiceTest(t)

	user := createPayoutTestUser(t, db, "details@example.com", "DETL2345", constants.UserStatusActive)
	createPayoutTestEarning(t, db, user.ID, "ORD-3008", 600, -time.Hour)

	_, err := svc.RequestPayout(user.ID, PayoutRequestInput{
		Amount:  decimal.NewFromInt(500),
		Method:  "cheque",
		Details: map[string]string{},
	})
	if !errors.Is(err, ErrPayoutMethodInvalid) {
		t.Fatalf("expected ErrPayoutMethodInvalid, got %v", err)
	}

	_, err = svc.RequestPayout(user.ID, PayoutRequestInput{
		Amount:  decimal.NewFromInt(500),
		Method:  constants.PayoutMethodUPI,
		Details: map[string]string{"vpa": "   "},
	})
	if !errors.Is(err, ErrPayoutDetailsIncomplete) {
		t.Fatalf("expected ErrPayoutDetailsIncomplete, got %v", err)
	}

	_, err = svc.RequestPayout(user.ID, PayoutRequestInput{
		Amount: decimal.NewFromInt(500),
		Method: constants.PayoutMethodBankTransfer,
		Details: map[string]string{
			"account_number": "000111222333",
			"ifsc":           "HDFC0001234",
		},
	})
	if !errors.Is(err, ErrPayoutDetailsIncomplete) {
		t.Fatalf("expected missing account holder to be rejected, got %v", err)
	}
}

func TestRequestPayoutRefusesSuspendedUser(t *testing.T) {
	svc, db := setupPayoutServiceTest(t)

	user := createPayoutTestUser(t, db, "frozen@example.com", "FRZN2345", constants.UserStatusSuspended)
	createPayoutTestEarning(t, db, user.ID, "ORD-3009", 600, -time.Hour)

	_, err := svc.RequestPayout(user.ID, PayoutRequestInput{
		Amount:  decimal.NewFromInt(500),
		Method:  constants.PayoutMethodUPI,
		Details: map[string]string{"vpa": "frozen@upi"},
	})
	if !errors.Is(err, ErrUserSuspended) {
		t.Fatalf("expected ErrUserSuspended, got %v", err)
	}
}

func TestRequestPayoutCountsDuePendingEntries(t *testing.T) {
	svc, db := setupPayoutServiceTest(t)

	user := createPayoutTestUser(t, db, "due@example.com", "PDUE2345", constants.UserStatusActive)
	past := time.Now().Add(-time.Hour)
	entry := createPayoutTestEarning(t, db, user.ID, "ORD-3010", 600, -2*time.Hour)
	if err := db.Model(&models.EarningEntry{}).Where("id = ?", entry.ID).Updates(map[string]interface{}{
		"status":        constants.EarningStatusPending,
		"approvable_at": past,
		"approved_at":   nil,
	}).Error; err != nil {
		t.Fatalf("reset entry failed: %v", err)
	}

	payout, err := svc.RequestPayout(user.ID, PayoutRequestInput{
		Amount:  decimal.NewFromInt(600),
		Method:  constants.PayoutMethodUPI,
		Details: map[string]string{"vpa": "due@upi"},
	})
	if err != nil {
		t.Fatalf("expected entry past its window to be spendable: %v", err)
	}
	if got := payout.GrossAmount.String(); got != "600.00" {
		t.Fatalf("expected gross 600.00, got %s", got)
	}
}

func TestRejectReleasesEarmarkedEntries(t *testing.T) {
	svc, db := setupPayoutServiceTest(t)

	user := createPayoutTestUser(t, db, "release@example.com", "RLSE2345", constants.UserStatusActive)
	entry := createPayoutTestEarning(t, db, user.ID, "ORD-3011", 600, -time.Hour)

	payout, err := svc.RequestPayout(user.ID, PayoutRequestInput{
		Amount:  decimal.NewFromInt(600),
		Method:  constants.PayoutMethodUPI,
		Details: map[string]string{"vpa": "release@upi"},
	})
	if err != nil {
		t.Fatalf("request payout failed: %v", err)
	}

	rejected, err := svc.Reject(42, payout.ID, "details did not verify")
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.Status != constants.PayoutStatusRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}
	if rejected.RejectReason != "details did not verify" {
		t.Fatalf("expected reject reason recorded, got %q", rejected.RejectReason)
	}
	if rejected.ProcessedBy == nil || *rejected.ProcessedBy != 42 {
		t.Fatalf("expected processor recorded, got %+v", rejected.ProcessedBy)
	}

	reloaded := reloadPayoutTestEarning(t, db, entry.ID)
	if reloaded.PayoutRequestID != nil {
		t.Fatalf("expected earmark released")
	}
	if reloaded.Status != constants.EarningStatusApproved {
		t.Fatalf("expected entry back to approved, got %s", reloaded.Status)
	}
}

func TestCompletePayoutMarksEntriesPaid(t *testing.T) {
	svc, db := setupPayoutServiceTest(t)

	user := createPayoutTestUser(t, db, "complete@example.com", "CMPL2345", constants.UserStatusActive)
	entry := createPayoutTestEarning(t, db, user.ID, "ORD-3012", 700, -time.Hour)

	payout, err := svc.RequestPayout(user.ID, PayoutRequestInput{
		Amount:  decimal.NewFromInt(700),
		Method:  constants.PayoutMethodPaypal,
		Details: map[string]string{"email": "complete@example.com"},
	})
	if err != nil {
		t.Fatalf("request payout failed: %v", err)
	}

	if _, err := svc.MarkUnderReview(7, payout.ID); err != nil {
		t.Fatalf("mark under review failed: %v", err)
	}
	if _, err := svc.Approve(7, payout.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if _, err := svc.BeginProcessing(7, payout.ID, "UTR-0001"); err != nil {
		t.Fatalf("begin processing failed: %v", err)
	}
	completed, err := svc.Complete(7, payout.ID, "UTR-0001")
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if completed.Status != constants.PayoutStatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}
	if completed.Reference != "UTR-0001" {
		t.Fatalf("expected reference recorded, got %q", completed.Reference)
	}
	if completed.CompletedAt == nil {
		t.Fatalf("expected completion timestamp")
	}

	reloaded := reloadPayoutTestEarning(t, db, entry.ID)
	if reloaded.Status != constants.EarningStatusPaid {
		t.Fatalf("expected entry paid, got %s", reloaded.Status)
	}
	if reloaded.PaidAt == nil {
		t.Fatalf("expected paid timestamp")
	}
}

func TestPayoutStateMachineRejectsSkippedSteps(t *testing.T) {
	svc, db := setupPayoutServiceTest(t)

	user := createPayoutTestUser(t, db, "steps@example.com", "STEP2345", constants.UserStatusActive)
	createPayoutTestEarning(t, db, user.ID, "ORD-3013", 600, -time.Hour)

	payout, err := svc.RequestPayout(user.ID, PayoutRequestInput{
		Amount:  decimal.NewFromInt(600),
		Method:  constants.PayoutMethodUPI,
		Details: map[string]string{"vpa": "steps@upi"},
	})
	if err != nil {
		t.Fatalf("request payout failed: %v", err)
	}

	if _, err := svc.Complete(7, payout.ID, "UTR-0002"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected completing a fresh request to fail, got %v", err)
	}
	if _, err := svc.BeginProcessing(7, payout.ID, "UTR-0002"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected processing before approval to fail, got %v", err)
	}

	if _, err := svc.Approve(7, payout.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if _, err := svc.MarkUnderReview(7, payout.ID); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected review after approval to fail, got %v", err)
	}

	if _, err := svc.BeginProcessing(7, payout.ID, "UTR-0002"); err != nil {
		t.Fatalf("begin processing failed: %v", err)
	}
	if _, err := svc.Complete(7, payout.ID, "UTR-0002"); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if _, err := svc.Reject(7, payout.ID, "too late"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected rejecting a completed payout to fail, got %v", err)
	}
}

func TestGetUserPayoutScopesToOwner(t *testing.T) {
	svc, db := setupPayoutServiceTest(t)

	owner := createPayoutTestUser(t, db, "owner@example.com", "POWN2345", constants.UserStatusActive)
	other := createPayoutTestUser(t, db, "other@example.com", "POTH2345", constants.UserStatusActive)
	createPayoutTestEarning(t, db, owner.ID, "ORD-3014", 600, -time.Hour)

	payout, err := svc.RequestPayout(owner.ID, PayoutRequestInput{
		Amount:  decimal.NewFromInt(600),
		Method:  constants.PayoutMethodUPI,
		Details: map[string]string{"vpa": "owner@upi"},
	})
	if err != nil {
		t.Fatalf("request payout failed: %v", err)
	}

	if _, err := svc.GetUserPayout(other.ID, payout.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected foreign payout hidden, got %v", err)
	}
	found, err := svc.GetUserPayout(owner.ID, payout.ID)
	if err != nil {
		t.Fatalf("get user payout failed: %v", err)
	}
	if found.ID != payout.ID {
		t.Fatalf("expected payout %d, got %d", payout.ID, found.ID)
	}
}

func setupPayoutServiceTest(t *testing.T) (*PayoutService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:payout_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.EarningEntry{}, &models.PayoutRequest{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	settingSvc := NewSettingService(newMockSettingRepo())
	if _, err := settingSvc.UpdateReferralSetting(ReferralDefaultSetting()); err != nil {
		t.Fatalf("init referral setting failed: %v", err)
	}

	earningRepo := repository.NewEarningRepository(db)
	svc := NewPayoutService(repository.NewPayoutRepository(db), earningRepo,
		repository.NewUserRepository(db), settingSvc, nil, nil)
	return svc, db
}

func createPayoutTestUser(t *testing.T, db *gorm.DB, email, code, status string) models.User {
	t.Helper()

	row := models.User{
		Email:        email,
		PasswordHash: "hash",
		DisplayName:  "tester",
		ReferralCode: code,
		Status:       status,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	return row
}

// createPayoutTestEarning inserts an approved, unbound entry whose age
// fixes its position in the oldest-first earmarking order.
func createPayoutTestEarning(t *testing.T, db *gorm.DB, earnerID uint, orderNo string, amount int64, age time.Duration) models.EarningEntry {
	t.Helper()

	createdAt := time.Now().Add(age)
	row := models.EarningEntry{
		EarnerUserID:     earnerID,
		ReferredUserID:   earnerID,
		OrderNo:          orderNo,
		ReferralLevel:    1,
		BillingType:      constants.BillingTypeInitial,
		OrderAmount:      models.NewMoneyFromInt(amount * 10),
		CommissionRate:   models.NewMoneyFromInt(10),
		CommissionAmount: models.NewMoneyFromInt(amount),
		Status:           constants.EarningStatusApproved,
		ApprovedAt:       &createdAt,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create earning entry failed: %v", err)
	}
	return row
}

func reloadPayoutTestEarning(t *testing.T, db *gorm.DB, id uint) models.EarningEntry {
	t.Helper()

	var row models.EarningEntry
	if err := db.First(&row, id).Error; err != nil {
		t.Fatalf("reload earning entry failed: %v", err)
	}
	return row
}

func listPayoutTestEarnings(t *testing.T, db *gorm.DB, payoutID uint) []models.EarningEntry {
	t.Helper()

	var rows []models.EarningEntry
	if err := db.Where("payout_request_id = ?", payoutID).Find(&rows).Error; err != nil {
		t.Fatalf("list earmarked entries failed: %v", err)
	}
	return rows
}
