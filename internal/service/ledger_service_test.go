package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bidua-hosting/backend/internal/constants"
	"github.com/bidua-hosting/backend/internal/models"
	"github.com/bidua-hosting/backend/internal/repository"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestLedgerApprovePendingEntry(t *testing.T) {
	svc, db := setupLedgerServiceTest(t)

	user := createLedgerTestUser(t, db, "earner@example.com", "ERNR2345")
	entry := createLedgerTestEntry(t, db, ledgerTestEntry{
		EarnerID: user.ID, OrderNo: "ORD-2001", Amount: 120,
		Status: constants.EarningStatusPending,
	})

	approved, err := svc.Approve(entry.ID)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if approved.Status != constants.EarningStatusApproved {
		t.Fatalf("expected approved, got %s", approved.Status)
	}
	if approved.ApprovedAt == nil || approved.ApprovableAt != nil {
		t.Fatalf("unexpected timestamps: approved_at=%v approvable_at=%v",
			approved.ApprovedAt, approved.ApprovableAt)
	}

	if _, err := svc.Approve(entry.ID); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected second approve to fail, got %v", err)
	}
}

func TestLedgerRejectRecordsReason(t *testing.T) {
	svc, db := setupLedgerServiceTest(t)

	user := createLedgerTestUser(t, db, "fraud@example.com", "FRAD2345")
	entry := createLedgerTestEntry(t, db, ledgerTestEntry{
		EarnerID: user.ID, OrderNo: "ORD-2002", Amount: 90,
		Status: constants.EarningStatusApproved,
	})

	rejected, err := svc.Reject(entry.ID, "  self-purchase ring ")
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.Status != constants.EarningStatusRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}
	if rejected.Reason != "self-purchase ring" {
		t.Fatalf("expected trimmed reason, got %q", rejected.Reason)
	}
}

func TestLedgerReverseApprovedEntry(t *testing.T) {
	svc, db := setupLedgerServiceTest(t)

	user := createLedgerTestUser(t, db, "refund@example.com", "RFND2345")
	entry := createLedgerTestEntry(t, db, ledgerTestEntry{
		EarnerID: user.ID, OrderNo: "ORD-2003", Amount: 75,
		Status: constants.EarningStatusApproved,
	})

	reversed, err := svc.Reverse(entry.ID, "order refunded")
	if err != nil {
		t.Fatalf("reverse failed: %v", err)
	}
	if reversed.Status != constants.EarningStatusReversed {
		t.Fatalf("expected reversed, got %s", reversed.Status)
	}

	// terminal states accept no further transitions
	if _, err := svc.Approve(entry.ID); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected transition out of reversed to fail, got %v", err)
	}
}

func TestLedgerRefusesEarmarkedEntry(t *testing.T) {
	svc, db := setupLedgerServiceTest(t)

	user := createLedgerTestUser(t, db, "earmarked@example.com", "ERMK2345")
	payoutID := createLedgerTestPayout(t, db, user.ID)
	entry := createLedgerTestEntry(t, db, ledgerTestEntry{
		EarnerID: user.ID, OrderNo: "ORD-2004", Amount: 600,
		Status: constants.EarningStatusApproved, PayoutRequestID: &payoutID,
	})

	if _, err := svc.Reject(entry.ID, "too late"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected earmarked entry to be frozen, got %v", err)
	}
	if _, err := svc.Reverse(entry.ID, "too late"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected earmarked entry to be frozen, got %v", err)
	}
}

func TestLedgerApproveDueFlipsElapsedEntries(t *testing.T) {
	svc, db := setupLedgerServiceTest(t)

	user := createLedgerTestUser(t, db, "due@example.com", "DUEE2345")
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(48 * time.Hour)
	due := createLedgerTestEntry(t, db, ledgerTestEntry{
		EarnerID: user.ID, OrderNo: "ORD-2005", Amount: 100,
		Status: constants.EarningStatusPending, ApprovableAt: &past,
	})
	notDue := createLedgerTestEntry(t, db, ledgerTestEntry{
		EarnerID: user.ID, OrderNo: "ORD-2006", Amount: 100,
		Status: constants.EarningStatusPending, ApprovableAt: &future,
	})

	updated, err := svc.ApproveDue(time.Now())
	if err != nil {
		t.Fatalf("approve due failed: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 entry flipped, got %d", updated)
	}

	reloaded, err := svc.GetEntry(due.ID)
	if err != nil {
		t.Fatalf("get entry failed: %v", err)
	}
	if reloaded.Status != constants.EarningStatusApproved {
		t.Fatalf("expected due entry approved, got %s", reloaded.Status)
	}
	reloaded, err = svc.GetEntry(notDue.ID)
	if err != nil {
		t.Fatalf("get entry failed: %v", err)
	}
	if reloaded.Status != constants.EarningStatusPending {
		t.Fatalf("expected future entry untouched, got %s", reloaded.Status)
	}
}

func TestLedgerGetStatsSummarizesBalances(t *testing.T) {
	svc, db := setupLedgerServiceTest(t)

	user := createLedgerTestUser(t, db, "stats@example.com", "STAT2345")
	payoutID := createLedgerTestPayout(t, db, user.ID)
	createLedgerTestEntry(t, db, ledgerTestEntry{
		EarnerID: user.ID, OrderNo: "ORD-2007", Amount: 100,
		Status: constants.EarningStatusPending,
	})
	createLedgerTestEntry(t, db, ledgerTestEntry{
		EarnerID: user.ID, OrderNo: "ORD-2008", Amount: 600,
		Status: constants.EarningStatusApproved,
	})
	createLedgerTestEntry(t, db, ledgerTestEntry{
		EarnerID: user.ID, OrderNo: "ORD-2009", Amount: 200,
		Status: constants.EarningStatusApproved, PayoutRequestID: &payoutID,
	})
	createLedgerTestEntry(t, db, ledgerTestEntry{
		EarnerID: user.ID, OrderNo: "ORD-2010", Amount: 300,
		Status: constants.EarningStatusPaid,
	})

	stats, err := svc.GetStats(user.ID)
	if err != nil {
		t.Fatalf("get stats failed: %v", err)
	}
	if got := stats.PendingAmount.String(); got != "100.00" {
		t.Fatalf("expected pending 100.00, got %s", got)
	}
	// earmarked rows stay out of the spendable balance
	if got := stats.AvailableAmount.String(); got != "600.00" {
		t.Fatalf("expected available 600.00, got %s", got)
	}
	if got := stats.PaidAmount.String(); got != "300.00" {
		t.Fatalf("expected paid 300.00, got %s", got)
	}
	if got := stats.TotalEarned.String(); got != "1200.00" {
		t.Fatalf("expected total 1200.00, got %s", got)
	}
	if !stats.CanRequestPayout {
		t.Fatalf("expected payout possible with 600 available against minimum 500")
	}
}

func TestLedgerGetStatsBelowMinimumBlocksPayout(t *testing.T) {
	svc, db := setupLedgerServiceTest(t)

	user := createLedgerTestUser(t, db, "small@example.com", "SMOL2345")
	createLedgerTestEntry(t, db, ledgerTestEntry{
		EarnerID: user.ID, OrderNo: "ORD-2011", Amount: 400,
		Status: constants.EarningStatusApproved,
	})

	stats, err := svc.GetStats(user.ID)
	if err != nil {
		t.Fatalf("get stats failed: %v", err)
	}
	if stats.CanRequestPayout {
		t.Fatalf("expected 400 available to stay below the 500 minimum")
	}
	if got := stats.MinPayoutAmount.String(); got != "500.00" {
		t.Fatalf("expected minimum 500.00, got %s", got)
	}
}

func TestLedgerGetStatsSurfacesNegativeSum(t *testing.T) {
	svc, db := setupLedgerServiceTest(t)

	user := createLedgerTestUser(t, db, "corrupt@example.com", "CRPT2345")
	createLedgerTestEntry(t, db, ledgerTestEntry{
		EarnerID: user.ID, OrderNo: "ORD-2012", Amount: -50,
		Status: constants.EarningStatusApproved,
	})

	if _, err := svc.GetStats(user.ID); !errors.Is(err, ErrBalanceInvariant) {
		t.Fatalf("expected ErrBalanceInvariant, got %v", err)
	}
}

func TestLedgerGetStatsZeroMinimumAllowsPayout(t *testing.T) {
	svc, db := setupLedgerServiceTest(t)

	setting := ReferralDefaultSetting()
	setting.MinPayoutAmount = 0
	if _, err := svc.settingService.UpdateReferralSetting(setting); err != nil {
		t.Fatalf("update referral setting failed: %v", err)
	}

	user := createLedgerTestUser(t, db, "zeromin@example.com", "ZRMN2345")
	stats, err := svc.GetStats(user.ID)
	if err != nil {
		t.Fatalf("get stats failed: %v", err)
	}
	if !stats.CanRequestPayout {
		t.Fatalf("expected zero threshold to allow a payout request")
	}
}

func TestLedgerListEarningsFiltersByDateRange(t *testing.T) {
	svc, db := setupLedgerServiceTest(t)

	user := createLedgerTestUser(t, db, "range@example.com", "RNGE2345")
	old := createLedgerTestEntry(t, db, ledgerTestEntry{
		EarnerID: user.ID, OrderNo: "ORD-2013", Amount: 100,
		Status: constants.EarningStatusApproved,
	})
	recent := createLedgerTestEntry(t, db, ledgerTestEntry{
		EarnerID: user.ID, OrderNo: "ORD-2014", Amount: 100,
		Status: constants.EarningStatusApproved,
	})
	if err := db.Model(&models.EarningEntry{}).Where("id = ?", old.ID).
		Update("created_at", time.Now().Add(-48*time.Hour)).Error; err != nil {
		t.Fatalf("backdate entry failed: %v", err)
	}

	cutoff := time.Now().Add(-24 * time.Hour)
	rows, total, err := svc.ListEarnings(user.ID, EarningListQuery{CreatedFrom: &cutoff})
	if err != nil {
		t.Fatalf("list earnings failed: %v", err)
	}
	if total != 1 || len(rows) != 1 || rows[0].ID != recent.ID {
		t.Fatalf("expected only the recent entry, got total=%d rows=%d", total, len(rows))
	}

	rows, total, err = svc.ListEarnings(user.ID, EarningListQuery{CreatedTo: &cutoff})
	if err != nil {
		t.Fatalf("list earnings failed: %v", err)
	}
	if total != 1 || len(rows) != 1 || rows[0].ID != old.ID {
		t.Fatalf("expected only the backdated entry, got total=%d rows=%d", total, len(rows))
	}
}

type ledgerTestEntry struct {
	EarnerID        uint
	OrderNo         string
	Amount          int64
	Status          string
	ApprovableAt    *time.Time
	PayoutRequestID *uint
}

func setupLedgerServiceTest(t *testing.T) (*LedgerService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:ledger_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
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

	svc := NewLedgerService(repository.NewEarningRepository(db), repository.NewUserRepository(db), settingSvc, nil)
	return svc, db
}

func createLedgerTestUser(t *testing.T, db *gorm.DB, email, code string) models.User {
	t.Helper()

	row := models.User{
		Email:        email,
		PasswordHash: "hash",
		DisplayName:  "tester",
		ReferralCode: code,
		Status:       constants.UserStatusActive,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	return row
}

func createLedgerTestPayout(t *testing.T, db *gorm.DB, userID uint) uint {
	t.Helper()

	now := time.Now()
	row := models.PayoutRequest{
		PayoutNo:       fmt.Sprintf("PO-TEST-%d", now.UnixNano()),
		UserID:         userID,
		GrossAmount:    models.NewMoneyFromInt(200),
		NetAmount:      models.NewMoneyFromInt(144),
		Status:         constants.PayoutStatusRequested,
		PaymentMethod:  constants.PayoutMethodUPI,
		PaymentDetails: models.JSON{"vpa": "tester@upi"},
		RequestedAt:    now,
		UpdatedAt:      now,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create payout request failed: %v", err)
	}
	return row.ID
}

func createLedgerTestEntry(t *testing.T, db *gorm.DB, spec ledgerTestEntry) models.EarningEntry {
	t.Helper()

	now := time.Now()
	row := models.EarningEntry{
		EarnerUserID:     spec.EarnerID,
		ReferredUserID:   spec.EarnerID,
		OrderNo:          spec.OrderNo,
		ReferralLevel:    1,
		BillingType:      constants.BillingTypeInitial,
		OrderAmount:      models.NewMoneyFromInt(spec.Amount * 10),
		CommissionRate:   models.NewMoneyFromInt(10),
		CommissionAmount: models.NewMoneyFromInt(spec.Amount),
		Status:           spec.Status,
		ApprovableAt:     spec.ApprovableAt,
		PayoutRequestID:  spec.PayoutRequestID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create earning entry failed: %v", err)
	}
	return row
}
