package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/bidua-hosting/backend/internal/constants"
	"github.com/bidua-hosting/backend/internal/models"
	"github.com/bidua-hosting/backend/internal/repository"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestHandleOrderSettledCreatesThreeLevelEntries(t *testing.T) {
	svc, db, _ := setupCommissionServiceTest(t)

	buyer, upline := createCommissionTestChain(t, db, 3)

	err := svc.HandleOrderSettled(OrderSettledEvent{
		OrderNo:     "ORD-1001",
		PurchaserID: buyer.ID,
		Amount:      decimal.NewFromInt(1000),
		BillingType: constants.BillingTypeInitial,
		SettledAt:   time.Now(),
	})
	if err != nil {
		t.Fatalf("handle order settled failed: %v", err)
	}

	entries := listCommissionTestEntries(t, db, "ORD-1001")
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	// 15% / 10% / 3% of 1000
	wantAmounts := map[int]string{1: "150.00", 2: "100.00", 3: "30.00"}
	wantEarners := map[int]uint{1: upline[0].ID, 2: upline[1].ID, 3: upline[2].ID}
	for _, entry := range entries {
		if entry.EarnerUserID != wantEarners[entry.ReferralLevel] {
			t.Fatalf("level %d: expected earner %d, got %d",
				entry.ReferralLevel, wantEarners[entry.ReferralLevel], entry.EarnerUserID)
		}
		if got := entry.CommissionAmount.String(); got != wantAmounts[entry.ReferralLevel] {
			t.Fatalf("level %d: expected commission %s, got %s",
				entry.ReferralLevel, wantAmounts[entry.ReferralLevel], got)
		}
		if entry.Status != constants.EarningStatusPending {
			t.Fatalf("expected pending status, got %s", entry.Status)
		}
		if entry.ApprovableAt == nil {
			t.Fatalf("expected verification window on pending entry")
		}
		if entry.ReferredUserID != buyer.ID {
			t.Fatalf("expected referred user %d, got %d", buyer.ID, entry.ReferredUserID)
		}
	}
}

func TestHandleOrderSettledRedeliveryIsNoOp(t *testing.T) {
	svc, db, _ := setupCommissionServiceTest(t)

	buyer, _ := createCommissionTestChain(t, db, 2)

	event := OrderSettledEvent{
		OrderNo:     "ORD-1002",
		PurchaserID: buyer.ID,
		Amount:      decimal.NewFromInt(800),
		SettledAt:   time.Now(),
	}
	if err := svc.HandleOrderSettled(event); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	if err := svc.HandleOrderSettled(event); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}

	entries := listCommissionTestEntries(t, db, "ORD-1002")
	if len(entries) != 2 {
		t.Fatalf("expected redelivery to add nothing, got %d entries", len(entries))
	}
}

func TestHandleOrderSettledRenewalCreatesSecondEntrySet(t *testing.T) {
	svc, db, _ := setupCommissionServiceTest(t)

	buyer, upline := createCommissionTestChain(t, db, 2)

	if err := svc.HandleOrderSettled(OrderSettledEvent{
		OrderNo:     "ORD-1008",
		PurchaserID: buyer.ID,
		Amount:      decimal.NewFromInt(1000),
		BillingType: constants.BillingTypeInitial,
		SettledAt:   time.Now(),
	}); err != nil {
		t.Fatalf("initial order failed: %v", err)
	}
	if err := svc.HandleOrderSettled(OrderSettledEvent{
		OrderNo:      "ORD-1008-R1",
		PurchaserID:  buyer.ID,
		Amount:       decimal.NewFromInt(1000),
		BillingType:  constants.BillingTypeRenewal,
		RenewalCycle: 1,
		SettledAt:    time.Now(),
	}); err != nil {
		t.Fatalf("renewal order failed: %v", err)
	}

	renewals := listCommissionTestEntries(t, db, "ORD-1008-R1")
	if len(renewals) != 2 {
		t.Fatalf("expected 2 renewal entries, got %d", len(renewals))
	}
	wantEarners := map[int]uint{1: upline[0].ID, 2: upline[1].ID}
	for _, entry := range renewals {
		if entry.BillingType != constants.BillingTypeRenewal {
			t.Fatalf("expected renewal billing type, got %s", entry.BillingType)
		}
		if entry.RenewalCycle != 1 {
			t.Fatalf("expected renewal cycle 1, got %d", entry.RenewalCycle)
		}
		if entry.EarnerUserID != wantEarners[entry.ReferralLevel] {
			t.Fatalf("level %d: expected earner %d, got %d",
				entry.ReferralLevel, wantEarners[entry.ReferralLevel], entry.EarnerUserID)
		}
	}
	// the initial order's entries are untouched
	if initial := listCommissionTestEntries(t, db, "ORD-1008"); len(initial) != 2 {
		t.Fatalf("expected initial entries preserved, got %d", len(initial))
	}
}

func TestHandleOrderSettledSkipsSuspendedAncestor(t *testing.T) {
	svc, db, _ := setupCommissionServiceTest(t)

	buyer, upline := createCommissionTestChain(t, db, 3)
	if err := db.Model(&models.User{}).Where("id = ?", upline[1].ID).
		Update("status", constants.UserStatusSuspended).Error; err != nil {
		t.Fatalf("suspend ancestor failed: %v", err)
	}

	err := svc.HandleOrderSettled(OrderSettledEvent{
		OrderNo:     "ORD-1003",
		PurchaserID: buyer.ID,
		Amount:      decimal.NewFromInt(1000),
		SettledAt:   time.Now(),
	})
	if err != nil {
		t.Fatalf("handle order settled failed: %v", err)
	}

	entries := listCommissionTestEntries(t, db, "ORD-1003")
	if len(entries) != 2 {
		t.Fatalf("expected suspended ancestor skipped, got %d entries", len(entries))
	}
	// the remaining ancestors keep their positional levels
	for _, entry := range entries {
		if entry.ReferralLevel == 2 {
			t.Fatalf("expected no level 2 entry, got one for earner %d", entry.EarnerUserID)
		}
		if entry.EarnerUserID == upline[1].ID {
			t.Fatalf("suspended ancestor earned a commission")
		}
	}
}

func TestHandleOrderSettledSkipsZeroRateLevel(t *testing.T) {
	svc, db, settingSvc := setupCommissionServiceTest(t)

	setting := ReferralDefaultSetting()
	setting.Level3RatePercent = 0
	if _, err := settingSvc.UpdateReferralSetting(setting); err != nil {
		t.Fatalf("update referral setting failed: %v", err)
	}

	buyer, _ := createCommissionTestChain(t, db, 3)

	err := svc.HandleOrderSettled(OrderSettledEvent{
		OrderNo:     "ORD-1004",
		PurchaserID: buyer.ID,
		Amount:      decimal.NewFromInt(1000),
		SettledAt:   time.Now(),
	})
	if err != nil {
		t.Fatalf("handle order settled failed: %v", err)
	}

	entries := listCommissionTestEntries(t, db, "ORD-1004")
	if len(entries) != 2 {
		t.Fatalf("expected zero-rate level skipped, got %d entries", len(entries))
	}
}

func TestHandleOrderSettledApprovesImmediatelyWithoutWindow(t *testing.T) {
	svc, db, settingSvc := setupCommissionServiceTest(t)

	setting := ReferralDefaultSetting()
	setting.VerificationDays = 0
	if _, err := settingSvc.UpdateReferralSetting(setting); err != nil {
		t.Fatalf("update referral setting failed: %v", err)
	}

	buyer, _ := createCommissionTestChain(t, db, 1)

	err := svc.HandleOrderSettled(OrderSettledEvent{
		OrderNo:     "ORD-1005",
		PurchaserID: buyer.ID,
		Amount:      decimal.NewFromInt(400),
		SettledAt:   time.Now(),
	})
	if err != nil {
		t.Fatalf("handle order settled failed: %v", err)
	}

	entries := listCommissionTestEntries(t, db, "ORD-1005")
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Status != constants.EarningStatusApproved {
		t.Fatalf("expected immediate approval, got %s", entries[0].Status)
	}
	if entries[0].ApprovedAt == nil || entries[0].ApprovableAt != nil {
		t.Fatalf("unexpected timestamps: approved_at=%v approvable_at=%v",
			entries[0].ApprovedAt, entries[0].ApprovableAt)
	}
}

func TestHandleOrderSettledRoundsToWholeUnits(t *testing.T) {
	svc, db, _ := setupCommissionServiceTest(t)

	buyer, _ := createCommissionTestChain(t, db, 3)

	err := svc.HandleOrderSettled(OrderSettledEvent{
		OrderNo:     "ORD-1006",
		PurchaserID: buyer.ID,
		Amount:      decimal.NewFromInt(333),
		SettledAt:   time.Now(),
	})
	if err != nil {
		t.Fatalf("handle order settled failed: %v", err)
	}

	// 49.95 -> 50, 33.30 -> 33, 9.99 -> 10
	wantAmounts := map[int]string{1: "50.00", 2: "33.00", 3: "10.00"}
	for _, entry := range listCommissionTestEntries(t, db, "ORD-1006") {
		if got := entry.CommissionAmount.String(); got != wantAmounts[entry.ReferralLevel] {
			t.Fatalf("level %d: expected %s, got %s", entry.ReferralLevel, wantAmounts[entry.ReferralLevel], got)
		}
	}
}

func TestHandleOrderSettledWithoutUpline(t *testing.T) {
	svc, db, _ := setupCommissionServiceTest(t)

	buyer := createCommissionTestUser(t, db, "orphan@example.com", "ORPH2345")

	err := svc.HandleOrderSettled(OrderSettledEvent{
		OrderNo:     "ORD-1007",
		PurchaserID: buyer.ID,
		Amount:      decimal.NewFromInt(1000),
		SettledAt:   time.Now(),
	})
	if err != nil {
		t.Fatalf("handle order settled failed: %v", err)
	}
	if entries := listCommissionTestEntries(t, db, "ORD-1007"); len(entries) != 0 {
		t.Fatalf("expected no entries for a buyer without upline, got %d", len(entries))
	}
}

func TestHandleOrderSettledUnknownPurchaser(t *testing.T) {
	svc, db, _ := setupCommissionServiceTest(t)

	// billing is ahead of the user sync; the delivery is acknowledged
	err := svc.HandleOrderSettled(OrderSettledEvent{
		OrderNo:     "ORD-1009",
		PurchaserID: 9999,
		Amount:      decimal.NewFromInt(1000),
		SettledAt:   time.Now(),
	})
	if err != nil {
		t.Fatalf("expected unknown purchaser to be acknowledged, got %v", err)
	}
	if entries := listCommissionTestEntries(t, db, "ORD-1009"); len(entries) != 0 {
		t.Fatalf("expected no entries for an unknown purchaser, got %d", len(entries))
	}
}

func setupCommissionServiceTest(t *testing.T) (*CommissionService, *gorm.DB, *SettingService) {
	t.Helper()

	dsn := fmt.Sprintf("file:commission_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.ReferralEdge{}, &models.EarningEntry{}, &models.PayoutRequest{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	settingSvc := NewSettingService(newMockSettingRepo())
	if _, err := settingSvc.UpdateReferralSetting(ReferralDefaultSetting()); err != nil {
		t.Fatalf("init referral setting failed: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	referralSvc := NewReferralService(repository.NewReferralRepository(db), userRepo)
	svc := NewCommissionService(repository.NewEarningRepository(db), referralSvc, userRepo, settingSvc, nil, nil)
	return svc, db, settingSvc
}

// createCommissionTestChain builds a buyer with the given number of
// ancestors and returns them closest first.
func createCommissionTestChain(t *testing.T, db *gorm.DB, depth int) (models.User, []models.User) {
	t.Helper()

	buyer := createCommissionTestUser(t, db, "buyer@example.com", "BUYR2345")
	upline := make([]models.User, 0, depth)
	currentID := buyer.ID
	for i := 1; i <= depth; i++ {
		ancestor := createCommissionTestUser(t, db,
			fmt.Sprintf("ancestor-%d@example.com", i),
			fmt.Sprintf("ANC%d2345", i))
		edge := models.ReferralEdge{ReferrerID: ancestor.ID, ReferredID: currentID, CreatedAt: time.Now()}
		if err := db.Create(&edge).Error; err != nil {
			t.Fatalf("create referral edge failed: %v", err)
		}
		upline = append(upline, ancestor)
		currentID = ancestor.ID
	}
	return buyer, upline
}

func createCommissionTestUser(t *testing.T, db *gorm.DB, email, code string) models.User {
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

func listCommissionTestEntries(t *testing.T, db *gorm.DB, orderNo string) []models.EarningEntry {
	t.Helper()

	var rows []models.EarningEntry
	if err := db.Where("order_no = ?", orderNo).Order("referral_level asc").Find(&rows).Error; err != nil {
		t.Fatalf("list entries failed: %v", err)
	}
	return rows
}
