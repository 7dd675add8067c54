package models

import (
	"time"

	"gorm.io/gorm"
)

// EarningEntry is one ledger row: the commission one ancestor earns on one
// settled order. Amounts are immutable once written; only the status moves.
// The unique index guarantees at most one entry per (order, earner, level).
type EarningEntry struct {
	ID               uint           `gorm:"primarykey" json:"id"`
	EarnerUserID     uint           `gorm:"not null;index;index:idx_earning_order_unique,unique" json:"earner_user_id"`
	ReferredUserID   uint           `gorm:"not null;index" json:"referred_user_id"`
	OrderNo          string         `gorm:"type:varchar(64);not null;index;index:idx_earning_order_unique,unique" json:"order_no"`
	ReferralLevel    int            `gorm:"not null;index:idx_earning_order_unique,unique" json:"referral_level"`
	BillingType      string         `gorm:"type:varchar(20);not null" json:"billing_type"`
	RenewalCycle     int            `gorm:"not null;default:0" json:"renewal_cycle"`
	OrderAmount      Money          `gorm:"type:decimal(20,2);not null;default:0" json:"order_amount"`
	CommissionRate   Money          `gorm:"type:decimal(10,2);not null;default:0" json:"commission_rate"`
	CommissionAmount Money          `gorm:"type:decimal(20,2);not null;default:0" json:"commission_amount"`
	Status           string         `gorm:"type:varchar(20);not null;index" json:"status"`
	ApprovableAt     *time.Time     `gorm:"index" json:"approvable_at,omitempty"`
	PayoutRequestID  *uint          `gorm:"index" json:"payout_request_id,omitempty"`
	Reason           string         `gorm:"type:varchar(255)" json:"reason"`
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	ApprovedAt       *time.Time     `json:"approved_at,omitempty"`
	PaidAt           *time.Time     `json:"paid_at,omitempty"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`

	Earner        User           `gorm:"foreignKey:EarnerUserID" json:"earner,omitempty"`
	ReferredUser  User           `gorm:"foreignKey:ReferredUserID" json:"referred_user,omitempty"`
	PayoutRequest *PayoutRequest `gorm:"foreignKey:PayoutRequestID" json:"payout_request,omitempty"`
}

// TableName sets the table name.
func (EarningEntry) TableName() string {
	return "earning_entries"
}
