package models

import (
	"time"

	"gorm.io/gorm"
)

// PayoutRequest is a user's request to withdraw approved earnings.
// Gross amount is earmarked against approved ledger entries at request time;
// TDS and service tax are withheld from the gross.
type PayoutRequest struct {
	ID               uint           `gorm:"primarykey" json:"id"`
	PayoutNo         string         `gorm:"type:varchar(40);not null;uniqueIndex" json:"payout_no"`
	UserID           uint           `gorm:"not null;index" json:"user_id"`
	GrossAmount      Money          `gorm:"type:decimal(20,2);not null;default:0" json:"gross_amount"`
	TDSAmount        Money          `gorm:"type:decimal(20,2);not null;default:0" json:"tds_amount"`
	ServiceTaxAmount Money          `gorm:"type:decimal(20,2);not null;default:0" json:"service_tax_amount"`
	NetAmount        Money          `gorm:"type:decimal(20,2);not null;default:0" json:"net_amount"`
	Status           string         `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentMethod    string         `gorm:"type:varchar(20);not null" json:"payment_method"`
	PaymentDetails   JSON           `gorm:"type:json" json:"payment_details"`
	Reference        string         `gorm:"type:varchar(128)" json:"reference"`
	RejectReason     string         `gorm:"type:varchar(255)" json:"reject_reason"`
	ProcessedBy      *uint          `gorm:"index" json:"processed_by,omitempty"`
	RequestedAt      time.Time      `gorm:"index;not null" json:"requested_at"`
	ApprovedAt       *time.Time     `json:"approved_at,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`

	User      User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Processor *Admin `gorm:"foreignKey:ProcessedBy" json:"processor,omitempty"`
}

// TableName sets the table name.
func (PayoutRequest) TableName() string {
	return "payout_requests"
}
