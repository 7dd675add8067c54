package models

import "time"

// ReferralEdge links a referred user to the user whose code they signed up
// with. A user has at most one referrer; the edge is immutable once written.
type ReferralEdge struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	ReferrerID uint      `gorm:"not null;index" json:"referrer_id"`
	ReferredID uint      `gorm:"not null;uniqueIndex" json:"referred_id"`
	CreatedAt  time.Time `gorm:"index;not null" json:"created_at"`

	Referrer User `gorm:"foreignKey:ReferrerID" json:"referrer,omitempty"`
	Referred User `gorm:"foreignKey:ReferredID" json:"referred,omitempty"`
}

// TableName sets the table name.
func (ReferralEdge) TableName() string {
	return "referral_edges"
}
