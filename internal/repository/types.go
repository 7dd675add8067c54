package repository

import "time"

// UserListFilter filters the admin user listing.
type UserListFilter struct {
	Page     int
	PageSize int
	Status   string
	Keyword  string
}

// ReferralEdgeListFilter filters referral-edge listings.
type ReferralEdgeListFilter struct {
	Page       int
	PageSize   int
	ReferrerID uint
}

// EarningListFilter filters ledger queries.
type EarningListFilter struct {
	Page        int
	PageSize    int
	EarnerID    uint
	OrderNo     string
	Status      string
	Level       int
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// PayoutListFilter filters payout request queries.
type PayoutListFilter struct {
	Page        int
	PageSize    int
	UserID      uint
	Status      string
	PayoutNo    string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}
