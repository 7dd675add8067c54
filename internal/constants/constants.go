package constants

// User account statuses
const (
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
)

// Billing types for settled orders
const (
	BillingTypeInitial = "initial"
	BillingTypeRenewal = "renewal"
)

// Referral levels. Commission is paid on the first three ancestors only.
const (
	ReferralLevelOne   = 1
	ReferralLevelTwo   = 2
	ReferralLevelThree = 3
	ReferralLevelMax   = 3
)

// Earning entry statuses
const (
	EarningStatusPending  = "pending"
	EarningStatusApproved = "approved"
	EarningStatusPaid     = "paid"
	EarningStatusRejected = "rejected"
	EarningStatusReversed = "reversed"
)

// Payout request statuses
const (
	PayoutStatusRequested   = "requested"
	PayoutStatusUnderReview = "under_review"
	PayoutStatusApproved    = "approved"
	PayoutStatusProcessing  = "processing"
	PayoutStatusCompleted   = "completed"
	PayoutStatusRejected    = "rejected"
)

// Payout methods
const (
	PayoutMethodBankTransfer = "bank_transfer"
	PayoutMethodUPI          = "upi"
	PayoutMethodPaypal       = "paypal"
)

// Queue names
const (
	QueueDefault = "default"
)

// Async task names
const (
	TaskEarningApproveDue = "earning:approve_due"
	TaskPayoutNotify      = "payout:notify"
)

// Setting keys
const (
	SettingKeyReferralConfig = "referral_config"
)
