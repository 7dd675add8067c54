package service

import "errors"

// Sentinel errors shared across services. Handlers map these to HTTP
// status codes and response messages.
var (
	ErrNotFound           = errors.New("record not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrWeakPassword       = errors.New("password too weak")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrEmailExists        = errors.New("email already registered")
	ErrUserSuspended      = errors.New("account suspended")

	ErrInvalidReferralCode    = errors.New("invalid referral code")
	ErrReferralSelf           = errors.New("cannot use own referral code")
	ErrReferralExists         = errors.New("referrer already recorded")
	ErrReferralConfigInvalid  = errors.New("invalid referral configuration")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrBalanceInvariant       = errors.New("ledger balance invariant violated")

	ErrPayoutBelowMinimum      = errors.New("payout amount below minimum")
	ErrInsufficientBalance     = errors.New("insufficient available balance")
	ErrPayoutMethodInvalid     = errors.New("unsupported payout method")
	ErrPayoutDetailsIncomplete = errors.New("payout details incomplete")
)
