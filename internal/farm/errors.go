package farm

import "errors"

// Validation errors reject the action before any state changes.
var (
	ErrPoolNotFound           = errors.New("pool not found")
	ErrDuplicatePool          = errors.New("pool already exists for asset")
	ErrInsufficientStake      = errors.New("withdraw exceeds staked amount")
	ErrFeeTooHigh             = errors.New("deposit fee above 10000 bp")
	ErrHarvestIntervalTooLong = errors.New("harvest interval above maximum")
	ErrCommissionTooHigh      = errors.New("referral commission above 1000 bp")
	ErrUnauthorized           = errors.New("caller does not hold the required role")
)

// ErrInvariant marks a bookkeeping violation. Actions that hit it abort; the
// condition is unreachable when accumulator and debt accounting are correct.
var ErrInvariant = errors.New("accounting invariant violated")
