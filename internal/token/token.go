// Package token defines the asset collaborators the farm engine moves value
// through, plus in-memory implementations used by the daemon and the tests.
package token

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// StakeAsset is the deposit-side asset of a pool. TransferFrom reports the
// amount actually received, which can be less than requested when the asset
// taxes transfers.
type StakeAsset interface {
	Address() common.Address
	BalanceOf(holder common.Address) *big.Int
	TransferFrom(from, to common.Address, amount *big.Int) (*big.Int, error)
	Transfer(from, to common.Address, amount *big.Int) error
}

// RewardAsset is the emission-side asset. The engine mints into the pool pot
// and pays users out of it.
type RewardAsset interface {
	Mint(to common.Address, amount *big.Int) error
	Transfer(from, to common.Address, amount *big.Int) error
	BalanceOf(holder common.Address) *big.Int
}

// ReferralRegistry is an optional collaborator; the engine checks for its
// presence at each call site.
type ReferralRegistry interface {
	// RecordReferral is a no-op when the user already has a referrer.
	RecordReferral(user, referrer common.Address)
	Referrer(user common.Address) (common.Address, bool)
	RecordCommission(referrer common.Address, amount *big.Int)
}
