package farm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Position is the per-(pool, user) ledger entry. Created lazily on first
// interaction and never deleted; emergency withdraw zeroes its financial
// fields but the record persists.
type Position struct {
	Amount         *big.Int
	RewardDebt     *big.Int
	RewardLockedUp *big.Int

	// NextHarvestUntil gates payouts; 0 means the window was never armed.
	NextHarvestUntil uint64

	LoyaltyActive bool
	LoyaltySince  uint64 // 0 while the timer has not started

	// BonusMultiplier is in tenths; 0 means uninitialized and reads as 10.
	BonusMultiplier uint64
}

type positionKey struct {
	pool int
	user common.Address
}

func newPosition() *Position {
	return &Position{
		Amount:         big.NewInt(0),
		RewardDebt:     big.NewInt(0),
		RewardLockedUp: big.NewInt(0),
	}
}

// multiplier reads the bonus multiplier with the uninitialized default.
func (p *Position) multiplier() uint64 {
	if p.BonusMultiplier == 0 {
		return baseMultiplier
	}
	return p.BonusMultiplier
}

// effectiveShare is the stake weighted by the current bonus multiplier.
func (p *Position) effectiveShare() *big.Int {
	return effectiveShare(p.Amount, p.multiplier())
}

// resetLoyalty forfeits accumulated loyalty; any positive withdrawal calls it.
func (p *Position) resetLoyalty() {
	p.LoyaltyActive = false
	p.LoyaltySince = 0
	p.BonusMultiplier = baseMultiplier
}
