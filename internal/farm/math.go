package farm

import "math/big"

// accScale is the fixed-point scale of the per-share accumulator.
var accScale = big.NewInt(1_000_000_000_000)

const (
	baseMultiplier   = 10 // bonus multipliers are expressed in tenths
	feeDivisor       = 10000
	devShareDivisor  = 10 // dev sink receives 1/10th of every pool emission
	maxCommissionBP  = 1000
	maxHarvestWindow = 14 * 24 * 3600
)

// intervalReward computes elapsed × rate × allocPoint / totalAllocPoint.
// Integer division truncates; rounding dust stays with the pot.
func intervalReward(elapsed uint64, ratePerSec *big.Int, allocPoint, totalAllocPoint uint64) *big.Int {
	reward := new(big.Int).SetUint64(elapsed)
	reward.Mul(reward, ratePerSec)
	reward.Mul(reward, new(big.Int).SetUint64(allocPoint))
	reward.Div(reward, new(big.Int).SetUint64(totalAllocPoint))
	return reward
}

// accrualPerShare converts a pool reward into scaled per-share units.
func accrualPerShare(reward, supply *big.Int) *big.Int {
	perShare := new(big.Int).Mul(reward, accScale)
	perShare.Div(perShare, supply)
	return perShare
}

// shareReward is effectiveShare × accPerShare / 1e12, the gross entitlement a
// share has earned since the pool's genesis.
func shareReward(effShare, accPerShare *big.Int) *big.Int {
	reward := new(big.Int).Mul(effShare, accPerShare)
	reward.Div(reward, accScale)
	return reward
}

// effectiveShare is stake adjusted by the bonus multiplier (tenths).
func effectiveShare(amount *big.Int, multiplier uint64) *big.Int {
	share := new(big.Int).Mul(amount, new(big.Int).SetUint64(multiplier))
	share.Div(share, big.NewInt(baseMultiplier))
	return share
}

// grossBase undoes the bonus inflation of a payout so referral commissions
// are computed on the pre-bonus amount.
func grossBase(amount *big.Int, multiplier uint64) *big.Int {
	base := new(big.Int).Mul(amount, big.NewInt(baseMultiplier))
	base.Div(base, new(big.Int).SetUint64(multiplier))
	return base
}
