package farm

import (
	"math/big"

	"farmLedger/internal/token"
)

// Pool is one staking bucket. Pools are append-only; configuration changes
// and accrual refreshes are the only mutations after creation.
type Pool struct {
	Asset             token.StakeAsset
	AllocPoint        uint64
	LastRewardTime    uint64
	AccRewardPerShare *big.Int // scaled by 1e12, non-decreasing
	DepositFeeBP      uint64
	HarvestInterval   uint64
	BonusMode         bool

	// NominalTotalBalance caches Σ stake × multiplier / 10 across the pool's
	// users. Under bonus mode it replaces the live balance as the effective
	// supply, so it must match the true sum after every user action.
	NominalTotalBalance *big.Int
}

// effectiveSupply is the divisor for per-share accrual. Under bonus mode a
// zero nominal balance is lazily seeded from the live balance, which covers
// pools that enabled bonus accounting after deposits already existed.
func (p *Pool) effectiveSupply(custodian *big.Int) *big.Int {
	if !p.BonusMode {
		return custodian
	}
	if p.NominalTotalBalance.Sign() > 0 {
		return p.NominalTotalBalance
	}
	p.NominalTotalBalance = new(big.Int).Set(custodian)
	return p.NominalTotalBalance
}

// projectedSupply mirrors effectiveSupply without the lazy seed, for
// read-only projections.
func (p *Pool) projectedSupply(custodian *big.Int) *big.Int {
	if p.BonusMode && p.NominalTotalBalance.Sign() > 0 {
		return p.NominalTotalBalance
	}
	return custodian
}

func validatePoolParams(depositFeeBP, harvestInterval uint64) error {
	if depositFeeBP > feeDivisor {
		return ErrFeeTooHigh
	}
	if harvestInterval > maxHarvestWindow {
		return ErrHarvestIntervalTooLong
	}
	return nil
}
