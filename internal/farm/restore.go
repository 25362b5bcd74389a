package farm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"farmLedger/internal/model"
)

// Custodian returns the address holding staked assets and the reward pot.
func (f *Farm) Custodian() common.Address {
	return f.custodian
}

// Restore replaces accumulator and position state with persisted snapshot
// rows. Pools must already be registered with matching assets; snapshot
// values win over construction-time parameters for everything an admin can
// change at runtime. The reward pot is topped up to cover the entitlement
// the restored positions carry, so the pot does not start short after a
// restart.
func (f *Farm) Restore(pools []model.PoolSnapshot, positions []model.PositionSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, snap := range pools {
		if snap.PoolID < 0 || snap.PoolID >= len(f.pools) {
			return fmt.Errorf("restore pool %d: not registered", snap.PoolID)
		}
		pool := f.pools[snap.PoolID]
		if !common.IsHexAddress(snap.Asset) || pool.Asset.Address() != common.HexToAddress(snap.Asset) {
			return fmt.Errorf("restore pool %d: asset %s does not match %s",
				snap.PoolID, snap.Asset, pool.Asset.Address().Hex())
		}
		acc, ok := new(big.Int).SetString(snap.AccRewardPerShare, 10)
		if !ok || acc.Sign() < 0 {
			return fmt.Errorf("restore pool %d: bad accumulator %q", snap.PoolID, snap.AccRewardPerShare)
		}
		nominal, ok := new(big.Int).SetString(snap.NominalTotalBalance, 10)
		if !ok || nominal.Sign() < 0 {
			return fmt.Errorf("restore pool %d: bad nominal balance %q", snap.PoolID, snap.NominalTotalBalance)
		}

		pool.AllocPoint = snap.AllocPoint
		pool.LastRewardTime = snap.LastRewardTime
		pool.AccRewardPerShare = acc
		pool.DepositFeeBP = snap.DepositFeeBP
		pool.HarvestInterval = snap.HarvestInterval
		pool.BonusMode = snap.BonusMode
		pool.NominalTotalBalance = nominal
	}

	f.totalAllocPoint = 0
	for _, pool := range f.pools {
		f.totalAllocPoint += pool.AllocPoint
	}

	f.positions = make(map[positionKey]*Position, len(positions))
	f.totalLockedUp = big.NewInt(0)
	owed := big.NewInt(0)

	for _, snap := range positions {
		if snap.PoolID < 0 || snap.PoolID >= len(f.pools) {
			return fmt.Errorf("restore position: pool %d not registered", snap.PoolID)
		}
		if !common.IsHexAddress(snap.User) {
			return fmt.Errorf("restore position: bad user %q", snap.User)
		}
		amount, ok := new(big.Int).SetString(snap.Amount, 10)
		if !ok || amount.Sign() < 0 {
			return fmt.Errorf("restore position: bad amount %q", snap.Amount)
		}
		debt, ok := new(big.Int).SetString(snap.RewardDebt, 10)
		if !ok || debt.Sign() < 0 {
			return fmt.Errorf("restore position: bad debt %q", snap.RewardDebt)
		}
		lockedUp, ok := new(big.Int).SetString(snap.RewardLockedUp, 10)
		if !ok || lockedUp.Sign() < 0 {
			return fmt.Errorf("restore position: bad lockup %q", snap.RewardLockedUp)
		}

		pos := &Position{
			Amount:           amount,
			RewardDebt:       debt,
			RewardLockedUp:   lockedUp,
			NextHarvestUntil: snap.NextHarvestUntil,
			LoyaltyActive:    snap.LoyaltyActive,
			LoyaltySince:     snap.LoyaltySince,
			BonusMultiplier:  snap.BonusMultiplier,
		}
		f.positions[positionKey{pool: snap.PoolID, user: common.HexToAddress(snap.User)}] = pos
		f.totalLockedUp.Add(f.totalLockedUp, lockedUp)

		pending := shareReward(pos.effectiveShare(), f.pools[snap.PoolID].AccRewardPerShare)
		pending.Sub(pending, debt)
		if pending.Sign() < 0 {
			return fmt.Errorf("%w: restored debt %s exceeds entitlement for %s in pool %d",
				ErrInvariant, debt, snap.User, snap.PoolID)
		}
		owed.Add(owed, pending)
		owed.Add(owed, lockedUp)
	}

	// Top up rather than mint outright so restoring into a warm engine does
	// not inflate the pot.
	shortfall := new(big.Int).Sub(owed, f.reward.BalanceOf(f.custodian))
	if shortfall.Sign() > 0 {
		if err := f.reward.Mint(f.custodian, shortfall); err != nil {
			return fmt.Errorf("restore reward pot: %w", err)
		}
	}
	return nil
}
