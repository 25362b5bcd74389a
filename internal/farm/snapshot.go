package farm

import "farmLedger/internal/model"

// Snapshot copies the ledger into storage rows. Taken under the action lock,
// so rows are mutually consistent.
func (f *Farm) Snapshot() ([]model.PoolSnapshot, []model.PositionSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pools := make([]model.PoolSnapshot, 0, len(f.pools))
	for pid, pool := range f.pools {
		pools = append(pools, model.PoolSnapshot{
			PoolID:              pid,
			Asset:               pool.Asset.Address().Hex(),
			AllocPoint:          pool.AllocPoint,
			LastRewardTime:      pool.LastRewardTime,
			AccRewardPerShare:   pool.AccRewardPerShare.String(),
			DepositFeeBP:        pool.DepositFeeBP,
			HarvestInterval:     pool.HarvestInterval,
			BonusMode:           pool.BonusMode,
			NominalTotalBalance: pool.NominalTotalBalance.String(),
			StakedTotal:         pool.Asset.BalanceOf(f.custodian).String(),
		})
	}

	positions := make([]model.PositionSnapshot, 0, len(f.positions))
	for key, pos := range f.positions {
		positions = append(positions, model.PositionSnapshot{
			PoolID:           key.pool,
			User:             key.user.Hex(),
			Amount:           pos.Amount.String(),
			RewardDebt:       pos.RewardDebt.String(),
			RewardLockedUp:   pos.RewardLockedUp.String(),
			NextHarvestUntil: pos.NextHarvestUntil,
			LoyaltyActive:    pos.LoyaltyActive,
			LoyaltySince:     pos.LoyaltySince,
			BonusMultiplier:  pos.BonusMultiplier,
		})
	}
	return pools, positions
}
