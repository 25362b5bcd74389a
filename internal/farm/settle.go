package farm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"farmLedger/internal/model"
)

// settleLocked resolves the user's pending reward after the pool accumulator
// has been refreshed and before the triggering action mutates the stake.
// Inside the harvest window the reward (plus any deferred balance) is paid;
// outside it the reward is added to the lockup instead. RewardDebt is left
// for the caller to recompute from the post-mutation effective share.
func (f *Farm) settleLocked(pid int, pool *Pool, user common.Address, pos *Position) error {
	now := f.now()
	if pos.NextHarvestUntil == 0 {
		pos.NextHarvestUntil = now + pool.HarvestInterval
	}

	pending := shareReward(pos.effectiveShare(), pool.AccRewardPerShare)
	pending.Sub(pending, pos.RewardDebt)
	if pending.Sign() < 0 {
		return fmt.Errorf("%w: pending %s for %s in pool %d", ErrInvariant, pending, user.Hex(), pid)
	}

	if now < pos.NextHarvestUntil {
		if pending.Sign() > 0 {
			pos.RewardLockedUp.Add(pos.RewardLockedUp, pending)
			f.totalLockedUp.Add(f.totalLockedUp, pending)
			f.emitLocked(model.Event{
				Kind:   model.EventRewardLockedUp,
				PoolID: pid,
				User:   user.Hex(),
				Amount: pending.String(),
			})
		}
		return nil
	}

	if pending.Sign() == 0 && pos.RewardLockedUp.Sign() == 0 {
		return nil
	}

	total := new(big.Int).Add(pending, pos.RewardLockedUp)
	f.totalLockedUp.Sub(f.totalLockedUp, pos.RewardLockedUp)
	pos.RewardLockedUp = big.NewInt(0)
	pos.NextHarvestUntil = now + pool.HarvestInterval

	paid, err := f.payRewardLocked(user, total)
	if err != nil {
		return fmt.Errorf("pay reward: %w", err)
	}
	if paid.Cmp(total) < 0 {
		f.logger.Warn("reward pot shortfall",
			zap.Int("pool", pid),
			zap.String("user", user.Hex()),
			zap.String("owed", total.String()),
			zap.String("paid", paid.String()),
		)
	}

	// Commission is computed on the pre-bonus base of the payout.
	f.payReferralCommissionLocked(user, grossBase(total, pos.multiplier()))

	if pool.BonusMode && pos.LoyaltyActive {
		if pos.LoyaltySince == 0 {
			pos.LoyaltySince = now
		}
		pos.BonusMultiplier = TierMultiplier(now - pos.LoyaltySince)
	}
	return nil
}

// payRewardLocked transfers out of the pot, capped to its available balance.
// A shortfall degrades the payout rather than failing the action; rounding
// dust across pools may leave the pot marginally short of the sum of claims.
func (f *Farm) payRewardLocked(to common.Address, amount *big.Int) (*big.Int, error) {
	available := f.reward.BalanceOf(f.custodian)
	pay := amount
	if available.Cmp(amount) < 0 {
		pay = available
	}
	if pay.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if err := f.reward.Transfer(f.custodian, to, pay); err != nil {
		return nil, err
	}
	return new(big.Int).Set(pay), nil
}
