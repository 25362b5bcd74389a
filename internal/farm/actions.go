package farm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"farmLedger/internal/model"
)

// Deposit stakes amount into a pool for user. A zero amount settles pending
// reward without changing the stake, which is how a plain harvest is
// expressed. The referrer is recorded once, on the first fee-paying deposit.
func (f *Farm) Deposit(pid int, user common.Address, amount *big.Int, referrer common.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	pool, err := f.poolLocked(pid)
	if err != nil {
		return err
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("deposit amount must be non-negative")
	}
	if amount.Sign() > 0 && pool.Asset.BalanceOf(user).Cmp(amount) < 0 {
		return fmt.Errorf("stake asset balance below deposit amount")
	}

	pos := f.positionLocked(pid, user)
	if pos.BonusMultiplier == 0 {
		pos.BonusMultiplier = baseMultiplier
	}

	if err := f.updatePoolLocked(pool); err != nil {
		return err
	}

	if amount.Sign() > 0 && f.referrals != nil && referrer != (common.Address{}) && referrer != user {
		f.referrals.RecordReferral(user, referrer)
	}

	// The stale effective share leaves the nominal balance before settlement
	// and the updated share re-enters after the stake mutation.
	pool.NominalTotalBalance.Sub(pool.NominalTotalBalance, pos.effectiveShare())
	if err := f.settleLocked(pid, pool, user, pos); err != nil {
		pool.NominalTotalBalance.Add(pool.NominalTotalBalance, pos.effectiveShare())
		return err
	}

	credited := big.NewInt(0)
	if amount.Sign() > 0 {
		received, err := pool.Asset.TransferFrom(user, f.custodian, amount)
		if err != nil {
			pool.NominalTotalBalance.Add(pool.NominalTotalBalance, pos.effectiveShare())
			return fmt.Errorf("pull stake: %w", err)
		}
		credited = new(big.Int).Set(received)
		if pool.DepositFeeBP > 0 {
			fee := new(big.Int).Mul(received, new(big.Int).SetUint64(pool.DepositFeeBP))
			fee.Div(fee, big.NewInt(feeDivisor))
			if fee.Sign() > 0 {
				if err := pool.Asset.Transfer(f.custodian, f.feeSink, fee); err != nil {
					pool.NominalTotalBalance.Add(pool.NominalTotalBalance, pos.effectiveShare())
					return fmt.Errorf("route deposit fee: %w", err)
				}
				credited.Sub(credited, fee)
			}
		}
		pos.Amount.Add(pos.Amount, credited)

		if !pos.LoyaltyActive {
			pos.LoyaltyActive = true
		}
		if pos.LoyaltySince == 0 && f.now() >= f.startTime {
			pos.LoyaltySince = f.now()
		}
	}

	pool.NominalTotalBalance.Add(pool.NominalTotalBalance, pos.effectiveShare())
	pos.RewardDebt = shareReward(pos.effectiveShare(), pool.AccRewardPerShare)

	f.emitLocked(model.Event{
		Kind:   model.EventDeposit,
		PoolID: pid,
		User:   user.Hex(),
		Amount: credited.String(),
	})
	return nil
}

// Harvest settles pending reward without a stake change.
func (f *Farm) Harvest(pid int, user common.Address) error {
	return f.Deposit(pid, user, big.NewInt(0), common.Address{})
}

// Withdraw unstakes amount and returns it to the user. Any positive
// withdrawal forfeits accumulated loyalty.
func (f *Farm) Withdraw(pid int, user common.Address, amount *big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	pool, err := f.poolLocked(pid)
	if err != nil {
		return err
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("withdraw amount must be non-negative")
	}

	pos := f.positionLocked(pid, user)
	if amount.Cmp(pos.Amount) > 0 {
		return fmt.Errorf("%w: %s > %s", ErrInsufficientStake, amount, pos.Amount)
	}
	if pos.BonusMultiplier == 0 {
		pos.BonusMultiplier = baseMultiplier
	}

	if err := f.updatePoolLocked(pool); err != nil {
		return err
	}

	pool.NominalTotalBalance.Sub(pool.NominalTotalBalance, pos.effectiveShare())
	if err := f.settleLocked(pid, pool, user, pos); err != nil {
		pool.NominalTotalBalance.Add(pool.NominalTotalBalance, pos.effectiveShare())
		return err
	}

	if amount.Sign() > 0 {
		if err := pool.Asset.Transfer(f.custodian, user, amount); err != nil {
			pool.NominalTotalBalance.Add(pool.NominalTotalBalance, pos.effectiveShare())
			return fmt.Errorf("return stake: %w", err)
		}
		pos.Amount.Sub(pos.Amount, amount)
		pos.resetLoyalty()
	}

	pool.NominalTotalBalance.Add(pool.NominalTotalBalance, pos.effectiveShare())
	pos.RewardDebt = shareReward(pos.effectiveShare(), pool.AccRewardPerShare)

	f.emitLocked(model.Event{
		Kind:   model.EventWithdraw,
		PoolID: pid,
		User:   user.Hex(),
		Amount: amount.String(),
	})
	return nil
}

// EmergencyWithdraw returns the full stake without settling rewards. Pending
// and locked-up reward are forfeited along with loyalty state.
func (f *Farm) EmergencyWithdraw(pid int, user common.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	pool, err := f.poolLocked(pid)
	if err != nil {
		return err
	}
	pos := f.positionLocked(pid, user)
	amount := new(big.Int).Set(pos.Amount)

	if amount.Sign() > 0 {
		if err := pool.Asset.Transfer(f.custodian, user, amount); err != nil {
			return fmt.Errorf("return stake: %w", err)
		}
	}

	// The nominal adjustment is taken from the pre-reset stake. Deriving it
	// from the already-zeroed amount, as the historical deployment did,
	// leaves the user's stale contribution in bonus-mode pools forever.
	pool.NominalTotalBalance.Sub(pool.NominalTotalBalance, pos.effectiveShare())
	f.totalLockedUp.Sub(f.totalLockedUp, pos.RewardLockedUp)

	pos.Amount = big.NewInt(0)
	pos.RewardDebt = big.NewInt(0)
	pos.RewardLockedUp = big.NewInt(0)
	pos.NextHarvestUntil = 0
	pos.resetLoyalty()

	f.emitLocked(model.Event{
		Kind:   model.EventEmergencyWithdraw,
		PoolID: pid,
		User:   user.Hex(),
		Amount: amount.String(),
	})
	return nil
}
