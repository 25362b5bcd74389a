package farm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"farmLedger/internal/model"
	"farmLedger/internal/token"
)

func (f *Farm) requireOwnerLocked(caller common.Address) error {
	if caller != f.owner {
		return fmt.Errorf("%w: owner", ErrUnauthorized)
	}
	return nil
}

// AddPool registers a new pool. When withUpdate is set every existing pool is
// refreshed first so the weight change cannot reach back in time.
func (f *Farm) AddPool(caller common.Address, asset token.StakeAsset, allocPoint, depositFeeBP, harvestInterval uint64, withUpdate bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireOwnerLocked(caller); err != nil {
		return 0, err
	}
	if err := validatePoolParams(depositFeeBP, harvestInterval); err != nil {
		return 0, err
	}
	if _, ok := f.poolByAsset[asset.Address()]; ok {
		return 0, fmt.Errorf("%w: %s", ErrDuplicatePool, asset.Address().Hex())
	}
	if withUpdate {
		if err := f.massUpdateLocked(); err != nil {
			return 0, err
		}
	}

	lastReward := f.now()
	if f.startTime > lastReward {
		lastReward = f.startTime
	}
	pool := &Pool{
		Asset:               asset,
		AllocPoint:          allocPoint,
		LastRewardTime:      lastReward,
		AccRewardPerShare:   big.NewInt(0),
		DepositFeeBP:        depositFeeBP,
		HarvestInterval:     harvestInterval,
		NominalTotalBalance: big.NewInt(0),
	}
	f.pools = append(f.pools, pool)
	pid := len(f.pools) - 1
	f.poolByAsset[asset.Address()] = pid
	f.totalAllocPoint += allocPoint

	f.logger.Info("pool added",
		zap.Int("pool", pid),
		zap.String("asset", asset.Address().Hex()),
		zap.Uint64("alloc_point", allocPoint),
		zap.Uint64("deposit_fee_bp", depositFeeBP),
		zap.Uint64("harvest_interval", harvestInterval),
	)
	return pid, nil
}

// SetPool updates a pool's weight, fee, and harvest interval.
func (f *Farm) SetPool(caller common.Address, pid int, allocPoint, depositFeeBP, harvestInterval uint64, withUpdate bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireOwnerLocked(caller); err != nil {
		return err
	}
	pool, err := f.poolLocked(pid)
	if err != nil {
		return err
	}
	if err := validatePoolParams(depositFeeBP, harvestInterval); err != nil {
		return err
	}
	if withUpdate {
		if err := f.massUpdateLocked(); err != nil {
			return err
		}
	}

	f.totalAllocPoint = f.totalAllocPoint - pool.AllocPoint + allocPoint
	pool.AllocPoint = allocPoint
	pool.DepositFeeBP = depositFeeBP
	pool.HarvestInterval = harvestInterval
	return nil
}

// SetBonusMode switches a pool between live-balance and nominal-balance
// accounting.
func (f *Farm) SetBonusMode(caller common.Address, pid int, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireOwnerLocked(caller); err != nil {
		return err
	}
	pool, err := f.poolLocked(pid)
	if err != nil {
		return err
	}
	if err := f.updatePoolLocked(pool); err != nil {
		return err
	}
	pool.BonusMode = enabled
	return nil
}

// SetEmissionRate changes the global reward rate. Every pool is refreshed
// first so already-elapsed time accrues at the old rate.
func (f *Farm) SetEmissionRate(caller common.Address, rate *big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireOwnerLocked(caller); err != nil {
		return err
	}
	if rate == nil || rate.Sign() < 0 {
		return fmt.Errorf("emission rate must be non-negative")
	}
	if err := f.massUpdateLocked(); err != nil {
		return err
	}

	old := f.rewardPerSecond
	f.rewardPerSecond = new(big.Int).Set(rate)
	f.emitLocked(model.Event{
		Kind:    model.EventEmissionRateChange,
		OldRate: old.String(),
		NewRate: rate.String(),
	})
	f.logger.Info("emission rate changed",
		zap.String("old", old.String()),
		zap.String("new", rate.String()),
	)
	return nil
}

// SetDevSink hands the dev share to a new address; only the current holder
// may move it.
func (f *Farm) SetDevSink(caller, sink common.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if caller != f.devSink {
		return fmt.Errorf("%w: dev sink", ErrUnauthorized)
	}
	f.devSink = sink
	return nil
}

// SetFeeSink hands deposit fees to a new address; only the current holder
// may move it.
func (f *Farm) SetFeeSink(caller, sink common.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if caller != f.feeSink {
		return fmt.Errorf("%w: fee sink", ErrUnauthorized)
	}
	f.feeSink = sink
	return nil
}

// SetReferralRegistry installs the optional referral collaborator.
func (f *Farm) SetReferralRegistry(caller common.Address, registry token.ReferralRegistry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireOwnerLocked(caller); err != nil {
		return err
	}
	f.referrals = registry
	return nil
}

// SetCommissionRate sets the referral commission in basis points, capped at
// 10%.
func (f *Farm) SetCommissionRate(caller common.Address, bp uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireOwnerLocked(caller); err != nil {
		return err
	}
	if bp > maxCommissionBP {
		return fmt.Errorf("%w: %d", ErrCommissionTooHigh, bp)
	}
	f.commissionBP = bp
	return nil
}

// TransferOwnership moves the administrative role to a new owner.
func (f *Farm) TransferOwnership(caller, newOwner common.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireOwnerLocked(caller); err != nil {
		return err
	}
	if newOwner == (common.Address{}) {
		return fmt.Errorf("new owner must not be the zero address")
	}
	f.owner = newOwner
	return nil
}
