// Package farm implements the staking-reward accrual engine: per-pool
// accumulator refresh against elapsed time, per-user debt and lockup
// bookkeeping, loyalty bonus multipliers, and referral commissions.
package farm

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"farmLedger/internal/model"
	"farmLedger/internal/token"
)

// EventSink receives observable events for off-core consumers.
type EventSink interface {
	Emit(event model.Event)
}

// Config carries the engine's global configuration.
type Config struct {
	// Custodian is the address holding staked assets and the reward pot.
	Custodian common.Address
	Owner     common.Address
	DevSink   common.Address
	FeeSink   common.Address

	RewardPerSecond *big.Int
	// StartTime is when emission and loyalty timers begin.
	StartTime uint64

	// Now overrides the clock; nil means wall-clock unix seconds.
	Now func() uint64
}

// Farm is the shared ledger. One mutex serializes every mutating action so
// the refresh-then-settle-then-mutate sequence is atomic; read queries take
// the same lock briefly and never persist accumulator changes.
type Farm struct {
	mu     sync.Mutex
	logger *zap.Logger
	events EventSink
	now    func() uint64

	reward    token.RewardAsset
	custodian common.Address
	owner     common.Address
	devSink   common.Address
	feeSink   common.Address

	rewardPerSecond *big.Int
	startTime       uint64

	pools           []*Pool
	poolByAsset     map[common.Address]int
	positions       map[positionKey]*Position
	totalAllocPoint uint64
	totalLockedUp   *big.Int

	referrals    token.ReferralRegistry
	commissionBP uint64
}

func New(cfg Config, reward token.RewardAsset, events EventSink, logger *zap.Logger) *Farm {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = noopSink{}
	}
	now := cfg.Now
	if now == nil {
		now = unixNow
	}
	rate := cfg.RewardPerSecond
	if rate == nil {
		rate = big.NewInt(0)
	}
	return &Farm{
		logger:          logger,
		events:          events,
		now:             now,
		reward:          reward,
		custodian:       cfg.Custodian,
		owner:           cfg.Owner,
		devSink:         cfg.DevSink,
		feeSink:         cfg.FeeSink,
		rewardPerSecond: new(big.Int).Set(rate),
		startTime:       cfg.StartTime,
		poolByAsset:     make(map[common.Address]int),
		positions:       make(map[positionKey]*Position),
		totalLockedUp:   big.NewInt(0),
	}
}

// PoolCount returns the number of registered pools.
func (f *Farm) PoolCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pools)
}

func (f *Farm) poolLocked(pid int) (*Pool, error) {
	if pid < 0 || pid >= len(f.pools) {
		return nil, fmt.Errorf("%w: %d", ErrPoolNotFound, pid)
	}
	return f.pools[pid], nil
}

func (f *Farm) positionLocked(pid int, user common.Address) *Position {
	key := positionKey{pool: pid, user: user}
	pos, ok := f.positions[key]
	if !ok {
		pos = newPosition()
		f.positions[key] = pos
	}
	return pos
}

// peekPositionLocked looks a position up without creating it, for read paths.
func (f *Farm) peekPositionLocked(pid int, user common.Address) *Position {
	if pos, ok := f.positions[positionKey{pool: pid, user: user}]; ok {
		return pos
	}
	return newPosition()
}

// updatePoolLocked refreshes a pool's accumulator for elapsed time. It is
// idempotent; calling it twice at the same timestamp changes nothing.
func (f *Farm) updatePoolLocked(pool *Pool) error {
	now := f.now()
	if now <= pool.LastRewardTime {
		return nil
	}
	supply := pool.effectiveSupply(pool.Asset.BalanceOf(f.custodian))
	if supply.Sign() == 0 || pool.AllocPoint == 0 || f.totalAllocPoint == 0 {
		// Advancing the clock without accrual keeps reward from being
		// emitted into an empty pool and lost.
		pool.LastRewardTime = now
		return nil
	}

	reward := intervalReward(now-pool.LastRewardTime, f.rewardPerSecond, pool.AllocPoint, f.totalAllocPoint)
	devCut := new(big.Int).Div(reward, big.NewInt(devShareDivisor))
	if err := f.reward.Mint(f.devSink, devCut); err != nil {
		return fmt.Errorf("mint dev share: %w", err)
	}
	if err := f.reward.Mint(f.custodian, reward); err != nil {
		return fmt.Errorf("mint pool reward: %w", err)
	}

	pool.AccRewardPerShare.Add(pool.AccRewardPerShare, accrualPerShare(reward, supply))
	pool.LastRewardTime = now
	return nil
}

// UpdatePool refreshes a single pool's accumulator. Safe to call redundantly.
func (f *Farm) UpdatePool(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pool, err := f.poolLocked(pid)
	if err != nil {
		return err
	}
	return f.updatePoolLocked(pool)
}

// MassUpdatePools refreshes every pool, e.g. from the administrative sweep.
func (f *Farm) MassUpdatePools() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.massUpdateLocked()
}

func (f *Farm) massUpdateLocked() error {
	for pid, pool := range f.pools {
		if err := f.updatePoolLocked(pool); err != nil {
			return fmt.Errorf("update pool %d: %w", pid, err)
		}
	}
	return nil
}

// PendingReward projects the user's claim as of now without mutating any
// accumulator state.
func (f *Farm) PendingReward(pid int, user common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pool, err := f.poolLocked(pid)
	if err != nil {
		return nil, err
	}
	pos := f.peekPositionLocked(pid, user)

	acc := new(big.Int).Set(pool.AccRewardPerShare)
	now := f.now()
	if now > pool.LastRewardTime && pool.AllocPoint > 0 && f.totalAllocPoint > 0 {
		supply := pool.projectedSupply(pool.Asset.BalanceOf(f.custodian))
		if supply.Sign() > 0 {
			reward := intervalReward(now-pool.LastRewardTime, f.rewardPerSecond, pool.AllocPoint, f.totalAllocPoint)
			acc.Add(acc, accrualPerShare(reward, supply))
		}
	}

	pending := shareReward(pos.effectiveShare(), acc)
	pending.Sub(pending, pos.RewardDebt)
	pending.Add(pending, pos.RewardLockedUp)
	return pending, nil
}

// CanHarvest reports whether the user's harvest window is open.
func (f *Farm) CanHarvest(pid int, user common.Address) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.poolLocked(pid); err != nil {
		return false, err
	}
	pos := f.peekPositionLocked(pid, user)
	return f.now() >= pos.NextHarvestUntil, nil
}

// TotalLockedUp returns the global deferred-reward total, an accounting
// cross-check rather than a payout input.
func (f *Farm) TotalLockedUp() *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.totalLockedUp)
}

// RewardPerSecond returns the current global emission rate.
func (f *Farm) RewardPerSecond() *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.rewardPerSecond)
}

func (f *Farm) emitLocked(event model.Event) {
	event.Timestamp = f.now()
	f.events.Emit(event)
}

type noopSink struct{}

func (noopSink) Emit(model.Event) {}
