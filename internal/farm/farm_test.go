package farm

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"farmLedger/internal/model"
	"farmLedger/internal/token"
)

var (
	testCustodian = common.HexToAddress("0x00000000000000000000000000000000000000FA")
	testOwner     = common.HexToAddress("0x0000000000000000000000000000000000000001")
	testDev       = common.HexToAddress("0x0000000000000000000000000000000000000002")
	testFee       = common.HexToAddress("0x0000000000000000000000000000000000000003")
	alice         = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	bob           = common.HexToAddress("0x00000000000000000000000000000000000000B1")
	carol         = common.HexToAddress("0x00000000000000000000000000000000000000C1")
	stakeAddr     = common.HexToAddress("0x00000000000000000000000000000000000000D1")
)

type testClock struct {
	t uint64
}

func (c *testClock) now() uint64 { return c.t }

type captureSink struct {
	events []model.Event
}

func (s *captureSink) Emit(e model.Event) { s.events = append(s.events, e) }

func (s *captureSink) lastOfKind(kind string) (model.Event, bool) {
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].Kind == kind {
			return s.events[i], true
		}
	}
	return model.Event{}, false
}

type testFarm struct {
	farm   *Farm
	stake  *token.MemoryToken
	reward *token.MemoryToken
	clock  *testClock
	sink   *captureSink
}

func newTestFarm(t *testing.T, ratePerSec int64, feeBP, harvestInterval uint64) *testFarm {
	t.Helper()
	clock := &testClock{}
	sink := &captureSink{}
	stake := token.NewMemoryToken(stakeAddr, 0)
	reward := token.NewMemoryToken(common.HexToAddress("0xE1"), 0)

	f := New(Config{
		Custodian:       testCustodian,
		Owner:           testOwner,
		DevSink:         testDev,
		FeeSink:         testFee,
		RewardPerSecond: big.NewInt(ratePerSec),
		Now:             clock.now,
	}, reward, sink, nil)

	if _, err := f.AddPool(testOwner, stake, 100, feeBP, harvestInterval, false); err != nil {
		t.Fatalf("add pool: %v", err)
	}
	return &testFarm{farm: f, stake: stake, reward: reward, clock: clock, sink: sink}
}

func (tf *testFarm) fund(t *testing.T, user common.Address, amount int64) {
	t.Helper()
	if err := tf.stake.Mint(user, big.NewInt(amount)); err != nil {
		t.Fatalf("mint stake: %v", err)
	}
}

func (tf *testFarm) deposit(t *testing.T, user common.Address, amount int64) {
	t.Helper()
	if err := tf.farm.Deposit(0, user, big.NewInt(amount), common.Address{}); err != nil {
		t.Fatalf("deposit %d for %s: %v", amount, user.Hex(), err)
	}
}

func (tf *testFarm) pending(t *testing.T, user common.Address) *big.Int {
	t.Helper()
	p, err := tf.farm.PendingReward(0, user)
	if err != nil {
		t.Fatalf("pending reward: %v", err)
	}
	return p
}

// Scenario A: sole pool, rate 10/s, single user holds 100% of the supply.
func TestPendingRewardSoleStaker(t *testing.T) {
	tf := newTestFarm(t, 10, 0, 0)
	tf.fund(t, alice, 100)
	tf.deposit(t, alice, 100)

	tf.clock.t = 10
	if got := tf.pending(t, alice); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("pending = %s, want 100", got)
	}
}

// Scenario B: a later entrant earns only for the time it was staked.
func TestPendingRewardTimeWeighted(t *testing.T) {
	tf := newTestFarm(t, 10, 0, 0)
	tf.fund(t, alice, 100)
	tf.fund(t, bob, 100)

	tf.deposit(t, alice, 100)
	tf.clock.t = 5
	tf.deposit(t, bob, 100)

	tf.clock.t = 10
	alicePending := tf.pending(t, alice)
	bobPending := tf.pending(t, bob)

	if alicePending.Cmp(big.NewInt(75)) != 0 {
		t.Fatalf("alice pending = %s, want 75", alicePending)
	}
	if bobPending.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("bob pending = %s, want 25", bobPending)
	}
	if alicePending.Cmp(bobPending) <= 0 {
		t.Fatalf("first staker must earn more: %s <= %s", alicePending, bobPending)
	}
}

// Scenario C: a 500 bp deposit fee nets 950 of 1000 and routes 50 to the sink.
func TestDepositFee(t *testing.T) {
	tf := newTestFarm(t, 10, 500, 0)
	tf.fund(t, alice, 1000)
	tf.deposit(t, alice, 1000)

	pos := tf.farm.positions[positionKey{pool: 0, user: alice}]
	if pos.Amount.Cmp(big.NewInt(950)) != 0 {
		t.Fatalf("staked = %s, want 950", pos.Amount)
	}
	if got := tf.stake.BalanceOf(testFee); got.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("fee sink = %s, want 50", got)
	}

	ev, ok := tf.sink.lastOfKind(model.EventDeposit)
	if !ok || ev.Amount != "950" {
		t.Fatalf("deposit event amount = %q, want 950", ev.Amount)
	}
}

// Scenario D: a closed harvest window defers reward; the next open-window
// action pays the deferred amount plus fresh accrual in one payment.
func TestHarvestLockupDeferAndRelease(t *testing.T) {
	tf := newTestFarm(t, 10, 0, 100)
	tf.fund(t, alice, 200)
	tf.deposit(t, alice, 100)

	tf.clock.t = 50
	tf.deposit(t, alice, 0) // window closed, must defer

	pos := tf.farm.positions[positionKey{pool: 0, user: alice}]
	if pos.RewardLockedUp.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("locked up = %s, want 500", pos.RewardLockedUp)
	}
	if got := tf.reward.BalanceOf(alice); got.Sign() != 0 {
		t.Fatalf("paid before window opened: %s", got)
	}
	if got := tf.farm.TotalLockedUp(); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("global locked up = %s, want 500", got)
	}
	if _, ok := tf.sink.lastOfKind(model.EventRewardLockedUp); !ok {
		t.Fatalf("missing lockup event")
	}

	tf.clock.t = 101
	if err := tf.farm.Harvest(0, alice); err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if got := tf.reward.BalanceOf(alice); got.Cmp(big.NewInt(1010)) != 0 {
		t.Fatalf("harvest paid %s, want 1010", got)
	}
	if pos.RewardLockedUp.Sign() != 0 {
		t.Fatalf("locked up not cleared: %s", pos.RewardLockedUp)
	}
	if pos.NextHarvestUntil != 201 {
		t.Fatalf("next harvest at %d, want 201", pos.NextHarvestUntil)
	}
	if got := tf.farm.TotalLockedUp(); got.Sign() != 0 {
		t.Fatalf("global locked up = %s, want 0", got)
	}
}

// Scenario E: any positive withdrawal forfeits loyalty.
func TestWithdrawResetsLoyalty(t *testing.T) {
	tf := newTestFarm(t, 10, 0, 0)
	tf.fund(t, alice, 100)
	tf.deposit(t, alice, 100)

	pos := tf.farm.positions[positionKey{pool: 0, user: alice}]
	pos.BonusMultiplier = 30
	pos.LoyaltySince = 1

	tf.clock.t = 10
	if err := tf.farm.Withdraw(0, alice, big.NewInt(1)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if pos.BonusMultiplier != 10 || pos.LoyaltyActive || pos.LoyaltySince != 0 {
		t.Fatalf("loyalty not reset: mult=%d active=%v since=%d",
			pos.BonusMultiplier, pos.LoyaltyActive, pos.LoyaltySince)
	}
}

func TestWithdrawInsufficientStake(t *testing.T) {
	tf := newTestFarm(t, 10, 0, 0)
	tf.fund(t, alice, 100)
	tf.deposit(t, alice, 100)

	snapshotBefore, _ := tf.farm.Snapshot()
	err := tf.farm.Withdraw(0, alice, big.NewInt(101))
	if !errors.Is(err, ErrInsufficientStake) {
		t.Fatalf("err = %v, want ErrInsufficientStake", err)
	}
	snapshotAfter, _ := tf.farm.Snapshot()
	if snapshotBefore[0] != snapshotAfter[0] {
		t.Fatalf("rejected withdraw mutated the pool: %+v != %+v", snapshotBefore[0], snapshotAfter[0])
	}
}

func TestRefreshIdempotent(t *testing.T) {
	tf := newTestFarm(t, 10, 0, 0)
	tf.fund(t, alice, 100)
	tf.deposit(t, alice, 100)

	tf.clock.t = 10
	if err := tf.farm.UpdatePool(0); err != nil {
		t.Fatalf("update: %v", err)
	}
	acc := new(big.Int).Set(tf.farm.pools[0].AccRewardPerShare)
	if err := tf.farm.UpdatePool(0); err != nil {
		t.Fatalf("second update: %v", err)
	}
	if acc.Cmp(tf.farm.pools[0].AccRewardPerShare) != 0 {
		t.Fatalf("accumulator moved on redundant refresh: %s -> %s", acc, tf.farm.pools[0].AccRewardPerShare)
	}
}

func TestAccumulatorMonotonic(t *testing.T) {
	tf := newTestFarm(t, 10, 0, 0)
	tf.fund(t, alice, 100)
	tf.deposit(t, alice, 100)

	prev := big.NewInt(0)
	for _, ts := range []uint64{3, 7, 11, 30, 31, 100} {
		tf.clock.t = ts
		if err := tf.farm.UpdatePool(0); err != nil {
			t.Fatalf("update at %d: %v", ts, err)
		}
		acc := tf.farm.pools[0].AccRewardPerShare
		if acc.Cmp(prev) < 0 {
			t.Fatalf("accumulator decreased at %d: %s < %s", ts, acc, prev)
		}
		prev = new(big.Int).Set(acc)
	}
}

// Settlement must zero the projection: right after a deposit or withdraw the
// user's pending reward is exactly the (possibly deferred) lockup balance.
func TestDebtZeroAfterSettlement(t *testing.T) {
	tf := newTestFarm(t, 10, 0, 0)
	tf.fund(t, alice, 200)
	tf.deposit(t, alice, 100)

	tf.clock.t = 10
	tf.deposit(t, alice, 50)
	if got := tf.pending(t, alice); got.Sign() != 0 {
		t.Fatalf("pending after settlement = %s, want 0", got)
	}

	tf.clock.t = 20
	if err := tf.farm.Withdraw(0, alice, big.NewInt(30)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := tf.pending(t, alice); got.Sign() != 0 {
		t.Fatalf("pending after withdraw = %s, want 0", got)
	}
}

// Conservation: claims never exceed what was minted into the pot.
func TestRewardConservation(t *testing.T) {
	tf := newTestFarm(t, 10, 0, 0)
	tf.fund(t, alice, 1000)
	tf.fund(t, bob, 1000)
	tf.fund(t, carol, 1000)

	tf.deposit(t, alice, 137)
	tf.clock.t = 13
	tf.deposit(t, bob, 411)
	tf.clock.t = 29
	tf.deposit(t, carol, 950)
	tf.clock.t = 57
	if err := tf.farm.Withdraw(0, bob, big.NewInt(200)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	tf.clock.t = 100
	if err := tf.farm.UpdatePool(0); err != nil {
		t.Fatalf("update: %v", err)
	}

	claims := big.NewInt(0)
	for _, user := range []common.Address{alice, bob, carol} {
		claims.Add(claims, tf.pending(t, user))
	}
	pot := tf.reward.BalanceOf(testCustodian)
	if claims.Cmp(pot) > 0 {
		t.Fatalf("claims %s exceed pot %s", claims, pot)
	}
}

func TestEmptyPoolAccruesNothing(t *testing.T) {
	tf := newTestFarm(t, 10, 0, 0)

	tf.clock.t = 50
	if err := tf.farm.UpdatePool(0); err != nil {
		t.Fatalf("update: %v", err)
	}
	pool := tf.farm.pools[0]
	if pool.AccRewardPerShare.Sign() != 0 {
		t.Fatalf("accumulator = %s on empty pool", pool.AccRewardPerShare)
	}
	if pool.LastRewardTime != 50 {
		t.Fatalf("last reward time = %d, want 50", pool.LastRewardTime)
	}

	// A deposit right after must not back-pay the empty stretch.
	tf.fund(t, alice, 100)
	tf.deposit(t, alice, 100)
	tf.clock.t = 60
	if got := tf.pending(t, alice); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("pending = %s, want 100", got)
	}
}

func TestDevShareMinted(t *testing.T) {
	tf := newTestFarm(t, 10, 0, 0)
	tf.fund(t, alice, 100)
	tf.deposit(t, alice, 100)

	tf.clock.t = 10
	if err := tf.farm.UpdatePool(0); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := tf.reward.BalanceOf(testDev); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("dev share = %s, want 10", got)
	}
	if got := tf.reward.BalanceOf(testCustodian); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("pot = %s, want 100", got)
	}
}

func TestEmergencyWithdrawZerosPosition(t *testing.T) {
	tf := newTestFarm(t, 10, 0, 100)
	tf.fund(t, alice, 100)
	tf.deposit(t, alice, 100)

	tf.clock.t = 50
	tf.deposit(t, alice, 0) // defers 500 into lockup

	if err := tf.farm.EmergencyWithdraw(0, alice); err != nil {
		t.Fatalf("emergency withdraw: %v", err)
	}

	if got := tf.stake.BalanceOf(alice); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("returned stake = %s, want 100", got)
	}
	if got := tf.reward.BalanceOf(alice); got.Sign() != 0 {
		t.Fatalf("emergency withdraw paid reward: %s", got)
	}

	pos := tf.farm.positions[positionKey{pool: 0, user: alice}]
	if pos.Amount.Sign() != 0 || pos.RewardDebt.Sign() != 0 || pos.RewardLockedUp.Sign() != 0 ||
		pos.NextHarvestUntil != 0 || pos.LoyaltyActive || pos.LoyaltySince != 0 || pos.BonusMultiplier != 10 {
		t.Fatalf("position not zeroed: %+v", pos)
	}
	if got := tf.farm.TotalLockedUp(); got.Sign() != 0 {
		t.Fatalf("global locked up = %s, want 0", got)
	}
}

// Bonus mode: the nominal balance tracks effective shares through multiplier
// changes, and emergency withdraw removes the pre-reset contribution.
func TestBonusModeNominalBalance(t *testing.T) {
	tf := newTestFarm(t, 10, 0, 0)
	if err := tf.farm.SetBonusMode(testOwner, 0, true); err != nil {
		t.Fatalf("set bonus mode: %v", err)
	}
	tf.clock.t = 1000 // loyalty start of 0 reads as "not started"
	tf.fund(t, alice, 100)
	tf.deposit(t, alice, 100)

	pool := tf.farm.pools[0]
	if pool.NominalTotalBalance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("nominal = %s, want 100", pool.NominalTotalBalance)
	}

	// Seven days of loyalty promotes the multiplier to 1.5× on harvest.
	tf.clock.t = 1000 + 7*day
	if err := tf.farm.Harvest(0, alice); err != nil {
		t.Fatalf("harvest: %v", err)
	}
	pos := tf.farm.positions[positionKey{pool: 0, user: alice}]
	if pos.BonusMultiplier != 15 {
		t.Fatalf("multiplier = %d, want 15", pos.BonusMultiplier)
	}
	if pool.NominalTotalBalance.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("nominal = %s, want 150", pool.NominalTotalBalance)
	}

	if err := tf.farm.EmergencyWithdraw(0, alice); err != nil {
		t.Fatalf("emergency withdraw: %v", err)
	}
	if pool.NominalTotalBalance.Sign() != 0 {
		t.Fatalf("nominal after emergency withdraw = %s, want 0", pool.NominalTotalBalance)
	}
}

func TestCanHarvest(t *testing.T) {
	tf := newTestFarm(t, 10, 0, 100)
	tf.fund(t, alice, 100)
	tf.deposit(t, alice, 100)

	ok, err := tf.farm.CanHarvest(0, alice)
	if err != nil || ok {
		t.Fatalf("window open too early: ok=%v err=%v", ok, err)
	}
	tf.clock.t = 100
	ok, err = tf.farm.CanHarvest(0, alice)
	if err != nil || !ok {
		t.Fatalf("window should be open: ok=%v err=%v", ok, err)
	}
}

func TestReferralCommissionOnHarvest(t *testing.T) {
	tf := newTestFarm(t, 10, 0, 0)
	referrals := token.NewMemoryReferrals()
	if err := tf.farm.SetReferralRegistry(testOwner, referrals); err != nil {
		t.Fatalf("set registry: %v", err)
	}
	if err := tf.farm.SetCommissionRate(testOwner, 500); err != nil {
		t.Fatalf("set commission: %v", err)
	}

	tf.fund(t, alice, 100)
	if err := tf.farm.Deposit(0, alice, big.NewInt(100), bob); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if ref, ok := referrals.Referrer(alice); !ok || ref != bob {
		t.Fatalf("referrer not recorded: %v %v", ref, ok)
	}

	tf.clock.t = 10 // 100 accrued
	if err := tf.farm.Harvest(0, alice); err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if got := tf.reward.BalanceOf(bob); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("commission = %s, want 5", got)
	}
	if got := referrals.CommissionTotal(bob); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("recorded commission = %s, want 5", got)
	}
	if _, ok := tf.sink.lastOfKind(model.EventReferralCommission); !ok {
		t.Fatalf("missing commission event")
	}
}

func TestSelfReferralIgnored(t *testing.T) {
	tf := newTestFarm(t, 10, 0, 0)
	referrals := token.NewMemoryReferrals()
	if err := tf.farm.SetReferralRegistry(testOwner, referrals); err != nil {
		t.Fatalf("set registry: %v", err)
	}

	tf.fund(t, alice, 100)
	if err := tf.farm.Deposit(0, alice, big.NewInt(100), alice); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, ok := referrals.Referrer(alice); ok {
		t.Fatalf("self-referral must not be recorded")
	}
}

// Fee-on-transfer assets credit what actually arrived, not what was asked.
func TestTaxedDeposit(t *testing.T) {
	clock := &testClock{}
	taxed := token.NewMemoryToken(stakeAddr, 200) // 2% transfer tax
	reward := token.NewMemoryToken(common.HexToAddress("0xE1"), 0)

	f := New(Config{
		Custodian:       testCustodian,
		Owner:           testOwner,
		DevSink:         testDev,
		FeeSink:         testFee,
		RewardPerSecond: big.NewInt(10),
		Now:             clock.now,
	}, reward, nil, nil)
	if _, err := f.AddPool(testOwner, taxed, 100, 0, 0, false); err != nil {
		t.Fatalf("add pool: %v", err)
	}

	if err := taxed.Mint(alice, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := f.Deposit(0, alice, big.NewInt(1000), common.Address{}); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	pos := f.positions[positionKey{pool: 0, user: alice}]
	if pos.Amount.Cmp(big.NewInt(980)) != 0 {
		t.Fatalf("credited = %s, want 980", pos.Amount)
	}
}

// A pot drained below the owed amount pays what it has and does not fail.
func TestRewardShortfallDegrades(t *testing.T) {
	tf := newTestFarm(t, 10, 0, 0)
	tf.fund(t, alice, 100)
	tf.deposit(t, alice, 100)

	tf.clock.t = 10
	if err := tf.farm.UpdatePool(0); err != nil {
		t.Fatalf("update: %v", err)
	}
	// Drain most of the pot out from under the claim.
	if err := tf.reward.Transfer(testCustodian, carol, big.NewInt(70)); err != nil {
		t.Fatalf("drain: %v", err)
	}

	if err := tf.farm.Harvest(0, alice); err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if got := tf.reward.BalanceOf(alice); got.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("paid %s, want the 30 available", got)
	}
}

// A corrupted debt makes the settlement compute a negative entitlement; the
// action must fail closed and leave the ledger untouched.
func TestSettleNegativePendingFails(t *testing.T) {
	tf := newTestFarm(t, 10, 0, 0)
	tf.fund(t, alice, 100)
	tf.deposit(t, alice, 100)
	tf.clock.t = 10

	pos := tf.farm.positions[positionKey{pool: 0, user: alice}]
	pos.RewardDebt = big.NewInt(1000000)

	if err := tf.farm.Harvest(0, alice); !errors.Is(err, ErrInvariant) {
		t.Fatalf("harvest with corrupted debt: err = %v, want invariant failure", err)
	}
	if got := tf.reward.BalanceOf(alice); got.Sign() != 0 {
		t.Fatalf("corrupted settle paid out %s", got)
	}
}
