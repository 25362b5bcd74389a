package token

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

const taxDivisor = 10000

// MemoryToken is an in-memory asset ledger. A non-zero TaxBP makes transfers
// deliver less than requested, mirroring fee-on-transfer tokens.
type MemoryToken struct {
	addr  common.Address
	taxBP uint64

	mu       sync.RWMutex
	balances map[common.Address]*big.Int
}

func NewMemoryToken(addr common.Address, taxBP uint64) *MemoryToken {
	return &MemoryToken{
		addr:     addr,
		taxBP:    taxBP,
		balances: make(map[common.Address]*big.Int),
	}
}

func (t *MemoryToken) Address() common.Address {
	return t.addr
}

func (t *MemoryToken) BalanceOf(holder common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	bal, ok := t.balances[holder]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(bal)
}

func (t *MemoryToken) Mint(to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("mint amount must be non-negative")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.credit(to, amount)
	return nil
}

// Transfer moves the full amount; the tax applies only on TransferFrom, the
// deposit path, which is where fee-on-transfer tokens bite the engine.
func (t *MemoryToken) Transfer(from, to common.Address, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.debit(from, amount); err != nil {
		return err
	}
	t.credit(to, amount)
	return nil
}

// TransferFrom moves amount out of from and reports the amount actually
// credited to the recipient after tax.
func (t *MemoryToken) TransferFrom(from, to common.Address, amount *big.Int) (*big.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.debit(from, amount); err != nil {
		return nil, err
	}
	received := new(big.Int).Set(amount)
	if t.taxBP > 0 {
		tax := new(big.Int).Mul(amount, new(big.Int).SetUint64(t.taxBP))
		tax.Div(tax, big.NewInt(taxDivisor))
		received.Sub(received, tax)
	}
	t.credit(to, received)
	return received, nil
}

func (t *MemoryToken) credit(holder common.Address, amount *big.Int) {
	bal, ok := t.balances[holder]
	if !ok {
		bal = big.NewInt(0)
		t.balances[holder] = bal
	}
	bal.Add(bal, amount)
}

func (t *MemoryToken) debit(holder common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("transfer amount must be non-negative")
	}
	bal, ok := t.balances[holder]
	if !ok || bal.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance for %s", holder.Hex())
	}
	bal.Sub(bal, amount)
	return nil
}

// MemoryReferrals is an in-memory referral registry.
type MemoryReferrals struct {
	mu          sync.RWMutex
	referrers   map[common.Address]common.Address
	commissions map[common.Address]*big.Int
}

func NewMemoryReferrals() *MemoryReferrals {
	return &MemoryReferrals{
		referrers:   make(map[common.Address]common.Address),
		commissions: make(map[common.Address]*big.Int),
	}
}

func (r *MemoryReferrals) RecordReferral(user, referrer common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.referrers[user]; ok {
		return
	}
	r.referrers[user] = referrer
}

func (r *MemoryReferrals) Referrer(user common.Address) (common.Address, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.referrers[user]
	return ref, ok
}

func (r *MemoryReferrals) RecordCommission(referrer common.Address, amount *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total, ok := r.commissions[referrer]
	if !ok {
		total = big.NewInt(0)
		r.commissions[referrer] = total
	}
	total.Add(total, amount)
}

// CommissionTotal returns the accumulated commission recorded for a referrer.
func (r *MemoryReferrals) CommissionTotal(referrer common.Address) *big.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total, ok := r.commissions[referrer]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(total)
}
