package token

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	carol = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

func TestTransferFromTax(t *testing.T) {
	tests := []struct {
		name     string
		taxBP    uint64
		amount   int64
		received int64
	}{
		{"no tax", 0, 1000, 1000},
		{"two percent", 200, 1000, 980},
		{"tax truncates", 200, 49, 49},
		{"full basis", 10000, 1000, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tok := NewMemoryToken(common.Address{}, tc.taxBP)
			if err := tok.Mint(alice, big.NewInt(tc.amount)); err != nil {
				t.Fatalf("mint: %v", err)
			}
			received, err := tok.TransferFrom(alice, bob, big.NewInt(tc.amount))
			if err != nil {
				t.Fatalf("transfer from: %v", err)
			}
			if received.Int64() != tc.received {
				t.Fatalf("received = %s, want %d", received, tc.received)
			}
			if got := tok.BalanceOf(bob).Int64(); got != tc.received {
				t.Fatalf("recipient balance = %d, want %d", got, tc.received)
			}
			if got := tok.BalanceOf(alice).Sign(); got != 0 {
				t.Fatalf("sender balance sign = %d, want 0", got)
			}
		})
	}
}

func TestTransferSkipsTax(t *testing.T) {
	tok := NewMemoryToken(common.Address{}, 200)
	if err := tok.Mint(alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := tok.Transfer(alice, bob, big.NewInt(100)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := tok.BalanceOf(bob).Int64(); got != 100 {
		t.Fatalf("recipient balance = %d, want 100", got)
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	tok := NewMemoryToken(common.Address{}, 0)
	if err := tok.Mint(alice, big.NewInt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := tok.Transfer(alice, bob, big.NewInt(11)); err == nil {
		t.Fatal("expected error on overdraft")
	}
	if got := tok.BalanceOf(alice).Int64(); got != 10 {
		t.Fatalf("sender balance = %d, want 10", got)
	}
}

func TestReferralBindingIsIdempotent(t *testing.T) {
	reg := NewMemoryReferrals()
	reg.RecordReferral(alice, bob)
	reg.RecordReferral(alice, carol)

	ref, ok := reg.Referrer(alice)
	if !ok {
		t.Fatal("expected referrer for alice")
	}
	if ref != bob {
		t.Fatalf("referrer = %s, want %s", ref.Hex(), bob.Hex())
	}
}

func TestCommissionAccumulates(t *testing.T) {
	reg := NewMemoryReferrals()
	reg.RecordCommission(bob, big.NewInt(5))
	reg.RecordCommission(bob, big.NewInt(7))

	if got := reg.CommissionTotal(bob).Int64(); got != 12 {
		t.Fatalf("commission total = %d, want 12", got)
	}
	if got := reg.CommissionTotal(carol).Sign(); got != 0 {
		t.Fatalf("unknown referrer total sign = %d, want 0", got)
	}
}
