package farm

import (
	"math/big"
	"testing"
)

func bigInt(v int64) *big.Int { return big.NewInt(v) }

func TestTierMultiplier(t *testing.T) {
	cases := []struct {
		name    string
		elapsed uint64
		want    uint64
	}{
		{"fresh", 0, 10},
		{"just under a week", 7*day - 1, 10},
		{"one week", 7 * day, 15},
		{"ten days", 10 * day, 18},
		{"two weeks", 14 * day, 20},
		{"one month", 30 * day, 30},
		{"two months", 60 * day, 40},
		{"ninety days", 90 * day, 50},
		{"a year", 365 * day, 50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TierMultiplier(tc.elapsed); got != tc.want {
				t.Fatalf("TierMultiplier(%d) = %d, want %d", tc.elapsed, got, tc.want)
			}
		})
	}
}

func TestGrossBase(t *testing.T) {
	cases := []struct {
		amount     int64
		multiplier uint64
		want       int64
	}{
		{100, 10, 100},
		{150, 15, 100},
		{500, 50, 100},
		{101, 20, 50}, // truncation favors the pot
	}
	for _, tc := range cases {
		got := grossBase(bigInt(tc.amount), tc.multiplier)
		if got.Cmp(bigInt(tc.want)) != 0 {
			t.Fatalf("grossBase(%d, %d) = %s, want %d", tc.amount, tc.multiplier, got, tc.want)
		}
	}
}

func TestIntervalRewardTruncates(t *testing.T) {
	got := intervalReward(7, bigInt(10), 1, 3)
	if got.Cmp(bigInt(23)) != 0 {
		t.Fatalf("intervalReward = %s, want 23", got)
	}
}
