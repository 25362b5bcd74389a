package farm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"farmLedger/internal/model"
)

// payReferralCommissionLocked mints a commission on a paid-out reward to the
// user's referrer. The registry is optional; without one, or without a
// recorded referrer, nothing happens.
func (f *Farm) payReferralCommissionLocked(user common.Address, base *big.Int) {
	if f.referrals == nil || f.commissionBP == 0 || base.Sign() <= 0 {
		return
	}
	referrer, ok := f.referrals.Referrer(user)
	if !ok || referrer == (common.Address{}) {
		return
	}

	commission := new(big.Int).Mul(base, new(big.Int).SetUint64(f.commissionBP))
	commission.Div(commission, big.NewInt(feeDivisor))
	if commission.Sign() == 0 {
		return
	}

	if err := f.reward.Mint(referrer, commission); err != nil {
		f.logger.Error("mint referral commission",
			zap.String("referrer", referrer.Hex()),
			zap.Error(err),
		)
		return
	}
	f.referrals.RecordCommission(referrer, commission)
	f.emitLocked(model.Event{
		Kind:     model.EventReferralCommission,
		User:     user.Hex(),
		Referrer: referrer.Hex(),
		Amount:   commission.String(),
	})
}
