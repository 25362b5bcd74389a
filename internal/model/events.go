package model

// Event kinds emitted by the farm engine for off-core consumers.
const (
	EventDeposit            = "deposit"
	EventWithdraw           = "withdraw"
	EventEmergencyWithdraw  = "emergency_withdraw"
	EventRewardLockedUp     = "reward_locked_up"
	EventReferralCommission = "referral_commission_paid"
	EventEmissionRateChange = "emission_rate_changed"
)

// Event is a single audit record. Amounts are decimal strings so the JSONL
// log round-trips arbitrary-precision values.
type Event struct {
	ID        string `json:"id,omitempty"`
	Kind      string `json:"kind"`
	Timestamp uint64 `json:"ts"`
	PoolID    int    `json:"pool_id,omitempty"`
	User      string `json:"user,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
	OldRate   string `json:"old_rate,omitempty"`
	NewRate   string `json:"new_rate,omitempty"`
}
