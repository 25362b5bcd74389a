package model

// Action kinds accepted by the replay pipeline.
const (
	ActionDeposit           = "deposit"
	ActionWithdraw          = "withdraw"
	ActionEmergencyWithdraw = "emergency_withdraw"
	ActionHarvest           = "harvest"
)

// ActionRecord is one user action in a replay JSONL stream. Records are
// applied in Seq order; At is the unix time the action executed at.
type ActionRecord struct {
	Seq      uint64 `json:"seq"`
	At       uint64 `json:"at"`
	Kind     string `json:"kind"`
	PoolID   int    `json:"pool_id"`
	User     string `json:"user"`
	Amount   string `json:"amount,omitempty"`
	Referrer string `json:"referrer,omitempty"`
}
