package model

// PoolSnapshot is a pool row for storage.
type PoolSnapshot struct {
	PoolID              int    `json:"pool_id"`
	Asset               string `json:"asset"`
	AllocPoint          uint64 `json:"alloc_point"`
	LastRewardTime      uint64 `json:"last_reward_time"`
	AccRewardPerShare   string `json:"acc_reward_per_share"`
	DepositFeeBP        uint64 `json:"deposit_fee_bp"`
	HarvestInterval     uint64 `json:"harvest_interval"`
	BonusMode           bool   `json:"bonus_mode"`
	NominalTotalBalance string `json:"nominal_total_balance"`
	StakedTotal         string `json:"staked_total"`
}

// PositionSnapshot is a per-(pool, user) position row for storage.
type PositionSnapshot struct {
	PoolID           int    `json:"pool_id"`
	User             string `json:"user"`
	Amount           string `json:"amount"`
	RewardDebt       string `json:"reward_debt"`
	RewardLockedUp   string `json:"reward_locked_up"`
	NextHarvestUntil uint64 `json:"next_harvest_until"`
	LoyaltyActive    bool   `json:"loyalty_active"`
	LoyaltySince     uint64 `json:"loyalty_since"`
	BonusMultiplier  uint64 `json:"bonus_multiplier"`
}
