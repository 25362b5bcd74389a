package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"farmLedger/internal/model"
)

// Store provides Postgres persistence for ledger snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertPools inserts or updates pool snapshot rows.
func (s *Store) UpsertPools(ctx context.Context, pools []model.PoolSnapshot) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				pool_id, asset, alloc_point, last_reward_time, acc_reward_per_share,
				deposit_fee_bp, harvest_interval, bonus_mode, nominal_total_balance,
				staked_total, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now(),now())
			ON CONFLICT (pool_id)
			DO UPDATE SET
				asset = EXCLUDED.asset,
				alloc_point = EXCLUDED.alloc_point,
				last_reward_time = EXCLUDED.last_reward_time,
				acc_reward_per_share = EXCLUDED.acc_reward_per_share,
				deposit_fee_bp = EXCLUDED.deposit_fee_bp,
				harvest_interval = EXCLUDED.harvest_interval,
				bonus_mode = EXCLUDED.bonus_mode,
				nominal_total_balance = EXCLUDED.nominal_total_balance,
				staked_total = EXCLUDED.staked_total,
				updated_at = now()
		`,
			pool.PoolID,
			pool.Asset,
			int64(pool.AllocPoint),
			int64(pool.LastRewardTime),
			pool.AccRewardPerShare,
			int64(pool.DepositFeeBP),
			int64(pool.HarvestInterval),
			pool.BonusMode,
			pool.NominalTotalBalance,
			pool.StakedTotal,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertPositions inserts or updates user position rows.
func (s *Store) UpsertPositions(ctx context.Context, positions []model.PositionSnapshot) error {
	if len(positions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pos := range positions {
		batch.Queue(`
			INSERT INTO positions (
				pool_id, user_address, amount, reward_debt, reward_locked_up,
				next_harvest_until, loyalty_active, loyalty_since, bonus_multiplier,
				created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now(),now())
			ON CONFLICT (pool_id, user_address)
			DO UPDATE SET
				amount = EXCLUDED.amount,
				reward_debt = EXCLUDED.reward_debt,
				reward_locked_up = EXCLUDED.reward_locked_up,
				next_harvest_until = EXCLUDED.next_harvest_until,
				loyalty_active = EXCLUDED.loyalty_active,
				loyalty_since = EXCLUDED.loyalty_since,
				bonus_multiplier = EXCLUDED.bonus_multiplier,
				updated_at = now()
		`,
			pos.PoolID,
			pos.User,
			pos.Amount,
			pos.RewardDebt,
			pos.RewardLockedUp,
			int64(pos.NextHarvestUntil),
			pos.LoyaltyActive,
			int64(pos.LoyaltySince),
			int64(pos.BonusMultiplier),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range positions {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadPools reads back all pool snapshot rows.
func (s *Store) LoadPools(ctx context.Context) ([]model.PoolSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pool_id, asset, alloc_point, last_reward_time, acc_reward_per_share,
		       deposit_fee_bp, harvest_interval, bonus_mode, nominal_total_balance, staked_total
		FROM pools ORDER BY pool_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pools []model.PoolSnapshot
	for rows.Next() {
		var p model.PoolSnapshot
		var allocPoint, lastReward, feeBP, interval int64
		if err := rows.Scan(&p.PoolID, &p.Asset, &allocPoint, &lastReward, &p.AccRewardPerShare,
			&feeBP, &interval, &p.BonusMode, &p.NominalTotalBalance, &p.StakedTotal); err != nil {
			return nil, err
		}
		p.AllocPoint = uint64(allocPoint)
		p.LastRewardTime = uint64(lastReward)
		p.DepositFeeBP = uint64(feeBP)
		p.HarvestInterval = uint64(interval)
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

// LoadPositions reads back all position snapshot rows.
func (s *Store) LoadPositions(ctx context.Context) ([]model.PositionSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pool_id, user_address, amount, reward_debt, reward_locked_up,
		       next_harvest_until, loyalty_active, loyalty_since, bonus_multiplier
		FROM positions ORDER BY pool_id, user_address
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []model.PositionSnapshot
	for rows.Next() {
		var p model.PositionSnapshot
		var harvestUntil, since, multiplier int64
		if err := rows.Scan(&p.PoolID, &p.User, &p.Amount, &p.RewardDebt, &p.RewardLockedUp,
			&harvestUntil, &p.LoyaltyActive, &since, &multiplier); err != nil {
			return nil, err
		}
		p.NextHarvestUntil = uint64(harvestUntil)
		p.LoyaltySince = uint64(since)
		p.BonusMultiplier = uint64(multiplier)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// ReplayState adapts a named replay_state row to the replay progress
// interface.
type ReplayState struct {
	store *Store
	name  string
}

func (s *Store) ReplayState(name string) *ReplayState {
	if name == "" {
		name = "farmd"
	}
	return &ReplayState{store: s, name: name}
}

// Load returns the last applied action sequence.
func (r *ReplayState) Load(ctx context.Context) (uint64, bool, error) {
	var seq uint64
	row := r.store.pool.QueryRow(ctx, `SELECT last_applied_seq FROM replay_state WHERE name=$1`, r.name)
	if err := row.Scan(&seq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return seq, true, nil
}

// Save upserts the last applied action sequence.
func (r *ReplayState) Save(ctx context.Context, seq uint64) error {
	_, err := r.store.pool.Exec(ctx, `
		INSERT INTO replay_state (name, last_applied_seq, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_applied_seq = EXCLUDED.last_applied_seq, updated_at = now()
	`, r.name, seq)
	return err
}
