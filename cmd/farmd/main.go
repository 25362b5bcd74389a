package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"farmLedger/internal/api"
	"farmLedger/internal/chain"
	"farmLedger/internal/config"
	"farmLedger/internal/farm"
	"farmLedger/internal/metrics"
	"farmLedger/internal/replay"
	"farmLedger/internal/storage"
	"farmLedger/internal/storage/postgres"
	"farmLedger/internal/sweeper"
	"farmLedger/internal/token"
)

func main() {
	root := &cobra.Command{
		Use:          "farmd",
		Short:        "Staking-reward accrual engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine with the query API and sweep scheduler",
		RunE:  runServe,
	}
	serveCmd.Flags().String("http-addr", ":8080", "query API listen address")
	serveCmd.Flags().String("event-log", "./data/events.jsonl", "audit event JSONL path")
	serveCmd.Flags().String("sweep-cron", "0 * * * * *", "pool refresh schedule")
	serveCmd.Flags().String("reward-per-second", "0", "global emission rate")
	serveCmd.Flags().Uint64("start-time", 0, "emission start time (unix seconds)")
	serveCmd.Flags().Uint64("commission-bp", 0, "referral commission in basis points")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(serveCmd)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Apply an action JSONL stream and persist ledger snapshots",
		RunE:  runReplay,
	}
	replayCmd.Flags().String("in", "", "input action JSONL path")
	replayCmd.Flags().String("pg-dsn", "", "Postgres DSN for snapshot storage")
	replayCmd.Flags().String("state-file", "./data/replay_state.json", "replay progress file")
	replayCmd.Flags().Int("batch-size", 1000, "actions per snapshot flush")
	replayCmd.Flags().String("reward-per-second", "0", "global emission rate")
	replayCmd.Flags().Uint64("start-time", 0, "emission start time (unix seconds)")
	replayCmd.Flags().Uint64("commission-bp", 0, "referral commission in basis points")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(replayCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Refresh all pool accumulators once and persist snapshots",
		RunE:  runSweep,
	}
	sweepCmd.Flags().String("pg-dsn", "", "Postgres DSN for snapshot storage")
	sweepCmd.Flags().String("reward-per-second", "0", "global emission rate")
	sweepCmd.Flags().Uint64("start-time", 0, "emission start time (unix seconds)")
	sweepCmd.Flags().Uint64("commission-bp", 0, "referral commission in basis points")
	sweepCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(sweepCmd)

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Cross-check stored pool totals against on-chain balances",
		RunE:  runVerify,
	}
	verifyCmd.Flags().String("rpc", "", "chain RPC URL")
	verifyCmd.Flags().String("pg-dsn", "", "Postgres DSN holding pool snapshots")
	verifyCmd.Flags().String("custodian", "", "custodian address holding staked assets")
	verifyCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(verifyCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventLog := storage.NewJsonlEventLog(cfg.EventLogPath, logger)
	engine, _, err := buildEngine(cfg, metrics.NewSink(eventLog), logger, nil)
	if err != nil {
		return err
	}

	sweep := sweeper.New(engine, logger)
	if err := sweep.Register(cfg.SweepSpec); err != nil {
		return err
	}
	sweep.Start()
	defer sweep.Stop()

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewServer(engine, logger).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("query API listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	input, _ := cmd.Flags().GetString("in")
	if input == "" {
		return fmt.Errorf("input path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := &replay.Clock{}
	engine, assets, err := buildEngine(cfg, nil, logger, clock.Now)
	if err != nil {
		return err
	}

	var store replay.SnapshotStore
	var stateStore replay.StateStore = &replay.FileStateStore{Path: cfg.StatePath}
	if cfg.PgDSN != "" {
		pgStore, err := postgres.NewStore(ctx, cfg.PgDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pgStore.Close()
		store = pgStore
		// Progress lives next to the snapshots so a resumed run reads both
		// from the same place.
		stateStore = pgStore.ReplayState("farmd")
	}

	runner := replay.NewRunner(replay.Config{
		BatchSize:  cfg.BatchSize,
		StateStore: stateStore,
	}, engine, clock, assets, store, logger)

	logger.Info("replay start",
		zap.String("in", input),
		zap.Int("batch_size", cfg.BatchSize),
		zap.String("state_file", cfg.StatePath),
	)
	return runner.Run(ctx, input)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, _, err := buildEngine(cfg, nil, logger, nil)
	if err != nil {
		return err
	}
	if err := engine.MassUpdatePools(); err != nil {
		return fmt.Errorf("mass update: %w", err)
	}

	pools, positions := engine.Snapshot()
	if cfg.PgDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PgDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.UpsertPools(ctx, pools); err != nil {
			return fmt.Errorf("persist pools: %w", err)
		}
		if err := store.UpsertPositions(ctx, positions); err != nil {
			return fmt.Errorf("persist positions: %w", err)
		}
	}

	logger.Info("sweep complete", zap.Int("pools", len(pools)), zap.Int("positions", len(positions)))
	return nil
}

func runVerify(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	custodian, err := parseAddress("custodian", cfg.Custodian)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	store, err := postgres.NewStore(ctx, cfg.PgDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	pools, err := store.LoadPools(ctx)
	if err != nil {
		return fmt.Errorf("load pools: %w", err)
	}

	// Balances below read at "latest"; record the height they correspond to.
	block, err := client.LatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("latest block: %w", err)
	}

	mismatches := 0
	for _, pool := range pools {
		if !common.IsHexAddress(pool.Asset) {
			logger.Warn("skipping pool with invalid asset", zap.Int("pool", pool.PoolID))
			continue
		}
		onChain, err := client.ERC20BalanceOf(ctx, common.HexToAddress(pool.Asset), custodian)
		if err != nil {
			return fmt.Errorf("balance of pool %d asset: %w", pool.PoolID, err)
		}
		tracked, ok := new(big.Int).SetString(pool.StakedTotal, 10)
		if !ok {
			return fmt.Errorf("bad staked total for pool %d: %s", pool.PoolID, pool.StakedTotal)
		}
		if onChain.Cmp(tracked) != 0 {
			mismatches++
			logger.Warn("pool total mismatch",
				zap.Int("pool", pool.PoolID),
				zap.String("tracked", tracked.String()),
				zap.String("on_chain", onChain.String()),
			)
		}
	}

	logger.Info("verify complete",
		zap.Uint64("block", block),
		zap.Int("pools", len(pools)),
		zap.Int("mismatches", mismatches),
	)
	if mismatches > 0 {
		return fmt.Errorf("%d pool totals diverge from chain", mismatches)
	}
	return nil
}

// buildEngine wires tokens, pools, and the farm from configuration. The
// returned asset map is keyed by pool id for the replay funder.
func buildEngine(cfg config.Config, sink farm.EventSink, logger *zap.Logger, now func() uint64) (*farm.Farm, map[int]*token.MemoryToken, error) {
	custodian, err := parseAddress("custodian", cfg.Custodian)
	if err != nil {
		return nil, nil, err
	}
	owner, err := parseAddress("owner", cfg.Owner)
	if err != nil {
		return nil, nil, err
	}
	devSink, err := parseAddress("dev-sink", cfg.DevSink)
	if err != nil {
		return nil, nil, err
	}
	feeSink, err := parseAddress("fee-sink", cfg.FeeSink)
	if err != nil {
		return nil, nil, err
	}

	rate, ok := new(big.Int).SetString(cfg.RewardPerSecond, 10)
	if !ok || rate.Sign() < 0 {
		return nil, nil, fmt.Errorf("invalid reward-per-second: %s", cfg.RewardPerSecond)
	}

	reward := token.NewMemoryToken(common.BytesToAddress([]byte("reward")), 0)
	engine := farm.New(farm.Config{
		Custodian:       custodian,
		Owner:           owner,
		DevSink:         devSink,
		FeeSink:         feeSink,
		RewardPerSecond: rate,
		StartTime:       cfg.StartTime,
		Now:             now,
	}, reward, sink, logger)

	if cfg.CommissionBP > 0 {
		if err := engine.SetReferralRegistry(owner, token.NewMemoryReferrals()); err != nil {
			return nil, nil, err
		}
		if err := engine.SetCommissionRate(owner, cfg.CommissionBP); err != nil {
			return nil, nil, err
		}
	}

	assets := make(map[int]*token.MemoryToken, len(cfg.Pools))
	for _, poolCfg := range cfg.Pools {
		assetAddr, err := parseAddress("pool asset", poolCfg.Asset)
		if err != nil {
			return nil, nil, err
		}
		asset := token.NewMemoryToken(assetAddr, poolCfg.TransferTaxBP)
		pid, err := engine.AddPool(owner, asset, poolCfg.AllocPoint, poolCfg.DepositFeeBP, poolCfg.HarvestInterval, false)
		if err != nil {
			return nil, nil, fmt.Errorf("add pool %s: %w", poolCfg.Asset, err)
		}
		if poolCfg.BonusMode {
			if err := engine.SetBonusMode(owner, pid, true); err != nil {
				return nil, nil, err
			}
		}
		assets[pid] = asset
	}

	return engine, assets, nil
}

func parseAddress(name, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s address: %q", name, value)
	}
	return common.HexToAddress(value), nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
