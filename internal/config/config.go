package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// PoolConfig describes one staking pool to register at startup.
type PoolConfig struct {
	Asset           string `mapstructure:"asset"`
	AllocPoint      uint64 `mapstructure:"alloc-point"`
	DepositFeeBP    uint64 `mapstructure:"deposit-fee-bp"`
	HarvestInterval uint64 `mapstructure:"harvest-interval"`
	BonusMode       bool   `mapstructure:"bonus-mode"`
	TransferTaxBP   uint64 `mapstructure:"transfer-tax-bp"`
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	HTTPAddr        string
	EventLogPath    string
	PgDSN           string
	StatePath       string
	BatchSize       int
	RPCURL          string
	LogLevel        string
	RewardPerSecond string
	StartTime       uint64
	SweepSpec       string
	Custodian       string
	Owner           string
	DevSink         string
	FeeSink         string
	CommissionBP    uint64
	Pools           []PoolConfig
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FARMD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("http-addr", ":8080")
	v.SetDefault("event-log", "./data/events.jsonl")
	v.SetDefault("state-file", "./data/replay_state.json")
	v.SetDefault("batch-size", 1000)
	v.SetDefault("log-level", "info")
	v.SetDefault("reward-per-second", "0")
	v.SetDefault("sweep-cron", "0 * * * * *")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		HTTPAddr:        v.GetString("http-addr"),
		EventLogPath:    v.GetString("event-log"),
		PgDSN:           v.GetString("pg-dsn"),
		StatePath:       v.GetString("state-file"),
		BatchSize:       v.GetInt("batch-size"),
		RPCURL:          v.GetString("rpc"),
		LogLevel:        v.GetString("log-level"),
		RewardPerSecond: v.GetString("reward-per-second"),
		StartTime:       v.GetUint64("start-time"),
		SweepSpec:       v.GetString("sweep-cron"),
		Custodian:       v.GetString("custodian"),
		Owner:           v.GetString("owner"),
		DevSink:         v.GetString("dev-sink"),
		FeeSink:         v.GetString("fee-sink"),
		CommissionBP:    v.GetUint64("commission-bp"),
	}

	if err := v.UnmarshalKey("pools", &cfg.Pools); err != nil {
		return Config{}, fmt.Errorf("parse pools: %w", err)
	}
	return cfg, nil
}
