// Package config loads the node configuration: YAML over defaults, then
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/eigerco/surety/internal/common"
	"github.com/eigerco/surety/internal/crypto"
	"github.com/eigerco/surety/internal/ledger"
)

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Store    StoreConfig    `yaml:"store"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Escrow   EscrowConfig   `yaml:"escrow"`
	Airlines AirlinesConfig `yaml:"airlines"`
	Oracles  OraclesConfig  `yaml:"oracles"`
	Redis    RedisConfig    `yaml:"redis"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Type  string `yaml:"type"` // "console" or "json"
}

type StoreConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

type LedgerConfig struct {
	Administrator  string `yaml:"administrator"`
	GenesisAirline string `yaml:"genesis_airline"`
	Seed           string `yaml:"seed"`        // Entropy seed for index draws
	RequestTTL     uint64 `yaml:"request_ttl"` // In ledger heights, 0 never expires
}

// Amounts are in nano units.
type EscrowConfig struct {
	PremiumCap       uint64 `yaml:"premium_cap"`
	PayoutPercentage uint64 `yaml:"payout_percentage"`
	AutoCredit       bool   `yaml:"auto_credit"`
}

type AirlinesConfig struct {
	FundingMinimum     uint64 `yaml:"funding_minimum"`
	ConsensusThreshold int    `yaml:"consensus_threshold"`
}

type OraclesConfig struct {
	RegistrationFee uint64 `yaml:"registration_fee"`
	IndexCount      uint8  `yaml:"index_count"`
	Quorum          int    `yaml:"quorum"`
	PoolSize        int    `yaml:"pool_size"` // Simulated oracles, 0 disables the simulator
}

type RedisConfig struct {
	Addr    string `yaml:"addr"` // Empty disables event forwarding
	Channel string `yaml:"channel"`
}

func Defaults() Config {
	return Config{
		Log:   LogConfig{Level: "info", Type: "console"},
		Store: StoreConfig{Path: "./surety-db"},
		Ledger: LedgerConfig{
			Seed: "surety",
		},
		Escrow: EscrowConfig{
			PremiumCap:       uint64(common.PremiumCap),
			PayoutPercentage: common.DefaultPayoutPercentage,
			AutoCredit:       true,
		},
		Airlines: AirlinesConfig{
			FundingMinimum:     uint64(common.FundingMinimum),
			ConsensusThreshold: common.ConsensusThreshold,
		},
		Oracles: OraclesConfig{
			RegistrationFee: uint64(common.OracleRegistrationFee),
			IndexCount:      common.NumberOfOracleIndices,
			Quorum:          common.OracleQuorum,
			PoolSize:        20,
		},
		Redis: RedisConfig{Channel: "surety.events"},
	}
}

// Load reads the YAML file at path over the defaults. An empty path yields
// the defaults. Environment overrides are applied last.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SURETY_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("SURETY_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("SURETY_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
}

func (c Config) Validate() error {
	if c.Ledger.Administrator == "" {
		return errors.New("ledger.administrator is required")
	}
	if _, err := crypto.AddressFromHex(c.Ledger.Administrator); err != nil {
		return fmt.Errorf("ledger.administrator: %w", err)
	}
	if c.Ledger.GenesisAirline != "" {
		if _, err := crypto.AddressFromHex(c.Ledger.GenesisAirline); err != nil {
			return fmt.Errorf("ledger.genesis_airline: %w", err)
		}
	}
	switch {
	case c.Escrow.PremiumCap == 0:
		return errors.New("escrow.premium_cap must be above zero")
	case c.Escrow.AutoCredit && c.Escrow.PayoutPercentage == 0:
		return errors.New("escrow.payout_percentage must be above zero with auto_credit")
	case c.Oracles.Quorum < 1:
		return errors.New("oracles.quorum must be at least 1")
	case c.Oracles.IndexCount < common.IndicesPerOracle:
		return fmt.Errorf("oracles.index_count must be at least %d", common.IndicesPerOracle)
	case c.Oracles.PoolSize < 0:
		return errors.New("oracles.pool_size must not be negative")
	case !c.Store.InMemory && c.Store.Path == "":
		return errors.New("store.path is required unless store.in_memory is set")
	case c.Redis.Addr != "" && c.Redis.Channel == "":
		return errors.New("redis.channel is required with redis.addr")
	}
	return nil
}

// Administrator returns the parsed administrator address. Call Validate first.
func (c Config) Administrator() crypto.Address {
	a, _ := crypto.AddressFromHex(c.Ledger.Administrator)
	return a
}

// GenesisAirline returns the parsed genesis airline, zero when unset.
func (c Config) GenesisAirline() crypto.Address {
	if c.Ledger.GenesisAirline == "" {
		return crypto.Address{}
	}
	a, _ := crypto.AddressFromHex(c.Ledger.GenesisAirline)
	return a
}

// Seed hashes the configured seed phrase.
func (c Config) Seed() crypto.Hash {
	return crypto.HashData([]byte(c.Ledger.Seed))
}

func (c Config) LedgerParams() ledger.Params {
	return ledger.Params{
		PremiumCap:         common.Amount(c.Escrow.PremiumCap),
		FundingMinimum:     common.Amount(c.Airlines.FundingMinimum),
		RegistrationFee:    common.Amount(c.Oracles.RegistrationFee),
		IndexCount:         c.Oracles.IndexCount,
		Quorum:             c.Oracles.Quorum,
		ConsensusThreshold: c.Airlines.ConsensusThreshold,
		PayoutPercentage:   c.Escrow.PayoutPercentage,
		AutoCredit:         c.Escrow.AutoCredit,
		RequestTTL:         c.Ledger.RequestTTL,
	}
}
