// Package config loads the service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Environment variable names.
const (
	EnvRPCPrimary  = "SOLANA_RPC_PRIMARY"
	EnvRPCBackup   = "SOLANA_RPC_BACKUP"
	EnvRPCFallback = "SOLANA_RPC_FALLBACK"
	EnvNetwork     = "SOLANA_NETWORK"

	EnvStaticPriorityFee       = "STATIC_PRIORITY_FEE"
	EnvDynamicPriorityFees     = "DYNAMIC_PRIORITY_FEES"
	EnvMintComputeUnitLimit    = "MINT_COMPUTE_UNIT_LIMIT"
	EnvListingComputeUnitLimit = "LISTING_COMPUTE_UNIT_LIMIT"

	EnvHealthCheckInterval     = "RPC_HEALTH_CHECK_INTERVAL"
	EnvMaxErrorsBeforeFailover = "RPC_MAX_ERRORS_BEFORE_FAILOVER"
)

// Network is the cluster tier the service talks to.
type Network string

const (
	NetworkMainnet Network = "mainnet-beta"
	NetworkDevnet  Network = "devnet"
	NetworkTestnet Network = "testnet"
)

const (
	defaultPrimaryRPC = "https://api.devnet.solana.com"

	DefaultHealthCheckInterval     = 30 * time.Second
	DefaultMaxErrorsBeforeFailover = 3
)

// Config is the environment configuration for the transaction core.
type Config struct {
	// RPC endpoints in priority order; backup and fallback may be empty.
	PrimaryRPCURL  string
	BackupRPCURL   string
	FallbackRPCURL string

	Network Network

	// StaticPriorityFee, when non-zero, overrides the network-tier default
	// used when dynamic estimation is disabled or unavailable.
	StaticPriorityFee   uint64
	DynamicPriorityFees bool

	// Compute unit ceilings per transaction kind; zero selects the built-in
	// default.
	MintComputeUnitLimit    uint32
	ListingComputeUnitLimit uint32

	HealthCheckInterval     time.Duration
	MaxErrorsBeforeFailover int
}

// Load reads configuration from the environment. A local .env file is loaded
// first when present (development convenience); real environment variables
// take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		PrimaryRPCURL:           getString(EnvRPCPrimary, defaultPrimaryRPC),
		BackupRPCURL:            getString(EnvRPCBackup, ""),
		FallbackRPCURL:          getString(EnvRPCFallback, ""),
		Network:                 Network(getString(EnvNetwork, string(NetworkDevnet))),
		DynamicPriorityFees:     getBool(EnvDynamicPriorityFees, true),
		HealthCheckInterval:     DefaultHealthCheckInterval,
		MaxErrorsBeforeFailover: DefaultMaxErrorsBeforeFailover,
	}

	switch cfg.Network {
	case NetworkMainnet, NetworkDevnet, NetworkTestnet:
	default:
		return nil, errors.Errorf("unknown network: %s", cfg.Network)
	}

	var err error
	if cfg.StaticPriorityFee, err = getUint64(EnvStaticPriorityFee, 0); err != nil {
		return nil, err
	}

	mintLimit, err := getUint64(EnvMintComputeUnitLimit, 0)
	if err != nil {
		return nil, err
	}
	cfg.MintComputeUnitLimit = uint32(mintLimit)

	listingLimit, err := getUint64(EnvListingComputeUnitLimit, 0)
	if err != nil {
		return nil, err
	}
	cfg.ListingComputeUnitLimit = uint32(listingLimit)

	if raw := os.Getenv(EnvHealthCheckInterval); raw != "" {
		if cfg.HealthCheckInterval, err = time.ParseDuration(raw); err != nil {
			return nil, errors.Wrapf(err, "invalid %s", EnvHealthCheckInterval)
		}
	}

	if raw := os.Getenv(EnvMaxErrorsBeforeFailover); raw != "" {
		if cfg.MaxErrorsBeforeFailover, err = strconv.Atoi(raw); err != nil {
			return nil, errors.Wrapf(err, "invalid %s", EnvMaxErrorsBeforeFailover)
		}
	}

	return cfg, nil
}

func getString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue
	}
	return val
}

func getUint64(key string, defaultValue uint64) (uint64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return val, nil
}
