package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, NetworkDevnet, cfg.Network)
	assert.NotEmpty(t, cfg.PrimaryRPCURL)
	assert.True(t, cfg.DynamicPriorityFees)
	assert.Equal(t, DefaultHealthCheckInterval, cfg.HealthCheckInterval)
	assert.Equal(t, DefaultMaxErrorsBeforeFailover, cfg.MaxErrorsBeforeFailover)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv(EnvNetwork, "mainnet-beta")
	t.Setenv(EnvRPCPrimary, "https://rpc.example.com")
	t.Setenv(EnvRPCBackup, "https://backup.example.com")
	t.Setenv(EnvStaticPriorityFee, "5000")
	t.Setenv(EnvDynamicPriorityFees, "false")
	t.Setenv(EnvMintComputeUnitLimit, "300000")
	t.Setenv(EnvHealthCheckInterval, "10s")
	t.Setenv(EnvMaxErrorsBeforeFailover, "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, NetworkMainnet, cfg.Network)
	assert.Equal(t, "https://rpc.example.com", cfg.PrimaryRPCURL)
	assert.Equal(t, "https://backup.example.com", cfg.BackupRPCURL)
	assert.EqualValues(t, 5000, cfg.StaticPriorityFee)
	assert.False(t, cfg.DynamicPriorityFees)
	assert.EqualValues(t, 300000, cfg.MintComputeUnitLimit)
	assert.Equal(t, 10*time.Second, cfg.HealthCheckInterval)
	assert.Equal(t, 5, cfg.MaxErrorsBeforeFailover)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv(EnvNetwork, "localnet")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidNumbers(t *testing.T) {
	t.Setenv(EnvStaticPriorityFee, "not a number")
	_, err := Load()
	assert.Error(t, err)
}
