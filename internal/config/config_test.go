package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whalewatch/whaletx/internal/domain/model"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.DB.MaxOpenConns)
	assert.Equal(t, 8, cfg.Pipeline.Workers)
	assert.Equal(t, 0.7, cfg.Pipeline.RequiredConfidence)
	assert.Equal(t, 10*time.Second, cfg.Dedup.Window)
	assert.Equal(t, int64(10_000_000), cfg.Dedup.SafeguardCeiling)
	assert.Equal(t, "providers.yaml", cfg.Providers.File)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PIPELINE_WORKERS", "16")
	t.Setenv("REQUIRED_CONFIDENCE", "0.95")
	t.Setenv("DEDUP_WINDOW_SEC", "30")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Pipeline.Workers)
	assert.Equal(t, 0.95, cfg.Pipeline.RequiredConfidence)
	assert.Equal(t, 30*time.Second, cfg.Dedup.Window)
	assert.False(t, cfg.Tracing.Insecure)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "confidence above one", key: "REQUIRED_CONFIDENCE", value: "1.5"},
		{name: "zero workers", key: "PIPELINE_WORKERS", value: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.DB.MaxOpenConns)
}

func writeProvidersFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadProviders(t *testing.T) {
	path := writeProvidersFile(t, `
chains:
  ethereum:
    - name: alchemy
      kind: rpc
      url: https://eth-mainnet.g.alchemy.com/v2/key
      rate_per_sec: 25
      burst: 5
    - name: llamarpc
      url: https://eth.llamarpc.com
    - name: etherscan
      kind: explorer
      url: https://api.etherscan.io/api
      key: etherscan-key
  polygon:
    - name: polygon-rpc
      url: https://polygon-rpc.com
`)

	providers, err := LoadProviders(path)
	require.NoError(t, err)
	require.Len(t, providers, 2)

	eth := providers[model.ChainEthereum]
	require.Len(t, eth, 3)
	assert.Equal(t, "alchemy", eth[0].Name, "failover order follows file order")
	assert.Equal(t, 25.0, eth[0].RatePerSec)
	assert.Equal(t, ProviderKindRPC, eth[1].Kind, "kind defaults to rpc")
	assert.Equal(t, ProviderKindExplorer, eth[2].Kind)
	assert.Equal(t, "etherscan-key", eth[2].Key)
}

func TestLoadProvidersExpandsEnv(t *testing.T) {
	t.Setenv("TEST_RPC_KEY", "secret-123")
	path := writeProvidersFile(t, `
chains:
  ethereum:
    - name: alchemy
      url: https://example.com/v2/${TEST_RPC_KEY}
`)

	providers, err := LoadProviders(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/v2/secret-123", providers[model.ChainEthereum][0].URL)
}

func TestLoadProvidersErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "empty file", content: ""},
		{name: "no chains", content: "chains: {}"},
		{name: "unknown chain", content: "chains:\n  dogecoin:\n    - {name: a, url: b}"},
		{name: "empty provider list", content: "chains:\n  ethereum: []"},
		{name: "missing url", content: "chains:\n  ethereum:\n    - {name: a}"},
		{name: "unknown kind", content: "chains:\n  ethereum:\n    - {name: a, url: b, kind: carrier-pigeon}"},
		{name: "malformed yaml", content: "chains: ["},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeProvidersFile(t, tt.content)
			_, err := LoadProviders(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadProvidersMissingFile(t *testing.T) {
	_, err := LoadProviders(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
