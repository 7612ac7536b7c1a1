package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: postgres
  host: db
  port: 5432
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "PZ", cfg.Ledger.VoucherPrefix)
	assert.Equal(t, 5, cfg.Ledger.OutboxMaxRetry)
	assert.Equal(t, "ydjx.ledger.event", cfg.Kafka.Topic.LedgerEvent)
	assert.True(t, decimal.New(1, -2).Equal(cfg.Ledger.EpsilonDecimal()))
	assert.Same(t, cfg, GlobalConfig)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, `
database:
  password: from-file
ledger:
  epsilon: "0.1"
`)
	t.Setenv("YDJX_DATABASE_PASSWORD", "from-env")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Database.Password)
	assert.Equal(t, "0.1", cfg.Ledger.EpsilonDecimal().String())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEpsilonFallback(t *testing.T) {
	for _, raw := range []string{"", "abc", "-0.01"} {
		c := LedgerConfig{Epsilon: raw}
		assert.True(t, decimal.New(1, -2).Equal(c.EpsilonDecimal()), raw)
	}
}
