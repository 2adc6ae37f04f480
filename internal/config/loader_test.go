package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inEmptyDir isolates Load from any config.yaml or .env next to the package.
func inEmptyDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "work")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoadDefaults(t *testing.T) {
	inEmptyDir(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr)
	assert.Equal(t, 15*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, time.Minute, cfg.HTTP.RateWindow)
	assert.Equal(t, 15*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, "data/cliqshop.db", cfg.DB.Path)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "usd", cfg.Stripe.Currency)
	assert.Equal(t, "none", cfg.Events.Driver)
	assert.Equal(t, 256, cfg.Events.BufferSize)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Events.Kafka.Brokers)
	assert.Equal(t, 10, cfg.Inventory.LowStockThreshold)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Empty(t, cfg.Jobs.AlertEmail)
}

func TestLoadPrecedence(t *testing.T) {
	dir := inEmptyDir(t)
	writeFile(t, dir, "config.yaml", `
http:
  addr: ":7000"
  rate_limit: 30
log:
  level: debug
database:
  path: /var/lib/shop.db
`)
	writeFile(t, dir, ".env", "DB_PATH=/from/dotenv.db\nSTRIPE_SECRET_KEY=sk_dotenv\nKAFKA_BROKERS=k1:9092,k2:9092\nLOG_LEVEL=warn\n")
	t.Setenv("CLIQSHOP_HTTP_ADDR", ":9000")
	t.Setenv("CLIQSHOP_LOG_LEVEL", "error")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTP.Addr, "environment beats config.yaml")
	assert.Equal(t, 30, cfg.HTTP.RateLimit, "config.yaml beats defaults")
	assert.Equal(t, "/from/dotenv.db", cfg.DB.Path, ".env beats config.yaml")
	assert.Equal(t, "sk_dotenv", cfg.Stripe.SecretKey)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.Kafka.Brokers)
	assert.Equal(t, "error", cfg.Log.Level, "environment beats .env")
}

func TestLoadLegacyEnvNames(t *testing.T) {
	inEmptyDir(t)
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_legacy")
	t.Setenv("GOOGLE_CLIENT_ID", "client-123")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "whsec_legacy", cfg.Stripe.WebhookSecret)
	assert.Equal(t, "client-123", cfg.OAuth.Google.ClientID)
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	dir := inEmptyDir(t)
	writeFile(t, dir, "config.yaml", "http: [unterminated\n")

	_, err := Load()
	require.ErrorContains(t, err, "read config")
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for level, want := range cases {
		assert.Equal(t, want, LogConfig{Level: level}.SlogLevel(), level)
	}
}
