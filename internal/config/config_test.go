package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"irrigation-control/internal/config"
)

func TestLoadRequiresCoreSettings(t *testing.T) {
	t.Setenv("KAFKA_BROKER", "")
	t.Setenv("DB_DSN", "")
	t.Setenv("DOWNLINK_BASE_URL", "")

	_, err := config.Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "KAFKA_BROKER")
	require.Contains(t, err.Error(), "DB_DSN")
	require.Contains(t, err.Error(), "DOWNLINK_BASE_URL")
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("KAFKA_BROKER", "localhost:9092")
	t.Setenv("DB_DSN", "postgres://localhost/irrigation")
	t.Setenv("DOWNLINK_BASE_URL", "http://localhost:8090")
	t.Setenv("KAFKA_TOPIC", "")
	t.Setenv("KAFKA_GROUP_ID", "")
	t.Setenv("DISPATCH_TIMEOUT_SECONDS", "")
	t.Setenv("API_PORT", "")
	t.Setenv("API_BASE_PATH", "")
	t.Setenv("TELEGRAM_CHAT_IDS", "")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "device_uplink", cfg.Kafka.Topic)
	require.Equal(t, "irrigation-control", cfg.Kafka.GroupID)
	require.Equal(t, 5*time.Second, cfg.Downlink.Timeout)
	require.Equal(t, ":8080", cfg.API.Port)
	require.Equal(t, "/api/v0", cfg.API.BasePath)
	require.Empty(t, cfg.Telegram.ChatIDs)
}

func TestLoadParsesSettings(t *testing.T) {
	t.Setenv("KAFKA_BROKER", "localhost:9092")
	t.Setenv("DB_DSN", "postgres://localhost/irrigation")
	t.Setenv("DOWNLINK_BASE_URL", "http://localhost:8090")
	t.Setenv("DISPATCH_TIMEOUT_SECONDS", "8")
	t.Setenv("TELEGRAM_CHAT_IDS", "100, 200,300")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, 8*time.Second, cfg.Downlink.Timeout)
	require.Equal(t, []int64{100, 200, 300}, cfg.Telegram.ChatIDs)

	t.Setenv("TELEGRAM_CHAT_IDS", "not-a-number")
	_, err = config.Load()
	require.Error(t, err)
}
