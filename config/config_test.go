package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, "http://localhost:3000", cfg.Server.SiteURL)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "notification-events", cfg.Kafka.TopicNotifications)
	assert.Equal(t, "10.00", cfg.Business.MinWithdrawalAmount)
	assert.Equal(t, 10, cfg.Business.PlatformFeePercent)
	assert.Equal(t, 7, cfg.Business.DownloadExpiresDays)
	assert.Equal(t, 5, cfg.Business.DownloadMaxCount)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("MIN_WITHDRAWAL_AMOUNT", "25.00")
	t.Setenv("PLATFORM_FEE_PERCENT", "15")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "25.00", cfg.Business.MinWithdrawalAmount)
	assert.Equal(t, 15, cfg.Business.PlatformFeePercent)
}
