package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("DOCSIGN_ADDR", "")
	t.Setenv("KEY_POLICY", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("DATABASE_AUTO_MIGRATE", "")

	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "single_active", cfg.Keys.Policy)
	assert.Equal(t, 4096, cfg.Keys.KeySize)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.Database.AutoMigrate)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("VERIFICATION_BASE_URL", "https://verify.example.com/")
	t.Setenv("PUBLIC_KEY_CACHE_TTL", "90s")
	t.Setenv("KEY_SIZE", "2048")
	t.Setenv("DATABASE_AUTO_MIGRATE", "true")

	cfg := FromEnv()
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "https://verify.example.com", cfg.Verification.BaseURL)
	assert.Equal(t, 90*time.Second, cfg.Verification.PublicKeyTTL)
	assert.Equal(t, 2048, cfg.Keys.KeySize)
	assert.True(t, cfg.Database.AutoMigrate)
}
