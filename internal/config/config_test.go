package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("VIDEO_HOST", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("CREDENTIAL_TTL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.HTTP.Addr)
	assert.Equal(t, HostCloudflare, cfg.VideoHost.Provider)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, time.Hour, cfg.Redis.CredentialTTL)
	assert.Equal(t, 15*time.Second, cfg.Upload.CredentialTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Upload.TransferTimeout)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("VIDEO_HOST", "MUX")
	t.Setenv("KAFKA_BROKERS", " a:1 , ,b:2 ")
	t.Setenv("OUTBOX_BATCH_SIZE", "7")
	t.Setenv("UPLOAD_TRANSFER_TIMEOUT", "90s")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, HostMux, cfg.VideoHost.Provider)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)
	assert.Equal(t, 7, cfg.Outbox.BatchSize)
	assert.Equal(t, 90*time.Second, cfg.Upload.TransferTimeout)
	assert.Equal(t, 0, cfg.Redis.DB)
}

func TestLoad_UnknownProvider(t *testing.T) {
	t.Setenv("VIDEO_HOST", "youtube")

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "youtube")
}
