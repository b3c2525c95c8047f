package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/clinic")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.Buffer)
	assert.Equal(t, 5*time.Second, cfg.TxTimeout)
	assert.Equal(t, 4, cfg.NotifyWorkers)
	assert.Equal(t, 256, cfg.NotifyQueueSize)
	assert.Equal(t, "kafka", cfg.SyncTransport)
	assert.Equal(t, "appointment.outcome.v1", cfg.OutcomeTopic)
	assert.Equal(t, "waitlist:slot_freed", cfg.WaitlistStream)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, 5, cfg.ConsumerAttempts)
	assert.Equal(t, time.Second, cfg.ConsumerBackoff)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/clinic")
	t.Setenv("BUFFER_MINUTES", "10")
	t.Setenv("PROVIDER_BUFFER_MINUTES", "dr-lee:0")
	t.Setenv("SYNC_TRANSPORT", "Webhook")
	t.Setenv("SYNC_WEBHOOK_URL", "https://hooks.example.com/sync")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, cfg.Buffer)
	assert.Equal(t, map[string]time.Duration{"dr-lee": 0}, cfg.ProviderBuffers)
	assert.Equal(t, "webhook", cfg.SyncTransport)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"missing webhook url": {"SYNC_TRANSPORT", "webhook"},
		"unknown transport":   {"SYNC_TRANSPORT", "carrier-pigeon"},
		"negative buffer":     {"BUFFER_MINUTES", "-5"},
		"bad timezone":        {"CLINIC_TIMEZONE", "Mars/Olympus"},
		"bad timeout":         {"TX_TIMEOUT", "soon"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://localhost/clinic")
			t.Setenv(kv[0], kv[1])
			_, err := loadConfig()
			assert.Error(t, err)
		})
	}

	t.Setenv("DATABASE_URL", "")
	_, err := loadConfig()
	assert.Error(t, err)
}
