package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicdesk/libs/config"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/consumer"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/notify"
)

type Config struct {
	ServiceName string
	Port        string
	LogLevel    string
	DatabaseURL string

	Location        *time.Location
	Buffer          time.Duration
	ProviderBuffers map[string]time.Duration
	TxTimeout       time.Duration

	NotifyWorkers   int
	NotifyQueueSize int
	NotifyTimeout   time.Duration

	SyncTransport string
	WebhookURL    string
	WebhookToken  string

	KafkaBrokers     string
	OutcomeTopic     string
	GroupID          string
	ConsumerAttempts int
	ConsumerBackoff  time.Duration

	RedisAddr      string
	RedisPassword  string
	WaitlistStream string

	RateLimitPerMinute int
	CORSOrigins        []string
}

func loadConfig() (Config, error) {
	cfg := Config{
		ServiceName:    config.String("SERVICE_NAME", "appointment-service"),
		LogLevel:       config.String("LOG_LEVEL", "info"),
		SyncTransport:  strings.ToLower(config.String("SYNC_TRANSPORT", "kafka")),
		WebhookURL:     config.String("SYNC_WEBHOOK_URL", ""),
		WebhookToken:   config.String("SYNC_WEBHOOK_TOKEN", ""),
		KafkaBrokers:   config.String("KAFKA_BROKERS", ""),
		OutcomeTopic:   config.String("KAFKA_OUTCOME_TOPIC", consumer.DefaultOutcomeTopic),
		GroupID:        config.String("KAFKA_GROUP_ID", "appointment-service"),
		RedisAddr:      config.String("REDIS_ADDR", ""),
		RedisPassword:  config.String("REDIS_PASSWORD", ""),
		WaitlistStream: config.String("WAITLIST_STREAM", notify.DefaultWaitlistStream),
		CORSOrigins:    config.List("CORS_ALLOWED_ORIGINS"),
	}

	var err error
	if cfg.Port, err = config.Port("PORT", "8080"); err != nil {
		return Config{}, err
	}
	if cfg.DatabaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
		return Config{}, err
	}
	if cfg.Location, err = time.LoadLocation(config.String("CLINIC_TIMEZONE", "UTC")); err != nil {
		return Config{}, fmt.Errorf("CLINIC_TIMEZONE: %w", err)
	}

	bufferMinutes, err := config.Int("BUFFER_MINUTES", 15)
	if err != nil {
		return Config{}, err
	}
	if bufferMinutes < 0 {
		return Config{}, fmt.Errorf("BUFFER_MINUTES must not be negative")
	}
	cfg.Buffer = time.Duration(bufferMinutes) * time.Minute
	if cfg.ProviderBuffers, err = config.MinutesByKey("PROVIDER_BUFFER_MINUTES"); err != nil {
		return Config{}, err
	}
	if cfg.TxTimeout, err = config.Duration("TX_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}

	if cfg.NotifyWorkers, err = config.Int("NOTIFY_WORKERS", 4); err != nil {
		return Config{}, err
	}
	if cfg.NotifyQueueSize, err = config.Int("NOTIFY_QUEUE_SIZE", 256); err != nil {
		return Config{}, err
	}
	if cfg.NotifyTimeout, err = config.Duration("NOTIFY_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ConsumerAttempts, err = config.Int("KAFKA_CONSUMER_MAX_ATTEMPTS", 5); err != nil {
		return Config{}, err
	}
	if cfg.ConsumerBackoff, err = config.Duration("KAFKA_CONSUMER_BACKOFF", time.Second); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitPerMinute, err = config.Int("RATE_LIMIT_PER_MINUTE", 60); err != nil {
		return Config{}, err
	}

	switch cfg.SyncTransport {
	case "kafka", "noop":
	case "webhook":
		if cfg.WebhookURL == "" {
			return Config{}, fmt.Errorf("SYNC_WEBHOOK_URL is required when SYNC_TRANSPORT=webhook")
		}
	default:
		return Config{}, fmt.Errorf("SYNC_TRANSPORT must be kafka, webhook or noop (got %q)", cfg.SyncTransport)
	}
	return cfg, nil
}
