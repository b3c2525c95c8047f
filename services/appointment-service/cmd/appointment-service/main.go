package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/clinicdesk/libs/config"
	"github.com/md-rashed-zaman/clinicdesk/libs/db"
	"github.com/md-rashed-zaman/clinicdesk/libs/httpx"
	"github.com/md-rashed-zaman/clinicdesk/libs/kafkax"
	otelx "github.com/md-rashed-zaman/clinicdesk/libs/otel"
	"github.com/md-rashed-zaman/clinicdesk/libs/runtime"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/appointments"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/consumer"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/handlers"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/inbox"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/metrics"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/notify"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/policy"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("load .env failed", "err", err)
		os.Exit(1)
	}
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(cfg.ServiceName, cfg.LogLevel)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.ServiceName))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	syncer, closeSync := buildSync(cfg, logger)
	defer closeSync()

	var waitlist notify.Waitlist = notify.NoopWaitlist{}
	if rdb != nil {
		waitlist = notify.NewRedisWaitlist(rdb, cfg.WaitlistStream)
	} else {
		logger.Warn("waitlist notifications disabled (no redis configured)")
	}

	dispatcher := notify.NewDispatcher(syncer, waitlist, logger, metrics.NewNotifyMetrics(registry), notify.DispatcherConfig{
		Workers:     cfg.NotifyWorkers,
		QueueSize:   cfg.NotifyQueueSize,
		CallTimeout: cfg.NotifyTimeout,
	})

	repo := storage.NewAppointmentRepository(pool)
	svc := appointments.NewService(
		repo,
		policy.NewStaticProvider(cfg.Buffer, cfg.ProviderBuffers),
		dispatcher,
		logger,
		metrics.NewAppointmentMetrics(registry),
		appointments.Config{TxTimeout: cfg.TxTimeout, Location: cfg.Location},
	)

	if len(kafkax.SplitBrokers(cfg.KafkaBrokers)) > 0 && cfg.OutcomeTopic != "" {
		reader := consumer.NewReader(consumer.Config{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.GroupID,
			Topic:   cfg.OutcomeTopic,
		})
		outcomes := consumer.New(reader, logger, inbox.NewRepository(pool), consumer.OutcomeHandler(svc, logger)).
			WithRetry(cfg.ConsumerAttempts, cfg.ConsumerBackoff)
		go outcomes.Run(ctx)
	} else {
		logger.Warn("outcome consumer disabled (no kafka brokers configured)")
	}

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if cfg.KafkaBrokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
	}
	if rdb != nil {
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	handlers.NewAppointmentHandler(svc, logger, cfg.Location).Register(mux)

	var limiter httpx.Limiter = httpx.NewMemoryLimiter(cfg.RateLimitPerMinute, time.Minute)
	if rdb != nil {
		limiter = httpx.NewRedisLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, "rl:appointments")
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.Only(httpx.WithRateLimit(limiter, logger, true),
			"/api/v1/appointments/reschedule",
			"/api/v1/appointments/cancel",
			"/api/v1/appointments/confirm",
		),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(cfg.TxTimeout+5*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "appointments")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := runtime.Serve(ctx, srv, logger, 10*time.Second,
		runtime.ShutdownHook{Name: "notify", Fn: dispatcher.Close},
	); err != nil {
		logger.Error("service exited with error", "err", err)
	}
}

// buildSync picks the sync collaborator transport. The returned func releases it.
func buildSync(cfg Config, logger *slog.Logger) (notify.Sync, func()) {
	switch cfg.SyncTransport {
	case "webhook":
		return notify.NewWebhookSync(cfg.WebhookURL, cfg.WebhookToken), func() {}
	case "kafka":
		if len(kafkax.SplitBrokers(cfg.KafkaBrokers)) == 0 {
			logger.Warn("sync notifications disabled (no kafka brokers configured)")
			return notify.NoopSync{}, func() {}
		}
		writer := kafkax.NewWriter(cfg.KafkaBrokers, cfg.NotifyTimeout)
		return notify.NewKafkaSync(writer), func() { _ = writer.Close() }
	}
	return notify.NoopSync{}, func() {}
}
