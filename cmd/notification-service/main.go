// cmd/notification-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"notification-service/internal/api"
	"notification-service/internal/channel"
	"notification-service/internal/common/aws"
	"notification-service/internal/common/config"
	"notification-service/internal/common/database"
	"notification-service/internal/common/logger"
	"notification-service/internal/common/observability"
	"notification-service/internal/dispatch"
	"notification-service/internal/models"
	"notification-service/internal/queue"
	"notification-service/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting notification service...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry (status cache, optional) ---
	var cache *store.StatusCache
	if cfg.Database.Redis.Address != "" {
		var redis *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")

		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()
		cache = store.NewStatusCache(redis.Client, time.Duration(cfg.Database.Redis.TTL)*time.Second)
		zapLog.Info("Redis connected successfully")
	} else {
		zapLog.Info("Redis not configured, status cache disabled")
	}

	// --- Init RabbitMQ bridge with retry ---
	var bridge *queue.Bridge
	err = retryWithBackoff(func() error {
		var err error
		bridge, err = queue.Connect(cfg.Queue.URL, cfg.Queue.Name, cfg.Queue.Prefetch, log)
		return err
	}, 10, 2*time.Second, zapLog, "RabbitMQ connection")

	if err != nil {
		zapLog.Fatal("rabbitmq failed after retries", zap.Error(err))
	}
	defer bridge.Close()
	zapLog.Info("RabbitMQ connected successfully", zap.String("queue", cfg.Queue.Name))

	st := store.New(pg.DB, cache, log)

	// --- Build channel adapters ---
	// Missing provider credentials leave the adapter unconfigured rather
	// than preventing startup; deliveries on that channel fail and retry.
	adapters := channel.Registry{
		models.TypeEmail: buildEmailAdapter(ctx, cfg, zapLog),
		models.TypeSMS:   buildSMSAdapter(ctx, cfg, zapLog),
		models.TypeInApp: channel.NewInAppAdapterWithLatency(time.Duration(cfg.Delivery.InAppLatency) * time.Millisecond),
	}

	dispatcher := dispatch.New(st, adapters, obs, log)

	// --- Start queue consumers ---
	consumeCtx, stopConsumers := context.WithCancel(ctx)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := bridge.Consume(consumeCtx, cfg.Queue.Workers, dispatcher.Dispatch); err != nil {
			zapLog.Error("consumer stopped", zap.Error(err))
		}
	}()
	zapLog.Info("Queue consumers started", zap.Int("workers", cfg.Queue.Workers))

	// --- HTTP API ---
	var status api.StatusReader
	if cache != nil {
		status = cache
	}
	handler := api.NewHandler(st, bridge, status, log)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: api.NewRouter(handler),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.Int("port", cfg.HTTP.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}

	stopConsumers()
	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		zapLog.Warn("Timed out waiting for consumers to drain")
	}

	zapLog.Info("Notification service stopped gracefully")
}

func buildEmailAdapter(ctx context.Context, cfg *config.Config, log *zap.Logger) channel.Adapter {
	switch {
	case cfg.Email.Provider == "ses" && cfg.Email.SESConfigured():
		client, err := aws.NewSESClient(ctx, cfg.Email.SES.Region)
		if err != nil {
			log.Warn("SES client init failed, email channel unconfigured", zap.Error(err))
			return channel.NewUnconfiguredEmailAdapter()
		}
		log.Info("Email channel using SES", zap.String("region", cfg.Email.SES.Region))
		return channel.NewSESEmailAdapter(client, cfg.Email.SES.FromEmail)

	case cfg.Email.SMTPConfigured():
		log.Info("Email channel using SMTP", zap.String("host", cfg.Email.SMTP.Host))
		return channel.NewSMTPEmailAdapter(
			cfg.Email.SMTP.Host,
			cfg.Email.SMTP.Port,
			cfg.Email.SMTP.Username,
			cfg.Email.SMTP.Password,
			cfg.Email.SMTP.From,
		)

	default:
		log.Warn("Email channel unconfigured")
		return channel.NewUnconfiguredEmailAdapter()
	}
}

func buildSMSAdapter(ctx context.Context, cfg *config.Config, log *zap.Logger) channel.Adapter {
	if !cfg.SMS.Configured() {
		log.Warn("SMS channel unconfigured")
		return channel.NewUnconfiguredSMSAdapter()
	}

	client, err := aws.NewSNSClient(ctx, cfg.SMS.Region)
	if err != nil {
		log.Warn("SNS client init failed, SMS channel unconfigured", zap.Error(err))
		return channel.NewUnconfiguredSMSAdapter()
	}
	log.Info("SMS channel using SNS", zap.String("region", cfg.SMS.Region))
	return channel.NewSMSAdapter(client, cfg.SMS.SenderID)
}
