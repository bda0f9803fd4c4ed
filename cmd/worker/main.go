package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"shipmentportal/config"
	"shipmentportal/internal/httpserver"
	"shipmentportal/internal/mailer"
	"shipmentportal/internal/repository"
	"shipmentportal/internal/worker"
	"shipmentportal/pkg/db"
	"shipmentportal/pkg/logger"
	"shipmentportal/pkg/mq"
	"shipmentportal/pkg/outbox"
	redisclient "shipmentportal/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewLogger().Fatal("Failed to load config", zap.Error(err))
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		logger.NewLogger().Fatal("Failed to init logger", zap.Error(err))
	}
	defer log.Sync()

	log.Info("Starting notification worker...",
		zap.String("db_host", cfg.DB.Host),
		zap.String("smtp_host", cfg.SMTP.Host),
		zap.String("poll_schedule", cfg.Notifier.PollSchedule),
		zap.String("summary_schedule", cfg.Notifier.SummarySchedule),
		zap.Bool("mq_enabled", cfg.MQ.URL != ""),
	)

	if len(cfg.Notifier.RecipientList()) == 0 {
		log.Fatal("No notification recipients configured (notifier.recipients / VHC_EMAILS)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	dbConn, err := db.NewConnection(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()
	log.Info("Database connection established successfully")

	// Redis (exception alert dedupe)
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redisclient.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, exception alerts will not be deduplicated", zap.Error(err))
		} else {
			defer rdb.Close()
		}
	}

	// SMTP relay
	mail, err := mailer.New(cfg.SMTP, log)
	if err != nil {
		log.Fatal("Failed to init mailer", zap.Error(err))
	}

	notificationRepo := repository.NewNotificationRepository(dbConn, log)
	svc := worker.NewNotifier(cfg.Notifier, notificationRepo, mail, rdb, log)

	sched, err := worker.NewScheduler(svc, cfg.Notifier, log)
	if err != nil {
		log.Fatal("Failed to register jobs", zap.Error(err))
	}
	sched.Start()

	// Outbox Dispatcher
	if cfg.MQ.URL != "" {
		publisher, err := mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			log.Fatal("Failed to init MQ publisher", zap.Error(err))
		}
		defer publisher.Close()

		dispatcher := outbox.NewDispatcher(outbox.NewRepository(dbConn), publisher, log).
			WithInterval(cfg.Outbox.Interval).
			WithBatchSize(cfg.Outbox.BatchSize).
			WithMaxRetries(cfg.Outbox.MaxRetries)
		go dispatcher.Start(ctx)
		log.Info("Outbox dispatcher started")
	} else {
		log.Info("MQ url not set, outbox events stay pending")
	}

	// HTTP Server (for health checks)
	engine := gin.New()
	engine.Use(gin.Recovery())
	httpserver.RegisterHealth(engine, dbConn)
	srv := &http.Server{
		Addr:              ":" + cfg.Notifier.HealthPort,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("Health server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Health server failed", zap.Error(err))
		}
	}()

	log.Info("Notification worker is fully initialized and running")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down notification worker gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Error("Scheduler did not stop in time", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Health server shutdown error", zap.Error(err))
	}

	log.Info("Notification worker shutdown complete")
}
