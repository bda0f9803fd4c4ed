package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"shipmentportal/config"
	"shipmentportal/internal/handler"
	"shipmentportal/internal/httpserver"
	"shipmentportal/internal/repository"
	"shipmentportal/internal/service/auth"
	"shipmentportal/internal/service/dashboard"
	"shipmentportal/internal/service/document"
	"shipmentportal/internal/service/invoice"
	"shipmentportal/internal/service/shipment"
	"shipmentportal/internal/storage"
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

	log.Info("Starting shipment portal API...",
		zap.String("db_host", cfg.DB.Host),
		zap.String("port", cfg.Server.Port),
	)

	ctx := context.Background()

	// DB
	dbConn, err := db.NewConnection(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	// Redis 只用于 dashboard 缓存，不可用时降级
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redisclient.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, dashboard cache disabled", zap.Error(err))
		} else {
			defer rdb.Close()
		}
	}

	files, err := storage.NewFileStore(cfg.Upload, log)
	if err != nil {
		log.Fatal("Failed to init upload directory", zap.Error(err))
	}

	// Repositories
	userRepo := repository.NewUserRepository(dbConn)
	shipmentRepo := repository.NewShipmentRepository(dbConn)
	exceptionRepo := repository.NewExceptionRepository(dbConn)
	documentRepo := repository.NewDocumentRepository(dbConn)
	invoiceRepo := repository.NewInvoiceRepository(dbConn)
	dashboardRepo := repository.NewDashboardRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn, log)

	// Services
	authService := auth.NewService(userRepo, cfg.JWT.Secret, cfg.JWT.TokenTTL, log)
	shipmentService := shipment.NewService(shipmentRepo, exceptionRepo, log)
	documentService := document.NewService(documentRepo, shipmentRepo, files, log)
	invoiceService := invoice.NewService(invoiceRepo, log)
	dashboardService := dashboard.NewService(dashboardRepo, log).WithCache(rdb, cfg.Server.DashboardCacheTTL)

	// Outbox replay 需要 broker；未配置时 admin 重放接口返回 503
	var replayer handler.OutboxReplayer
	if cfg.MQ.URL != "" {
		publisher, err := mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			log.Warn("MQ publisher unavailable, outbox replay disabled", zap.Error(err))
		} else {
			defer publisher.Close()
			replayer = outbox.NewReplayService(outbox.NewRepository(dbConn), publisher, log)
		}
	}

	router := httpserver.NewRouter(httpserver.Handlers{
		Auth:      handler.NewAuthHandler(authService, log),
		Shipments: handler.NewShipmentHandler(shipmentService, log),
		Documents: handler.NewDocumentHandler(documentService, files.MaxBytes(), log),
		Invoices:  handler.NewInvoiceHandler(invoiceService, log),
		Dashboard: handler.NewDashboardHandler(dashboardService, log),
		Admin:     handler.NewAdminHandler(replayer, notificationRepo, log),
	}, cfg.JWT.Secret, dbConn, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down API gracefully...")
	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("API shutdown complete")
}
