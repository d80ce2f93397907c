package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"courseplatform/config"
	"courseplatform/internal/application/usecase"
	"courseplatform/internal/infrastructure/cache"
	"courseplatform/internal/infrastructure/email"
	"courseplatform/internal/infrastructure/logger"
	"courseplatform/internal/infrastructure/metrics"
	"courseplatform/internal/infrastructure/parser"
	"courseplatform/internal/infrastructure/repository"
	"courseplatform/internal/infrastructure/scheduler"
	"courseplatform/internal/infrastructure/security"
	"courseplatform/internal/infrastructure/storage"
	"courseplatform/internal/middleware"
	grpc_server "courseplatform/internal/transport/grpc"
	handlers "courseplatform/internal/transport/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	if err := db.AutoMigrate(repository.Models()...); err != nil {
		return err
	}
	zlog.Info("connected to postgres", zap.String("host", cfg.DBHost))

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}
	zlog.Info("connected to redis", zap.String("addr", cfg.RedisAddr))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var videos usecase.VideoLinker
	if cfg.S3Endpoint != "" {
		store, err := storage.NewVideoStore(storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
			Bucket:    cfg.VideoBucket,
		}, cfg.VideoURLTTL)
		if err != nil {
			return err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return err
		}
		videos = store
	} else {
		zlog.Warn("S3_ENDPOINT not set, lesson videos are served from cloud links")
	}

	mailer, err := email.NewSender(email.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPEmail,
	}, cfg.FrontendURL, zlog)
	if err != nil {
		return err
	}

	userRepo := repository.NewUserRepository(db)
	tokenCache := cache.NewTokenCache(rdb)

	profileUC := usecase.NewProfileUseCase(repository.NewProfileRepository(db), zlog, cfg.DeviceDefaultCap)
	deviceUC := usecase.NewDeviceUseCase(repository.NewDeviceRepository(db), tokenCache, m, zlog, usecase.DeviceConfig{
		DefaultCap:      cfg.DeviceDefaultCap,
		EvictionEnabled: cfg.DeviceEvictionEnabled,
		MaxAttempts:     cfg.DeviceAdmitMaxAttempts,
	})
	authUC := usecase.NewAuthUseCase(
		userRepo, profileUC, deviceUC, tokenCache,
		security.NewPasswordHasher(),
		security.NewTokenManager(cfg.AccessSecret, cfg.RefreshSecret),
		mailer, zlog,
	)
	courseUC := usecase.NewCourseUseCase(
		repository.NewCourseRepository(db, rdb), profileUC, parser.NewMailRuParser(zlog), videos, zlog,
	)
	paymentUC := usecase.NewPaymentUseCase(repository.NewPaymentRepository(db), profileUC, courseUC, zlog)

	sched, err := scheduler.New(deviceUC, profileUC, cfg.DeviceStaleDays, zlog)
	if err != nil {
		return err
	}
	sched.Start()

	health := func(ctx context.Context) error {
		return errors.Join(sqlDB.PingContext(ctx), rdb.Ping(ctx).Err())
	}

	gin.SetMode(gin.ReleaseMode)
	router := handlers.NewRouter(handlers.RouterDeps{
		Handlers: handlers.Handlers{
			Auth:    handlers.NewAuthHandler(authUC, cfg.CookieSecure),
			User:    handlers.NewUserHandler(profileUC, deviceUC),
			Course:  handlers.NewCourseHandler(courseUC),
			Payment: handlers.NewPaymentHandler(paymentUC),
			Admin:   handlers.NewAdminHandler(profileUC, deviceUC),
		},
		Tokens:         authUC,
		Profiles:       profileUC,
		Limiter:        middleware.NewRateLimiter(rdb, zlog),
		Metrics:        reg,
		Health:         health,
		AllowedOrigins: cfg.Origins(),
		Logger:         zlog,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc_server.NewServer(health, zlog)
	lis, err := net.Listen("tcp", cfg.GRPCPort)
	if err != nil {
		return err
	}
	go grpcServer.Watch(ctx, 15*time.Second)

	errCh := make(chan error, 2)
	go func() {
		zlog.Info("http server listening", zap.String("addr", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		zlog.Info("grpc server listening", zap.String("addr", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		zlog.Info("shutting down")
	case runErr = <-errCh:
		zlog.Error("server failed, shutting down", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zlog.Error("http shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	sched.Stop(shutdownCtx)
	authUC.Wait()

	if runErr != nil {
		return runErr
	}
	zlog.Info("server exited")
	return nil
}
