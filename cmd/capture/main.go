package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medcom_capture/internal/config"
	"medcom_capture/internal/handler"
	"medcom_capture/internal/media"
	"medcom_capture/internal/middleware"
	"medcom_capture/internal/recorder"
	"medcom_capture/internal/repository"
	"medcom_capture/internal/scanner"
	"medcom_capture/internal/service"
	"medcom_capture/internal/storage"
	"medcom_capture/pkg/jwt"
	"medcom_capture/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	appLogger := logger.New(cfg.Log.Level)
	defer appLogger.Sync()

	// PostgreSQL и Redis необязательны
	dbPool := connectDatabase(cfg.Database, appLogger)
	if dbPool != nil {
		defer dbPool.Close()
	}
	rdb := connectRedis(cfg.Redis, appLogger)
	if rdb != nil {
		defer rdb.Close()
	}

	// Инициализация репозиториев
	repos := repository.NewRepositories(dbPool, rdb, cfg.Redis, appLogger)
	if repos.Recording != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := repos.Recording.EnsureSchema(ctx); err != nil {
			appLogger.Fatal("Failed to prepare recordings catalog", "error", err)
		}
		cancel()
	}

	// Платформенные возможности захвата
	platform := service.Platform{
		Acquirer: media.NewDeviceAcquirer(media.EncoderConfig{
			VideoBitRate: cfg.Recording.VideoBitRate,
			AudioBitRate: cfg.Recording.AudioBitRate,
		}, appLogger.With("component", "acquirer")),
		Recorder: recorder.NewWebMCapability(appLogger.With("component", "recorder")),
		Saver:    storage.NewDiskSaver(cfg.Recording.OutputDir, appLogger),
		NewPreview: func() scanner.Preview {
			return scanner.NewTrackPreview(appLogger.With("component", "preview"))
		},
		Decoder: scanner.DecodeQR,
	}

	hub := handler.NewEventHub(appLogger)

	// Инициализация сервисов
	services := service.NewServices(repos, platform, hub.Broadcast, cfg, appLogger)

	// Инициализация middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.Control.Secret, appLogger)

	// Инициализация handlers
	handlers := handler.NewHandlers(services, repos, hub, cfg, appLogger)

	// Настройка роутера
	router := setupRouter(handlers, authMiddleware, cfg, appLogger)

	// Токен для UI-оболочки
	controlToken, err := jwt.GenerateControlToken("host", cfg.Control.Issuer, cfg.Control.Secret, cfg.Control.TokenTTL)
	if err != nil {
		appLogger.Fatal("Failed to issue control token", "error", err)
	}
	if err := jwt.WriteTokenFile(cfg.Control.TokenFile, controlToken); err != nil {
		appLogger.Fatal("Failed to write control token", "error", err)
	}
	appLogger.Info("Control token issued",
		"file", cfg.Control.TokenFile,
		"fingerprint", jwt.Fingerprint(controlToken),
		"ttl", cfg.Control.TokenTTL,
	)

	// Запуск HTTP сервера. Без WriteTimeout: start и begin ждут
	// ответа пользователя на запрос разрешения.
	srv := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		appLogger.Info("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Ожидание сигнала для graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Сначала отпускаем камеру и экран, потом HTTP
	services.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exited")
}

func connectDatabase(cfg config.DatabaseConfig, log logger.Logger) *pgxpool.Pool {
	if cfg.DSN == "" {
		return nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		log.Fatal("Invalid database DSN", "error", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConnections)
	}

	dbPool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}

	// Проверка подключения к БД
	if err := dbPool.Ping(context.Background()); err != nil {
		log.Fatal("Failed to ping database", "error", err)
	}
	log.Info("Database connection established")
	return dbPool
}

func connectRedis(cfg config.RedisConfig, log logger.Logger) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Проверка подключения к Redis
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", "error", err)
	}
	log.Info("Redis connection established")
	return rdb
}

func setupRouter(
	handlers *handler.Handlers,
	authMiddleware *middleware.AuthMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler())

	handlers.Register(router, authMiddleware)

	return router
}
