package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/nats-io/nats.go"
	goredis "github.com/redis/go-redis/v9"
	"github.com/slack-go/slack"

	"github.com/shenikar/accident_alert_system/internal/config"
	"github.com/shenikar/accident_alert_system/internal/feed"
	v1 "github.com/shenikar/accident_alert_system/internal/handler/http/v1"
	"github.com/shenikar/accident_alert_system/internal/notify"
	"github.com/shenikar/accident_alert_system/internal/repository"
	"github.com/shenikar/accident_alert_system/internal/service"
	"github.com/shenikar/accident_alert_system/internal/snapshot"
	"github.com/shenikar/accident_alert_system/pkg/logger"
	natsclient "github.com/shenikar/accident_alert_system/pkg/nats"
	"github.com/shenikar/accident_alert_system/pkg/postgres"
	redisclient "github.com/shenikar/accident_alert_system/pkg/redis"
	"github.com/sirupsen/logrus"

	_ "github.com/shenikar/accident_alert_system/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func runMigrations(cfg *config.Config, log *logrus.Logger) error {
	log.Info("Running database migrations...")

	migrationURL := cfg.DatabaseURL
	if !strings.HasPrefix(migrationURL, "pgx5://") {
		migrationURL = strings.Replace(migrationURL, "postgres://", "pgx5://", 1)
		migrationURL = strings.Replace(migrationURL, "postgresql://", "pgx5://", 1)
	}

	m, err := migrate.New(cfg.MigrationsPath, migrationURL)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("Database migrations applied successfully")
	return nil
}

// storage - набор репозиториев выбранного драйвера
type storage struct {
	incidents     service.IncidentRepository
	devices       service.DeviceRepository
	notifications service.NotificationRepository
	close         func()
}

func newStorage(ctx context.Context, cfg *config.Config, redisClient *goredis.Client, log *logrus.Logger) (*storage, error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		log.Warn("Using in-memory storage, data is lost on restart")
		store := repository.NewMemoryStore()
		return &storage{incidents: store, devices: store, notifications: store, close: func() {}}, nil
	}

	if err := runMigrations(cfg, log); err != nil {
		return nil, err
	}

	dbpool, err := postgres.NewPostgresDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info("Successfully connected to PostgreSQL")

	return &storage{
		incidents:     repository.NewIncidentRepository(dbpool, redisClient, cfg.IncidentCacheTTL),
		devices:       repository.NewDeviceRepository(dbpool),
		notifications: repository.NewNotificationRepository(dbpool),
		close:         dbpool.Close,
	}, nil
}

func newAlertSender(cfg *config.Config, log *logrus.Logger) notify.Sender {
	switch cfg.AlertTransport {
	case config.AlertTransportGateway:
		return notify.NewGatewaySender(cfg.AlertGatewayURL, cfg.AlertGatewaySecret, &http.Client{})
	case config.AlertTransportSlack:
		return notify.NewSlackSender(slack.New(cfg.SlackBotToken))
	default:
		log.Warn("Alert transport is log-only, alerts will not leave this process")
		return notify.NewLogSender(log)
	}
}

// @title Accident Alert System API
// @version 1.0
// @description Accident detection ingestion and emergency alert dispatch.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func main() {
	// Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	log := logger.New(cfg.LogLevel)

	// Контекст для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Инициализация Redis клиента (кеш инцидентов и очередь ленты)
	var redisClient *goredis.Client
	if cfg.CacheEnabled() {
		redisClient, err = redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		log.Info("Successfully connected to Redis")
	}

	store, err := newStorage(ctx, cfg, redisClient, log)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.close()

	// Лента событий об инцидентах
	var (
		publisher  feed.Publisher = feed.NopPublisher{}
		feedWorker *feed.Worker
		natsConn   *nats.Conn
	)
	switch cfg.FeedBackend {
	case config.FeedBackendRedis:
		if redisClient == nil {
			log.Warn("FEED_BACKEND=redis but Redis is not configured, incident feed disabled")
			break
		}
		publisher = feed.NewRedisPublisher(redisClient)
		if cfg.WebhookURL != "" {
			feedWorker = feed.NewWorker(redisClient, log, cfg)
			feedWorker.Start(ctx)
		}
	case config.FeedBackendNATS:
		natsConn, err = natsclient.NewNATSConn(cfg.NATSURL, "accident_alert_system", log)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer natsConn.Close()
		publisher = feed.NewNATSPublisher(natsConn, cfg.FeedSubject)
		log.WithField("subject", cfg.FeedSubject).Info("Publishing incident feed to NATS")
	}

	// Рассылка оповещений
	channels := notify.DefaultChannels(newAlertSender(cfg, log), cfg.PoliceRecipient, cfg.HospitalRecipient)
	dispatcher := notify.NewDispatcher(channels, store.notifications, cfg.AlertSendTimeout, log)

	// Хранилище снимков
	var snapshotService service.SnapshotService
	if cfg.SnapshotsEnabled() {
		minioStore, err := snapshot.NewMinioStore(cfg)
		if err != nil {
			log.Fatalf("Failed to create snapshot store: %v", err)
		}
		if err := minioStore.EnsureBucket(ctx); err != nil {
			log.Fatalf("Failed to prepare snapshot bucket: %v", err)
		}
		snapshotService = service.NewSnapshotService(minioStore, log)
	}

	// Инициализация сервисов
	incidentService := service.NewIncidentService(store.incidents, store.devices, store.notifications, dispatcher, publisher, log)
	deviceService := service.NewDeviceService(store.devices, log)

	// Инициализация хэндлеров
	handler := v1.NewHandler(incidentService, deviceService, snapshotService, log, cfg)

	// Настройка Gin роутера
	router := gin.Default()
	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSAllowOrigins) == 0 || cfg.CORSAllowOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSAllowOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"}
	router.Use(cors.New(corsConfig))

	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	// Добавление маршрута для Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Запуск HTTP-сервера
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Запуск сервера в горутине
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Error starting HTTP server: %v", err)
		}
	}()
	log.Infof("HTTP server started on port %s", cfg.HTTPPort)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal, shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second+cfg.AlertSendTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	// Дожидаемся отправки начатых оповещений
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("In-flight alerts abandoned at shutdown")
	}

	cancel()
	if feedWorker != nil {
		select {
		case <-feedWorker.Done():
		case <-shutdownCtx.Done():
			log.Warn("Incident feed worker did not stop in time")
		}
	}

	log.Info("Server gracefully stopped")
}
