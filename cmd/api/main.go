package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/creatorhub-api/internal/config"
	"github.com/noah-isme/creatorhub-api/internal/database"
	"github.com/noah-isme/creatorhub-api/internal/handler"
	"github.com/noah-isme/creatorhub-api/internal/middleware"
	"github.com/noah-isme/creatorhub-api/internal/repository"
	"github.com/noah-isme/creatorhub-api/internal/router"
	"github.com/noah-isme/creatorhub-api/internal/service"
	"github.com/noah-isme/creatorhub-api/internal/utils"
	"github.com/noah-isme/creatorhub-api/pkg/ai"
	cloud "github.com/noah-isme/creatorhub-api/pkg/cloudinary"
	"github.com/noah-isme/creatorhub-api/pkg/lock"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnLifetime,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis not configured, using in-process evaluation lock")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	storage, err := cloud.New(cloud.Config{
		CloudName:    cfg.CloudinaryCloudName,
		APIKey:       cfg.CloudinaryAPIKey,
		APISecret:    cfg.CloudinaryAPISecret,
		Folder:       cfg.CloudinaryUploadFolder,
		ResourceType: "video",
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	transport, err := newModelTransport(cfg, logger)
	if err != nil {
		log.Fatalf("failed to configure model transport: %v", err)
	}
	evaluator := ai.NewPipelineEvaluator(ai.NewInvoker(transport, ai.InvokerConfig{
		SystemPrompt: cfg.AISystemPrompt,
		Logger:       logger,
	}), logger)

	var locker lock.Locker = lock.NewLocalLocker()
	if redisClient != nil {
		locker = lock.NewRedisLocker(redisClient, "creatorhub:submission-evaluation", cfg.EvaluationLockTTL, logger)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	submissionRepo := repository.NewSubmissionRepository(db)
	gigRepo := repository.NewGigRepository(db)

	notificationService := service.NewNotificationService(repository.NewNotificationRepository(db), redisClient, cfg.NotificationChannel, natsConn, validate, logger)
	reputationService := service.NewReputationService(repository.NewReputationRepository(db), redisClient, cfg.ReputationCacheTTL, logger)
	paymentService := service.NewPaymentService(repository.NewPaymentRepository(db), cfg.PlatformFeeRate, logger)
	settlementService := service.NewSettlementService(submissionRepo, notificationService, reputationService, paymentService, logger)
	evaluationService := service.NewEvaluationService(submissionRepo, gigRepo, evaluator, settlementService, locker, validate, logger)
	videoService := service.NewVideoService(storage, submissionRepo, cfg.MaxVideoSizeMB, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.MaxVideoSizeMB + 1) * 1024 * 1024,
		ErrorHandler: utils.ErrorHandler,
	})

	middleware.Register(app, middleware.Config{
		Logger:         &logger,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AccessLog:      cfg.AccessLog,
	})
	router.Register(app, cfg, router.Dependencies{
		EvaluationHandler:   handler.NewEvaluationHandler(evaluationService, logger),
		VideoHandler:        handler.NewVideoHandler(videoService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, cfg.NotificationKeepAlive),
		LedgerHandler:       handler.NewLedgerHandler(reputationService, paymentService, logger),
		EvaluateLimiter:     middleware.RateLimit("evaluate", "id", cfg.EvaluateRateLimit, cfg.EvaluateRateWindow),
		HealthProbes:        healthProbes(db, redisClient),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notificationService.Start(ctx)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func healthProbes(db *gorm.DB, redisClient *redis.Client) map[string]handler.HealthProbe {
	probes := map[string]handler.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	return probes
}

func newModelTransport(cfg config.Config, logger zerolog.Logger) (ai.Transport, error) {
	switch cfg.AIProvider {
	case "openai":
		return ai.NewOpenAITransport(ai.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Logger:  logger,
		})
	default:
		return ai.NewReplicateTransport(ai.ReplicateConfig{
			BaseURL:      cfg.ReplicateBaseURL,
			APIToken:     cfg.ReplicateAPIToken,
			Model:        cfg.ReplicateModel,
			Timeout:      cfg.ReplicateTimeout,
			PollInterval: cfg.ReplicatePollInterval,
			Logger:       logger,
		})
	}
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
