/**
 * @description
 * This is the main entry point for the sharepod service. It is responsible for
 * initializing all components of the service, including configuration, database
 * connection, the payment-processor client, the message broker, repositories,
 * the core application service, and the HTTP server.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Redis client for rate limiting.
 * - internal/api, internal/app, internal/config, internal/metrics, internal/store.
 * - pkg/stripeclient, pkg/rabbitmq: External service clients.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/oyosokoto/sharepod-backend/internal/api"
	"github.com/oyosokoto/sharepod-backend/internal/app"
	"github.com/oyosokoto/sharepod-backend/internal/config"
	"github.com/oyosokoto/sharepod-backend/internal/metrics"
	"github.com/oyosokoto/sharepod-backend/internal/store"
	"github.com/oyosokoto/sharepod-backend/pkg/rabbitmq"
	"github.com/oyosokoto/sharepod-backend/pkg/stripeclient"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"jwt secret must be configured\" env=JWT_SECRET")
	}
	if strings.TrimSpace(cfg.StripeSecretKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"stripe secret key must be configured\" env=STRIPE_SECRET_KEY")
	}

	log.Printf("level=info component=bootstrap msg=\"starting sharepod-backend\" port=%s", cfg.ServerPort)

	metrics.Init()

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts behind poolers.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	if os.Getenv("APP_MIGRATE") == "true" {
		migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 60*time.Second)
		if err := store.RunMigrations(migrateCtx, dbpool); err != nil {
			cancelMigrate()
			log.Fatalf("level=fatal component=bootstrap msg=\"migrations failed\" err=%v", err)
		}
		cancelMigrate()
		log.Println("level=info component=bootstrap msg=\"migrations applied\"")
	}

	// Initialize the RabbitMQ producer to publish pod update events.
	// This service only needs to publish, so we use a producer.
	var producer rabbitmq.Publisher
	rabbitProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &rabbitmq.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		producer = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize the payment-processor client.
	stripeClient := stripeclient.NewClient(
		cfg.StripeAPIBaseURL,
		cfg.StripeSecretKey,
		time.Duration(cfg.ProcessorTimeoutSeconds)*time.Second,
	)

	// Redis backs the distributed rate limiter. Missing or unreachable Redis
	// degrades to no rate limiting rather than blocking startup.
	var redisClient *redis.Client
	rateLimitingEnabled := cfg.JoinRateLimitPerMinute > 0 || cfg.SessionRateLimitPerMinute > 0
	if rateLimitingEnabled {
		if strings.TrimSpace(cfg.RedisURL) == "" {
			log.Println("level=warn component=bootstrap msg=\"redis url missing; rate limiting disabled\" env=REDIS_URL")
		} else {
			redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
			if parseErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; rate limiting disabled\" err=%v", parseErr)
			} else {
				redisClient = redis.NewClient(redisOptions)
				pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelPing()
				if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
					log.Printf("level=warn component=bootstrap msg=\"redis ping failed; rate limiting disabled\" err=%v", pingErr)
					redisClient.Close()
					redisClient = nil
				} else {
					defer redisClient.Close()
					log.Println("level=info component=bootstrap msg=\"redis connected\"")
				}
			}
		}
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application service with its dependencies.
	podService := app.NewService(repository, stripeClient, producer, cfg.PodEventExchange, app.ServiceOptions{
		Currency:              cfg.Currency,
		JoinCodeLength:        cfg.JoinCodeLength,
		JoinCodeMaxAttempts:   cfg.JoinCodeMaxAttempts,
		JoinLimitPerMinute:    cfg.JoinRateLimitPerMinute,
		SessionLimitPerMinute: cfg.SessionRateLimitPerMinute,
		ProcessorTimeout:      time.Duration(cfg.ProcessorTimeoutSeconds) * time.Second,
	})
	if redisClient != nil {
		podService.SetRateLimiter(app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix))
	}

	// Initialize the API handlers and router.
	podHandlers := api.NewPodHandlers(podService)
	webhookHandlers := api.NewWebhookHandlers(
		podService,
		cfg.StripeWebhookSecret,
		time.Duration(cfg.WebhookToleranceSeconds)*time.Second,
	)
	router := api.Routes(podHandlers, webhookHandlers, cfg.JWTSecret, cfg.JWTIssuer)

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
