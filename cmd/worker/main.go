package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/warmlane/internal/config"
	"github.com/ignite/warmlane/internal/eventbus"
	"github.com/ignite/warmlane/internal/mailtransport"
	"github.com/ignite/warmlane/internal/pkg/logger"
	"github.com/ignite/warmlane/internal/queue"
	"github.com/ignite/warmlane/internal/ratelimit"
	"github.com/ignite/warmlane/internal/repository/dynamo"
	"github.com/ignite/warmlane/internal/repository/postgres"
	"github.com/ignite/warmlane/internal/service/analytics"
	"github.com/ignite/warmlane/internal/service/delivery"
	"github.com/ignite/warmlane/internal/service/message"
)

// main runs the Delivery Queue's worker pool process (§4.5, §5): it
// drains warmlane:queue: jobs through processEmailJob at the configured
// concurrency, the same standalone-process shape as the teacher's
// cmd/worker — a send loop with a signal-driven graceful shutdown.
func main() {
	log.Println("Starting warmlane delivery worker...")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := sql.Open("postgres", cfg.Postgres.DatabaseURL)
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}
	defer redisClient.Close()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SES.Region))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	sesClient := sesv2.NewFromConfig(awsCfg)

	messageRepo := dynamo.New(dynamoClient, cfg.Dynamo.Table)
	messages := message.New(messageRepo)

	analyticsRepo := dynamo.NewAnalyticsStore(dynamoClient, cfg.Dynamo.Table)
	analyticsService := analytics.New(analyticsRepo, messages)

	campaignRepo := postgres.NewCampaignRepo(db)

	limiter := ratelimit.New(redisClient, "warmlane:ratelimit:ses", cfg.RateLimit.RequestsPerSecond)
	transport := mailtransport.NewSESTransport(sesClient)
	bus := eventbus.NewRedisBus(redisClient, "")

	processor := delivery.New(messages, campaignRepo, analyticsService, limiter, transport, bus)
	deliveryQueue := queue.NewRedisQueue(redisClient, "warmlane:queue:")

	go func() {
		if err := deliveryQueue.Run(ctx, cfg.Worker.Concurrency, processor.Process); err != nil {
			logger.Error("worker: queue run stopped", "error", err.Error())
		}
	}()
	log.Printf("worker running with concurrency %d", cfg.Worker.Concurrency)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	log.Println("worker stopped")
}
