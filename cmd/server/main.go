package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/warmlane/internal/api"
	"github.com/ignite/warmlane/internal/config"
	"github.com/ignite/warmlane/internal/objectstore"
	"github.com/ignite/warmlane/internal/pkg/distlock"
	"github.com/ignite/warmlane/internal/pkg/httpretry"
	"github.com/ignite/warmlane/internal/pkg/logger"
	"github.com/ignite/warmlane/internal/queue"
	"github.com/ignite/warmlane/internal/recipients"
	"github.com/ignite/warmlane/internal/repository/dynamo"
	"github.com/ignite/warmlane/internal/repository/postgres"
	"github.com/ignite/warmlane/internal/service/analytics"
	"github.com/ignite/warmlane/internal/service/campaign"
	"github.com/ignite/warmlane/internal/service/ingestor"
	"github.com/ignite/warmlane/internal/service/message"
	"github.com/ignite/warmlane/internal/service/suppression"
	"github.com/ignite/warmlane/internal/templating"
)

func main() {
	log.Println("Starting warmlane server...")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()

	db, err := sql.Open("postgres", cfg.Postgres.DatabaseURL)
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("ping postgres: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}
	defer redisClient.Close()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Dynamo.Region))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	dynamoClient := dynamodb.NewFromConfig(awsCfg)

	store, err := objectstore.NewS3Store(ctx, objectstore.Config{
		Bucket: cfg.ObjectStore.Bucket,
		Prefix: cfg.ObjectStore.Prefix,
		Region: cfg.ObjectStore.Region,
	})
	if err != nil {
		log.Fatalf("build object store: %v", err)
	}

	messageRepo := dynamo.New(dynamoClient, cfg.Dynamo.Table)
	messages := message.New(messageRepo)

	analyticsRepo := dynamo.NewAnalyticsStore(dynamoClient, cfg.Dynamo.Table)
	analyticsService := analytics.New(analyticsRepo, messages)

	eventLog := dynamo.NewEventLog(dynamoClient, cfg.Dynamo.Table)

	suppressionRepo := postgres.NewSuppressionRepo(db)
	suppressionService := suppression.NewService(suppressionRepo)

	keys := recipients.PrefixKeyResolver{
		GlobalRecipientsKey:  cfg.ObjectStore.Prefix + "recipients.csv",
		GlobalUnsubscribeKey: cfg.ObjectStore.UnsubscribeKey,
		CustomListPrefix:     cfg.ObjectStore.Prefix + "lists/",
	}
	pool := recipients.New(store, messages, keys, suppressionService)

	deliveryQueue := queue.NewRedisQueue(redisClient, "warmlane:queue:")
	templater := templating.New()

	campaignRepo := postgres.NewCampaignRepo(db)
	lockFor := func(campaignID string) distlock.DistLock {
		return distlock.NewCampaignLock(redisClient, db, campaignID)
	}
	campaigns := campaign.New(campaignRepo, deliveryQueue, pool, templater, nil, lockFor)

	webhookHTTP := httpretry.NewRetryClient(&http.Client{Timeout: 10 * time.Second}, 3)
	webhookHandler := ingestor.New(webhookHTTP, eventLog, messages, campaigns, analyticsService, suppressionService)

	handlers := api.New(campaigns, analyticsService)
	router := api.SetupRoutes(handlers, webhookHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("warmlane server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("server: shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server: shutdown error: %v", err)
	}
}
