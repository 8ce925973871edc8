package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/warmlane/internal/config"
	"github.com/ignite/warmlane/internal/objectstore"
	"github.com/ignite/warmlane/internal/pkg/distlock"
	"github.com/ignite/warmlane/internal/queue"
	"github.com/ignite/warmlane/internal/recipients"
	"github.com/ignite/warmlane/internal/repository/dynamo"
	"github.com/ignite/warmlane/internal/repository/postgres"
	"github.com/ignite/warmlane/internal/scheduler"
	"github.com/ignite/warmlane/internal/service/campaign"
	"github.com/ignite/warmlane/internal/service/message"
	"github.com/ignite/warmlane/internal/service/suppression"
	"github.com/ignite/warmlane/internal/templating"
)

// main runs the Day Transition Scheduler (§4.9) as its own standalone
// process: one catch-up sweep on boot, then one sweep every 00:00 UTC,
// mirroring how the teacher splits its own periodic maintenance workers
// (cmd/worker's QueueRecoveryWorker/DataCleanupWorker) out of the main
// API/send processes.
func main() {
	log.Println("Starting warmlane day scheduler...")

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

	suppressionService := suppression.NewService(postgres.NewSuppressionRepo(db))

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

	sched := scheduler.New(campaigns, pool)

	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()
	log.Println("day scheduler running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down day scheduler...")
	cancel()
	<-done
	log.Println("day scheduler stopped")
}
