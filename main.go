package main

import (
	"context"
	"math"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"

	"castfeed/config"
	"castfeed/feeds"
	"castfeed/monitoring"
	"castfeed/server"
	"castfeed/storage"
	"castfeed/tasks"
	"castfeed/utils"
)

func runBackgroundTasks(storageManager *storage.Manager, cfg config.FeedConfig) {
	// Guest feed cleanup
	go utils.Recoverer(math.MaxInt, 1, func() {
		tasks.CleanOldData(storageManager, cfg.GuestFeedMaxAge)
	})

	// Guest feed builder
	if cfg.AutoCreateGuestFeed {
		go utils.Recoverer(math.MaxInt, 2, func() {
			builder := tasks.NewGuestFeedBuilder(storageManager, cfg)
			builder.Run()
		})
	}
}

func main() {
	godotenv.Load()
	cfg := config.FromEnv()

	logLevel, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = log.WarnLevel
	}
	log.SetLevel(logLevel)

	ctx := context.Background()
	mongoClient, err := mongo.Connect(ctx, mongooptions.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		panic(err)
	}
	dbConnection := mongoClient.Database(cfg.MongoDatabase)

	redisConnection := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	storageManager := storage.NewManager(dbConnection, redisConnection)
	personalizer := feeds.NewPersonalizeClient(cfg.PersonalizeURL, cfg.PersonalizeTimeout)
	ranker := feeds.NewRanker(storageManager, personalizer, redisConnection, cfg.Feed)

	monitoring.Register()

	s := server.NewServer(cfg.ServerAddr, ranker, storageManager)

	// Run background tasks
	runBackgroundTasks(storageManager, cfg.Feed)

	s.Run()
}
