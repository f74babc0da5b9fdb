package config

import (
	"os"
	"strings"
	"time"

	"castfeed/utils"
)

// FeedConfig carries the feed-tuning parameters. It is built once in main
// and handed to the ranker at construction; ranking code never reads the
// process environment on its own.
type FeedConfig struct {
	// FollowFeedMax caps how many candidates may come from followed authors.
	FollowFeedMax int
	// FollowFeedRatio is the fraction of a page sourced from followed
	// authors; the rest backfills from the global decayed pool.
	FollowFeedRatio float64
	// DecayDays is the age cutoff for global-pool candidates.
	DecayDays int
	// DuplicateContentMax is how many times the same content may be
	// re-materialized for one viewer before it is excluded.
	DuplicateContentMax int
	// MaxResultsDefault is the page size used when the caller sends none.
	MaxResultsDefault int
	// MaxResultsLimit caps the caller-supplied page size.
	MaxResultsLimit int
	// GuestFeedCountries are the country codes the guest feed builder
	// maintains rankings for.
	GuestFeedCountries []string

	AutoCreateGuestFeed bool
	GuestFeedInterval   time.Duration
	GuestFeedMaxAge     time.Duration
}

type Config struct {
	MongoURI      string
	MongoDatabase string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PersonalizeURL     string
	PersonalizeTimeout time.Duration

	ServerAddr string
	LogLevel   string

	Feed FeedConfig
}

func FromEnv() Config {
	countries := strings.Split(envOr("GUEST_FEED_COUNTRIES", "en,th"), ",")
	for i, c := range countries {
		countries[i] = strings.ToLower(strings.TrimSpace(c))
	}

	return Config{
		MongoURI:      envOr("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: envOr("MONGO_DATABASE", "castfeed"),

		RedisAddr:     envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       utils.IntFromString(os.Getenv("REDIS_DB"), 0),

		PersonalizeURL: os.Getenv("DS_SERVICE_BASE_URL"),
		PersonalizeTimeout: time.Duration(
			utils.IntFromString(os.Getenv("DS_SERVICE_TIMEOUT_MS"), 2000),
		) * time.Millisecond,

		ServerAddr: envOr("SERVER_ADDR", ":3333"),
		LogLevel:   envOr("LOG_LEVEL", "warning"),

		Feed: FeedConfig{
			FollowFeedMax:       utils.IntFromString(os.Getenv("FEED_FOLLOW_MAX"), 100),
			FollowFeedRatio:     utils.FloatFromString(os.Getenv("FEED_FOLLOW_RATIO"), 0.7),
			DecayDays:           utils.IntFromString(os.Getenv("FEED_DECAY_DAYS"), 7),
			DuplicateContentMax: utils.IntFromString(os.Getenv("FEED_DUPLICATE_MAX"), 2),
			MaxResultsDefault:   utils.IntFromString(os.Getenv("FEED_MAX_RESULTS"), 25),
			MaxResultsLimit:     utils.IntFromString(os.Getenv("FEED_MAX_RESULTS_LIMIT"), 100),
			GuestFeedCountries:  countries,
			AutoCreateGuestFeed: utils.BoolFromString(os.Getenv("AUTO_CREATE_GUEST_FEED"), false),
			GuestFeedInterval: time.Duration(
				utils.IntFromString(os.Getenv("GUEST_FEED_INTERVAL_MINUTES"), 30),
			) * time.Minute,
			GuestFeedMaxAge: time.Duration(
				utils.IntFromString(os.Getenv("GUEST_FEED_MAX_AGE_DAYS"), 14),
			) * 24 * time.Hour,
		},
	}
}

func envOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
