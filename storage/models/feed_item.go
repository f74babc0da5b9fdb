package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ContentAggregator records which scoring run materialized a feed item.
type ContentAggregator struct {
	RunID      string    `bson:"run_id"`
	CreateTime time.Time `bson:"create_time"`
}

// FeedItem is one materialized (viewer, content) row of a member feed.
// Rows are bulk-inserted per scoring run, mutated only by the one-way
// seen/off-screen markers and never hard-deleted.
type FeedItem struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty"`
	Viewer         primitive.ObjectID  `bson:"viewer"`
	Content        primitive.ObjectID  `bson:"content"`
	CalledAt       time.Time           `bson:"called_at"`
	SeenAt         *time.Time          `bson:"seen_at,omitempty"`
	SeenCredential *primitive.ObjectID `bson:"seen_credential,omitempty"`
	OffScreenAt    *time.Time          `bson:"off_screen_at,omitempty"`
	Aggregator     ContentAggregator   `bson:"aggregator"`
}

// GuestFeedItem is the anonymous-viewer analogue of FeedItem, keyed by
// country code and carrying a precomputed relevance score.
type GuestFeedItem struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	CountryCode string             `bson:"country_code"`
	Content     primitive.ObjectID `bson:"content"`
	Score       float64            `bson:"score"`
	CreatedAt   time.Time          `bson:"created_at"`
}

// DefaultContent is a pinned entry served ahead of guest feed results on
// the first page only.
type DefaultContent struct {
	ID      primitive.ObjectID `bson:"_id,omitempty"`
	Index   int                `bson:"index"`
	Content primitive.ObjectID `bson:"content"`
}
