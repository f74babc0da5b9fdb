package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ContentType string

const (
	ShortContent ContentType = "short"
	LongContent  ContentType = "long"
	ImageContent ContentType = "image"
	VideoContent ContentType = "video"
)

type EntityVisibility string

const (
	VisibilityPublish EntityVisibility = "publish"
	VisibilityDeleted EntityVisibility = "deleted"
)

// Author is the content-embedded snapshot of the authoring user or page.
type Author struct {
	ID          primitive.ObjectID `bson:"id" json:"id"`
	CastcleID   string             `bson:"castcle_id" json:"castcleId"`
	DisplayName string             `bson:"display_name" json:"displayName"`
	Type        UserType           `bson:"type" json:"type"`
	AvatarURL   string             `bson:"avatar_url,omitempty" json:"avatar"`
	Verified    bool               `bson:"verified" json:"verified"`
}

type ContentPayload struct {
	Message string   `bson:"message,omitempty" json:"message,omitempty"`
	Photos  []string `bson:"photos,omitempty" json:"photo,omitempty"`
	Link    string   `bson:"link,omitempty" json:"link,omitempty"`
}

type ContentMetrics struct {
	LikeCount    int64 `bson:"like_count" json:"likeCount"`
	CommentCount int64 `bson:"comment_count" json:"commentCount"`
	RecastCount  int64 `bson:"recast_count" json:"recastCount"`
	QuoteCount   int64 `bson:"quote_count" json:"quoteCount"`
}

type Content struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Author       Author             `bson:"author"`
	Type         ContentType        `bson:"type"`
	Payload      ContentPayload     `bson:"payload"`
	Hashtags     []string           `bson:"hashtags,omitempty"`
	Language     string             `bson:"language,omitempty"`
	CountryCode  string             `bson:"country_code,omitempty"`
	Metrics      ContentMetrics     `bson:"metrics"`
	OriginalPost *Content           `bson:"original_post,omitempty"`
	Visibility   EntityVisibility   `bson:"visibility"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

// IsRecast reports whether the content embeds an original post.
func (c *Content) IsRecast() bool {
	return c.OriginalPost != nil
}
