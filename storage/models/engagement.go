package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EngagementType string

const (
	LikeEngagement EngagementType = "like"
)

type TargetType string

const (
	ContentTarget TargetType = "content"
	CommentTarget TargetType = "comment"
)

type TargetRef struct {
	Type TargetType         `bson:"type"`
	ID   primitive.ObjectID `bson:"id"`
}

// Engagement records one viewer interaction with a content or comment.
type Engagement struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	User       primitive.ObjectID `bson:"user"`
	TargetRef  TargetRef          `bson:"target_ref"`
	Type       EngagementType     `bson:"type"`
	Visibility EntityVisibility   `bson:"visibility"`
	CreatedAt  time.Time          `bson:"created_at"`
}
