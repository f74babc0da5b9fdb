package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Relationship is a directed follow/block edge between two users.
type Relationship struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	User         primitive.ObjectID `bson:"user"`
	FollowedUser primitive.ObjectID `bson:"followed_user"`
	Following    bool               `bson:"following"`
	Blocking     bool               `bson:"blocking"`
	Visibility   EntityVisibility   `bson:"visibility"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}
