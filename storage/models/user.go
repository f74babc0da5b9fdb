package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserType string

const (
	PeopleUser UserType = "people"
	PageUser   UserType = "page"
)

type User struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	OwnerAccount  primitive.ObjectID `bson:"owner_account"`
	DisplayID     string             `bson:"display_id"`
	DisplayName   string             `bson:"display_name"`
	Type          UserType           `bson:"type"`
	AvatarURL     string             `bson:"avatar_url,omitempty"`
	Verified      bool               `bson:"verified"`
	FollowerCount int64              `bson:"follower_count"`
	FollowedCount int64              `bson:"followed_count"`
	Visibility    EntityVisibility   `bson:"visibility"`
	CreatedAt     time.Time          `bson:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at"`
}

// ToAuthor builds the content-embedded author snapshot.
func (u *User) ToAuthor() Author {
	return Author{
		ID:          u.ID,
		CastcleID:   u.DisplayID,
		DisplayName: u.DisplayName,
		Type:        u.Type,
		AvatarURL:   u.AvatarURL,
		Verified:    u.Verified,
	}
}

type Geolocation struct {
	CountryCode string `bson:"country_code,omitempty"`
}

type AccountPreferences struct {
	Languages []string `bson:"languages,omitempty"`
}

type Account struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Geolocation Geolocation        `bson:"geolocation,omitempty"`
	Preferences AccountPreferences `bson:"preferences,omitempty"`
	Visibility  EntityVisibility   `bson:"visibility"`
	CreatedAt   time.Time          `bson:"created_at"`
}

// CountryCode returns the account's lower-cased country code, defaulting
// to "en" when no geolocation is known.
func (a *Account) CountryCode() string {
	if a.Geolocation.CountryCode == "" {
		return "en"
	}
	return strings.ToLower(a.Geolocation.CountryCode)
}
